package fulfillment

import (
	"errors"
	"testing"

	"github.com/lavandera/api/internal/enum"
)

func TestInStore(t *testing.T) {
	tests := []struct {
		address string
		want    bool
	}{
		{"", true},
		{"in-store", true},
		{"store", true},
		{"Store", true},
		{"  IN-STORE  ", true},
		{"123 Mabini St", false},
		{"storefront ave", false},
	}
	for _, tt := range tests {
		if got := InStore(tt.address); got != tt.want {
			t.Errorf("InStore(%q) = %v, want %v", tt.address, got, tt.want)
		}
	}
}

func TestInitialHandlingStatus(t *testing.T) {
	if got := InitialHandlingStatus("in-store"); got != enum.ServiceStatusSkipped {
		t.Errorf("in-store address: got %q, want skipped", got)
	}
	if got := InitialHandlingStatus("14 Rizal Ave"); got != enum.ServiceStatusPending {
		t.Errorf("physical address: got %q, want pending", got)
	}
}

func TestNextServiceStatus(t *testing.T) {
	tests := []struct {
		name    string
		current string
		action  string
		want    string
		wantErr bool
	}{
		{"start pending", enum.ServiceStatusPending, enum.ActionStart, enum.ServiceStatusInProgress, false},
		{"complete in_progress", enum.ServiceStatusInProgress, enum.ActionComplete, enum.ServiceStatusCompleted, false},
		{"skip pending", enum.ServiceStatusPending, enum.ActionSkip, enum.ServiceStatusSkipped, false},
		{"skip in_progress", enum.ServiceStatusInProgress, enum.ActionSkip, enum.ServiceStatusSkipped, false},
		{"start in_progress", enum.ServiceStatusInProgress, enum.ActionStart, "", true},
		{"complete pending", enum.ServiceStatusPending, enum.ActionComplete, "", true},
		{"complete completed", enum.ServiceStatusCompleted, enum.ActionComplete, "", true},
		{"skip completed", enum.ServiceStatusCompleted, enum.ActionSkip, "", true},
		{"start skipped", enum.ServiceStatusSkipped, enum.ActionStart, "", true},
		{"unknown action", enum.ServiceStatusPending, "pause", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextServiceStatus(tt.current, tt.action)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextHandlingStatus(t *testing.T) {
	physical := func(status string) HandlingState {
		return HandlingState{Address: "88 Katipunan Ave", Status: status}
	}

	if _, err := NextHandlingStatus(HandlingState{Address: "in-store", Status: enum.ServiceStatusSkipped}, enum.ActionStart); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("starting an in-store stage should fail, got %v", err)
	}

	got, err := NextHandlingStatus(physical(enum.ServiceStatusPending), enum.ActionStart)
	if err != nil || got != enum.ServiceStatusInProgress {
		t.Errorf("start pending: got (%q, %v)", got, err)
	}

	got, err = NextHandlingStatus(physical(enum.ServiceStatusInProgress), enum.ActionComplete)
	if err != nil || got != enum.ServiceStatusCompleted {
		t.Errorf("complete in_progress: got (%q, %v)", got, err)
	}

	if _, err := NextHandlingStatus(physical(enum.ServiceStatusPending), enum.ActionComplete); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("completing a pending stage should fail, got %v", err)
	}
	if _, err := NextHandlingStatus(physical(enum.ServiceStatusCompleted), enum.ActionComplete); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("re-completing should fail, got %v", err)
	}
}

func TestCanStartDelivery(t *testing.T) {
	base := Snapshot{
		Status:   enum.OrderStatusProcessing,
		Pickup:   HandlingState{Address: "in-store", Status: enum.ServiceStatusSkipped},
		Delivery: HandlingState{Address: "7 Bonifacio Dr", Status: enum.ServiceStatusPending},
		Services: []ServiceUnit{
			{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusCompleted},
		},
	}

	if err := CanStartDelivery(base); err != nil {
		t.Errorf("all services done, pickup skipped: %v", err)
	}

	inProgress := base
	inProgress.Services = []ServiceUnit{
		{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusInProgress},
	}
	if err := CanStartDelivery(inProgress); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("unfinished services should block delivery, got %v", err)
	}

	pickupPending := base
	pickupPending.Pickup = HandlingState{Address: "3 Taft Ave", Status: enum.ServiceStatusPending}
	if err := CanStartDelivery(pickupPending); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("unresolved pickup should block delivery, got %v", err)
	}
}

func TestCascade(t *testing.T) {
	inStore := HandlingState{Address: "in-store", Status: enum.ServiceStatusSkipped}

	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{
			"untouched order stays pending",
			Snapshot{
				Status: enum.OrderStatusPending,
				Pickup: HandlingState{Address: "5 Luna St", Status: enum.ServiceStatusPending},
				Delivery: HandlingState{
					Address: "5 Luna St", Status: enum.ServiceStatusPending,
				},
				Services: []ServiceUnit{{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusPending}},
			},
			enum.OrderStatusPending,
		},
		{
			"first service start moves to processing",
			Snapshot{
				Status:   enum.OrderStatusPending,
				Pickup:   inStore,
				Delivery: inStore,
				Services: []ServiceUnit{
					{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusInProgress},
					{BasketNumber: 1, Type: enum.ServiceTypeDry, Status: enum.ServiceStatusPending},
				},
			},
			enum.OrderStatusProcessing,
		},
		{
			"all services done, both handlings in-store: completed",
			Snapshot{
				Status:   enum.OrderStatusProcessing,
				Pickup:   inStore,
				Delivery: inStore,
				Services: []ServiceUnit{
					{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusCompleted},
					{BasketNumber: 1, Type: enum.ServiceTypeDry, Status: enum.ServiceStatusCompleted},
				},
			},
			enum.OrderStatusCompleted,
		},
		{
			"all services done, delivery pending: for_pickup",
			Snapshot{
				Status:   enum.OrderStatusProcessing,
				Pickup:   inStore,
				Delivery: HandlingState{Address: "7 Bonifacio Dr", Status: enum.ServiceStatusPending},
				Services: []ServiceUnit{
					{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusCompleted},
				},
			},
			enum.OrderStatusForPickup,
		},
		{
			"delivery in progress: delivering",
			Snapshot{
				Status:   enum.OrderStatusForPickup,
				Pickup:   inStore,
				Delivery: HandlingState{Address: "7 Bonifacio Dr", Status: enum.ServiceStatusInProgress},
				Services: []ServiceUnit{
					{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusSkipped},
				},
			},
			enum.OrderStatusDelivering,
		},
		{
			"delivery completed: completed",
			Snapshot{
				Status:   enum.OrderStatusDelivering,
				Pickup:   inStore,
				Delivery: HandlingState{Address: "7 Bonifacio Dr", Status: enum.ServiceStatusCompleted},
				Services: []ServiceUnit{
					{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusCompleted},
				},
			},
			enum.OrderStatusCompleted,
		},
		{
			"pickup-only order completes on pickup completion",
			Snapshot{
				Status:   enum.OrderStatusProcessing,
				Pickup:   HandlingState{Address: "14 Rizal Ave", Status: enum.ServiceStatusCompleted},
				Delivery: inStore,
				Services: nil,
			},
			enum.OrderStatusCompleted,
		},
		{
			"pickup in progress with pending services: processing",
			Snapshot{
				Status:   enum.OrderStatusPending,
				Pickup:   HandlingState{Address: "14 Rizal Ave", Status: enum.ServiceStatusInProgress},
				Delivery: inStore,
				Services: []ServiceUnit{{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusPending}},
			},
			enum.OrderStatusProcessing,
		},
		{
			"cancelled is sticky",
			Snapshot{
				Status:   enum.OrderStatusCancelled,
				Pickup:   inStore,
				Delivery: inStore,
				Services: []ServiceUnit{{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusSkipped}},
			},
			enum.OrderStatusCancelled,
		},
		{
			"completed is sticky",
			Snapshot{
				Status:   enum.OrderStatusCompleted,
				Pickup:   inStore,
				Delivery: inStore,
			},
			enum.OrderStatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cascade(tt.snap); got != tt.want {
				t.Errorf("Cascade() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBasketDone(t *testing.T) {
	units := []ServiceUnit{
		{BasketNumber: 1, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusCompleted},
		{BasketNumber: 1, Type: enum.ServiceTypeDry, Status: enum.ServiceStatusSkipped},
		{BasketNumber: 2, Type: enum.ServiceTypeWash, Status: enum.ServiceStatusInProgress},
	}
	if !BasketDone(units, 1) {
		t.Error("basket 1 should be done")
	}
	if BasketDone(units, 2) {
		t.Error("basket 2 should not be done")
	}
	if !BasketDone(units, 3) {
		t.Error("basket with no services is vacuously done")
	}
}
