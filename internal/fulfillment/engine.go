// Package fulfillment holds the pure order-progression logic: given the full
// per-service and handling state of an order, it decides which transitions
// are legal and what the order-level status must be. It has no knowledge of
// storage or transport, which keeps every rule unit-testable.
package fulfillment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lavandera/api/internal/enum"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// ServiceUnit is the tracked state of one (basket, service_type) pair.
type ServiceUnit struct {
	BasketNumber int32
	Type         string
	Status       string
}

// HandlingState is the pickup or delivery virtual phase of an order.
type HandlingState struct {
	Address string
	Status  string
}

// Snapshot is everything the engine needs to evaluate an order.
type Snapshot struct {
	Status   string
	Pickup   HandlingState
	Delivery HandlingState
	Services []ServiceUnit
}

// InStore reports whether an address is one of the sentinels meaning no
// physical movement is needed. Such a phase is auto-resolved to skipped and
// can never be started.
func InStore(address string) bool {
	switch strings.ToLower(strings.TrimSpace(address)) {
	case "", "in-store", "store":
		return true
	}
	return false
}

// InitialHandlingStatus resolves the handling status written at order
// creation for a given address.
func InitialHandlingStatus(address string) string {
	if InStore(address) {
		return enum.ServiceStatusSkipped
	}
	return enum.ServiceStatusPending
}

func resolved(status string) bool {
	return status == enum.ServiceStatusCompleted || status == enum.ServiceStatusSkipped
}

// NextServiceStatus validates a service action against the unit's current
// status and returns the resulting status. Re-resolving an already-resolved
// unit is an error, never a silent no-op, so order-level cascades cannot
// fire twice.
func NextServiceStatus(current, action string) (string, error) {
	switch action {
	case enum.ActionStart:
		if current == enum.ServiceStatusPending {
			return enum.ServiceStatusInProgress, nil
		}
	case enum.ActionComplete:
		if current == enum.ServiceStatusInProgress {
			return enum.ServiceStatusCompleted, nil
		}
	case enum.ActionSkip:
		if current == enum.ServiceStatusPending || current == enum.ServiceStatusInProgress {
			return enum.ServiceStatusSkipped, nil
		}
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	return "", fmt.Errorf("%w: cannot %s a %s service", ErrInvalidTransition, action, current)
}

// NextHandlingStatus validates a handling action. Skip is not a caller
// action here: skipped handling is resolved from the address at creation.
func NextHandlingStatus(h HandlingState, action string) (string, error) {
	if InStore(h.Address) || h.Status == enum.ServiceStatusSkipped {
		return "", fmt.Errorf("%w: handling stage is not required for this order", ErrInvalidTransition)
	}
	switch action {
	case enum.ActionStart:
		if h.Status == enum.ServiceStatusPending {
			return enum.ServiceStatusInProgress, nil
		}
	case enum.ActionComplete:
		if h.Status == enum.ServiceStatusInProgress {
			return enum.ServiceStatusCompleted, nil
		}
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	return "", fmt.Errorf("%w: cannot %s a %s handling stage", ErrInvalidTransition, action, h.Status)
}

// ServicesDone reports whether every tracked service is completed or skipped.
// Vacuously true for an order with no tracked services.
func ServicesDone(units []ServiceUnit) bool {
	for _, u := range units {
		if !resolved(u.Status) {
			return false
		}
	}
	return true
}

// BasketDone reports whether every service of the given basket is resolved.
func BasketDone(units []ServiceUnit, basketNumber int32) bool {
	for _, u := range units {
		if u.BasketNumber == basketNumber && !resolved(u.Status) {
			return false
		}
	}
	return true
}

// CanStartDelivery enforces the one ordering constraint the independent model
// keeps: delivery may only begin once every service is resolved and the
// pickup phase is resolved.
func CanStartDelivery(snap Snapshot) error {
	if !ServicesDone(snap.Services) {
		return fmt.Errorf("%w: services are still in progress", ErrInvalidTransition)
	}
	if !resolved(snap.Pickup.Status) {
		return fmt.Errorf("%w: pickup has not been completed", ErrInvalidTransition)
	}
	return nil
}

// Cascade computes the order status implied by a snapshot. Terminal statuses
// are sticky; everything else is derived from the service and handling set.
func Cascade(snap Snapshot) string {
	if snap.Status == enum.OrderStatusCompleted || snap.Status == enum.OrderStatusCancelled {
		return snap.Status
	}

	if ServicesDone(snap.Services) && resolved(snap.Pickup.Status) {
		if InStore(snap.Delivery.Address) || snap.Delivery.Status == enum.ServiceStatusSkipped {
			return enum.OrderStatusCompleted
		}
		switch snap.Delivery.Status {
		case enum.ServiceStatusCompleted:
			return enum.OrderStatusCompleted
		case enum.ServiceStatusInProgress:
			return enum.OrderStatusDelivering
		default:
			return enum.OrderStatusForPickup
		}
	}

	if anyActivity(snap) {
		return enum.OrderStatusProcessing
	}
	return enum.OrderStatusPending
}

func anyActivity(snap Snapshot) bool {
	for _, u := range snap.Services {
		if u.Status != enum.ServiceStatusPending {
			return true
		}
	}
	if snap.Pickup.Status == enum.ServiceStatusInProgress || snap.Pickup.Status == enum.ServiceStatusCompleted {
		return true
	}
	if snap.Delivery.Status == enum.ServiceStatusInProgress || snap.Delivery.Status == enum.ServiceStatusCompleted {
		return true
	}
	return false
}
