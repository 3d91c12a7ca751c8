package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/enum"
	"github.com/lavandera/api/internal/fulfillment"
)

var (
	ErrServiceNotFound = errors.New("service not found on this basket")
	ErrInvalidStage    = errors.New("stage must be pickup or delivery")
)

// TransitionStore defines the DB methods needed to advance fulfillment state.
// Satisfied by *database.Queries (and its WithTx variant).
type TransitionStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	AssignOrderCashier(ctx context.Context, arg database.AssignOrderCashierParams) (database.Order, error)
	UpdatePickupStatus(ctx context.Context, arg database.UpdatePickupStatusParams) (database.Order, error)
	UpdateDeliveryStatus(ctx context.Context, arg database.UpdateDeliveryStatusParams) (database.Order, error)

	GetBasketService(ctx context.Context, arg database.GetBasketServiceParams) (database.BasketService, error)
	ListBasketServicesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.BasketService, error)
	StartBasketService(ctx context.Context, arg database.StartBasketServiceParams) (database.BasketService, error)
	ResolveBasketService(ctx context.Context, arg database.ResolveBasketServiceParams) (database.BasketService, error)
	UpdateBasketStatus(ctx context.Context, arg database.UpdateBasketStatusParams) (database.Basket, error)

	CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error)
}

// NewTransitionStore creates a TransitionStore from a DBTX (pool or tx).
type NewTransitionStore func(db database.DBTX) TransitionStore

// AdvanceResult is the order after a transition, with the touched service row
// when the transition was a basket service action.
type AdvanceResult struct {
	Order   database.Order
	Service *database.BasketService
}

// TransitionService advances basket services and handling phases, holding the
// order row lock for the whole evaluate-write-cascade sequence so concurrent
// staff actions on one order serialize.
type TransitionService struct {
	pool     TxBeginner
	newStore NewTransitionStore
}

// NewTransitionService creates a new TransitionService.
func NewTransitionService(pool TxBeginner, newStore NewTransitionStore) *TransitionService {
	return &TransitionService{pool: pool, newStore: newStore}
}

// AdvanceService applies start, complete, or skip to one (basket, service)
// unit and cascades the basket and order statuses.
func (s *TransitionService) AdvanceService(ctx context.Context, orderID uuid.UUID, basketNumber int32, serviceType, action string, staffID uuid.UUID, notes string) (*AdvanceResult, error) {
	if !enum.IsServiceType(serviceType) {
		return nil, ErrInvalidService
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockOpenOrder(ctx, store, orderID)
	if err != nil {
		return nil, err
	}

	svc, err := store.GetBasketService(ctx, database.GetBasketServiceParams{
		OrderID:      orderID,
		BasketNumber: basketNumber,
		ServiceType:  serviceType,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}

	next, err := fulfillment.NextServiceStatus(svc.Status, action)
	if err != nil {
		return nil, err
	}

	switch next {
	case enum.ServiceStatusInProgress:
		svc, err = store.StartBasketService(ctx, database.StartBasketServiceParams{
			OrderID:      orderID,
			BasketNumber: basketNumber,
			ServiceType:  serviceType,
			StartedBy:    staffID,
		})
	default:
		svc, err = store.ResolveBasketService(ctx, database.ResolveBasketServiceParams{
			OrderID:      orderID,
			BasketNumber: basketNumber,
			ServiceType:  serviceType,
			Status:       next,
			CompletedBy:  staffID,
			Notes:        textOrNull(notes),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}

	// First staff touch claims the order.
	if !order.CashierID.Valid {
		claimed, err := store.AssignOrderCashier(ctx, database.AssignOrderCashierParams{
			ID:        orderID,
			CashierID: staffID,
		})
		if err == nil {
			order = claimed
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("assign cashier: %w", err)
		}
	}

	services, err := store.ListBasketServicesByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	snap := snapshotFromParts(order, services)
	if fulfillment.BasketDone(snap.Services, basketNumber) {
		if _, err := store.UpdateBasketStatus(ctx, database.UpdateBasketStatusParams{
			OrderID:      orderID,
			BasketNumber: basketNumber,
			Status:       enum.BasketStatusCompleted,
		}); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update basket status: %w", err)
		}
	}

	order, err = cascadeOrder(ctx, store, order, snap)
	if err != nil {
		return nil, err
	}

	if err := emitTransitionEvent(ctx, store, order, EventServiceUpdated, map[string]any{
		"basket_number": basketNumber,
		"service_type":  serviceType,
		"service":       svc.Status,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &AdvanceResult{Order: order, Service: &svc}, nil
}

// AdvanceHandling applies start or complete to the pickup or delivery phase.
// Delivery may only start once every service and the pickup are resolved.
func (s *TransitionService) AdvanceHandling(ctx context.Context, orderID uuid.UUID, stage, action string, staffID uuid.UUID) (*AdvanceResult, error) {
	if stage != enum.HandlingPickup && stage != enum.HandlingDelivery {
		return nil, ErrInvalidStage
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockOpenOrder(ctx, store, orderID)
	if err != nil {
		return nil, err
	}

	services, err := store.ListBasketServicesByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	snap := snapshotFromParts(order, services)

	state := snap.Pickup
	if stage == enum.HandlingDelivery {
		state = snap.Delivery
		if action == enum.ActionStart {
			if err := fulfillment.CanStartDelivery(snap); err != nil {
				return nil, err
			}
		}
	}

	next, err := fulfillment.NextHandlingStatus(state, action)
	if err != nil {
		return nil, err
	}

	if stage == enum.HandlingPickup {
		order, err = store.UpdatePickupStatus(ctx, database.UpdatePickupStatusParams{ID: orderID, Status: next})
	} else {
		order, err = store.UpdateDeliveryStatus(ctx, database.UpdateDeliveryStatusParams{ID: orderID, Status: next})
	}
	if err != nil {
		return nil, fmt.Errorf("update %s status: %w", stage, err)
	}

	snap = snapshotFromParts(order, services)
	order, err = cascadeOrder(ctx, store, order, snap)
	if err != nil {
		return nil, err
	}

	if err := emitTransitionEvent(ctx, store, order, EventHandlingUpdated, map[string]any{
		"stage":    stage,
		"handling": next,
		"staff_id": staffID.String(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &AdvanceResult{Order: order}, nil
}

// lockOpenOrder locks the order row and rejects transitions on terminal
// orders.
func lockOpenOrder(ctx context.Context, store TransitionStore, orderID uuid.UUID) (database.Order, error) {
	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderStatusCompleted || order.Status == enum.OrderStatusCancelled {
		return database.Order{}, fmt.Errorf("%w: order is %s", fulfillment.ErrInvalidTransition, order.Status)
	}
	return order, nil
}

// cascadeOrder recomputes the order status from the snapshot and persists a
// change, emitting the status event.
func cascadeOrder(ctx context.Context, store TransitionStore, order database.Order, snap fulfillment.Snapshot) (database.Order, error) {
	next := fulfillment.Cascade(snap)
	if next == order.Status {
		return order, nil
	}
	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{ID: order.ID, Status: next})
	if err != nil {
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}
	if err := emitTransitionEvent(ctx, store, updated, EventOrderStatus, map[string]any{
		"from": order.Status,
		"to":   next,
	}); err != nil {
		return database.Order{}, err
	}
	if next == enum.OrderStatusCompleted {
		if err := emitTransitionEvent(ctx, store, updated, EventOrderCompleted, nil); err != nil {
			return database.Order{}, err
		}
	}
	return updated, nil
}

func emitTransitionEvent(ctx context.Context, store TransitionStore, order database.Order, eventType string, extra map[string]any) error {
	payload := map[string]any{
		"order_number": order.OrderNumber,
		"status":       order.Status,
	}
	for k, v := range extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
		OrderID:   order.ID,
		EventType: eventType,
		Payload:   body,
	}); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
