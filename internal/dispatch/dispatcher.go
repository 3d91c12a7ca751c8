// Package dispatch drains the order_events outbox. Order mutations write
// events in the same transaction as their data changes; the dispatcher polls
// committed events and fans them out to websocket boards, push notifications,
// and the loyalty award. Side effects here are at-least-once and must stay
// safe to repeat.
package dispatch

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/notify"
	"github.com/lavandera/api/internal/service"
	"github.com/lavandera/api/internal/ws"
)

const batchSize = 64

// Store defines the DB methods the dispatcher needs. Satisfied by
// *database.Queries.
type Store interface {
	ListUndispatchedEvents(ctx context.Context, limit int32) ([]database.OrderEvent, error)
	MarkEventDispatched(ctx context.Context, id int64) error
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
	AdjustLoyaltyPoints(ctx context.Context, arg database.AdjustLoyaltyPointsParams) (database.Customer, error)
}

// Broadcaster pushes an event onto a websocket board. Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(board string, event ws.Event)
}

// Dispatcher polls the outbox on a fixed interval.
type Dispatcher struct {
	store    Store
	hub      Broadcaster
	pusher   notify.Pusher
	interval time.Duration
}

func New(store Store, hub Broadcaster, pusher notify.Pusher, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Dispatcher{store: store, hub: hub, pusher: pusher, interval: interval}
}

// Run polls until the context is cancelled.
// This should be called as a goroutine: go dispatcher.Run(ctx)
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Drain(ctx); err != nil {
				log.Printf("ERROR: drain outbox: %v", err)
			}
		}
	}
}

// Drain processes one batch of undispatched events.
func (d *Dispatcher) Drain(ctx context.Context) error {
	events, err := d.store.ListUndispatchedEvents(ctx, batchSize)
	if err != nil {
		return err
	}
	for _, e := range events {
		d.process(ctx, e)
		if err := d.store.MarkEventDispatched(ctx, e.ID); err != nil {
			// Stop the batch; the event will be retried next tick.
			return err
		}
	}
	return nil
}

func (d *Dispatcher) process(ctx context.Context, e database.OrderEvent) {
	d.hub.Broadcast(ws.BoardOrders, ws.Event{
		Type:    e.EventType,
		Payload: json.RawMessage(e.Payload),
	})

	if e.EventType == service.EventOrderCompleted {
		if _, err := d.store.AdjustLoyaltyPoints(ctx, database.AdjustLoyaltyPointsParams{
			ID:    d.customerID(ctx, e.OrderID),
			Delta: 1,
		}); err != nil {
			log.Printf("ERROR: award loyalty point for order %s: %v", e.OrderID, err)
		}
	}

	if title, body := pushMessage(e); title != "" {
		d.push(ctx, e.OrderID, title, body)
	}
}

func (d *Dispatcher) customerID(ctx context.Context, orderID uuid.UUID) uuid.UUID {
	order, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		return uuid.Nil
	}
	return order.CustomerID
}

func (d *Dispatcher) push(ctx context.Context, orderID uuid.UUID, title, body string) {
	order, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		log.Printf("ERROR: get order %s for push: %v", orderID, err)
		return
	}
	customer, err := d.store.GetCustomer(ctx, order.CustomerID)
	if err != nil || !customer.DeviceToken.Valid {
		return
	}
	if err := d.pusher.Push(customer.DeviceToken.String, title, body); err != nil {
		log.Printf("ERROR: push for order %s: %v", orderID, err)
	}
}

// pushMessage maps an event to the customer-facing notification. Events with
// an empty title are staff-board only.
func pushMessage(e database.OrderEvent) (title, body string) {
	var p struct {
		OrderNumber string `json:"order_number"`
		Status      string `json:"status"`
		Reason      string `json:"reason"`
	}
	_ = json.Unmarshal(e.Payload, &p)

	switch e.EventType {
	case service.EventOrderCompleted:
		return "Laundry ready", "Order " + p.OrderNumber + " is completed. Thanks for choosing us!"
	case service.EventOrderRejected:
		body := "Order " + p.OrderNumber + " was declined."
		if p.Reason != "" {
			body += " Reason: " + p.Reason
		}
		return "Order declined", body
	case service.EventOrderCancelled:
		return "Order cancelled", "Order " + p.OrderNumber + " has been cancelled."
	case service.EventOrderStatus:
		return "Order update", "Order " + p.OrderNumber + " is now " + p.Status + "."
	}
	return "", ""
}
