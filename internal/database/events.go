package database

import (
	"context"

	"github.com/google/uuid"
)

const orderEventColumns = `id, order_id, event_type, payload, created_at, dispatched_at`

func scanOrderEvent(row scanner) (OrderEvent, error) {
	var e OrderEvent
	err := row.Scan(&e.ID, &e.OrderID, &e.EventType, &e.Payload, &e.CreatedAt, &e.DispatchedAt)
	return e, err
}

type CreateOrderEventParams struct {
	OrderID   uuid.UUID
	EventType string
	Payload   []byte
}

const createOrderEvent = `
INSERT INTO order_events (order_id, event_type, payload)
VALUES ($1, $2, $3)
RETURNING ` + orderEventColumns

func (q *Queries) CreateOrderEvent(ctx context.Context, arg CreateOrderEventParams) (OrderEvent, error) {
	return scanOrderEvent(q.db.QueryRow(ctx, createOrderEvent, arg.OrderID, arg.EventType, arg.Payload))
}

const listUndispatchedEvents = `
SELECT ` + orderEventColumns + ` FROM order_events
WHERE dispatched_at IS NULL
ORDER BY id
LIMIT $1`

func (q *Queries) ListUndispatchedEvents(ctx context.Context, limit int32) ([]OrderEvent, error) {
	rows, err := q.db.Query(ctx, listUndispatchedEvents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderEvent
	for rows.Next() {
		e, err := scanOrderEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const markEventDispatched = `UPDATE order_events SET dispatched_at = now() WHERE id = $1`

func (q *Queries) MarkEventDispatched(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, markEventDispatched, id)
	return err
}
