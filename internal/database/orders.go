package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, source, customer_id, cashier_id, status,
	subtotal, fees, total_amount, breakdown,
	pickup_address, pickup_status, pickup_started_at, pickup_completed_at,
	delivery_address, delivery_status, delivery_started_at, delivery_completed_at,
	created_at, updated_at, completed_at, cancelled_at`

func scanOrder(row scanner) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Source, &o.CustomerID, &o.CashierID, &o.Status,
		&o.Subtotal, &o.Fees, &o.TotalAmount, &o.Breakdown,
		&o.PickupAddress, &o.PickupStatus, &o.PickupStartedAt, &o.PickupCompletedAt,
		&o.DeliveryAddress, &o.DeliveryStatus, &o.DeliveryStartedAt, &o.DeliveryCompletedAt,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt, &o.CancelledAt,
	)
	return o, err
}

type CreateOrderParams struct {
	OrderNumber     string
	Source          string
	CustomerID      uuid.UUID
	CashierID       pgtype.UUID
	Subtotal        pgtype.Numeric
	Fees            pgtype.Numeric
	TotalAmount     pgtype.Numeric
	Breakdown       []byte
	PickupAddress   pgtype.Text
	PickupStatus    string
	DeliveryAddress pgtype.Text
	DeliveryStatus  string
}

const createOrder = `
INSERT INTO orders (order_number, source, customer_id, cashier_id,
	subtotal, fees, total_amount, breakdown,
	pickup_address, pickup_status, delivery_address, delivery_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber, arg.Source, arg.CustomerID, arg.CashierID,
		arg.Subtotal, arg.Fees, arg.TotalAmount, arg.Breakdown,
		arg.PickupAddress, arg.PickupStatus, arg.DeliveryAddress, arg.DeliveryStatus,
	)
	return scanOrder(row)
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

// GetOrderForUpdate locks the order row, serializing concurrent fulfillment
// transitions on the same order.
const getOrderForUpdate = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const getNextOrderNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 5) AS INTEGER)), 0) + 1 FROM orders`

func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextOrderNumber).Scan(&n)
	return n, err
}

type ListOrdersParams struct {
	Status    pgtype.Text
	Source    pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

const listOrders = `
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR source = $2)
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at < $4)
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.Status, arg.Source, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listActiveOrders = `
SELECT ` + orderColumns + ` FROM orders
WHERE status IN ('pending', 'processing', 'for_pickup', 'delivering')
ORDER BY created_at ASC`

func (q *Queries) ListActiveOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, listActiveOrders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID     uuid.UUID
	Status string
}

// UpdateOrderStatus sets the order status and maintains the terminal
// timestamps. Callers must hold the row lock (GetOrderForUpdate) or otherwise
// have validated the transition.
const updateOrderStatus = `
UPDATE orders SET
	status = $2,
	updated_at = now(),
	completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END,
	cancelled_at = CASE WHEN $2 = 'cancelled' THEN now() ELSE cancelled_at END
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status))
}

type AssignOrderCashierParams struct {
	ID        uuid.UUID
	CashierID uuid.UUID
}

const assignOrderCashier = `
UPDATE orders SET cashier_id = $2, updated_at = now()
WHERE id = $1 AND cashier_id IS NULL
RETURNING ` + orderColumns

// AssignOrderCashier sets the cashier if the order has none yet. Returns
// pgx.ErrNoRows when a cashier is already assigned; callers treat that as a
// no-op.
func (q *Queries) AssignOrderCashier(ctx context.Context, arg AssignOrderCashierParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, assignOrderCashier, arg.ID, arg.CashierID))
}

type UpdateOrderBreakdownParams struct {
	ID              uuid.UUID
	Subtotal        pgtype.Numeric
	Fees            pgtype.Numeric
	TotalAmount     pgtype.Numeric
	Breakdown       []byte
	PickupAddress   pgtype.Text
	PickupStatus    string
	DeliveryAddress pgtype.Text
	DeliveryStatus  string
}

const updateOrderBreakdown = `
UPDATE orders SET
	subtotal = $2, fees = $3, total_amount = $4, breakdown = $5,
	pickup_address = $6, pickup_status = $7,
	delivery_address = $8, delivery_status = $9,
	updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderBreakdown(ctx context.Context, arg UpdateOrderBreakdownParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderBreakdown,
		arg.ID, arg.Subtotal, arg.Fees, arg.TotalAmount, arg.Breakdown,
		arg.PickupAddress, arg.PickupStatus, arg.DeliveryAddress, arg.DeliveryStatus))
}

type SetOrderAuditParams struct {
	ID        uuid.UUID
	Breakdown []byte
}

const setOrderBreakdownJSON = `
UPDATE orders SET breakdown = $2, updated_at = now() WHERE id = $1`

// SetOrderBreakdownJSON replaces the breakdown payload only, used to append
// audit-log entries.
func (q *Queries) SetOrderBreakdownJSON(ctx context.Context, arg SetOrderAuditParams) error {
	_, err := q.db.Exec(ctx, setOrderBreakdownJSON, arg.ID, arg.Breakdown)
	return err
}

// ── Handling (pickup / delivery virtual phases) ──

type UpdatePickupStatusParams struct {
	ID     uuid.UUID
	Status string
}

const updatePickupStatus = `
UPDATE orders SET
	pickup_status = $2,
	pickup_started_at = CASE WHEN $2 = 'in_progress' THEN now() ELSE pickup_started_at END,
	pickup_completed_at = CASE WHEN $2 IN ('completed', 'skipped') THEN now() ELSE pickup_completed_at END,
	updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) UpdatePickupStatus(ctx context.Context, arg UpdatePickupStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updatePickupStatus, arg.ID, arg.Status))
}

type UpdateDeliveryStatusParams struct {
	ID     uuid.UUID
	Status string
}

const updateDeliveryStatus = `
UPDATE orders SET
	delivery_status = $2,
	delivery_started_at = CASE WHEN $2 = 'in_progress' THEN now() ELSE delivery_started_at END,
	delivery_completed_at = CASE WHEN $2 IN ('completed', 'skipped') THEN now() ELSE delivery_completed_at END,
	updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) UpdateDeliveryStatus(ctx context.Context, arg UpdateDeliveryStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateDeliveryStatus, arg.ID, arg.Status))
}

// ── Baskets ──

const basketColumns = `id, order_id, basket_number, weight, price, notes, status, created_at, updated_at`

func scanBasket(row scanner) (Basket, error) {
	var b Basket
	err := row.Scan(&b.ID, &b.OrderID, &b.BasketNumber, &b.Weight, &b.Price,
		&b.Notes, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

type CreateBasketParams struct {
	OrderID      uuid.UUID
	BasketNumber int32
	Weight       pgtype.Numeric
	Price        pgtype.Numeric
	Notes        pgtype.Text
}

const createBasket = `
INSERT INTO baskets (order_id, basket_number, weight, price, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + basketColumns

func (q *Queries) CreateBasket(ctx context.Context, arg CreateBasketParams) (Basket, error) {
	return scanBasket(q.db.QueryRow(ctx, createBasket,
		arg.OrderID, arg.BasketNumber, arg.Weight, arg.Price, arg.Notes))
}

const listBasketsByOrder = `
SELECT ` + basketColumns + ` FROM baskets WHERE order_id = $1 ORDER BY basket_number`

func (q *Queries) ListBasketsByOrder(ctx context.Context, orderID uuid.UUID) ([]Basket, error) {
	rows, err := q.db.Query(ctx, listBasketsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Basket
	for rows.Next() {
		b, err := scanBasket(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const deleteBasketsByOrder = `DELETE FROM baskets WHERE order_id = $1`

func (q *Queries) DeleteBasketsByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteBasketsByOrder, orderID)
	return err
}

type UpdateBasketStatusParams struct {
	OrderID      uuid.UUID
	BasketNumber int32
	Status       string
}

const updateBasketStatus = `
UPDATE baskets SET status = $3, updated_at = now()
WHERE order_id = $1 AND basket_number = $2
RETURNING ` + basketColumns

func (q *Queries) UpdateBasketStatus(ctx context.Context, arg UpdateBasketStatusParams) (Basket, error) {
	return scanBasket(q.db.QueryRow(ctx, updateBasketStatus, arg.OrderID, arg.BasketNumber, arg.Status))
}

// ── Basket services ──

const basketServiceColumns = `id, order_id, basket_number, service_type, status,
	started_by, completed_by, started_at, completed_at, notes`

func scanBasketService(row scanner) (BasketService, error) {
	var s BasketService
	err := row.Scan(&s.ID, &s.OrderID, &s.BasketNumber, &s.ServiceType, &s.Status,
		&s.StartedBy, &s.CompletedBy, &s.StartedAt, &s.CompletedAt, &s.Notes)
	return s, err
}

type CreateBasketServiceParams struct {
	OrderID      uuid.UUID
	BasketNumber int32
	ServiceType  string
}

const createBasketService = `
INSERT INTO basket_services (order_id, basket_number, service_type)
VALUES ($1, $2, $3)
RETURNING ` + basketServiceColumns

func (q *Queries) CreateBasketService(ctx context.Context, arg CreateBasketServiceParams) (BasketService, error) {
	return scanBasketService(q.db.QueryRow(ctx, createBasketService,
		arg.OrderID, arg.BasketNumber, arg.ServiceType))
}

type GetBasketServiceParams struct {
	OrderID      uuid.UUID
	BasketNumber int32
	ServiceType  string
}

const getBasketService = `
SELECT ` + basketServiceColumns + ` FROM basket_services
WHERE order_id = $1 AND basket_number = $2 AND service_type = $3`

func (q *Queries) GetBasketService(ctx context.Context, arg GetBasketServiceParams) (BasketService, error) {
	return scanBasketService(q.db.QueryRow(ctx, getBasketService,
		arg.OrderID, arg.BasketNumber, arg.ServiceType))
}

const listBasketServicesByOrder = `
SELECT ` + basketServiceColumns + ` FROM basket_services
WHERE order_id = $1
ORDER BY basket_number, service_type`

func (q *Queries) ListBasketServicesByOrder(ctx context.Context, orderID uuid.UUID) ([]BasketService, error) {
	rows, err := q.db.Query(ctx, listBasketServicesByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BasketService
	for rows.Next() {
		s, err := scanBasketService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

type StartBasketServiceParams struct {
	OrderID      uuid.UUID
	BasketNumber int32
	ServiceType  string
	StartedBy    uuid.UUID
}

const startBasketService = `
UPDATE basket_services SET status = 'in_progress', started_by = $4, started_at = now()
WHERE order_id = $1 AND basket_number = $2 AND service_type = $3
RETURNING ` + basketServiceColumns

func (q *Queries) StartBasketService(ctx context.Context, arg StartBasketServiceParams) (BasketService, error) {
	return scanBasketService(q.db.QueryRow(ctx, startBasketService,
		arg.OrderID, arg.BasketNumber, arg.ServiceType, arg.StartedBy))
}

type ResolveBasketServiceParams struct {
	OrderID      uuid.UUID
	BasketNumber int32
	ServiceType  string
	Status       string // completed | skipped
	CompletedBy  uuid.UUID
	Notes        pgtype.Text
}

const resolveBasketService = `
UPDATE basket_services SET
	status = $4,
	completed_by = $5,
	completed_at = now(),
	notes = COALESCE($6, notes)
WHERE order_id = $1 AND basket_number = $2 AND service_type = $3
RETURNING ` + basketServiceColumns

func (q *Queries) ResolveBasketService(ctx context.Context, arg ResolveBasketServiceParams) (BasketService, error) {
	return scanBasketService(q.db.QueryRow(ctx, resolveBasketService,
		arg.OrderID, arg.BasketNumber, arg.ServiceType, arg.Status, arg.CompletedBy, arg.Notes))
}

type SkipActiveBasketServicesParams struct {
	OrderID     uuid.UUID
	CompletedBy uuid.UUID
	Notes       pgtype.Text
}

const skipActiveBasketServices = `
UPDATE basket_services SET
	status = 'skipped', completed_by = $2, completed_at = now(), notes = COALESCE($3, notes)
WHERE order_id = $1 AND status IN ('pending', 'in_progress')`

// SkipActiveBasketServices marks every still-active service of an order
// skipped, returning the number of rows affected.
func (q *Queries) SkipActiveBasketServices(ctx context.Context, arg SkipActiveBasketServicesParams) (int64, error) {
	tag, err := q.db.Exec(ctx, skipActiveBasketServices, arg.OrderID, arg.CompletedBy, arg.Notes)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteBasketServicesByOrder = `DELETE FROM basket_services WHERE order_id = $1`

func (q *Queries) DeleteBasketServicesByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteBasketServicesByOrder, orderID)
	return err
}
