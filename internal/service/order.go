package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/enum"
	"github.com/lavandera/api/internal/fulfillment"
	"github.com/lavandera/api/internal/inventory"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyOrder          = errors.New("order needs at least one basket or item")
	ErrEmptyServices       = errors.New("basket needs at least one service")
	ErrInvalidSource       = errors.New("invalid source")
	ErrInvalidService      = errors.New("invalid service type")
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrInvalidProductID    = errors.New("invalid product_id")
	ErrInvalidCustomerID   = errors.New("invalid customer_id")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidWeight       = errors.New("invalid weight")
	ErrInvalidFees         = errors.New("invalid fees")
	ErrCustomerRequired    = errors.New("customer_id or customer data is required")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInsufficientPayment = errors.New("amount received is less than the total")
	ErrNotRejectable       = errors.New("only pending app or mobile orders can be rejected")
	ErrNotModifiable       = errors.New("only pending mobile orders can be modified")
	ErrAlreadyCancelled    = errors.New("order is already cancelled")
)

// Outbox event types. The dispatcher fans these out to websocket subscribers
// and push notifications after commit.
const (
	EventOrderCreated    = "order.created"
	EventOrderModified   = "order.modified"
	EventOrderRejected   = "order.rejected"
	EventOrderCancelled  = "order.cancelled"
	EventOrderCompleted  = "order.completed"
	EventOrderStatus     = "order.status_changed"
	EventServiceUpdated  = "service.updated"
	EventHandlingUpdated = "handling.updated"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create and mutate orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderBreakdown(ctx context.Context, arg database.UpdateOrderBreakdownParams) (database.Order, error)
	SetOrderBreakdownJSON(ctx context.Context, arg database.SetOrderAuditParams) error

	CreateBasket(ctx context.Context, arg database.CreateBasketParams) (database.Basket, error)
	DeleteBasketsByOrder(ctx context.Context, orderID uuid.UUID) error
	CreateBasketService(ctx context.Context, arg database.CreateBasketServiceParams) (database.BasketService, error)
	SkipActiveBasketServices(ctx context.Context, arg database.SkipActiveBasketServicesParams) (int64, error)
	DeleteBasketServicesByOrder(ctx context.Context, orderID uuid.UUID) error

	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (database.Customer, error)
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
	AdjustLoyaltyPoints(ctx context.Context, arg database.AdjustLoyaltyPointsParams) (database.Customer, error)

	GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error)
	AdjustProductQuantity(ctx context.Context, arg database.AdjustProductQuantityParams) (database.Product, error)
	CreateProductTransaction(ctx context.Context, arg database.CreateProductTransactionParams) (database.ProductTransaction, error)
	ListOrderDeductions(ctx context.Context, orderID uuid.UUID) ([]database.OrderDeduction, error)

	CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	Source          string
	CustomerID      string
	Customer        *CustomerRequest
	CashierID       uuid.UUID // zero for customer-placed orders
	Baskets         []CreateBasketRequest
	Items           []CreateItemRequest
	Fees            string
	PickupAddress   string
	DeliveryAddress string
	Payment         *PaymentRequest
}

// CustomerRequest creates a walk-in customer inline with the order.
type CustomerRequest struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// CreateBasketRequest is one basket with its elected services.
type CreateBasketRequest struct {
	Weight   string
	Price    string
	Notes    string
	Services []string
}

// CreateItemRequest is a retail line item.
type CreateItemRequest struct {
	ProductID string
	Quantity  int32
}

type PaymentRequest struct {
	Method         string
	AmountReceived string
}

// ModifyOrderRequest replaces the contents of a pending mobile order.
type ModifyOrderRequest struct {
	Baskets         []CreateBasketRequest
	Items           []CreateItemRequest
	Fees            string
	PickupAddress   string
	DeliveryAddress string
}

// CreateOrderResult is the full created order with its baskets and services.
type CreateOrderResult struct {
	Order    database.Order
	Customer database.Customer
	Baskets  []database.Basket
	Services []database.BasketService
}

// MutationResult is the outcome of a reject, cancel, or modify. FailedRestores
// lists product IDs whose stock could not be returned; the mutation itself
// still succeeded.
type MutationResult struct {
	Order          database.Order
	FailedRestores []uuid.UUID
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// preparedItem is a priced retail line ready to insert and deduct.
type preparedItem struct {
	productID uuid.UUID
	name      string
	quantity  int32
	unitPrice decimal.Decimal
	subtotal  decimal.Decimal
}

// CreateOrder validates, prices, and creates an order atomically: order row,
// baskets, service rows, inventory deductions, and the outbox event all commit
// together. Retries up to maxOrderNumberRetries times on order_number unique
// constraint violations (race where concurrent transactions get the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if !enum.IsOrderSource(req.Source) {
		return nil, ErrInvalidSource
	}
	if len(req.Baskets) == 0 && len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if req.CustomerID == "" && req.Customer == nil {
		return nil, ErrCustomerRequired
	}
	if err := validateBaskets(req.Baskets); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	customer, err := resolveCustomer(ctx, store, req.CustomerID, req.Customer)
	if err != nil {
		return nil, err
	}

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("LAV-%03d", nextNum)

	items, itemsTotal, err := priceItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	basketsTotal := decimal.Zero
	for _, b := range req.Baskets {
		price, _ := decimal.NewFromString(b.Price)
		basketsTotal = basketsTotal.Add(price)
	}

	subtotal := basketsTotal.Add(itemsTotal)

	fees := decimal.Zero
	if req.Fees != "" {
		fees, err = decimal.NewFromString(req.Fees)
		if err != nil || fees.IsNegative() {
			return nil, ErrInvalidFees
		}
	}
	total := subtotal.Add(fees)

	payment, err := settlePayment(req.Payment, total)
	if err != nil {
		return nil, err
	}

	pickupStatus := fulfillment.InitialHandlingStatus(req.PickupAddress)
	deliveryStatus := fulfillment.InitialHandlingStatus(req.DeliveryAddress)

	breakdown := Breakdown{
		Items:   lineItems(items),
		Payment: payment,
		Summary: Summary{
			Subtotal: subtotal.StringFixed(2),
			Fees:     fees.StringFixed(2),
			Total:    total.StringFixed(2),
		},
	}
	for i, b := range req.Baskets {
		breakdown.Baskets = append(breakdown.Baskets, BasketEntry{
			BasketNumber: int32(i + 1),
			Weight:       b.Weight,
			Price:        b.Price,
			Notes:        b.Notes,
			Services:     b.Services,
		})
	}
	breakdownJSON, err := json.Marshal(&breakdown)
	if err != nil {
		return nil, fmt.Errorf("encode breakdown: %w", err)
	}

	cashierID := pgtype.UUID{}
	if req.CashierID != uuid.Nil {
		cashierID = pgtype.UUID{Bytes: req.CashierID, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:     orderNumber,
		Source:          req.Source,
		CustomerID:      customer.ID,
		CashierID:       cashierID,
		Subtotal:        decimalToNumeric(subtotal),
		Fees:            decimalToNumeric(fees),
		TotalAmount:     decimalToNumeric(total),
		Breakdown:       breakdownJSON,
		PickupAddress:   textOrNull(req.PickupAddress),
		PickupStatus:    pickupStatus,
		DeliveryAddress: textOrNull(req.DeliveryAddress),
		DeliveryStatus:  deliveryStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	baskets, services, err := writeBaskets(ctx, store, order.ID, req.Baskets)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if _, err := inventory.Deduct(ctx, store, it.productID, it.quantity, order.ID, cashierID); err != nil {
			return nil, err
		}
	}

	if err := emitEvent(ctx, store, order.ID, EventOrderCreated, map[string]any{
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"source":       order.Source,
	}); err != nil {
		return nil, err
	}

	// A retail-only order with no physical handling has nothing left to
	// track and completes at the counter.
	snap := snapshotFromParts(order, services)
	if next := fulfillment.Cascade(snap); next != order.Status {
		order, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{ID: order.ID, Status: next})
		if err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}
		if next == enum.OrderStatusCompleted {
			if err := emitEvent(ctx, store, order.ID, EventOrderCompleted, map[string]any{
				"order_number": order.OrderNumber,
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{
		Order:    order,
		Customer: customer,
		Baskets:  baskets,
		Services: services,
	}, nil
}

// RejectOrder declines a customer-placed order before work starts: only
// pending orders from the app or mobile sources qualify. Inventory already
// deducted is restored best-effort and the customer loses one loyalty point.
func (s *OrderService) RejectOrder(ctx context.Context, orderID, staffID uuid.UUID, reason string) (*MutationResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusPending ||
		(order.Source != enum.OrderSourceApp && order.Source != enum.OrderSourceMobile) {
		return nil, ErrNotRejectable
	}

	result, err := s.teardown(ctx, store, order, staffID, "reject", reason, EventOrderRejected)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// CancelOrder aborts an order at any stage except after cancellation. Active
// services are skipped with attribution, stock is returned best-effort, and
// the customer loses one loyalty point.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, staffID uuid.UUID, reason string) (*MutationResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderStatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	result, err := s.teardown(ctx, store, order, staffID, "cancel", reason, EventOrderCancelled)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// teardown is the shared tail of reject and cancel: cancel the order, skip
// whatever services are still active, return stock, dock the loyalty point,
// and leave an audit trail plus an outbox event.
func (s *OrderService) teardown(ctx context.Context, store OrderStore, order database.Order, staffID uuid.UUID, action, reason, eventType string) (*MutationResult, error) {
	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     order.ID,
		Status: enum.OrderStatusCancelled,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	note := fmt.Sprintf("order %sed", action)
	if _, err := store.SkipActiveBasketServices(ctx, database.SkipActiveBasketServicesParams{
		OrderID:     order.ID,
		CompletedBy: staffID,
		Notes:       pgtype.Text{String: note, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("skip services: %w", err)
	}

	deductions, err := store.ListOrderDeductions(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list deductions: %w", err)
	}
	actor := pgtype.UUID{Bytes: staffID, Valid: true}
	failed := inventory.RestoreOrder(ctx, store, order.ID, deductions, note, actor)

	if _, err := store.AdjustLoyaltyPoints(ctx, database.AdjustLoyaltyPointsParams{
		ID:    order.CustomerID,
		Delta: -1,
	}); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("adjust loyalty points: %w", err)
	}

	audited, err := appendAudit(updated.Breakdown, AuditEntry{
		At:      time.Now().UTC(),
		StaffID: staffID.String(),
		Action:  action,
		Reason:  reason,
	})
	if err != nil {
		return nil, err
	}
	if err := store.SetOrderBreakdownJSON(ctx, database.SetOrderAuditParams{ID: order.ID, Breakdown: audited}); err != nil {
		return nil, fmt.Errorf("write audit log: %w", err)
	}
	updated.Breakdown = audited

	if err := emitEvent(ctx, store, order.ID, eventType, map[string]any{
		"order_number": order.OrderNumber,
		"reason":       reason,
	}); err != nil {
		return nil, err
	}

	return &MutationResult{Order: updated, FailedRestores: failed}, nil
}

// ModifyOrder replaces the baskets, items, and handling addresses of a pending
// mobile order. Outstanding inventory deductions are reversed and the new
// items deducted in the same transaction, so a stock shortfall on the new
// contents rolls everything back and leaves the order untouched.
func (s *OrderService) ModifyOrder(ctx context.Context, orderID, staffID uuid.UUID, req ModifyOrderRequest) (*CreateOrderResult, error) {
	if len(req.Baskets) == 0 && len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if err := validateBaskets(req.Baskets); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusPending || order.Source != enum.OrderSourceMobile {
		return nil, ErrNotModifiable
	}

	// Reverse the outstanding deductions strictly: a modify is all-or-nothing,
	// unlike the best-effort restoration of a cancel.
	actor := pgtype.UUID{Bytes: staffID, Valid: true}
	deductions, err := store.ListOrderDeductions(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list deductions: %w", err)
	}
	for _, d := range deductions {
		if _, err := inventory.Restore(ctx, store, d.ProductID, -d.QuantityChange, order.ID, "order modified", actor); err != nil {
			return nil, fmt.Errorf("restore product %s: %w", d.ProductID, err)
		}
	}

	if err := store.DeleteBasketServicesByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("delete services: %w", err)
	}
	if err := store.DeleteBasketsByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("delete baskets: %w", err)
	}

	items, itemsTotal, err := priceItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	basketsTotal := decimal.Zero
	for _, b := range req.Baskets {
		price, _ := decimal.NewFromString(b.Price)
		basketsTotal = basketsTotal.Add(price)
	}
	subtotal := basketsTotal.Add(itemsTotal)

	fees := decimal.Zero
	if req.Fees != "" {
		fees, err = decimal.NewFromString(req.Fees)
		if err != nil || fees.IsNegative() {
			return nil, ErrInvalidFees
		}
	}
	total := subtotal.Add(fees)

	var prior Breakdown
	if len(order.Breakdown) > 0 {
		if err := json.Unmarshal(order.Breakdown, &prior); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
	}

	breakdown := Breakdown{
		Items:   lineItems(items),
		Payment: prior.Payment,
		Summary: Summary{
			Subtotal: subtotal.StringFixed(2),
			Fees:     fees.StringFixed(2),
			Total:    total.StringFixed(2),
		},
		AuditLog: append(prior.AuditLog, AuditEntry{
			At:      time.Now().UTC(),
			StaffID: staffID.String(),
			Action:  "modify",
		}),
	}
	for i, b := range req.Baskets {
		breakdown.Baskets = append(breakdown.Baskets, BasketEntry{
			BasketNumber: int32(i + 1),
			Weight:       b.Weight,
			Price:        b.Price,
			Notes:        b.Notes,
			Services:     b.Services,
		})
	}
	breakdownJSON, err := json.Marshal(&breakdown)
	if err != nil {
		return nil, fmt.Errorf("encode breakdown: %w", err)
	}

	order, err = store.UpdateOrderBreakdown(ctx, database.UpdateOrderBreakdownParams{
		ID:              order.ID,
		Subtotal:        decimalToNumeric(subtotal),
		Fees:            decimalToNumeric(fees),
		TotalAmount:     decimalToNumeric(total),
		Breakdown:       breakdownJSON,
		PickupAddress:   textOrNull(req.PickupAddress),
		PickupStatus:    fulfillment.InitialHandlingStatus(req.PickupAddress),
		DeliveryAddress: textOrNull(req.DeliveryAddress),
		DeliveryStatus:  fulfillment.InitialHandlingStatus(req.DeliveryAddress),
	})
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	baskets, services, err := writeBaskets(ctx, store, order.ID, req.Baskets)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if _, err := inventory.Deduct(ctx, store, it.productID, it.quantity, order.ID, actor); err != nil {
			return nil, err
		}
	}

	if err := emitEvent(ctx, store, order.ID, EventOrderModified, map[string]any{
		"order_number": order.OrderNumber,
	}); err != nil {
		return nil, err
	}

	customer, err := store.GetCustomer(ctx, order.CustomerID)
	if err != nil {
		customer = database.Customer{ID: order.CustomerID}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{
		Order:    order,
		Customer: customer,
		Baskets:  baskets,
		Services: services,
	}, nil
}

// --- Helpers ---

func resolveCustomer(ctx context.Context, store OrderStore, customerID string, data *CustomerRequest) (database.Customer, error) {
	if customerID != "" {
		cid, err := uuid.Parse(customerID)
		if err != nil {
			return database.Customer{}, ErrInvalidCustomerID
		}
		customer, err := store.GetCustomer(ctx, cid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Customer{}, ErrCustomerNotFound
			}
			return database.Customer{}, fmt.Errorf("get customer: %w", err)
		}
		return customer, nil
	}

	if data.Name == "" || data.Phone == "" {
		return database.Customer{}, ErrCustomerRequired
	}
	// Walk-ins often already exist under the same phone number.
	if existing, err := store.GetCustomerByPhone(ctx, data.Phone); err == nil {
		return existing, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return database.Customer{}, fmt.Errorf("get customer by phone: %w", err)
	}

	customer, err := store.CreateCustomer(ctx, database.CreateCustomerParams{
		Name:    data.Name,
		Phone:   data.Phone,
		Email:   textOrNull(data.Email),
		Address: textOrNull(data.Address),
	})
	if err != nil {
		return database.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return customer, nil
}

// priceItems validates the retail lines and prices them from current product
// data, locking each product row so the later deduction cannot race a
// concurrent stock change.
func priceItems(ctx context.Context, store OrderStore, reqs []CreateItemRequest) ([]preparedItem, decimal.Decimal, error) {
	total := decimal.Zero
	var items []preparedItem
	for i, item := range reqs {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidProductID)
		}
		product, err := store.GetProductForUpdate(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, inventory.ErrProductNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("items[%d]: get product: %w", i, err)
		}
		unitPrice := numericToDecimal(product.Price)
		subtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		total = total.Add(subtotal)
		items = append(items, preparedItem{
			productID: productID,
			name:      product.Name,
			quantity:  item.Quantity,
			unitPrice: unitPrice,
			subtotal:  subtotal,
		})
	}
	return items, total, nil
}

func lineItems(items []preparedItem) []LineItem {
	var out []LineItem
	for _, it := range items {
		out = append(out, LineItem{
			ProductID: it.productID.String(),
			Name:      it.name,
			Quantity:  it.quantity,
			UnitPrice: it.unitPrice.StringFixed(2),
			Subtotal:  it.subtotal.StringFixed(2),
		})
	}
	return out
}

func settlePayment(req *PaymentRequest, total decimal.Decimal) (*Payment, error) {
	if req == nil {
		return nil, nil
	}
	p := &Payment{Method: req.Method}
	if req.AmountReceived == "" {
		return p, nil
	}
	received, err := decimal.NewFromString(req.AmountReceived)
	if err != nil {
		return nil, ErrInvalidPrice
	}
	if received.LessThan(total) {
		return nil, ErrInsufficientPayment
	}
	p.AmountReceived = received.StringFixed(2)
	p.Change = received.Sub(total).StringFixed(2)
	return p, nil
}

// writeBaskets inserts basket rows numbered 1..n and a service row for every
// elected service.
func writeBaskets(ctx context.Context, store OrderStore, orderID uuid.UUID, reqs []CreateBasketRequest) ([]database.Basket, []database.BasketService, error) {
	var baskets []database.Basket
	var services []database.BasketService
	for i, b := range reqs {
		number := int32(i + 1)
		price, _ := decimal.NewFromString(b.Price)
		weight := pgtype.Numeric{}
		if b.Weight != "" {
			w, _ := decimal.NewFromString(b.Weight)
			weight = decimalToNumeric(w)
		}
		basket, err := store.CreateBasket(ctx, database.CreateBasketParams{
			OrderID:      orderID,
			BasketNumber: number,
			Weight:       weight,
			Price:        decimalToNumeric(price),
			Notes:        textOrNull(b.Notes),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create basket %d: %w", number, err)
		}
		baskets = append(baskets, basket)

		for _, svc := range b.Services {
			row, err := store.CreateBasketService(ctx, database.CreateBasketServiceParams{
				OrderID:      orderID,
				BasketNumber: number,
				ServiceType:  svc,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("create basket %d service %s: %w", number, svc, err)
			}
			services = append(services, row)
		}
	}
	return baskets, services, nil
}

func emitEvent(ctx context.Context, store OrderStore, orderID uuid.UUID, eventType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
		OrderID:   orderID,
		EventType: eventType,
		Payload:   body,
	}); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func appendAudit(breakdown []byte, entry AuditEntry) ([]byte, error) {
	var b Breakdown
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &b); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	b.AuditLog = append(b.AuditLog, entry)
	out, err := json.Marshal(&b)
	if err != nil {
		return nil, fmt.Errorf("encode breakdown: %w", err)
	}
	return out, nil
}

// snapshotFromParts builds the progression snapshot the engine evaluates.
func snapshotFromParts(order database.Order, services []database.BasketService) fulfillment.Snapshot {
	snap := fulfillment.Snapshot{
		Status: order.Status,
		Pickup: fulfillment.HandlingState{
			Address: order.PickupAddress.String,
			Status:  order.PickupStatus,
		},
		Delivery: fulfillment.HandlingState{
			Address: order.DeliveryAddress.String,
			Status:  order.DeliveryStatus,
		},
	}
	for _, s := range services {
		snap.Services = append(snap.Services, fulfillment.ServiceUnit{
			BasketNumber: s.BasketNumber,
			Type:         s.ServiceType,
			Status:       s.Status,
		})
	}
	return snap
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
