package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/enum"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	commits     int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// fakeStore is an in-memory store implementing OrderStore and TransitionStore.
// It mirrors the real queries' semantics closely enough for the service flows:
// atomic stock guards, loyalty clamping at zero, cashier claim on NULL only.
// It does not simulate rollback, so failure tests assert errors, not state.
type fakeStore struct {
	nextNumber     int32
	orders         map[uuid.UUID]database.Order
	baskets        map[uuid.UUID][]database.Basket
	services       map[uuid.UUID][]database.BasketService
	customers      map[uuid.UUID]database.Customer
	products       map[uuid.UUID]database.Product
	txns           []database.ProductTransaction
	events         []database.OrderEvent
	createOrderErr []error // popped per CreateOrder call
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextNumber: 1,
		orders:     make(map[uuid.UUID]database.Order),
		baskets:    make(map[uuid.UUID][]database.Basket),
		services:   make(map[uuid.UUID][]database.BasketService),
		customers:  make(map[uuid.UUID]database.Customer),
		products:   make(map[uuid.UUID]database.Product),
	}
}

func (f *fakeStore) addCustomer(name, phone string, points int32) database.Customer {
	c := database.Customer{ID: uuid.New(), Name: name, Phone: phone, LoyaltyPoints: points, IsActive: true}
	f.customers[c.ID] = c
	return c
}

func (f *fakeStore) addProduct(name, price string, qty int32) database.Product {
	p := database.Product{ID: uuid.New(), Name: name, Price: makeNumeric(price), Quantity: qty, IsActive: true}
	f.products[p.ID] = p
	return p
}

func (f *fakeStore) eventTypes() []string {
	var types []string
	for _, e := range f.events {
		types = append(types, e.EventType)
	}
	return types
}

func (f *fakeStore) hasEvent(eventType string) bool {
	for _, e := range f.events {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

// --- OrderStore ---

func (f *fakeStore) GetNextOrderNumber(ctx context.Context) (int32, error) {
	return f.nextNumber, nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if len(f.createOrderErr) > 0 {
		err := f.createOrderErr[0]
		f.createOrderErr = f.createOrderErr[1:]
		if err != nil {
			return database.Order{}, err
		}
	}
	o := database.Order{
		ID:              uuid.New(),
		OrderNumber:     arg.OrderNumber,
		Source:          arg.Source,
		CustomerID:      arg.CustomerID,
		CashierID:       arg.CashierID,
		Status:          enum.OrderStatusPending,
		Subtotal:        arg.Subtotal,
		Fees:            arg.Fees,
		TotalAmount:     arg.TotalAmount,
		Breakdown:       arg.Breakdown,
		PickupAddress:   arg.PickupAddress,
		PickupStatus:    arg.PickupStatus,
		DeliveryAddress: arg.DeliveryAddress,
		DeliveryStatus:  arg.DeliveryStatus,
		CreatedAt:       time.Now(),
	}
	f.orders[o.ID] = o
	f.nextNumber++
	return o, nil
}

func (f *fakeStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	switch arg.Status {
	case enum.OrderStatusCompleted:
		o.CompletedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	case enum.OrderStatusCancelled:
		o.CancelledAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	}
	f.orders[arg.ID] = o
	return o, nil
}

func (f *fakeStore) AssignOrderCashier(ctx context.Context, arg database.AssignOrderCashierParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok || o.CashierID.Valid {
		return database.Order{}, pgx.ErrNoRows
	}
	o.CashierID = pgtype.UUID{Bytes: arg.CashierID, Valid: true}
	f.orders[arg.ID] = o
	return o, nil
}

func (f *fakeStore) UpdateOrderBreakdown(ctx context.Context, arg database.UpdateOrderBreakdownParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Subtotal = arg.Subtotal
	o.Fees = arg.Fees
	o.TotalAmount = arg.TotalAmount
	o.Breakdown = arg.Breakdown
	o.PickupAddress = arg.PickupAddress
	o.PickupStatus = arg.PickupStatus
	o.DeliveryAddress = arg.DeliveryAddress
	o.DeliveryStatus = arg.DeliveryStatus
	f.orders[arg.ID] = o
	return o, nil
}

func (f *fakeStore) SetOrderBreakdownJSON(ctx context.Context, arg database.SetOrderAuditParams) error {
	o, ok := f.orders[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	o.Breakdown = arg.Breakdown
	f.orders[arg.ID] = o
	return nil
}

func (f *fakeStore) UpdatePickupStatus(ctx context.Context, arg database.UpdatePickupStatusParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.PickupStatus = arg.Status
	f.orders[arg.ID] = o
	return o, nil
}

func (f *fakeStore) UpdateDeliveryStatus(ctx context.Context, arg database.UpdateDeliveryStatusParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.DeliveryStatus = arg.Status
	f.orders[arg.ID] = o
	return o, nil
}

// --- Baskets and services ---

func (f *fakeStore) CreateBasket(ctx context.Context, arg database.CreateBasketParams) (database.Basket, error) {
	b := database.Basket{
		ID:           uuid.New(),
		OrderID:      arg.OrderID,
		BasketNumber: arg.BasketNumber,
		Weight:       arg.Weight,
		Price:        arg.Price,
		Notes:        arg.Notes,
		Status:       enum.BasketStatusProcessing,
	}
	f.baskets[arg.OrderID] = append(f.baskets[arg.OrderID], b)
	return b, nil
}

func (f *fakeStore) DeleteBasketsByOrder(ctx context.Context, orderID uuid.UUID) error {
	delete(f.baskets, orderID)
	return nil
}

func (f *fakeStore) UpdateBasketStatus(ctx context.Context, arg database.UpdateBasketStatusParams) (database.Basket, error) {
	for i, b := range f.baskets[arg.OrderID] {
		if b.BasketNumber == arg.BasketNumber {
			f.baskets[arg.OrderID][i].Status = arg.Status
			return f.baskets[arg.OrderID][i], nil
		}
	}
	return database.Basket{}, pgx.ErrNoRows
}

func (f *fakeStore) CreateBasketService(ctx context.Context, arg database.CreateBasketServiceParams) (database.BasketService, error) {
	s := database.BasketService{
		ID:           uuid.New(),
		OrderID:      arg.OrderID,
		BasketNumber: arg.BasketNumber,
		ServiceType:  arg.ServiceType,
		Status:       enum.ServiceStatusPending,
	}
	f.services[arg.OrderID] = append(f.services[arg.OrderID], s)
	return s, nil
}

func (f *fakeStore) GetBasketService(ctx context.Context, arg database.GetBasketServiceParams) (database.BasketService, error) {
	for _, s := range f.services[arg.OrderID] {
		if s.BasketNumber == arg.BasketNumber && s.ServiceType == arg.ServiceType {
			return s, nil
		}
	}
	return database.BasketService{}, pgx.ErrNoRows
}

func (f *fakeStore) ListBasketServicesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.BasketService, error) {
	return f.services[orderID], nil
}

func (f *fakeStore) StartBasketService(ctx context.Context, arg database.StartBasketServiceParams) (database.BasketService, error) {
	for i, s := range f.services[arg.OrderID] {
		if s.BasketNumber == arg.BasketNumber && s.ServiceType == arg.ServiceType {
			f.services[arg.OrderID][i].Status = enum.ServiceStatusInProgress
			f.services[arg.OrderID][i].StartedBy = pgtype.UUID{Bytes: arg.StartedBy, Valid: true}
			f.services[arg.OrderID][i].StartedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
			return f.services[arg.OrderID][i], nil
		}
	}
	return database.BasketService{}, pgx.ErrNoRows
}

func (f *fakeStore) ResolveBasketService(ctx context.Context, arg database.ResolveBasketServiceParams) (database.BasketService, error) {
	for i, s := range f.services[arg.OrderID] {
		if s.BasketNumber == arg.BasketNumber && s.ServiceType == arg.ServiceType {
			f.services[arg.OrderID][i].Status = arg.Status
			f.services[arg.OrderID][i].CompletedBy = pgtype.UUID{Bytes: arg.CompletedBy, Valid: true}
			f.services[arg.OrderID][i].CompletedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
			if arg.Notes.Valid {
				f.services[arg.OrderID][i].Notes = arg.Notes
			}
			return f.services[arg.OrderID][i], nil
		}
	}
	return database.BasketService{}, pgx.ErrNoRows
}

func (f *fakeStore) SkipActiveBasketServices(ctx context.Context, arg database.SkipActiveBasketServicesParams) (int64, error) {
	var n int64
	for i, s := range f.services[arg.OrderID] {
		if s.Status == enum.ServiceStatusPending || s.Status == enum.ServiceStatusInProgress {
			f.services[arg.OrderID][i].Status = enum.ServiceStatusSkipped
			f.services[arg.OrderID][i].CompletedBy = pgtype.UUID{Bytes: arg.CompletedBy, Valid: true}
			if arg.Notes.Valid {
				f.services[arg.OrderID][i].Notes = arg.Notes
			}
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteBasketServicesByOrder(ctx context.Context, orderID uuid.UUID) error {
	delete(f.services, orderID)
	return nil
}

// --- Customers ---

func (f *fakeStore) GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error) {
	c, ok := f.customers[id]
	if !ok || !c.IsActive {
		return database.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) GetCustomerByPhone(ctx context.Context, phone string) (database.Customer, error) {
	for _, c := range f.customers {
		if c.Phone == phone && c.IsActive {
			return c, nil
		}
	}
	return database.Customer{}, pgx.ErrNoRows
}

func (f *fakeStore) CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error) {
	c := database.Customer{
		ID:       uuid.New(),
		Name:     arg.Name,
		Phone:    arg.Phone,
		Email:    arg.Email,
		Address:  arg.Address,
		IsActive: true,
	}
	f.customers[c.ID] = c
	return c, nil
}

func (f *fakeStore) AdjustLoyaltyPoints(ctx context.Context, arg database.AdjustLoyaltyPointsParams) (database.Customer, error) {
	c, ok := f.customers[arg.ID]
	if !ok {
		return database.Customer{}, pgx.ErrNoRows
	}
	c.LoyaltyPoints += arg.Delta
	if c.LoyaltyPoints < 0 {
		c.LoyaltyPoints = 0
	}
	f.customers[arg.ID] = c
	return c, nil
}

// --- Products and ledger ---

func (f *fakeStore) GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error) {
	p, ok := f.products[id]
	if !ok || !p.IsActive {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) AdjustProductQuantity(ctx context.Context, arg database.AdjustProductQuantityParams) (database.Product, error) {
	p, ok := f.products[arg.ID]
	if !ok || !p.IsActive || p.Quantity+arg.Delta < 0 {
		return database.Product{}, pgx.ErrNoRows
	}
	p.Quantity += arg.Delta
	f.products[arg.ID] = p
	return p, nil
}

func (f *fakeStore) CreateProductTransaction(ctx context.Context, arg database.CreateProductTransactionParams) (database.ProductTransaction, error) {
	t := database.ProductTransaction{
		ID:              uuid.New(),
		ProductID:       arg.ProductID,
		OrderID:         arg.OrderID,
		QuantityChange:  arg.QuantityChange,
		TransactionType: arg.TransactionType,
		Note:            arg.Note,
		CreatedBy:       arg.CreatedBy,
		CreatedAt:       time.Now(),
	}
	f.txns = append(f.txns, t)
	return t, nil
}

func (f *fakeStore) ListOrderDeductions(ctx context.Context, orderID uuid.UUID) ([]database.OrderDeduction, error) {
	net := make(map[uuid.UUID]int32)
	var seen []uuid.UUID
	for _, t := range f.txns {
		if !t.OrderID.Valid || t.OrderID.Bytes != orderID {
			continue
		}
		if t.TransactionType != enum.TxnTypeOrder && t.TransactionType != enum.TxnTypeReturn {
			continue
		}
		if _, ok := net[t.ProductID]; !ok {
			seen = append(seen, t.ProductID)
		}
		net[t.ProductID] += t.QuantityChange
	}
	var out []database.OrderDeduction
	for _, id := range seen {
		if net[id] < 0 {
			out = append(out, database.OrderDeduction{ProductID: id, QuantityChange: net[id]})
		}
	}
	return out, nil
}

// --- Events ---

func (f *fakeStore) CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error) {
	e := database.OrderEvent{
		ID:        int64(len(f.events) + 1),
		OrderID:   arg.OrderID,
		EventType: arg.EventType,
		Payload:   arg.Payload,
		CreatedAt: time.Now(),
	}
	f.events = append(f.events, e)
	return e, nil
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func newTestOrderService(store *fakeStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, newStore), tx
}

func newTestTransitionService(store *fakeStore) (*TransitionService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) TransitionStore { return store }
	return NewTransitionService(pool, newStore), tx
}
