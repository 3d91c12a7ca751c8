package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/enum"
)

// mockStore keeps product quantities and the transaction log in memory,
// mirroring the atomic-guard semantics of the real queries.
type mockStore struct {
	products map[uuid.UUID]database.Product
	txns     []database.ProductTransaction
}

func newMockStore() *mockStore {
	return &mockStore{products: make(map[uuid.UUID]database.Product)}
}

func (m *mockStore) addProduct(name string, qty int32) uuid.UUID {
	id := uuid.New()
	m.products[id] = database.Product{ID: id, Name: name, Quantity: qty, IsActive: true}
	return id
}

func (m *mockStore) GetProductForUpdate(_ context.Context, id uuid.UUID) (database.Product, error) {
	p, ok := m.products[id]
	if !ok || !p.IsActive {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockStore) AdjustProductQuantity(_ context.Context, arg database.AdjustProductQuantityParams) (database.Product, error) {
	p, ok := m.products[arg.ID]
	if !ok || !p.IsActive || p.Quantity+arg.Delta < 0 {
		return database.Product{}, pgx.ErrNoRows
	}
	p.Quantity += arg.Delta
	m.products[arg.ID] = p
	return p, nil
}

func (m *mockStore) CreateProductTransaction(_ context.Context, arg database.CreateProductTransactionParams) (database.ProductTransaction, error) {
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
	m.txns = append(m.txns, t)
	return t, nil
}

func (m *mockStore) ledgerSum(productID uuid.UUID) int32 {
	var sum int32
	for _, t := range m.txns {
		if t.ProductID == productID {
			sum += t.QuantityChange
		}
	}
	return sum
}

func TestDeduct(t *testing.T) {
	store := newMockStore()
	productID := store.addProduct("Detergent Sachet", 10)
	orderID := uuid.New()

	txn, err := Deduct(context.Background(), store, productID, 3, orderID, pgtype.UUID{})
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if txn.QuantityChange != -3 {
		t.Errorf("quantity_change = %d, want -3", txn.QuantityChange)
	}
	if txn.TransactionType != enum.TxnTypeOrder {
		t.Errorf("transaction_type = %q, want order", txn.TransactionType)
	}
	if !txn.OrderID.Valid || txn.OrderID.Bytes != orderID {
		t.Error("transaction should reference the order")
	}
	if got := store.products[productID].Quantity; got != 7 {
		t.Errorf("projection = %d, want 7", got)
	}
}

func TestDeductInsufficientStock(t *testing.T) {
	store := newMockStore()
	productID := store.addProduct("Fabric Softener", 10)

	_, err := Deduct(context.Background(), store, productID, 1000000, uuid.New(), pgtype.UUID{})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	var stockErr *StockError
	if !errors.As(err, &stockErr) {
		t.Fatal("expected *StockError")
	}
	if stockErr.Requested != 1000000 || stockErr.Available != 10 {
		t.Errorf("shortfall detail = %+v", stockErr)
	}

	// No mutation on failure.
	if got := store.products[productID].Quantity; got != 10 {
		t.Errorf("projection changed on failed deduct: %d", got)
	}
	if len(store.txns) != 0 {
		t.Errorf("transaction written on failed deduct")
	}
}

func TestDeductProductNotFound(t *testing.T) {
	store := newMockStore()
	_, err := Deduct(context.Background(), store, uuid.New(), 1, uuid.New(), pgtype.UUID{})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestDeductInvalidQuantity(t *testing.T) {
	store := newMockStore()
	productID := store.addProduct("Bleach", 5)
	for _, qty := range []int32{0, -4} {
		if _, err := Deduct(context.Background(), store, productID, qty, uuid.New(), pgtype.UUID{}); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("qty %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
}

func TestRestoreCompensatesDeduction(t *testing.T) {
	store := newMockStore()
	productID := store.addProduct("Detergent Sachet", 10)
	orderID := uuid.New()

	if _, err := Deduct(context.Background(), store, productID, 4, orderID, pgtype.UUID{}); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	txn, err := Restore(context.Background(), store, productID, 4, orderID, "order rejected", pgtype.UUID{})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if txn.TransactionType != enum.TxnTypeReturn {
		t.Errorf("transaction_type = %q, want return", txn.TransactionType)
	}
	if got := store.products[productID].Quantity; got != 10 {
		t.Errorf("projection = %d, want 10", got)
	}
	if sum := store.ledgerSum(productID); sum != 0 {
		t.Errorf("ledger sum = %d, want 0", sum)
	}
}

func TestRestoreOrderCollectsFailures(t *testing.T) {
	store := newMockStore()
	okProduct := store.addProduct("Detergent Sachet", 10)
	goneProduct := store.addProduct("Discontinued Soap", 10)
	orderID := uuid.New()

	if _, err := Deduct(context.Background(), store, okProduct, 2, orderID, pgtype.UUID{}); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if _, err := Deduct(context.Background(), store, goneProduct, 1, orderID, pgtype.UUID{}); err != nil {
		t.Fatalf("deduct: %v", err)
	}

	// Deactivate one product so its restoration fails.
	p := store.products[goneProduct]
	p.IsActive = false
	store.products[goneProduct] = p

	deductions := []database.OrderDeduction{
		{ProductID: okProduct, QuantityChange: -2},
		{ProductID: goneProduct, QuantityChange: -1},
	}

	failed := RestoreOrder(context.Background(), store, orderID, deductions, "order cancelled", pgtype.UUID{})
	if len(failed) != 1 || failed[0] != goneProduct {
		t.Errorf("failed = %v, want [%s]", failed, goneProduct)
	}
	if got := store.products[okProduct].Quantity; got != 10 {
		t.Errorf("surviving product not restored: %d", got)
	}
}

func TestAdjust(t *testing.T) {
	store := newMockStore()
	productID := store.addProduct("Laundry Bag", 5)

	txn, err := Adjust(context.Background(), store, productID, 3, "add", "stock count", pgtype.UUID{})
	if err != nil {
		t.Fatalf("adjust add: %v", err)
	}
	if txn.QuantityChange != 3 || txn.TransactionType != enum.TxnTypeAdjustment {
		t.Errorf("unexpected transaction %+v", txn)
	}
	if got := store.products[productID].Quantity; got != 8 {
		t.Errorf("projection = %d, want 8", got)
	}

	if _, err := Adjust(context.Background(), store, productID, 2, "subtract", "", pgtype.UUID{}); err != nil {
		t.Fatalf("adjust subtract: %v", err)
	}
	if got := store.products[productID].Quantity; got != 6 {
		t.Errorf("projection = %d, want 6", got)
	}

	if _, err := Adjust(context.Background(), store, productID, 100, "subtract", "", pgtype.UUID{}); !errors.Is(err, ErrNegativeStock) {
		t.Errorf("expected ErrNegativeStock, got %v", err)
	}
	if got := store.products[productID].Quantity; got != 6 {
		t.Errorf("projection changed on failed adjust: %d", got)
	}
}
