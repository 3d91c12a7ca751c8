// Package inventory is the only write path for product stock. Every change
// appends a product_transactions row and applies the matching atomic delta to
// the product's quantity projection in the same database transaction, so the
// projection can never drift from the log.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/enum"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNegativeStock     = errors.New("adjustment would drive stock negative")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
)

// StockError carries the shortfall details for an InsufficientStock failure.
type StockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int32
	Available   int32
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Store defines the database methods the ledger needs. Satisfied by
// *database.Queries; callers running inside a transaction pass the
// tx-scoped Queries.
type Store interface {
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (database.Product, error)
	AdjustProductQuantity(ctx context.Context, arg database.AdjustProductQuantityParams) (database.Product, error)
	CreateProductTransaction(ctx context.Context, arg database.CreateProductTransactionParams) (database.ProductTransaction, error)
}

// Deduct consumes stock for an order line item: one negative 'order' row plus
// the projection decrement.
func Deduct(ctx context.Context, s Store, productID uuid.UUID, quantity int32, orderID uuid.UUID, actor pgtype.UUID) (database.ProductTransaction, error) {
	if quantity <= 0 {
		return database.ProductTransaction{}, ErrInvalidQuantity
	}

	product, err := s.GetProductForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ProductTransaction{}, ErrProductNotFound
		}
		return database.ProductTransaction{}, fmt.Errorf("get product: %w", err)
	}

	if product.Quantity < quantity {
		return database.ProductTransaction{}, &StockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   quantity,
			Available:   product.Quantity,
		}
	}

	if _, err := s.AdjustProductQuantity(ctx, database.AdjustProductQuantityParams{
		ID:    productID,
		Delta: -quantity,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race despite the lock; treat as shortfall.
			return database.ProductTransaction{}, &StockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   quantity,
				Available:   product.Quantity,
			}
		}
		return database.ProductTransaction{}, fmt.Errorf("adjust quantity: %w", err)
	}

	return s.CreateProductTransaction(ctx, database.CreateProductTransactionParams{
		ProductID:       productID,
		OrderID:         pgtype.UUID{Bytes: orderID, Valid: true},
		QuantityChange:  -quantity,
		TransactionType: enum.TxnTypeOrder,
		CreatedBy:       actor,
	})
}

// Restore writes a positive compensating 'return' row for a prior deduction.
func Restore(ctx context.Context, s Store, productID uuid.UUID, quantity int32, orderID uuid.UUID, note string, actor pgtype.UUID) (database.ProductTransaction, error) {
	if quantity <= 0 {
		return database.ProductTransaction{}, ErrInvalidQuantity
	}

	if _, err := s.AdjustProductQuantity(ctx, database.AdjustProductQuantityParams{
		ID:    productID,
		Delta: quantity,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ProductTransaction{}, ErrProductNotFound
		}
		return database.ProductTransaction{}, fmt.Errorf("adjust quantity: %w", err)
	}

	noteText := pgtype.Text{}
	if note != "" {
		noteText = pgtype.Text{String: note, Valid: true}
	}
	return s.CreateProductTransaction(ctx, database.CreateProductTransactionParams{
		ProductID:       productID,
		OrderID:         pgtype.UUID{Bytes: orderID, Valid: true},
		QuantityChange:  quantity,
		TransactionType: enum.TxnTypeReturn,
		Note:            noteText,
		CreatedBy:       actor,
	})
}

// RestoreOrder reverses an order's outstanding deductions, best-effort: a
// failed item is logged and collected, never propagated, so the caller's
// cancel or reject still succeeds. Returns the product IDs that could not be
// restored.
func RestoreOrder(ctx context.Context, s Store, orderID uuid.UUID, deductions []database.OrderDeduction, note string, actor pgtype.UUID) []uuid.UUID {
	var failed []uuid.UUID
	for _, d := range deductions {
		if _, err := Restore(ctx, s, d.ProductID, -d.QuantityChange, orderID, note, actor); err != nil {
			log.Printf("ERROR: restore inventory for product %s: %v", d.ProductID, err)
			failed = append(failed, d.ProductID)
		}
	}
	return failed
}

// Adjust applies a manual stock correction.
func Adjust(ctx context.Context, s Store, productID uuid.UUID, amount int32, direction string, note string, actor pgtype.UUID) (database.ProductTransaction, error) {
	if amount <= 0 {
		return database.ProductTransaction{}, ErrInvalidQuantity
	}

	delta := amount
	if direction == "subtract" {
		delta = -amount
	} else if direction != "add" {
		return database.ProductTransaction{}, fmt.Errorf("invalid direction %q", direction)
	}

	if _, err := s.GetProductForUpdate(ctx, productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ProductTransaction{}, ErrProductNotFound
		}
		return database.ProductTransaction{}, fmt.Errorf("get product: %w", err)
	}

	if _, err := s.AdjustProductQuantity(ctx, database.AdjustProductQuantityParams{
		ID:    productID,
		Delta: delta,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ProductTransaction{}, ErrNegativeStock
		}
		return database.ProductTransaction{}, fmt.Errorf("adjust quantity: %w", err)
	}

	noteText := pgtype.Text{}
	if note != "" {
		noteText = pgtype.Text{String: note, Valid: true}
	}
	return s.CreateProductTransaction(ctx, database.CreateProductTransactionParams{
		ProductID:       productID,
		QuantityChange:  delta,
		TransactionType: enum.TxnTypeAdjustment,
		Note:            noteText,
		CreatedBy:       actor,
	})
}
