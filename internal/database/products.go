package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, name, sku, price, quantity, is_active, created_at, updated_at`

func scanProduct(row scanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Sku, &p.Price, &p.Quantity,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type CreateProductParams struct {
	Name     string
	Sku      pgtype.Text
	Price    pgtype.Numeric
	Quantity int32
}

const createProduct = `
INSERT INTO products (name, sku, price, quantity)
VALUES ($1, $2, $3, $4)
RETURNING ` + productColumns

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct, arg.Name, arg.Sku, arg.Price, arg.Quantity))
}

const getProduct = `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND is_active`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

// GetProductForUpdate locks the product row for the duration of a ledger
// mutation.
const getProductForUpdate = `
SELECT ` + productColumns + ` FROM products WHERE id = $1 AND is_active FOR NO KEY UPDATE`

func (q *Queries) GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductForUpdate, id))
}

type ListProductsParams struct {
	Search pgtype.Text
	Limit  int32
	Offset int32
}

const listProducts = `
SELECT ` + productColumns + ` FROM products
WHERE is_active AND ($1::text IS NULL OR name ILIKE '%' || $1 || '%' OR sku ILIKE '%' || $1 || '%')
ORDER BY name
LIMIT $2 OFFSET $3`

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

type UpdateProductParams struct {
	ID    uuid.UUID
	Name  string
	Sku   pgtype.Text
	Price pgtype.Numeric
}

// Quantity is deliberately absent: stock only moves through the ledger.
const updateProduct = `
UPDATE products SET name = $2, sku = $3, price = $4, updated_at = now()
WHERE id = $1 AND is_active
RETURNING ` + productColumns

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct, arg.ID, arg.Name, arg.Sku, arg.Price))
}

const softDeleteProduct = `
UPDATE products SET is_active = FALSE, updated_at = now()
WHERE id = $1 AND is_active
RETURNING id`

func (q *Queries) SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteProduct, id).Scan(&out)
	return out, err
}

type AdjustProductQuantityParams struct {
	ID    uuid.UUID
	Delta int32
}

// AdjustProductQuantity applies a stock delta atomically. The WHERE clause
// refuses any change that would drive quantity negative, surfacing as
// pgx.ErrNoRows.
const adjustProductQuantity = `
UPDATE products SET quantity = quantity + $2, updated_at = now()
WHERE id = $1 AND is_active AND quantity + $2 >= 0
RETURNING ` + productColumns

func (q *Queries) AdjustProductQuantity(ctx context.Context, arg AdjustProductQuantityParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, adjustProductQuantity, arg.ID, arg.Delta))
}

// ── Inventory transaction log ──

const productTransactionColumns = `id, product_id, order_id, quantity_change, transaction_type, note, created_by, created_at`

func scanProductTransaction(row scanner) (ProductTransaction, error) {
	var t ProductTransaction
	err := row.Scan(&t.ID, &t.ProductID, &t.OrderID, &t.QuantityChange,
		&t.TransactionType, &t.Note, &t.CreatedBy, &t.CreatedAt)
	return t, err
}

type CreateProductTransactionParams struct {
	ProductID       uuid.UUID
	OrderID         pgtype.UUID
	QuantityChange  int32
	TransactionType string
	Note            pgtype.Text
	CreatedBy       pgtype.UUID
}

const createProductTransaction = `
INSERT INTO product_transactions (product_id, order_id, quantity_change, transaction_type, note, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + productTransactionColumns

func (q *Queries) CreateProductTransaction(ctx context.Context, arg CreateProductTransactionParams) (ProductTransaction, error) {
	return scanProductTransaction(q.db.QueryRow(ctx, createProductTransaction,
		arg.ProductID, arg.OrderID, arg.QuantityChange, arg.TransactionType, arg.Note, arg.CreatedBy))
}

type ListProductTransactionsParams struct {
	ProductID pgtype.UUID
	Limit     int32
}

const listProductTransactions = `
SELECT ` + productTransactionColumns + ` FROM product_transactions
WHERE ($1::uuid IS NULL OR product_id = $1)
ORDER BY created_at DESC
LIMIT $2`

func (q *Queries) ListProductTransactions(ctx context.Context, arg ListProductTransactionsParams) ([]ProductTransaction, error) {
	rows, err := q.db.Query(ctx, listProductTransactions, arg.ProductID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProductTransaction
	for rows.Next() {
		t, err := scanProductTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// OrderDeduction is the stock an order still holds for one product: its
// 'order' deductions netted against any compensating 'return' rows already
// written (a modify reverses its own deductions, so those must not be
// restored twice). QuantityChange is negative while anything is outstanding.
type OrderDeduction struct {
	ProductID      uuid.UUID
	QuantityChange int32
}

const listOrderDeductions = `
SELECT product_id, SUM(quantity_change)::int
FROM product_transactions
WHERE order_id = $1 AND transaction_type IN ('order', 'return')
GROUP BY product_id
HAVING SUM(quantity_change) < 0
ORDER BY product_id`

func (q *Queries) ListOrderDeductions(ctx context.Context, orderID uuid.UUID) ([]OrderDeduction, error) {
	rows, err := q.db.Query(ctx, listOrderDeductions, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderDeduction
	for rows.Next() {
		var d OrderDeduction
		if err := rows.Scan(&d.ProductID, &d.QuantityChange); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
