package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, name, phone, email, address, loyalty_points, device_token, is_active, created_at, updated_at`

func scanCustomer(row scanner) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address,
		&c.LoyaltyPoints, &c.DeviceToken, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type CreateCustomerParams struct {
	Name        string
	Phone       string
	Email       pgtype.Text
	Address     pgtype.Text
	DeviceToken pgtype.Text
}

const createCustomer = `
INSERT INTO customers (name, phone, email, address, device_token)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + customerColumns

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, createCustomer,
		arg.Name, arg.Phone, arg.Email, arg.Address, arg.DeviceToken))
}

const getCustomer = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND is_active`

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomer, id))
}

const getCustomerByPhone = `SELECT ` + customerColumns + ` FROM customers WHERE phone = $1 AND is_active`

func (q *Queries) GetCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomerByPhone, phone))
}

type ListCustomersParams struct {
	Search pgtype.Text
	Limit  int32
	Offset int32
}

const listCustomers = `
SELECT ` + customerColumns + ` FROM customers
WHERE is_active AND ($1::text IS NULL OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%')
ORDER BY name
LIMIT $2 OFFSET $3`

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listCustomers, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

type UpdateCustomerParams struct {
	ID          uuid.UUID
	Name        string
	Phone       string
	Email       pgtype.Text
	Address     pgtype.Text
	DeviceToken pgtype.Text
}

const updateCustomer = `
UPDATE customers SET name = $2, phone = $3, email = $4, address = $5, device_token = $6, updated_at = now()
WHERE id = $1 AND is_active
RETURNING ` + customerColumns

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, updateCustomer,
		arg.ID, arg.Name, arg.Phone, arg.Email, arg.Address, arg.DeviceToken))
}

const softDeleteCustomer = `
UPDATE customers SET is_active = FALSE, updated_at = now()
WHERE id = $1 AND is_active
RETURNING id`

func (q *Queries) SoftDeleteCustomer(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteCustomer, id).Scan(&out)
	return out, err
}

type AdjustLoyaltyPointsParams struct {
	ID    uuid.UUID
	Delta int32
}

// AdjustLoyaltyPoints applies a point delta clamped at zero.
const adjustLoyaltyPoints = `
UPDATE customers SET loyalty_points = GREATEST(loyalty_points + $2, 0), updated_at = now()
WHERE id = $1
RETURNING ` + customerColumns

func (q *Queries) AdjustLoyaltyPoints(ctx context.Context, arg AdjustLoyaltyPointsParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, adjustLoyaltyPoints, arg.ID, arg.Delta))
}
