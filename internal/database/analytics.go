package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type GetOrderStatsParams struct {
	StartDate time.Time
	EndDate   time.Time
}

type GetOrderStatsRow struct {
	TotalOrders     int64
	CompletedOrders int64
	CancelledOrders int64
	TotalRevenue    pgtype.Numeric
}

const getOrderStats = `
SELECT
	COUNT(*) AS total_orders,
	COUNT(*) FILTER (WHERE status = 'completed') AS completed_orders,
	COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled_orders,
	COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0) AS total_revenue
FROM orders
WHERE created_at >= $1 AND created_at < $2`

func (q *Queries) GetOrderStats(ctx context.Context, arg GetOrderStatsParams) (GetOrderStatsRow, error) {
	var r GetOrderStatsRow
	err := q.db.QueryRow(ctx, getOrderStats, arg.StartDate, arg.EndDate).
		Scan(&r.TotalOrders, &r.CompletedOrders, &r.CancelledOrders, &r.TotalRevenue)
	return r, err
}

type GetDailyRevenueParams struct {
	StartDate time.Time
	EndDate   time.Time
}

type GetDailyRevenueRow struct {
	Day          pgtype.Timestamptz
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

const getDailyRevenue = `
SELECT
	date_trunc('day', completed_at) AS day,
	COUNT(*) AS order_count,
	COALESCE(SUM(total_amount), 0) AS total_revenue
FROM orders
WHERE status = 'completed' AND completed_at >= $1 AND completed_at < $2
GROUP BY 1
ORDER BY 1`

func (q *Queries) GetDailyRevenue(ctx context.Context, arg GetDailyRevenueParams) ([]GetDailyRevenueRow, error) {
	rows, err := q.db.Query(ctx, getDailyRevenue, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailyRevenueRow
	for rows.Next() {
		var r GetDailyRevenueRow
		if err := rows.Scan(&r.Day, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type GetTopProductsParams struct {
	StartDate time.Time
	EndDate   time.Time
	Limit     int32
}

type GetTopProductsRow struct {
	ProductID    uuid.UUID
	ProductName  string
	QuantitySold int64
}

// Sales volume is derived from the ledger: 'order' deductions net of 'return'
// compensations tied to the same order.
const getTopProducts = `
SELECT
	p.id AS product_id,
	p.name AS product_name,
	COALESCE(-SUM(t.quantity_change), 0) AS quantity_sold
FROM product_transactions t
JOIN products p ON p.id = t.product_id
WHERE t.transaction_type IN ('order', 'return')
  AND t.created_at >= $1 AND t.created_at < $2
GROUP BY p.id, p.name
HAVING COALESCE(-SUM(t.quantity_change), 0) > 0
ORDER BY quantity_sold DESC
LIMIT $3`

func (q *Queries) GetTopProducts(ctx context.Context, arg GetTopProductsParams) ([]GetTopProductsRow, error) {
	rows, err := q.db.Query(ctx, getTopProducts, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetTopProductsRow
	for rows.Next() {
		var r GetTopProductsRow
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.QuantitySold); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type GetTopCustomersParams struct {
	StartDate time.Time
	EndDate   time.Time
	Limit     int32
}

type GetTopCustomersRow struct {
	CustomerID    uuid.UUID
	CustomerName  string
	OrderCount    int64
	TotalSpend    pgtype.Numeric
	LoyaltyPoints int32
}

const getTopCustomers = `
SELECT
	c.id AS customer_id,
	c.name AS customer_name,
	COUNT(o.id) AS order_count,
	COALESCE(SUM(o.total_amount), 0) AS total_spend,
	c.loyalty_points
FROM orders o
JOIN customers c ON c.id = o.customer_id
WHERE o.status = 'completed' AND o.created_at >= $1 AND o.created_at < $2
GROUP BY c.id, c.name, c.loyalty_points
ORDER BY total_spend DESC
LIMIT $3`

func (q *Queries) GetTopCustomers(ctx context.Context, arg GetTopCustomersParams) ([]GetTopCustomersRow, error) {
	rows, err := q.db.Query(ctx, getTopCustomers, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetTopCustomersRow
	for rows.Next() {
		var r GetTopCustomersRow
		if err := rows.Scan(&r.CustomerID, &r.CustomerName, &r.OrderCount, &r.TotalSpend, &r.LoyaltyPoints); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
