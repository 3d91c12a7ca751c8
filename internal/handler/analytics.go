package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lavandera/api/internal/authz"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/middleware"
)

// AnalyticsStore defines the reporting queries. Satisfied by
// *database.Queries.
type AnalyticsStore interface {
	GetOrderStats(ctx context.Context, arg database.GetOrderStatsParams) (database.GetOrderStatsRow, error)
	GetDailyRevenue(ctx context.Context, arg database.GetDailyRevenueParams) ([]database.GetDailyRevenueRow, error)
	GetTopProducts(ctx context.Context, arg database.GetTopProductsParams) ([]database.GetTopProductsRow, error)
	GetTopCustomers(ctx context.Context, arg database.GetTopCustomersParams) ([]database.GetTopCustomersRow, error)
}

// AnalyticsHandler serves business reporting endpoints. All ranges default to
// the last 30 days.
type AnalyticsHandler struct {
	store AnalyticsStore
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(store AnalyticsStore) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

// RegisterRoutes registers analytics endpoints on the given Chi router.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Require(authz.ResourceAnalytics, authz.ActionRead))
	r.Get("/stats", h.Stats)
	r.Get("/daily-revenue", h.DailyRevenue)
	r.Get("/top-products", h.TopProducts)
	r.Get("/top-customers", h.TopCustomers)
}

// --- Response types ---

type orderStatsResponse struct {
	TotalOrders     int64  `json:"total_orders"`
	CompletedOrders int64  `json:"completed_orders"`
	CancelledOrders int64  `json:"cancelled_orders"`
	TotalRevenue    string `json:"total_revenue"`
}

type dailyRevenueResponse struct {
	Day          string `json:"day"`
	OrderCount   int64  `json:"order_count"`
	TotalRevenue string `json:"total_revenue"`
}

type topProductResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	QuantitySold int64     `json:"quantity_sold"`
}

type topCustomerResponse struct {
	CustomerID    uuid.UUID `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	OrderCount    int64     `json:"order_count"`
	TotalSpend    string    `json:"total_spend"`
	LoyaltyPoints int32     `json:"loyalty_points"`
}

// topLimit reads the optional result-count parameter.
func topLimit(r *http.Request) int32 {
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 50 {
		limit = 50
	}
	return int32(limit)
}

// --- Handlers ---

// Stats returns order counts and completed revenue for the range.
func (h *AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	stats, err := h.store.GetOrderStats(r.Context(), database.GetOrderStatsParams{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		log.Printf("ERROR: get order stats: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, orderStatsResponse{
		TotalOrders:     stats.TotalOrders,
		CompletedOrders: stats.CompletedOrders,
		CancelledOrders: stats.CancelledOrders,
		TotalRevenue:    numericString(stats.TotalRevenue),
	})
}

// DailyRevenue returns per-day completed revenue for the range.
func (h *AnalyticsHandler) DailyRevenue(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	rows, err := h.store.GetDailyRevenue(r.Context(), database.GetDailyRevenueParams{
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		log.Printf("ERROR: get daily revenue: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]dailyRevenueResponse, len(rows))
	for i, row := range rows {
		day := ""
		if row.Day.Valid {
			day = row.Day.Time.Format("2006-01-02")
		}
		resp[i] = dailyRevenueResponse{
			Day:          day,
			OrderCount:   row.OrderCount,
			TotalRevenue: numericString(row.TotalRevenue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// TopProducts returns the best-selling retail products for the range.
func (h *AnalyticsHandler) TopProducts(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	rows, err := h.store.GetTopProducts(r.Context(), database.GetTopProductsParams{
		StartDate: start,
		EndDate:   end,
		Limit:     topLimit(r),
	})
	if err != nil {
		log.Printf("ERROR: get top products: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]topProductResponse, len(rows))
	for i, row := range rows {
		resp[i] = topProductResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			QuantitySold: row.QuantitySold,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// TopCustomers returns the highest-spending customers for the range.
func (h *AnalyticsHandler) TopCustomers(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	rows, err := h.store.GetTopCustomers(r.Context(), database.GetTopCustomersParams{
		StartDate: start,
		EndDate:   end,
		Limit:     topLimit(r),
	})
	if err != nil {
		log.Printf("ERROR: get top customers: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]topCustomerResponse, len(rows))
	for i, row := range rows {
		resp[i] = topCustomerResponse{
			CustomerID:    row.CustomerID,
			CustomerName:  row.CustomerName,
			OrderCount:    row.OrderCount,
			TotalSpend:    numericString(row.TotalSpend),
			LoyaltyPoints: row.LoyaltyPoints,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
