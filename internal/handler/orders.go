package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavandera/api/internal/authz"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/enum"
	"github.com/lavandera/api/internal/fulfillment"
	"github.com/lavandera/api/internal/inventory"
	"github.com/lavandera/api/internal/middleware"
	"github.com/lavandera/api/internal/receipt"
	"github.com/lavandera/api/internal/service"
)

// OrderReadStore defines the read-only database methods used by the order
// endpoints. Satisfied by *database.Queries; narrow interface for testability.
type OrderReadStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListActiveOrders(ctx context.Context) ([]database.Order, error)
	ListBasketsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Basket, error)
	ListBasketServicesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.BasketService, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
}

// OrderHandler handles order creation, mutation, and fulfillment endpoints.
type OrderHandler struct {
	orders      *service.OrderService
	transitions *service.TransitionService
	store       OrderReadStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders *service.OrderService, transitions *service.TransitionService, store OrderReadStore) *OrderHandler {
	return &OrderHandler{orders: orders, transitions: transitions, store: store}
}

// RegisterRoutes registers order endpoints on the given Chi router, each
// gated on the matching orders capability.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	read := middleware.Require(authz.ResourceOrders, authz.ActionRead)
	write := middleware.Require(authz.ResourceOrders, authz.ActionWrite)
	advance := middleware.Require(authz.ResourceOrders, authz.ActionAdvance)
	manage := middleware.Require(authz.ResourceOrders, authz.ActionManage)

	r.With(write).Post("/", h.Create)
	r.With(read).Get("/", h.List)
	r.With(read).Get("/active", h.ListActive)
	r.Route("/{id}", func(r chi.Router) {
		r.With(read).Get("/", h.Get)
		r.With(read).Get("/receipt", h.Receipt)
		r.With(manage).Patch("/modify", h.Modify)
		r.With(manage).Post("/reject", h.Reject)
		r.With(manage).Post("/cancel", h.Cancel)
		r.With(advance).Patch("/basket/{basketNumber}/service", h.AdvanceService)
		r.With(advance).Patch("/handling", h.AdvanceHandling)
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	Source          string          `json:"source"`
	CustomerID      string          `json:"customer_id"`
	Customer        *customerInline `json:"customer"`
	Baskets         []basketRequest `json:"baskets"`
	Items           []itemRequest   `json:"items"`
	Fees            string          `json:"fees"`
	PickupAddress   string          `json:"pickup_address"`
	DeliveryAddress string          `json:"delivery_address"`
	Payment         *paymentRequest `json:"payment"`
}

type customerInline struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type basketRequest struct {
	Weight   string   `json:"weight"`
	Price    string   `json:"price"`
	Notes    string   `json:"notes"`
	Services []string `json:"services"`
}

type itemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type paymentRequest struct {
	Method         string `json:"method"`
	AmountReceived string `json:"amount_received"`
}

type modifyOrderRequest struct {
	Baskets         []basketRequest `json:"baskets"`
	Items           []itemRequest   `json:"items"`
	Fees            string          `json:"fees"`
	PickupAddress   string          `json:"pickup_address"`
	DeliveryAddress string          `json:"delivery_address"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type advanceServiceRequest struct {
	ServiceType string `json:"service_type"`
	Action      string `json:"action"`
	Notes       string `json:"notes"`
}

type advanceHandlingRequest struct {
	Stage  string `json:"stage"`
	Action string `json:"action"`
}

type orderResponse struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"order_number"`
	Source          string          `json:"source"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	CashierID       *string         `json:"cashier_id"`
	Status          string          `json:"status"`
	Subtotal        string          `json:"subtotal"`
	Fees            string          `json:"fees"`
	TotalAmount     string          `json:"total_amount"`
	Breakdown       json.RawMessage `json:"breakdown,omitempty"`
	PickupAddress   *string         `json:"pickup_address"`
	PickupStatus    string          `json:"pickup_status"`
	DeliveryAddress *string         `json:"delivery_address"`
	DeliveryStatus  string          `json:"delivery_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	CancelledAt     *time.Time      `json:"cancelled_at"`
}

type basketResponse struct {
	BasketNumber int32                   `json:"basket_number"`
	Weight       string                  `json:"weight"`
	Price        string                  `json:"price"`
	Notes        *string                 `json:"notes"`
	Status       string                  `json:"status"`
	Services     []basketServiceResponse `json:"services"`
}

type basketServiceResponse struct {
	ServiceType string     `json:"service_type"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Notes       *string    `json:"notes"`
}

type orderDetailResponse struct {
	orderResponse
	Customer customerResponse `json:"customer"`
	Baskets  []basketResponse `json:"baskets"`
}

type createOrderResponse struct {
	orderResponse
	Customer customerResponse `json:"customer"`
	Baskets  []basketResponse `json:"baskets"`
	Receipt  string           `json:"receipt,omitempty"`
}

type mutationResponse struct {
	orderResponse
	FailedRestores []uuid.UUID `json:"failed_restores,omitempty"`
}

func toOrderResponse(o database.Order, includeBreakdown bool) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Source:          o.Source,
		CustomerID:      o.CustomerID,
		CashierID:       uuidPtr(o.CashierID),
		Status:          o.Status,
		Subtotal:        numericString(o.Subtotal),
		Fees:            numericString(o.Fees),
		TotalAmount:     numericString(o.TotalAmount),
		PickupAddress:   textPtr(o.PickupAddress),
		PickupStatus:    o.PickupStatus,
		DeliveryAddress: textPtr(o.DeliveryAddress),
		DeliveryStatus:  o.DeliveryStatus,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		CompletedAt:     timePtr(o.CompletedAt),
		CancelledAt:     timePtr(o.CancelledAt),
	}
	if includeBreakdown && len(o.Breakdown) > 0 {
		resp.Breakdown = json.RawMessage(o.Breakdown)
	}
	return resp
}

// assembleBaskets joins baskets with their service rows for a detail response.
func assembleBaskets(baskets []database.Basket, services []database.BasketService) []basketResponse {
	resp := make([]basketResponse, len(baskets))
	for i, b := range baskets {
		br := basketResponse{
			BasketNumber: b.BasketNumber,
			Weight:       numericString(b.Weight),
			Price:        numericString(b.Price),
			Notes:        textPtr(b.Notes),
			Status:       b.Status,
			Services:     []basketServiceResponse{},
		}
		for _, s := range services {
			if s.BasketNumber != b.BasketNumber {
				continue
			}
			br.Services = append(br.Services, basketServiceResponse{
				ServiceType: s.ServiceType,
				Status:      s.Status,
				StartedAt:   timePtr(s.StartedAt),
				CompletedAt: timePtr(s.CompletedAt),
				Notes:       textPtr(s.Notes),
			})
		}
		resp[i] = br
	}
	return resp
}

// writeOrderError maps service-layer failures to HTTP statuses.
func writeOrderError(w http.ResponseWriter, err error, op string) {
	var stockErr *inventory.StockError
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, service.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusPaymentRequired, stockErr.Error())
	case errors.Is(err, fulfillment.ErrInvalidTransition),
		errors.Is(err, service.ErrNotRejectable),
		errors.Is(err, service.ErrNotModifiable),
		errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrEmptyServices),
		errors.Is(err, service.ErrInvalidSource),
		errors.Is(err, service.ErrInvalidService),
		errors.Is(err, service.ErrInvalidStage),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidProductID),
		errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidWeight),
		errors.Is(err, service.ErrInvalidFees),
		errors.Is(err, service.ErrCustomerRequired),
		errors.Is(err, service.ErrInsufficientPayment):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// --- Handlers ---

// Create places a new order. POS requests carry the cashier from the JWT and
// get a printable receipt back; app and mobile requests are customer-placed.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcReq := service.CreateOrderRequest{
		Source:          req.Source,
		CustomerID:      req.CustomerID,
		Fees:            req.Fees,
		PickupAddress:   req.PickupAddress,
		DeliveryAddress: req.DeliveryAddress,
	}
	if req.Customer != nil {
		svcReq.Customer = &service.CustomerRequest{
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Email:   req.Customer.Email,
			Address: req.Customer.Address,
		}
	}
	for _, b := range req.Baskets {
		svcReq.Baskets = append(svcReq.Baskets, service.CreateBasketRequest{
			Weight:   b.Weight,
			Price:    b.Price,
			Notes:    b.Notes,
			Services: b.Services,
		})
	}
	for _, it := range req.Items {
		svcReq.Items = append(svcReq.Items, service.CreateItemRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}
	if req.Payment != nil {
		svcReq.Payment = &service.PaymentRequest{
			Method:         req.Payment.Method,
			AmountReceived: req.Payment.AmountReceived,
		}
	}
	if req.Source == enum.OrderSourcePOS {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		svcReq.CashierID = claims.StaffID
	}

	result, err := h.orders.CreateOrder(r.Context(), svcReq)
	if err != nil {
		writeOrderError(w, err, "create order")
		return
	}

	resp := createOrderResponse{
		orderResponse: toOrderResponse(result.Order, true),
		Customer:      toCustomerResponse(result.Customer),
		Baskets:       assembleBaskets(result.Baskets, result.Services),
	}
	if req.Source == enum.OrderSourcePOS {
		text, err := receipt.Render(result.Order, result.Customer)
		if err != nil {
			log.Printf("ERROR: render receipt for %s: %v", result.Order.OrderNumber, err)
		} else {
			resp.Receipt = text
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List returns orders filtered by status, source, and creation date range.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 20, 100)

	var status pgtype.Text
	if s := r.URL.Query().Get("status"); s != "" {
		normalized := enum.NormalizeOrderStatus(s)
		if normalized == "" {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		status = pgtype.Text{String: normalized, Valid: true}
	}

	var source pgtype.Text
	if s := r.URL.Query().Get("source"); s != "" {
		if !enum.IsOrderSource(s) {
			writeError(w, http.StatusBadRequest, "invalid source filter")
			return
		}
		source = pgtype.Text{String: s, Valid: true}
	}

	var startDate, endDate pgtype.Timestamptz
	if s := r.URL.Query().Get("startDate"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid startDate, expected YYYY-MM-DD")
			return
		}
		startDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("endDate"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endDate, expected YYYY-MM-DD")
			return
		}
		endDate = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		Status:    status,
		Source:    source,
		StartDate: startDate,
		EndDate:   endDate,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, false)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListActive returns all open orders with their per-basket service statuses,
// feeding the staff order board.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListActiveOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list active orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	type activeOrderResponse struct {
		orderResponse
		Baskets []basketResponse `json:"baskets"`
	}

	resp := make([]activeOrderResponse, len(orders))
	for i, o := range orders {
		baskets, err := h.store.ListBasketsByOrder(r.Context(), o.ID)
		if err != nil {
			log.Printf("ERROR: list baskets for %s: %v", o.OrderNumber, err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		services, err := h.store.ListBasketServicesByOrder(r.Context(), o.ID)
		if err != nil {
			log.Printf("ERROR: list services for %s: %v", o.OrderNumber, err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp[i] = activeOrderResponse{
			orderResponse: toOrderResponse(o, false),
			Baskets:       assembleBaskets(baskets, services),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single order with its customer, baskets, and services.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	customer, err := h.store.GetCustomer(r.Context(), order.CustomerID)
	if err != nil {
		log.Printf("ERROR: get customer for order %s: %v", order.OrderNumber, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	baskets, err := h.store.ListBasketsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list baskets: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	services, err := h.store.ListBasketServicesByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list basket services: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, orderDetailResponse{
		orderResponse: toOrderResponse(order, true),
		Customer:      toCustomerResponse(customer),
		Baskets:       assembleBaskets(baskets, services),
	})
}

// Receipt re-renders the printable receipt for an existing order, stamped as
// a reprint.
func (h *OrderHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order for receipt: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	customer, err := h.store.GetCustomer(r.Context(), order.CustomerID)
	if err != nil {
		log.Printf("ERROR: get customer for receipt: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	text, err := receipt.Reprint(order, customer, time.Now())
	if err != nil {
		log.Printf("ERROR: render reprint for %s: %v", order.OrderNumber, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"receipt": text})
}

// Modify replaces the contents of a pending mobile order.
func (h *OrderHandler) Modify(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req modifyOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcReq := service.ModifyOrderRequest{
		Fees:            req.Fees,
		PickupAddress:   req.PickupAddress,
		DeliveryAddress: req.DeliveryAddress,
	}
	for _, b := range req.Baskets {
		svcReq.Baskets = append(svcReq.Baskets, service.CreateBasketRequest{
			Weight:   b.Weight,
			Price:    b.Price,
			Notes:    b.Notes,
			Services: b.Services,
		})
	}
	for _, it := range req.Items {
		svcReq.Items = append(svcReq.Items, service.CreateItemRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}

	result, err := h.orders.ModifyOrder(r.Context(), orderID, staffID(r), svcReq)
	if err != nil {
		writeOrderError(w, err, "modify order")
		return
	}

	writeJSON(w, http.StatusOK, createOrderResponse{
		orderResponse: toOrderResponse(result.Order, true),
		Customer:      toCustomerResponse(result.Customer),
		Baskets:       assembleBaskets(result.Baskets, result.Services),
	})
}

// Reject declines a pending customer-placed order.
func (h *OrderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.tearDown(w, r, h.orders.RejectOrder, "reject order")
}

// Cancel cancels any open order.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.tearDown(w, r, h.orders.CancelOrder, "cancel order")
}

func (h *OrderHandler) tearDown(w http.ResponseWriter, r *http.Request,
	op func(context.Context, uuid.UUID, uuid.UUID, string) (*service.MutationResult, error), name string) {

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req reasonRequest
	if r.Body != nil {
		// A missing or empty body means no reason given.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := op(r.Context(), orderID, staffID(r), req.Reason)
	if err != nil {
		writeOrderError(w, err, name)
		return
	}

	writeJSON(w, http.StatusOK, mutationResponse{
		orderResponse:  toOrderResponse(result.Order, false),
		FailedRestores: result.FailedRestores,
	})
}

// AdvanceService starts, completes, or skips one basket service.
func (h *OrderHandler) AdvanceService(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}
	basketNumber, err := strconv.Atoi(chi.URLParam(r, "basketNumber"))
	if err != nil || basketNumber < 1 {
		writeError(w, http.StatusBadRequest, "invalid basket number")
		return
	}

	var req advanceServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.transitions.AdvanceService(r.Context(), orderID,
		int32(basketNumber), req.ServiceType, req.Action, staffID(r), req.Notes)
	if err != nil {
		writeOrderError(w, err, "advance service")
		return
	}

	resp := struct {
		orderResponse
		Service basketServiceResponse `json:"service"`
	}{orderResponse: toOrderResponse(result.Order, false)}
	if result.Service != nil {
		resp.Service = basketServiceResponse{
			ServiceType: result.Service.ServiceType,
			Status:      result.Service.Status,
			StartedAt:   timePtr(result.Service.StartedAt),
			CompletedAt: timePtr(result.Service.CompletedAt),
			Notes:       textPtr(result.Service.Notes),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// AdvanceHandling starts, completes, or skips the pickup or delivery phase.
func (h *OrderHandler) AdvanceHandling(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req advanceHandlingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.transitions.AdvanceHandling(r.Context(), orderID, req.Stage, req.Action, staffID(r))
	if err != nil {
		writeOrderError(w, err, "advance handling")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result.Order, false))
}

// staffID extracts the acting staff member from the request claims. Returns
// uuid.Nil when unauthenticated; routes behind Authenticate never see that.
func staffID(r *http.Request) uuid.UUID {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.StaffID
	}
	return uuid.Nil
}
