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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavandera/api/internal/authz"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/inventory"
	"github.com/lavandera/api/internal/middleware"
	"github.com/lavandera/api/internal/service"
)

// InventoryReadStore lists ledger history. Satisfied by *database.Queries.
type InventoryReadStore interface {
	ListProductTransactions(ctx context.Context, arg database.ListProductTransactionsParams) ([]database.ProductTransaction, error)
}

// NewInventoryStore builds a tx-scoped ledger store. In production this is
// database.New over the transaction.
type NewInventoryStore func(db database.DBTX) inventory.Store

// InventoryHandler exposes the stock ledger: history reads and manual
// adjustments. Adjustments open their own transaction so the ledger row and
// the quantity projection commit together.
type InventoryHandler struct {
	store    InventoryReadStore
	pool     service.TxBeginner
	newStore NewInventoryStore
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(store InventoryReadStore, pool service.TxBeginner, newStore NewInventoryStore) *InventoryHandler {
	return &InventoryHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers inventory endpoints on the given Chi router.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.Require(authz.ResourceInventory, authz.ActionRead)).Get("/transactions", h.Transactions)
	r.With(middleware.Require(authz.ResourceInventory, authz.ActionWrite)).Post("/adjust", h.Adjust)
}

// --- Request / Response types ---

type adjustInventoryRequest struct {
	ProductID string `json:"product_id"`
	Amount    int32  `json:"amount"`
	Direction string `json:"direction"`
	Note      string `json:"note"`
}

type transactionResponse struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	OrderID         *string   `json:"order_id"`
	QuantityChange  int32     `json:"quantity_change"`
	TransactionType string    `json:"transaction_type"`
	Note            *string   `json:"note"`
	CreatedBy       *string   `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

func toTransactionResponse(t database.ProductTransaction) transactionResponse {
	return transactionResponse{
		ID:              t.ID,
		ProductID:       t.ProductID,
		OrderID:         uuidPtr(t.OrderID),
		QuantityChange:  t.QuantityChange,
		TransactionType: t.TransactionType,
		Note:            textPtr(t.Note),
		CreatedBy:       uuidPtr(t.CreatedBy),
		CreatedAt:       t.CreatedAt,
	}
}

// --- Handlers ---

// Transactions returns recent ledger rows, newest first, optionally filtered
// to one product.
func (h *InventoryHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}

	var productID pgtype.UUID
	if s := r.URL.Query().Get("product_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid product ID")
			return
		}
		productID = pgtype.UUID{Bytes: id, Valid: true}
	}

	txns, err := h.store.ListProductTransactions(r.Context(), database.ListProductTransactionsParams{
		ProductID: productID,
		Limit:     int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: list product transactions: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]transactionResponse, len(txns))
	for i, t := range txns {
		resp[i] = toTransactionResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Adjust applies a manual stock correction through the ledger.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}
	if req.Direction != "add" && req.Direction != "subtract" {
		writeError(w, http.StatusBadRequest, "direction must be add or subtract")
		return
	}

	var actor pgtype.UUID
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		actor = pgtype.UUID{Bytes: claims.StaffID, Valid: true}
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin adjust tx: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txn, err := inventory.Adjust(r.Context(), h.newStore(tx), productID, req.Amount, req.Direction, req.Note, actor)
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrProductNotFound):
			writeError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, inventory.ErrNegativeStock):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, inventory.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, "amount must be > 0")
		default:
			log.Printf("ERROR: adjust inventory: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit adjust tx: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(txn))
}
