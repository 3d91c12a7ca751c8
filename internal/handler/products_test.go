package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/enum"
	"github.com/lavandera/api/internal/handler"
	"github.com/lavandera/api/internal/middleware"
)

type mockProductStore struct {
	listFn   func(arg database.ListProductsParams) ([]database.Product, error)
	getFn    func(id uuid.UUID) (database.Product, error)
	createFn func(arg database.CreateProductParams) (database.Product, error)
	updateFn func(arg database.UpdateProductParams) (database.Product, error)
	deleteFn func(id uuid.UUID) (uuid.UUID, error)
}

func (m *mockProductStore) ListProducts(_ context.Context, arg database.ListProductsParams) ([]database.Product, error) {
	if m.listFn != nil {
		return m.listFn(arg)
	}
	return nil, nil
}

func (m *mockProductStore) GetProduct(_ context.Context, id uuid.UUID) (database.Product, error) {
	if m.getFn != nil {
		return m.getFn(id)
	}
	return database.Product{}, pgx.ErrNoRows
}

func (m *mockProductStore) CreateProduct(_ context.Context, arg database.CreateProductParams) (database.Product, error) {
	if m.createFn != nil {
		return m.createFn(arg)
	}
	return database.Product{}, pgx.ErrNoRows
}

func (m *mockProductStore) UpdateProduct(_ context.Context, arg database.UpdateProductParams) (database.Product, error) {
	if m.updateFn != nil {
		return m.updateFn(arg)
	}
	return database.Product{}, pgx.ErrNoRows
}

func (m *mockProductStore) SoftDeleteProduct(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if m.deleteFn != nil {
		return m.deleteFn(id)
	}
	return uuid.Nil, pgx.ErrNoRows
}

func setupProductRouter(store *mockProductStore) *chi.Mux {
	h := handler.NewProductHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/products", h.RegisterRoutes)
	return r
}

func TestProductCreate(t *testing.T) {
	var captured database.CreateProductParams
	store := &mockProductStore{
		createFn: func(arg database.CreateProductParams) (database.Product, error) {
			captured = arg
			return database.Product{
				ID:        uuid.New(),
				Name:      arg.Name,
				Sku:       arg.Sku,
				Price:     arg.Price,
				Quantity:  arg.Quantity,
				IsActive:  true,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		},
	}
	router := setupProductRouter(store)

	body := map[string]any{"name": "Detergent Sachet", "sku": "DET-001", "price": "25.5", "quantity": 100}
	rr := doAuthRequest(t, router, http.MethodPost, "/products", body, adminClaims())
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeObject(t, rr)
	// Price normalizes to two decimals on the way in and back out.
	if resp["price"] != "25.50" {
		t.Errorf("price = %v, want 25.50", resp["price"])
	}
	if !captured.Sku.Valid || captured.Sku.String != "DET-001" {
		t.Errorf("sku = %+v", captured.Sku)
	}
}

func TestProductCreateValidation(t *testing.T) {
	router := setupProductRouter(&mockProductStore{})

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"price": "25.00", "quantity": 10}},
		{"negative quantity", map[string]any{"name": "Bleach", "price": "18.00", "quantity": -1}},
		{"negative price", map[string]any{"name": "Bleach", "price": "-18.00", "quantity": 10}},
		{"malformed price", map[string]any{"name": "Bleach", "price": "cheap", "quantity": 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doAuthRequest(t, router, http.MethodPost, "/products", tc.body, adminClaims())
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestProductCreateDuplicateSKU(t *testing.T) {
	store := &mockProductStore{
		createFn: func(arg database.CreateProductParams) (database.Product, error) {
			return database.Product{}, &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"}
		},
	}
	router := setupProductRouter(store)

	body := map[string]any{"name": "Detergent Sachet", "sku": "DET-001", "price": "25.00", "quantity": 1}
	rr := doAuthRequest(t, router, http.MethodPost, "/products", body, adminClaims())
	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rr.Code)
	}
}

func TestProductUpdateLeavesQuantityAlone(t *testing.T) {
	id := uuid.New()
	var captured database.UpdateProductParams
	store := &mockProductStore{
		updateFn: func(arg database.UpdateProductParams) (database.Product, error) {
			captured = arg
			return database.Product{ID: arg.ID, Name: arg.Name, Sku: arg.Sku, Price: arg.Price, Quantity: 77, IsActive: true}, nil
		},
	}
	router := setupProductRouter(store)

	// The quantity field in the body is ignored; stock moves only through the
	// inventory ledger.
	body := map[string]any{"name": "Detergent Sachet", "sku": "DET-001", "price": "27.00", "quantity": 5}
	rr := doAuthRequest(t, router, http.MethodPut, "/products/"+id.String(), body, adminClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ID != id {
		t.Errorf("id = %s, want %s", captured.ID, id)
	}
	resp := decodeObject(t, rr)
	if resp["quantity"] != float64(77) {
		t.Errorf("quantity = %v, want stored value 77", resp["quantity"])
	}
}

func TestProductCashierReadOnly(t *testing.T) {
	store := &mockProductStore{
		listFn: func(arg database.ListProductsParams) ([]database.Product, error) { return nil, nil },
	}
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, http.MethodGet, "/products", nil, roleClaims(enum.StaffRoleCashier))
	if rr.Code != http.StatusOK {
		t.Errorf("cashier list: expected 200, got %d", rr.Code)
	}

	body := map[string]any{"name": "Bleach", "price": "18.00", "quantity": 10}
	rr = doAuthRequest(t, router, http.MethodPost, "/products", body, roleClaims(enum.StaffRoleCashier))
	if rr.Code != http.StatusForbidden {
		t.Errorf("cashier create: expected 403, got %d", rr.Code)
	}
}

func TestProductDeleteNotFound(t *testing.T) {
	router := setupProductRouter(&mockProductStore{})

	rr := doAuthRequest(t, router, http.MethodDelete, "/products/"+uuid.New().String(), nil, adminClaims())
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
