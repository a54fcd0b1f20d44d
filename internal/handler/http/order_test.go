package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimart/order-service/internal/domain"
	"github.com/minimart/order-service/internal/inventory"
	"github.com/minimart/order-service/internal/repository"
	"github.com/minimart/order-service/internal/service"
	apperrors "github.com/minimart/order-service/pkg/errors"
)

const testOrderID = "7d9f3a52-8a64-4a0e-9c1a-5b1e2f3a4b5c"

// stubRepo implements repository.OrderRepository with overridable funcs.
type stubRepo struct {
	create       func(ctx context.Context, order *domain.Order) error
	getByID      func(ctx context.Context, id string) (*domain.Order, error)
	list         func(ctx context.Context, filter repository.ListFilter) ([]*domain.Order, error)
	updateStatus func(ctx context.Context, id, status string) error
	delete       func(ctx context.Context, id string) error
}

func (s *stubRepo) Create(ctx context.Context, order *domain.Order) error {
	return s.create(ctx, order)
}

func (s *stubRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.getByID(ctx, id)
}

func (s *stubRepo) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Order, error) {
	return s.list(ctx, filter)
}

func (s *stubRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return s.updateStatus(ctx, id, status)
}

func (s *stubRepo) Delete(ctx context.Context, id string) error {
	return s.delete(ctx, id)
}

type stubInventory struct {
	deduct func(ctx context.Context, productID string, quantity int) (*inventory.Product, error)
}

func (s *stubInventory) DeductStock(ctx context.Context, productID string, quantity int) (*inventory.Product, error) {
	return s.deduct(ctx, productID, quantity)
}

type noopEvents struct{}

func (noopEvents) OrderCreated(context.Context, *domain.Order) error { return nil }
func (noopEvents) OrderStatusChanged(context.Context, string, string, string) error {
	return nil
}
func (noopEvents) OrderDeleted(context.Context, string) error { return nil }
func (noopEvents) ReconciliationRequired(context.Context, string, []domain.ReservationAttempt) error {
	return nil
}

func newTestRouter(repo repository.OrderRepository, inv service.InventoryClient) http.Handler {
	logger := slog.New(slog.DiscardHandler)
	svc := service.NewOrderService(repo, inv, noopEvents{}, logger, 0)
	handler := NewOrderHandler(svc, logger)

	r := chi.NewRouter()
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/", handler.CreateOrder)
		r.Get("/", handler.ListOrders)
		r.Get("/{id}", handler.GetOrder)
		r.Patch("/{id}/status", handler.UpdateStatus)
		r.Delete("/{id}", handler.DeleteOrder)
		r.Get("/{id}/items", handler.ListItems)
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestCreateOrder_Created(t *testing.T) {
	repo := &stubRepo{create: func(context.Context, *domain.Order) error { return nil }}
	inv := &stubInventory{deduct: func(_ context.Context, productID string, _ int) (*inventory.Product, error) {
		return &inventory.Product{ID: productID, StockQuantity: 5}, nil
	}}
	router := newTestRouter(repo, inv)

	body := `{"user_id":"u1","shipping_address":"1 Main St","items":[
		{"product_id":"p1","quantity":2,"price_at_purchase":1000},
		{"product_id":"p2","quantity":1,"price_at_purchase":500}]}`
	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders", body)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data domain.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusConfirmed, resp.Data.Status)
	assert.Equal(t, int64(2500), resp.Data.TotalAmount)
	assert.Len(t, resp.Data.Items, 2)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	router := newTestRouter(&stubRepo{}, &stubInventory{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","items":[]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, rec))
}

func TestCreateOrder_MalformedJSON(t *testing.T) {
	router := newTestRouter(&stubRepo{}, &stubInventory{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders", `{"user_id":`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, errorCode(t, rec))
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	inv := &stubInventory{deduct: func(_ context.Context, productID string, _ int) (*inventory.Product, error) {
		return nil, &inventory.InsufficientStockError{
			ProductID: productID,
			Detail:    "Insufficient stock for product 'Widget'. Only 1 available.",
		}
	}}
	router := newTestRouter(&stubRepo{}, inv)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","items":[{"product_id":"p1","quantity":5,"price_at_purchase":100}]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, errorCode(t, rec))
	assert.Contains(t, rec.Body.String(), "Only 1 available")
}

func TestCreateOrder_AuthorityUnavailable(t *testing.T) {
	inv := &stubInventory{deduct: func(context.Context, string, int) (*inventory.Product, error) {
		return nil, apperrors.ServiceUnavailable("inventory authority unreachable: dial tcp: connection refused")
	}}
	router := newTestRouter(&stubRepo{}, inv)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","items":[{"product_id":"p1","quantity":1,"price_at_purchase":100}]}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, apperrors.CodeServiceUnavail, errorCode(t, rec))
}

func TestCreateOrder_ConsistencyViolation(t *testing.T) {
	repo := &stubRepo{create: func(context.Context, *domain.Order) error {
		return context.DeadlineExceeded
	}}
	inv := &stubInventory{deduct: func(_ context.Context, productID string, _ int) (*inventory.Product, error) {
		return &inventory.Product{ID: productID, StockQuantity: 5}, nil
	}}
	router := newTestRouter(repo, inv)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","items":[{"product_id":"p1","quantity":1,"price_at_purchase":100}]}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperrors.CodeConsistency, errorCode(t, rec))
}

func TestListOrders(t *testing.T) {
	var gotFilter repository.ListFilter
	repo := &stubRepo{list: func(_ context.Context, filter repository.ListFilter) ([]*domain.Order, error) {
		gotFilter = filter
		return []*domain.Order{{ID: testOrderID, UserID: "u1", Status: "confirmed", Items: []domain.OrderItem{}}}, nil
	}}
	router := newTestRouter(repo, &stubInventory{})

	rec := doJSON(t, router, http.MethodGet,
		"/api/v1/orders?user_id=u1&status=confirmed&skip=5&limit=20", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.ListFilter{UserID: "u1", Status: "confirmed", Skip: 5, Limit: 20}, gotFilter)

	var resp struct {
		Data []domain.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, testOrderID, resp.Data[0].ID)
}

func TestListOrders_BadSkip(t *testing.T) {
	router := newTestRouter(&stubRepo{}, &stubInventory{})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orders?skip=abc", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidParameter, errorCode(t, rec))
}

func TestGetOrder(t *testing.T) {
	repo := &stubRepo{getByID: func(_ context.Context, id string) (*domain.Order, error) {
		return &domain.Order{ID: id, UserID: "u1", Status: "confirmed", Items: []domain.OrderItem{}}, nil
	}}
	router := newTestRouter(repo, &stubInventory{})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orders/"+testOrderID, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	repo := &stubRepo{getByID: func(_ context.Context, id string) (*domain.Order, error) {
		return nil, apperrors.NotFound("order", id)
	}}
	router := newTestRouter(repo, &stubInventory{})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orders/"+testOrderID, "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(t, rec))
}

func TestGetOrder_MalformedID(t *testing.T) {
	router := newTestRouter(&stubRepo{}, &stubInventory{})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orders/not-a-uuid", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidParameter, errorCode(t, rec))
}

func TestUpdateStatus(t *testing.T) {
	repo := &stubRepo{
		getByID: func(_ context.Context, id string) (*domain.Order, error) {
			return &domain.Order{ID: id, Status: "confirmed", Items: []domain.OrderItem{}}, nil
		},
		updateStatus: func(context.Context, string, string) error { return nil },
	}
	router := newTestRouter(repo, &stubInventory{})

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/orders/"+testOrderID+"/status",
		`{"status":"shipped"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"shipped"`)
}

func TestUpdateStatus_TooLong(t *testing.T) {
	router := newTestRouter(&stubRepo{}, &stubInventory{})

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/orders/"+testOrderID+"/status",
		`{"status":"`+strings.Repeat("x", 51)+`"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, rec))
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo := &stubRepo{getByID: func(_ context.Context, id string) (*domain.Order, error) {
		return nil, apperrors.NotFound("order", id)
	}}
	router := newTestRouter(repo, &stubInventory{})

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/orders/"+testOrderID+"/status",
		`{"status":"shipped"}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteOrder_NoContent(t *testing.T) {
	repo := &stubRepo{delete: func(context.Context, string) error { return nil }}
	router := newTestRouter(repo, &stubInventory{})

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/orders/"+testOrderID, "")

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestDeleteOrder_NotFound(t *testing.T) {
	repo := &stubRepo{delete: func(_ context.Context, id string) error {
		return apperrors.NotFound("order", id)
	}}
	router := newTestRouter(repo, &stubInventory{})

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/orders/"+testOrderID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListItems(t *testing.T) {
	repo := &stubRepo{getByID: func(_ context.Context, id string) (*domain.Order, error) {
		return &domain.Order{ID: id, Items: []domain.OrderItem{
			{ID: "i1", OrderID: id, ProductID: "p1", Quantity: 2, PriceAtPurchase: 1000, ItemTotal: 2000},
		}}, nil
	}}
	router := newTestRouter(repo, &stubInventory{})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orders/"+testOrderID+"/items", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []domain.OrderItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "p1", resp.Data[0].ProductID)
}
