// Package http exposes the order API over chi.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/minimart/order-service/internal/repository"
	"github.com/minimart/order-service/internal/service"
	apperrors "github.com/minimart/order-service/pkg/errors"
	"github.com/minimart/order-service/pkg/httputil"
	"github.com/minimart/order-service/pkg/validator"
)

const maxBodyBytes = 1 << 20

// OrderHandler serves the /api/v1/orders routes.
type OrderHandler struct {
	svc    *service.OrderService
	logger *slog.Logger
}

// NewOrderHandler builds the handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

type createOrderRequest struct {
	UserID          string                   `json:"user_id" validate:"required"`
	ShippingAddress string                   `json:"shipping_address"`
	Items           []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createOrderItemRequest struct {
	ProductID       string `json:"product_id" validate:"required"`
	Quantity        int    `json:"quantity" validate:"required,gt=0"`
	PriceAtPurchase int64  `json:"price_at_purchase" validate:"gte=0"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,min=1,max=50"`
}

// CreateOrder handles POST /api/v1/orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validator.Struct(req); err != nil {
		httputil.WriteValidationError(w, validator.FieldErrors(err))
		return
	}

	input := service.CreateOrderInput{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
		Items:           make([]service.CreateOrderItemInput, len(req.Items)),
	}
	for i, item := range req.Items {
		input.Items[i] = service.CreateOrderItemInput{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		}
	}

	order, err := h.svc.CreateOrder(r.Context(), input)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders with user_id, status, skip and
// limit query parameters.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ListFilter{
		UserID: q.Get("user_id"),
		Status: q.Get("status"),
	}

	var err error
	if filter.Skip, err = queryInt(q.Get("skip"), 0); err != nil {
		httputil.WriteError(r.Context(), w, invalidParameter("skip"))
		return
	}
	if filter.Limit, err = queryInt(q.Get("limit"), service.DefaultListLimit); err != nil {
		httputil.WriteError(r.Context(), w, invalidParameter("limit"))
		return
	}

	orders, err := h.svc.ListOrders(r.Context(), filter)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, orders)
}

// GetOrder handles GET /api/v1/orders/{id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// UpdateStatus handles PATCH /api/v1/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validator.Struct(req); err != nil {
		httputil.WriteValidationError(w, validator.FieldErrors(err))
		return
	}

	order, err := h.svc.UpdateOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// DeleteOrder handles DELETE /api/v1/orders/{id}.
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListItems handles GET /api/v1/orders/{id}/items.
func (h *OrderHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListOrderItems(r.Context(), id)
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, items)
}

func (h *OrderHandler) orderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := httputil.ParseUUID(chi.URLParam(r, "id"), "order id")
	if err != nil {
		httputil.WriteError(r.Context(), w, err)
		return "", false
	}
	return id, true
}

func (h *OrderHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httputil.WriteError(r.Context(), w,
			apperrors.InvalidInput("request body is not valid JSON: "+err.Error()))
		return false
	}
	return true
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func invalidParameter(name string) error {
	return &apperrors.AppError{
		Code:    apperrors.CodeInvalidParameter,
		Message: name + " must be an integer",
		Status:  http.StatusBadRequest,
		Err:     apperrors.ErrInvalidInput,
	}
}
