// Package service implements the order use cases: the stock-reservation
// saga on the create path and the ledger operations (get, list, status
// update, delete).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/minimart/order-service/internal/domain"
	"github.com/minimart/order-service/internal/inventory"
	"github.com/minimart/order-service/internal/repository"
	apperrors "github.com/minimart/order-service/pkg/errors"
)

// List paging bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

// InventoryClient performs one conditional stock decrement per call.
// Implementations must not retry: a decrement is not idempotent.
type InventoryClient interface {
	DeductStock(ctx context.Context, productID string, quantity int) (*inventory.Product, error)
}

// Events publishes order domain events. Publish failures never fail the
// operation that triggered them.
type Events interface {
	OrderCreated(ctx context.Context, order *domain.Order) error
	OrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus string) error
	OrderDeleted(ctx context.Context, orderID string) error
	ReconciliationRequired(ctx context.Context, reason string, attempts []domain.ReservationAttempt) error
}

// OrderService coordinates order creation against the inventory authority
// and owns the order ledger.
type OrderService struct {
	repo      repository.OrderRepository
	inventory InventoryClient
	events    Events
	logger    *slog.Logger

	// reservationTimeout bounds each individual decrement call.
	reservationTimeout time.Duration
}

// NewOrderService wires the service.
func NewOrderService(
	repo repository.OrderRepository,
	inv InventoryClient,
	events Events,
	logger *slog.Logger,
	reservationTimeout time.Duration,
) *OrderService {
	if reservationTimeout <= 0 {
		reservationTimeout = 5 * time.Second
	}
	return &OrderService{
		repo:               repo,
		inventory:          inv,
		events:             events,
		logger:             logger,
		reservationTimeout: reservationTimeout,
	}
}

// CreateOrderInput is the validated request for CreateOrder.
type CreateOrderInput struct {
	UserID          string
	ShippingAddress string
	Items           []CreateOrderItemInput
}

// CreateOrderItemInput is one requested line.
type CreateOrderItemInput struct {
	ProductID       string
	Quantity        int
	PriceAtPurchase int64
}

// CreateOrder runs the reservation saga and, on full success, persists the
// confirmed order atomically. Validation failures are rejected before any
// decrement is issued. If every line reserves but the durable write fails,
// inventory and ledger have diverged: the worklist is recorded and the
// caller gets a CONSISTENCY_VIOLATION error.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	reserved, err := s.reserveStock(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.New().String(),
		UserID:          input.UserID,
		ShippingAddress: input.ShippingAddress,
		Status:          domain.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           make([]domain.OrderItem, len(input.Items)),
	}
	for i, line := range input.Items {
		order.Items[i] = domain.OrderItem{
			ID:              uuid.New().String(),
			OrderID:         order.ID,
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.PriceAtPurchase,
			ItemTotal:       domain.LineTotal(line.Quantity, line.PriceAtPurchase),
		}
	}
	order.TotalAmount = order.ComputeTotal()

	// All reservations are in; the order is confirmed in the same durable
	// write that creates it. The pending status never reaches storage on
	// this path.
	order.Status = domain.StatusConfirmed

	if err := s.repo.Create(ctx, order); err != nil {
		consistencyViolationsTotal.Inc()
		s.recordCompensation(ctx, reserved, "order write failed after stock was deducted")
		s.logger.ErrorContext(ctx, "order write failed after stock deduction; inventory and ledger have diverged",
			slog.String("order_id", order.ID),
			slog.String("user_id", order.UserID),
			slog.Int("reserved_lines", len(reserved)),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.ConsistencyViolation(
			"stock was deducted but the order could not be saved; manual inventory reconciliation required")
	}

	ordersCreatedTotal.Inc()
	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.Int("items", len(order.Items)),
		slog.Int64("total_amount", order.TotalAmount),
	)

	if err := s.events.OrderCreated(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "publish order.created failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	return order, nil
}

func validateCreateInput(input CreateOrderInput) error {
	if input.UserID == "" {
		return apperrors.InvalidInput("user_id is required")
	}
	if len(input.Items) == 0 {
		return apperrors.InvalidInput("order must contain at least one item")
	}
	for i, line := range input.Items {
		if line.ProductID == "" {
			return apperrors.InvalidInput(fmt.Sprintf("items[%d]: product_id is required", i))
		}
		if line.Quantity <= 0 {
			return apperrors.InvalidInput(fmt.Sprintf("items[%d]: quantity must be positive", i))
		}
		if line.PriceAtPurchase < 0 {
			return apperrors.InvalidInput(fmt.Sprintf("items[%d]: price_at_purchase must not be negative", i))
		}
	}
	return nil
}

// GetOrder loads one order.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// ListOrders returns orders matching the filter. Skip and limit are clamped
// to their contract (skip >= 0, 1 <= limit <= 100) rather than rejected.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.ListFilter) ([]*domain.Order, error) {
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Limit <= 0 || filter.Limit > MaxListLimit {
		filter.Limit = DefaultListLimit
	}
	return s.repo.List(ctx, filter)
}

// UpdateOrderStatus writes a caller-supplied status. The taxonomy is open;
// any 1-50 character string is accepted and the write is last-write-wins.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	if status == "" {
		return nil, apperrors.InvalidInput("status is required")
	}
	if len(status) > 50 {
		return nil, apperrors.InvalidInput("status must be at most 50 characters")
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := order.Status

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	order.Status = status
	order.UpdatedAt = time.Now().UTC()

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", id),
		slog.String("old_status", oldStatus),
		slog.String("new_status", status),
	)
	if err := s.events.OrderStatusChanged(ctx, id, oldStatus, status); err != nil {
		s.logger.WarnContext(ctx, "publish order.status_changed failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	return order, nil
}

// DeleteOrder removes an order and its items. Inventory is never touched.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "order deleted", slog.String("order_id", id))
	if err := s.events.OrderDeleted(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "publish order.deleted failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ListOrderItems returns the items of one order.
func (s *OrderService) ListOrderItems(ctx context.Context, id string) ([]domain.OrderItem, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return order.Items, nil
}
