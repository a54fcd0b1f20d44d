package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minimart/order-service/internal/domain"
	"github.com/minimart/order-service/internal/inventory"
	"github.com/minimart/order-service/internal/repository"
	apperrors "github.com/minimart/order-service/pkg/errors"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if order := args.Get(0); order != nil {
		return order.(*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Order, error) {
	args := m.Called(ctx, filter)
	if orders := args.Get(0); orders != nil {
		return orders.([]*domain.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockInventory struct {
	mock.Mock
}

func (m *mockInventory) DeductStock(ctx context.Context, productID string, quantity int) (*inventory.Product, error) {
	args := m.Called(ctx, productID, quantity)
	if p := args.Get(0); p != nil {
		return p.(*inventory.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

// eventRecorder captures published events so tests can assert on the
// compensation worklist without a broker.
type eventRecorder struct {
	created       []*domain.Order
	statusChanges []string
	deleted       []string
	worklists     [][]domain.ReservationAttempt
	reasons       []string
}

func (r *eventRecorder) OrderCreated(_ context.Context, order *domain.Order) error {
	r.created = append(r.created, order)
	return nil
}

func (r *eventRecorder) OrderStatusChanged(_ context.Context, orderID, oldStatus, newStatus string) error {
	r.statusChanges = append(r.statusChanges, orderID+":"+oldStatus+"->"+newStatus)
	return nil
}

func (r *eventRecorder) OrderDeleted(_ context.Context, orderID string) error {
	r.deleted = append(r.deleted, orderID)
	return nil
}

func (r *eventRecorder) ReconciliationRequired(_ context.Context, reason string, attempts []domain.ReservationAttempt) error {
	r.reasons = append(r.reasons, reason)
	r.worklists = append(r.worklists, attempts)
	return nil
}

func newTestService(repo *mockRepo, inv *mockInventory) (*OrderService, *eventRecorder) {
	events := &eventRecorder{}
	logger := slog.New(slog.DiscardHandler)
	return NewOrderService(repo, inv, events, logger, 0), events
}

func twoLineInput() CreateOrderInput {
	return CreateOrderInput{
		UserID: "user-1",
		Items: []CreateOrderItemInput{
			{ProductID: "p1", Quantity: 2, PriceAtPurchase: 1000},
			{ProductID: "p2", Quantity: 1, PriceAtPurchase: 500},
		},
	}
}

func TestCreateOrder_AllLinesReserve(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, events := newTestService(repo, inv)

	inv.On("DeductStock", mock.Anything, "p1", 2).
		Return(&inventory.Product{ID: "p1", StockQuantity: 8}, nil).Once()
	inv.On("DeductStock", mock.Anything, "p2", 1).
		Return(&inventory.Product{ID: "p2", StockQuantity: 0}, nil).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.Status == domain.StatusConfirmed && o.TotalAmount == 2500 && len(o.Items) == 2
	})).Return(nil).Once()

	order, err := svc.CreateOrder(context.Background(), twoLineInput())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConfirmed, order.Status)
	assert.Equal(t, int64(2500), order.TotalAmount)
	assert.Equal(t, int64(2000), order.Items[0].ItemTotal)
	assert.Equal(t, int64(500), order.Items[1].ItemTotal)
	assert.Equal(t, order.ID, order.Items[0].OrderID)
	assert.Len(t, events.created, 1)
	assert.Empty(t, events.worklists)

	repo.AssertExpectations(t)
	inv.AssertExpectations(t)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, _ := newTestService(repo, inv)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{UserID: "user-1"})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	// Rejected before any decrement or write.
	inv.AssertNotCalled(t, "DeductStock", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateOrder_InvalidLine(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, _ := newTestService(repo, inv)

	input := twoLineInput()
	input.Items[1].Quantity = 0

	_, err := svc.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "items[1]")
	inv.AssertNotCalled(t, "DeductStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrder_InsufficientStockOnSecondLine(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, events := newTestService(repo, inv)

	inv.On("DeductStock", mock.Anything, "p1", 2).
		Return(&inventory.Product{ID: "p1", StockQuantity: 3}, nil).Once()
	inv.On("DeductStock", mock.Anything, "p2", 1).
		Return(nil, &inventory.InsufficientStockError{
			ProductID: "p2",
			Detail:    "Insufficient stock for product 'Widget'. Only 0 available.",
		}).Once()

	_, err := svc.CreateOrder(context.Background(), twoLineInput())
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "p2")
	assert.Contains(t, err.Error(), "Only 0 available")

	// The succeeded prefix, and only it, is on the worklist.
	require.Len(t, events.worklists, 1)
	require.Len(t, events.worklists[0], 1)
	assert.Equal(t, "p1", events.worklists[0][0].ProductID)
	assert.Equal(t, 2, events.worklists[0][0].Quantity)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	inv.AssertExpectations(t)
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, events := newTestService(repo, inv)

	inv.On("DeductStock", mock.Anything, "p1", 2).
		Return(nil, &inventory.NotFoundError{ProductID: "p1"}).Once()

	_, err := svc.CreateOrder(context.Background(), twoLineInput())
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "product p1 not found")

	// First line failed: nothing was reserved, nothing to reconcile.
	assert.Empty(t, events.worklists)
	// The second line is never attempted.
	inv.AssertNumberOfCalls(t, "DeductStock", 1)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateOrder_AuthorityUnavailable(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, events := newTestService(repo, inv)

	inv.On("DeductStock", mock.Anything, "p1", 2).
		Return(&inventory.Product{ID: "p1", StockQuantity: 3}, nil).Once()
	inv.On("DeductStock", mock.Anything, "p2", 1).
		Return(nil, apperrors.ServiceUnavailable("inventory authority unreachable: connection refused")).Once()

	_, err := svc.CreateOrder(context.Background(), twoLineInput())
	require.ErrorIs(t, err, apperrors.ErrServiceUnavail)

	require.Len(t, events.worklists, 1)
	assert.Equal(t, "p1", events.worklists[0][0].ProductID)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateOrder_UnexpectedAuthorityError(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, _ := newTestService(repo, inv)

	inv.On("DeductStock", mock.Anything, "p1", 2).
		Return(nil, fmt.Errorf("inventory authority returned status 502: bad gateway")).Once()

	_, err := svc.CreateOrder(context.Background(), twoLineInput())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInternal, appErr.Code)
	inv.AssertNumberOfCalls(t, "DeductStock", 1)
}

func TestCreateOrder_StopsAtFirstFailure(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, _ := newTestService(repo, inv)

	input := CreateOrderInput{
		UserID: "user-1",
		Items: []CreateOrderItemInput{
			{ProductID: "p1", Quantity: 1, PriceAtPurchase: 100},
			{ProductID: "p2", Quantity: 1, PriceAtPurchase: 100},
			{ProductID: "p3", Quantity: 1, PriceAtPurchase: 100},
		},
	}

	inv.On("DeductStock", mock.Anything, "p1", 1).
		Return(&inventory.Product{ID: "p1", StockQuantity: 1}, nil).Once()
	inv.On("DeductStock", mock.Anything, "p2", 1).
		Return(nil, &inventory.InsufficientStockError{ProductID: "p2", Detail: "Only 0 available."}).Once()

	_, err := svc.CreateOrder(context.Background(), input)
	require.Error(t, err)

	// p3 is never attempted once p2 has failed.
	inv.AssertNumberOfCalls(t, "DeductStock", 2)
	inv.AssertExpectations(t)
}

func TestCreateOrder_WriteFailureAfterReservation(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, events := newTestService(repo, inv)

	inv.On("DeductStock", mock.Anything, "p1", 2).
		Return(&inventory.Product{ID: "p1", StockQuantity: 3}, nil).Once()
	inv.On("DeductStock", mock.Anything, "p2", 1).
		Return(&inventory.Product{ID: "p2", StockQuantity: 1}, nil).Once()
	repo.On("Create", mock.Anything, mock.Anything).
		Return(errors.New("connection reset by peer")).Once()

	_, err := svc.CreateOrder(context.Background(), twoLineInput())
	require.ErrorIs(t, err, apperrors.ErrConsistency)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeConsistency, appErr.Code)
	assert.Equal(t, 500, appErr.Status)

	// Every reserved line is recorded for reconciliation.
	require.Len(t, events.worklists, 1)
	require.Len(t, events.worklists[0], 2)
	assert.Empty(t, events.created)
}

func TestListOrders_ClampsPaging(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, _ := newTestService(repo, inv)

	repo.On("List", mock.Anything, repository.ListFilter{Skip: 0, Limit: 100}).
		Return([]*domain.Order{}, nil).Once()
	_, err := svc.ListOrders(context.Background(), repository.ListFilter{Skip: -5, Limit: 0})
	require.NoError(t, err)

	repo.On("List", mock.Anything, repository.ListFilter{Skip: 10, Limit: 100}).
		Return([]*domain.Order{}, nil).Once()
	_, err = svc.ListOrders(context.Background(), repository.ListFilter{Skip: 10, Limit: 250})
	require.NoError(t, err)

	repo.On("List", mock.Anything, repository.ListFilter{UserID: "u1", Skip: 0, Limit: 25}).
		Return([]*domain.Order{}, nil).Once()
	_, err = svc.ListOrders(context.Background(), repository.ListFilter{UserID: "u1", Limit: 25})
	require.NoError(t, err)

	repo.AssertExpectations(t)
}

func TestUpdateOrderStatus(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, events := newTestService(repo, inv)

	existing := &domain.Order{ID: "11111111-1111-1111-1111-111111111111", Status: domain.StatusConfirmed}
	repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil).Once()
	repo.On("UpdateStatus", mock.Anything, existing.ID, "shipped").Return(nil).Once()

	order, err := svc.UpdateOrderStatus(context.Background(), existing.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, "shipped", order.Status)
	assert.Len(t, events.statusChanges, 1)
	repo.AssertExpectations(t)
}

func TestUpdateOrderStatus_Validation(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, _ := newTestService(repo, inv)

	_, err := svc.UpdateOrderStatus(context.Background(), "id", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	tooLong := make([]byte, 51)
	for i := range tooLong {
		tooLong[i] = 'x'
	}
	_, err = svc.UpdateOrderStatus(context.Background(), "id", string(tooLong))
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, events := newTestService(repo, inv)

	repo.On("GetByID", mock.Anything, "missing").
		Return(nil, apperrors.NotFound("order", "missing")).Once()

	_, err := svc.UpdateOrderStatus(context.Background(), "missing", "shipped")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, events.statusChanges)
}

func TestDeleteOrder(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, events := newTestService(repo, inv)

	repo.On("Delete", mock.Anything, "some-id").Return(nil).Once()
	require.NoError(t, svc.DeleteOrder(context.Background(), "some-id"))
	assert.Equal(t, []string{"some-id"}, events.deleted)

	repo.On("Delete", mock.Anything, "missing").
		Return(apperrors.NotFound("order", "missing")).Once()
	err := svc.DeleteOrder(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListOrderItems(t *testing.T) {
	repo := &mockRepo{}
	inv := &mockInventory{}
	svc, _ := newTestService(repo, inv)

	order := &domain.Order{
		ID:    "oid",
		Items: []domain.OrderItem{{ID: "i1", ProductID: "p1", Quantity: 2}},
	}
	repo.On("GetByID", mock.Anything, "oid").Return(order, nil).Once()

	items, err := svc.ListOrderItems(context.Background(), "oid")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ProductID)
}
