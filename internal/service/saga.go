package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/minimart/order-service/internal/domain"
	"github.com/minimart/order-service/internal/inventory"
	apperrors "github.com/minimart/order-service/pkg/errors"
)

// reserveStock walks the requested lines in order and issues one
// conditional decrement per line, strictly sequentially. On the first
// failure the already-succeeded prefix becomes the compensation worklist
// and the saga aborts. On success it returns every succeeded attempt so
// the caller can still compensate if the durable write fails.
func (s *OrderService) reserveStock(ctx context.Context, lines []CreateOrderItemInput) ([]domain.ReservationAttempt, error) {
	reserved := make([]domain.ReservationAttempt, 0, len(lines))

	for _, line := range lines {
		product, err := s.deductOne(ctx, line)
		if err == nil {
			reserved = append(reserved, domain.ReservationAttempt{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Outcome:   domain.ReservationSucceeded,
			})
			reservationAttemptsTotal.WithLabelValues(outcomeSucceeded).Inc()
			s.logger.InfoContext(ctx, "stock deducted",
				slog.String("product_id", line.ProductID),
				slog.Int("quantity", line.Quantity),
				slog.Int("stock_remaining", product.StockQuantity),
			)
			continue
		}

		return nil, s.abortSaga(ctx, reserved, line, err)
	}

	return reserved, nil
}

// deductOne bounds a single decrement with the per-call timeout. Exactly
// one request leaves the process per invocation.
func (s *OrderService) deductOne(ctx context.Context, line CreateOrderItemInput) (*inventory.Product, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.reservationTimeout)
	defer cancel()
	return s.inventory.DeductStock(callCtx, line.ProductID, line.Quantity)
}

// abortSaga classifies the failed decrement, records the compensation
// worklist for the succeeded prefix and returns the error the caller
// surfaces.
func (s *OrderService) abortSaga(ctx context.Context, reserved []domain.ReservationAttempt, line CreateOrderItemInput, cause error) error {
	var notFound *inventory.NotFoundError
	var insufficient *inventory.InsufficientStockError

	switch {
	case errors.As(cause, &notFound):
		reservationAttemptsTotal.WithLabelValues(outcomeNotFound).Inc()
		s.recordCompensation(ctx, reserved, fmt.Sprintf("product %s not found", line.ProductID))
		return apperrors.InvalidInput(fmt.Sprintf(
			"failed to deduct stock for product %s: product %s not found",
			line.ProductID, line.ProductID))

	case errors.As(cause, &insufficient):
		reservationAttemptsTotal.WithLabelValues(outcomeInsufficientStock).Inc()
		s.recordCompensation(ctx, reserved, fmt.Sprintf("insufficient stock for product %s", line.ProductID))
		return apperrors.InvalidInput(fmt.Sprintf(
			"failed to deduct stock for product %s: %s",
			line.ProductID, insufficient.Detail))

	case errors.Is(cause, apperrors.ErrServiceUnavail):
		reservationAttemptsTotal.WithLabelValues(outcomeUnavailable).Inc()
		s.recordCompensation(ctx, reserved, fmt.Sprintf(
			"inventory authority unavailable while reserving product %s", line.ProductID))
		return apperrors.ServiceUnavailable(
			"inventory service is unavailable; the order was not placed")

	default:
		reservationAttemptsTotal.WithLabelValues(outcomeError).Inc()
		s.recordCompensation(ctx, reserved, fmt.Sprintf(
			"unexpected error while reserving product %s", line.ProductID))
		return apperrors.Internal(fmt.Errorf(
			"deduct stock for product %s: %w", line.ProductID, cause))
	}
}
