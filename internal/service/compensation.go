package service

import (
	"context"
	"log/slog"

	"github.com/minimart/order-service/internal/domain"
)

// recordCompensation records the succeeded decrements of an aborted saga.
// The inventory authority has no credit-back operation, so stock is NOT
// restored here: each entry is logged for operators, counted, and emitted
// on the reconciliation topic for a downstream job to act on. The publish
// uses a detached context so a caller disconnect cannot lose the worklist.
func (s *OrderService) recordCompensation(ctx context.Context, reserved []domain.ReservationAttempt, reason string) {
	if len(reserved) == 0 {
		return
	}

	s.logger.WarnContext(ctx, "saga aborted with deducted stock; recording compensation worklist",
		slog.String("reason", reason),
		slog.Int("entries", len(reserved)),
	)
	for _, attempt := range reserved {
		compensationEntriesTotal.Inc()
		s.logger.WarnContext(ctx, "stock decrement requires manual reconciliation",
			slog.String("product_id", attempt.ProductID),
			slog.Int("quantity", attempt.Quantity),
			slog.String("reason", reason),
		)
	}

	if err := s.events.ReconciliationRequired(context.WithoutCancel(ctx), reason, reserved); err != nil {
		s.logger.ErrorContext(ctx, "publish reconciliation worklist failed; log entries above are the only record",
			slog.String("reason", reason),
			slog.Int("entries", len(reserved)),
			slog.String("error", err.Error()),
		)
	}
}
