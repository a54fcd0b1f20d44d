package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_reservation_attempts_total",
		Help: "Conditional stock decrements by outcome.",
	}, []string{"outcome"})

	compensationEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_compensation_entries_total",
		Help: "Stock decrements recorded for manual reconciliation.",
	})

	consistencyViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_consistency_violations_total",
		Help: "Sagas where stock was deducted but the order write failed.",
	})

	ordersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders confirmed and persisted.",
	})
)

// Reservation outcome label values.
const (
	outcomeSucceeded         = "succeeded"
	outcomeNotFound          = "not_found"
	outcomeInsufficientStock = "insufficient_stock"
	outcomeUnavailable       = "unavailable"
	outcomeError             = "error"
)
