// Package repository defines the persistence contract for the order ledger.
package repository

import (
	"context"

	"github.com/minimart/order-service/internal/domain"
)

// ListFilter narrows and pages List results. Zero-valued fields are
// ignored; Skip and Limit are assumed already clamped by the service.
type ListFilter struct {
	UserID string
	Status string
	Skip   int
	Limit  int
}

// OrderRepository is the durable order ledger. Implementations must write
// an order and its items atomically and surface missing rows as
// apperrors.ErrNotFound.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}
