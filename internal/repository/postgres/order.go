// Package postgres implements the order ledger on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/minimart/order-service/internal/domain"
	"github.com/minimart/order-service/internal/repository"
	"github.com/minimart/order-service/pkg/database"
	apperrors "github.com/minimart/order-service/pkg/errors"
)

// OrderRepository persists orders in Postgres.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository builds a repository over db.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const insertOrder = `
INSERT INTO orders (id, user_id, shipping_address, status, total_amount, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const insertOrderItem = `
INSERT INTO order_items (id, order_id, product_id, quantity, price_at_purchase, item_total)
VALUES ($1, $2, $3, $4, $5, $6)`

// Create writes the order and all of its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertOrder,
		order.ID, order.UserID, order.ShippingAddress, order.Status,
		order.TotalAmount, order.CreatedAt, order.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		if _, err := tx.Exec(ctx, insertOrderItem,
			item.ID, item.OrderID, item.ProductID, item.Quantity,
			item.PriceAtPurchase, item.ItemTotal,
		); err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create order tx: %w", err)
	}
	return nil
}

const selectOrder = `
SELECT id, user_id, shipping_address, status, total_amount, created_at, updated_at
FROM orders
WHERE id = $1`

const selectOrderItems = `
SELECT id, order_id, product_id, quantity, price_at_purchase, item_total
FROM order_items
WHERE order_id = ANY($1)
ORDER BY id`

// GetByID loads one order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	err := r.db.QueryRow(ctx, selectOrder, id).Scan(
		&order.ID, &order.UserID, &order.ShippingAddress, &order.Status,
		&order.TotalAmount, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("select order %s: %w", id, err)
	}

	items, err := r.loadItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}
	return order, nil
}

// List returns orders matching the filter, newest first, with items
// attached.
func (r *OrderRepository) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, "user_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}

	query := "SELECT id, user_id, shipping_address, status, total_amount, created_at, updated_at FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, filter.Skip)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		order := &domain.Order{Items: []domain.OrderItem{}}
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.ShippingAddress, &order.Status,
			&order.TotalAmount, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	itemsByOrder, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		if items, ok := itemsByOrder[order.ID]; ok {
			order.Items = items
		}
	}
	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.db.Query(ctx, selectOrderItems, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	itemsByOrder := make(map[string][]domain.OrderItem)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
			&item.PriceAtPurchase, &item.ItemTotal,
		); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}
	return itemsByOrder, nil
}

const updateOrderStatus = `
UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

// UpdateStatus writes the new status unconditionally (last write wins).
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Exec(ctx, updateOrderStatus, id, status)
	if err != nil {
		return fmt.Errorf("update order %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}

const deleteOrder = `DELETE FROM orders WHERE id = $1`

// Delete removes the order; items go with it via ON DELETE CASCADE.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteOrder, id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}
