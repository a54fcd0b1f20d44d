// Package event publishes order domain events and the compensation outbox
// to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/minimart/order-service/internal/domain"
	pkgkafka "github.com/minimart/order-service/pkg/kafka"
)

// Kafka topics owned by this service.
const (
	TopicOrderCreated       = "shop.order.created"
	TopicOrderStatusChanged = "shop.order.status_changed"
	TopicOrderDeleted       = "shop.order.deleted"
	// TopicReconciliationRequired carries the worklist of stock
	// decrements that could not be matched by a persisted order. A
	// reconciliation job consumes it; this service only records.
	TopicReconciliationRequired = "shop.inventory.reconciliation_required"
)

const (
	aggregateTypeOrder    = "order"
	aggregateTypeWorklist = "reconciliation_worklist"
	source                = "order-service"
)

// OrderCreatedData is the order.created payload (full snapshot).
type OrderCreatedData struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	Status          string          `json:"status"`
	TotalAmount     int64           `json:"total_amount"`
	Items           []OrderItemData `json:"items"`
}

// OrderItemData is the per-line payload.
type OrderItemData struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
	ItemTotal       int64  `json:"item_total"`
}

// OrderStatusChangedData is the order.status_changed payload.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// OrderDeletedData is the order.deleted payload.
type OrderDeletedData struct {
	OrderID string `json:"order_id"`
}

// ReconciliationRequiredData lists stock decrements that must be reconciled
// by hand because the saga aborted after they were issued.
type ReconciliationRequiredData struct {
	WorklistID string          `json:"worklist_id"`
	Reason     string          `json:"reason"`
	Entries    []WorklistEntry `json:"entries"`
}

// WorklistEntry is one decrement to reconcile.
type WorklistEntry struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Producer publishes order service events.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer builds an event producer over the shared Kafka producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// OrderCreated publishes the full snapshot of a newly confirmed order.
func (p *Producer) OrderCreated(ctx context.Context, order *domain.Order) error {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
			ItemTotal:       item.ItemTotal,
		}
	}

	data := OrderCreatedData{
		ID:              order.ID,
		UserID:          order.UserID,
		ShippingAddress: order.ShippingAddress,
		Status:          order.Status,
		TotalAmount:     order.TotalAmount,
		Items:           items,
	}
	return p.publish(ctx, TopicOrderCreated, order.ID, aggregateTypeOrder, data)
}

// OrderStatusChanged publishes a status transition.
func (p *Producer) OrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus string) error {
	data := OrderStatusChangedData{OrderID: orderID, OldStatus: oldStatus, NewStatus: newStatus}
	return p.publish(ctx, TopicOrderStatusChanged, orderID, aggregateTypeOrder, data)
}

// OrderDeleted publishes an order removal.
func (p *Producer) OrderDeleted(ctx context.Context, orderID string) error {
	data := OrderDeletedData{OrderID: orderID}
	return p.publish(ctx, TopicOrderDeleted, orderID, aggregateTypeOrder, data)
}

// ReconciliationRequired publishes the compensation worklist for decrements
// issued by a saga that did not produce an order.
func (p *Producer) ReconciliationRequired(ctx context.Context, reason string, attempts []domain.ReservationAttempt) error {
	entries := make([]WorklistEntry, len(attempts))
	for i, a := range attempts {
		entries[i] = WorklistEntry{ProductID: a.ProductID, Quantity: a.Quantity}
	}

	data := ReconciliationRequiredData{
		WorklistID: uuid.New().String(),
		Reason:     reason,
		Entries:    entries,
	}
	return p.publish(ctx, TopicReconciliationRequired, data.WorklistID, aggregateTypeWorklist, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
