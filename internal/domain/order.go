// Package domain holds the order aggregate and the ephemeral reservation
// types used by the stock-reservation saga.
package domain

import "time"

// Well-known order statuses. The status field is an open string (any 1-50
// character value is accepted through the API); these constants are the
// values this service itself assigns.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusShipped   = "shipped"
	StatusCancelled = "cancelled"
)

// Order is the ledger aggregate. TotalAmount is in minor currency units and
// always equals the sum of the item totals.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	ShippingAddress string      `json:"shipping_address,omitempty"`
	Status          string      `json:"status"`
	TotalAmount     int64       `json:"total_amount"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ComputeTotal derives the order total from its items.
func (o *Order) ComputeTotal() int64 {
	var total int64
	for i := range o.Items {
		total += o.Items[i].ItemTotal
	}
	return total
}
