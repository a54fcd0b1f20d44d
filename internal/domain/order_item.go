package domain

// OrderItem is one line of an order. PriceAtPurchase is captured when the
// order is placed and never updated afterwards; ItemTotal is persisted
// alongside it.
type OrderItem struct {
	ID              string `json:"id"`
	OrderID         string `json:"order_id"`
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
	ItemTotal       int64  `json:"item_total"`
}

// LineTotal computes quantity times unit price.
func LineTotal(quantity int, priceAtPurchase int64) int64 {
	return int64(quantity) * priceAtPurchase
}
