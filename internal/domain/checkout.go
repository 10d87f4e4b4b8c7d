package domain

import "time"

type SnapshotItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

// CheckoutSnapshot freezes the cart's line items and server-computed totals at
// payment-order creation time, keyed by the gateway order id. Capture reads the
// snapshot instead of the live cart, so cart edits between creating the payment
// order and approving it cannot change what gets persisted.
type CheckoutSnapshot struct {
	GatewayOrderID string         `json:"gateway_order_id"`
	UserID         string         `json:"user_id"`
	AddressID      string         `json:"address_id"`
	Items          []SnapshotItem `json:"items"`
	Subtotal       float64        `json:"subtotal"`
	Shipping       float64        `json:"shipping"`
	Total          float64        `json:"total"`
	CreatedAt      time.Time      `json:"created_at"`
}
