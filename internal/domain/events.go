package domain

import "time"

// OrderCapturedEvent is published to Kafka after a payment capture has been
// persisted. Downstream consumers (notification worker, analytics) must treat
// it as at-least-once.
type OrderCapturedEvent struct {
	OrderID        string      `json:"order_id"`
	GatewayOrderID string      `json:"gateway_order_id"`
	CaptureID      string      `json:"capture_id"`
	CustomerID     string      `json:"customer_id"`
	Items          []OrderItem `json:"items"`
	Total          float64     `json:"total"`
	Timestamp      time.Time   `json:"timestamp"`
}
