package domain

import "time"

// Sale is one row of the append-only sales ledger, recorded per order item at
// payment capture. Rows are never updated or deleted by the checkout flow.
type Sale struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	SalePrice  float64   `json:"sale_price"`
	Total      float64   `json:"total"`
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}
