package domain

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	Discount    int       `json:"discount"`
	Images      []string  `json:"images"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// DiscountedPrice applies the product's percentage discount to its list price.
func (p Product) DiscountedPrice() float64 {
	return p.Price * (1 - float64(p.Discount)/100)
}
