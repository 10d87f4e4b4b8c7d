package domain

import "time"

type OrderStatus string

const (
	OrderStatusEnProceso OrderStatus = "EN_PROCESO"
	OrderStatusEnCamino  OrderStatus = "EN_CAMINO"
	OrderStatusEntregado OrderStatus = "ENTREGADO"
	OrderStatusCancelado OrderStatus = "CANCELADO"
)

// ValidStatus reports whether s is one of the four recognized order states.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusEnProceso, OrderStatusEnCamino, OrderStatusEntregado, OrderStatusCancelado:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
// ENTREGADO and CANCELADO are terminal; CANCELADO is reachable from any
// non-terminal state.
func CanTransition(from, to OrderStatus) bool {
	if !ValidStatus(from) || !ValidStatus(to) {
		return false
	}
	switch from {
	case OrderStatusEnProceso:
		return to == OrderStatusEnCamino || to == OrderStatusCancelado
	case OrderStatusEnCamino:
		return to == OrderStatusEntregado || to == OrderStatusCancelado
	}
	return false
}

type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Image       string  `json:"image,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

type Order struct {
	ID             string      `json:"id"`
	CustomerID     string      `json:"customer_id"`
	AddressID      string      `json:"address_id"`
	GatewayOrderID string      `json:"gateway_order_id"`
	CaptureID      string      `json:"capture_id,omitempty"`
	Items          []OrderItem `json:"items"`
	Total          float64     `json:"total"`
	Status         OrderStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
}

type StatusChange struct {
	ID             string      `json:"id"`
	OrderID        string      `json:"order_id"`
	PreviousStatus OrderStatus `json:"previous_status"`
	NewStatus      OrderStatus `json:"new_status"`
	Comment        string      `json:"comment,omitempty"`
	ChangedBy      string      `json:"changed_by"`
	CreatedAt      time.Time   `json:"created_at"`
}
