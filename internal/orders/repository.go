package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sorpresa-shop/backend/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByID loads an order with its items, scoped to the owning customer. An
// order belonging to another user is indistinguishable from a missing one.
func (r *Repository) GetByID(ctx context.Context, customerID, orderID string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, address_id, gateway_order_id, COALESCE(capture_id, ''), total, status, created_at
		FROM orders
		WHERE id = $1 AND customer_id = $2
	`, orderID, customerID).Scan(&order.ID, &order.CustomerID, &order.AddressID, &order.GatewayOrderID,
		&order.CaptureID, &order.Total, &order.Status, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.product_id, COALESCE(p.name, ''), COALESCE(p.images[1], ''), oi.quantity, oi.unit_price, oi.subtotal
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Image, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

type ListedOrder struct {
	domain.Order
	City  string `json:"city"`
	State string `json:"state"`
}

type OrderPage struct {
	Orders     []ListedOrder `json:"orders"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// ListForUser returns the customer's orders newest-first, with line-item
// product names and first image, plus the shipping address city and state.
func (r *Repository) ListForUser(ctx context.Context, customerID string, page, pageSize int) (*OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE customer_id = $1
	`, customerID).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.customer_id, o.address_id, o.gateway_order_id, COALESCE(o.capture_id, ''),
		       o.total, o.status, o.created_at, a.city, a.state
		FROM orders o
		JOIN addresses a ON a.id = o.address_id
		WHERE o.customer_id = $1
		ORDER BY o.created_at DESC
		OFFSET $2 LIMIT $3
	`, customerID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*ListedOrder)
	var orderIDs []string

	for rows.Next() {
		var o ListedOrder
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.AddressID, &o.GatewayOrderID, &o.CaptureID,
			&o.Total, &o.Status, &o.CreatedAt, &o.City, &o.State); err != nil {
			return nil, err
		}
		o.Items = []domain.OrderItem{}
		orderMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	listed := make([]ListedOrder, 0, len(orderIDs))
	if len(orderIDs) > 0 {
		itemRows, err := r.db.QueryContext(ctx, `
			SELECT oi.order_id, oi.product_id, COALESCE(p.name, ''), COALESCE(p.images[1], ''),
			       oi.quantity, oi.unit_price, oi.subtotal
			FROM order_items oi
			LEFT JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = ANY($1)
		`, pq.Array(orderIDs))
		if err != nil {
			return nil, err
		}
		defer func() { _ = itemRows.Close() }()

		for itemRows.Next() {
			var orderID string
			var item domain.OrderItem
			if err := itemRows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Image,
				&item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
				return nil, err
			}
			orderMap[orderID].Items = append(orderMap[orderID].Items, item)
		}

		if err := itemRows.Err(); err != nil {
			return nil, err
		}

		for _, id := range orderIDs {
			listed = append(listed, *orderMap[id])
		}
	}

	return &OrderPage{
		Orders:     listed,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// SetStatus moves an order through the status state machine and appends the
// matching history record in the same transaction; a reader never sees one
// without the other.
func (r *Repository) SetStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus, comment, actorID string) (*domain.StatusChange, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, fmt.Errorf("status %q: %w", newStatus, domain.ErrInvalidTransition)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.OrderStatus
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, orderID).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
		}
		return nil, err
	}

	if !domain.CanTransition(current, newStatus) {
		return nil, fmt.Errorf("%s -> %s: %w", current, newStatus, domain.ErrInvalidTransition)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
	`, orderID, newStatus); err != nil {
		return nil, err
	}

	change := &domain.StatusChange{
		ID:             uuid.New().String(),
		OrderID:        orderID,
		PreviousStatus: current,
		NewStatus:      newStatus,
		Comment:        comment,
		ChangedBy:      actorID,
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, previous_status, new_status, comment, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, change.ID, change.OrderID, change.PreviousStatus, change.NewStatus, change.Comment, change.ChangedBy, change.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return change, nil
}

func (r *Repository) StatusHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, previous_status, new_status, COALESCE(comment, ''), changed_by, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	history := []domain.StatusChange{}
	for rows.Next() {
		var c domain.StatusChange
		if err := rows.Scan(&c.ID, &c.OrderID, &c.PreviousStatus, &c.NewStatus, &c.Comment, &c.ChangedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return history, nil
}

// ListByStatus is the back-office view of orders in a given state.
func (r *Repository) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, address_id, gateway_order_id, COALESCE(capture_id, ''), total, status, created_at
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.AddressID, &o.GatewayOrderID, &o.CaptureID,
			&o.Total, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
