package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sorpresa-shop/backend/internal/catalog"
	"github.com/sorpresa-shop/backend/internal/domain"
	"github.com/sorpresa-shop/backend/internal/sales"
)

// Repository persists checkout snapshots and performs the capture write set
// as one transaction.
type Repository struct {
	db      *sql.DB
	catalog *catalog.Repository
	sales   *sales.Repository
}

func NewRepository(db *sql.DB, catalogRepo *catalog.Repository, salesRepo *sales.Repository) *Repository {
	return &Repository{
		db:      db,
		catalog: catalogRepo,
		sales:   salesRepo,
	}
}

// SaveSnapshot freezes the priced cart under the gateway order id. Re-running
// checkout for the same gateway order replaces the previous snapshot.
func (r *Repository) SaveSnapshot(ctx context.Context, snap *domain.CheckoutSnapshot) error {
	items, err := json.Marshal(snap.Items)
	if err != nil {
		return err
	}

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO checkout_snapshots (gateway_order_id, user_id, address_id, items, subtotal, shipping, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (gateway_order_id) DO UPDATE
		SET user_id = EXCLUDED.user_id, address_id = EXCLUDED.address_id, items = EXCLUDED.items,
		    subtotal = EXCLUDED.subtotal, shipping = EXCLUDED.shipping, total = EXCLUDED.total,
		    created_at = EXCLUDED.created_at
	`, snap.GatewayOrderID, snap.UserID, snap.AddressID, items, snap.Subtotal, snap.Shipping, snap.Total, snap.CreatedAt)
	return err
}

func (r *Repository) GetSnapshot(ctx context.Context, gatewayOrderID string) (*domain.CheckoutSnapshot, error) {
	snap := &domain.CheckoutSnapshot{}
	var items []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT gateway_order_id, user_id, address_id, items, subtotal, shipping, total, created_at
		FROM checkout_snapshots
		WHERE gateway_order_id = $1
	`, gatewayOrderID).Scan(&snap.GatewayOrderID, &snap.UserID, &snap.AddressID, &items,
		&snap.Subtotal, &snap.Shipping, &snap.Total, &snap.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(items, &snap.Items); err != nil {
		return nil, fmt.Errorf("decode snapshot items: %w", err)
	}

	return snap, nil
}

func (r *Repository) DeleteSnapshot(ctx context.Context, gatewayOrderID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM checkout_snapshots WHERE gateway_order_id = $1`, gatewayOrderID)
	return err
}

// PersistCapture applies the whole post-capture write set atomically: the
// order with its item snapshots, one sale per item, the cart clearing, and a
// conditional stock decrement per product. If any step fails, including a
// decrement finding insufficient stock, nothing is persisted.
func (r *Repository) PersistCapture(ctx context.Context, order *domain.Order, saleRows []domain.Sale) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, address_id, gateway_order_id, capture_id, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, order.ID, order.CustomerID, order.AddressID, order.GatewayOrderID, order.CaptureID,
		order.Total, order.Status, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New().String(), order.ID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}

	for i := range saleRows {
		if err := r.sales.InsertTx(ctx, tx, &saleRows[i]); err != nil {
			return fmt.Errorf("insert sale for product %s: %w", saleRows[i].ProductID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM cart_items
		USING carts
		WHERE cart_items.cart_id = carts.id AND carts.user_id = $1
	`, order.CustomerID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	for _, item := range order.Items {
		ok, err := r.catalog.DecrementStockIfAvailableTx(ctx, tx, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("decrement stock for product %s: %w", item.ProductID, err)
		}
		if !ok {
			return &domain.InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
		}
	}

	return tx.Commit()
}
