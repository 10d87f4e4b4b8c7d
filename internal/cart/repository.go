package cart

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/sorpresa-shop/backend/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AddItem puts quantity units of a product into the user's cart, creating the
// cart on first use. Adding a product already in the cart accumulates its
// quantity; the stock check always runs against the new total quantity. The
// read-modify-write on the cart row is serialized with a row lock so two
// concurrent adds cannot both pass the check.
func (r *Repository) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		name  string
		stock int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT name, stock FROM products WHERE id = $1 AND active
	`, productID).Scan(&name, &stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
		}
		return nil, err
	}

	var cartID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO carts (id, user_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id
	`, uuid.New().String(), userID).Scan(&cartID)
	if err != nil {
		return nil, err
	}

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
		FOR UPDATE
	`, cartID, productID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	newQuantity := existing + quantity
	if stock < newQuantity {
		return nil, &domain.InsufficientStockError{ProductID: productID, Available: stock, Requested: newQuantity}
	}

	// Accumulating on conflict keeps two concurrent first-time inserts of the
	// same product from losing one of the quantities.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, uuid.New().String(), cartID, productID, quantity)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// GetByUserID returns the user's cart with product details expanded, or
// (nil, nil) when the user has never added anything.
func (r *Repository) GetByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	cart := &domain.Cart{UserID: userID}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, created_at FROM carts WHERE user_id = $1
	`, userID).Scan(&cart.ID, &cart.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.product_id, p.name, p.price, p.discount, COALESCE(p.images[1], ''), ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY p.name
	`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Price, &item.Discount, &item.Image, &item.Quantity); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *Repository) RemoveItem(ctx context.Context, userID, productID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		USING carts
		WHERE cart_items.cart_id = carts.id
		  AND carts.user_id = $1
		  AND cart_items.product_id = $2
	`, userID, productID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("product %s not in cart: %w", productID, domain.ErrNotFound)
	}

	return nil
}

// SetItemQuantity replaces the quantity of a cart line, re-validating against
// current stock.
func (r *Repository) SetItemQuantity(ctx context.Context, userID, productID string, quantity int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var stock int
	err = tx.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE id = $1 AND active
	`, productID).Scan(&stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
		}
		return err
	}

	if stock < quantity {
		return &domain.InsufficientStockError{ProductID: productID, Available: stock, Requested: quantity}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3
		FROM carts
		WHERE cart_items.cart_id = carts.id
		  AND carts.user_id = $1
		  AND cart_items.product_id = $2
	`, userID, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("product %s not in cart: %w", productID, domain.ErrNotFound)
	}

	return tx.Commit()
}

// Clear removes every item from the user's cart. The cart row itself stays;
// clearing an already-empty cart is a no-op.
func (r *Repository) Clear(ctx context.Context, userID string) error {
	var cartID string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM carts WHERE user_id = $1
	`, userID).Scan(&cartID)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("cart for user %s: %w", userID, domain.ErrNotFound)
		}
		return err
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
