package catalog

import (
	"context"
	"database/sql"

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

func (r *Repository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()
	p.Active = true

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, category, discount, images, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`, p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.Discount, pq.Array(p.Images), p.Active)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, stock, category, discount, images, active, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.Discount, pq.Array(&p.Images), &p.Active, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return p, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, price, stock, category, discount, images, active, created_at
		FROM products
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

// FindByNames resolves recommendation results (product names) back to catalog
// entries. Unknown names are silently dropped.
func (r *Repository) FindByNames(ctx context.Context, names []string) ([]domain.Product, error) {
	if len(names) == 0 {
		return []domain.Product{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, price, stock, category, discount, images, active, created_at
		FROM products
		WHERE name = ANY($1) AND active
		LIMIT 5
	`, pq.Array(names))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

// DecrementStockIfAvailable atomically takes qty units off a product's stock,
// refusing to go below zero. Returns false when fewer than qty units remain.
func (r *Repository) DecrementStockIfAvailable(ctx context.Context, id string, qty int) (bool, error) {
	return decrementStock(ctx, r.db, id, qty)
}

// DecrementStockIfAvailableTx is the transaction-scoped variant used by the
// capture flow, so the decrement rolls back with the rest of the order writes.
func (r *Repository) DecrementStockIfAvailableTx(ctx context.Context, tx *sql.Tx, id string, qty int) (bool, error) {
	return decrementStock(ctx, tx, id, qty)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func decrementStock(ctx context.Context, db execer, id string, qty int) (bool, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`, id, qty)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// Delete removes a product. Products referenced by past orders or sales are
// soft-deleted (marked inactive) so historical records keep resolving; only
// products with no purchase history are hard-deleted. Returns true when the
// product was soft-deleted.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	var referenced bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)
		    OR EXISTS (SELECT 1 FROM sales WHERE product_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return false, err
	}

	var result sql.Result
	if referenced {
		result, err = r.db.ExecContext(ctx, `UPDATE products SET active = FALSE WHERE id = $1`, id)
	} else {
		result, err = r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	}
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		return false, domain.ErrNotFound
	}

	return referenced, nil
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.Discount, pq.Array(&p.Images), &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if products == nil {
		products = []domain.Product{}
	}

	return products, nil
}
