package sales

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/sorpresa-shop/backend/internal/domain"
)

// Repository is the append-only sales ledger. Rows are written once at
// payment capture and never updated or deleted from here.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertTx appends one sale inside the caller's transaction so the ledger
// entry commits or rolls back with the rest of the capture writes.
func (r *Repository) InsertTx(ctx context.Context, tx *sql.Tx, sale *domain.Sale) error {
	sale.ID = uuid.New().String()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, product_id, quantity, sale_price, total, customer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sale.ID, sale.ProductID, sale.Quantity, sale.SalePrice, sale.Total, sale.CustomerID, sale.CreatedAt)
	return err
}

func (r *Repository) ListByProduct(ctx context.Context, productID string, limit int) ([]domain.Sale, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, sale_price, total, customer_id, created_at
		FROM sales
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanSales(rows)
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]domain.Sale, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, sale_price, total, customer_id, created_at
		FROM sales
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanSales(rows)
}

func scanSales(rows *sql.Rows) ([]domain.Sale, error) {
	sales := []domain.Sale{}
	for rows.Next() {
		var s domain.Sale
		if err := rows.Scan(&s.ID, &s.ProductID, &s.Quantity, &s.SalePrice, &s.Total, &s.CustomerID, &s.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sales, nil
}
