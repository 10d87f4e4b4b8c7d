package address

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/sorpresa-shop/backend/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, a *domain.Address) error {
	a.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, recipient_name, street, number, city, state, country, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.UserID, a.RecipientName, a.Street, a.Number, a.City, a.State, a.Country, a.PostalCode)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Address, error) {
	a := &domain.Address{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, recipient_name, street, number, city, state, country, postal_code
		FROM addresses
		WHERE id = $1
	`, id).Scan(&a.ID, &a.UserID, &a.RecipientName, &a.Street, &a.Number, &a.City, &a.State, &a.Country, &a.PostalCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return a, nil
}
