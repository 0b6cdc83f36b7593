package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// ContactRepository is a PostgreSQL implementation of
// repository.ContactRepository.
type ContactRepository struct {
	q Querier
}

// NewContactRepository creates a new PostgreSQL contact repository.
func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{q: db}
}

// Ensure creates the contact if it does not exist yet.
func (r *ContactRepository) Ensure(ctx context.Context, contact *domain.Contact) error {
	query := `
		INSERT INTO contacts (phone, name) VALUES ($1, $2)
		ON CONFLICT (phone) DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, contact.Phone, contact.Name)
	return err
}

// GetByPhone retrieves a contact by its phone-like ID.
func (r *ContactRepository) GetByPhone(ctx context.Context, phone string) (*domain.Contact, error) {
	query := `SELECT phone, name FROM contacts WHERE phone = $1`

	var contact domain.Contact
	err := r.q.QueryRowContext(ctx, query, phone).Scan(&contact.Phone, &contact.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &contact, nil
}
