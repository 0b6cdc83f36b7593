package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// AddressRepository is a PostgreSQL implementation of
// repository.AddressRepository.
type AddressRepository struct {
	q Querier
}

// NewAddressRepository creates a new PostgreSQL address repository.
func NewAddressRepository(db *sql.DB) *AddressRepository {
	return &AddressRepository{q: db}
}

// Lookup finds a saved address by normalized text. Whitespace runs and
// case differences in the stored text do not prevent a match.
func (r *AddressRepository) Lookup(ctx context.Context, phone, text string) (*domain.Address, error) {
	query := `
		SELECT contact_phone, text, lat, lng FROM addresses
		WHERE contact_phone = $1
		  AND LOWER(TRIM(BOTH FROM REGEXP_REPLACE(text, '\s+', ' ', 'g'))) = $2
	`

	var address domain.Address
	err := r.q.QueryRowContext(ctx, query, phone, repository.NormalizeAddress(text)).Scan(
		&address.ContactPhone,
		&address.Text,
		&address.Lat,
		&address.Lng,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &address, nil
}

// Save stores a newly resolved address for later reuse.
func (r *AddressRepository) Save(ctx context.Context, address *domain.Address) error {
	query := `
		INSERT INTO addresses (contact_phone, text, lat, lng)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.q.ExecContext(ctx, query,
		address.ContactPhone,
		address.Text,
		address.Lat,
		address.Lng,
	)
	return err
}
