package repository

import (
	"context"

	"dispatch/internal/domain"
)

// ContactRepository defines the persistence operations for contacts.
type ContactRepository interface {
	// Ensure creates the contact if it does not exist yet.
	Ensure(ctx context.Context, contact *domain.Contact) error

	// GetByPhone retrieves a contact by its phone-like ID.
	GetByPhone(ctx context.Context, phone string) (*domain.Contact, error)
}

// AddressRepository defines the persistence operations for a contact's
// saved addresses.
type AddressRepository interface {
	// Lookup finds a saved address by normalized text. Returns
	// ErrNotFound when the contact has no such address.
	Lookup(ctx context.Context, phone, text string) (*domain.Address, error)

	// Save stores a newly resolved address for later reuse.
	Save(ctx context.Context, address *domain.Address) error
}
