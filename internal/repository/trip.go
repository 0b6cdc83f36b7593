package repository

import (
	"context"

	"dispatch/internal/domain"
)

// TripRepository defines the persistence operations for trips. Trips are
// never deleted; terminal states are retained for history.
type TripRepository interface {
	// Create persists a new trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// Transition atomically moves a trip to the given state. When
	// expectedFrom is non-nil the transition applies only if the current
	// state still matches, and reports whether it did; this conditional
	// form is the sole primitive enforcing single-winner acceptance.
	// A nil expectedFrom overwrites unconditionally. workerID, when
	// non-empty, is assigned in the same atomic step.
	Transition(ctx context.Context, id string, expectedFrom *domain.TripStatus, to domain.TripStatus, workerID string) (bool, error)

	// RecordAttempt bumps the trip's retry counter and stores the radius
	// of the latest broadcast, guarded by the attempt bound: when the
	// counter already sits at bound the row is left untouched and bumped
	// is false. The guard lives in the same atomic step as the increment,
	// so concurrent retries can never drive the counter past the bound.
	RecordAttempt(ctx context.Context, id string, bound int, radius float64) (count int, bumped bool, err error)
}
