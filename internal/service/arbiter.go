package service

import (
	"context"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Arbiter guarantees exactly one winning acceptance per trip. It owns no
// state of its own; the trip store's conditional transition is the only
// synchronization primitive, so concurrent accepts linearize through a
// single guarded UPDATE.
type Arbiter struct {
	trips repository.TripRepository
}

// NewArbiter creates a new Arbiter.
func NewArbiter(trips repository.TripRepository) *Arbiter {
	return &Arbiter{trips: trips}
}

// Accept assigns the worker to a pending trip, atomically with the
// PENDING -> ACCEPTED transition. Of N concurrent callers exactly one
// succeeds; the rest receive ErrAlreadyAssigned.
func (a *Arbiter) Accept(ctx context.Context, tripID, workerID string) (*domain.Trip, error) {
	pending := domain.TripStatusPending
	won, err := a.trips.Transition(ctx, tripID, &pending, domain.TripStatusAccepted, workerID)
	if err != nil {
		return nil, err
	}

	if !won {
		// Distinguish a lost race from a trip that never existed.
		if _, err := a.trips.GetByID(ctx, tripID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, repository.ErrNotFound
			}
			return nil, err
		}
		return nil, ErrAlreadyAssigned
	}

	return a.trips.GetByID(ctx, tripID)
}

// Reject unconditionally moves a trip to REJECTED. Used by explicit
// operator action and by cycle exhaustion.
func (a *Arbiter) Reject(ctx context.Context, tripID string) (*domain.Trip, error) {
	applied, err := a.trips.Transition(ctx, tripID, nil, domain.TripStatusRejected, "")
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, repository.ErrNotFound
	}
	return a.trips.GetByID(ctx, tripID)
}
