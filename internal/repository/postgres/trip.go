package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (id, requester_phone, assigned_worker_id, kind, status, pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address, description, created_at, scheduled_at, retry_count, search_radius)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	var assignedWorkerID sql.NullString
	if trip.AssignedWorkerID != "" {
		assignedWorkerID = sql.NullString{String: trip.AssignedWorkerID, Valid: true}
	}

	var scheduledAt sql.NullTime
	if !trip.ScheduledAt.IsZero() {
		scheduledAt = sql.NullTime{Time: trip.ScheduledAt, Valid: true}
	}

	var description sql.NullString
	if trip.Description != "" {
		description = sql.NullString{String: trip.Description, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.RequesterPhone,
		assignedWorkerID,
		trip.Kind,
		trip.Status,
		trip.PickupLat,
		trip.PickupLng,
		trip.PickupAddress,
		trip.DropoffLat,
		trip.DropoffLng,
		trip.DropoffAddress,
		description,
		trip.CreatedAt,
		scheduledAt,
		trip.RetryCount,
		trip.SearchRadius,
	)

	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `
		SELECT id, requester_phone, assigned_worker_id, kind, status, pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address, description, created_at, scheduled_at, retry_count, search_radius
		FROM trips WHERE id = $1
	`

	var trip domain.Trip
	var assignedWorkerID sql.NullString
	var scheduledAt sql.NullTime
	var description sql.NullString

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&trip.ID,
		&trip.RequesterPhone,
		&assignedWorkerID,
		&trip.Kind,
		&trip.Status,
		&trip.PickupLat,
		&trip.PickupLng,
		&trip.PickupAddress,
		&trip.DropoffLat,
		&trip.DropoffLng,
		&trip.DropoffAddress,
		&description,
		&trip.CreatedAt,
		&scheduledAt,
		&trip.RetryCount,
		&trip.SearchRadius,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if assignedWorkerID.Valid {
		trip.AssignedWorkerID = assignedWorkerID.String
	}
	if scheduledAt.Valid {
		trip.ScheduledAt = scheduledAt.Time
	}
	if description.Valid {
		trip.Description = description.String
	}

	return &trip, nil
}

// Transition atomically moves a trip to the given state. The conditional
// form compiles to a single UPDATE guarded on the current status, which is
// what makes concurrent acceptance single-winner: only one UPDATE can
// match the PENDING row.
func (r *TripRepository) Transition(ctx context.Context, id string, expectedFrom *domain.TripStatus, to domain.TripStatus, workerID string) (bool, error) {
	var workerArg sql.NullString
	if workerID != "" {
		workerArg = sql.NullString{String: workerID, Valid: true}
	}

	var result sql.Result
	var err error
	if expectedFrom != nil {
		query := `
			UPDATE trips
			SET status = $1, assigned_worker_id = COALESCE($2, assigned_worker_id)
			WHERE id = $3 AND status = $4
		`
		result, err = r.q.ExecContext(ctx, query, to, workerArg, id, *expectedFrom)
	} else {
		query := `
			UPDATE trips
			SET status = $1, assigned_worker_id = COALESCE($2, assigned_worker_id)
			WHERE id = $3
		`
		result, err = r.q.ExecContext(ctx, query, to, workerArg, id)
	}
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// RecordAttempt bumps the retry counter and stores the broadcast radius
// in one guarded UPDATE. A counter already at the bound matches no row;
// the follow-up read distinguishes that from a missing trip.
func (r *TripRepository) RecordAttempt(ctx context.Context, id string, bound int, radius float64) (int, bool, error) {
	query := `
		UPDATE trips SET retry_count = retry_count + 1, search_radius = $2
		WHERE id = $1 AND retry_count < $3 RETURNING retry_count
	`

	var count int
	err := r.q.QueryRowContext(ctx, query, id, radius, bound).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}

	if err := r.q.QueryRowContext(ctx, `SELECT retry_count FROM trips WHERE id = $1`, id).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, repository.ErrNotFound
		}
		return 0, false, err
	}
	return count, false, nil
}
