package service

import (
	"context"
	"errors"
	"log"
	"time"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/repository"
)

// ReservationScheduler handles future-dated trips. Unlike the dispatch
// cycle it broadcasts once at a fixed radius and then polls against an
// absolute wall-clock deadline: the reservation time minus the cancel
// window. The ticker lives inside the trip's own task context, so a
// scheduler shutdown cannot leak ticking tasks.
type ReservationScheduler struct {
	trips   repository.TripRepository
	workers WorkerSource
	bus     NotificationBus
	arbiter *Arbiter
	cfg     config.DispatchConfig
}

// NewReservationScheduler creates a new ReservationScheduler.
func NewReservationScheduler(
	trips repository.TripRepository,
	workers WorkerSource,
	bus NotificationBus,
	arbiter *Arbiter,
	cfg config.DispatchConfig,
) *ReservationScheduler {
	return &ReservationScheduler{
		trips:   trips,
		workers: workers,
		bus:     bus,
		arbiter: arbiter,
		cfg:     cfg,
	}
}

// Run watches one reservation until it is accepted, resolved elsewhere, or
// its cutoff passes.
func (s *ReservationScheduler) Run(ctx context.Context, trip *domain.Trip, requesterName string) {
	cutoff := trip.ScheduledAt.Add(-s.cfg.CancelWindow)

	// Too close to the reservation time already: reject without ever
	// broadcasting the offer.
	if !time.Now().Before(cutoff) {
		log.Printf("rejecting reservation %s: inside the %s cancel window", trip.ID, s.cfg.CancelWindow)
		s.reject(ctx, trip)
		return
	}

	offer := requestEvent(trip, requesterName)
	nearby, err := geo.FindNearby(trip.PickupLat, trip.PickupLng, s.cfg.ReservationRadius, s.workers.Snapshot(eligibleCapability(trip.Kind)))
	if err != nil {
		log.Printf("reservation broadcast for trip %s: %v", trip.ID, err)
		return
	}
	for _, worker := range nearby {
		s.bus.Notify(worker.Handle, eventName(trip.Kind, EventSuffixRequest), offer)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !time.Now().Before(cutoff) {
			log.Printf("rejecting reservation %s: cutoff reached with no acceptance", trip.ID)
			s.reject(ctx, trip)
			return
		}

		current, err := s.trips.GetByID(ctx, trip.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				log.Printf("reservation %s disappeared, stopping poll", trip.ID)
				return
			}
			// Transient store failure; the next tick retries.
			log.Printf("polling reservation %s: %v", trip.ID, err)
			continue
		}
		if current.Status != domain.TripStatusPending {
			// Accepted or manually resolved elsewhere.
			return
		}
	}
}

func (s *ReservationScheduler) reject(ctx context.Context, trip *domain.Trip) {
	if _, err := s.arbiter.Reject(ctx, trip.ID); err != nil {
		log.Printf("rejecting reservation %s: %v", trip.ID, err)
		return
	}
	s.bus.Broadcast(eventName(trip.Kind, EventSuffixRejected), resolvedEvent(trip))
}
