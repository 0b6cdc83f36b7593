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

// WorkerSource is the registry surface the dispatch tasks consume:
// point-in-time snapshots of online workers.
type WorkerSource interface {
	Snapshot(capability domain.WorkerCapability) []domain.Worker
	Get(id string) (domain.Worker, bool)
}

// Dispatcher runs the bounded retry/escalation cycle for immediate
// requests. Each trip's cycle is an independent detached task; the trip
// store is the only shared mutable state, and the cycle coordinates with
// concurrent accepts purely by rereading it.
type Dispatcher struct {
	trips   repository.TripRepository
	workers WorkerSource
	bus     NotificationBus
	arbiter *Arbiter
	cfg     config.DispatchConfig
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	trips repository.TripRepository,
	workers WorkerSource,
	bus NotificationBus,
	arbiter *Arbiter,
	cfg config.DispatchConfig,
) *Dispatcher {
	return &Dispatcher{
		trips:   trips,
		workers: workers,
		bus:     bus,
		arbiter: arbiter,
		cfg:     cfg,
	}
}

// eligibleCapability maps a trip kind to the worker type it broadcasts to.
func eligibleCapability(kind domain.TripKind) domain.WorkerCapability {
	if kind == domain.TripKindDelivery {
		return domain.CapabilityCourier
	}
	return domain.CapabilityDriver
}

// Run executes the dispatch cycle for one trip until acceptance, rejection
// or attempt exhaustion. The radius grows by the configured factor on
// every unanswered attempt and never shrinks within a cycle.
func (d *Dispatcher) Run(ctx context.Context, trip *domain.Trip, requesterName string) {
	radius := trip.SearchRadius
	if radius <= 0 {
		radius = d.cfg.InitialRadius
	}
	capability := eligibleCapability(trip.Kind)
	offer := requestEvent(trip, requesterName)

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		current, ok := d.readPending(ctx, trip.ID)
		if !ok {
			return
		}
		if current == nil {
			// Transient store failure; the next window retries the read.
			current = trip
		}

		log.Printf("%s request cycle for trip %s, attempt %d with radius %.0f m", trip.Kind, trip.ID, attempt, radius)

		nearby, err := geo.FindNearby(trip.PickupLat, trip.PickupLng, radius, d.workers.Snapshot(capability))
		if err != nil {
			log.Printf("dispatch cycle for trip %s: %v", trip.ID, err)
			return
		}
		for _, worker := range nearby {
			log.Printf("offering trip %s to worker %s", trip.ID, worker.ID)
			d.bus.Notify(worker.Handle, eventName(trip.Kind, EventSuffixRequest), offer)
		}
		d.bus.Broadcast(eventName(trip.Kind, EventSuffixPending), pendingEvent(trip, radius))

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.cfg.WaitWindow):
		}

		current, ok = d.readPending(ctx, trip.ID)
		if !ok {
			return
		}
		if current == nil {
			continue
		}

		// Persist the unanswered attempt with the radius it broadcast,
		// then escalate for the next window.
		if _, _, err := d.trips.RecordAttempt(ctx, trip.ID, d.cfg.MaxAttempts, radius); err != nil {
			log.Printf("recording attempt for trip %s: %v", trip.ID, err)
		}
		radius *= d.cfg.GrowthFactor
	}

	current, err := d.trips.GetByID(ctx, trip.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("final state read for trip %s: %v", trip.ID, err)
		}
		return
	}
	if current.Status != domain.TripStatusPending {
		return
	}

	log.Printf("rejecting %s request %s: no acceptance after %d attempts", trip.Kind, trip.ID, d.cfg.MaxAttempts)
	if _, err := d.arbiter.Reject(ctx, trip.ID); err != nil {
		log.Printf("rejecting trip %s: %v", trip.ID, err)
		return
	}
	d.bus.Broadcast(eventName(trip.Kind, EventSuffixRejected), resolvedEvent(trip))
}

// readPending rereads the trip; the second return is false when the cycle
// must stop (trip vanished, context cancelled, or a terminal state was
// reached). A (nil, true) result signals a transient read failure.
func (d *Dispatcher) readPending(ctx context.Context, tripID string) (*domain.Trip, bool) {
	if ctx.Err() != nil {
		return nil, false
	}

	current, err := d.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The creation acknowledgment already went out; nothing to
			// surface to a user here.
			log.Printf("trip %s disappeared mid-cycle, aborting", tripID)
			return nil, false
		}
		log.Printf("reading trip %s: %v", tripID, err)
		return nil, true
	}
	if current.Status != domain.TripStatusPending {
		return nil, false
	}
	return current, true
}
