package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/repository"
)

// cycleRunner is a background task body: Dispatcher.Run or
// ReservationScheduler.Run.
type cycleRunner interface {
	Run(ctx context.Context, trip *domain.Trip, requesterName string)
}

// TripService owns trip creation and the trip lifecycle entrypoints. The
// creation calls return as soon as the trip row exists; the dispatch work
// runs as a detached task and never blocks the caller.
type TripService struct {
	trips     repository.TripRepository
	contacts  repository.ContactRepository
	addresses repository.AddressRepository
	geocoder  Geocoder
	workers   WorkerSource
	bus       NotificationBus
	arbiter   *Arbiter
	dispatch  cycleRunner
	scheduler cycleRunner
	tasks     *TaskRegistry
	reporter  StatusReporter
	cfg       config.DispatchConfig
}

// NewTripService creates a new TripService.
func NewTripService(
	trips repository.TripRepository,
	contacts repository.ContactRepository,
	addresses repository.AddressRepository,
	geocoder Geocoder,
	workers WorkerSource,
	bus NotificationBus,
	arbiter *Arbiter,
	dispatch cycleRunner,
	scheduler cycleRunner,
	tasks *TaskRegistry,
	reporter StatusReporter,
	cfg config.DispatchConfig,
) *TripService {
	return &TripService{
		trips:     trips,
		contacts:  contacts,
		addresses: addresses,
		geocoder:  geocoder,
		workers:   workers,
		bus:       bus,
		arbiter:   arbiter,
		dispatch:  dispatch,
		scheduler: scheduler,
		tasks:     tasks,
		reporter:  reporter,
		cfg:       cfg,
	}
}

// Endpoint is one end of a requested trip: a coordinate, an address text,
// or both.
type Endpoint struct {
	Lat     float64
	Lng     float64
	Address string
}

// TaxiRequest contains the parameters for an immediate taxi trip.
type TaxiRequest struct {
	RequesterPhone string
	RequesterName  string
	Pickup         Endpoint
	Dropoff        Endpoint
}

// DeliveryRequest contains the parameters for an immediate delivery trip.
type DeliveryRequest struct {
	RequesterPhone string
	RequesterName  string
	Pickup         Endpoint
	Dropoff        Endpoint
	Description    string
}

// ReservationRequest contains the parameters for a future-dated trip.
type ReservationRequest struct {
	RequesterPhone string
	RequesterName  string
	Pickup         Endpoint
	Dropoff        Endpoint
	Date           string // 2006-01-02
	Time           string // 15:04
}

// NewEndpoint builds an Endpoint from optional coordinates and address.
func NewEndpoint(lat, lng float64, address string) Endpoint {
	return Endpoint{Lat: lat, Lng: lng, Address: address}
}

// CreateTaxi creates an immediate taxi trip and spawns its dispatch cycle.
// Saved addresses short-circuit geocoding; freshly geocoded addresses are
// saved back to the requester's address book.
func (s *TripService) CreateTaxi(ctx context.Context, req TaxiRequest) (*domain.Trip, error) {
	if req.RequesterPhone == "" {
		return nil, ErrInvalidRequester
	}
	if err := s.ensureContact(ctx, req.RequesterPhone, req.RequesterName); err != nil {
		return nil, err
	}

	pickup, err := s.resolveSaved(ctx, req.RequesterPhone, req.Pickup)
	if err != nil {
		return nil, wrapEndpointErr(err, ErrInvalidPickupLocation)
	}
	dropoff, err := s.resolveSaved(ctx, req.RequesterPhone, req.Dropoff)
	if err != nil {
		return nil, wrapEndpointErr(err, ErrInvalidDropoffLocation)
	}

	trip := s.newTrip(domain.TripKindTaxi, req.RequesterPhone, pickup, dropoff)
	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, err
	}

	s.bus.Broadcast(eventName(trip.Kind, EventSuffixPending), pendingEvent(trip, trip.SearchRadius))
	s.spawnDispatch(trip, req.RequesterName)

	return trip, nil
}

// CreateDelivery creates an immediate delivery trip and spawns its
// dispatch cycle.
func (s *TripService) CreateDelivery(ctx context.Context, req DeliveryRequest) (*domain.Trip, error) {
	if req.RequesterPhone == "" {
		return nil, ErrInvalidRequester
	}
	if err := s.ensureContact(ctx, req.RequesterPhone, req.RequesterName); err != nil {
		return nil, err
	}

	pickup, err := s.resolve(ctx, req.Pickup)
	if err != nil {
		return nil, wrapEndpointErr(err, ErrInvalidPickupLocation)
	}
	dropoff, err := s.resolve(ctx, req.Dropoff)
	if err != nil {
		return nil, wrapEndpointErr(err, ErrInvalidDropoffLocation)
	}

	trip := s.newTrip(domain.TripKindDelivery, req.RequesterPhone, pickup, dropoff)
	trip.Description = req.Description
	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, err
	}

	s.bus.Broadcast(eventName(trip.Kind, EventSuffixPending), pendingEvent(trip, trip.SearchRadius))
	s.spawnDispatch(trip, req.RequesterName)

	return trip, nil
}

// CreateReservation creates a future-dated trip. A reservation already
// inside the cancel window is rejected on the spot, with no request or
// pending broadcast; otherwise the scheduler task takes over.
func (s *TripService) CreateReservation(ctx context.Context, req ReservationRequest) (*domain.Trip, error) {
	if req.RequesterPhone == "" {
		return nil, ErrInvalidRequester
	}

	scheduledAt, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, time.Local)
	if err != nil {
		return nil, ErrInvalidSchedule
	}

	if err := s.ensureContact(ctx, req.RequesterPhone, req.RequesterName); err != nil {
		return nil, err
	}

	pickup, err := s.resolve(ctx, req.Pickup)
	if err != nil {
		return nil, wrapEndpointErr(err, ErrInvalidPickupLocation)
	}
	dropoff, err := s.resolve(ctx, req.Dropoff)
	if err != nil {
		return nil, wrapEndpointErr(err, ErrInvalidDropoffLocation)
	}

	trip := s.newTrip(domain.TripKindReservation, req.RequesterPhone, pickup, dropoff)
	trip.ScheduledAt = scheduledAt
	trip.SearchRadius = s.cfg.ReservationRadius
	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, err
	}

	cutoff := scheduledAt.Add(-s.cfg.CancelWindow)
	if !time.Now().Before(cutoff) {
		log.Printf("rejecting reservation %s at creation: inside the %s cancel window", trip.ID, s.cfg.CancelWindow)
		if rejected, err := s.arbiter.Reject(ctx, trip.ID); err == nil {
			trip = rejected
		}
		s.bus.Broadcast(eventName(trip.Kind, EventSuffixRejected), resolvedEvent(trip))
		return trip, nil
	}

	s.bus.Broadcast(eventName(trip.Kind, EventSuffixPending), pendingEvent(trip, trip.SearchRadius))
	requesterName := req.RequesterName
	s.tasks.Spawn(trip.ID, func(taskCtx context.Context) {
		s.scheduler.Run(taskCtx, trip, requesterName)
	})

	return trip, nil
}

// Accept races the caller against every other acceptance of the trip.
// Exactly one wins; the winner gets the full trip context pushed to its
// handle and the acceptance is reported to the fleet system.
func (s *TripService) Accept(ctx context.Context, tripID, workerID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if workerID == "" {
		return nil, ErrInvalidWorkerID
	}

	trip, err := s.arbiter.Accept(ctx, tripID, workerID)
	if err != nil {
		return nil, err
	}

	s.bus.Broadcast(eventName(trip.Kind, EventSuffixAccepted), resolvedEvent(trip))

	requesterName := ""
	if contact, err := s.contacts.GetByPhone(ctx, trip.RequesterPhone); err == nil {
		requesterName = contact.Name
	}

	worker, known := s.workers.Get(workerID)
	if known {
		assigned := AssignedEvent{
			TripID:         trip.ID,
			RequesterName:  requesterName,
			RequesterPhone: trip.RequesterPhone,
			PickupAddress:  trip.PickupAddress,
			PickupLat:      trip.PickupLat,
			PickupLng:      trip.PickupLng,
			DropoffAddress: trip.DropoffAddress,
			DropoffLat:     trip.DropoffLat,
			DropoffLng:     trip.DropoffLng,
			Description:    trip.Description,
			Kind:           string(trip.Kind),
		}
		if !trip.ScheduledAt.IsZero() {
			assigned.ScheduledAt = trip.ScheduledAt.Format("2006-01-02 15:04")
		}
		s.bus.Notify(worker.Handle, EventAssignedWorker, assigned)
		s.reporter.Report(ctx, "accepted", trip, &worker)
	} else {
		s.reporter.Report(ctx, "accepted", trip, nil)
	}

	return trip, nil
}

// Reject unconditionally rejects a trip and broadcasts the resolution.
// The trip's background task, if any, observes the terminal state on its
// next poll.
func (s *TripService) Reject(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.arbiter.Reject(ctx, tripID)
	if err != nil {
		return nil, err
	}

	s.bus.Broadcast(eventName(trip.Kind, EventSuffixRejected), resolvedEvent(trip))
	return trip, nil
}

// Status returns the trip's current lifecycle state.
func (s *TripService) Status(ctx context.Context, tripID string) (domain.TripStatus, error) {
	if tripID == "" {
		return "", ErrInvalidTripID
	}
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return "", err
	}
	return trip.Status, nil
}

// RetryRequest contains the parameters for a manual re-broadcast.
type RetryRequest struct {
	TripID string
	Radius float64 // meters; 0 uses the configured initial radius
}

// Retry manually re-broadcasts a pending trip. It shares the automatic
// cycle's retry counter: once the incremented count reaches the attempt
// bound the trip is rejected instead of re-broadcast.
func (s *TripService) Retry(ctx context.Context, req RetryRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.trips.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if trip.Status != domain.TripStatusPending {
		return nil, ErrTripNotPending
	}

	radius := req.Radius
	if radius <= 0 {
		radius = s.cfg.InitialRadius
	}

	// The attempt bound is enforced inside RecordAttempt itself, so
	// concurrent retries racing past the pending check above still
	// cannot drive the counter beyond the bound.
	count, bumped, err := s.trips.RecordAttempt(ctx, req.TripID, s.cfg.MaxAttempts, radius)
	if err != nil {
		return nil, err
	}

	if !bumped || count >= s.cfg.MaxAttempts {
		log.Printf("rejecting trip %s on manual retry: attempt bound reached", trip.ID)
		rejected, err := s.arbiter.Reject(ctx, trip.ID)
		if err != nil {
			return nil, err
		}
		s.bus.Broadcast(eventName(trip.Kind, EventSuffixRejected), resolvedEvent(rejected))
		return rejected, nil
	}

	requesterName := ""
	if contact, err := s.contacts.GetByPhone(ctx, trip.RequesterPhone); err == nil {
		requesterName = contact.Name
	}

	offer := requestEvent(trip, requesterName)
	nearby, err := geo.FindNearby(trip.PickupLat, trip.PickupLng, radius, s.workers.Snapshot(eligibleCapability(trip.Kind)))
	if err != nil {
		return nil, err
	}
	for _, worker := range nearby {
		s.bus.Notify(worker.Handle, eventName(trip.Kind, EventSuffixRequest), offer)
	}
	s.bus.Broadcast(eventName(trip.Kind, EventSuffixPending), pendingEvent(trip, radius))

	return trip, nil
}

// UpdateStatus unconditionally transitions a trip and reports the change
// to the external fleet system. The worker ID is a required input; the
// report never infers it from the trip row.
func (s *TripService) UpdateStatus(ctx context.Context, tripID string, status domain.TripStatus, workerID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if workerID == "" {
		return nil, ErrInvalidWorkerID
	}
	switch status {
	case domain.TripStatusAccepted, domain.TripStatusRejected, domain.TripStatusCancelled, domain.TripStatusCompleted:
	default:
		return nil, ErrInvalidStatus
	}

	applied, err := s.trips.Transition(ctx, tripID, nil, status, "")
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, repository.ErrNotFound
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if worker, known := s.workers.Get(workerID); known {
		s.reporter.Report(ctx, string(status), trip, &worker)
	} else {
		s.reporter.Report(ctx, string(status), trip, &domain.Worker{ID: workerID})
	}

	return trip, nil
}

// Drain stops every background task, waiting up to timeout.
func (s *TripService) Drain(timeout time.Duration) {
	s.tasks.Drain(timeout)
}

func (s *TripService) newTrip(kind domain.TripKind, phone string, pickup, dropoff Endpoint) *domain.Trip {
	return &domain.Trip{
		ID:             uuid.NewString(),
		RequesterPhone: phone,
		Kind:           kind,
		Status:         domain.TripStatusPending,
		PickupLat:      pickup.Lat,
		PickupLng:      pickup.Lng,
		PickupAddress:  pickup.Address,
		DropoffLat:     dropoff.Lat,
		DropoffLng:     dropoff.Lng,
		DropoffAddress: dropoff.Address,
		CreatedAt:      time.Now(),
		SearchRadius:   s.cfg.InitialRadius,
	}
}

func (s *TripService) spawnDispatch(trip *domain.Trip, requesterName string) {
	s.tasks.Spawn(trip.ID, func(taskCtx context.Context) {
		s.dispatch.Run(taskCtx, trip, requesterName)
	})
}

func (s *TripService) ensureContact(ctx context.Context, phone, name string) error {
	return s.contacts.Ensure(ctx, &domain.Contact{Phone: phone, Name: name})
}

// resolve fills in missing coordinates from the geocoder and validates the
// result. Resolution failure aborts creation before any trip row exists.
func (s *TripService) resolve(ctx context.Context, ep Endpoint) (Endpoint, error) {
	if ep.Lat == 0 && ep.Lng == 0 {
		if ep.Address == "" {
			return ep, ErrAddressResolution
		}
		coord, err := s.geocoder.Geocode(ctx, ep.Address)
		if err != nil {
			return ep, err
		}
		if coord == nil {
			return ep, ErrAddressResolution
		}
		ep.Lat = coord.Lat
		ep.Lng = coord.Lng
	}
	if _, err := geo.CellOf(ep.Lat, ep.Lng); err != nil {
		return ep, err
	}
	if ep.Address == "" {
		// Raw GPS request; fill in a display address best-effort.
		if addr, err := s.geocoder.ReverseGeocode(ctx, ep.Lat, ep.Lng); err == nil {
			ep.Address = addr
		}
	}
	return ep, nil
}

// resolveSaved is resolve with the requester's address book consulted
// first, and fresh resolutions saved back for reuse.
func (s *TripService) resolveSaved(ctx context.Context, phone string, ep Endpoint) (Endpoint, error) {
	if ep.Address != "" {
		if saved, err := s.addresses.Lookup(ctx, phone, ep.Address); err == nil {
			ep.Lat = saved.Lat
			ep.Lng = saved.Lng
			if _, err := geo.CellOf(ep.Lat, ep.Lng); err != nil {
				return ep, err
			}
			return ep, nil
		}
	}

	resolved, err := s.resolve(ctx, ep)
	if err != nil {
		return ep, err
	}

	if resolved.Address != "" {
		if err := s.addresses.Save(ctx, &domain.Address{
			ContactPhone: phone,
			Text:         resolved.Address,
			Lat:          resolved.Lat,
			Lng:          resolved.Lng,
		}); err != nil {
			log.Printf("saving address for %s: %v", phone, err)
		}
	}

	return resolved, nil
}

// wrapEndpointErr maps resolution failures onto the Endpoint-specific
// sentinel while letting other errors pass through.
func wrapEndpointErr(err, sentinel error) error {
	if errors.Is(err, geo.ErrInvalidCoordinate) {
		return sentinel
	}
	return err
}
