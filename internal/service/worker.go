package service

import (
	"context"
	"log"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// PositionUpdater is the registry side of a location update.
type PositionUpdater interface {
	UpdatePosition(id string, lat, lng float64)
}

// WorkerService handles worker-originated operations: location reports and
// panic alerts.
type WorkerService struct {
	registry  PositionUpdater
	workers   WorkerSource
	locations redis.LocationStoreInterface
	bus       NotificationBus
}

// NewWorkerService creates a new WorkerService.
func NewWorkerService(registry PositionUpdater, workers WorkerSource, locations redis.LocationStoreInterface, bus NotificationBus) *WorkerService {
	return &WorkerService{registry: registry, workers: workers, locations: locations, bus: bus}
}

// SetLocation records a worker's position in the in-memory registry and
// writes it through to Redis. Redis failures are logged, not returned; the
// registry remains authoritative for dispatch.
func (s *WorkerService) SetLocation(ctx context.Context, workerID string, lat, lng float64) error {
	if workerID == "" {
		return ErrInvalidWorkerID
	}
	if _, err := geo.CellOf(lat, lng); err != nil {
		return ErrInvalidLocation
	}

	s.registry.UpdatePosition(workerID, lat, lng)

	if err := s.locations.UpdateLocation(ctx, workerID, lat, lng); err != nil {
		log.Printf("redis location write for worker %s: %v", workerID, err)
	}

	s.bus.Broadcast(EventLocationUpdated, LocationEvent{WorkerID: workerID, Lat: lat, Lng: lng})
	return nil
}

// panicFallbackRadiusKm bounds the Redis search for last-known positions
// when no colleague is currently online.
const panicFallbackRadiusKm = 10

// Panic broadcasts a panic alert for a worker and returns the nearest
// colleague, who the caller can direct to assist. Online workers are
// preferred; when none are connected, the search falls back to the last
// positions persisted in Redis.
func (s *WorkerService) Panic(ctx context.Context, workerID string, lat, lng float64) (*domain.Worker, error) {
	if workerID == "" {
		return nil, ErrInvalidWorkerID
	}
	if _, err := geo.CellOf(lat, lng); err != nil {
		return nil, ErrInvalidLocation
	}

	s.bus.Broadcast(EventPanicAlert, PanicEvent{WorkerID: workerID, Lat: lat, Lng: lng})

	candidates := s.workers.Snapshot(domain.CapabilityDriver)
	peers := candidates[:0:0]
	for _, w := range candidates {
		if w.ID != workerID {
			peers = append(peers, w)
		}
	}

	if nearest, ok := geo.Nearest(lat, lng, peers); ok {
		return &nearest, nil
	}
	return s.nearestPersisted(ctx, workerID, lat, lng)
}

// nearestPersisted returns the closest colleague by last persisted
// position. These workers are not connected, so the returned Worker
// carries no notify handle.
func (s *WorkerService) nearestPersisted(ctx context.Context, workerID string, lat, lng float64) (*domain.Worker, error) {
	persisted, err := s.locations.FindNearbyWorkers(ctx, lat, lng, panicFallbackRadiusKm)
	if err != nil {
		log.Printf("redis nearby lookup for worker %s: %v", workerID, err)
		return nil, ErrNoWorkersNearby
	}
	for _, loc := range persisted {
		if loc.WorkerID == workerID {
			continue
		}
		return &domain.Worker{ID: loc.WorkerID, Lat: loc.Lat, Lng: loc.Lng}, nil
	}
	return nil, ErrNoWorkersNearby
}

// Location returns a worker's current position, preferring the live
// registry and falling back to the last position persisted in Redis.
func (s *WorkerService) Location(ctx context.Context, workerID string) (*redis.WorkerLocation, error) {
	if workerID == "" {
		return nil, ErrInvalidWorkerID
	}

	if w, ok := s.workers.Get(workerID); ok {
		return &redis.WorkerLocation{WorkerID: w.ID, Lat: w.Lat, Lng: w.Lng}, nil
	}

	loc, err := s.locations.GetLocation(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, repository.ErrNotFound
	}
	return loc, nil
}
