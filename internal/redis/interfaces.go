package redis

import (
	"context"
)

// LocationStoreInterface defines the interface for worker location
// persistence.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, workerID string, lat, lng float64) error
	GetLocation(ctx context.Context, workerID string) (*WorkerLocation, error)
	FindNearbyWorkers(ctx context.Context, lat, lng, radiusKm float64) ([]WorkerLocation, error)
}

// Ensure concrete types implement interfaces.
var _ LocationStoreInterface = (*LocationStore)(nil)
