package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const workerLocationKey = "workers:locations"

// WorkerLocation represents a worker's position.
type WorkerLocation struct {
	WorkerID string
	Lat      float64
	Lng      float64
}

// LocationStore persists worker positions in Redis. The in-memory registry
// is the snapshot source for dispatch; this store is the durable
// write-through copy, retained across disconnects and restarts.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a worker's position using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, workerID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, workerLocationKey, &redis.GeoLocation{
		Name:      workerID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// GetLocation returns a worker's last persisted position, or nil if none
// was ever recorded.
func (s *LocationStore) GetLocation(ctx context.Context, workerID string) (*WorkerLocation, error) {
	positions, err := s.client.GeoPos(ctx, workerLocationKey, workerID).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, nil
	}
	return &WorkerLocation{
		WorkerID: workerID,
		Lat:      positions[0].Latitude,
		Lng:      positions[0].Longitude,
	}, nil
}

// FindNearbyWorkers returns persisted worker positions within the given
// radius in kilometers, closest first.
func (s *LocationStore) FindNearbyWorkers(ctx context.Context, lat, lng, radiusKm float64) ([]WorkerLocation, error) {
	results, err := s.client.GeoRadius(ctx, workerLocationKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]WorkerLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, WorkerLocation{
			WorkerID: r.Name,
			Lat:      r.Latitude,
			Lng:      r.Longitude,
		})
	}

	return locations, nil
}
