package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Geocoding results are effectively immutable, but a long TTL keeps the
// key space bounded.
const geocodeCacheTTL = 24 * time.Hour

const geocodeCachePrefix = "cache:geocode:"

// CachedCoordinate is a cached geocoding result.
type CachedCoordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CacheStore caches geocoding results in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetCoordinate retrieves a cached geocoding result. A cache miss returns
// (nil, nil).
func (s *CacheStore) GetCoordinate(ctx context.Context, address string) (*CachedCoordinate, error) {
	data, err := s.client.Get(ctx, geocodeCachePrefix+address).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var coord CachedCoordinate
	if err := json.Unmarshal(data, &coord); err != nil {
		return nil, err
	}
	return &coord, nil
}

// SetCoordinate caches a geocoding result.
func (s *CacheStore) SetCoordinate(ctx context.Context, address string, coord *CachedCoordinate) error {
	data, err := json.Marshal(coord)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, geocodeCachePrefix+address, data, geocodeCacheTTL).Err()
}
