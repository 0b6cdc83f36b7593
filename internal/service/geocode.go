package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"dispatch/internal/config"
	"dispatch/internal/redis"
)

// Coordinate is a resolved latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Geocoder resolves between addresses and coordinates. Both directions are
// best-effort: an unresolvable input yields (nil, nil), not an error.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Coordinate, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// HTTPGeocoder resolves addresses through a Google-style geocoding API,
// with results cached in Redis.
type HTTPGeocoder struct {
	cfg    config.GeocodeConfig
	cache  *redis.CacheStore
	client *http.Client
}

// NewHTTPGeocoder creates a new HTTPGeocoder. cache may be nil.
func NewHTTPGeocoder(cfg config.GeocodeConfig, cache *redis.CacheStore) *HTTPGeocoder {
	return &HTTPGeocoder{
		cfg:    cfg,
		cache:  cache,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves an address to coordinates. Returns (nil, nil) when the
// address cannot be resolved.
func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (*Coordinate, error) {
	if g.cache != nil {
		cached, err := g.cache.GetCoordinate(ctx, address)
		if err == nil && cached != nil {
			return &Coordinate{Lat: cached.Lat, Lng: cached.Lng}, nil
		}
	}

	q := url.Values{}
	q.Set("address", address)
	q.Set("key", g.cfg.APIKey)

	resp, err := g.request(ctx, q)
	if err != nil {
		return nil, err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		log.Printf("geocoding failed for %q: %s", address, resp.Status)
		return nil, nil
	}

	loc := resp.Results[0].Geometry.Location
	coord := &Coordinate{Lat: loc.Lat, Lng: loc.Lng}

	if g.cache != nil {
		_ = g.cache.SetCoordinate(ctx, address, &redis.CachedCoordinate{Lat: coord.Lat, Lng: coord.Lng})
	}

	return coord, nil
}

// ReverseGeocode resolves coordinates to an address. Returns "" when no
// address is known for the point.
func (g *HTTPGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", lat, lng))
	q.Set("key", g.cfg.APIKey)

	resp, err := g.request(ctx, q)
	if err != nil {
		return "", err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].FormattedAddress, nil
}

func (g *HTTPGeocoder) request(ctx context.Context, q url.Values) (*geocodeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	httpResp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var resp geocodeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
