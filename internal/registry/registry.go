// Package registry tracks online workers, their last known position and
// their live notification handle. It is the in-memory source for proximity
// snapshots; positions are additionally written through to Redis by the
// worker service so they survive restarts.
package registry

import (
	"sync"

	"dispatch/internal/domain"
)

// Registry is a concurrency-safe worker registry. Reads take point-in-time
// copies; a registration or disconnect racing a snapshot may or may not be
// reflected, but a returned entry is never partially mutated.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*domain.Worker
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{workers: make(map[string]*domain.Worker)}
}

// Register upserts a worker and marks it online. Registering an already
// known worker replaces its handle and position.
func (r *Registry) Register(id string, capability domain.WorkerCapability, handle domain.NotifyHandle, lat, lng float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[id] = &domain.Worker{
		ID:         id,
		Lat:        lat,
		Lng:        lng,
		Capability: capability,
		Handle:     handle,
	}
}

// UpdatePosition records a worker's current position. Unknown workers are
// ignored.
func (r *Registry) UpdatePosition(id string, lat, lng float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return
	}
	w.Lat = lat
	w.Lng = lng
}

// Unregister clears the worker's handle and marks it offline. The last
// known position is retained.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return
	}
	w.Handle = nil
}

// Get returns a copy of the worker, if known.
func (r *Registry) Get(id string) (domain.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[id]
	if !ok {
		return domain.Worker{}, false
	}
	return *w, true
}

// Snapshot returns a copy of every online worker with the given capability.
// The returned slice is owned by the caller.
func (r *Registry) Snapshot(capability domain.WorkerCapability) []domain.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make([]domain.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		if !w.Online() {
			continue
		}
		if w.Capability != capability {
			continue
		}
		snapshot = append(snapshot, *w)
	}
	return snapshot
}
