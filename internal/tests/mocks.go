package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository. Its
// Transition honors the compare-and-set contract under a single mutex, so
// concurrent accept races behave exactly as they would against Postgres.
type MockTripRepository struct {
	mu    sync.Mutex
	trips map[string]*domain.Trip

	// Counters for verification
	CreateCallCount     int32
	TransitionCallCount int32

	// Error injection
	CreateError     error
	GetError        error
	TransitionError error

	// GetErrorCount limits GetError to the first N reads when positive.
	GetErrorCount int32
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *trip
	m.trips[trip.ID] = &copy
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *trip
	m.trips[trip.ID] = &copy
	return nil
}

// takeGetError applies the injected read error: unlimited when
// GetErrorCount is zero, otherwise only for the first N reads. The error
// is cleared once the count is exhausted, so 0 never doubles as both the
// unlimited sentinel and the exhausted state.
func (m *MockTripRepository) takeGetError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError == nil {
		return nil
	}
	if m.GetErrorCount == 0 {
		return m.GetError
	}
	err := m.GetError
	m.GetErrorCount--
	if m.GetErrorCount == 0 {
		m.GetError = nil
	}
	return err
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	if err := m.takeGetError(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) Transition(ctx context.Context, id string, expectedFrom *domain.TripStatus, to domain.TripStatus, workerID string) (bool, error) {
	atomic.AddInt32(&m.TransitionCallCount, 1)
	if m.TransitionError != nil {
		return false, m.TransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[id]
	if !ok {
		return false, nil
	}
	if expectedFrom != nil && trip.Status != *expectedFrom {
		return false, nil
	}
	trip.Status = to
	if workerID != "" {
		trip.AssignedWorkerID = workerID
	}
	return true, nil
}

func (m *MockTripRepository) RecordAttempt(ctx context.Context, id string, bound int, radius float64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[id]
	if !ok {
		return 0, false, repository.ErrNotFound
	}
	if trip.RetryCount >= bound {
		return trip.RetryCount, false, nil
	}
	trip.RetryCount++
	trip.SearchRadius = radius
	return trip.RetryCount, true, nil
}

// RemoveTrip drops a trip from the store, simulating a row that
// disappeared between reads.
func (m *MockTripRepository) RemoveTrip(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trips, id)
}

// GetTrip returns the stored trip for test assertions.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil
	}
	copy := *trip
	return &copy
}

// ──────────────────────────────────────────────
// MOCK CONTACT / ADDRESS REPOSITORIES
// ──────────────────────────────────────────────

// MockContactRepository is a mock implementation of ContactRepository.
type MockContactRepository struct {
	mu       sync.Mutex
	contacts map[string]*domain.Contact

	EnsureError error
}

// NewMockContactRepository creates a new mock contact repository.
func NewMockContactRepository() *MockContactRepository {
	return &MockContactRepository{contacts: make(map[string]*domain.Contact)}
}

func (m *MockContactRepository) Ensure(ctx context.Context, contact *domain.Contact) error {
	if m.EnsureError != nil {
		return m.EnsureError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[contact.Phone]; !ok {
		copy := *contact
		m.contacts[contact.Phone] = &copy
	}
	return nil
}

func (m *MockContactRepository) GetByPhone(ctx context.Context, phone string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact, ok := m.contacts[phone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *contact
	return &copy, nil
}

// MockAddressRepository is a mock implementation of AddressRepository.
type MockAddressRepository struct {
	mu        sync.Mutex
	addresses map[string]*domain.Address

	SaveCallCount int32
}

// NewMockAddressRepository creates a new mock address repository.
func NewMockAddressRepository() *MockAddressRepository {
	return &MockAddressRepository{addresses: make(map[string]*domain.Address)}
}

// AddAddress seeds a saved address.
func (m *MockAddressRepository) AddAddress(address *domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *address
	m.addresses[address.ContactPhone+"|"+repository.NormalizeAddress(address.Text)] = &copy
}

func (m *MockAddressRepository) Lookup(ctx context.Context, phone, text string) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	address, ok := m.addresses[phone+"|"+repository.NormalizeAddress(text)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *address
	return &copy, nil
}

func (m *MockAddressRepository) Save(ctx context.Context, address *domain.Address) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *address
	m.addresses[address.ContactPhone+"|"+repository.NormalizeAddress(address.Text)] = &copy
	return nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFICATION BUS
// ──────────────────────────────────────────────

// RecordedEvent is one push captured by the mock bus.
type RecordedEvent struct {
	Event   string
	Payload any
}

// MockBus records broadcasts and targeted notifies for assertions.
type MockBus struct {
	mu         sync.Mutex
	broadcasts []RecordedEvent
	notifies   map[string][]RecordedEvent // keyed by handle ID
}

// NewMockBus creates a new mock notification bus.
func NewMockBus() *MockBus {
	return &MockBus{notifies: make(map[string][]RecordedEvent)}
}

func (b *MockBus) Broadcast(event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcasts = append(b.broadcasts, RecordedEvent{Event: event, Payload: payload})
}

func (b *MockBus) Notify(handle domain.NotifyHandle, event string, payload any) {
	if handle == nil {
		return
	}
	fh, ok := handle.(*FakeHandle)
	if !ok {
		handle.Notify(event, payload)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifies[fh.ID] = append(b.notifies[fh.ID], RecordedEvent{Event: event, Payload: payload})
}

// Broadcasts returns every recorded broadcast of the given event, in order.
// An empty event name returns them all.
func (b *MockBus) Broadcasts(event string) []RecordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if event == "" {
		return append([]RecordedEvent(nil), b.broadcasts...)
	}
	var out []RecordedEvent
	for _, e := range b.broadcasts {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Notifies returns the targeted events recorded for one handle ID.
func (b *MockBus) Notifies(handleID string) []RecordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedEvent(nil), b.notifies[handleID]...)
}

// FakeHandle is a NotifyHandle that records nothing itself; MockBus keys
// targeted pushes by its ID.
type FakeHandle struct {
	ID string
}

func (h *FakeHandle) Notify(event string, payload any) {}

// ──────────────────────────────────────────────
// STUB GEOCODER / REPORTER / LOCATION STORE
// ──────────────────────────────────────────────

// StubGeocoder resolves from a fixed table.
type StubGeocoder struct {
	Coords map[string]service.Coordinate

	GeocodeError error
}

func (g *StubGeocoder) Geocode(ctx context.Context, address string) (*service.Coordinate, error) {
	if g.GeocodeError != nil {
		return nil, g.GeocodeError
	}
	coord, ok := g.Coords[address]
	if !ok {
		return nil, nil
	}
	return &coord, nil
}

func (g *StubGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return "", nil
}

// ReportCall is one captured status report.
type ReportCall struct {
	Action   string
	TripID   string
	WorkerID string
}

// StubReporter records status reports.
type StubReporter struct {
	mu    sync.Mutex
	calls []ReportCall
}

func (r *StubReporter) Report(ctx context.Context, action string, trip *domain.Trip, worker *domain.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := ReportCall{Action: action, TripID: trip.ID}
	if worker != nil {
		call.WorkerID = worker.ID
	}
	r.calls = append(r.calls, call)
}

// Calls returns the recorded reports.
func (r *StubReporter) Calls() []ReportCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ReportCall(nil), r.calls...)
}

// StubLocationStore is an in-memory LocationStoreInterface.
type StubLocationStore struct {
	mu        sync.Mutex
	locations map[string]redis.WorkerLocation

	UpdateError error
}

// NewStubLocationStore creates a new in-memory location store.
func NewStubLocationStore() *StubLocationStore {
	return &StubLocationStore{locations: make(map[string]redis.WorkerLocation)}
}

func (s *StubLocationStore) UpdateLocation(ctx context.Context, workerID string, lat, lng float64) error {
	if s.UpdateError != nil {
		return s.UpdateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[workerID] = redis.WorkerLocation{WorkerID: workerID, Lat: lat, Lng: lng}
	return nil
}

func (s *StubLocationStore) GetLocation(ctx context.Context, workerID string) (*redis.WorkerLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.locations[workerID]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

func (s *StubLocationStore) FindNearbyWorkers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.WorkerLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]redis.WorkerLocation, 0, len(s.locations))
	for _, loc := range s.locations {
		if geo.HaversineKm(lat, lng, loc.Lat, loc.Lng) <= radiusKm {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return geo.HaversineKm(lat, lng, out[i].Lat, out[i].Lng) <
			geo.HaversineKm(lat, lng, out[j].Lat, out[j].Lng)
	})
	return out, nil
}

// Interface conformance.
var (
	_ repository.TripRepository    = (*MockTripRepository)(nil)
	_ repository.ContactRepository = (*MockContactRepository)(nil)
	_ repository.AddressRepository = (*MockAddressRepository)(nil)
	_ service.NotificationBus      = (*MockBus)(nil)
	_ service.Geocoder             = (*StubGeocoder)(nil)
	_ service.StatusReporter       = (*StubReporter)(nil)
	_ redis.LocationStoreInterface = (*StubLocationStore)(nil)
	_ domain.NotifyHandle          = (*FakeHandle)(nil)
)
