package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/registry"
	"dispatch/internal/service"
)

func TestCreateTaxi_InvalidCoordinates(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	svc, runner, _ := newTestTripService(tripRepo, registry.New(), NewMockBus(), &StubReporter{}, nil, testDispatchConfig())

	_, err := svc.CreateTaxi(ctx, service.TaxiRequest{
		RequesterPhone: "3115550001",
		Pickup:         service.NewEndpoint(200, 0, ""), // latitude out of range
		Dropoff:        service.NewEndpoint(1.22, -77.27, ""),
	})
	if !errors.Is(err, service.ErrInvalidPickupLocation) {
		t.Fatalf("expected ErrInvalidPickupLocation, got %v", err)
	}

	// No trip row and no dispatch cycle for a rejected request.
	if tripRepo.CreateCallCount != 0 {
		t.Errorf("expected no trip created, got %d creates", tripRepo.CreateCallCount)
	}
	if len(runner.Runs()) != 0 {
		t.Errorf("expected no dispatch cycle spawned")
	}
}

func TestCreateTaxi_SavedAddressShortCircuitsGeocoding(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	bus := NewMockBus()
	// A geocoder with an empty table would fail any resolution, so a
	// successful create proves the saved address was used.
	geocoder := &StubGeocoder{}
	svc, runner, addresses := newTestTripService(tripRepo, registry.New(), bus, &StubReporter{}, geocoder, testDispatchConfig())

	addresses.AddAddress(&domain.Address{
		ContactPhone: "3115550001",
		Text:         "Calle 18 # 25-30",
		Lat:          1.2136,
		Lng:          -77.2811,
	})

	trip, err := svc.CreateTaxi(ctx, service.TaxiRequest{
		RequesterPhone: "3115550001",
		RequesterName:  "Marta",
		Pickup:         service.NewEndpoint(0, 0, "calle 18  # 25-30"), // formatting differs
		Dropoff:        service.NewEndpoint(1.2201, -77.2750, ""),
	})
	if err != nil {
		t.Fatalf("create taxi failed: %v", err)
	}

	if trip.PickupLat != 1.2136 || trip.PickupLng != -77.2811 {
		t.Errorf("expected saved coordinates, got %f,%f", trip.PickupLat, trip.PickupLng)
	}
	if trip.Status != domain.TripStatusPending {
		t.Errorf("expected PENDING, got %s", trip.Status)
	}
	if got := len(bus.Broadcasts("taxiRequestPending")); got != 1 {
		t.Errorf("expected 1 pending broadcast, got %d", got)
	}
	// Spawn is asynchronous; give it a moment.
	deadline := time.Now().Add(time.Second)
	for len(runner.Runs()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if runs := runner.Runs(); len(runs) != 1 || runs[0] != trip.ID {
		t.Errorf("expected one dispatch cycle for %s, got %v", trip.ID, runs)
	}
}

func TestCreateTaxi_GeocodedAddressIsSaved(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	geocoder := &StubGeocoder{Coords: map[string]service.Coordinate{
		"Carrera 40 # 18-71": {Lat: 1.2150, Lng: -77.2790},
	}}
	svc, _, addresses := newTestTripService(tripRepo, registry.New(), NewMockBus(), &StubReporter{}, geocoder, testDispatchConfig())

	trip, err := svc.CreateTaxi(ctx, service.TaxiRequest{
		RequesterPhone: "3115550001",
		Pickup:         service.NewEndpoint(0, 0, "Carrera 40 # 18-71"),
		Dropoff:        service.NewEndpoint(1.2201, -77.2750, ""),
	})
	if err != nil {
		t.Fatalf("create taxi failed: %v", err)
	}
	if trip.PickupLat != 1.2150 {
		t.Errorf("expected geocoded pickup, got %f", trip.PickupLat)
	}

	// The fresh resolution lands in the address book for next time.
	if addresses.SaveCallCount == 0 {
		t.Error("expected geocoded address to be saved")
	}
	if _, err := addresses.Lookup(ctx, "3115550001", "carrera 40 # 18-71"); err != nil {
		t.Errorf("saved address not found: %v", err)
	}
}

func TestCreateDelivery_UnresolvableAddress(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	svc, _, _ := newTestTripService(tripRepo, registry.New(), NewMockBus(), &StubReporter{}, &StubGeocoder{}, testDispatchConfig())

	_, err := svc.CreateDelivery(ctx, service.DeliveryRequest{
		RequesterPhone: "3115550002",
		Pickup:         service.NewEndpoint(0, 0, "nowhere in particular"),
		Dropoff:        service.NewEndpoint(1.2201, -77.2750, ""),
		Description:    "documents",
	})
	if !errors.Is(err, service.ErrAddressResolution) {
		t.Fatalf("expected ErrAddressResolution, got %v", err)
	}
	if tripRepo.CreateCallCount != 0 {
		t.Errorf("expected no trip created, got %d creates", tripRepo.CreateCallCount)
	}
}

func TestCreateReservation_InsideCancelWindow(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	bus := NewMockBus()
	cfg := testDispatchConfig()
	cfg.CancelWindow = 2 * time.Hour
	svc, runner, _ := newTestTripService(tripRepo, registry.New(), bus, &StubReporter{}, nil, cfg)

	// One hour out with a two hour window: too late already.
	at := time.Now().Add(time.Hour)
	trip, err := svc.CreateReservation(ctx, service.ReservationRequest{
		RequesterPhone: "3115550003",
		Pickup:         service.NewEndpoint(1.2136, -77.2811, ""),
		Dropoff:        service.NewEndpoint(1.2201, -77.2750, ""),
		Date:           at.Format("2006-01-02"),
		Time:           at.Format("15:04"),
	})
	if err != nil {
		t.Fatalf("create reservation failed: %v", err)
	}

	if trip.Status != domain.TripStatusRejected {
		t.Errorf("expected immediate REJECTED, got %s", trip.Status)
	}
	if got := len(bus.Broadcasts("reservationRequestPending")); got != 0 {
		t.Errorf("expected no pending broadcast, got %d", got)
	}
	if got := len(bus.Broadcasts("reservationRequestRejected")); got != 1 {
		t.Errorf("expected 1 rejected broadcast, got %d", got)
	}
	if len(runner.Runs()) != 0 {
		t.Errorf("expected no scheduler task for a dead-on-arrival reservation")
	}
}

func TestCreateReservation_SpawnsScheduler(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	bus := NewMockBus()
	cfg := testDispatchConfig()
	cfg.CancelWindow = 2 * time.Hour
	svc, runner, _ := newTestTripService(tripRepo, registry.New(), bus, &StubReporter{}, nil, cfg)

	at := time.Now().Add(6 * time.Hour)
	trip, err := svc.CreateReservation(ctx, service.ReservationRequest{
		RequesterPhone: "3115550003",
		Pickup:         service.NewEndpoint(1.2136, -77.2811, ""),
		Dropoff:        service.NewEndpoint(1.2201, -77.2750, ""),
		Date:           at.Format("2006-01-02"),
		Time:           at.Format("15:04"),
	})
	if err != nil {
		t.Fatalf("create reservation failed: %v", err)
	}

	if trip.Status != domain.TripStatusPending {
		t.Errorf("expected PENDING, got %s", trip.Status)
	}
	if trip.SearchRadius != cfg.ReservationRadius {
		t.Errorf("expected reservation radius %f, got %f", cfg.ReservationRadius, trip.SearchRadius)
	}
	if got := len(bus.Broadcasts("reservationRequestPending")); got != 1 {
		t.Errorf("expected 1 pending broadcast, got %d", got)
	}

	// Spawn is asynchronous; give it a moment.
	deadline := time.Now().Add(time.Second)
	for len(runner.Runs()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if runs := runner.Runs(); len(runs) != 1 || runs[0] != trip.ID {
		t.Errorf("expected one scheduler task for %s, got %v", trip.ID, runs)
	}
}

func TestCreateReservation_InvalidSchedule(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	svc, _, _ := newTestTripService(tripRepo, registry.New(), NewMockBus(), &StubReporter{}, nil, testDispatchConfig())

	_, err := svc.CreateReservation(ctx, service.ReservationRequest{
		RequesterPhone: "3115550003",
		Pickup:         service.NewEndpoint(1.2136, -77.2811, ""),
		Dropoff:        service.NewEndpoint(1.2201, -77.2750, ""),
		Date:           "soon",
		Time:           "later",
	})
	if !errors.Is(err, service.ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule, got %v", err)
	}
}
