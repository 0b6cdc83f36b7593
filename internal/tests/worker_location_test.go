package tests

import (
	"context"
	"errors"
	"testing"

	"dispatch/internal/domain"
	"dispatch/internal/registry"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

func TestSetLocation_UpdatesRegistryAndRedis(t *testing.T) {
	ctx := context.Background()

	workers := registry.New()
	locations := NewStubLocationStore()
	bus := NewMockBus()
	svc := service.NewWorkerService(workers, workers, locations, bus)

	workers.Register("worker-1", domain.CapabilityDriver, &FakeHandle{ID: "worker-1"}, 1.2136, -77.2811)

	if err := svc.SetLocation(ctx, "worker-1", 1.2150, -77.2790); err != nil {
		t.Fatalf("set location failed: %v", err)
	}

	worker, ok := workers.Get("worker-1")
	if !ok {
		t.Fatal("worker missing from registry")
	}
	if worker.Lat != 1.2150 || worker.Lng != -77.2790 {
		t.Errorf("registry position not updated: %f,%f", worker.Lat, worker.Lng)
	}

	loc, err := locations.GetLocation(ctx, "worker-1")
	if err != nil || loc == nil {
		t.Fatalf("redis write-through missing: %v, %v", loc, err)
	}
	if loc.Lat != 1.2150 {
		t.Errorf("expected redis lat 1.2150, got %f", loc.Lat)
	}

	if got := len(bus.Broadcasts("locationUpdated")); got != 1 {
		t.Errorf("expected 1 locationUpdated broadcast, got %d", got)
	}
}

func TestSetLocation_RedisFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()

	workers := registry.New()
	locations := NewStubLocationStore()
	locations.UpdateError = errors.New("redis down")
	svc := service.NewWorkerService(workers, workers, locations, NewMockBus())

	workers.Register("worker-1", domain.CapabilityDriver, &FakeHandle{ID: "worker-1"}, 1.2136, -77.2811)

	// The in-memory registry is authoritative; a Redis outage must not
	// fail the report.
	if err := svc.SetLocation(ctx, "worker-1", 1.2150, -77.2790); err != nil {
		t.Fatalf("expected success despite redis failure, got %v", err)
	}

	worker, _ := workers.Get("worker-1")
	if worker.Lat != 1.2150 {
		t.Errorf("registry position not updated: %f", worker.Lat)
	}
}

func TestSetLocation_InvalidCoordinates(t *testing.T) {
	ctx := context.Background()

	svc := service.NewWorkerService(registry.New(), registry.New(), NewStubLocationStore(), NewMockBus())

	if err := svc.SetLocation(ctx, "worker-1", 95, -200); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
}

func TestPanic_FindsNearestColleague(t *testing.T) {
	ctx := context.Background()

	workers := registry.New()
	bus := NewMockBus()
	svc := service.NewWorkerService(workers, workers, NewStubLocationStore(), bus)

	// The worker in trouble plus two colleagues at different distances.
	workers.Register("trouble", domain.CapabilityDriver, &FakeHandle{ID: "trouble"}, 1.2136, -77.2811)
	workers.Register("close-by", domain.CapabilityDriver, &FakeHandle{ID: "close-by"}, 1.2140, -77.2815)
	workers.Register("far-off", domain.CapabilityDriver, &FakeHandle{ID: "far-off"}, 1.3000, -77.3500)

	nearest, err := svc.Panic(ctx, "trouble", 1.2136, -77.2811)
	if err != nil {
		t.Fatalf("panic failed: %v", err)
	}
	if nearest.ID != "close-by" {
		t.Errorf("expected close-by as nearest colleague, got %s", nearest.ID)
	}

	alerts := bus.Broadcasts("panicAlert")
	if len(alerts) != 1 {
		t.Fatalf("expected 1 panicAlert broadcast, got %d", len(alerts))
	}
	alert, ok := alerts[0].Payload.(service.PanicEvent)
	if !ok {
		t.Fatalf("unexpected panic payload type %T", alerts[0].Payload)
	}
	if alert.WorkerID != "trouble" {
		t.Errorf("expected alert for trouble, got %s", alert.WorkerID)
	}
}

func TestPanic_NoColleaguesAnywhere(t *testing.T) {
	ctx := context.Background()

	workers := registry.New()
	svc := service.NewWorkerService(workers, workers, NewStubLocationStore(), NewMockBus())

	// Only the panicking worker itself is online and nothing is persisted.
	workers.Register("trouble", domain.CapabilityDriver, &FakeHandle{ID: "trouble"}, 1.2136, -77.2811)

	if _, err := svc.Panic(ctx, "trouble", 1.2136, -77.2811); !errors.Is(err, service.ErrNoWorkersNearby) {
		t.Errorf("expected ErrNoWorkersNearby, got %v", err)
	}
}

func TestPanic_FallsBackToPersistedPositions(t *testing.T) {
	ctx := context.Background()

	workers := registry.New()
	locations := NewStubLocationStore()
	svc := service.NewWorkerService(workers, workers, locations, NewMockBus())

	// No colleague online, but two have positions persisted from earlier
	// reports. The closer one wins; the panicking worker's own row is
	// skipped.
	workers.Register("trouble", domain.CapabilityDriver, &FakeHandle{ID: "trouble"}, 1.2136, -77.2811)
	if err := locations.UpdateLocation(ctx, "trouble", 1.2136, -77.2811); err != nil {
		t.Fatalf("seeding location: %v", err)
	}
	if err := locations.UpdateLocation(ctx, "offline-near", 1.2140, -77.2815); err != nil {
		t.Fatalf("seeding location: %v", err)
	}
	if err := locations.UpdateLocation(ctx, "offline-far", 1.2500, -77.3000); err != nil {
		t.Fatalf("seeding location: %v", err)
	}

	nearest, err := svc.Panic(ctx, "trouble", 1.2136, -77.2811)
	if err != nil {
		t.Fatalf("panic failed: %v", err)
	}
	if nearest.ID != "offline-near" {
		t.Errorf("expected offline-near from persisted positions, got %s", nearest.ID)
	}
}

func TestWorkerLocation_FallsBackToPersistedPosition(t *testing.T) {
	ctx := context.Background()

	workers := registry.New()
	locations := NewStubLocationStore()
	svc := service.NewWorkerService(workers, workers, locations, NewMockBus())

	// Disconnected worker with a persisted position.
	if err := locations.UpdateLocation(ctx, "worker-1", 1.2150, -77.2790); err != nil {
		t.Fatalf("seeding location: %v", err)
	}

	loc, err := svc.Location(ctx, "worker-1")
	if err != nil {
		t.Fatalf("location lookup failed: %v", err)
	}
	if loc.Lat != 1.2150 || loc.Lng != -77.2790 {
		t.Errorf("unexpected persisted position: %f,%f", loc.Lat, loc.Lng)
	}

	// Online workers come from the registry, not Redis.
	workers.Register("worker-1", domain.CapabilityDriver, &FakeHandle{ID: "worker-1"}, 1.3000, -77.3000)
	loc, err = svc.Location(ctx, "worker-1")
	if err != nil {
		t.Fatalf("location lookup failed: %v", err)
	}
	if loc.Lat != 1.3000 {
		t.Errorf("expected live registry position, got %f", loc.Lat)
	}

	if _, err := svc.Location(ctx, "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown worker, got %v", err)
	}
}
