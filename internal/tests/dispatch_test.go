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

func newTestDispatcher(tripRepo *MockTripRepository, workers *registry.Registry, bus *MockBus) *service.Dispatcher {
	arbiter := service.NewArbiter(tripRepo)
	return service.NewDispatcher(tripRepo, workers, bus, arbiter, testDispatchConfig())
}

func TestDispatchCycle_ExhaustsAttemptsAndRejects(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	workers := registry.New()
	bus := NewMockBus()

	trip := pendingTaxiTrip("trip-cycle")
	tripRepo.AddTrip(trip)

	// One driver at the pickup, one far outside any escalated radius.
	workers.Register("near", domain.CapabilityDriver, &FakeHandle{ID: "near"}, 1.2136, -77.2811)
	workers.Register("far", domain.CapabilityDriver, &FakeHandle{ID: "far"}, 4.6097, -74.0817) // Bogota, ~500km away

	newTestDispatcher(tripRepo, workers, bus).Run(ctx, trip, "Marta")

	stored := tripRepo.GetTrip("trip-cycle")
	if stored.Status != domain.TripStatusRejected {
		t.Fatalf("expected REJECTED after exhaustion, got %s", stored.Status)
	}

	// Every attempt offered the trip to the nearby driver only.
	if got := len(bus.Notifies("near")); got != 3 {
		t.Errorf("expected 3 offers to the nearby driver, got %d", got)
	}
	if got := len(bus.Notifies("far")); got != 0 {
		t.Errorf("expected no offers to the far driver, got %d", got)
	}
	if got := len(bus.Broadcasts("taxiRequestPending")); got != 3 {
		t.Errorf("expected 3 pending broadcasts, got %d", got)
	}
	if got := len(bus.Broadcasts("taxiRequestRejected")); got != 1 {
		t.Errorf("expected 1 rejected broadcast, got %d", got)
	}

	// Unanswered windows bump the retry counter, and the stored radius
	// tracks the escalation: the third window broadcast at 1000 * 1.5^2.
	if stored.RetryCount != 3 {
		t.Errorf("expected retry count 3, got %d", stored.RetryCount)
	}
	if stored.SearchRadius != 2250 {
		t.Errorf("expected persisted search radius 2250, got %f", stored.SearchRadius)
	}
}

func TestDispatchCycle_MissingTripAbortsSilently(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	workers := registry.New()
	bus := NewMockBus()

	workers.Register("near", domain.CapabilityDriver, &FakeHandle{ID: "near"}, 1.2136, -77.2811)

	// The trip was never stored (or its row was purged before the cycle
	// started). The cycle must end without offers or a reject transition.
	trip := pendingTaxiTrip("trip-ghost")

	done := make(chan struct{})
	go func() {
		newTestDispatcher(tripRepo, workers, bus).Run(ctx, trip, "Marta")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch cycle did not stop for a missing trip")
	}

	if got := len(bus.Notifies("near")); got != 0 {
		t.Errorf("expected no offers for a missing trip, got %d", got)
	}
	if got := len(bus.Broadcasts("taxiRequestPending")); got != 0 {
		t.Errorf("expected no pending broadcasts, got %d", got)
	}
	if got := len(bus.Broadcasts("taxiRequestRejected")); got != 0 {
		t.Errorf("expected no rejected broadcast, got %d", got)
	}
	if got := tripRepo.TransitionCallCount; got != 0 {
		t.Errorf("expected no transitions for a missing trip, got %d", got)
	}
}

func TestDispatchCycle_StopsOnAcceptance(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	workers := registry.New()
	bus := NewMockBus()

	trip := pendingTaxiTrip("trip-accepted")
	tripRepo.AddTrip(trip)
	workers.Register("near", domain.CapabilityDriver, &FakeHandle{ID: "near"}, 1.2136, -77.2811)

	done := make(chan struct{})
	go func() {
		newTestDispatcher(tripRepo, workers, bus).Run(ctx, trip, "Marta")
		close(done)
	}()

	// Accept during the first wait window.
	time.Sleep(2 * time.Millisecond)
	pending := domain.TripStatusPending
	if won, err := tripRepo.Transition(ctx, "trip-accepted", &pending, domain.TripStatusAccepted, "near"); err != nil || !won {
		t.Fatalf("test acceptance failed: won=%v err=%v", won, err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch cycle did not stop after acceptance")
	}

	stored := tripRepo.GetTrip("trip-accepted")
	if stored.Status != domain.TripStatusAccepted {
		t.Errorf("expected ACCEPTED to stand, got %s", stored.Status)
	}
	if got := len(bus.Broadcasts("taxiRequestRejected")); got != 0 {
		t.Errorf("expected no rejected broadcast after acceptance, got %d", got)
	}
}

func TestDispatchCycle_DeliveryTargetsCouriers(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	workers := registry.New()
	bus := NewMockBus()

	trip := pendingTaxiTrip("trip-delivery")
	trip.Kind = domain.TripKindDelivery
	tripRepo.AddTrip(trip)

	// A driver and a courier at the same spot; only the courier qualifies.
	workers.Register("driver", domain.CapabilityDriver, &FakeHandle{ID: "driver"}, 1.2136, -77.2811)
	workers.Register("courier", domain.CapabilityCourier, &FakeHandle{ID: "courier"}, 1.2136, -77.2811)

	newTestDispatcher(tripRepo, workers, bus).Run(ctx, trip, "Marta")

	if got := len(bus.Notifies("driver")); got != 0 {
		t.Errorf("expected no delivery offers to drivers, got %d", got)
	}
	offers := bus.Notifies("courier")
	if len(offers) == 0 {
		t.Fatal("expected delivery offers to the courier")
	}
	if offers[0].Event != "deliveryRequest" {
		t.Errorf("expected deliveryRequest event, got %s", offers[0].Event)
	}
	if got := len(bus.Broadcasts("deliveryRequestPending")); got != 3 {
		t.Errorf("expected 3 delivery pending broadcasts, got %d", got)
	}
}

func TestDispatchCycle_SurvivesTransientReadFailure(t *testing.T) {
	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	workers := registry.New()
	bus := NewMockBus()

	trip := pendingTaxiTrip("trip-flaky")
	tripRepo.AddTrip(trip)
	workers.Register("near", domain.CapabilityDriver, &FakeHandle{ID: "near"}, 1.2136, -77.2811)

	// The first store read fails; the cycle must carry on rather than
	// strand the trip in PENDING forever.
	tripRepo.GetError = errors.New("connection reset")
	tripRepo.GetErrorCount = 1

	newTestDispatcher(tripRepo, workers, bus).Run(ctx, trip, "Marta")

	stored := tripRepo.GetTrip("trip-flaky")
	if stored.Status != domain.TripStatusRejected {
		t.Errorf("expected eventual REJECTED despite read failure, got %s", stored.Status)
	}
	if got := len(bus.Broadcasts("taxiRequestRejected")); got != 1 {
		t.Errorf("expected 1 rejected broadcast, got %d", got)
	}
}

func TestDispatchCycle_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	tripRepo := NewMockTripRepository()
	workers := registry.New()
	bus := NewMockBus()

	trip := pendingTaxiTrip("trip-cancelled")
	tripRepo.AddTrip(trip)

	done := make(chan struct{})
	go func() {
		newTestDispatcher(tripRepo, workers, bus).Run(ctx, trip, "Marta")
		close(done)
	}()

	time.Sleep(2 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch cycle ignored context cancellation")
	}

	// Cancellation is not a rejection; the trip stays as it was.
	stored := tripRepo.GetTrip("trip-cancelled")
	if stored.Status != domain.TripStatusPending {
		t.Errorf("expected PENDING after cancel, got %s", stored.Status)
	}
}
