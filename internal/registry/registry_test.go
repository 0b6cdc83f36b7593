package registry

import (
	"fmt"
	"sync"
	"testing"

	"dispatch/internal/domain"
)

type stubHandle struct{}

func (stubHandle) Notify(event string, payload any) {}

func TestRegister_IsIdempotentUpsert(t *testing.T) {
	r := New()

	r.Register("w-1", domain.CapabilityDriver, stubHandle{}, 1.0, -77.0)
	r.Register("w-1", domain.CapabilityDriver, stubHandle{}, 2.0, -78.0)

	w, ok := r.Get("w-1")
	if !ok {
		t.Fatal("expected worker to be registered")
	}
	if w.Lat != 2.0 || w.Lng != -78.0 {
		t.Errorf("expected position to be replaced, got (%f, %f)", w.Lat, w.Lng)
	}
	if !w.Online() {
		t.Error("expected worker to be online")
	}
}

func TestUpdatePosition_UnknownWorkerIsNoOp(t *testing.T) {
	r := New()
	r.UpdatePosition("ghost", 1.0, 2.0)
	if _, ok := r.Get("ghost"); ok {
		t.Error("expected unknown worker to stay unknown")
	}
}

func TestUnregister_KeepsPosition(t *testing.T) {
	r := New()
	r.Register("w-1", domain.CapabilityDriver, stubHandle{}, 1.21, -77.28)
	r.Unregister("w-1")

	w, ok := r.Get("w-1")
	if !ok {
		t.Fatal("expected worker to remain known after unregister")
	}
	if w.Online() {
		t.Error("expected worker to be offline")
	}
	if w.Lat != 1.21 || w.Lng != -77.28 {
		t.Errorf("expected position history to survive, got (%f, %f)", w.Lat, w.Lng)
	}
}

func TestSnapshot_FiltersOfflineAndCapability(t *testing.T) {
	r := New()
	r.Register("driver-online", domain.CapabilityDriver, stubHandle{}, 1, 1)
	r.Register("driver-offline", domain.CapabilityDriver, stubHandle{}, 2, 2)
	r.Register("courier", domain.CapabilityCourier, stubHandle{}, 3, 3)
	r.Unregister("driver-offline")

	snapshot := r.Snapshot(domain.CapabilityDriver)
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 worker in snapshot, got %d", len(snapshot))
	}
	if snapshot[0].ID != "driver-online" {
		t.Errorf("expected driver-online, got %s", snapshot[0].ID)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	r := New()
	r.Register("w-1", domain.CapabilityDriver, stubHandle{}, 1.0, 1.0)

	snapshot := r.Snapshot(domain.CapabilityDriver)
	r.UpdatePosition("w-1", 9.0, 9.0)

	if snapshot[0].Lat != 1.0 {
		t.Error("expected snapshot to be unaffected by later updates")
	}
}

func TestSnapshot_SafeUnderConcurrentMutation(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("w-%d", n)
			for j := 0; j < 100; j++ {
				r.Register(id, domain.CapabilityDriver, stubHandle{}, float64(j), float64(j))
				r.UpdatePosition(id, float64(j), float64(j))
				if j%10 == 0 {
					r.Unregister(id)
				}
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			for _, w := range r.Snapshot(domain.CapabilityDriver) {
				// A snapshot entry is internally consistent.
				if w.Lat != w.Lng {
					t.Errorf("observed torn entry: (%f, %f)", w.Lat, w.Lng)
					return
				}
			}
		}
	}()

	wg.Wait()
	<-done
}
