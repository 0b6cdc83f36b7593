package tests

import (
	"context"
	"testing"
	"time"

	"dispatch/internal/service"
)

func TestTaskRegistry_SecondSpawnCancelsFirst(t *testing.T) {
	reg := service.NewTaskRegistry(0)

	firstCancelled := make(chan struct{})
	reg.Spawn("trip-1", func(ctx context.Context) {
		<-ctx.Done()
		close(firstCancelled)
	})

	reg.Spawn("trip-1", func(ctx context.Context) {
		<-ctx.Done()
	})

	select {
	case <-firstCancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement spawn did not cancel the first task")
	}

	reg.Drain(time.Second)
}

func TestTaskRegistry_CancelStopsTask(t *testing.T) {
	reg := service.NewTaskRegistry(0)

	stopped := make(chan struct{})
	reg.Spawn("trip-1", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})

	reg.Cancel("trip-1")

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not stop the task")
	}
}

func TestTaskRegistry_DrainStopsEverything(t *testing.T) {
	reg := service.NewTaskRegistry(0)

	const n = 8
	stopped := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		reg.Spawn("trip-"+string(rune('a'+i)), func(ctx context.Context) {
			<-ctx.Done()
			stopped <- struct{}{}
		})
	}

	reg.Drain(2 * time.Second)

	for i := 0; i < n; i++ {
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d tasks stopped after drain", i, n)
		}
	}
	if reg.Active() != 0 {
		t.Errorf("expected empty registry after drain, got %d", reg.Active())
	}
}

func TestTaskRegistry_CapLimitsConcurrency(t *testing.T) {
	reg := service.NewTaskRegistry(1)

	release := make(chan struct{})
	running := make(chan string, 2)

	reg.Spawn("trip-1", func(ctx context.Context) {
		running <- "trip-1"
		<-release
	})

	// Wait for the first task to occupy the only slot.
	select {
	case <-running:
	case <-time.After(2 * time.Second):
		t.Fatal("first task never started")
	}

	reg.Spawn("trip-2", func(ctx context.Context) {
		running <- "trip-2"
	})

	// The second task must be parked while the slot is held.
	select {
	case id := <-running:
		t.Fatalf("task %s ran past the concurrency cap", id)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case id := <-running:
		if id != "trip-2" {
			t.Fatalf("expected trip-2 to run after release, got %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second task never ran after the slot freed")
	}

	reg.Drain(time.Second)
}
