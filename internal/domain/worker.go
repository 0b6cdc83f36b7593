package domain

// WorkerCapability tags the worker types eligible for a broadcast.
type WorkerCapability string

const (
	CapabilityDriver  WorkerCapability = "DRIVER"
	CapabilityCourier WorkerCapability = "COURIER"
)

// NotifyHandle is a worker's live push channel, present only while the
// worker is connected. Delivery through a handle is at-most-once: events
// sent to a stale handle are silently dropped.
type NotifyHandle interface {
	Notify(event string, payload any)
}

// Worker represents a worker known to the registry. Handle is nil when the
// worker is offline; the last known position is retained either way.
type Worker struct {
	ID         string
	Lat        float64
	Lng        float64
	Capability WorkerCapability
	Handle     NotifyHandle
}

// Online reports whether the worker currently holds a push channel.
func (w Worker) Online() bool {
	return w.Handle != nil
}
