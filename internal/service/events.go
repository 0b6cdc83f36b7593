package service

import (
	"dispatch/internal/domain"
)

// NotificationBus pushes events to connected workers and dashboards.
// Delivery is at-most-once and best-effort: an event to a stale or offline
// handle is silently dropped, with no queuing and no retry. Callers must
// treat trip state in the store as ground truth, never event receipt.
type NotificationBus interface {
	// Broadcast pushes an event to every attached observer.
	Broadcast(event string, payload any)

	// Notify pushes an event to one worker's handle.
	Notify(handle domain.NotifyHandle, event string, payload any)
}

// Wire event names. Each trip kind prefixes its own request events, e.g.
// "taxiRequest", "deliveryRequestPending", "reservationRequestRejected".
const (
	EventSuffixRequest  = "Request"
	EventSuffixPending  = "RequestPending"
	EventSuffixAccepted = "RequestAccepted"
	EventSuffixRejected = "RequestRejected"

	EventAssignedWorker  = "assignedWorker"
	EventLocationUpdated = "locationUpdated"
	EventPanicAlert      = "panicAlert"
)

func eventName(kind domain.TripKind, suffix string) string {
	return string(kind) + suffix
}

// RequestEvent is the targeted offer a nearby worker receives.
type RequestEvent struct {
	TripID         string  `json:"trip_id"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	PickupAddress  string  `json:"pickup_address"`
	DropoffAddress string  `json:"dropoff_address"`
	RequesterName  string  `json:"requester_name"`
	Description    string  `json:"description,omitempty"`
	ScheduledAt    string  `json:"scheduled_at,omitempty"`
}

// PendingEvent is the dashboard broadcast for an in-flight request.
type PendingEvent struct {
	TripID string  `json:"trip_id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Radius float64 `json:"radius"`
}

// ResolvedEvent is the broadcast for an accepted or rejected request.
type ResolvedEvent struct {
	TripID string  `json:"trip_id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// AssignedEvent carries the full trip context to the winning worker only.
type AssignedEvent struct {
	TripID         string  `json:"trip_id"`
	RequesterName  string  `json:"requester_name"`
	RequesterPhone string  `json:"requester_phone"`
	PickupAddress  string  `json:"pickup_address"`
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	DropoffAddress string  `json:"dropoff_address"`
	DropoffLat     float64 `json:"dropoff_lat"`
	DropoffLng     float64 `json:"dropoff_lng"`
	Description    string  `json:"description,omitempty"`
	ScheduledAt    string  `json:"scheduled_at,omitempty"`
	Kind           string  `json:"kind"`
}

// LocationEvent is the broadcast for a worker position change.
type LocationEvent struct {
	WorkerID string  `json:"worker_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// PanicEvent is the broadcast for a panic alert.
type PanicEvent struct {
	WorkerID string  `json:"worker_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

func requestEvent(trip *domain.Trip, requesterName string) RequestEvent {
	ev := RequestEvent{
		TripID:         trip.ID,
		Lat:            trip.PickupLat,
		Lng:            trip.PickupLng,
		PickupAddress:  trip.PickupAddress,
		DropoffAddress: trip.DropoffAddress,
		RequesterName:  requesterName,
		Description:    trip.Description,
	}
	if !trip.ScheduledAt.IsZero() {
		ev.ScheduledAt = trip.ScheduledAt.Format("2006-01-02 15:04")
	}
	return ev
}

func pendingEvent(trip *domain.Trip, radius float64) PendingEvent {
	return PendingEvent{
		TripID: trip.ID,
		Lat:    trip.PickupLat,
		Lng:    trip.PickupLng,
		Radius: radius,
	}
}

func resolvedEvent(trip *domain.Trip) ResolvedEvent {
	return ResolvedEvent{
		TripID: trip.ID,
		Lat:    trip.PickupLat,
		Lng:    trip.PickupLng,
	}
}
