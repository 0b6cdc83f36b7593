package domain

import "time"

// TripKind distinguishes the request variants the dispatcher handles.
type TripKind string

const (
	TripKindTaxi        TripKind = "taxi"
	TripKindDelivery    TripKind = "delivery"
	TripKindReservation TripKind = "reservation"
)

// TripStatus represents the lifecycle state of a trip.
type TripStatus string

const (
	TripStatusPending   TripStatus = "PENDING"
	TripStatusAccepted  TripStatus = "ACCEPTED"
	TripStatusRejected  TripStatus = "REJECTED"
	TripStatusCancelled TripStatus = "CANCELLED"
	TripStatusCompleted TripStatus = "COMPLETED"
)

// Terminal reports whether no further automatic transition applies.
// Background dispatch tasks stop as soon as they observe a terminal state.
func (s TripStatus) Terminal() bool {
	return s != TripStatusPending
}

// Trip represents a tracked transportation, delivery or reservation request.
// AssignedWorkerID is non-empty if and only if Status is ACCEPTED; the
// assignment happens atomically with the PENDING -> ACCEPTED transition.
type Trip struct {
	ID               string
	RequesterPhone   string
	AssignedWorkerID string
	Kind             TripKind
	Status           TripStatus
	PickupLat        float64
	PickupLng        float64
	PickupAddress    string
	DropoffLat       float64
	DropoffLng       float64
	DropoffAddress   string
	Description      string
	CreatedAt        time.Time
	ScheduledAt      time.Time // zero unless Kind is reservation
	RetryCount       int
	SearchRadius     float64 // meters, current broadcast radius
}
