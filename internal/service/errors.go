package service

import "errors"

var (
	// ErrInvalidRequester is returned when the requester phone ID is empty.
	ErrInvalidRequester = errors.New("invalid requester id")

	// ErrInvalidTripID is returned when the trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidWorkerID is returned when the worker ID is empty.
	ErrInvalidWorkerID = errors.New("invalid worker id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are out of range.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when dropoff coordinates are out of range.
	ErrInvalidDropoffLocation = errors.New("invalid dropoff location")

	// ErrInvalidLocation is returned when location coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrAddressResolution is returned when geocoding cannot resolve an
	// address; the trip is never created.
	ErrAddressResolution = errors.New("could not resolve address to coordinates")

	// ErrInvalidSchedule is returned when a reservation carries no usable
	// scheduled date/time.
	ErrInvalidSchedule = errors.New("invalid reservation schedule")

	// ErrAlreadyAssigned is returned to the losing caller of a concurrent
	// accept. Not a system fault; the normal outcome of the race.
	ErrAlreadyAssigned = errors.New("trip already assigned to another worker")

	// ErrTripNotPending is returned when an operation requires a trip that
	// is still awaiting assignment.
	ErrTripNotPending = errors.New("trip is not pending")

	// ErrNoWorkersNearby is returned when a nearest-worker lookup finds no
	// online candidates.
	ErrNoWorkersNearby = errors.New("no workers nearby")

	// ErrInvalidStatus is returned when a status update names an unknown
	// lifecycle state.
	ErrInvalidStatus = errors.New("invalid trip status")
)
