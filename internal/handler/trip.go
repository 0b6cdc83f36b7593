package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// CreateTaxiRequest is the HTTP request body for requesting a taxi trip.
type CreateTaxiRequest struct {
	Phone          string  `json:"phone"`
	Name           string  `json:"name,omitempty"`
	PickupLat      float64 `json:"pickup_lat,omitempty"`
	PickupLng      float64 `json:"pickup_lng,omitempty"`
	PickupAddress  string  `json:"pickup_address,omitempty"`
	DropoffLat     float64 `json:"dropoff_lat,omitempty"`
	DropoffLng     float64 `json:"dropoff_lng,omitempty"`
	DropoffAddress string  `json:"dropoff_address,omitempty"`
}

// CreateDeliveryRequest is the HTTP request body for requesting a delivery.
type CreateDeliveryRequest struct {
	Phone          string  `json:"phone"`
	Name           string  `json:"name,omitempty"`
	PickupLat      float64 `json:"pickup_lat,omitempty"`
	PickupLng      float64 `json:"pickup_lng,omitempty"`
	PickupAddress  string  `json:"pickup_address,omitempty"`
	DropoffLat     float64 `json:"dropoff_lat,omitempty"`
	DropoffLng     float64 `json:"dropoff_lng,omitempty"`
	DropoffAddress string  `json:"dropoff_address,omitempty"`
	Description    string  `json:"description,omitempty"`
}

// CreateReservationRequest is the HTTP request body for booking a future trip.
type CreateReservationRequest struct {
	Phone          string  `json:"phone"`
	Name           string  `json:"name,omitempty"`
	PickupLat      float64 `json:"pickup_lat,omitempty"`
	PickupLng      float64 `json:"pickup_lng,omitempty"`
	PickupAddress  string  `json:"pickup_address,omitempty"`
	DropoffLat     float64 `json:"dropoff_lat,omitempty"`
	DropoffLng     float64 `json:"dropoff_lng,omitempty"`
	DropoffAddress string  `json:"dropoff_address,omitempty"`
	Date           string  `json:"date"` // 2006-01-02
	Time           string  `json:"time"` // 15:04
}

// AcceptTripRequest is the HTTP request body for accepting a trip.
type AcceptTripRequest struct {
	WorkerID string `json:"worker_id"`
}

// RetryTripRequest is the HTTP request body for manually re-broadcasting
// a pending trip.
type RetryTripRequest struct {
	Radius float64 `json:"radius,omitempty"`
}

// UpdateStatusRequest is the HTTP request body for a status transition.
type UpdateStatusRequest struct {
	Status   string `json:"status"`
	WorkerID string `json:"worker_id"`
}

// TripResponse is the HTTP response for trip operations.
type TripResponse struct {
	ID               string  `json:"id"`
	Phone            string  `json:"phone"`
	Kind             string  `json:"kind"`
	Status           string  `json:"status"`
	PickupLat        float64 `json:"pickup_lat"`
	PickupLng        float64 `json:"pickup_lng"`
	PickupAddress    string  `json:"pickup_address,omitempty"`
	DropoffLat       float64 `json:"dropoff_lat"`
	DropoffLng       float64 `json:"dropoff_lng"`
	DropoffAddress   string  `json:"dropoff_address,omitempty"`
	Description      string  `json:"description,omitempty"`
	AssignedWorkerID string  `json:"assigned_worker_id,omitempty"`
	ScheduledAt      string  `json:"scheduled_at,omitempty"`
	RetryCount       int     `json:"retry_count"`
}

// StatusResponse is the HTTP response for a status check.
type StatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func tripResponse(trip *domain.Trip) TripResponse {
	resp := TripResponse{
		ID:               trip.ID,
		Phone:            trip.RequesterPhone,
		Kind:             string(trip.Kind),
		Status:           string(trip.Status),
		PickupLat:        trip.PickupLat,
		PickupLng:        trip.PickupLng,
		PickupAddress:    trip.PickupAddress,
		DropoffLat:       trip.DropoffLat,
		DropoffLng:       trip.DropoffLng,
		DropoffAddress:   trip.DropoffAddress,
		Description:      trip.Description,
		AssignedWorkerID: trip.AssignedWorkerID,
		RetryCount:       trip.RetryCount,
	}
	if !trip.ScheduledAt.IsZero() {
		resp.ScheduledAt = trip.ScheduledAt.Format("2006-01-02 15:04")
	}
	return resp
}

// CreateTaxi handles POST /v1/trips/taxi
func (h *TripHandler) CreateTaxi(c *gin.Context) {
	var req CreateTaxiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.CreateTaxi(c.Request.Context(), service.TaxiRequest{
		RequesterPhone: req.Phone,
		RequesterName:  req.Name,
		Pickup:         service.NewEndpoint(req.PickupLat, req.PickupLng, req.PickupAddress),
		Dropoff:        service.NewEndpoint(req.DropoffLat, req.DropoffLng, req.DropoffAddress),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, tripResponse(trip))
}

// CreateDelivery handles POST /v1/trips/delivery
func (h *TripHandler) CreateDelivery(c *gin.Context) {
	var req CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.CreateDelivery(c.Request.Context(), service.DeliveryRequest{
		RequesterPhone: req.Phone,
		RequesterName:  req.Name,
		Pickup:         service.NewEndpoint(req.PickupLat, req.PickupLng, req.PickupAddress),
		Dropoff:        service.NewEndpoint(req.DropoffLat, req.DropoffLng, req.DropoffAddress),
		Description:    req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, tripResponse(trip))
}

// CreateReservation handles POST /v1/trips/reservation
func (h *TripHandler) CreateReservation(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.CreateReservation(c.Request.Context(), service.ReservationRequest{
		RequesterPhone: req.Phone,
		RequesterName:  req.Name,
		Pickup:         service.NewEndpoint(req.PickupLat, req.PickupLng, req.PickupAddress),
		Dropoff:        service.NewEndpoint(req.DropoffLat, req.DropoffLng, req.DropoffAddress),
		Date:           req.Date,
		Time:           req.Time,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, tripResponse(trip))
}

// Accept handles POST /v1/trips/:id/accept
func (h *TripHandler) Accept(c *gin.Context) {
	tripID := c.Param("id")

	var req AcceptTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.Accept(c.Request.Context(), tripID, req.WorkerID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// Reject handles POST /v1/trips/:id/reject
func (h *TripHandler) Reject(c *gin.Context) {
	tripID := c.Param("id")

	trip, err := h.tripService.Reject(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// Retry handles POST /v1/trips/:id/retry
func (h *TripHandler) Retry(c *gin.Context) {
	tripID := c.Param("id")

	// Body is optional; an absent body means the default radius.
	var req RetryTripRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.Retry(c.Request.Context(), service.RetryRequest{
		TripID: tripID,
		Radius: req.Radius,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// Status handles GET /v1/trips/:id/status
func (h *TripHandler) Status(c *gin.Context) {
	tripID := c.Param("id")

	status, err := h.tripService.Status(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, StatusResponse{ID: tripID, Status: string(status)})
}

// UpdateStatus handles POST /v1/trips/:id/status
func (h *TripHandler) UpdateStatus(c *gin.Context) {
	tripID := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.UpdateStatus(c.Request.Context(), tripID, domain.TripStatus(req.Status), req.WorkerID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}
