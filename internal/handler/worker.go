package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/service"
)

// WorkerHandler handles HTTP requests for workers.
type WorkerHandler struct {
	workerService *service.WorkerService
}

// NewWorkerHandler creates a new WorkerHandler.
func NewWorkerHandler(workerService *service.WorkerService) *WorkerHandler {
	return &WorkerHandler{workerService: workerService}
}

// UpdateLocationRequest is the HTTP request body for a location report.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UpdateLocationResponse is the HTTP response for a location report.
type UpdateLocationResponse struct {
	WorkerID string  `json:"worker_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// PanicRequest is the HTTP request body for a panic alert.
type PanicRequest struct {
	WorkerID string  `json:"worker_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// LocationResponse is the HTTP response for a position lookup.
type LocationResponse struct {
	WorkerID string  `json:"worker_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// PanicResponse is the HTTP response for a panic alert: the nearest
// colleague.
type PanicResponse struct {
	NearestWorkerID string  `json:"nearest_worker_id"`
	NearestLat      float64 `json:"nearest_lat"`
	NearestLng      float64 `json:"nearest_lng"`
}

// UpdateLocation handles POST /v1/workers/:id/location
func (h *WorkerHandler) UpdateLocation(c *gin.Context) {
	workerID := c.Param("id")

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.workerService.SetLocation(c.Request.Context(), workerID, req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, UpdateLocationResponse{
		WorkerID: workerID,
		Lat:      req.Lat,
		Lng:      req.Lng,
	})
}

// Location handles GET /v1/workers/:id/location
func (h *WorkerHandler) Location(c *gin.Context) {
	workerID := c.Param("id")

	loc, err := h.workerService.Location(c.Request.Context(), workerID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, LocationResponse{
		WorkerID: loc.WorkerID,
		Lat:      loc.Lat,
		Lng:      loc.Lng,
	})
}

// Panic handles POST /v1/workers/panic
func (h *WorkerHandler) Panic(c *gin.Context) {
	var req PanicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	nearest, err := h.workerService.Panic(c.Request.Context(), req.WorkerID, req.Lat, req.Lng)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PanicResponse{
		NearestWorkerID: nearest.ID,
		NearestLat:      nearest.Lat,
		NearestLng:      nearest.Lng,
	})
}
