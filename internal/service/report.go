package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"dispatch/internal/config"
	"dispatch/internal/domain"
)

// StatusReporter forwards trip status changes to an external fleet system.
// Reporting is fire-and-forget: failures are logged, never surfaced to the
// caller.
type StatusReporter interface {
	Report(ctx context.Context, action string, trip *domain.Trip, worker *domain.Worker)
}

// HTTPStatusReporter posts status reports to a configured HTTP sink.
type HTTPStatusReporter struct {
	cfg    config.ReportConfig
	client *http.Client
}

// NewHTTPStatusReporter creates a new HTTPStatusReporter.
func NewHTTPStatusReporter(cfg config.ReportConfig) *HTTPStatusReporter {
	return &HTTPStatusReporter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type statusReport struct {
	Action string           `json:"action"`
	Travel statusReportBody `json:"travel_info"`
}

type statusReportBody struct {
	TripID         string  `json:"trip_id"`
	WorkerID       string  `json:"worker_id"`
	WorkerLat      float64 `json:"worker_lat"`
	WorkerLng      float64 `json:"worker_lng"`
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

// Report posts a status change. The worker is passed explicitly by the
// caller; the report never infers it from ambient state.
func (r *HTTPStatusReporter) Report(ctx context.Context, action string, trip *domain.Trip, worker *domain.Worker) {
	if !r.cfg.Enabled || r.cfg.URL == "" {
		return
	}

	body := statusReportBody{
		TripID:         trip.ID,
		RequesterPhone: trip.RequesterPhone,
		PickupAddress:  trip.PickupAddress,
		PickupLat:      trip.PickupLat,
		PickupLng:      trip.PickupLng,
		DropoffAddress: trip.DropoffAddress,
		DropoffLat:     trip.DropoffLat,
		DropoffLng:     trip.DropoffLng,
		Description:    trip.Description,
		Kind:           string(trip.Kind),
	}
	if worker != nil {
		body.WorkerID = worker.ID
		body.WorkerLat = worker.Lat
		body.WorkerLng = worker.Lng
	}
	if !trip.ScheduledAt.IsZero() {
		body.ScheduledAt = trip.ScheduledAt.Format("2006-01-02 15:04")
	}

	payload, err := json.Marshal(statusReport{Action: action, Travel: body})
	if err != nil {
		log.Printf("status report marshal failed for trip %s: %v", trip.ID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		log.Printf("status report request failed for trip %s: %v", trip.ID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		log.Printf("status report %s for trip %s failed: %v", action, trip.ID, err)
		return
	}
	_ = resp.Body.Close()
	log.Printf("status report %s for trip %s sent (%s)", action, trip.ID, resp.Status)
}
