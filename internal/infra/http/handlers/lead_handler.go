package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/queue"
)

// LeadCanceller stops a lead's drip; the cancel usecase provides it.
type LeadCanceller interface {
	Execute(ctx context.Context, leadID string) error
}

type LeadHandler struct {
	producer    queue.ProducerInterface
	canceller   LeadCanceller
	rateLimiter *RateLimiter
}

func NewLeadHandler(producer queue.ProducerInterface, canceller LeadCanceller) *LeadHandler {
	return &LeadHandler{
		producer:    producer,
		canceller:   canceller,
		rateLimiter: NewRateLimiter(10, time.Minute), // 10 req/min per IP
	}
}

type CaptureLeadRequest struct {
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	PreferredLocation string `json:"preferred_location,omitempty"`
	CampaignType      string `json:"campaign_type"`
}

type LeadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CaptureLead validates the capture form and hands it to the enrollment
// queue; the queue worker persists the lead and fires stage 1.
func (h *LeadHandler) CaptureLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientIP := getClientIP(r)
	if !h.rateLimiter.Allow(clientIP) {
		writeJSON(w, http.StatusTooManyRequests, LeadResponse{
			Success: false,
			Message: "Too many requests. Please try again later.",
		})
		return
	}

	var req CaptureLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, LeadResponse{
			Success: false,
			Message: "Invalid JSON",
		})
		return
	}

	if req.Name == "" || req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, LeadResponse{
			Success: false,
			Message: "Name and phone are required",
		})
		return
	}
	if req.CampaignType != "buyer" && req.CampaignType != "seller" {
		writeJSON(w, http.StatusBadRequest, LeadResponse{
			Success: false,
			Message: "campaign_type must be buyer or seller",
		})
		return
	}

	payload := queue.EnrollmentPayload{
		Name:              req.Name,
		Phone:             req.Phone,
		PreferredLocation: req.PreferredLocation,
		CampaignType:      req.CampaignType,
		Origin:            "LANDING_PAGE",
	}

	if err := h.producer.PublishEnrollment(ctx, payload); err != nil {
		writeJSON(w, http.StatusInternalServerError, LeadResponse{
			Success: false,
			Message: "Failed to capture lead",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, LeadResponse{
		Success: true,
	})
}

// HandleCancel stops further drip stages for a lead. Repeating the call is
// harmless.
func (h *LeadHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	if leadID == "" {
		writeJSON(w, http.StatusBadRequest, LeadResponse{
			Success: false,
			Message: "Lead id is required",
		})
		return
	}

	if err := h.canceller.Execute(r.Context(), leadID); err != nil {
		writeJSON(w, http.StatusInternalServerError, LeadResponse{
			Success: false,
			Message: "Failed to cancel drip",
		})
		return
	}

	writeJSON(w, http.StatusOK, LeadResponse{
		Success: true,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
