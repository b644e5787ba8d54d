package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"limit-offer-api/internal/metrics"
	"limit-offer-api/internal/models"
	"limit-offer-api/internal/service"
	"limit-offer-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	metrics     *metrics.Metrics
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	Metrics     *metrics.Metrics
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 1 << 20
	}
	return &Handler{
		service:     svc,
		metrics:     opts.Metrics,
		maxBodySize: opts.MaxBodySize,
	}
}

// CreateAccount handles POST /accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.CustomerID = validation.SanitizeString(req.CustomerID)

	accountID, err := h.service.CreateAccount(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, models.CreateAccountResponse{AccountID: accountID})
}

// GetAccount handles GET /accounts/{account_id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "account_id")
	if !ok {
		return
	}

	account, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, account)
}

// CreateOffer handles POST /offers
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.CreateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.ActivationTime = validation.SanitizeString(req.ActivationTime)
	req.ExpiryTime = validation.SanitizeString(req.ExpiryTime)

	offerID, err := h.service.CreateOffer(r.Context(), req, time.Now().UTC())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, models.CreateOfferResponse{OfferID: offerID})
}

// ListActiveOffers handles GET /accounts/{account_id}/offers
func (h *Handler) ListActiveOffers(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.pathID(w, r, "account_id")
	if !ok {
		return
	}

	// Optional 'active_at' filter restricts the list to offers whose
	// activation/expiry window contains the given instant.
	var asOf *time.Time
	if param := r.URL.Query().Get("active_at"); param != "" {
		parsed, err := validation.ValidateTimeString(param, "active_at")
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid 'active_at' parameter, must be RFC3339 format")
			return
		}
		utc := parsed.UTC()
		asOf = &utc
	}

	offers, err := h.service.ListActiveOffers(r.Context(), accountID, asOf)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if offers == nil {
		offers = []models.Offer{}
	}

	h.respondJSON(w, http.StatusOK, models.ListActiveOffersResponse{
		AccountID: accountID,
		Offers:    offers,
	})
}

// RedeemOffer handles POST /offers/{offer_id}/redeem
func (h *Handler) RedeemOffer(w http.ResponseWriter, r *http.Request) {
	offerID, ok := h.pathID(w, r, "offer_id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.RedeemOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	if err := h.service.RedeemOffer(r.Context(), offerID, req.Status); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.RedeemOfferResponse{
		OfferID: offerID,
		Status:  req.Status,
	})
}

// MetricsSummary handles GET /metrics/summary
func (h *Handler) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		h.respondError(w, http.StatusNotFound, "metrics are not enabled")
		return
	}
	h.respondJSON(w, http.StatusOK, h.metrics.GetSnapshot())
}

// pathID parses a positive integer URL parameter, responding with 400 on
// failure.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := validation.SanitizeString(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// handleServiceError maps workflow errors to HTTP status codes.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *validation.ValidationError
	var notFound *models.ErrNotFound
	var alreadyRedeemed *models.ErrAlreadyRedeemed
	var invalidLimitType *models.ErrInvalidLimitType

	switch {
	case errors.As(err, &validationErr), errors.As(err, &invalidLimitType):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &alreadyRedeemed):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
