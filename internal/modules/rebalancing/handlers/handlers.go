// Package handlers provides HTTP handlers for rebalancing operations.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aristath/rebalancer/internal/httpapi"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles rebalancing HTTP requests
type Handler struct {
	service      *rebalancing.Service
	defaultLimit int
	log          zerolog.Logger
}

// DefaultHistoryLimit is the page size of the history listing when no limit is given
const DefaultHistoryLimit = 50

// NewHandler creates a new rebalancing handler
func NewHandler(service *rebalancing.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service:      service,
		defaultLimit: DefaultHistoryLimit,
		log:          log.With().Str("handler", "rebalancing").Logger(),
	}
}

// WithDefaultLimit overrides the history page size; non-positive values are ignored
func (h *Handler) WithDefaultLimit(limit int) *Handler {
	if limit > 0 {
		h.defaultLimit = limit
	}
	return h
}

// RebalanceRequest asks for a rebalance toward a target allocation in percent
type RebalanceRequest struct {
	TargetAllocation map[string]float64 `json:"target_allocation" validate:"required,min=1,dive,keys,required,endkeys,gte=0,lte=100"`
	DryRun           bool               `json:"dry_run"`
}

// HandleRebalance handles POST /api/rebalance.
// With ?format=text the result is rendered as a plain-text report.
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	var req RebalanceRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	result, err := h.service.Rebalance(r.Context(), req.TargetAllocation, req.DryRun)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	h.log.Info().
		Str("run_id", result.ID).
		Bool("dry_run", result.DryRun).
		Int("exchanges", len(result.ExchangeHistory)).
		Float64("max_deviation", result.MaxAllocationDeviation).
		Msg("Rebalance finished")

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := rebalancing.WriteReport(w, result); err != nil {
			h.log.Error().Err(err).Msg("Failed to write rebalance report")
		}
		return
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, result)
}

// HandleListHistory handles GET /api/rebalance/history
func (h *Handler) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.writeHistoryError(w, err)
		return
	}
	httpapi.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleGetRun handles GET /api/rebalance/history/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeHistoryError(w, err)
		return
	}
	httpapi.WriteJSON(w, h.log, http.StatusOK, result)
}

func (h *Handler) writeHistoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, rebalancing.ErrHistoryDisabled) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	httpapi.WriteError(w, h.log, err)
}
