// Package handlers provides HTTP handlers for currency operations.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/httpapi"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles currency HTTP requests
type Handler struct {
	portfolios *portfolio.Service
	rates      domain.RateProvider
	log        zerolog.Logger
}

// NewHandler creates a new currency handler
func NewHandler(
	portfolios *portfolio.Service,
	rates domain.RateProvider,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		portfolios: portfolios,
		rates:      rates,
		log:        log.With().Str("handler", "currency").Logger(),
	}
}

// ExchangeRequest converts cash between two pools of the portfolio.
// Exactly one of ToAmount and FromAmount must be set.
type ExchangeRequest struct {
	ToCurrency   string   `json:"to_currency" validate:"required,len=3,alpha"`
	FromCurrency string   `json:"from_currency" validate:"required,len=3,alpha"`
	ToAmount     *float64 `json:"to_amount,omitempty" validate:"omitempty,gt=0"`
	FromAmount   *float64 `json:"from_amount,omitempty" validate:"omitempty,gt=0"`
}

// RateResponse is one quoted exchange rate
type RateResponse struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
}

// HandleGetRate handles GET /api/currency/rate/{from}/{to}
func (h *Handler) HandleGetRate(w http.ResponseWriter, r *http.Request) {
	from := domain.NormalizeCurrency(chi.URLParam(r, "from"))
	to := domain.NormalizeCurrency(chi.URLParam(r, "to"))

	if len(from) != 3 || len(to) != 3 {
		httpapi.WriteError(w, h.log, fmt.Errorf("%w: currency codes must have three letters", domain.ErrValidation))
		return
	}

	rate := 1.0
	if from != to {
		var err error
		rate, err = h.rates.GetRate(from, to)
		if err != nil {
			httpapi.WriteError(w, h.log, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err))
			return
		}
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, RateResponse{From: from, To: to, Rate: rate})
}

// HandleExchange handles POST /api/currency/exchange
func (h *Handler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	record, err := h.portfolios.ExchangeCurrency(r.Context(), req.ToCurrency, req.FromCurrency, req.ToAmount, req.FromAmount)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	h.log.Info().Str("exchange", record.String()).Msg("Currency exchanged")
	httpapi.WriteJSON(w, h.log, http.StatusOK, record)
}
