// Package handlers provides HTTP handlers for portfolio operations.
package handlers

import (
	"net/http"

	"github.com/aristath/rebalancer/internal/httpapi"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// AddCashRequest deposits cash into a pool
type AddCashRequest struct {
	Amount   float64 `json:"amount" validate:"gt=0"`
	Currency string  `json:"currency" validate:"required,len=3,alpha"`
}

// AddAssetRequest adds units of a ticker
type AddAssetRequest struct {
	Ticker   string `json:"ticker" validate:"required,max=32"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// SellingAllowedRequest toggles selling during rebalances
type SellingAllowedRequest struct {
	Allowed *bool `json:"selling_allowed" validate:"required"`
}

// HandleGetPortfolio handles GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary()
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, h.log, http.StatusOK, summary)
}

// HandleAddCash handles POST /api/portfolio/cash
func (h *Handler) HandleAddCash(w http.ResponseWriter, r *http.Request) {
	var req AddCashRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	balance, err := h.service.AddCash(r.Context(), req.Amount, req.Currency)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	h.log.Info().Float64("amount", req.Amount).Str("currency", balance.Currency).Msg("Cash added")
	httpapi.WriteJSON(w, h.log, http.StatusOK, balance)
}

// HandleAddAsset handles POST /api/portfolio/assets
func (h *Handler) HandleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req AddAssetRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	asset, err := h.service.AddAsset(r.Context(), req.Ticker, req.Quantity)
	if err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	h.log.Info().Str("ticker", asset.Ticker).Int("quantity", asset.Quantity).Msg("Asset added")
	httpapi.WriteJSON(w, h.log, http.StatusCreated, asset)
}

// HandleSetSellingAllowed handles PUT /api/portfolio/selling-allowed
func (h *Handler) HandleSetSellingAllowed(w http.ResponseWriter, r *http.Request) {
	var req SellingAllowedRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}

	if err := h.service.SetSellingAllowed(r.Context(), *req.Allowed); err != nil {
		httpapi.WriteError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, h.log, http.StatusOK, map[string]bool{"selling_allowed": *req.Allowed})
}
