package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)
		r.Post("/cash", h.HandleAddCash)
		r.Post("/assets", h.HandleAddAsset)
		r.Put("/selling-allowed", h.HandleSetSellingAllowed)
	})
}
