package handlers

import (
	"context"
	"net/http"

	"screenscout/models"
	"screenscout/services/trending"
)

type trendingService interface {
	GetTrending(ctx context.Context, forceRefresh bool) ([]models.MovieRecord, error)
}

var _ trendingService = (*trending.Service)(nil)

// TrendingHandler serves the aggregated trending list.
type TrendingHandler struct {
	Service trendingService
}

// NewTrendingHandler creates the handler.
func NewTrendingHandler(service trendingService) *TrendingHandler {
	return &TrendingHandler{Service: service}
}

// GetTrending handles GET /api/trending?refresh=true.
func (h *TrendingHandler) GetTrending(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh")
	force := refresh == "true" || refresh == "1"

	results, err := h.Service.GetTrending(r.Context(), force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "something went wrong, please try again")
		return
	}
	if results == nil {
		results = []models.MovieRecord{}
	}
	writeJSON(w, http.StatusOK, results)
}
