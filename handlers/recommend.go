package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"screenscout/models"
	"screenscout/services/recommend"
)

type recommendService interface {
	Recommend(ctx context.Context, prompt, userID string) (*models.RecommendationResponse, error)
}

var _ recommendService = (*recommend.Service)(nil)

// RecommendHandler serves natural-language recommendation requests.
type RecommendHandler struct {
	Service recommendService
}

// NewRecommendHandler creates the handler.
func NewRecommendHandler(service recommendService) *RecommendHandler {
	return &RecommendHandler{Service: service}
}

type recommendRequest struct {
	Prompt string `json:"prompt"`
	UserID string `json:"userId,omitempty"`
}

// Recommend handles POST /api/recommendations.
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var body recommendRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.Recommend(r.Context(), body.Prompt, body.UserID)
	if err != nil {
		writeRecommendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeRecommendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidPrompt):
		writeError(w, http.StatusBadRequest, "prompt must be between 1 and 500 characters")
	case errors.Is(err, recommend.ErrLLMRateLimited):
		writeError(w, http.StatusTooManyRequests, "recommendation service is busy, please try again shortly")
	case errors.Is(err, recommend.ErrLLMNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "recommendations are not configured")
	case errors.Is(err, recommend.ErrLLMAuth), errors.Is(err, recommend.ErrLLMBadRequest), errors.Is(err, recommend.ErrMalformedResponse):
		writeError(w, http.StatusBadGateway, "recommendation service returned an unusable response, please try again")
	case errors.Is(err, recommend.ErrLLMUnavailable):
		writeError(w, http.StatusServiceUnavailable, "recommendation service is unavailable, please try again")
	default:
		writeError(w, http.StatusInternalServerError, "something went wrong, please try again")
	}
}
