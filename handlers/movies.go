package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"screenscout/models"
	"screenscout/services/metadata"
)

type metadataService interface {
	Search(ctx context.Context, query string, year *int, page int) ([]models.MovieRecord, error)
	GetByID(ctx context.Context, externalID string) (*models.MovieRecord, error)
}

var _ metadataService = (*metadata.Service)(nil)

type historyStore interface {
	Insert(ctx context.Context, entry *models.SearchHistoryEntry) error
}

// MoviesHandler serves movie search and detail lookups.
type MoviesHandler struct {
	Service metadataService
	History historyStore
}

// NewMoviesHandler creates the handler. history may be nil.
func NewMoviesHandler(service metadataService, history historyStore) *MoviesHandler {
	return &MoviesHandler{Service: service, History: history}
}

// Search handles GET /api/movies/search?q=...&year=...&page=...
func (h *MoviesHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	var year *int
	if y := r.URL.Query().Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be numeric")
			return
		}
		year = &n
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	if h.History != nil {
		if userID := r.URL.Query().Get("userId"); userID != "" {
			entry := &models.SearchHistoryEntry{UserID: userID, Query: query, Kind: "search"}
			if err := h.History.Insert(r.Context(), entry); err != nil {
				log.Printf("[handlers] search history write failed: %v", err)
			}
		}
	}

	results, err := h.Service.Search(r.Context(), query, year, page)
	if err != nil {
		writeMetadataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// GetByID handles GET /api/movies/{id}
func (h *MoviesHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		writeMetadataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeMetadataError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		writeError(w, http.StatusNotFound, "no matching movie found")
	case errors.Is(err, metadata.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "movie data source is not configured")
	case errors.Is(err, metadata.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "movie data source is unavailable, please try again")
	default:
		writeError(w, http.StatusInternalServerError, "something went wrong, please try again")
	}
}
