package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"screenscout/models"
	"screenscout/services/metadata"
	"screenscout/services/recommend"
)

type stubMetadata struct {
	searchResults []models.MovieRecord
	record        *models.MovieRecord
	err           error
}

func (s *stubMetadata) Search(_ context.Context, _ string, _ *int, _ int) ([]models.MovieRecord, error) {
	return s.searchResults, s.err
}

func (s *stubMetadata) GetByID(_ context.Context, _ string) (*models.MovieRecord, error) {
	return s.record, s.err
}

type stubRecommender struct {
	resp *models.RecommendationResponse
	err  error
}

func (s *stubRecommender) Recommend(_ context.Context, _, _ string) (*models.RecommendationResponse, error) {
	return s.resp, s.err
}

func TestSearch_MissingQuery(t *testing.T) {
	h := NewMoviesHandler(&stubMetadata{}, nil)
	rr := httptest.NewRecorder()
	h.Search(rr, httptest.NewRequest(http.MethodGet, "/api/movies/search", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected an error message")
	}
}

func TestSearch_BadYearAndPage(t *testing.T) {
	h := NewMoviesHandler(&stubMetadata{}, nil)
	for _, target := range []string{
		"/api/movies/search?q=matrix&year=soon",
		"/api/movies/search?q=matrix&page=0",
		"/api/movies/search?q=matrix&page=two",
	} {
		rr := httptest.NewRecorder()
		h.Search(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestSearch_OK(t *testing.T) {
	h := NewMoviesHandler(&stubMetadata{searchResults: []models.MovieRecord{
		{ExternalID: "tt0133093", Title: "The Matrix"},
	}}, nil)
	rr := httptest.NewRecorder()
	h.Search(rr, httptest.NewRequest(http.MethodGet, "/api/movies/search?q=matrix", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got []models.MovieRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(got) != 1 || got[0].Title != "The Matrix" {
		t.Errorf("unexpected results: %+v", got)
	}
}

func TestGetByID_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", metadata.ErrNotFound, http.StatusNotFound},
		{"not configured", metadata.ErrNotConfigured, http.StatusServiceUnavailable},
		{"upstream down", metadata.ErrUpstreamUnavailable, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewMoviesHandler(&stubMetadata{err: tc.err}, nil)
			rr := httptest.NewRecorder()
			req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/movies/tt0000001", nil), map[string]string{"id": "tt0000001"})
			h.GetByID(rr, req)
			if rr.Code != tc.want {
				t.Errorf("got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestRecommend_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid prompt", recommend.ErrInvalidPrompt, http.StatusBadRequest},
		{"rate limited", recommend.ErrLLMRateLimited, http.StatusTooManyRequests},
		{"not configured", recommend.ErrLLMNotConfigured, http.StatusServiceUnavailable},
		{"auth failure", recommend.ErrLLMAuth, http.StatusBadGateway},
		{"malformed reply", recommend.ErrMalformedResponse, http.StatusBadGateway},
		{"provider down", recommend.ErrLLMUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRecommendHandler(&stubRecommender{err: tc.err})
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/recommendations", strings.NewReader(`{"prompt":"dark thriller"}`))
			h.Recommend(rr, req)
			if rr.Code != tc.want {
				t.Errorf("got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestRecommend_BadBody(t *testing.T) {
	h := NewRecommendHandler(&stubRecommender{})
	for _, body := range []string{`not json`, `{"prompt":"x","bogus":true}`} {
		rr := httptest.NewRecorder()
		h.Recommend(rr, httptest.NewRequest(http.MethodPost, "/api/recommendations", strings.NewReader(body)))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestRecommend_OK(t *testing.T) {
	h := NewRecommendHandler(&stubRecommender{resp: &models.RecommendationResponse{
		Explanation: "Bleak and tense.",
		Items: []models.RecommendedMovie{
			{MovieRecord: models.MovieRecord{ExternalID: "tt0114369", Title: "Se7en"}, Rationale: "Grim."},
		},
	}})
	rr := httptest.NewRecorder()
	h.Recommend(rr, httptest.NewRequest(http.MethodPost, "/api/recommendations", strings.NewReader(`{"prompt":"dark thriller"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got models.RecommendationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.Explanation == "" || len(got.Items) != 1 {
		t.Errorf("unexpected response: %+v", got)
	}
}
