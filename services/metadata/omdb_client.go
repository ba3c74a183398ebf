package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"screenscout/models"
)

const omdbBaseURL = "https://www.omdbapi.com/"

var (
	// ErrNotFound means the provider affirmatively reported no match. It is
	// never retried and never logged as an error.
	ErrNotFound = errors.New("metadata: title not found")
	// ErrUpstreamUnavailable means the provider stayed unreachable or kept
	// erroring after the allotted retries.
	ErrUpstreamUnavailable = errors.New("metadata: provider unavailable")
	// ErrNotConfigured means no provider API key is set.
	ErrNotConfigured = errors.New("metadata: api key not configured")
)

// OMDBClient talks to the OMDb API. Transport failures and 5xx responses are
// retried up to 3 attempts with linearly increasing backoff; a well-formed
// "not found" response is surfaced as ErrNotFound without retrying.
type OMDBClient struct {
	apiKey string
	httpc  *http.Client

	// retryDelay is the backoff unit (delay = attempt number x retryDelay).
	// Tests zero it out.
	retryDelay time.Duration
}

// NewOMDBClient creates a client. A nil httpc gets a 5s-timeout default;
// the timeout applies per attempt.
func NewOMDBClient(apiKey string, httpc *http.Client) *OMDBClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 5 * time.Second}
	}
	return &OMDBClient{
		apiKey:     strings.TrimSpace(apiKey),
		httpc:      httpc,
		retryDelay: 500 * time.Millisecond,
	}
}

// IsConfigured reports whether an API key is present.
func (c *OMDBClient) IsConfigured() bool {
	return c.apiKey != ""
}

// omdbSummary is one entry of an OMDb search response.
type omdbSummary struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	IMDBID string `json:"imdbID"`
	Poster string `json:"Poster"`
}

type omdbSearchResponse struct {
	Search   []omdbSummary `json:"Search"`
	Response string        `json:"Response"`
	Error    string        `json:"Error"`
}

// omdbDetail is the full-record OMDb response shape. Everything arrives as a
// string; normalization coerces types and strips "N/A" sentinels.
type omdbDetail struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Genre      string `json:"Genre"`
	Director   string `json:"Director"`
	Actors     string `json:"Actors"`
	Plot       string `json:"Plot"`
	Poster     string `json:"Poster"`
	IMDBRating string `json:"imdbRating"`
	Runtime    string `json:"Runtime"`
	Language   string `json:"Language"`
	Country    string `json:"Country"`
	IMDBID     string `json:"imdbID"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
}

// SearchByTitle runs an OMDb title search (s-mode). Results are summary
// records: title, year, id and poster only, normalized like every other
// provider payload.
func (c *OMDBClient) SearchByTitle(ctx context.Context, title string, year *int, page int) ([]models.MovieRecord, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	params := url.Values{}
	params.Set("s", title)
	if year != nil {
		params.Set("y", strconv.Itoa(*year))
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}

	var payload omdbSearchResponse
	if err := c.get(ctx, params, &payload); err != nil {
		return nil, err
	}
	if !strings.EqualFold(payload.Response, "True") || len(payload.Search) == 0 {
		return nil, ErrNotFound
	}

	out := make([]models.MovieRecord, 0, len(payload.Search))
	for _, s := range payload.Search {
		if s.IMDBID == "" {
			continue
		}
		out = append(out, normalizeSummary(s))
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// FetchByID fetches the full record for a provider id (i-mode, full plot).
func (c *OMDBClient) FetchByID(ctx context.Context, externalID string) (*models.MovieRecord, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	params := url.Values{}
	params.Set("i", externalID)
	params.Set("plot", "full")

	var payload omdbDetail
	if err := c.get(ctx, params, &payload); err != nil {
		return nil, err
	}
	if !strings.EqualFold(payload.Response, "True") || payload.IMDBID == "" {
		return nil, ErrNotFound
	}
	rec := normalizeDetail(payload)
	return &rec, nil
}

// get issues the request with retries. A 4xx response is not retried; 5xx and
// transport errors are, with backoff growing linearly per attempt.
func (c *OMDBClient) get(ctx context.Context, params url.Values, out any) error {
	params.Set("apikey", c.apiKey)
	endpoint := omdbBaseURL + "?" + params.Encode()

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 500 {
				io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("omdb status %d", resp.StatusCode)
			}
			if resp.StatusCode >= 400 {
				io.Copy(io.Discard, resp.Body)
				return retry.Unrecoverable(fmt.Errorf("omdb status %d", resp.StatusCode))
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode omdb response: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(n+1) * c.retryDelay
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[omdb] attempt %d failed: %v", n+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

// normalizeSummary maps a search-mode entry onto the canonical record.
func normalizeSummary(s omdbSummary) models.MovieRecord {
	return models.MovieRecord{
		ExternalID: s.IMDBID,
		Title:      s.Title,
		Year:       optYear(s.Year),
		PosterURL:  optString(s.Poster),
	}
}

// normalizeDetail maps a full OMDb payload onto the canonical record. Every
// caller that stores provider data goes through here so cached rows stay
// shape-consistent regardless of which path populated them.
func normalizeDetail(d omdbDetail) models.MovieRecord {
	return models.MovieRecord{
		ExternalID: d.IMDBID,
		Title:      d.Title,
		Year:       optYear(d.Year),
		Genre:      optString(d.Genre),
		Director:   optString(d.Director),
		Actors:     optString(d.Actors),
		Plot:       optString(d.Plot),
		PosterURL:  optString(d.Poster),
		Rating:     optRating(d.IMDBRating),
		Runtime:    optString(d.Runtime),
		Language:   optString(d.Language),
		Country:    optString(d.Country),
	}
}

// optString strips the provider's "N/A" sentinel to absent.
func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "N/A") {
		return nil
	}
	return &s
}

// optYear parses the leading year of values like "2010" or "2008-2013".
// Non-numeric values become absent, never zero.
func optYear(s string) *int {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return nil
	}
	n, err := strconv.Atoi(s[:4])
	if err != nil {
		return nil
	}
	return &n
}

// optRating parses the provider's string rating. Parse failures become
// absent, never zero.
func optRating(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "N/A") {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
