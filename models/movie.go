package models

import "time"

// UnavailableSentinel marks placeholder fields for titles the metadata
// provider could not verify.
const UnavailableSentinel = "Unavailable"

// MovieRecord is the canonical, provider-agnostic representation of one title.
// ExternalID is the provider's stable identifier and the only join key; a
// record is never persisted without one. Optional fields are nil when the
// provider had no value (the provider's "N/A" marker is never stored).
type MovieRecord struct {
	ExternalID string    `json:"externalId"`
	Title      string    `json:"title"`
	Year       *int      `json:"year,omitempty"`
	Genre      *string   `json:"genre,omitempty"` // comma-joined list, as the provider sends it
	Director   *string   `json:"director,omitempty"`
	Actors     *string   `json:"actors,omitempty"`
	Plot       *string   `json:"plot,omitempty"`
	PosterURL  *string   `json:"posterUrl,omitempty"`
	Rating     *float64  `json:"rating,omitempty"` // 0.0-10.0
	Runtime    *string   `json:"runtime,omitempty"`
	Language   *string   `json:"language,omitempty"`
	Country    *string   `json:"country,omitempty"`
	CachedAt   time.Time `json:"cachedAt"`
}

// RecommendedMovie is a movie record annotated with the model's rationale for
// suggesting it. Unresolved marks placeholder records that could not be
// verified against the metadata provider; those are never persisted.
type RecommendedMovie struct {
	MovieRecord
	Rationale  string `json:"rationale,omitempty"`
	Unresolved bool   `json:"unresolved,omitempty"`
}

// RecommendationResponse is the full result of one recommendation request.
type RecommendationResponse struct {
	Explanation string             `json:"explanation"`
	Items       []RecommendedMovie `json:"items"`
}

// PlaceholderRecord builds a non-persisted stand-in for a suggested title that
// could not be resolved to a verified record. Text fields carry the
// unavailable sentinel; rating stays nil so it can never satisfy a
// rating-gated query.
func PlaceholderRecord(title string, year *int) MovieRecord {
	unavailable := UnavailableSentinel
	return MovieRecord{
		Title:    title,
		Year:     year,
		Genre:    &unavailable,
		Director: &unavailable,
		Actors:   &unavailable,
		Plot:     &unavailable,
	}
}

// SearchHistoryEntry is a best-effort audit row for user-initiated lookups.
// Writes are fire-and-forget; no cache decision reads this table.
type SearchHistoryEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Query     string    `json:"query"`
	Kind      string    `json:"kind"` // "search" or "recommend"
	CreatedAt time.Time `json:"createdAt"`
}
