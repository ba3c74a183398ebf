package recommend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"screenscout/internal/database"
	"screenscout/models"
)

// CacheStore is the persistence slice behind the recommendation cache.
type CacheStore interface {
	GetByHash(ctx context.Context, promptHash string) (*database.RecommendationRow, error)
	Put(ctx context.Context, row *database.RecommendationRow) error
}

// Cache stores whole recommendation responses keyed by prompt hash. Expired
// rows are inert: readers treat them as misses even before they are purged,
// and anything unreadable in the payload is also a miss. A cache is never
// allowed to break the read path.
type Cache struct {
	store CacheStore
	ttl   time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewCache creates a cache with the given TTL (24h in production).
func NewCache(store CacheStore, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl, now: time.Now}
}

// PromptHash digests the case-folded, whitespace-trimmed prompt so trivially
// distinct inputs collapse to one cache slot.
func PromptHash(prompt string) string {
	normalized := strings.ToLower(strings.TrimSpace(prompt))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for the prompt, or a miss. Callers cannot
// distinguish "never cached" from "expired" from "corrupt" — all are misses.
func (c *Cache) Get(ctx context.Context, prompt string) (*models.RecommendationResponse, bool) {
	row, err := c.store.GetByHash(ctx, PromptHash(prompt))
	if err != nil {
		log.Printf("[recommend] cache read failed: %v", err)
		return nil, false
	}
	if row == nil || !row.ExpiresAt.After(c.now()) {
		return nil, false
	}
	resp, ok := normalizePayload(row.Payload)
	if !ok {
		log.Printf("[recommend] corrupt cache payload for hash %s, treating as miss", row.PromptHash)
		return nil, false
	}
	return resp, true
}

// Put stores the response under the prompt's hash with a fresh TTL,
// overwriting any previous entry. Last write wins.
func (c *Cache) Put(ctx context.Context, prompt string, resp *models.RecommendationResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	now := c.now().UTC()
	return c.store.Put(ctx, &database.RecommendationRow{
		PromptHash: PromptHash(prompt),
		PromptText: prompt,
		Payload:    payload,
		CreatedAt:  now,
		ExpiresAt:  now.Add(c.ttl),
	})
}

// normalizePayload coerces historical payload shapes to the canonical
// response: a bare items array, or an object wrapping an items /
// recommendations / data field. Irrecoverable garbage reports not-ok.
func normalizePayload(raw []byte) (*models.RecommendationResponse, bool) {
	var wrapped struct {
		Explanation     string                    `json:"explanation"`
		Items           []models.RecommendedMovie `json:"items"`
		Recommendations []models.RecommendedMovie `json:"recommendations"`
		Data            []models.RecommendedMovie `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		items := wrapped.Items
		if len(items) == 0 {
			items = wrapped.Recommendations
		}
		if len(items) == 0 {
			items = wrapped.Data
		}
		if len(items) > 0 {
			return &models.RecommendationResponse{Explanation: wrapped.Explanation, Items: items}, true
		}
	}

	var bare []models.RecommendedMovie
	if err := json.Unmarshal(raw, &bare); err == nil && len(bare) > 0 {
		return &models.RecommendationResponse{Items: bare}, true
	}
	return nil, false
}
