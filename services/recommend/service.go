package recommend

import (
	"context"
	"log"

	"screenscout/models"
)

// Recommender produces a fresh recommendation response. Satisfied by *Engine.
type Recommender interface {
	Recommend(ctx context.Context, prompt, userID string) (*models.RecommendationResponse, error)
}

// Service wraps the engine with the prompt-hash response cache: cache hit
// short-circuits the model entirely, and every fresh result is written back
// with a 24h TTL.
type Service struct {
	engine Recommender
	cache  *Cache
}

// NewService wires the cached recommendation pipeline.
func NewService(engine Recommender, cache *Cache) *Service {
	return &Service{engine: engine, cache: cache}
}

// Recommend serves from cache when a live entry exists for the normalized
// prompt, otherwise runs the engine and caches the result. Cache write
// failures are logged and never surface: the response is already in hand.
func (s *Service) Recommend(ctx context.Context, prompt, userID string) (*models.RecommendationResponse, error) {
	if resp, ok := s.cache.Get(ctx, prompt); ok {
		return resp, nil
	}

	resp, err := s.engine.Recommend(ctx, prompt, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, prompt, resp); err != nil {
		log.Printf("[recommend] cache write failed: %v", err)
	}
	return resp, nil
}
