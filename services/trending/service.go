package trending

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sourcegraph/conc/pool"

	"screenscout/models"
	"screenscout/services/metadata"
)

const (
	trendingMinRating = 7.0
	degradedMinRating = 6.0
	trendingLimit     = 20
	// cacheSatisfiedFloor is the minimum cached result count that lets the
	// cache-first path answer without touching the provider.
	cacheSatisfiedFloor = 10
)

// defaultWatchlist is the fixed set of well-known titles the refresh path
// walks when the cache cannot satisfy a trending request.
var defaultWatchlist = []string{
	"Inception",
	"The Dark Knight",
	"Interstellar",
	"The Shawshank Redemption",
	"Pulp Fiction",
	"The Matrix",
	"Forrest Gump",
	"Gladiator",
	"The Godfather",
	"Parasite",
}

// Store is the cache slice the aggregator reads from and writes back to.
type Store interface {
	FindTrendingCandidates(ctx context.Context, minRating float64, limit int) ([]models.MovieRecord, error)
	Upsert(ctx context.Context, rec *models.MovieRecord) error
}

// Fetcher resolves one watchlist title to a full record without storing it.
type Fetcher interface {
	Lookup(ctx context.Context, title string, year *int) (*models.MovieRecord, error)
}

// Service produces the trending result set: cache-first with a
// forced-refresh mode and a degraded fallback when the provider is down.
type Service struct {
	store     Store
	fetcher   Fetcher
	watchlist []string

	// writes runs detached best-effort cache writes so responses never
	// block on, or fail because of, a trending upsert.
	writes *pool.Pool
}

// NewService builds the aggregator over the shared store and fetcher.
func NewService(store Store, fetcher Fetcher) *Service {
	return &Service{
		store:     store,
		fetcher:   fetcher,
		watchlist: defaultWatchlist,
		writes:    pool.New().WithMaxGoroutines(2),
	}
}

// Close drains outstanding detached writes. Call on shutdown.
func (s *Service) Close() {
	s.writes.Wait()
}

// GetTrending returns the trending set.
//
// Without forceRefresh, a cache read that yields at least ten records rated
// 7.0+ answers immediately. Otherwise the fixed watchlist is fetched title by
// title: failures are logged and skipped, successes are returned and written
// back asynchronously. If the whole upstream loop yields nothing, a degraded
// 6.0-rated cache read is the last resort before an empty (non-error) result.
func (s *Service) GetTrending(ctx context.Context, forceRefresh bool) ([]models.MovieRecord, error) {
	if !forceRefresh {
		cached, err := s.store.FindTrendingCandidates(ctx, trendingMinRating, trendingLimit)
		if err != nil {
			log.Printf("[trending] cache read failed: %v", err)
		} else if len(cached) >= cacheSatisfiedFloor {
			return cached, nil
		}
	}

	results := make([]models.MovieRecord, 0, len(s.watchlist))
	for _, title := range s.watchlist {
		rec, err := s.fetcher.Lookup(ctx, title, nil)
		if err != nil {
			if !errors.Is(err, metadata.ErrNotFound) {
				log.Printf("[trending] fetch %q failed: %v", title, err)
			}
			continue
		}
		results = append(results, *rec)
		s.storeAsync(*rec)
	}

	if len(results) > 0 {
		return results, nil
	}

	// Total provider outage: serve whatever decent cached records exist.
	degraded, err := s.store.FindTrendingCandidates(ctx, degradedMinRating, trendingLimit)
	if err != nil {
		log.Printf("[trending] degraded cache read failed: %v", err)
	}
	if len(degraded) == 0 {
		return []models.MovieRecord{}, nil
	}
	return degraded, nil
}

// storeAsync hands the record to the detached writer pool. Errors are logged
// and discarded; the response path never sees them.
func (s *Service) storeAsync(rec models.MovieRecord) {
	s.writes.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.Upsert(ctx, &rec); err != nil {
			log.Printf("[trending] detached upsert for %s failed: %v", rec.ExternalID, err)
		}
	})
}
