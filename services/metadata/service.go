package metadata

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"screenscout/models"
)

// Store is the slice of the movie cache the metadata service needs.
type Store interface {
	FindByID(ctx context.Context, externalID string) (*models.MovieRecord, error)
	FindByTitleSubstring(ctx context.Context, query string) ([]models.MovieRecord, error)
	Upsert(ctx context.Context, rec *models.MovieRecord) error
}

// Service decides whether a movie record is served from cache or fetched and
// populated from the provider. All provider payloads pass through the client's
// normalization before they are stored or returned.
type Service struct {
	client *OMDBClient
	store  Store

	// group dedupes concurrent identical detail fetches so a burst of
	// requests for one cold id costs one provider call.
	group singleflight.Group
}

// NewService builds the cache-or-fetch facade over the store and client.
func NewService(client *OMDBClient, store Store) *Service {
	return &Service{client: client, store: store}
}

// GetByID serves the record from cache when present, otherwise fetches the
// full record from the provider, stores it, and returns it.
func (s *Service) GetByID(ctx context.Context, externalID string) (*models.MovieRecord, error) {
	cached, err := s.store.FindByID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	rec, err := s.fetchShared(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		log.Printf("[metadata] upsert after fetch failed for %s: %v", externalID, err)
	}
	return rec, nil
}

// Search returns records matching the query. The cache is consulted first for
// unpaged queries; on a miss the provider search runs and each summary is
// enriched to a full record, stored, and returned best-rated first.
func (s *Service) Search(ctx context.Context, query string, year *int, page int) ([]models.MovieRecord, error) {
	if page <= 1 {
		cached, err := s.store.FindByTitleSubstring(ctx, query)
		if err != nil {
			log.Printf("[metadata] cache search failed, falling through to provider: %v", err)
		} else if len(cached) > 0 {
			return cached, nil
		}
	}

	summaries, err := s.client.SearchByTitle(ctx, query, year, page)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, summaries), nil
}

// Lookup fetches the best full record for a loosely specified title without
// touching the store: provider search, then detail fetch of the top hit.
func (s *Service) Lookup(ctx context.Context, title string, year *int) (*models.MovieRecord, error) {
	summaries, err := s.client.SearchByTitle(ctx, title, year, 1)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, ErrNotFound
	}
	return s.fetchShared(ctx, summaries[0].ExternalID)
}

// ResolveByTitle maps a title/year pair onto a stored canonical record:
// provider search, detail fetch, upsert, return.
func (s *Service) ResolveByTitle(ctx context.Context, title string, year *int) (*models.MovieRecord, error) {
	rec, err := s.Lookup(ctx, title, year)
	if err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		// The fetched record is still good; a failed write only costs a
		// refetch later.
		log.Printf("[metadata] upsert after resolve failed for %s: %v", rec.ExternalID, err)
	}
	return rec, nil
}

func (s *Service) fetchShared(ctx context.Context, externalID string) (*models.MovieRecord, error) {
	v, err, _ := s.group.Do(externalID, func() (any, error) {
		return s.client.FetchByID(ctx, externalID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.MovieRecord), nil
}

// enrich upgrades search summaries to full records with bounded concurrency.
// Detail failures degrade to the summary record rather than dropping the hit.
func (s *Service) enrich(ctx context.Context, summaries []models.MovieRecord) []models.MovieRecord {
	p := pool.NewWithResults[models.MovieRecord]().WithMaxGoroutines(4)
	for _, summary := range summaries {
		p.Go(func() models.MovieRecord {
			full, err := s.fetchShared(ctx, summary.ExternalID)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					log.Printf("[metadata] enrich %s failed: %v", summary.ExternalID, err)
				}
				return summary
			}
			if err := s.store.Upsert(ctx, full); err != nil {
				log.Printf("[metadata] upsert after enrich failed for %s: %v", full.ExternalID, err)
			}
			return *full
		})
	}
	results := p.Wait()
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i].Rating, results[j].Rating
		switch {
		case ri == nil:
			return false
		case rj == nil:
			return true
		default:
			return *ri > *rj
		}
	})
	return results
}
