package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"screenscout/models"
)

// MovieRepository owns the canonical movies table. Rows never expire; every
// successful provider resolution overwrites the row in full.
type MovieRepository struct {
	db *sql.DB
}

// NewMovieRepository creates a movie repository backed by the shared pool.
func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

const movieColumns = `external_id, title, year, genre, director, actors, plot, poster_url, rating, runtime, language, country, cached_at`

// FindByID returns the cached record for the given provider id, or nil when
// the id has never been resolved.
func (r *MovieRepository) FindByID(ctx context.Context, externalID string) (*models.MovieRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE external_id = ?`, externalID)
	rec, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find movie by id: %w", err)
	}
	return rec, nil
}

// FindByTitleSubstring returns records whose title contains the query,
// case-insensitively, ordered by rating descending with unrated rows last.
func (r *MovieRepository) FindByTitleSubstring(ctx context.Context, query string) ([]models.MovieRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies
		 WHERE title LIKE '%' || ? || '%' COLLATE NOCASE
		 ORDER BY rating IS NULL ASC, rating DESC, title ASC`, query)
	if err != nil {
		return nil, fmt.Errorf("search movies by title: %w", err)
	}
	defer rows.Close()
	return collectMovies(rows)
}

// Upsert inserts the record or overwrites every field of an existing row with
// the same external id. Last write wins; concurrent resolutions of the same
// id are tolerated. CachedAt is stamped here on every write.
func (r *MovieRepository) Upsert(ctx context.Context, rec *models.MovieRecord) error {
	if rec.ExternalID == "" {
		return errors.New("movie record requires an external id")
	}
	rec.CachedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO movies (`+movieColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id) DO UPDATE SET
		   title = excluded.title,
		   year = excluded.year,
		   genre = excluded.genre,
		   director = excluded.director,
		   actors = excluded.actors,
		   plot = excluded.plot,
		   poster_url = excluded.poster_url,
		   rating = excluded.rating,
		   runtime = excluded.runtime,
		   language = excluded.language,
		   country = excluded.country,
		   cached_at = excluded.cached_at`,
		rec.ExternalID, rec.Title, rec.Year, rec.Genre, rec.Director, rec.Actors,
		rec.Plot, rec.PosterURL, rec.Rating, rec.Runtime, rec.Language, rec.Country,
		rec.CachedAt)
	if err != nil {
		return fmt.Errorf("upsert movie: %w", err)
	}
	return nil
}

// FindTrendingCandidates returns cached records at or above minRating,
// best-rated first with most recently refreshed rows breaking ties.
func (r *MovieRepository) FindTrendingCandidates(ctx context.Context, minRating float64, limit int) ([]models.MovieRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies
		 WHERE rating >= ?
		 ORDER BY rating DESC, cached_at DESC
		 LIMIT ?`, minRating, limit)
	if err != nil {
		return nil, fmt.Errorf("find trending candidates: %w", err)
	}
	defer rows.Close()
	return collectMovies(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (*models.MovieRecord, error) {
	var rec models.MovieRecord
	err := row.Scan(&rec.ExternalID, &rec.Title, &rec.Year, &rec.Genre,
		&rec.Director, &rec.Actors, &rec.Plot, &rec.PosterURL, &rec.Rating,
		&rec.Runtime, &rec.Language, &rec.Country, &rec.CachedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectMovies(rows *sql.Rows) ([]models.MovieRecord, error) {
	var out []models.MovieRecord
	for rows.Next() {
		rec, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movie rows: %w", err)
	}
	return out, nil
}
