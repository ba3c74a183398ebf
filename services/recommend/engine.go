package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"

	"screenscout/models"
	"screenscout/services/metadata"
)

const maxPromptLength = 500

const systemInstruction = `You are a movie recommendation engine. Given a user's free-text request, recommend exactly 5 movies that best match it.

Respond with ONLY strict JSON of this exact shape, no other text:
{"explanation": "one short paragraph on why these fit", "movies": [{"title": "exact official title", "year": 2010, "reason": "one sentence on why this movie fits"}]}

The movies array must contain exactly 5 entries ordered from best match to weakest.`

var (
	// ErrInvalidPrompt rejects empty or oversized prompts before any
	// provider call.
	ErrInvalidPrompt = errors.New("recommend: prompt must be 1-500 characters")
	// ErrMalformedResponse means strict parsing and every fallback
	// heuristic produced zero candidates. Surfaced distinctly so model
	// compliance drift is visible to operators.
	ErrMalformedResponse = errors.New("recommend: unparseable language model response")
)

// LLMClient is the language model the engine consults once per request.
type LLMClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
	IsConfigured() bool
}

// MovieLookup is the cache slice used to reconcile candidates locally.
type MovieLookup interface {
	FindByTitleSubstring(ctx context.Context, query string) ([]models.MovieRecord, error)
}

// Resolver fetches and stores a verified record for a loose title/year pair.
type Resolver interface {
	ResolveByTitle(ctx context.Context, title string, year *int) (*models.MovieRecord, error)
}

// HistoryStore receives best-effort audit rows for user prompts.
type HistoryStore interface {
	Insert(ctx context.Context, entry *models.SearchHistoryEntry) error
}

// Engine turns a free-text prompt into resolved movie records: one model
// call, defensive parsing, then per-candidate reconciliation against the
// cache and the metadata provider.
type Engine struct {
	llm      LLMClient
	movies   MovieLookup
	resolver Resolver
	history  HistoryStore
}

// NewEngine wires the engine's collaborators. history may be nil.
func NewEngine(llm LLMClient, movies MovieLookup, resolver Resolver, history HistoryStore) *Engine {
	return &Engine{llm: llm, movies: movies, resolver: resolver, history: history}
}

// aiMovie is one entry of the model's (hopefully) strict JSON reply.
type aiMovie struct {
	Title  string   `json:"title"`
	Year   flexYear `json:"year"`
	Reason string   `json:"reason"`
}

type aiReply struct {
	Explanation string    `json:"explanation"`
	Movies      []aiMovie `json:"movies"`
}

// flexYear tolerates the year arriving as a number, a string, or null.
type flexYear struct {
	value *int
}

func (y *flexYear) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `" `)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Tolerated: a bad year only weakens the provider search hint.
		return nil
	}
	y.value = &n
	return nil
}

// Recommend runs the full pipeline. userID is used only for best-effort
// history logging and never influences the result.
func (e *Engine) Recommend(ctx context.Context, prompt, userID string) (*models.RecommendationResponse, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" || len(prompt) > maxPromptLength {
		return nil, ErrInvalidPrompt
	}

	if e.history != nil && userID != "" {
		entry := &models.SearchHistoryEntry{UserID: userID, Query: prompt, Kind: "recommend"}
		if err := e.history.Insert(ctx, entry); err != nil {
			log.Printf("[recommend] history write failed: %v", err)
		}
	}

	text, err := e.llm.Complete(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	explanation, candidates := parseReply(text)
	if len(candidates) == 0 {
		return nil, ErrMalformedResponse
	}

	items := make([]models.RecommendedMovie, 0, len(candidates))
	for _, cand := range candidates {
		// Model order is the model's ranking; reconciliation never
		// re-sorts, and one candidate's failure never aborts the rest.
		items = append(items, e.reconcile(ctx, cand))
	}

	return &models.RecommendationResponse{Explanation: explanation, Items: items}, nil
}

// parseReply attempts the strict JSON contract first and degrades through
// the extractor chain when the model did not comply.
func parseReply(text string) (string, []Candidate) {
	cleaned := stripFences(text)

	var reply aiReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err == nil && len(reply.Movies) > 0 {
		cands := make([]Candidate, 0, len(reply.Movies))
		for _, m := range reply.Movies {
			title := strings.TrimSpace(m.Title)
			if title == "" {
				continue
			}
			cands = append(cands, Candidate{Title: title, Year: m.Year.value, Rationale: strings.TrimSpace(m.Reason)})
		}
		if cands = dedupeCandidates(cands); len(cands) > 0 {
			return strings.TrimSpace(reply.Explanation), cands
		}
	}

	return "", extractCandidates(text)
}

// stripFences removes a markdown code fence the model sometimes wraps its
// JSON in.
func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// reconcile maps one candidate to a full record: best cached substring match
// first, then a provider fetch-and-store, then a non-persisted placeholder.
func (e *Engine) reconcile(ctx context.Context, cand Candidate) models.RecommendedMovie {
	if matches, err := e.movies.FindByTitleSubstring(ctx, cand.Title); err != nil {
		log.Printf("[recommend] cache lookup for %q failed: %v", cand.Title, err)
	} else if len(matches) > 0 {
		// Results arrive rating-descending; the first is the best match.
		return models.RecommendedMovie{MovieRecord: matches[0], Rationale: cand.Rationale}
	}

	if rec, err := e.resolver.ResolveByTitle(ctx, cand.Title, cand.Year); err == nil {
		return models.RecommendedMovie{MovieRecord: *rec, Rationale: cand.Rationale}
	} else if !errors.Is(err, metadata.ErrNotFound) {
		log.Printf("[recommend] resolve %q failed: %v", cand.Title, err)
	}

	return models.RecommendedMovie{
		MovieRecord: models.PlaceholderRecord(cand.Title, cand.Year),
		Rationale:   cand.Rationale,
		Unresolved:  true,
	}
}
