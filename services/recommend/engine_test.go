package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"screenscout/models"
	"screenscout/services/metadata"
)

type fakeLLM struct {
	response   string
	err        error
	configured bool
	calls      int
	lastPrompt string
}

func (f *fakeLLM) Complete(_ context.Context, _, user string) (string, error) {
	f.calls++
	f.lastPrompt = user
	return f.response, f.err
}

func (f *fakeLLM) IsConfigured() bool { return f.configured }

type fakeLookup struct {
	byTitle map[string][]models.MovieRecord
}

func (f *fakeLookup) FindByTitleSubstring(_ context.Context, query string) ([]models.MovieRecord, error) {
	for title, recs := range f.byTitle {
		if strings.Contains(strings.ToLower(title), strings.ToLower(query)) {
			return recs, nil
		}
	}
	return nil, nil
}

type fakeResolver struct {
	records map[string]*models.MovieRecord
	err     error
	calls   int
}

func (f *fakeResolver) ResolveByTitle(_ context.Context, title string, _ *int) (*models.MovieRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.records[title]; ok {
		return rec, nil
	}
	return nil, metadata.ErrNotFound
}

func newTestEngine(llm *fakeLLM, lookup *fakeLookup, resolver *fakeResolver) *Engine {
	if lookup == nil {
		lookup = &fakeLookup{}
	}
	if resolver == nil {
		resolver = &fakeResolver{}
	}
	return NewEngine(llm, lookup, resolver, nil)
}

func TestRecommend_RejectsInvalidPrompts(t *testing.T) {
	llm := &fakeLLM{configured: true}
	engine := newTestEngine(llm, nil, nil)

	if _, err := engine.Recommend(context.Background(), "", "u1"); !errors.Is(err, ErrInvalidPrompt) {
		t.Errorf("expected ErrInvalidPrompt for empty prompt, got %v", err)
	}
	if _, err := engine.Recommend(context.Background(), "   \n  ", "u1"); !errors.Is(err, ErrInvalidPrompt) {
		t.Errorf("expected ErrInvalidPrompt for whitespace prompt, got %v", err)
	}
	long := strings.Repeat("x", 501)
	if _, err := engine.Recommend(context.Background(), long, "u1"); !errors.Is(err, ErrInvalidPrompt) {
		t.Errorf("expected ErrInvalidPrompt for oversized prompt, got %v", err)
	}
	if llm.calls != 0 {
		t.Errorf("expected no model call for invalid prompts, got %d", llm.calls)
	}
}

func TestRecommend_StrictJSONPath(t *testing.T) {
	llm := &fakeLLM{configured: true, response: `{
		"explanation": "Tense, cerebral picks.",
		"movies": [
			{"title": "Se7en", "year": 1995, "reason": "Grim procedural."},
			{"title": "Zodiac", "year": "2007", "reason": "Obsessive investigation."}
		]
	}`}
	resolver := &fakeResolver{records: map[string]*models.MovieRecord{
		"Se7en":  {ExternalID: "tt0114369", Title: "Se7en"},
		"Zodiac": {ExternalID: "tt0443706", Title: "Zodiac"},
	}}
	engine := newTestEngine(llm, nil, resolver)

	resp, err := engine.Recommend(context.Background(), "dark thriller", "")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if resp.Explanation != "Tense, cerebral picks." {
		t.Errorf("expected model explanation, got %q", resp.Explanation)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}
	// Model order is preserved, never re-sorted.
	if resp.Items[0].Title != "Se7en" || resp.Items[1].Title != "Zodiac" {
		t.Errorf("model order not preserved: %q, %q", resp.Items[0].Title, resp.Items[1].Title)
	}
	if resp.Items[0].Rationale != "Grim procedural." {
		t.Errorf("expected rationale attached, got %q", resp.Items[0].Rationale)
	}
}

func TestRecommend_FencedJSONStillParses(t *testing.T) {
	llm := &fakeLLM{configured: true, response: "```json\n{\"explanation\":\"ok\",\"movies\":[{\"title\":\"Heat\",\"year\":1995,\"reason\":\"Classic.\"}]}\n```"}
	resolver := &fakeResolver{records: map[string]*models.MovieRecord{
		"Heat": {ExternalID: "tt0113277", Title: "Heat"},
	}}
	engine := newTestEngine(llm, nil, resolver)

	resp, err := engine.Recommend(context.Background(), "crime", "")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].MovieRecord.ExternalID != "tt0113277" {
		t.Fatalf("expected resolved Heat, got %+v", resp.Items)
	}
}

func TestRecommend_FallbackExtractionOnProse(t *testing.T) {
	llm := &fakeLLM{configured: true, response: `Here are some picks: "Inception" (2010), "Arrival" (2016)`}
	resolver := &fakeResolver{records: map[string]*models.MovieRecord{
		"Inception": {ExternalID: "tt1375666", Title: "Inception"},
		"Arrival":   {ExternalID: "tt2543164", Title: "Arrival"},
	}}
	engine := newTestEngine(llm, nil, resolver)

	resp, err := engine.Recommend(context.Background(), "mind benders", "")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items from fallback extraction, got %d", len(resp.Items))
	}
	if resp.Items[0].Title != "Inception" || resp.Items[1].Title != "Arrival" {
		t.Errorf("unexpected titles: %q, %q", resp.Items[0].Title, resp.Items[1].Title)
	}
}

func TestRecommend_MalformedOnlyWhenEverythingFails(t *testing.T) {
	llm := &fakeLLM{configured: true, response: ""}
	engine := newTestEngine(llm, nil, nil)

	_, err := engine.Recommend(context.Background(), "anything", "")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestRecommend_LLMErrorsPropagate(t *testing.T) {
	llm := &fakeLLM{configured: true, err: ErrLLMRateLimited}
	engine := newTestEngine(llm, nil, nil)

	_, err := engine.Recommend(context.Background(), "anything", "")
	if !errors.Is(err, ErrLLMRateLimited) {
		t.Fatalf("expected rate limit error to propagate, got %v", err)
	}
}

func TestReconcile_PrefersBestCachedMatch(t *testing.T) {
	rating := 8.7
	lookup := &fakeLookup{byTitle: map[string][]models.MovieRecord{
		"The Matrix": {
			{ExternalID: "tt0133093", Title: "The Matrix", Rating: &rating},
			{ExternalID: "tt0234215", Title: "The Matrix Reloaded"},
		},
	}}
	resolver := &fakeResolver{}
	llm := &fakeLLM{configured: true, response: `{"explanation":"x","movies":[{"title":"The Matrix","year":1999,"reason":"Seminal."}]}`}
	engine := newTestEngine(llm, lookup, resolver)

	resp, err := engine.Recommend(context.Background(), "cyberpunk", "")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if resp.Items[0].MovieRecord.ExternalID != "tt0133093" {
		t.Errorf("expected highest-rated cached match, got %s", resp.Items[0].MovieRecord.ExternalID)
	}
	if resolver.calls != 0 {
		t.Error("expected no provider resolution when cache matched")
	}
}

func TestReconcile_UnresolvedCandidateBecomesPlaceholder(t *testing.T) {
	// Provider key absent: every resolution fails, but the request must
	// still succeed with placeholder items.
	llm := &fakeLLM{configured: true, response: `{"explanation":"x","movies":[{"title":"Totally Made Up Film","year":2023,"reason":"Invented."}]}`}
	resolver := &fakeResolver{err: metadata.ErrNotConfigured}
	engine := newTestEngine(llm, nil, resolver)

	resp, err := engine.Recommend(context.Background(), "anything", "")
	if err != nil {
		t.Fatalf("expected placeholder degradation, not error: %v", err)
	}
	item := resp.Items[0]
	if !item.Unresolved {
		t.Error("expected item marked unresolved")
	}
	if item.Rationale != "Invented." {
		t.Errorf("expected rationale preserved on placeholder, got %q", item.Rationale)
	}
	if item.Plot == nil || *item.Plot != models.UnavailableSentinel {
		t.Error("expected unavailable sentinel plot")
	}
	if item.Rating != nil {
		t.Error("expected placeholder rating to stay absent")
	}
	if item.ExternalID != "" {
		t.Error("placeholder must not carry a provider id")
	}
}

func TestReconcile_FailuresAreIsolatedPerCandidate(t *testing.T) {
	llm := &fakeLLM{configured: true, response: `{"explanation":"x","movies":[
		{"title":"Ghost Film","reason":"Unknown."},
		{"title":"Heat","year":1995,"reason":"Classic."}
	]}`}
	resolver := &fakeResolver{records: map[string]*models.MovieRecord{
		"Heat": {ExternalID: "tt0113277", Title: "Heat"},
	}}
	engine := newTestEngine(llm, nil, resolver)

	resp, err := engine.Recommend(context.Background(), "crime", "")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected both candidates returned, got %d", len(resp.Items))
	}
	if !resp.Items[0].Unresolved {
		t.Error("expected first candidate degraded to placeholder")
	}
	if resp.Items[1].Unresolved || resp.Items[1].MovieRecord.ExternalID != "tt0113277" {
		t.Error("expected second candidate resolved normally")
	}
}

type recordingHistory struct {
	entries []models.SearchHistoryEntry
}

func (r *recordingHistory) Insert(_ context.Context, entry *models.SearchHistoryEntry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func TestRecommend_LogsHistoryForKnownUser(t *testing.T) {
	llm := &fakeLLM{configured: true, response: `{"explanation":"x","movies":[{"title":"Heat","reason":"y"}]}`}
	history := &recordingHistory{}
	engine := NewEngine(llm, &fakeLookup{}, &fakeResolver{}, history)

	if _, err := engine.Recommend(context.Background(), "crime", "user42"); err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(history.entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(history.entries))
	}
	if history.entries[0].Kind != "recommend" || history.entries[0].UserID != "user42" {
		t.Errorf("unexpected history entry: %+v", history.entries[0])
	}
}
