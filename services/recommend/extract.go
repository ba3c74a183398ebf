package recommend

import (
	"regexp"
	"strconv"
	"strings"
)

// Candidate is one model-suggested title awaiting reconciliation. It is never
// persisted; reconciliation turns it into a full record or a placeholder.
type Candidate struct {
	Title     string
	Year      *int
	Rationale string
}

const (
	maxCandidates = 5
	minTitleLen   = 3
	maxTitleLen   = 99
)

// The model is asked for strict JSON but does not always comply: responses
// show up wrapped in prose, as numbered lists, or as bare lines. Extraction
// is an ordered chain of independent heuristics; the first one that produces
// any candidate wins.
var fallbackExtractors = []struct {
	name string
	fn   func(string) []Candidate
}{
	{"quoted", extractQuoted},
	{"numbered", extractNumbered},
	{"bulleted", extractBulleted},
	{"prefixed", extractPrefixed},
	{"titleYear", extractTitleYear},
}

var (
	quotedRe    = regexp.MustCompile(`"([^"\n]+)"`)
	numberedRe  = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+(.+)$`)
	bulletedRe  = regexp.MustCompile(`(?m)^\s*[-*\x{2022}]\s+(.+)$`)
	prefixedRe  = regexp.MustCompile(`(?mi)^\s*(?:title|movie)\s*:\s*(.+)$`)
	titleYearRe = regexp.MustCompile(`(?m)^\s*([^()\n]+?)\s*\((\d{4})\)`)
	yearSuffix  = regexp.MustCompile(`\s*\((\d{4})\)\s*$`)
)

// extractCandidates runs the heuristic chain over free text and, when every
// heuristic comes up empty, falls back to the first non-empty lines verbatim.
func extractCandidates(text string) []Candidate {
	for _, ex := range fallbackExtractors {
		if got := dedupeCandidates(ex.fn(text)); len(got) > 0 {
			return got
		}
	}
	return dedupeCandidates(extractLines(text))
}

func extractQuoted(text string) []Candidate {
	return candidatesFromMatches(quotedRe.FindAllStringSubmatch(text, -1))
}

func extractNumbered(text string) []Candidate {
	return candidatesFromMatches(numberedRe.FindAllStringSubmatch(text, -1))
}

func extractBulleted(text string) []Candidate {
	return candidatesFromMatches(bulletedRe.FindAllStringSubmatch(text, -1))
}

func extractPrefixed(text string) []Candidate {
	return candidatesFromMatches(prefixedRe.FindAllStringSubmatch(text, -1))
}

func extractTitleYear(text string) []Candidate {
	var out []Candidate
	for _, m := range titleYearRe.FindAllStringSubmatch(text, -1) {
		cand, ok := cleanCandidate(m[1])
		if !ok {
			continue
		}
		if y, err := strconv.Atoi(m[2]); err == nil {
			cand.Year = &y
		}
		out = append(out, cand)
	}
	return out
}

// extractLines is the last resort: the first non-empty lines taken verbatim.
func extractLines(text string) []Candidate {
	var out []Candidate
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, Candidate{Title: line})
		if len(out) == maxCandidates {
			break
		}
	}
	return out
}

func candidatesFromMatches(matches [][]string) []Candidate {
	var out []Candidate
	for _, m := range matches {
		if cand, ok := cleanCandidate(m[1]); ok {
			out = append(out, cand)
		}
	}
	return out
}

// cleanCandidate trims markup and trailing year annotations, keeping only
// length-plausible titles. A stripped "(1999)" suffix becomes the year hint.
func cleanCandidate(raw string) (Candidate, bool) {
	title := strings.TrimSpace(raw)
	title = strings.TrimRight(title, ",.;:")
	title = strings.Trim(title, `"“”`)
	title = strings.TrimPrefix(title, "**")
	title = strings.TrimSuffix(title, "**")
	title = strings.TrimSpace(title)

	var year *int
	if m := yearSuffix.FindStringSubmatch(title); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			year = &y
		}
		title = strings.TrimSpace(yearSuffix.ReplaceAllString(title, ""))
	}
	title = strings.TrimRight(title, ",.;:")
	title = strings.TrimSpace(title)

	if len(title) < minTitleLen || len(title) > maxTitleLen {
		return Candidate{}, false
	}
	return Candidate{Title: title, Year: year}, true
}

// dedupeCandidates keeps the first occurrence of each title (case-folded)
// and caps the list. Order is preserved: it is the model's implicit ranking.
func dedupeCandidates(cands []Candidate) []Candidate {
	seen := make(map[string]bool, len(cands))
	var out []Candidate
	for _, c := range cands {
		key := strings.ToLower(strings.TrimSpace(c.Title))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == maxCandidates {
			break
		}
	}
	return out
}
