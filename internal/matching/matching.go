// Package matching ranks catalog search hits against a free-text request.
//
// Scoring is a pure function of one result, the query, and a [Vocabulary]:
//
//   - every distinct query token of three or more characters found anywhere in the
//     title, artist, or album text earns [Weights.Haystack]; found in the title it earns [Weights.Title] on top
//   - every form term (symphony, sonata, op., ...) present in the title outside a performer name earns [Weights.Form]
//   - every known performer present in the title earns [Weights.Performer]
//   - a title carrying any instructional marker (tutorial, lesson, ...) loses [Weights.Instructional] once
//
// [Scorer.Rank] orders by descending score and keeps provider order among ties.
package matching

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/shared"
)

const (
	minTokenLen          = 3
	defaultLowConfidence = 30
)

// Vocabulary holds the term tables that shape scoring. Entries are matched case-insensitively.
type Vocabulary struct {
	FormTerms     []string
	Performers    []string
	Instructional []string
}

// DefaultVocabulary returns the built-in tables.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		FormTerms: []string{
			"symphony", "sonata", "concerto", "quartet", "opus", "op.", "no.",
			"major", "minor", "orchestra", "philharmonic", "chamber",
		},
		Performers: []string{
			"perlman", "argerich", "zimerman", "pollini", "barenboim", "karajan",
			"bernstein", "abbado", "rattle", "gould", "richter", "oistrakh", "heifetz",
			"mutter", "rostropovich", "kremer", "ashkenazy", "berliner philharmoniker",
			"wiener philharmoniker", "emerson string quartet",
		},
		Instructional: []string{"tutorial", "lesson", "how to", "learn"},
	}
}

// VocabularyFromConfig uses the configured tables, falling back to the defaults for any that are empty.
func VocabularyFromConfig(cfg shared.ScoringConfig) Vocabulary {
	v := DefaultVocabulary()
	if len(cfg.FormTerms) > 0 {
		v.FormTerms = cfg.FormTerms
	}
	if len(cfg.Performers) > 0 {
		v.Performers = cfg.Performers
	}
	if len(cfg.Instructional) > 0 {
		v.Instructional = cfg.Instructional
	}
	return v
}

// Weights are the score contributions.
type Weights struct {
	Haystack      int
	Title         int
	Form          int
	Performer     int
	Instructional int
}

// DefaultWeights returns the standard weights.
func DefaultWeights() Weights {
	return Weights{Haystack: 10, Title: 15, Form: 5, Performer: 20, Instructional: 30}
}

// Scorer scores and ranks search results.
type Scorer struct {
	vocab         Vocabulary
	weights       Weights
	lowConfidence int
}

// NewScorer creates a [Scorer]. A non-positive lowConfidence uses the default threshold.
func NewScorer(vocab Vocabulary, weights Weights, lowConfidence int) *Scorer {
	if lowConfidence <= 0 {
		lowConfidence = defaultLowConfidence
	}
	return &Scorer{
		vocab:         lowerAll(vocab),
		weights:       weights,
		lowConfidence: lowConfidence,
	}
}

// Score returns the relevance of r for query.
func (s *Scorer) Score(r models.SearchResult, query string) int {
	title := strings.ToLower(r.Title)
	haystack := strings.ToLower(r.Title + " " + r.ArtistName + " " + r.AlbumName)

	score := 0
	for _, tok := range Tokenize(query) {
		if !strings.Contains(haystack, tok) {
			continue
		}
		score += s.weights.Haystack
		if strings.Contains(title, tok) {
			score += s.weights.Title
		}
	}

	// form terms inside a performer name ("emerson string quartet") are not counted
	rest := title
	for _, name := range s.vocab.Performers {
		if strings.Contains(title, name) {
			score += s.weights.Performer
			rest = strings.ReplaceAll(rest, name, " ")
		}
	}

	for _, term := range s.vocab.FormTerms {
		if strings.Contains(rest, term) {
			score += s.weights.Form
		}
	}

	for _, marker := range s.vocab.Instructional {
		if strings.Contains(title, marker) {
			score -= s.weights.Instructional
			break
		}
	}

	return score
}

// Rank scores every result and sorts by descending score. Ties keep their input order.
func (s *Scorer) Rank(results []models.SearchResult, query string) []models.ScoredResult {
	scored := make([]models.ScoredResult, len(results))
	for i, r := range results {
		scored[i] = models.ScoredResult{SearchResult: r, Score: s.Score(r, query)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// LowConfidence reports whether the top score is below the warning threshold.
func (s *Scorer) LowConfidence(top models.ScoredResult) bool {
	return top.Score < s.lowConfidence
}

// Tokenize splits query on whitespace, lowercases, drops tokens shorter than three characters, and removes duplicates.
func Tokenize(query string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(f) < minTokenLen || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

func lowerAll(v Vocabulary) Vocabulary {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return Vocabulary{
		FormTerms:     lower(v.FormTerms),
		Performers:    lower(v.Performers),
		Instructional: lower(v.Instructional),
	}
}
