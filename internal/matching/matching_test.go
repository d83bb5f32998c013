package matching

import (
	"reflect"
	"testing"

	"github.com/desertthunder/maestro/internal/models"
	"github.com/desertthunder/maestro/internal/shared"
)

// plainVocab has no entries so tests can isolate the token rules.
var plainVocab = Vocabulary{}

func TestTokenize(t *testing.T) {
	tc := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "drops short tokens", query: "Brahms op 78 in G", want: []string{"brahms"}},
		{name: "lowercases and dedupes", query: "Sonata sonata SONATA Perlman", want: []string{"sonata", "perlman"}},
		{name: "collapses whitespace", query: "  violin\tsonata \n", want: []string{"violin", "sonata"}},
		{name: "empty", query: "", want: nil},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tokenize(tt.query); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	t.Run("token weights", func(t *testing.T) {
		s := NewScorer(plainVocab, DefaultWeights(), 0)
		r := models.SearchResult{Title: "Violin Sonata", ArtistName: "Itzhak Perlman", AlbumName: "Brahms Sonatas"}

		tc := []struct {
			query string
			want  int
		}{
			{query: "violin", want: 25},
			{query: "perlman", want: 10},
			{query: "brahms", want: 10},
			{query: "violin perlman brahms", want: 45},
			{query: "violin violin", want: 25},
			{query: "cello", want: 0},
			{query: "VIOLIN", want: 25},
		}
		for _, tt := range tc {
			if got := s.Score(r, tt.query); got != tt.want {
				t.Errorf("Score(%q) = %d, want %d", tt.query, got, tt.want)
			}
		}
	})

	t.Run("form terms count per term present", func(t *testing.T) {
		s := NewScorer(Vocabulary{FormTerms: []string{"sonata", "minor", "no."}}, DefaultWeights(), 0)

		got := s.Score(models.SearchResult{Title: "Sonata No. 2 in B-flat Minor"}, "")
		if got != 15 {
			t.Errorf("expected three form terms worth 15, got %d", got)
		}

		got = s.Score(models.SearchResult{Title: "Prelude", AlbumName: "Sonatas"}, "")
		if got != 0 {
			t.Errorf("form terms only count in the title, got %d", got)
		}
	})

	t.Run("performer adds exactly the bonus", func(t *testing.T) {
		s := NewScorer(DefaultVocabulary(), DefaultWeights(), 0)
		query := "brahms violin sonata"

		without := models.SearchResult{Title: "Brahms: Violin Sonata No. 1", ArtistName: "Someone"}
		with := without
		with.Title = "Brahms: Violin Sonata No. 1 (Perlman)"

		diff := s.Score(with, query) - s.Score(without, query)
		if diff != DefaultWeights().Performer {
			t.Errorf("expected performer bonus %d, got %d", DefaultWeights().Performer, diff)
		}
	})

	t.Run("every default performer adds exactly the bonus", func(t *testing.T) {
		s := NewScorer(DefaultVocabulary(), DefaultWeights(), 0)
		query := "beethoven"
		without := models.SearchResult{Title: "Beethoven: Op. 131", ArtistName: "Someone"}
		base := s.Score(without, query)

		for _, name := range DefaultVocabulary().Performers {
			with := without
			with.Title = without.Title + " (" + name + ")"

			if diff := s.Score(with, query) - base; diff != DefaultWeights().Performer {
				t.Errorf("%q: expected performer bonus %d, got %d", name, DefaultWeights().Performer, diff)
			}
		}
	})

	t.Run("form term inside a performer name is not counted", func(t *testing.T) {
		s := NewScorer(DefaultVocabulary(), DefaultWeights(), 0)

		got := s.Score(models.SearchResult{Title: "Op. 131 (Emerson String Quartet)"}, "")
		if got != 25 {
			t.Errorf("expected op. plus performer worth 25, got %d", got)
		}

		got = s.Score(models.SearchResult{Title: "String Quartet No. 14 (Emerson String Quartet)"}, "")
		if got != 30 {
			t.Errorf("expected quartet, no. and performer worth 30, got %d", got)
		}
	})

	t.Run("instructional penalty applies once", func(t *testing.T) {
		s := NewScorer(DefaultVocabulary(), DefaultWeights(), 0)

		got := s.Score(models.SearchResult{Title: "Lesson: How to play the piano"}, "")
		if got != -30 {
			t.Errorf("expected single -30 penalty, got %d", got)
		}
	})

	t.Run("monotonic in matching title tokens", func(t *testing.T) {
		s := NewScorer(DefaultVocabulary(), DefaultWeights(), 0)
		r := models.SearchResult{Title: "Cello Suite Prelude", ArtistName: "Rostropovich"}

		prev := s.Score(r, "")
		for _, q := range []string{"cello", "cello suite", "cello suite prelude"} {
			got := s.Score(r, q)
			if got < prev {
				t.Errorf("score dropped from %d to %d at %q", prev, got, q)
			}
			prev = got
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		s := NewScorer(DefaultVocabulary(), DefaultWeights(), 0)
		r := models.SearchResult{Title: "Symphony No. 9 in D Minor", ArtistName: "Berliner Philharmoniker", AlbumName: "Beethoven"}
		if a, b := s.Score(r, "beethoven ninth symphony"), s.Score(r, "beethoven ninth symphony"); a != b {
			t.Errorf("expected equal scores, got %d and %d", a, b)
		}
	})
}

func TestRank(t *testing.T) {
	s := NewScorer(DefaultVocabulary(), DefaultWeights(), 0)

	results := []models.SearchResult{
		{URI: "a", Title: "Piano Lesson: Moonlight"},
		{URI: "b", Title: "Moonlight"},
		{URI: "c", Title: "Moonlight"},
		{URI: "d", Title: "Piano Sonata No. 14 Moonlight"},
	}

	ranked := s.Rank(results, "moonlight sonata")
	var order []string
	for _, r := range ranked {
		order = append(order, r.URI)
	}

	if want := []string{"d", "b", "c", "a"}; !reflect.DeepEqual(order, want) {
		t.Errorf("Rank() order = %v, want %v", order, want)
	}

	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score > ranked[i-1].Score {
			t.Errorf("rank not descending at %d", i)
		}
	}
}

func TestLowConfidence(t *testing.T) {
	s := NewScorer(DefaultVocabulary(), DefaultWeights(), 0)

	if !s.LowConfidence(models.ScoredResult{Score: 29}) {
		t.Error("29 should be low confidence")
	}
	if s.LowConfidence(models.ScoredResult{Score: 30}) {
		t.Error("30 should not be low confidence")
	}

	custom := NewScorer(DefaultVocabulary(), DefaultWeights(), 50)
	if !custom.LowConfidence(models.ScoredResult{Score: 45}) {
		t.Error("custom threshold should apply")
	}
}

func TestVocabularyFromConfig(t *testing.T) {
	v := VocabularyFromConfig(shared.ScoringConfig{Performers: []string{"Coltrane"}})

	if !reflect.DeepEqual(v.Performers, []string{"Coltrane"}) {
		t.Errorf("expected configured performers, got %v", v.Performers)
	}
	if !reflect.DeepEqual(v.FormTerms, DefaultVocabulary().FormTerms) {
		t.Error("empty tables should fall back to defaults")
	}

	s := NewScorer(v, DefaultWeights(), 0)
	if got := s.Score(models.SearchResult{Title: "Giant Steps - John Coltrane"}, ""); got != 20 {
		t.Errorf("configured performer should be matched case-insensitively, got %d", got)
	}
}
