// Package matcher ranks catalog search results against a title/artist query.
//
// A candidate earns up to 100 points for its title, up to 100 for its best artist, and a popularity
// bonus of at most 20. Exact normalized equality scores 100 and containment scores 50, so an exact
// title and artist match always outranks substring-only matches regardless of popularity.
package matcher

import (
	"sort"
	"strings"

	"github.com/desertthunder/tunefeed/internal/shared"
)

const (
	ExactPoints     = 100.0
	PartialPoints   = 50.0
	PopularityBonus = 20.0
	MaxScore        = 2*ExactPoints + PopularityBonus
)

// Candidate is a catalog record that can be scored.
type Candidate interface {
	MatchTitle() string
	MatchArtists() []string
	MatchPopularity() int // 0..100
}

// Scored pairs a record with its score.
type Scored[T Candidate] struct {
	Record T
	Score  float64
}

// Query is a normalized title/artist pair. Build it once per search with [NewQuery].
type Query struct {
	Title  string
	Artist string
}

func NewQuery(title, artist string) Query {
	return Query{Title: shared.Normalize(title), Artist: shared.Normalize(artist)}
}

// Score computes the candidate's score against q.
func Score(c Candidate, q Query) float64 {
	score := textPoints(shared.Normalize(c.MatchTitle()), q.Title)

	var artist float64
	for _, name := range c.MatchArtists() {
		artist = max(artist, textPoints(shared.Normalize(name), q.Artist))
		if artist == ExactPoints {
			break
		}
	}
	score += artist

	popularity := min(max(c.MatchPopularity(), 0), 100)
	return score + float64(popularity)*PopularityBonus/100
}

func textPoints(candidate, query string) float64 {
	switch {
	case candidate == query:
		return ExactPoints
	case strings.Contains(candidate, query):
		return PartialPoints
	default:
		return 0
	}
}

// Rank scores every candidate and orders them best first. Equal scores keep their input order.
func Rank[T Candidate](candidates []T, title, artist string) []Scored[T] {
	q := NewQuery(title, artist)

	ranked := make([]Scored[T], len(candidates))
	for i, c := range candidates {
		ranked[i] = Scored[T]{Record: c, Score: Score(c, q)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// BestMatch returns the highest scoring candidate. Ties go to the one returned first.
// It reports false when candidates is empty.
func BestMatch[T Candidate](candidates []T, title, artist string) (Scored[T], bool) {
	if len(candidates) == 0 {
		return Scored[T]{}, false
	}

	q := NewQuery(title, artist)
	best := Scored[T]{Record: candidates[0], Score: Score(candidates[0], q)}
	for _, c := range candidates[1:] {
		if s := Score(c, q); s > best.Score {
			best = Scored[T]{Record: c, Score: s}
		}
	}
	return best, true
}
