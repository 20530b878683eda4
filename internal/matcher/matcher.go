package matcher

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/desertthunder/adder/internal/models"
	"github.com/gosimple/unidecode"
)

// DefaultThreshold accepts fairly loose matches, which suits hand-typed tracklists.
const DefaultThreshold = 0.8

// Scorer returns the distance between a query and a candidate's composite text.
// Implementations must return values in [0,1] with 0 meaning identical.
type Scorer func(query, composite string) float64

// Result is the outcome of matching one query against a candidate list.
//
// Index is the position of Candidate in the input slice, or -1 when there were no candidates.
type Result struct {
	Matched   bool
	Candidate models.CandidateTrack
	Score     float64
	Index     int
}

// Scored pairs a candidate with its score.
type Scored struct {
	Candidate models.CandidateTrack
	Score     float64
	Index     int
}

// Matcher scores candidates with a [Scorer] and accepts the best one under a threshold.
type Matcher struct {
	threshold float64
	scorer    Scorer
}

// Option configures a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the acceptance threshold. Values outside [0,1] are clamped.
func WithThreshold(t float64) Option {
	return func(m *Matcher) { m.threshold = clamp(t) }
}

// WithScorer replaces the default Levenshtein scorer.
func WithScorer(s Scorer) Option {
	return func(m *Matcher) {
		if s != nil {
			m.scorer = s
		}
	}
}

// New creates a [Matcher] using [DefaultThreshold] and [Score] unless overridden.
func New(opts ...Option) *Matcher {
	m := &Matcher{threshold: DefaultThreshold, scorer: Score}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the acceptance threshold in use.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match returns the lowest scoring candidate.
//
// Ties keep the earliest candidate. An empty candidate list never matches.
func (m *Matcher) Match(query string, candidates []models.CandidateTrack) Result {
	return m.Best(m.Rank(query, candidates))
}

// Rank scores every candidate and returns them best first. Equal scores keep input order.
func (m *Matcher) Rank(query string, candidates []models.CandidateTrack) []Scored {
	ranked := make([]Scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = Scored{Candidate: c, Score: clamp(m.scorer(query, c.Composite())), Index: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score < ranked[j].Score })
	return ranked
}

// Best turns the head of a [Matcher.Rank] result into a [Result] without rescoring.
func (m *Matcher) Best(ranked []Scored) Result {
	if len(ranked) == 0 {
		return Result{Score: 1, Index: -1}
	}

	top := ranked[0]
	return Result{
		Matched:   top.Score <= m.threshold,
		Candidate: top.Candidate,
		Score:     top.Score,
		Index:     top.Index,
	}
}

// Match is shorthand for New(WithThreshold(threshold)).Match(query, candidates).
func Match(query string, candidates []models.CandidateTrack, threshold float64) Result {
	return New(WithThreshold(threshold)).Match(query, candidates)
}

// Score is the default [Scorer].
func Score(query, composite string) float64 {
	a, b := Normalize(query), Normalize(composite)
	if a == b {
		return 0
	}

	plain := distance(a, b)
	sorted := distance(sortTokens(a), sortTokens(b))
	if sorted < plain {
		return sorted
	}
	return plain
}

// Normalize transliterates s to ASCII, lower-cases it, turns punctuation into spaces and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(unidecode.Unidecode(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// distance is the Levenshtein distance divided by the longer string's rune count.
func distance(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
