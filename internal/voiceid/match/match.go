// Package match identifies which enrolled speaker most likely produced a new
// utterance.
//
// Each enrolled [voiceid.Profile] receives a composite score in [0, 1]:
//
//	score = wText*textSimilarity + wConf*avgConfidence + wTime*timeScore
//
// with default weights 0.5, 0.3 and 0.2.
//
//   - textSimilarity is the fraction of query words that have a similar word
//     anywhere in the profile transcript, divided by the larger word count of
//     the two. Matching is existential per query word: one profile word may
//     satisfy several query words, so a query that repeats a single enrolled
//     word scores as if every word were distinct.
//   - avgConfidence is the mean of the query and enrolment confidences.
//   - timeScore decays linearly from 1 at enrolment to 0 after the decay
//     window (30 days by default).
//
// The profile with the strictly highest score wins; on a tie the profile that
// comes first in the supplied order is kept. The winner is only reported when
// its score exceeds the decision threshold (default 0.6).
package match

import (
	"cmp"
	"slices"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/voiceid/internal/textnorm"
	"github.com/MrWong99/voiceid/internal/voiceid"
)

const (
	// DefaultDecisionThreshold is the score a candidate must exceed.
	DefaultDecisionThreshold = 0.6

	// DefaultQualityFloor is the lowest query confidence that is scored at all.
	DefaultQualityFloor = 0.3

	// DefaultDecayWindow is how long it takes the time score to reach zero.
	DefaultDecayWindow = 30 * 24 * time.Hour

	// maxWordEdits bounds both the length difference and the edit distance
	// of two similar words.
	maxWordEdits = 2
)

// Weights are the blend factors of the composite score.
type Weights struct {
	Text       float64
	Confidence float64
	Recency    float64
}

// DefaultWeights is the 0.5 / 0.3 / 0.2 blend.
var DefaultWeights = Weights{Text: 0.5, Confidence: 0.3, Recency: 0.2}

// Query is an utterance to identify.
type Query struct {
	// Transcript is the raw recognised text.
	Transcript string

	// Confidence is the recogniser's confidence in [0, 1].
	Confidence float64
}

// Result is the outcome of [Matcher.Identify]. The zero value is [Unknown].
type Result struct {
	// SpeakerID is the identified speaker. Empty when not identified.
	SpeakerID string

	// Score is the winning composite score. Zero when not identified.
	Score float64

	// Identified reports whether a speaker cleared the decision threshold.
	Identified bool
}

// Unknown is the result when no enrolled speaker could be identified.
var Unknown = Result{}

// Breakdown is the score of one profile with its components.
type Breakdown struct {
	SpeakerID      string
	TextSimilarity float64
	AvgConfidence  float64
	TimeScore      float64
	Score          float64
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithDecisionThreshold sets the score a candidate must exceed to be
// identified. Default: 0.6.
func WithDecisionThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithQualityFloor sets the minimum query confidence. Queries below it are
// answered with [Unknown] without scoring. Default: 0.3.
func WithQualityFloor(floor float64) Option {
	return func(m *Matcher) {
		m.floor = floor
	}
}

// WithWeights overrides the score blend.
func WithWeights(w Weights) Option {
	return func(m *Matcher) {
		m.weights = w
	}
}

// WithDecayWindow sets how long an enrolment keeps contributing to the time
// score. Non-positive values are ignored. Default: 30 days.
func WithDecayWindow(d time.Duration) Option {
	return func(m *Matcher) {
		if d > 0 {
			m.decay = d
		}
	}
}

// WithClock sets the time source used for the time score. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

// Matcher scores utterances against enrolled profiles. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	threshold float64
	floor     float64
	weights   Weights
	decay     time.Duration
	now       func() time.Time
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		threshold: DefaultDecisionThreshold,
		floor:     DefaultQualityFloor,
		weights:   DefaultWeights,
		decay:     DefaultDecayWindow,
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// DecisionThreshold returns the configured decision threshold.
func (m *Matcher) DecisionThreshold() float64 { return m.threshold }

// QualityFloor returns the configured minimum query confidence.
func (m *Matcher) QualityFloor() float64 { return m.floor }

// Identify returns the best-scoring profile for q when its score exceeds the
// decision threshold, and [Unknown] otherwise. An empty profile set or a
// query below the quality floor is always [Unknown].
func (m *Matcher) Identify(q Query, profiles []voiceid.Profile) Result {
	if !(q.Confidence >= m.floor) || len(profiles) == 0 {
		return Unknown
	}

	now := m.now()
	best := -1
	bestScore := 0.0
	for i, p := range profiles {
		s := m.score(q, p, now).Score
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}

	if bestScore <= m.threshold {
		return Unknown
	}
	return Result{SpeakerID: profiles[best].SpeakerID, Score: bestScore, Identified: true}
}

// Score computes the composite score of q against a single profile. The
// quality floor is not applied.
func (m *Matcher) Score(q Query, p voiceid.Profile) Breakdown {
	return m.score(q, p, m.now())
}

// Rank scores q against every profile and returns the breakdowns ordered by
// descending score. Equal scores keep their input order.
func (m *Matcher) Rank(q Query, profiles []voiceid.Profile) []Breakdown {
	now := m.now()
	out := make([]Breakdown, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, m.score(q, p, now))
	}
	slices.SortStableFunc(out, func(a, b Breakdown) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

func (m *Matcher) score(q Query, p voiceid.Profile, now time.Time) Breakdown {
	b := Breakdown{
		SpeakerID:      p.SpeakerID,
		TextSimilarity: TextSimilarity(q.Transcript, p.Transcript),
		AvgConfidence:  (q.Confidence + p.Confidence) / 2,
		TimeScore:      m.timeScore(p.EnrolledAt, now),
	}
	b.Score = m.weights.Text*b.TextSimilarity +
		m.weights.Confidence*b.AvgConfidence +
		m.weights.Recency*b.TimeScore
	return b
}

// timeScore decays linearly from 1 to 0 over the decay window. Enrolment
// times in the future count as fresh.
func (m *Matcher) timeScore(enrolledAt, now time.Time) float64 {
	age := now.Sub(enrolledAt)
	return min(1, max(0, 1-float64(age)/float64(m.decay)))
}

// TextSimilarity returns the fraction of query words that have a similar
// counterpart among the reference words, relative to the larger of the two
// word counts. Both texts are normalised first. Two blank texts score 0.
func TextSimilarity(query, reference string) float64 {
	qw := textnorm.Words(query)
	rw := textnorm.Words(reference)

	denom := max(len(qw), len(rw))
	if denom == 0 {
		return 0
	}

	matches := 0
	for _, w := range qw {
		if slices.ContainsFunc(rw, func(r string) bool { return WordsSimilar(w, r) }) {
			matches++
		}
	}
	return float64(matches) / float64(denom)
}

// WordsSimilar reports whether a and b are identical, or differ in length by
// at most two characters and are at most two edits apart.
func WordsSimilar(a, b string) bool {
	if a == b {
		return true
	}
	la, lb := len([]rune(a)), len([]rune(b))
	if abs(la-lb) > maxWordEdits {
		return false
	}
	return Distance(a, b) <= maxWordEdits
}

// Distance is the Levenshtein edit distance between a and b, counted in
// characters with unit cost for insertion, deletion and substitution.
func Distance(a, b string) int {
	return matchr.Levenshtein(a, b)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
