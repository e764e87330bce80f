package match_test

import (
	"math"
	"testing"
	"time"

	"github.com/MrWong99/voiceid/internal/voiceid"
	"github.com/MrWong99/voiceid/internal/voiceid/match"
)

const eps = 1e-9

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// enrolled builds a store whose clock is shifted by age and enrolls the given
// samples in order.
func enrolled(t *testing.T, age time.Duration, samples ...sample) []voiceid.Profile {
	t.Helper()
	s := voiceid.NewStore(voiceid.WithClock(func() time.Time { return now.Add(-age) }))
	for _, smp := range samples {
		if _, err := s.Enroll(smp.id, smp.text, smp.conf); err != nil {
			t.Fatalf("Enroll(%s): %v", smp.id, err)
		}
	}
	return s.List()
}

type sample struct {
	id   string
	text string
	conf float64
}

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestIdentify_ExactMatchFreshProfile(t *testing.T) {
	t.Parallel()

	m := match.New(match.WithClock(clock))
	profiles := enrolled(t, 0, sample{"sara", "مرحبا", 0.9})

	res := m.Identify(match.Query{Transcript: "مرحبا", Confidence: 0.9}, profiles)
	if !res.Identified || res.SpeakerID != "sara" {
		t.Fatalf("Identify = %+v, want sara", res)
	}
	if want := 0.5*1.0 + 0.3*0.9 + 0.2*1.0; !approx(res.Score, want) {
		t.Errorf("Score = %v, want %v", res.Score, want)
	}
}

func TestIdentify_TextOutweighsStoredConfidence(t *testing.T) {
	t.Parallel()

	m := match.New(match.WithClock(clock))
	profiles := enrolled(t, 0,
		sample{"ghaith", "مرحبا", 0.5},
		sample{"sara", "اهلا", 0.9},
	)

	ranked := m.Rank(match.Query{Transcript: "مرحبا", Confidence: 0.8}, profiles)
	if ranked[0].SpeakerID != "ghaith" || ranked[0].TextSimilarity != 1 {
		t.Errorf("top breakdown = %+v, want ghaith with text similarity 1", ranked[0])
	}
	if ranked[1].TextSimilarity != 0 {
		t.Errorf("sara text similarity = %v, want 0", ranked[1].TextSimilarity)
	}

	res := m.Identify(match.Query{Transcript: "مرحبا", Confidence: 0.8}, profiles)
	if !res.Identified || res.SpeakerID != "ghaith" {
		t.Fatalf("Identify = %+v, want ghaith", res)
	}
}

func TestIdentify_StaleProfileStillMatchesOnText(t *testing.T) {
	t.Parallel()

	m := match.New(match.WithClock(clock))
	profiles := enrolled(t, 31*24*time.Hour, sample{"sara", "كتاب", 0.9})

	q := match.Query{Transcript: "كتاب", Confidence: 0.9}
	b := m.Score(q, profiles[0])
	if b.TimeScore != 0 {
		t.Errorf("TimeScore = %v, want 0 after 31 days", b.TimeScore)
	}

	res := m.Identify(q, profiles)
	if !res.Identified || res.SpeakerID != "sara" {
		t.Fatalf("Identify = %+v, want sara", res)
	}
	if !approx(res.Score, 0.77) {
		t.Errorf("Score = %v, want 0.77", res.Score)
	}
}

func TestIdentify_StaleProfileDifferentText(t *testing.T) {
	t.Parallel()

	m := match.New(match.WithClock(clock))
	profiles := enrolled(t, 40*24*time.Hour, sample{"sara", "كتاب", 0.9})

	q := match.Query{Transcript: "سيارة حمراء", Confidence: 0.9}
	if b := m.Score(q, profiles[0]); !approx(b.Score, 0.27) {
		t.Errorf("Score = %v, want 0.27", b.Score)
	}
	if res := m.Identify(q, profiles); res != match.Unknown {
		t.Errorf("Identify = %+v, want Unknown", res)
	}
}

func TestIdentify_EmptyProfileSet(t *testing.T) {
	t.Parallel()

	m := match.New()
	for _, q := range []match.Query{
		{Transcript: "مرحبا", Confidence: 1},
		{Transcript: "", Confidence: 0.5},
	} {
		if res := m.Identify(q, nil); res != match.Unknown {
			t.Errorf("Identify(%+v, nil) = %+v, want Unknown", q, res)
		}
	}
}

func TestIdentify_BelowQualityFloor(t *testing.T) {
	t.Parallel()

	m := match.New(match.WithClock(clock))
	profiles := enrolled(t, 0, sample{"sara", "مرحبا", 1})

	for _, c := range []float64{0.29, 0.1, 0, math.NaN()} {
		if res := m.Identify(match.Query{Transcript: "مرحبا", Confidence: c}, profiles); res != match.Unknown {
			t.Errorf("Identify(confidence=%v) = %+v, want Unknown", c, res)
		}
	}
}

func TestIdentify_TieKeepsFirstProfile(t *testing.T) {
	t.Parallel()

	m := match.New(match.WithClock(clock))
	profiles := enrolled(t, 0,
		sample{"ghaith", "مرحبا", 0.8},
		sample{"sara", "مرحبا", 0.8},
	)

	res := m.Identify(match.Query{Transcript: "مرحبا", Confidence: 0.8}, profiles)
	if res.SpeakerID != "ghaith" {
		t.Errorf("tie winner = %q, want first enrolled %q", res.SpeakerID, "ghaith")
	}

	reversed := []voiceid.Profile{profiles[1], profiles[0]}
	res = m.Identify(match.Query{Transcript: "مرحبا", Confidence: 0.8}, reversed)
	if res.SpeakerID != "sara" {
		t.Errorf("tie winner = %q, want first in order %q", res.SpeakerID, "sara")
	}
}

func TestIdentify_ThresholdIsExclusive(t *testing.T) {
	t.Parallel()

	// Text 0, confidence 1, fresh: 0.3 + 0.2 = 0.5 with default weights.
	profiles := enrolled(t, 0, sample{"sara", "كتاب", 1})
	q := match.Query{Transcript: "سيارة", Confidence: 1}

	at := match.New(match.WithClock(clock), match.WithDecisionThreshold(0.5))
	if res := at.Identify(q, profiles); res.Identified {
		t.Errorf("score equal to threshold identified %+v, want Unknown", res)
	}

	below := match.New(match.WithClock(clock), match.WithDecisionThreshold(0.49))
	if res := below.Identify(q, profiles); !res.Identified {
		t.Errorf("score above threshold not identified: %+v", res)
	}
}

func TestMatcher_Options(t *testing.T) {
	t.Parallel()

	m := match.New(
		match.WithClock(clock),
		match.WithQualityFloor(0.5),
		match.WithDecisionThreshold(0.9),
		match.WithWeights(match.Weights{Text: 1}),
		match.WithDecayWindow(-time.Hour),
	)
	if m.QualityFloor() != 0.5 || m.DecisionThreshold() != 0.9 {
		t.Errorf("floor/threshold = %v/%v, want 0.5/0.9", m.QualityFloor(), m.DecisionThreshold())
	}

	profiles := enrolled(t, 15*24*time.Hour, sample{"sara", "مرحبا", 0.9})
	b := m.Score(match.Query{Transcript: "مرحبا", Confidence: 0.4}, profiles[0])
	if !approx(b.TimeScore, 0.5) {
		t.Errorf("TimeScore = %v, want 0.5 with the default window kept", b.TimeScore)
	}
	if b.Score != 1 {
		t.Errorf("Score = %v, want 1 with text-only weights", b.Score)
	}

	if res := m.Identify(match.Query{Transcript: "مرحبا", Confidence: 0.4}, profiles); res.Identified {
		t.Errorf("query below custom floor identified: %+v", res)
	}
}

func TestScore_FutureEnrolmentCountsAsFresh(t *testing.T) {
	t.Parallel()

	m := match.New(match.WithClock(clock))
	profiles := enrolled(t, -48*time.Hour, sample{"sara", "مرحبا", 0.9})
	if b := m.Score(match.Query{Transcript: "مرحبا", Confidence: 0.9}, profiles[0]); b.TimeScore != 1 {
		t.Errorf("TimeScore = %v, want clamped to 1", b.TimeScore)
	}
}
