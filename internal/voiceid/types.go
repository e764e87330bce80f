// Package voiceid holds the enrolled voice profiles of the children who use
// the app.
//
// A profile is the reference sample recorded when a speaker trains the app:
// the recognised transcript, the recogniser's confidence and a handful of
// descriptive features. Enrolling a speaker again replaces their profile
// wholesale; there is no history and no merging.
//
// The [Store] is the only owner of the profile set. It is explicitly
// constructed and passed to whoever needs it, and it never talks to
// persistent storage itself: callers move the set in and out through
// [Store.Serialize] and [Store.Deserialize].
package voiceid

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Profile is the enrolled reference sample of one speaker.
type Profile struct {
	// SpeakerID identifies the speaker (e.g. "sara").
	SpeakerID string

	// Transcript is the normalised text recognised at enrolment.
	Transcript string

	// Confidence is the recogniser's confidence in [0, 1] at enrolment.
	Confidence float64

	// EnrolledAt is the enrolment time, kept with millisecond precision.
	EnrolledAt time.Time

	// Features are descriptive values derived at enrolment. They do not take
	// part in scoring today.
	Features Features
}

// Features are descriptive values derived from an enrolment sample.
type Features struct {
	// Length is the transcript length in characters.
	Length int

	// WordCount is the number of space-separated words.
	WordCount int

	// AverageWordLength is the number of non-space characters divided by
	// WordCount (or by 1 for an empty transcript).
	AverageWordLength float64

	// Confidence repeats the enrolment confidence.
	Confidence float64
}

// ExtractFeatures derives [Features] from a transcript and its confidence.
func ExtractFeatures(transcript string, confidence float64) Features {
	words := 0
	if transcript != "" {
		words = len(strings.Split(transcript, " "))
	}
	letters := 0
	for _, r := range transcript {
		if !unicode.IsSpace(r) {
			letters++
		}
	}
	return Features{
		Length:            utf8.RuneCountInString(transcript),
		WordCount:         words,
		AverageWordLength: float64(letters) / float64(max(words, 1)),
		Confidence:        confidence,
	}
}

// Stats summarises how many speakers have trained the app.
type Stats struct {
	// Trained is the number of enrolled speakers.
	Trained int

	// Total is the number of known speakers: the roster size when a roster is
	// configured, otherwise the number of enrolled speakers.
	Total int

	// Ready reports whether identification can run (at least one profile).
	Ready bool
}
