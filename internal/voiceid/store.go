package voiceid

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voiceid/internal/textnorm"
)

// DefaultMinConfidence is the lowest recogniser confidence accepted for an
// enrolment sample.
const DefaultMinConfidence = 0.3

var (
	// ErrInvalidSample is returned by [Store.Enroll] when the sample's
	// confidence is below the acceptance floor or outside [0, 1]. The caller
	// should ask the speaker to try again.
	ErrInvalidSample = errors.New("voiceid: sample quality too low")

	// ErrEmptySpeakerID is returned by [Store.Enroll] for a blank speaker ID.
	ErrEmptySpeakerID = errors.New("voiceid: speaker id must not be empty")

	// ErrUnknownSpeaker is returned by [Store.Enroll] when a roster is
	// configured and the speaker is not on it.
	ErrUnknownSpeaker = errors.New("voiceid: speaker is not on the roster")

	// ErrNotFound is returned by [Store.Remove] when no profile exists.
	ErrNotFound = errors.New("voiceid: profile not found")
)

// Option configures a [Store].
type Option func(*Store)

// WithClock sets the time source used to stamp enrolments. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMinConfidence sets the enrolment acceptance floor. Default: 0.3.
func WithMinConfidence(floor float64) Option {
	return func(s *Store) {
		s.minConfidence = floor
	}
}

// WithRoster restricts enrolment to the speakers on r.
func WithRoster(r Roster) Option {
	return func(s *Store) {
		s.roster = slices.Clone(r)
	}
}

// Store is the in-memory set of enrolled profiles, at most one per speaker.
//
// Profiles are enumerated in enrolment order; re-enrolling a speaker replaces
// the profile but keeps its position. The matcher breaks score ties by this
// order.
//
// Store is safe for concurrent use: writes are serialised and readers get
// snapshots.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	order    []string

	now           func() time.Time
	minConfidence float64
	roster        Roster
}

// NewStore returns an empty [Store] configured with opts.
func NewStore(opts ...Option) *Store {
	s := &Store{
		profiles:      make(map[string]Profile),
		now:           time.Now,
		minConfidence: DefaultMinConfidence,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetMinConfidence changes the enrolment acceptance floor. Profiles already
// stored are kept.
func (s *Store) SetMinConfidence(floor float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minConfidence = floor
}

// MinConfidence returns the enrolment acceptance floor.
func (s *Store) MinConfidence() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minConfidence
}

// Enroll records a reference sample for speakerID, replacing any previous
// profile. A rejected sample leaves the store unchanged.
func (s *Store) Enroll(speakerID, transcript string, confidence float64) (Profile, error) {
	speakerID = strings.TrimSpace(speakerID)
	if speakerID == "" {
		return Profile{}, ErrEmptySpeakerID
	}
	if !s.roster.Contains(speakerID) {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownSpeaker, speakerID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if math.IsNaN(confidence) || confidence < s.minConfidence || confidence > 1 {
		return Profile{}, fmt.Errorf("%w: confidence %.2f (minimum %.2f)", ErrInvalidSample, confidence, s.minConfidence)
	}

	text := textnorm.Normalize(transcript)
	p := Profile{
		SpeakerID:  speakerID,
		Transcript: text,
		Confidence: confidence,
		EnrolledAt: s.now().Truncate(time.Millisecond),
		Features:   ExtractFeatures(text, confidence),
	}
	s.put(p)
	return p, nil
}

// put inserts or replaces p. Must be called with s.mu held.
func (s *Store) put(p Profile) {
	if _, exists := s.profiles[p.SpeakerID]; !exists {
		s.order = append(s.order, p.SpeakerID)
	}
	s.profiles[p.SpeakerID] = p
}

// List returns a snapshot of all profiles in enumeration order.
func (s *Store) List() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.profiles[id])
	}
	return out
}

// Get returns the profile of speakerID.
func (s *Store) Get(speakerID string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[speakerID]
	return p, ok
}

// Len returns the number of enrolled speakers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// IsReady reports whether at least one speaker is enrolled.
func (s *Store) IsReady() bool {
	return s.Len() > 0
}

// Remove deletes the profile of speakerID.
func (s *Store) Remove(speakerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[speakerID]; !ok {
		return ErrNotFound
	}
	delete(s.profiles, speakerID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == speakerID })
	return nil
}

// Reset drops every profile.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(nil)
}

// replace swaps the whole profile set for ps. Must be called with s.mu held.
func (s *Store) replace(ps []Profile) {
	s.profiles = make(map[string]Profile, len(ps))
	s.order = make([]string, 0, len(ps))
	for _, p := range ps {
		s.put(p)
	}
}

// Stats summarises the enrolment state.
func (s *Store) Stats() Stats {
	trained := s.Len()
	total := trained
	if len(s.roster) > 0 {
		total = len(s.roster)
	}
	return Stats{Trained: trained, Total: total, Ready: trained > 0}
}

// Roster returns the configured roster, or nil when any speaker is accepted.
func (s *Store) Roster() Roster {
	return slices.Clone(s.roster)
}
