// Package app composes the voice profile store, the speaker matcher, profile
// persistence and metrics into the service the CLI drives.
//
// An [App] is constructed explicitly with [New]; nothing is global. The
// profile blob is loaded once on construction and written back after every
// change, under the slot names the browser app used ("voiceProfiles" and
// "lastIdentifiedChild"), so existing data can be imported unchanged.
//
// For testing, inject doubles via functional options ([WithStorage],
// [WithMetrics], [WithClock]). When an option is not provided, New uses an
// in-memory store and the default metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/voiceid/internal/config"
	"github.com/MrWong99/voiceid/internal/observe"
	"github.com/MrWong99/voiceid/internal/voiceid"
	"github.com/MrWong99/voiceid/internal/voiceid/match"
	"github.com/MrWong99/voiceid/pkg/capture"
	"github.com/MrWong99/voiceid/pkg/profilestore"
)

// App is the voice identification service. It is safe for concurrent use;
// changes to the profile set are serialised so that every persisted blob is a
// consistent snapshot.
type App struct {
	store   *voiceid.Store
	matcher atomic.Pointer[match.Matcher]

	persist profilestore.Store
	backend string
	key     string
	metrics *observe.Metrics
	now     func() time.Time

	// mu serialises mutate-then-persist sequences.
	mu             sync.Mutex
	lastIdentified string
}

// Option is a functional option for [New].
type Option func(*App)

// WithStorage persists profiles to s. backend labels storage metrics.
func WithStorage(s profilestore.Store, backend string) Option {
	return func(a *App) {
		a.persist = s
		a.backend = backend
	}
}

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithClock sets the time source used for enrolment timestamps and the
// recency score.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// New builds an App from cfg and restores the persisted profiles.
//
// A missing blob starts an empty set. A corrupt blob is logged and also
// starts an empty set; it is overwritten by the next enrolment. Storage
// errors other than "not found" fail construction.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		key: cfg.Storage.Key,
		now: time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.key == "" {
		a.key = profilestore.KeyProfiles
	}
	if a.persist == nil {
		a.persist = profilestore.NewMemory()
		a.backend = string(config.BackendMemory)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.store = voiceid.NewStore(
		voiceid.WithRoster(cfg.Roster()),
		voiceid.WithMinConfidence(cfg.Matcher.QualityFloor),
		voiceid.WithClock(a.now),
	)
	a.SetMatcher(a.newMatcher(cfg.Matcher))

	if err := a.restore(ctx); err != nil {
		return nil, err
	}
	a.metrics.EnrolledSpeakers.Add(ctx, int64(a.store.Len()))
	return a, nil
}

func (a *App) newMatcher(mc config.MatcherConfig) *match.Matcher {
	return match.New(append(mc.Options(), match.WithClock(a.now))...)
}

// restore loads the profile blob and the last identified speaker.
func (a *App) restore(ctx context.Context) error {
	data, err := a.load(ctx, a.key)
	switch {
	case errors.Is(err, profilestore.ErrNotFound):
		slog.Debug("no stored voice profiles", "key", a.key)
	case err != nil:
		return fmt.Errorf("app: load profiles: %w", err)
	default:
		if err := a.store.Deserialize(data); err != nil {
			slog.Warn("discarding corrupt voice profiles", "key", a.key, "err", err)
		} else {
			slog.Info("voice profiles restored", "count", a.store.Len(), "backend", a.backend)
		}
	}

	last, err := a.load(ctx, profilestore.KeyLastIdentified)
	switch {
	case errors.Is(err, profilestore.ErrNotFound):
	case err != nil:
		slog.Warn("cannot load last identified speaker", "err", err)
	default:
		a.lastIdentified = string(last)
	}
	return nil
}

// SetMatcher replaces the matcher used by [App.Identify]. Safe to call while
// identifications are running; they finish with the matcher they started with.
func (a *App) SetMatcher(m *match.Matcher) {
	a.matcher.Store(m)
}

// ApplyConfig hot-applies the matcher section of cfg. The quality floor
// changes for enrolment and identification together.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.store.SetMinConfidence(cfg.Matcher.QualityFloor)
	a.SetMatcher(a.newMatcher(cfg.Matcher))
	slog.Info("matcher reconfigured",
		"decision_threshold", cfg.Matcher.DecisionThreshold,
		"quality_floor", cfg.Matcher.QualityFloor,
	)
}

// Matcher returns the current matcher.
func (a *App) Matcher() *match.Matcher {
	return a.matcher.Load()
}

// Enroll stores u as the reference sample of speakerID and persists the
// profile set. When persisting fails the in-memory profile is kept and the
// error is returned.
func (a *App) Enroll(ctx context.Context, speakerID string, u capture.Utterance) (voiceid.Profile, error) {
	speakerID = strings.TrimSpace(speakerID)
	ctx, span := observe.StartSpan(ctx, "voiceid.enroll", trace.WithAttributes(attribute.String("speaker", speakerID)))
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	_, existed := a.store.Get(speakerID)
	p, err := a.store.Enroll(speakerID, u.Transcript, u.Confidence)
	if err != nil {
		status := observe.StatusError
		if errors.Is(err, voiceid.ErrInvalidSample) || errors.Is(err, voiceid.ErrUnknownSpeaker) || errors.Is(err, voiceid.ErrEmptySpeakerID) {
			status = observe.StatusRejected
		}
		a.metrics.RecordEnrollment(ctx, speakerID, status)
		span.SetStatus(codes.Error, err.Error())
		return voiceid.Profile{}, err
	}
	if !existed {
		a.metrics.EnrolledSpeakers.Add(ctx, 1)
	}
	a.metrics.RecordEnrollment(ctx, p.SpeakerID, observe.StatusOK)
	observe.Logger(ctx).Info("voice enrolled", "speaker", p.SpeakerID, "confidence", p.Confidence, "words", p.Features.WordCount)

	if err := a.saveProfiles(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return p, err
	}
	return p, nil
}

// Identify matches u against the enrolled profiles. When a speaker is
// identified it becomes the last identified speaker and is persisted; a
// persistence failure is logged and does not change the result.
func (a *App) Identify(ctx context.Context, u capture.Utterance) match.Result {
	ctx, span := observe.StartSpan(ctx, "voiceid.identify")
	defer span.End()

	m := a.matcher.Load()
	profiles := a.store.List()
	q := match.Query{Transcript: u.Transcript, Confidence: u.Confidence}
	res := m.Identify(q, profiles)

	switch {
	case !(q.Confidence >= m.QualityFloor()) || len(profiles) == 0:
		a.metrics.RecordIdentification(ctx, observe.OutcomeRejected, "", 0, false)
	case res.Identified:
		a.metrics.RecordIdentification(ctx, observe.OutcomeIdentified, res.SpeakerID, res.Score, true)
		a.setLastIdentified(ctx, res.SpeakerID)
	default:
		best := m.Rank(q, profiles)[0].Score
		a.metrics.RecordIdentification(ctx, observe.OutcomeUnknown, "", best, true)
	}

	span.SetAttributes(
		attribute.Bool("identified", res.Identified),
		attribute.String("speaker", res.SpeakerID),
		attribute.Float64("score", res.Score),
	)
	observe.Logger(ctx).Info("identification finished",
		"identified", res.Identified,
		"speaker", res.SpeakerID,
		"score", res.Score,
		"candidates", len(profiles),
	)
	return res
}

// Explain scores u against every profile, best first.
func (a *App) Explain(u capture.Utterance) []match.Breakdown {
	return a.matcher.Load().Rank(match.Query{Transcript: u.Transcript, Confidence: u.Confidence}, a.store.List())
}

func (a *App) setLastIdentified(ctx context.Context, speakerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastIdentified = speakerID
	if err := a.save(ctx, profilestore.KeyLastIdentified, []byte(speakerID)); err != nil {
		slog.Warn("cannot persist last identified speaker", "speaker", speakerID, "err", err)
	}
}

// LastIdentified returns the most recently identified speaker, restored
// across restarts. Empty when nobody has been identified.
func (a *App) LastIdentified() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastIdentified
}

// Forget removes the profile of speakerID and persists the change.
func (a *App) Forget(ctx context.Context, speakerID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Remove(speakerID); err != nil {
		return fmt.Errorf("app: forget %q: %w", speakerID, err)
	}
	a.metrics.EnrolledSpeakers.Add(ctx, -1)
	if a.lastIdentified == speakerID {
		a.lastIdentified = ""
		if err := a.remove(ctx, profilestore.KeyLastIdentified); err != nil {
			return err
		}
	}
	slog.Info("voice profile removed", "speaker", speakerID)
	return a.saveProfiles(ctx)
}

// Reset deletes every profile and the last identified speaker, in memory
// and in storage.
func (a *App) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.store.Len()
	a.store.Reset()
	a.lastIdentified = ""
	a.metrics.EnrolledSpeakers.Add(ctx, -int64(n))

	err := errors.Join(
		a.remove(ctx, a.key),
		a.remove(ctx, profilestore.KeyLastIdentified),
	)
	slog.Info("voice data reset", "removed_profiles", n)
	return err
}

// Stats summarises the enrolment state.
func (a *App) Stats() voiceid.Stats {
	return a.store.Stats()
}

// Profiles returns a snapshot of the enrolled profiles in enumeration order.
func (a *App) Profiles() []voiceid.Profile {
	return a.store.List()
}

// IsReady reports whether identification can be attempted.
func (a *App) IsReady() bool {
	return a.store.IsReady()
}

// Roster returns the known speakers.
func (a *App) Roster() voiceid.Roster {
	return a.store.Roster()
}

// Storage returns the persistence backend.
func (a *App) Storage() profilestore.Store {
	return a.persist
}

// Close closes the persistence backend.
func (a *App) Close() error {
	return a.persist.Close()
}

// saveProfiles persists the profile set. Must be called with a.mu held.
func (a *App) saveProfiles(ctx context.Context) error {
	data, err := a.store.Serialize()
	if err != nil {
		return fmt.Errorf("app: serialize profiles: %w", err)
	}
	return a.save(ctx, a.key, data)
}

func (a *App) load(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer func() { a.metrics.RecordStorage(ctx, a.backend, "load", time.Since(start)) }()
	return a.persist.Load(ctx, key)
}

func (a *App) save(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := a.persist.Save(ctx, key, data)
	a.metrics.RecordStorage(ctx, a.backend, "save", time.Since(start))
	if err != nil {
		return fmt.Errorf("app: save %q: %w", key, err)
	}
	return nil
}

func (a *App) remove(ctx context.Context, key string) error {
	start := time.Now()
	err := a.persist.Delete(ctx, key)
	a.metrics.RecordStorage(ctx, a.backend, "delete", time.Since(start))
	if err != nil {
		return fmt.Errorf("app: delete %q: %w", key, err)
	}
	return nil
}
