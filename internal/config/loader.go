package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voiceid/internal/voiceid"
	"github.com/MrWong99/voiceid/internal/voiceid/match"
	"github.com/MrWong99/voiceid/pkg/profilestore"
)

const (
	defaultStoragePath = "./data"
	weightTolerance    = 1e-6
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field of cfg with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	m := &cfg.Matcher
	if m.DecisionThreshold == 0 {
		m.DecisionThreshold = match.DefaultDecisionThreshold
	}
	if m.QualityFloor == 0 {
		m.QualityFloor = match.DefaultQualityFloor
	}
	if m.DecayDays == 0 {
		m.DecayDays = match.DefaultDecayWindow.Hours() / 24
	}
	if m.Weights.isZero() {
		m.Weights = WeightsConfig{
			Text:       match.DefaultWeights.Text,
			Confidence: match.DefaultWeights.Confidence,
			Recency:    match.DefaultWeights.Recency,
		}
	}

	s := &cfg.Storage
	if s.Backend == "" {
		s.Backend = BackendFile
	}
	if s.Path == "" && (s.Backend == BackendFile || s.Backend == BackendBadger ||
		s.Fallback == BackendFile || s.Fallback == BackendBadger) {
		s.Path = defaultStoragePath
	}
	if s.Key == "" {
		s.Key = profilestore.KeyProfiles
	}

	if len(cfg.Speakers) == 0 {
		cfg.Speakers = slices.Clone(voiceid.DefaultRoster)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Matcher
	m := cfg.Matcher
	if !inUnit(m.DecisionThreshold) {
		errs = append(errs, fmt.Errorf("matcher.decision_threshold %.3f is out of range [0, 1]", m.DecisionThreshold))
	}
	if !inUnit(m.QualityFloor) {
		errs = append(errs, fmt.Errorf("matcher.quality_floor %.3f is out of range [0, 1]", m.QualityFloor))
	}
	if !(m.DecayDays > 0) {
		errs = append(errs, fmt.Errorf("matcher.decay_days %.3f must be positive", m.DecayDays))
	}
	w := m.Weights
	if w.Text < 0 || w.Confidence < 0 || w.Recency < 0 {
		errs = append(errs, errors.New("matcher.weights must not be negative"))
	} else if sum := w.Text + w.Confidence + w.Recency; math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Errorf("matcher.weights sum to %.4f; they must sum to 1", sum))
	}
	if m.QualityFloor > m.DecisionThreshold {
		slog.Warn("matcher.quality_floor is above matcher.decision_threshold",
			"quality_floor", m.QualityFloor,
			"decision_threshold", m.DecisionThreshold,
		)
	}

	// Storage
	s := cfg.Storage
	errs = append(errs, validateBackend("storage.backend", s.Backend, s)...)
	if s.Fallback != "" {
		if s.Fallback == s.Backend {
			errs = append(errs, fmt.Errorf("storage.fallback %q must differ from storage.backend", s.Fallback))
		} else {
			errs = append(errs, validateBackend("storage.fallback", s.Fallback, s)...)
		}
	}
	if s.Backend == BackendMemory && s.Fallback == "" {
		slog.Warn("storage.backend is memory; voice profiles will be lost on exit")
	}

	// Speakers
	if err := voiceid.Roster(cfg.Speakers).Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateBackend(field string, b Backend, s StorageConfig) []error {
	if b == "" {
		return []error{fmt.Errorf("%s is required", field)}
	}
	if !b.IsValid() {
		return []error{fmt.Errorf("%s %q is invalid; valid values: memory, file, badger, postgres", field, b)}
	}
	switch b {
	case BackendFile, BackendBadger:
		if s.Path == "" {
			return []error{fmt.Errorf("%s %q requires storage.path", field, b)}
		}
	case BackendPostgres:
		if s.PostgresDSN == "" {
			return []error{fmt.Errorf("%s %q requires storage.postgres_dsn", field, b)}
		}
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
