// Package config provides the configuration schema, loader, storage backend
// registry, and hot-reload watcher for voiceid.
package config

import (
	"time"

	"github.com/MrWong99/voiceid/internal/voiceid"
	"github.com/MrWong99/voiceid/internal/voiceid/match"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Backend names a profile storage backend.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendBadger   Backend = "badger"
	BackendPostgres Backend = "postgres"
)

// IsValid reports whether b is a recognised backend.
func (b Backend) IsValid() bool {
	switch b {
	case BackendMemory, BackendFile, BackendBadger, BackendPostgres:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Matcher  MatcherConfig     `yaml:"matcher"`
	Storage  StorageConfig     `yaml:"storage"`
	Speakers []voiceid.Speaker `yaml:"speakers"`
}

// ServerConfig holds logging and the optional observability listener.
type ServerConfig struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g. ":9090"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// MatcherConfig tunes speaker identification. Zero values select the
// defaults of package match.
type MatcherConfig struct {
	// DecisionThreshold is the score a match must strictly exceed.
	DecisionThreshold float64 `yaml:"decision_threshold"`

	// QualityFloor is the minimum capture confidence for enrolment and
	// identification.
	QualityFloor float64 `yaml:"quality_floor"`

	// DecayDays is the window over which a profile's recency score falls
	// from 1 to 0.
	DecayDays float64 `yaml:"decay_days"`

	// Weights of the three score components. Must sum to 1.
	Weights WeightsConfig `yaml:"weights"`
}

// WeightsConfig mirrors [match.Weights] for YAML.
type WeightsConfig struct {
	Text       float64 `yaml:"text"`
	Confidence float64 `yaml:"confidence"`
	Recency    float64 `yaml:"recency"`
}

func (w WeightsConfig) isZero() bool {
	return w.Text == 0 && w.Confidence == 0 && w.Recency == 0
}

// DecayWindow returns DecayDays as a duration.
func (m MatcherConfig) DecayWindow() time.Duration {
	return time.Duration(m.DecayDays * float64(24*time.Hour))
}

// Options converts the config into [match.Option] values.
func (m MatcherConfig) Options() []match.Option {
	return []match.Option{
		match.WithDecisionThreshold(m.DecisionThreshold),
		match.WithQualityFloor(m.QualityFloor),
		match.WithDecayWindow(m.DecayWindow()),
		match.WithWeights(match.Weights{
			Text:       m.Weights.Text,
			Confidence: m.Weights.Confidence,
			Recency:    m.Weights.Recency,
		}),
	}
}

// StorageConfig selects where profiles are persisted.
type StorageConfig struct {
	// Backend is the primary backend. Default: file.
	Backend Backend `yaml:"backend"`

	// Path is the directory for the file and badger backends. Default: ./data.
	Path string `yaml:"path"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Key is the slot name of the profile blob. Default: voiceProfiles.
	Key string `yaml:"key"`

	// Fallback is an optional second backend used while the primary fails.
	Fallback Backend `yaml:"fallback"`
}

// Roster returns the configured speakers as a [voiceid.Roster].
func (c *Config) Roster() voiceid.Roster {
	return voiceid.Roster(c.Speakers)
}
