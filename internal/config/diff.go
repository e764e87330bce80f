package config

import "slices"

// ConfigDiff describes what changed between two configs.
//
// Log level and matcher settings are applied live; storage and speaker
// changes only take effect after a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	MatcherChanged  bool
	StorageChanged  bool
	SpeakersChanged bool
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.MatcherChanged && !d.StorageChanged && !d.SpeakersChanged
}

// RequiresRestart reports whether any change cannot be applied live.
func (d ConfigDiff) RequiresRestart() bool {
	return d.StorageChanged || d.SpeakersChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.MatcherChanged = old.Matcher != new.Matcher
	d.StorageChanged = old.Storage != new.Storage
	d.SpeakersChanged = !slices.Equal(old.Speakers, new.Speakers)
	return d
}
