package voiceid

import (
	"errors"
	"fmt"
)

// Speaker is a known speaker of the app.
type Speaker struct {
	// ID is the stable identifier used as the profile key (e.g. "sara").
	ID string `yaml:"id"`

	// Name is the display name used in greetings (e.g. "سارة").
	Name string `yaml:"name"`
}

// Roster is the closed, ordered set of speakers the app knows about.
// A nil or empty Roster accepts any speaker ID.
type Roster []Speaker

// DefaultRoster is the pair of children the app was built for.
var DefaultRoster = Roster{
	{ID: "sara", Name: "سارة"},
	{ID: "ghaith", Name: "غيث"},
}

// Contains reports whether id is on the roster. An empty roster contains
// every non-empty id.
func (r Roster) Contains(id string) bool {
	if id == "" {
		return false
	}
	if len(r) == 0 {
		return true
	}
	for _, s := range r {
		if s.ID == id {
			return true
		}
	}
	return false
}

// DisplayName returns the speaker's display name, falling back to the ID.
func (r Roster) DisplayName(id string) string {
	for _, s := range r {
		if s.ID == id && s.Name != "" {
			return s.Name
		}
	}
	return id
}

// Validate checks that every speaker has a unique, non-empty ID.
func (r Roster) Validate() error {
	var errs []error
	seen := make(map[string]int, len(r))
	for i, s := range r {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("speakers[%d]: id must not be empty", i))
			continue
		}
		if prev, ok := seen[s.ID]; ok {
			errs = append(errs, fmt.Errorf("speakers[%d]: id %q is a duplicate of speakers[%d]", i, s.ID, prev))
		}
		seen[s.ID] = i
	}
	return errors.Join(errs...)
}
