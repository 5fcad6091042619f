package versions

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type lastRunDoc struct {
	LastRunTimestamp string `yaml:"last_run_timestamp"`
}

// LastRunStore persists the measurement timestamp of the last
// successful cycle, so restarts do not re-optimize stale data.
type LastRunStore struct {
	path string
}

// NewLastRunStore creates a store over the given YAML file.
func NewLastRunStore(path string) *LastRunStore {
	return &LastRunStore{path: path}
}

// Read returns the recorded timestamp, or the zero time when the file
// does not exist yet.
func (s *LastRunStore) Read() (time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("reading last-run record %s: %w", s.path, err)
	}
	var doc lastRunDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return time.Time{}, fmt.Errorf("parsing last-run record %s: %w", s.path, err)
	}
	if doc.LastRunTimestamp == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, doc.LastRunTimestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last-run timestamp %q: %w", doc.LastRunTimestamp, err)
	}
	return t, nil
}

// Write records t as the last successful cycle's measurement timestamp.
func (s *LastRunStore) Write(t time.Time) error {
	data, err := yaml.Marshal(lastRunDoc{LastRunTimestamp: t.Format(time.RFC3339)})
	if err != nil {
		return fmt.Errorf("encoding last-run record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing last-run record %s: %w", s.path, err)
	}
	return nil
}
