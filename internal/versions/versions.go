// Package versions reads the deployed-version pointer file: the single
// source of truth for which artifact versions are currently live. The
// file is mutated only by the external deployment action; this package
// is read-only apart from the last-run timestamp record.
package versions

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/industrial-opt/realtime-optimizer/internal/artifacts"
)

// Descriptor maps each artifact class to its deployed semantic version.
type Descriptor map[artifacts.Class]string

// For returns the deployed version for class, or "" when the pointer
// file does not name one.
func (d Descriptor) For(class artifacts.Class) string {
	return d[class]
}

// Diff returns the classes whose version differs between d and other,
// in either direction.
func (d Descriptor) Diff(other Descriptor) []artifacts.Class {
	var changed []artifacts.Class
	for _, class := range artifacts.Classes() {
		if d[class] != other[class] {
			changed = append(changed, class)
		}
	}
	return changed
}

// Source yields the current deployed-version descriptor.
type Source interface {
	Read(ctx context.Context) (Descriptor, error)
}

// FileSource reads the descriptor from a small YAML pointer file of the
// form:
//
//	model: 1.4.0
//	scaler: 1.4.0
//	strategy: 2.1.0
type FileSource struct {
	path string
}

// NewFileSource creates a descriptor source over the pointer file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the pointer file location, for watchers.
func (s *FileSource) Path() string { return s.path }

// Read parses the pointer file. Unknown class names fail the read: a
// malformed pointer file is a deployment defect, not something to skip.
func (s *FileSource) Read(_ context.Context) (Descriptor, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading version pointer %s: %w", s.path, err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing version pointer %s: %w", s.path, err)
	}
	d := make(Descriptor, len(raw))
	for name, version := range raw {
		class := artifacts.Class(name)
		if !class.Valid() {
			return nil, fmt.Errorf("version pointer %s: unknown artifact class %q", s.path, name)
		}
		d[class] = version
	}
	return d, nil
}
