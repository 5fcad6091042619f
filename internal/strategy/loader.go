package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/industrial-opt/realtime-optimizer/internal/artifacts"
	"github.com/industrial-opt/realtime-optimizer/internal/skills"
	"github.com/industrial-opt/realtime-optimizer/internal/versions"
)

// Loader resolves strategy documents through the artifact cache under
// a fixed logical key. Construction registers the strategy decoder so
// every cache miss yields a fully validated, built Strategy; a cached
// hit can never carry a configuration error.
type Loader struct {
	cache *artifacts.Cache
	key   string
}

// NewLoader wires the loader to cache under key.
func NewLoader(cache *artifacts.Cache, key string) *Loader {
	cache.RegisterDecoder(artifacts.ClassStrategy, func(data []byte) (any, error) {
		return Decode(data)
	})
	return &Loader{cache: cache, key: key}
}

// Load returns the strategy at version, fetching and building on a
// cache miss.
func (l *Loader) Load(ctx context.Context, version string) (*Strategy, error) {
	v, err := l.cache.Get(ctx, artifacts.ClassStrategy, l.key, version)
	if err != nil {
		return nil, fmt.Errorf("loading strategy %q@%s: %w", l.key, version, err)
	}
	s, ok := v.(*Strategy)
	if !ok {
		return nil, fmt.Errorf("loading strategy %q@%s: %w: cached artifact is %T",
			l.key, version, artifacts.ErrCorrupt, v)
	}
	return s, nil
}

// CheckShapes verifies each inference skill's declared width against
// its model, for the models already resolvable at desc's versions.
// Models not yet fetchable are skipped; the same check runs
// authoritatively when the skill executes.
func (l *Loader) CheckShapes(ctx context.Context, log logr.Logger, s *Strategy, desc versions.Descriptor) error {
	for id, skill := range s.Skills {
		inf, ok := skill.(*skills.ModelInference)
		if !ok {
			continue
		}
		model, err := l.cache.Model(ctx, inf.ModelKey(), desc.For(artifacts.ClassModel))
		if err != nil {
			if errors.Is(err, artifacts.ErrNotFound) || errors.Is(err, artifacts.ErrUnavailable) {
				log.V(1).Info("deferring shape check, model not resolvable yet",
					"skill", id, "model", inf.ModelKey())
				continue
			}
			return fmt.Errorf("skill %q: resolving model %q: %w", id, inf.ModelKey(), err)
		}
		if got, want := len(skill.In()), model.InputWidth(); got != want {
			return fmt.Errorf("skill %q: %d inputs for model expecting %d: %w",
				id, got, want, skills.ErrShapeMismatch)
		}
		if got, want := len(skill.Out()), model.OutputWidth(); got != want {
			return fmt.Errorf("skill %q: %d outputs for model producing %d: %w",
				id, got, want, skills.ErrShapeMismatch)
		}
	}
	return nil
}
