package orchestrator

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/industrial-opt/realtime-optimizer/internal/versions"
)

// invalidationState remembers the descriptor the previous cycle ran
// under so version moves can be translated into class invalidations
// exactly once, even with concurrent cycles.
type invalidationState struct {
	mu   sync.Mutex
	last versions.Descriptor
}

// applyVersionChanges invalidates every artifact class whose deployed
// version moved since the last observed descriptor. An in-flight fetch
// under the old version may still complete, but the invalidation wins:
// the stale entry is gone before this cycle resolves anything.
func (o *Orchestrator) applyVersionChanges(log logr.Logger, desc versions.Descriptor) {
	o.invalidation.mu.Lock()
	defer o.invalidation.mu.Unlock()

	if o.invalidation.last == nil {
		o.invalidation.last = desc
		return
	}
	changed := o.invalidation.last.Diff(desc)
	for _, class := range changed {
		n := o.cache.InvalidateClass(class)
		log.Info("artifact version changed, class invalidated",
			"class", class,
			"from", o.invalidation.last.For(class),
			"to", desc.For(class),
			"evicted", n)
	}
	o.invalidation.last = desc
}
