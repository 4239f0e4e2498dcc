// Package reader implements the Reader Registry (C2): a source_type ->
// Reader factory map, dispatching on source_type rather than on file
// extension.
package reader

import (
	"sync"

	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
)

// Registry resolves a KnowledgeBaseRegistration.SourceType to a Reader
// factory. It implements kb.ReaderRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ports.ReaderFactory
}

// NewRegistry builds a registry seeded with the given source_type ->
// factory pairs.
func NewRegistry(seed map[string]ports.ReaderFactory) *Registry {
	r := &Registry{factories: map[string]ports.ReaderFactory{}}
	for sourceType, factory := range seed {
		r.factories[sourceType] = factory
	}
	return r
}

// Register adds or replaces a source_type's factory.
func (r *Registry) Register(sourceType string, factory ports.ReaderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[sourceType] = factory
}

// Factory resolves a source_type to its Reader factory.
func (r *Registry) Factory(sourceType string) (ports.ReaderFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[sourceType]
	return f, ok
}

// DefaultRegistry seeds "local_store" and "onlysaid-kb" as two names for
// the same filesystem reader; the latter is a legacy alias kept for
// registrations that predate the rename.
func DefaultRegistry() *Registry {
	factory := func() ports.Reader { return NewLocalStoreReader() }
	return NewRegistry(map[string]ports.ReaderFactory{
		"local_store": factory,
		"onlysaid-kb": factory,
	})
}
