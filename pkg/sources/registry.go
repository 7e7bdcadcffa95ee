package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/lookout/pkg/source"
	"github.com/cuemby/lookout/pkg/types"
)

// Factory builds the producer of a source instance
type Factory func(src *types.SourceInstance) (source.Producer, error)

// Registry maps producer kinds to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in producer kinds
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindHTTP, NewHTTPProducer)
	r.Register(KindSQL, NewSQLProducer)
	r.Register(KindRedis, NewRedisProducer)
	r.Register(KindClock, NewClockProducer)
	r.Register(KindTCP, NewTCPProducer)
	return r
}

// Register adds or replaces the factory of kind
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Kinds returns the registered kinds in order
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build creates the producer for src
func (r *Registry) Build(src *types.SourceInstance) (source.Producer, error) {
	r.mu.RLock()
	f, ok := r.factories[src.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}

	p, err := f(src)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}
	return p, nil
}
