package connector

import (
	"sync"

	"github.com/pagevault/libsync/models"
)

// Registry maps normalized provider names to connectors. Lookup is
// case-insensitive; registering a name twice replaces the earlier entry.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{connectors: map[string]Connector{}}
	for _, c := range connectors {
		r.Register(c)
	}

	return r
}

func (r *Registry) Register(c Connector) {
	name := models.NormalizeProvider(c.Name())
	if name == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connectors[name] = c
}

func (r *Registry) Lookup(name string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[models.NormalizeProvider(name)]

	return c, ok
}
