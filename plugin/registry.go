package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/maruel/natural"
	"go.uber.org/zap"
)

// Registry knows every plugin that can be loaded and keeps loaded instances.
type Registry struct {
	mu        sync.Mutex
	log       *zap.Logger
	factories map[string]Factory
	loaded    map[string]Plugin
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		log:       log.Named("plugins"),
		factories: make(map[string]Factory),
		loaded:    make(map[string]Plugin),
	}
}

func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("plugin %q already registered: %w", name, ErrInvalidArgument)
	}
	r.factories[name] = f
	return nil
}

// Load instantiates a plugin, loading it twice returns the same instance.
func (r *Registry) Load(name string) (Plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.loaded[name]; ok {
		return p, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrNotFound)
	}
	p, err := f(r.log)
	if err != nil {
		return nil, fmt.Errorf("unable to create plugin %q: %w", name, err)
	}
	r.loaded[name] = p
	r.log.Info("Plugin loaded", zap.String("name", name))
	return p, nil
}

func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.loaded[name]; !ok {
		return fmt.Errorf("plugin %q is not loaded: %w", name, ErrNotFound)
	}
	delete(r.loaded, name)
	r.log.Info("Plugin unloaded", zap.String("name", name))
	return nil
}

// Get returns a loaded plugin.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.loaded[name]
	return p, ok
}

// Names lists registered plugins in natural order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.factories)
}

// Loaded lists loaded plugins in natural order.
func (r *Registry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.loaded)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Sort(natural.StringSlice(keys))
	return keys
}
