package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/zclconf/go-cty/cty"
)

// Module is the interface that all stage modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Transform is a registered transform together with its contract.
type Transform struct {
	Fn stage.TransformFunc
	// Options declares every accepted option and its type. Options of type
	// cty.DynamicPseudoType accept any value.
	Options map[string]cty.Type
	// MinInputs and MaxInputs bound the number of inputs. A MaxInputs of
	// zero means unbounded.
	MinInputs int
	MaxInputs int
	// Description is a one-line summary shown by tooling.
	Description string
}

// Registry holds the transforms available to a single application instance.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]*Transform
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{transforms: make(map[string]*Transform)}
}

// NewWith creates a Registry and registers every module into it.
func NewWith(modules ...Module) *Registry {
	r := New()
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterTransform registers a transform under name. Registering the same
// name twice is a programming error and panics.
func (r *Registry) RegisterTransform(name string, t *Transform) {
	if t == nil || t.Fn == nil {
		panic(fmt.Sprintf("transform '%s' registered without a function", name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transforms[name]; exists {
		panic(fmt.Sprintf("transform with name '%s' already registered", name))
	}
	slog.Debug("Registering transform.", "name", name)
	r.transforms[name] = t
}

// Lookup returns the transform registered under name.
func (r *Registry) Lookup(name string) (*Transform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transforms[name]
	return t, ok
}

// Names returns the registered transform names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.transforms))
	for n := range r.transforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
