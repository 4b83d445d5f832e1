package plugin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chwongs96-beep/excel-workflow-tool/model"
)

var ErrUnknownType = errors.New("unknown step type")

// Factory completes a step around a Base that already carries its id, type
// and display name. It declares the ports and schema.
type Factory func(b *Base) Step

// Definition describes a registrable step type.
type Definition struct {
	Type        string
	Name        string
	Category    string
	Description string
	New         Factory
}

// Registry maps type identifiers to factories. It is filled once at startup
// and only read afterwards; one registry is shared by every workflow built
// from it.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a type. Registering the same type twice is an error.
func (r *Registry) Register(def Definition) error {
	if def.Type == "" {
		return fmt.Errorf("register: empty step type")
	}
	if def.New == nil {
		return fmt.Errorf("register %q: nil factory", def.Type)
	}
	if def.Name == "" {
		def.Name = def.Type
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Type]; exists {
		return fmt.Errorf("register %q: already registered", def.Type)
	}
	r.defs[def.Type] = def
	r.order = append(r.order, def.Type)
	return nil
}

// Create builds a new step of the given type.
func (r *Registry) Create(typ string, id model.ID) (Step, error) {
	r.mu.RLock()
	def, ok := r.defs[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	return def.New(NewBase(id, def.Type, def.Name)), nil
}

func (r *Registry) Lookup(typ string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[typ]
	return def, ok
}

// Definitions lists every type in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.defs[t])
	}
	return out
}

// Categories groups definitions by category, keeping registration order
// within each group.
func (r *Registry) Categories() map[string][]Definition {
	out := map[string][]Definition{}
	for _, def := range r.Definitions() {
		out[def.Category] = append(out[def.Category], def)
	}
	return out
}
