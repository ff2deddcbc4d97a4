package record

import (
	"sync"

	"github.com/koustreak/rowmap/internal/errs"
	"github.com/koustreak/rowmap/internal/logger"
	"github.com/koustreak/rowmap/internal/schema"
)

// Registry is the process-wide table of models keyed by name. It is
// populated at startup, then frozen and only read.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	order  []string
	frozen bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry is the registry used when no other is given.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds m under its model name.
func (r *Registry) Register(m *Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errs.Newf(errs.ErrKindInvalidDefinition, "registry is frozen, cannot register %q", m.Name())
	}
	if _, dup := r.models[m.Name()]; dup {
		return errs.Newf(errs.ErrKindInvalidDefinition, "model %q is already registered", m.Name())
	}
	r.models[m.Name()] = m
	r.order = append(r.order, m.Name())

	logger.Global().With().Model(m.Name()).Str("table", m.Table()).Int("columns", len(m.Columns())).Logger().
		Debug("model registered")
	return nil
}

// Lookup returns the model registered as name.
func (r *Registry) Lookup(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "model %q is not registered", name)
	}
	return m, nil
}

// Models lists the registered models in registration order.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Model, len(r.order))
	for i, name := range r.order {
		out[i] = r.models[name]
	}
	return out
}

// Freeze rejects any further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Build compiles every model declared in cat and registers it with reg.
// Models that inherit are registered as STI subtypes of their base, which
// is built first whatever the declaration order.
func Build(cat *schema.Catalog, reg *Registry, opts ...Option) ([]*Model, error) {
	decls, err := cat.Definitions()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]schema.Declared, len(decls))
	for _, d := range decls {
		byName[d.Definition.Model()] = d
	}

	built := make(map[string]*Model, len(decls))
	var build func(name string) (*Model, error)
	build = func(name string) (*Model, error) {
		if m, ok := built[name]; ok {
			return m, nil
		}
		d, ok := byName[name]
		if !ok {
			return nil, errs.Newf(errs.ErrKindInvalidDefinition, "%q is not a model", name)
		}

		var m *Model
		if d.Inherits == "" {
			if m, err = NewModel(d.Definition, opts...); err != nil {
				return nil, err
			}
		} else {
			base, err := build(d.Inherits)
			if err != nil {
				return nil, err
			}
			if m, err = base.Subtype(d.STI, d.Definition); err != nil {
				return nil, err
			}
		}
		if err := reg.Register(m); err != nil {
			return nil, err
		}
		built[name] = m
		return m, nil
	}

	out := make([]*Model, 0, len(decls))
	for _, d := range decls {
		m, err := build(d.Definition.Model())
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
