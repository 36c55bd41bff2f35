package orchestrator

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrAlreadyRegistered is returned by Registry.Register when the exact same
// module instance is registered twice.
var ErrAlreadyRegistered = errors.New("module already registered")

// ErrModuleNotFound is returned by Registry.Unregister when the module
// instance is not present.
var ErrModuleNotFound = errors.New("module not found")

// Registry is the typed registry of pluggable modules keyed by capability,
// per spec.md section 4.1. It is the Go analogue of the teacher's adapter
// construction pattern (internal/ingest/config.go): modules are plain
// values handed in by the caller, and the Registry only tracks identity and
// ordering.
//
// Both the insertion-ordered list and the per-type buckets are updated by
// Register and Unregister together, resolving Open Question (a) in
// spec.md section 9: the excerpt's UnregisterModule only touched the list.
type Registry struct {
	mu      sync.Mutex
	list    []moduleRecord
	byType  map[ModuleType][]Module
	router  MediaRouter
	logger  *slog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byType: make(map[ModuleType][]Module),
		logger: logger,
	}
}

// Register adds module to the registry. It fails with ErrAlreadyRegistered
// if the same module instance (by identity, not type) is already present.
// If module advertises MediaRouter capability, it becomes the Registry's
// distinguished MediaRouter reference.
func (r *Registry) Register(module Module) error {
	if module == nil {
		return errors.New("module must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.list {
		if rec.module == module {
			r.logger.Warn("module already registered", "type", rec.kind.String())
			return ErrAlreadyRegistered
		}
	}

	kind := module.GetModuleType()
	r.list = append(r.list, moduleRecord{kind: kind, module: module})
	r.byType[kind] = append(r.byType[kind], module)

	if kind == ModuleMediaRouter {
		if router, ok := module.(MediaRouter); ok {
			r.router = router
		}
	}

	r.logger.Debug("module registered", "type", kind.String())
	return nil
}

// Unregister removes module by identity from both the insertion-ordered
// list and the per-type bucket. It fails with ErrModuleNotFound if the
// module is not present.
func (r *Registry) Unregister(module Module) error {
	if module == nil {
		return ErrModuleNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	index := -1
	for i, rec := range r.list {
		if rec.module == module {
			index = i
			break
		}
	}
	if index == -1 {
		r.logger.Warn("module not found for unregister")
		return ErrModuleNotFound
	}

	kind := r.list[index].kind
	r.list = append(r.list[:index], r.list[index+1:]...)
	r.byType[kind] = removeModule(r.byType[kind], module)

	if r.router != nil && Module(r.router) == module {
		r.router = nil
	}

	r.logger.Debug("module unregistered", "type", kind.String())
	return nil
}

// ForType returns the insertion-ordered sequence of modules of the given
// type. The returned slice is a copy; callers may not mutate Registry state
// through it.
func (r *Registry) ForType(kind ModuleType) []Module {
	r.mu.Lock()
	defer r.mu.Unlock()

	modules := r.byType[kind]
	out := make([]Module, len(modules))
	copy(out, modules)
	return out
}

// All returns every registered module in registration order.
func (r *Registry) All() []Module {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Module, len(r.list))
	for i, rec := range r.list {
		out[i] = rec.module
	}
	return out
}

// MediaRouter returns the distinguished MediaRouter reference, or nil if
// none is registered.
func (r *Registry) MediaRouter() MediaRouter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.router
}

func removeModule(modules []Module, target Module) []Module {
	for i, m := range modules {
		if m == target {
			return append(modules[:i], modules[i+1:]...)
		}
	}
	return modules
}
