package backend

import (
	"fmt"
	"sort"
	"sync"

	"disasmfacts/internal/arch"
	"disasmfacts/internal/logging"
)

type entry struct {
	name    string
	factory Factory
}

// Registry maps ISAs to backend factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[arch.ISA]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[arch.ISA]entry)}
}

// Register adds a backend for isa. A backend already registered for the ISA
// is replaced.
func (r *Registry) Register(isa arch.ISA, name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logging.BackendDebug("registering backend %s for %s", name, isa)
	r.entries[isa] = entry{name: name, factory: factory}
}

// Has reports whether a backend is registered for isa.
func (r *Registry) Has(isa arch.ISA) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[isa]
	return ok
}

// Select builds the backend registered for isa. An ISA with no backend is an
// unsupported architecture.
func (r *Registry) Select(isa arch.ISA, cfg Config) (Backend, error) {
	r.mu.RLock()
	e, ok := r.entries[isa]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no analysis backend for %s: %w", isa, arch.ErrUnsupportedArchitecture)
	}
	b, err := e.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create backend %s: %w", e.name, err)
	}
	logging.Backend("selected backend %s for %s", e.name, isa)
	return b, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

// Backend names of the built-in registrations.
const (
	NameX64   = "disasm_x64"
	NameARM32 = "disasm_arm32"
)

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry holding the built-in backends.
// ARM64 has a pointer width but no backend.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		defaultRegistry.Register(arch.ISAX64, NameX64, MangleFactory(NameX64, arch.ISAX64, "schemas/base.mg", "schemas/x64.mg"))
		defaultRegistry.Register(arch.ISAARM, NameARM32, MangleFactory(NameARM32, arch.ISAARM, "schemas/base.mg", "schemas/arm32.mg"))
	})
	return defaultRegistry
}

// Select builds a backend from the default registry.
func Select(isa arch.ISA, cfg Config) (Backend, error) {
	return Default().Select(isa, cfg)
}

// Names lists the backends of the default registry.
func Names() []string {
	return Default().Names()
}
