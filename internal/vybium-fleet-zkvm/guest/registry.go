package guest

import (
	"sort"
	"sync"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/vm"
	"github.com/vybium/vybium-fleet-zkvm/pkg/fleetcore"
)

// Registry resolves module references to linkable modules. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	modules map[vm.ModuleRef]vm.Module
}

// NewRegistry creates a registry holding modules
func NewRegistry(modules ...vm.Module) *Registry {
	r := &Registry{modules: make(map[vm.ModuleRef]vm.Module)}
	for _, m := range modules {
		r.Register(m)
	}
	return r
}

// DefaultRegistry holds every fleetcore operation
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, op := range fleetcore.Operations() {
		r.Register(operation{op})
	}
	return r
}

// Register adds or replaces a module
func (r *Registry) Register(m vm.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Ref()] = m
}

// Refs lists the registered references in name order
func (r *Registry) Refs() []vm.ModuleRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]vm.ModuleRef, 0, len(r.modules))
	for ref := range r.modules {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].Version < refs[j].Version
	})
	return refs
}

// Resolve returns the modules linked by img in slot order. A missing module
// or version is an image load error.
func (r *Registry) Resolve(img *Image) ([]vm.Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]vm.Module, len(img.Modules))
	for i, ref := range img.Modules {
		m, ok := r.modules[ref]
		if !ok {
			return nil, utils.NewError(utils.ErrImageLoad, nil,
				"image %s links unknown module %s", img.Name, ref)
		}
		out[i] = m
	}
	return out, nil
}

// operation adapts a fleetcore operation to the VM module interface
type operation struct {
	op fleetcore.Operation
}

func (o operation) Ref() vm.ModuleRef {
	return vm.ModuleRef{Name: o.op.Name, Version: o.op.Version}
}

func (o operation) Apply(input []byte) ([]byte, error) {
	return o.op.Apply(input)
}
