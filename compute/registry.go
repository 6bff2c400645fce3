package compute

import (
	"slices"
	"sync"
)

// Backend name constants.
const (
	// BackendSoftware is the CPU backend. It is always registered.
	BackendSoftware = "software"

	// BackendWGPU is the GPU compute backend registered by package
	// github.com/gogpu/framefx/gpu.
	BackendWGPU = "wgpu"
)

// BackendFactory creates a new, uninitialized backend instance.
type BackendFactory func(cfg Config) Backend

var (
	registryMu sync.RWMutex
	factories  = make(map[string]BackendFactory)
	// Selection order: hardware first, software last.
	backendPriority = []string{BackendWGPU, BackendSoftware}
)

// Register registers a backend factory under name. It is typically called
// from init functions. Registering an existing name replaces it.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry. Useful in tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// IsRegistered reports whether a backend named name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Available returns the registered backend names in selection order.
func Available() []string {
	return candidates("")
}

// candidates returns registered names in the order a Context tries them.
// preferred, if registered, comes first; software is otherwise last.
// Preferring software skips every other backend.
func candidates(preferred string) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if _, ok := factories[BackendSoftware]; ok && preferred == BackendSoftware {
		return []string{BackendSoftware}
	}

	var names []string
	if _, ok := factories[preferred]; ok {
		names = append(names, preferred)
	}
	for _, name := range backendPriority {
		if _, ok := factories[name]; ok && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	var extra []string
	for name := range factories {
		if !slices.Contains(names, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	names = append(names, extra...)

	// Keep the software fallback last no matter what was preferred.
	if i := slices.Index(names, BackendSoftware); i >= 0 && i != len(names)-1 {
		names = append(slices.Delete(names, i, i+1), BackendSoftware)
	}
	return names
}

func factory(name string) BackendFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return factories[name]
}

func init() {
	Register(BackendSoftware, func(cfg Config) Backend {
		return NewSoftwareBackend(cfg.Workers)
	})
}
