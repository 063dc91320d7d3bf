package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/g3d/gpucore"
)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for backend selection (first that opens wins).
	backendPriority = []string{Native, Software}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in driver packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open opens the named backend.
func Open(name string, opts Options) (gpucore.Device, error) {
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("backend: open %q: %w", name, err)
	}
	return dev, nil
}

// OpenDefault opens the first backend in priority order that succeeds,
// falling back to any other registered backend. The error lists every
// failure when none opens.
func OpenDefault(opts Options) (gpucore.Device, error) {
	registryMu.RLock()
	order := make([]string, 0, len(factories))
	for _, name := range backendPriority {
		if _, ok := factories[name]; ok {
			order = append(order, name)
		}
	}
	var rest []string
	for name := range factories {
		if !slices.Contains(order, name) {
			rest = append(rest, name)
		}
	}
	registryMu.RUnlock()
	slices.Sort(rest)
	order = append(order, rest...)

	errs := []error{ErrNoBackend}
	for _, name := range order {
		dev, err := Open(name, opts)
		if err == nil {
			return dev, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
