package detect

import (
	"fmt"
	"sync"

	"planktovision/internal/pipeline"
)

// Registry holds the available detection adapters by name. The server
// registers every constructed adapter at startup and the status endpoint
// reports their health.
type Registry struct {
	detectors map[string]pipeline.Detector
	mu        sync.RWMutex
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{detectors: make(map[string]pipeline.Detector)}
}

// Register adds a detector to the registry.
func (r *Registry) Register(detector pipeline.Detector) error {
	if detector == nil {
		return fmt.Errorf("detector cannot be nil")
	}
	name := detector.Name()
	if name == "" {
		return fmt.Errorf("detector name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.detectors[name]; exists {
		return fmt.Errorf("detector %q already registered", name)
	}
	r.detectors[name] = detector
	return nil
}

// Get returns a detector by name.
func (r *Registry) Get(name string) (pipeline.Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[name]
	return d, ok
}

// Names returns the names of all registered detectors.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.detectors))
	for name := range r.detectors {
		names = append(names, name)
	}
	return names
}

// Health returns the health state of every registered detector.
func (r *Registry) Health() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	health := make(map[string]bool, len(r.detectors))
	for name, d := range r.detectors {
		health[name] = d.IsHealthy()
	}
	return health
}

// Close releases every registered detector.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.detectors {
		d.Close()
	}
}
