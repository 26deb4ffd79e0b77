package pricegen

import (
	"fmt"
	"sort"
	"sync"

	"grid-trading-lab/internal/domain"
)

// Registry resolves scenarios by name. It starts with the presets, one
// per market condition, and accepts custom scenarios.
type Registry struct {
	mu        sync.RWMutex
	scenarios map[string]domain.MarketScenario
}

// NewRegistry creates a registry seeded with the preset scenarios.
func NewRegistry() *Registry {
	r := &Registry{scenarios: make(map[string]domain.MarketScenario)}
	for _, s := range domain.PresetScenarios() {
		r.scenarios[s.Name] = s
	}
	return r
}

// Register adds or replaces a scenario.
func (r *Registry) Register(s domain.MarketScenario) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenarios[s.Name] = s
	return nil
}

// Lookup returns the scenario registered under name.
func (r *Registry) Lookup(name string) (domain.MarketScenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scenarios[name]
	if !ok {
		return domain.MarketScenario{}, fmt.Errorf("%w: scenario %q", domain.ErrNotFound, name)
	}
	return s, nil
}

// Resolve returns the scenario a session config runs under.
func (r *Registry) Resolve(cfg domain.SimulationConfig) (domain.MarketScenario, error) {
	return r.Lookup(cfg.ScenarioName())
}

// Names returns registered scenario names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scenarios))
	for n := range r.scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
