package reactor

import (
	"fmt"
	"sort"

	"github.com/avereen/kinsim/internal/dae"
)

// Params carries named model parameters from configuration. Missing keys
// fall back to model defaults.
type Params map[string]float64

func (p Params) get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Registry maps model names to constructors.
type Registry struct {
	models map[string]func(Params) (dae.ResidJacEval, error)
}

// NewRegistry returns a registry with the built-in models registered.
func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]func(Params) (dae.ResidJacEval, error))}

	r.Register("decay", func(p Params) (dae.ResidJacEval, error) {
		return NewDecay(p.get("k", 1.0)), nil
	})
	r.Register("chain", func(p Params) (dae.ResidJacEval, error) {
		return NewChainArrhenius(
			int(p.get("species", 4)),
			p.get("temperature", 1000.0),
			p.get("prefactor", 1.0),
			p.get("ea", 0.0),
		)
	})
	r.Register("robertson", func(p Params) (dae.ResidJacEval, error) {
		return NewRobertson(), nil
	})

	return r
}

// Register adds or replaces a constructor for name.
func (r *Registry) Register(name string, ctor func(Params) (dae.ResidJacEval, error)) {
	r.models[name] = ctor
}

// Get builds the named model with the given parameters.
func (r *Registry) Get(name string, p Params) (dae.ResidJacEval, error) {
	ctor, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("reactor: unknown model %q", name)
	}
	return ctor(p)
}

// List returns the registered model names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
