package solver

import (
	"fmt"

	"github.com/kilianp07/hess/core/factory"
)

var backends = factory.NewRegistry[Backend]()

func init() {
	_ = backends.Register("simplex", simplexFactory(PrimaryConfig))
	_ = backends.Register("simplex_relaxed", simplexFactory(RelaxedConfig))
}

// simplexFactory decodes conf over the given defaults.
func simplexFactory(base func() SimplexConfig) factory.Factory[Backend] {
	return func(conf map[string]any) (Backend, error) {
		cfg := base()
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, fmt.Errorf("decode simplex backend: %w", err)
		}
		if cfg.Method != "" && cfg.Method != MethodBounded && cfg.Method != MethodDense {
			return nil, fmt.Errorf("simplex backend: unknown method %q", cfg.Method)
		}
		return NewSimplexBackend(cfg), nil
	}
}

// RegisterBackend adds a backend factory identified by name.
func RegisterBackend(name string, f factory.Factory[Backend]) error {
	return backends.Register(name, f)
}

// NewBackends builds the ordered backend list. An empty configuration
// yields the primary simplex followed by the relaxed one.
func NewBackends(cfgs []factory.ModuleConfig) ([]Backend, error) {
	if len(cfgs) == 0 {
		return DefaultBackends(), nil
	}
	out := make([]Backend, 0, len(cfgs))
	for i, c := range cfgs {
		b, err := backends.Create(c)
		if err != nil {
			return nil, fmt.Errorf("solver backend %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// DefaultBackends returns the built-in primary and relaxed backends.
func DefaultBackends() []Backend {
	return []Backend{NewSimplexBackend(PrimaryConfig()), NewSimplexBackend(RelaxedConfig())}
}
