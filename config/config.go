package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/hess/core/decompose"
	"github.com/kilianp07/hess/core/dispatch"
	"github.com/kilianp07/hess/core/factory"
	"github.com/kilianp07/hess/core/metrics"
	"github.com/kilianp07/hess/core/scenario"
	"github.com/kilianp07/hess/infra/mqtt"
	"github.com/kilianp07/hess/simulator"
)

type Config struct {
	EMS        dispatch.Config        `json:"ems"`
	Solver     []factory.ModuleConfig `json:"solver"`
	Decomposer decompose.Config       `json:"decomposer"`
	Assets     []simulator.UnitConfig `json:"assets"`
	Scenarios  scenario.Config        `json:"scenarios"`
	Simulation simulator.Config       `json:"simulation"`
	Service    ServiceConfig          `json:"service"`
	Metrics    metrics.Config         `json:"metrics"`
	MQTT       mqtt.Config            `json:"mqtt"`
	Logging    LoggingConfig          `json:"logging"`
}

// ServiceConfig drives the long-running controller.
type ServiceConfig struct {
	// Speedup divides the wall-clock period of each control step.
	Speedup float64 `json:"speedup"`
	// AckTimeoutMS waits for device acknowledgements when positive.
	AckTimeoutMS int `json:"ack_timeout_ms"`
}

func (c *ServiceConfig) SetDefaults() {
	if c.Speedup == 0 {
		c.Speedup = 1
	}
}

func (c ServiceConfig) Validate() error {
	if c.Speedup < 0 || c.AckTimeoutMS < 0 {
		return fmt.Errorf("service speedup %g and ack timeout %dms must be non-negative", c.Speedup, c.AckTimeoutMS)
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section. Scenario defaults only apply when the
// stochastic layer is enabled.
func (c *Config) SetDefaults() {
	c.EMS.SetDefaults()
	c.Decomposer.SetDefaults()
	if c.Scenarios.Enabled {
		c.Scenarios.SetDefaults()
	}
	c.Simulation.SetDefaults()
	c.Service.SetDefaults()
	c.Logging.SetDefaults()
}

func (c Config) Validate() error {
	if err := c.EMS.Validate(); err != nil {
		return fmt.Errorf("ems: %w", err)
	}
	if err := c.Decomposer.Validate(); err != nil {
		return fmt.Errorf("decomposer: %w", err)
	}
	if c.Scenarios.Enabled {
		if err := c.Scenarios.Validate(); err != nil {
			return fmt.Errorf("scenarios: %w", err)
		}
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("assets: at least one storage asset is required")
	}
	seen := make(map[string]struct{}, len(c.Assets))
	for _, a := range c.Assets {
		if a.ID == "" {
			return fmt.Errorf("assets: missing id")
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("assets: duplicate id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	if err := c.Simulation.Profiles.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if err := c.Service.Validate(); err != nil {
		return err
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt: broker is required when enabled")
	}
	return c.Logging.Validate()
}
