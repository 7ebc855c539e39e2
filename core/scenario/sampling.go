package scenario

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Config describes the Latin hypercube error sampler.
type Config struct {
	Enabled bool    `json:"enabled"`
	Count   int     `json:"count"`
	StdMW   float64 `json:"std_mw"`
	// Growth widens the error with lead time: std(t) = StdMW*sqrt(1+Growth*t).
	Growth float64 `json:"growth"`
	Seed   uint64  `json:"seed"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Count <= 0 {
		c.Count = 10
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
}

// Validate rejects unusable sampler settings.
func (c Config) Validate() error {
	if c.StdMW < 0 || c.Growth < 0 {
		return fmt.Errorf("scenario std %g and growth %g must be non-negative", c.StdMW, c.Growth)
	}
	if c.Count < 1 {
		return fmt.Errorf("scenario count %d must be positive", c.Count)
	}
	return nil
}

// LatinHypercube draws n equiprobable scenarios over horizon steps. Each
// step holds one standard normal quantile per stratum, permuted
// independently, so every marginal is stratified.
func LatinHypercube(cfg Config, horizon int) (Set, error) {
	if err := cfg.Validate(); err != nil {
		return Set{}, err
	}
	n := cfg.Count
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	norm := distuv.UnitNormal

	set := Set{Scenarios: make([]Scenario, n)}
	for i := range set.Scenarios {
		set.Scenarios[i] = Scenario{
			Name:        fmt.Sprintf("s%02d", i),
			Probability: 1 / float64(n),
			Error:       make([]float64, horizon),
		}
	}
	if n == 1 {
		return set, nil
	}
	perm := make([]int, n)
	for t := 0; t < horizon; t++ {
		for i := range perm {
			perm[i] = i
		}
		rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		std := cfg.StdMW * math.Sqrt(1+cfg.Growth*float64(t))
		for i, k := range perm {
			v := rng.Float64()
			if v == 0 {
				v = 0.5
			}
			u := (float64(k) + v) / float64(n)
			set.Scenarios[i].Error[t] = std * norm.Quantile(u)
		}
	}
	return set, nil
}
