package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const day = 86400.0

// ProfileConfig scales the synthetic daily profiles. Zero scales keep the
// reference magnitudes (load 10 MW mean, wind 7.5 MW mean, solar 8 MW peak).
type ProfileConfig struct {
	Seed       uint64  `json:"seed"`
	LoadScale  float64 `json:"load_scale"`
	WindScale  float64 `json:"wind_scale"`
	SolarScale float64 `json:"solar_scale"`
	// Clouds is the number of cloud passages attenuating solar output.
	Clouds int `json:"clouds"`
}

// SetDefaults fills unset scales.
func (c *ProfileConfig) SetDefaults() {
	if c.Seed == 0 {
		c.Seed = 7
	}
	if c.LoadScale == 0 {
		c.LoadScale = 1
	}
	if c.WindScale == 0 {
		c.WindScale = 1
	}
	if c.SolarScale == 0 {
		c.SolarScale = 1
	}
	if c.Clouds == 0 {
		c.Clouds = 10
	}
}

// Validate rejects negative scales.
func (c ProfileConfig) Validate() error {
	if c.LoadScale < 0 || c.WindScale < 0 || c.SolarScale < 0 || c.Clouds < 0 {
		return fmt.Errorf("profile scales must be non-negative")
	}
	return nil
}

// Profiles are the synthetic series of a run, sampled every DtS seconds.
// Powers are in watts, prices per MWh.
type Profiles struct {
	DtS      float64
	LoadW    []float64
	WindW    []float64
	SolarW   []float64
	NetLoadW []float64
	Price    []float64
}

// Len returns the number of samples.
func (p Profiles) Len() int { return len(p.NetLoadW) }

// Generate builds seeded load, wind, solar and price series covering
// durationS seconds. Solar peaks at mid run.
func Generate(cfg ProfileConfig, durationS, dtS float64) (Profiles, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Profiles{}, err
	}
	if dtS <= 0 || durationS < dtS {
		return Profiles{}, fmt.Errorf("duration %gs and step %gs give no samples", durationS, dtS)
	}
	n := int(durationS / dtS)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed*31+1))
	p := Profiles{
		DtS:      dtS,
		LoadW:    make([]float64, n),
		WindW:    make([]float64, n),
		SolarW:   make([]float64, n),
		NetLoadW: make([]float64, n),
		Price:    make([]float64, n),
	}
	noon := durationS / 2
	for i := 0; i < n; i++ {
		t := float64(i) * dtS
		load := 10e6 + 5e6*math.Sin(2*math.Pi*(t-6*3600)/day) + 3e6*math.Sin(4*math.Pi*(t-9*3600)/day)
		p.LoadW[i] = cfg.LoadScale * (load + 0.5e6*rng.NormFloat64())

		wind := 5e6*(math.Sin(2*math.Pi*t/day)+1.5) + 1e6*rng.NormFloat64()
		p.WindW[i] = cfg.WindScale * math.Max(0, wind)

		intensity := 1 - (t-noon)*(t-noon)/(noon*noon)
		p.SolarW[i] = cfg.SolarScale * 8e6 * math.Max(0, intensity)

		p.Price[i] = TOUPrice(t)
	}
	applyClouds(p.SolarW, cfg.Clouds, dtS, rng)
	for i := range p.NetLoadW {
		p.NetLoadW[i] = p.LoadW[i] - p.WindW[i] - p.SolarW[i]
	}
	return p, nil
}

// applyClouds attenuates random windows of 5 to 30 minutes by 40 to 80%.
func applyClouds(solar []float64, clouds int, dtS float64, rng *rand.Rand) {
	span := int(3600 / dtS)
	if len(solar) <= span {
		return
	}
	for c := 0; c < clouds; c++ {
		start := rng.IntN(len(solar) - span)
		length := int((300 + rng.Float64()*1500) / dtS)
		f := 0.2 + 0.4*rng.Float64()
		for i := start; i < start+length && i < len(solar); i++ {
			solar[i] *= f
		}
	}
}

// TOUPrice is the time-of-use grid price at t seconds: off-peak 150 from
// midnight to 6h, peaks of 600 (10h-15h) and 700 (18h-21h), 300 otherwise.
func TOUPrice(t float64) float64 {
	h := math.Mod(t/3600, 24)
	switch {
	case h < 6:
		return 150
	case h >= 10 && h < 15:
		return 600
	case h >= 18 && h < 21:
		return 700
	default:
		return 300
	}
}

// Downsample returns n samples of xs starting at from with the given stride.
// It stops early at the end of xs.
func Downsample(xs []float64, from, stride, n int) []float64 {
	out := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		i := from + k*stride
		if i >= len(xs) {
			break
		}
		out = append(out, xs[i])
	}
	return out
}

// Window returns up to n samples of xs starting at from.
func Window(xs []float64, from, n int) []float64 {
	if from >= len(xs) {
		return nil
	}
	end := from + n
	if end > len(xs) {
		end = len(xs)
	}
	return xs[from:end]
}
