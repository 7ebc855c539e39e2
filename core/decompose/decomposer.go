// Package decompose splits a power signal into low, mid and high frequency
// bands with a wavelet-packet filter bank. The low band feeds the energy
// assets, the mid band the smoothing assets and the high band the power
// assets.
package decompose

import (
	"errors"
	"fmt"
)

// ErrLeafCount reports a packet tree whose leaf count differs from 2^level.
// Partitioning such a tree would silently misassign bands.
var ErrLeafCount = errors.New("wavelet packet leaf count mismatch")

// Config selects the filter bank and the band-to-group assignment.
type Config struct {
	Wavelet string `json:"wavelet"`
	Level   int    `json:"level"`
	// LowBands and MidBands count leaves from the lowest frequency up.
	// The remaining leaves form the high band.
	LowBands int `json:"low_bands"`
	MidBands int `json:"mid_bands"`
}

// SetDefaults applies db4 at level 3 with a [2,2,4] split.
func (c *Config) SetDefaults() {
	if c.Wavelet == "" {
		c.Wavelet = "db4"
	}
	if c.Level == 0 {
		c.Level = 3
	}
	if c.LowBands == 0 {
		c.LowBands = 2
	}
	if c.MidBands == 0 {
		c.MidBands = 2
	}
}

// Validate checks that every group receives at least one leaf.
func (c Config) Validate() error {
	if c.Level < 2 || c.Level > 10 {
		return fmt.Errorf("decomposition level %d outside [2,10]", c.Level)
	}
	leaves := 1 << c.Level
	if c.LowBands < 1 || c.MidBands < 1 || c.LowBands+c.MidBands >= leaves {
		return fmt.Errorf("band split low=%d mid=%d leaves no high band out of %d", c.LowBands, c.MidBands, leaves)
	}
	_, err := LookupWavelet(c.Wavelet)
	return err
}

// Bands is the three-way split of a signal. Each series has the input length.
type Bands struct {
	Low  []float64
	Mid  []float64
	High []float64
}

// Sum returns low+mid+high.
func (b Bands) Sum() []float64 {
	out := make([]float64, len(b.Low))
	for i := range out {
		out[i] = b.Low[i] + b.Mid[i] + b.High[i]
	}
	return out
}

// buildTree can be replaced in tests to simulate a broken transform.
var buildTree = decomposeTree

// Decomposer is stateless. It is safe for concurrent use.
type Decomposer struct {
	wavelet Wavelet
	level   int
	groups  [3]map[string]bool
}

// New validates cfg and precomputes the leaf groups.
func New(cfg Config) (*Decomposer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w, _ := LookupWavelet(cfg.Wavelet)
	d := &Decomposer{wavelet: w, level: cfg.Level}
	for i, p := range frequencyOrder(cfg.Level) {
		g := 2
		switch {
		case i < cfg.LowBands:
			g = 0
		case i < cfg.LowBands+cfg.MidBands:
			g = 1
		}
		if d.groups[g] == nil {
			d.groups[g] = map[string]bool{}
		}
		d.groups[g][p] = true
	}
	return d, nil
}

// MinLength is the shortest input decomposed. Shorter inputs yield zero bands.
func (d *Decomposer) MinLength() int {
	n := 1 << d.level
	if f := d.wavelet.Len(); f > n {
		return f
	}
	return n
}

// Level returns the decomposition depth.
func (d *Decomposer) Level() int { return d.level }

// Decompose splits signal into three bands. Inputs shorter than MinLength
// return zero bands and no error. A tree with the wrong number of leaves
// returns ErrLeafCount.
func (d *Decomposer) Decompose(signal []float64) (Bands, error) {
	n := len(signal)
	if n < d.MinLength() {
		return Bands{Low: make([]float64, n), Mid: make([]float64, n), High: make([]float64, n)}, nil
	}
	t := buildTree(signal, d.wavelet, d.level)
	if want := 1 << d.level; len(t.leaves) != want {
		return Bands{}, fmt.Errorf("%w: got %d, want %d", ErrLeafCount, len(t.leaves), want)
	}
	return Bands{
		Low:  t.reconstruct(d.groups[0]),
		Mid:  t.reconstruct(d.groups[1]),
		High: t.reconstruct(d.groups[2]),
	}, nil
}
