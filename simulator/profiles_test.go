package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestGenerateIsSeededAndBalanced(t *testing.T) {
	cfg := ProfileConfig{Seed: 3}
	a, err := Generate(cfg, 7200, 5)
	require.NoError(t, err)
	b, err := Generate(cfg, 7200, 5)
	require.NoError(t, err)
	require.Equal(t, 1440, a.Len())
	assert.Equal(t, a.NetLoadW, b.NetLoadW)

	for i := range a.NetLoadW {
		assert.InDelta(t, a.LoadW[i]-a.WindW[i]-a.SolarW[i], a.NetLoadW[i], 1e-6)
		assert.GreaterOrEqual(t, a.WindW[i], 0.0)
		assert.GreaterOrEqual(t, a.SolarW[i], 0.0)
	}
	assert.LessOrEqual(t, floats.Max(a.SolarW), 8e6)

	c, err := Generate(ProfileConfig{Seed: 4}, 7200, 5)
	require.NoError(t, err)
	assert.NotEqual(t, a.LoadW, c.LoadW)
}

func TestGenerateScales(t *testing.T) {
	p, err := Generate(ProfileConfig{Seed: 1, LoadScale: 0.5, WindScale: 1e-9, SolarScale: 1e-9}, 600, 60)
	require.NoError(t, err)
	assert.Less(t, floats.Max(p.LoadW), 10e6)

	_, err = Generate(ProfileConfig{LoadScale: -1}, 600, 60)
	assert.Error(t, err)
	_, err = Generate(ProfileConfig{}, 1, 5)
	assert.Error(t, err)
}

func TestTOUPrice(t *testing.T) {
	cases := map[float64]float64{
		0:         150,
		5 * 3600:  150,
		8 * 3600:  300,
		12 * 3600: 600,
		19 * 3600: 700,
		22 * 3600: 300,
		26 * 3600: 150,
	}
	for ts, want := range cases {
		assert.Equal(t, want, TOUPrice(ts), "t=%v", ts)
	}
}

func TestDownsampleAndWindow(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4, 5, 6}
	assert.Equal(t, []float64{1, 3, 5}, Downsample(xs, 1, 2, 5))
	assert.Equal(t, []float64{0, 3}, Downsample(xs, 0, 3, 2))
	assert.Equal(t, []float64{5, 6}, Window(xs, 5, 4))
	assert.Nil(t, Window(xs, 7, 2))
}
