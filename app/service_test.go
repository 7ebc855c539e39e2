package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/hess/config"
	"github.com/kilianp07/hess/core/decompose"
	"github.com/kilianp07/hess/core/dispatch"
	"github.com/kilianp07/hess/core/factory"
	"github.com/kilianp07/hess/simulator"
)

func battery(id, role string, mwh, mw float64) simulator.UnitConfig {
	return simulator.UnitConfig{
		ID:       id,
		Role:     role,
		RatingMW: mw,
		SOCMin:   0.1,
		SOCMax:   0.9,
		Physics: factory.ModuleConfig{
			Type: "generic_battery",
			Conf: map[string]any{"capacity_mwh": mwh},
		},
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{
		EMS:        dispatch.Config{UpperHorizon: 4, LowerHorizon: 4, UpperStepS: 60, LowerStepS: 5},
		Decomposer: decompose.Config{Wavelet: "haar", Level: 2, LowBands: 1, MidBands: 1},
		Assets: []simulator.UnitConfig{
			battery("bulk", "energy", 40, 10),
			battery("bess", "smoothing", 4, 4),
			battery("sc", "power", 0.5, 4),
		},
		Simulation: simulator.Config{DurationS: 120},
	}
	cfg.SetDefaults()
	return cfg
}

func TestBuildAssetsRejectsUnknownPhysics(t *testing.T) {
	bad := battery("x", "energy", 1, 1)
	bad.Physics.Type = "steam"
	_, err := BuildAssets([]simulator.UnitConfig{bad}, 5)
	assert.Error(t, err)
}

func TestServiceSimulate(t *testing.T) {
	svc, err := New(testConfig())
	require.NoError(t, err)
	defer svc.Close()

	assert.Len(t, svc.Assets, 3)
	res, err := svc.Simulate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 24, res.Summary.Steps)
	assert.Equal(t, 2, res.Summary.UpperSolves)
	assert.Equal(t, svc.Controller.RunID(), res.Summary.RunID)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Service.Speedup = 1000
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, svc.Run(ctx))
}

func TestNewRejectsUnknownSolver(t *testing.T) {
	cfg := testConfig()
	cfg.Solver = []factory.ModuleConfig{{Type: "quantum"}}
	_, err := New(cfg)
	assert.Error(t, err)
}
