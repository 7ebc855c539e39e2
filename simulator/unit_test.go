package simulator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/hess/core/factory"
	"github.com/kilianp07/hess/core/model"
	"github.com/kilianp07/hess/core/physics"
)

var _ model.StorageAsset = (*Unit)(nil)

func batteryParams(capMWh, ratingMW float64) model.Params {
	return model.Params{
		ID:               "bess",
		Role:             model.RoleSmoothing,
		SOCMin:           0.1,
		SOCMax:           0.9,
		DischargeRatingW: ratingMW * 1e6,
		Physics:          physics.GenericBattery{EnergyMWh: capMWh, ChargeEfficiency: 0.9, DischargeEfficiency: 0.9},
	}.Normalize()
}

func TestUnitFollowsRecursion(t *testing.T) {
	u, err := NewUnit(batteryParams(1, 1), 0.5, 360)
	require.NoError(t, err)

	u.UpdateState(-0.5e6)
	// 0.5 MW for 0.1 h at 90% into 1 MWh.
	assert.InDelta(t, 0.5+0.045, u.SOC(), 1e-12)
	assert.Equal(t, -0.5e6, u.LastPowerW())

	u.UpdateState(0.45e6)
	assert.InDelta(t, 0.545-0.05, u.SOC(), 1e-12)

	before := u.SOC()
	u.UpdateState(0)
	assert.Equal(t, before, u.SOC(), "idle without standing loss keeps soc")
}

func TestUnitClampsToRatingAndBounds(t *testing.T) {
	u, err := NewUnit(batteryParams(1, 1), 0.5, 360)
	require.NoError(t, err)
	u.UpdateState(5e6)
	assert.Equal(t, 1e6, u.LastPowerW(), "clamped to rating")

	u, err = NewUnit(batteryParams(1, 1), 0.88, 360)
	require.NoError(t, err)
	limit := u.AvailableChargePower()
	// Headroom 0.02 at 0.09 SOC per MW.
	assert.InDelta(t, 0.02/0.09*1e6, limit, 1e-3)
	u.UpdateState(-1e6)
	assert.InDelta(t, 0.9, u.SOC(), 1e-12)
	assert.InDelta(t, 0, u.AvailableChargePower(), 1e-3)
	assert.Positive(t, u.AvailableDischargePower())

	u, err = NewUnit(batteryParams(1, 1), 0.1, 360)
	require.NoError(t, err)
	assert.Zero(t, u.AvailableDischargePower())
	u.UpdateState(1e6)
	assert.Zero(t, u.LastPowerW())
	assert.Equal(t, 0.1, u.SOC())
}

func TestUnitMinimumLoadDeadBand(t *testing.T) {
	p := batteryParams(1, 1)
	p.MinPowerRatio = 0.2
	u, err := NewUnit(p, 0.5, 60)
	require.NoError(t, err)
	u.UpdateState(1.5e5)
	assert.Zero(t, u.LastPowerW())
	assert.Equal(t, 0.5, u.SOC())
	u.UpdateState(-2.5e5)
	assert.Equal(t, -2.5e5, u.LastPowerW())
}

func TestUnitStandingLoss(t *testing.T) {
	p := batteryParams(1, 1)
	p.Physics = physics.GenericBattery{EnergyMWh: 1, ChargeEfficiency: 0.9, DischargeEfficiency: 0.9, SelfDischargePerH: 0.01}
	u, err := NewUnit(p, 0.5, 3600)
	require.NoError(t, err)
	u.UpdateState(0)
	assert.InDelta(t, 0.495, u.SOC(), 1e-12)
}

func TestUnitDeratesTorqueLimitedPower(t *testing.T) {
	fw := physics.Flywheel{Inertia: 400, OmegaMin: 100, OmegaMax: 1000, Efficiency: 0.95}
	p := model.Params{
		ID:               "fw",
		SOCMin:           0.1,
		SOCMax:           0.9,
		DischargeRatingW: 1e6,
		Physics:          fw,
	}.Normalize()
	require.Equal(t, model.RolePower, p.Role)
	u, err := NewUnit(p, 0.3, 1)
	require.NoError(t, err)
	assert.InDelta(t, fw.PowerFactor(0.3)*1e6, u.AvailableDischargePower(), 1e-6)
	assert.Less(t, u.AvailableDischargePower(), 1e6)
	name, omega := u.State()
	assert.Equal(t, "omega_rad_s", name)
	assert.InDelta(t, math.Sqrt(1e4+0.3*(1e6-1e4)), omega, 1e-9)
}

func TestNewUnitFromConfig(t *testing.T) {
	cfg := UnitConfig{
		ID:       "phs",
		RatingMW: 50,
		SOCMin:   0.1,
		SOCMax:   0.9,
		Physics: factory.ModuleConfig{Type: "pumped_hydro", Conf: map[string]any{
			"reservoir_volume_m3": 2e6, "head_m": 300,
		}},
	}
	u, err := NewUnitFromConfig(cfg, 5)
	require.NoError(t, err)
	assert.Equal(t, model.RoleEnergy, u.Params().Role)
	assert.Equal(t, 50e6, u.Params().ChargeRatingW)
	assert.InDelta(t, 0.5, u.SOC(), 1e-12)

	cfg.Role = "sideways"
	_, err = NewUnitFromConfig(cfg, 5)
	assert.Error(t, err)

	cfg.Role = ""
	cfg.Physics.Type = "perpetual_motion"
	_, err = NewUnitFromConfig(cfg, 5)
	assert.Error(t, err)

	_, err = NewUnit(batteryParams(1, 1), 1.5, 5)
	assert.Error(t, err)
	_, err = NewUnit(batteryParams(1, 1), 0.5, 0)
	assert.Error(t, err)
}
