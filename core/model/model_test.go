package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/hess/core/physics"
)

type fakeAsset struct {
	p   Params
	soc float64
}

func (f *fakeAsset) ID() string                       { return f.p.ID }
func (f *fakeAsset) Params() Params                   { return f.p }
func (f *fakeAsset) SOC() float64                     { return f.soc }
func (f *fakeAsset) AvailableChargePower() float64    { return f.p.ChargeRatingW }
func (f *fakeAsset) AvailableDischargePower() float64 { return f.p.DischargeRatingW }
func (f *fakeAsset) UpdateState(float64)              {}

func battery() physics.Model {
	return physics.GenericBattery{EnergyMWh: 40, ChargeEfficiency: 0.95, DischargeEfficiency: 0.95}
}

func validParams(id string) Params {
	return Params{ID: id, SOCMin: 0.1, SOCMax: 0.9, DischargeRatingW: 20e6, Physics: battery()}.Normalize()
}

func TestNormalizeDefaults(t *testing.T) {
	p := validParams("bess")
	assert.Equal(t, 20e6, p.ChargeRatingW)
	assert.Equal(t, 1.0, p.SOH)
	assert.Equal(t, RoleSmoothing, p.Role)
	require.NoError(t, p.Validate())

	tagged := Params{ID: "fw", Role: RoleSmoothing, Physics: physics.Flywheel{Inertia: 1, OmegaMax: 2, Efficiency: 1}}.Normalize()
	assert.Equal(t, RoleSmoothing, tagged.Role, "explicit tag wins over technology default")
}

func TestValidateRejectsBadBounds(t *testing.T) {
	p := validParams("bess")
	p.SOCMin, p.SOCMax = 0.9, 0.1
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidParams))

	p = validParams("bess")
	p.SOH = 1.5
	assert.Error(t, p.Validate())

	p = validParams("bess")
	p.Physics = physics.GenericBattery{}
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)

	p = validParams("")
	assert.Error(t, p.Validate())
}

func TestCapacityAndCoefficientsFollowSOH(t *testing.T) {
	p := validParams("bess")
	p.SOH = 0.8
	assert.InDelta(t, 32, p.CapacityMWh(), 1e-12)
	c := p.Coefficients(1)
	assert.InDelta(t, 0.95/32, c.Charge, 1e-12)
	assert.InDelta(t, 0.5, p.MidSOC(), 1e-12)
	assert.InDelta(t, 0.9025, p.Efficiency(), 1e-12)
}

func TestPartitionSinglePass(t *testing.T) {
	phs := validParams("upper")
	phs.Role = RoleEnergy
	sc := validParams("cap")
	sc.Role = RolePower
	assets := []StorageAsset{
		&fakeAsset{p: phs},
		&fakeAsset{p: validParams("bess")},
		&fakeAsset{p: sc},
	}
	g, err := Partition(assets)
	require.NoError(t, err)
	assert.Len(t, g.Energy, 1)
	assert.Len(t, g.Smoothing, 1)
	assert.Len(t, g.Power, 1)
	assert.Len(t, g.All(), len(assets))
	assert.Equal(t, "cap", g.Of(RolePower)[0].ID())
	assert.Nil(t, g.Of(RoleUnspecified))
}

func TestPartitionErrors(t *testing.T) {
	_, err := Partition([]StorageAsset{&fakeAsset{p: validParams("a")}, &fakeAsset{p: validParams("a")}})
	assert.Error(t, err)

	untagged := validParams("b")
	untagged.Role = RoleUnspecified
	_, err = Partition([]StorageAsset{&fakeAsset{p: untagged}})
	assert.Error(t, err)
}

func TestRoleParsing(t *testing.T) {
	for _, r := range Roles {
		got, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleUnspecified, r)
	_, err = ParseRole("baseload")
	assert.Error(t, err)
}

func TestDefaultRoleByKind(t *testing.T) {
	assert.Equal(t, RoleEnergy, DefaultRole(physics.KindHydrogen))
	assert.Equal(t, RoleEnergy, DefaultRole(physics.KindCompressedAir))
	assert.Equal(t, RoleSmoothing, DefaultRole(physics.KindGenericBattery))
	assert.Equal(t, RolePower, DefaultRole(physics.KindSMES))
	assert.Equal(t, RoleUnspecified, DefaultRole(physics.Kind(99)))
}

func TestSOCSnapshot(t *testing.T) {
	snap := SOCSnapshot([]StorageAsset{&fakeAsset{p: validParams("a"), soc: 0.3}})
	assert.Equal(t, map[string]float64{"a": 0.3}, snap)
}
