package model

import (
	"errors"
	"fmt"

	"github.com/kilianp07/hess/core/physics"
)

// ErrInvalidParams is returned when static asset parameters are inconsistent.
var ErrInvalidParams = errors.New("invalid asset parameters")

// StorageAsset is the capability contract every storage unit exposes to the
// dispatch core. Powers are in watts; positive means discharge.
type StorageAsset interface {
	ID() string
	Params() Params
	// SOC returns the normalized state of charge consistent with the
	// asset's physical state at the moment of the call.
	SOC() float64
	// AvailableChargePower returns 0 when SOC >= SOCMax.
	AvailableChargePower() float64
	// AvailableDischargePower returns 0 when SOC <= SOCMin.
	AvailableDischargePower() float64
	// UpdateState advances the asset by one control step under the signed
	// command. Out-of-range commands are clamped, never rejected.
	UpdateState(powerW float64)
}

// Params holds the rated, construction-time attributes of an asset.
type Params struct {
	ID               string
	Role             Role
	SOCMin           float64
	SOCMax           float64
	ChargeRatingW    float64
	DischargeRatingW float64
	OMCostPerMWh     float64
	// SOH scales the usable capacity. Zero is treated as 1.
	SOH float64
	// MinPowerRatio is the minimum stable load as a fraction of rating,
	// enforced through unit commitment when Commitment is set.
	MinPowerRatio float64
	Commitment    bool
	Physics       physics.Model
}

// Normalize fills derived defaults: symmetric charge rating, SOH of 1 and
// the technology's default role.
func (p Params) Normalize() Params {
	if p.ChargeRatingW == 0 {
		p.ChargeRatingW = p.DischargeRatingW
	}
	if p.DischargeRatingW == 0 {
		p.DischargeRatingW = p.ChargeRatingW
	}
	if p.SOH == 0 {
		p.SOH = 1
	}
	if p.Role == RoleUnspecified && p.Physics != nil {
		p.Role = DefaultRole(p.Physics.Kind())
	}
	return p
}

// Validate checks the parameter invariants.
func (p Params) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidParams)
	case p.Physics == nil:
		return fmt.Errorf("%w: %s: physics model is required", ErrInvalidParams, p.ID)
	case p.SOCMin < 0 || p.SOCMax > 1 || p.SOCMin >= p.SOCMax:
		return fmt.Errorf("%w: %s: soc bounds [%g, %g]", ErrInvalidParams, p.ID, p.SOCMin, p.SOCMax)
	case p.ChargeRatingW <= 0 || p.DischargeRatingW <= 0:
		return fmt.Errorf("%w: %s: power ratings must be positive", ErrInvalidParams, p.ID)
	case p.SOH <= 0 || p.SOH > 1:
		return fmt.Errorf("%w: %s: soh %g outside (0,1]", ErrInvalidParams, p.ID, p.SOH)
	case p.MinPowerRatio < 0 || p.MinPowerRatio >= 1:
		return fmt.Errorf("%w: %s: min power ratio %g outside [0,1)", ErrInvalidParams, p.ID, p.MinPowerRatio)
	case p.OMCostPerMWh < 0:
		return fmt.Errorf("%w: %s: negative O&M cost", ErrInvalidParams, p.ID)
	}
	if p.Role == RoleUnspecified {
		return fmt.Errorf("%w: %s: role is required", ErrInvalidParams, p.ID)
	}
	if err := p.Physics.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidParams, p.ID, err)
	}
	return nil
}

// CapacityMWh is the usable energy-equivalent capacity after SOH derating.
func (p Params) CapacityMWh() float64 {
	return p.Physics.CapacityMWh() * p.soh()
}

// Efficiency is the round-trip conversion efficiency of the technology.
func (p Params) Efficiency() float64 {
	return p.Physics.RoundTripEfficiency()
}

// Coefficients returns the linear SOC recursion for a step of dtHours with
// powers expressed in MW.
func (p Params) Coefficients(dtHours float64) physics.Coefficients {
	return physics.Derate(p.Physics.Coefficients(dtHours), p.soh())
}

// MidSOC is the neutral terminal target.
func (p Params) MidSOC() float64 { return (p.SOCMin + p.SOCMax) / 2 }

func (p Params) soh() float64 {
	if p.SOH <= 0 {
		return 1
	}
	return p.SOH
}
