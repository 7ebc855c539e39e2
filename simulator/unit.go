package simulator

import (
	"fmt"
	"math"
	"sync"

	"github.com/kilianp07/hess/core/dispatch"
	"github.com/kilianp07/hess/core/factory"
	"github.com/kilianp07/hess/core/model"
	"github.com/kilianp07/hess/core/physics"
)

// UnitConfig describes one storage asset. Ratings are in MW.
type UnitConfig struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	// RatingMW sets both directions unless ChargeRatingMW is given.
	RatingMW       float64              `json:"rating_mw"`
	ChargeRatingMW float64              `json:"charge_rating_mw"`
	SOCMin         float64              `json:"soc_min"`
	SOCMax         float64              `json:"soc_max"`
	InitialSOC     float64              `json:"initial_soc"`
	OMCostPerMWh   float64              `json:"om_cost_per_mwh"`
	SOH            float64              `json:"soh"`
	MinPowerRatio  float64              `json:"min_power_ratio"`
	Commitment     bool                 `json:"commitment"`
	Physics        factory.ModuleConfig `json:"physics"`
}

// Params builds the validated static parameters.
func (c UnitConfig) Params() (model.Params, error) {
	role, err := model.ParseRole(c.Role)
	if err != nil {
		return model.Params{}, fmt.Errorf("asset %s: %w", c.ID, err)
	}
	phy, err := physics.New(c.Physics)
	if err != nil {
		return model.Params{}, fmt.Errorf("asset %s: physics: %w", c.ID, err)
	}
	socMax := c.SOCMax
	if socMax == 0 {
		socMax = 1
	}
	p := model.Params{
		ID:               c.ID,
		Role:             role,
		SOCMin:           c.SOCMin,
		SOCMax:           socMax,
		ChargeRatingW:    dispatch.MWToW(c.ChargeRatingMW),
		DischargeRatingW: dispatch.MWToW(c.RatingMW),
		OMCostPerMWh:     c.OMCostPerMWh,
		SOH:              c.SOH,
		MinPowerRatio:    c.MinPowerRatio,
		Commitment:       c.Commitment,
		Physics:          phy,
	}.Normalize()
	return p, p.Validate()
}

// Unit is the reference plant model. It integrates the same linear SOC
// recursion the optimizers use and clamps every command to what the
// store can deliver during one step.
type Unit struct {
	mu      sync.Mutex
	p       model.Params
	coef    physics.Coefficients
	derater physics.Derater
	soc     float64
	lastW   float64
}

// NewUnit builds a unit stepping dtSeconds per UpdateState call.
func NewUnit(p model.Params, soc, dtSeconds float64) (*Unit, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if dtSeconds <= 0 {
		return nil, fmt.Errorf("asset %s: step %gs must be positive", p.ID, dtSeconds)
	}
	if soc < 0 || soc > 1 {
		return nil, fmt.Errorf("asset %s: initial soc %g outside [0,1]", p.ID, soc)
	}
	u := &Unit{p: p, coef: p.Coefficients(dispatch.Hours(dtSeconds)), soc: soc}
	if d, ok := p.Physics.(physics.Derater); ok {
		u.derater = d
	}
	return u, nil
}

// NewUnitFromConfig builds a unit from its configuration. A zero initial
// SOC starts the unit half way between its bounds.
func NewUnitFromConfig(c UnitConfig, dtSeconds float64) (*Unit, error) {
	p, err := c.Params()
	if err != nil {
		return nil, err
	}
	soc := c.InitialSOC
	if soc == 0 {
		soc = p.MidSOC()
	}
	return NewUnit(p, soc, dtSeconds)
}

func (u *Unit) ID() string           { return u.p.ID }
func (u *Unit) Params() model.Params { return u.p }

func (u *Unit) SOC() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.soc
}

// LastPowerW returns the command actually applied by the last update.
func (u *Unit) LastPowerW() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastW
}

// State maps the SOC onto the technology's physical quantity.
func (u *Unit) State() (string, float64) {
	return u.p.Physics.State(u.SOC())
}

func (u *Unit) AvailableChargePower() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.chargeLimitW()
}

func (u *Unit) AvailableDischargePower() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dischargeLimitW()
}

func (u *Unit) factor() float64 {
	if u.derater == nil {
		return 1
	}
	return u.derater.PowerFactor(u.soc)
}

// chargeLimitW is the largest charge that keeps SOC at or below SOCMax.
func (u *Unit) chargeLimitW() float64 {
	if u.soc >= u.p.SOCMax {
		return 0
	}
	w := u.p.ChargeRatingW * u.factor()
	if u.coef.Charge > 0 {
		head := (u.p.SOCMax - u.coef.Retention*u.soc) / u.coef.Charge
		w = math.Min(w, dispatch.MWToW(math.Max(head, 0)))
	}
	return w
}

// dischargeLimitW is the largest discharge that keeps SOC at or above SOCMin.
func (u *Unit) dischargeLimitW() float64 {
	if u.soc <= u.p.SOCMin {
		return 0
	}
	w := u.p.DischargeRatingW * u.factor()
	if u.coef.Discharge > 0 {
		head := (u.coef.Retention*u.soc - u.p.SOCMin) / u.coef.Discharge
		w = math.Min(w, dispatch.MWToW(math.Max(head, 0)))
	}
	return w
}

// UpdateState applies the signed command for one step: positive discharges,
// negative charges and zero idles. Commands are clamped to the available
// power, and commands below the minimum stable load idle the unit.
func (u *Unit) UpdateState(powerW float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	w := math.Max(-u.chargeLimitW(), math.Min(powerW, u.dischargeLimitW()))
	rating := u.p.DischargeRatingW
	if w < 0 {
		rating = u.p.ChargeRatingW
	}
	if math.Abs(w) < u.p.MinPowerRatio*rating {
		w = 0
	}
	mw := dispatch.WToMW(w)
	u.soc = u.coef.Next(u.soc, math.Max(-mw, 0), math.Max(mw, 0))
	u.soc = math.Max(0, math.Min(1, u.soc))
	u.lastW = w
}
