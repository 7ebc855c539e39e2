package dispatch

import "fmt"

// Weights are the soft-constraint penalties. Tracking weights must exceed
// grid prices and O&M costs by several orders of magnitude to act as
// near-hard constraints.
type Weights struct {
	UpperTracking float64 `json:"upper_tracking"`
	MidTracking   float64 `json:"mid_tracking"`
	HighTracking  float64 `json:"high_tracking"`
	Terminal      float64 `json:"terminal"`
	SOCSlack      float64 `json:"soc_slack"`
	BalanceSlack  float64 `json:"balance_slack"`
}

// Config defines horizons, cadences and penalty settings of both layers.
type Config struct {
	UpperHorizon int     `json:"upper_horizon"`
	LowerHorizon int     `json:"lower_horizon"`
	UpperStepS   float64 `json:"upper_step_s"`
	LowerStepS   float64 `json:"lower_step_s"`
	GridLimitMW  float64 `json:"grid_limit_mw"`
	// HardSOC disables the penalized SOC slacks.
	HardSOC bool `json:"hard_soc"`
	// StrictBalance disables the penalized power-balance slack.
	StrictBalance  bool    `json:"strict_balance"`
	UnitCommitment bool    `json:"unit_commitment"`
	TrackLowBand   bool    `json:"track_low_band"`
	ParallelLower  bool    `json:"parallel_lower"`
	Weights        Weights `json:"weights"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.UpperHorizon == 0 {
		c.UpperHorizon = 24
	}
	if c.LowerHorizon == 0 {
		c.LowerHorizon = 12
	}
	if c.UpperStepS == 0 {
		c.UpperStepS = 900
	}
	if c.LowerStepS == 0 {
		c.LowerStepS = 5
	}
	if c.GridLimitMW == 0 {
		c.GridLimitMW = 1000
	}
	w := &c.Weights
	if w.UpperTracking == 0 {
		w.UpperTracking = 1e5
	}
	if w.MidTracking == 0 {
		w.MidTracking = 1e4
	}
	if w.HighTracking == 0 {
		w.HighTracking = 1e5
	}
	if w.SOCSlack == 0 {
		w.SOCSlack = 1e6
	}
	if w.BalanceSlack == 0 {
		w.BalanceSlack = 1e6
	}
}

// Validate checks horizons, cadences and weights.
func (c Config) Validate() error {
	if c.UpperHorizon < 1 || c.LowerHorizon < 1 {
		return fmt.Errorf("horizons must be positive (upper %d, lower %d)", c.UpperHorizon, c.LowerHorizon)
	}
	if c.LowerStepS <= 0 || c.UpperStepS < c.LowerStepS {
		return fmt.Errorf("steps must satisfy 0 < lower (%gs) <= upper (%gs)", c.LowerStepS, c.UpperStepS)
	}
	if r := c.UpperStepS / c.LowerStepS; r != float64(int(r)) {
		return fmt.Errorf("upper step %gs is not a multiple of lower step %gs", c.UpperStepS, c.LowerStepS)
	}
	if c.GridLimitMW <= 0 {
		return fmt.Errorf("grid limit must be positive")
	}
	w := c.Weights
	for name, v := range map[string]float64{
		"upper_tracking": w.UpperTracking, "mid_tracking": w.MidTracking, "high_tracking": w.HighTracking,
		"terminal": w.Terminal, "soc_slack": w.SOCSlack, "balance_slack": w.BalanceSlack,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must be non-negative", name)
		}
	}
	return nil
}

// StepsPerUpper is the number of lower steps between upper solves.
func (c Config) StepsPerUpper() int { return int(c.UpperStepS / c.LowerStepS) }

// UpperDtHours is the upper step length in hours.
func (c Config) UpperDtHours() float64 { return Hours(c.UpperStepS) }

// LowerDtHours is the lower step length in hours.
func (c Config) LowerDtHours() float64 { return Hours(c.LowerStepS) }
