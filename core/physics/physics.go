// Package physics holds the closed set of storage technology models used by
// both the optimizers and the reference plants. Every model reduces its
// physical conversion chain to a linear state-of-charge recursion
//
//	soc[t+1] = Retention*soc[t] + Charge*charge_MW - Discharge*discharge_MW
//
// so the optimizer constraint and the plant update stay identical.
package physics

import (
	"fmt"
	"math"
	"strings"
)

const (
	joulesPerMWh = 3.6e9
	kWhPerMWh    = 1000.0
)

// Kind tags a physics model variant.
type Kind int

const (
	KindGenericBattery Kind = iota + 1
	KindPumpedHydro
	KindHydrogen
	KindThermal
	KindCompressedAir
	KindFlywheel
	KindSupercapacitor
	KindSMES
)

var kindNames = map[Kind]string{
	KindGenericBattery: "generic_battery",
	KindPumpedHydro:    "pumped_hydro",
	KindHydrogen:       "hydrogen",
	KindThermal:        "thermal",
	KindCompressedAir:  "compressed_air",
	KindFlywheel:       "flywheel",
	KindSupercapacitor: "supercapacitor",
	KindSMES:           "smes",
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind converts a configuration name into a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown physics kind %q", s)
}

// Coefficients is the linear SOC recursion for one step with powers in MW.
type Coefficients struct {
	Retention float64
	Charge    float64
	Discharge float64
}

// Next applies the recursion to soc.
func (c Coefficients) Next(soc, chargeMW, dischargeMW float64) float64 {
	return c.Retention*soc + c.Charge*chargeMW - c.Discharge*dischargeMW
}

// Derate scales the power terms for a capacity reduced to soh.
func Derate(c Coefficients, soh float64) Coefficients {
	if soh <= 0 || soh == 1 {
		return c
	}
	c.Charge /= soh
	c.Discharge /= soh
	return c
}

// Model is implemented by the variants of this package only.
type Model interface {
	Kind() Kind
	// CapacityMWh is the energy held by a full store before discharge
	// conversion losses.
	CapacityMWh() float64
	RoundTripEfficiency() float64
	Coefficients(dtHours float64) Coefficients
	// State maps a normalized SOC onto the technology's physical state.
	State(soc float64) (name string, value float64)
	Validate() error
	sealed()
}

// Derater is implemented by models whose deliverable power shrinks with the
// state of charge, e.g. torque or current limited machines.
type Derater interface {
	PowerFactor(soc float64) float64
}

// SOCDelta returns the SOC change for one step.
func SOCDelta(m Model, soc, chargeMW, dischargeMW, dtHours float64) float64 {
	return m.Coefficients(dtHours).Next(soc, chargeMW, dischargeMW) - soc
}

func batteryForm(capMWh, etaC, etaD, lossPerHour, dtHours float64) Coefficients {
	return Coefficients{
		Retention: retention(lossPerHour, dtHours),
		Charge:    etaC * dtHours / capMWh,
		Discharge: dtHours / (etaD * capMWh),
	}
}

func retention(lossPerHour, dtHours float64) float64 {
	if lossPerHour <= 0 {
		return 1
	}
	return math.Pow(1-lossPerHour, dtHours)
}

func unitInterval(name string, v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("%s %g outside (0,1]", name, v)
	}
	return nil
}

func positive(name string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %g", name, v)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
