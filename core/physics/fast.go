package physics

import (
	"fmt"
	"math"
)

// quadraticStore covers stores whose energy is 0.5*k*x^2 between xMin and
// xMax: rotor speed, capacitor voltage and coil current.
type quadraticStore struct {
	k, xMin, xMax float64
}

func (q quadraticStore) energyMWh() float64 {
	return 0.5 * q.k * (q.xMax*q.xMax - q.xMin*q.xMin) / joulesPerMWh
}

// at returns the state variable for a normalized usable energy.
func (q quadraticStore) at(soc float64) float64 {
	lo := q.xMin * q.xMin
	return math.Sqrt(lo + clamp01(soc)*(q.xMax*q.xMax-lo))
}

func (q quadraticStore) validate(kName, xName string) error {
	if q.xMin < 0 || q.xMax <= q.xMin {
		return fmt.Errorf("%s range [%g, %g] invalid", xName, q.xMin, q.xMax)
	}
	return positive(kName, q.k)
}

// Flywheel stores kinetic energy in a rotor. Power is torque limited, so the
// deliverable power falls with speed.
type Flywheel struct {
	Inertia           float64 `json:"inertia"`
	OmegaMin          float64 `json:"omega_min"`
	OmegaMax          float64 `json:"omega_max"`
	Efficiency        float64 `json:"efficiency"`
	SelfDischargePerH float64 `json:"self_discharge_per_hour"`
}

func (Flywheel) Kind() Kind { return KindFlywheel }
func (Flywheel) sealed()    {}

func (f Flywheel) store() quadraticStore {
	return quadraticStore{k: f.Inertia, xMin: f.OmegaMin, xMax: f.OmegaMax}
}

func (f Flywheel) CapacityMWh() float64         { return f.store().energyMWh() }
func (f Flywheel) RoundTripEfficiency() float64 { return f.Efficiency * f.Efficiency }

func (f Flywheel) Coefficients(dt float64) Coefficients {
	return batteryForm(f.CapacityMWh(), f.Efficiency, f.Efficiency, f.SelfDischargePerH, dt)
}

func (f Flywheel) State(soc float64) (string, float64) {
	return "omega_rad_s", f.store().at(soc)
}

// PowerFactor is omega/omega_max.
func (f Flywheel) PowerFactor(soc float64) float64 {
	return f.store().at(soc) / f.OmegaMax
}

func (f Flywheel) Validate() error {
	return firstErr(f.store().validate("inertia", "omega"), unitInterval("efficiency", f.Efficiency))
}

func (f *Flywheel) defaults() {
	if f.Efficiency == 0 {
		f.Efficiency = 0.95
	}
}

// Supercapacitor stores electrostatic energy. Power is current limited, so
// the deliverable power falls with terminal voltage.
type Supercapacitor struct {
	Capacitance       float64 `json:"capacitance"`
	VMin              float64 `json:"v_min"`
	VMax              float64 `json:"v_max"`
	Efficiency        float64 `json:"efficiency"`
	SelfDischargePerH float64 `json:"self_discharge_per_hour"`
}

func (Supercapacitor) Kind() Kind { return KindSupercapacitor }
func (Supercapacitor) sealed()    {}

func (s Supercapacitor) store() quadraticStore {
	return quadraticStore{k: s.Capacitance, xMin: s.VMin, xMax: s.VMax}
}

func (s Supercapacitor) CapacityMWh() float64         { return s.store().energyMWh() }
func (s Supercapacitor) RoundTripEfficiency() float64 { return s.Efficiency * s.Efficiency }

func (s Supercapacitor) Coefficients(dt float64) Coefficients {
	return batteryForm(s.CapacityMWh(), s.Efficiency, s.Efficiency, s.SelfDischargePerH, dt)
}

func (s Supercapacitor) State(soc float64) (string, float64) {
	return "voltage_v", s.store().at(soc)
}

// PowerFactor is V/V_max.
func (s Supercapacitor) PowerFactor(soc float64) float64 {
	return s.store().at(soc) / s.VMax
}

func (s Supercapacitor) Validate() error {
	return firstErr(s.store().validate("capacitance", "voltage"), unitInterval("efficiency", s.Efficiency))
}

func (s *Supercapacitor) defaults() {
	if s.Efficiency == 0 {
		s.Efficiency = 0.95
	}
}

// SMES stores magnetic energy in a superconducting coil.
type SMES struct {
	Inductance float64 `json:"inductance"`
	IMin       float64 `json:"i_min"`
	IMax       float64 `json:"i_max"`
	Efficiency float64 `json:"efficiency"`
}

func (SMES) Kind() Kind { return KindSMES }
func (SMES) sealed()    {}

func (m SMES) store() quadraticStore {
	return quadraticStore{k: m.Inductance, xMin: m.IMin, xMax: m.IMax}
}

func (m SMES) CapacityMWh() float64         { return m.store().energyMWh() }
func (m SMES) RoundTripEfficiency() float64 { return m.Efficiency * m.Efficiency }

func (m SMES) Coefficients(dt float64) Coefficients {
	return batteryForm(m.CapacityMWh(), m.Efficiency, m.Efficiency, 0, dt)
}

func (m SMES) State(soc float64) (string, float64) {
	return "current_a", m.store().at(soc)
}

func (m SMES) Validate() error {
	return firstErr(m.store().validate("inductance", "current"), unitInterval("efficiency", m.Efficiency))
}

func (m *SMES) defaults() {
	if m.Efficiency == 0 {
		m.Efficiency = 0.97
	}
}
