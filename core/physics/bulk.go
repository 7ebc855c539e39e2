package physics

import "fmt"

// PumpedHydro stores energy as water volume lifted through a fixed head.
type PumpedHydro struct {
	VolumeM3          float64 `json:"reservoir_volume_m3"`
	HeadM             float64 `json:"head_m"`
	PumpEfficiency    float64 `json:"pump_efficiency"`
	TurbineEfficiency float64 `json:"turbine_efficiency"`
	WaterDensity      float64 `json:"water_density"`
	Gravity           float64 `json:"gravity"`
}

func (PumpedHydro) Kind() Kind { return KindPumpedHydro }
func (PumpedHydro) sealed()    {}

// potentialMWh is rho*g*h*V, the hydraulic energy of a full upper reservoir.
func (p PumpedHydro) potentialMWh() float64 {
	return p.WaterDensity * p.Gravity * p.HeadM * p.VolumeM3 / joulesPerMWh
}

func (p PumpedHydro) CapacityMWh() float64 { return p.potentialMWh() }
func (p PumpedHydro) RoundTripEfficiency() float64 {
	return p.PumpEfficiency * p.TurbineEfficiency
}

// Coefficients converts pumped/turbined flow into reservoir volume fraction.
func (p PumpedHydro) Coefficients(dt float64) Coefficients {
	e := p.potentialMWh()
	return Coefficients{
		Retention: 1,
		Charge:    p.PumpEfficiency * dt / e,
		Discharge: dt / (p.TurbineEfficiency * e),
	}
}

func (p PumpedHydro) State(soc float64) (string, float64) {
	return "volume_m3", clamp01(soc) * p.VolumeM3
}

func (p PumpedHydro) Validate() error {
	return firstErr(
		positive("reservoir_volume_m3", p.VolumeM3),
		positive("head_m", p.HeadM),
		positive("water_density", p.WaterDensity),
		positive("gravity", p.Gravity),
		unitInterval("pump_efficiency", p.PumpEfficiency),
		unitInterval("turbine_efficiency", p.TurbineEfficiency),
	)
}

func (p *PumpedHydro) defaults() {
	if p.WaterDensity == 0 {
		p.WaterDensity = 1000
	}
	if p.Gravity == 0 {
		p.Gravity = 9.81
	}
	if p.PumpEfficiency == 0 {
		p.PumpEfficiency = 0.9
	}
	if p.TurbineEfficiency == 0 {
		p.TurbineEfficiency = 0.9
	}
}

// Hydrogen couples an electrolyzer, a compressor, a tank and a fuel cell.
// The state is the stored hydrogen mass.
type Hydrogen struct {
	TankKg             float64 `json:"tank_capacity_kg"`
	ElectrolyzerKWhKg  float64 `json:"electrolyzer_kwh_per_kg"`
	CompressorRatio    float64 `json:"compressor_ratio"`
	FuelCellEfficiency float64 `json:"fuel_cell_efficiency"`
	LHVKWhKg           float64 `json:"lhv_kwh_per_kg"`
	LeakPerDay         float64 `json:"leak_rate_per_day"`
}

func (Hydrogen) Kind() Kind { return KindHydrogen }
func (Hydrogen) sealed()    {}

func (h Hydrogen) CapacityMWh() float64 {
	return h.TankKg * h.LHVKWhKg / kWhPerMWh
}

func (h Hydrogen) RoundTripEfficiency() float64 {
	return (1 - h.CompressorRatio) * h.LHVKWhKg * h.FuelCellEfficiency / h.ElectrolyzerKWhKg
}

// Coefficients maps electrolyzer input to produced kg (net of compression)
// and fuel cell output to consumed kg.
func (h Hydrogen) Coefficients(dt float64) Coefficients {
	producedPerMWh := (1 - h.CompressorRatio) * kWhPerMWh / h.ElectrolyzerKWhKg
	consumedPerMWh := kWhPerMWh / (h.LHVKWhKg * h.FuelCellEfficiency)
	return Coefficients{
		Retention: retention(h.LeakPerDay, dt/24),
		Charge:    producedPerMWh * dt / h.TankKg,
		Discharge: consumedPerMWh * dt / h.TankKg,
	}
}

func (h Hydrogen) State(soc float64) (string, float64) {
	return "mass_kg", clamp01(soc) * h.TankKg
}

func (h Hydrogen) Validate() error {
	if h.CompressorRatio < 0 || h.CompressorRatio >= 1 {
		return fmt.Errorf("compressor_ratio %g outside [0,1)", h.CompressorRatio)
	}
	return firstErr(
		positive("tank_capacity_kg", h.TankKg),
		positive("electrolyzer_kwh_per_kg", h.ElectrolyzerKWhKg),
		positive("lhv_kwh_per_kg", h.LHVKWhKg),
		unitInterval("fuel_cell_efficiency", h.FuelCellEfficiency),
	)
}

func (h *Hydrogen) defaults() {
	if h.ElectrolyzerKWhKg == 0 {
		h.ElectrolyzerKWhKg = 50
	}
	if h.LHVKWhKg == 0 {
		h.LHVKWhKg = 33.3
	}
	if h.FuelCellEfficiency == 0 {
		h.FuelCellEfficiency = 0.55
	}
}

// Thermal is a sensible-heat store charged by a resistive heater and
// discharged through a heat engine.
type Thermal struct {
	MassKg             float64 `json:"mass_kg"`
	SpecificHeat       float64 `json:"specific_heat"`
	TMinK              float64 `json:"t_min_k"`
	TMaxK              float64 `json:"t_max_k"`
	HeaterEfficiency   float64 `json:"heater_efficiency"`
	EngineEfficiency   float64 `json:"engine_efficiency"`
	LossPercentPerHour float64 `json:"loss_percent_per_hour"`
}

func (Thermal) Kind() Kind { return KindThermal }
func (Thermal) sealed()    {}

// heatMWh is m*c*(Tmax-Tmin).
func (t Thermal) heatMWh() float64 {
	return t.MassKg * t.SpecificHeat * (t.TMaxK - t.TMinK) / joulesPerMWh
}

func (t Thermal) CapacityMWh() float64 { return t.heatMWh() }
func (t Thermal) RoundTripEfficiency() float64 {
	return t.HeaterEfficiency * t.EngineEfficiency
}

func (t Thermal) Coefficients(dt float64) Coefficients {
	h := t.heatMWh()
	return Coefficients{
		Retention: retention(t.LossPercentPerHour/100, dt),
		Charge:    t.HeaterEfficiency * dt / h,
		Discharge: dt / (t.EngineEfficiency * h),
	}
}

func (t Thermal) State(soc float64) (string, float64) {
	return "temperature_k", t.TMinK + clamp01(soc)*(t.TMaxK-t.TMinK)
}

func (t Thermal) Validate() error {
	if t.TMaxK <= t.TMinK {
		return fmt.Errorf("t_max_k %g must exceed t_min_k %g", t.TMaxK, t.TMinK)
	}
	return firstErr(
		positive("mass_kg", t.MassKg),
		positive("specific_heat", t.SpecificHeat),
		unitInterval("heater_efficiency", t.HeaterEfficiency),
		unitInterval("engine_efficiency", t.EngineEfficiency),
	)
}

func (t *Thermal) defaults() {
	if t.HeaterEfficiency == 0 {
		t.HeaterEfficiency = 0.98
	}
	if t.EngineEfficiency == 0 {
		t.EngineEfficiency = 0.42
	}
}

// CompressedAir stores air mass in a cavern. Charging and generation are
// characterised by specific air mass flows per kWh.
type CompressedAir struct {
	CavernKg          float64 `json:"cavern_capacity_kg"`
	ChargeKgPerKWh    float64 `json:"charge_kg_per_kwh"`
	DischargeKgPerKWh float64 `json:"discharge_kg_per_kwh"`
}

func (CompressedAir) Kind() Kind { return KindCompressedAir }
func (CompressedAir) sealed()    {}

func (c CompressedAir) CapacityMWh() float64 {
	return c.CavernKg / c.DischargeKgPerKWh / kWhPerMWh
}

func (c CompressedAir) RoundTripEfficiency() float64 {
	return c.ChargeKgPerKWh / c.DischargeKgPerKWh
}

func (c CompressedAir) Coefficients(dt float64) Coefficients {
	return Coefficients{
		Retention: 1,
		Charge:    c.ChargeKgPerKWh * kWhPerMWh * dt / c.CavernKg,
		Discharge: c.DischargeKgPerKWh * kWhPerMWh * dt / c.CavernKg,
	}
}

func (c CompressedAir) State(soc float64) (string, float64) {
	return "air_mass_kg", clamp01(soc) * c.CavernKg
}

func (c CompressedAir) Validate() error {
	if c.ChargeKgPerKWh > c.DischargeKgPerKWh {
		return fmt.Errorf("charge_kg_per_kwh %g exceeds discharge_kg_per_kwh %g", c.ChargeKgPerKWh, c.DischargeKgPerKWh)
	}
	return firstErr(
		positive("cavern_capacity_kg", c.CavernKg),
		positive("charge_kg_per_kwh", c.ChargeKgPerKWh),
		positive("discharge_kg_per_kwh", c.DischargeKgPerKWh),
	)
}

func (c *CompressedAir) defaults() {
	if c.ChargeKgPerKWh == 0 {
		c.ChargeKgPerKWh = 0.2
	}
	if c.DischargeKgPerKWh == 0 {
		c.DischargeKgPerKWh = 1.0
	}
}
