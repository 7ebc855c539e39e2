package physics

// GenericBattery is an electrochemical store described directly by its
// energy capacity and one-way efficiencies.
type GenericBattery struct {
	EnergyMWh           float64 `json:"capacity_mwh"`
	ChargeEfficiency    float64 `json:"charge_efficiency"`
	DischargeEfficiency float64 `json:"discharge_efficiency"`
	SelfDischargePerH   float64 `json:"self_discharge_per_hour"`
}

func (GenericBattery) Kind() Kind             { return KindGenericBattery }
func (b GenericBattery) CapacityMWh() float64 { return b.EnergyMWh }
func (b GenericBattery) RoundTripEfficiency() float64 {
	return b.ChargeEfficiency * b.DischargeEfficiency
}
func (GenericBattery) sealed() {}

func (b GenericBattery) Coefficients(dt float64) Coefficients {
	return batteryForm(b.EnergyMWh, b.ChargeEfficiency, b.DischargeEfficiency, b.SelfDischargePerH, dt)
}

func (b GenericBattery) State(soc float64) (string, float64) {
	return "energy_mwh", clamp01(soc) * b.EnergyMWh
}

func (b GenericBattery) Validate() error {
	return firstErr(
		positive("capacity_mwh", b.EnergyMWh),
		unitInterval("charge_efficiency", b.ChargeEfficiency),
		unitInterval("discharge_efficiency", b.DischargeEfficiency),
	)
}

func (b *GenericBattery) defaults() {
	if b.ChargeEfficiency == 0 {
		b.ChargeEfficiency = 0.95
	}
	if b.DischargeEfficiency == 0 {
		b.DischargeEfficiency = 0.95
	}
}
