package dispatch

import (
	"github.com/kilianp07/hess/core/solver"
)

// AssetPlan is the horizon trajectory of one asset in MW. SOC has one more
// entry than the power series; SOC[0] is the measured state.
type AssetPlan struct {
	ID          string
	ChargeMW    []float64
	DischargeMW []float64
	SOC         []float64
}

// NetMW returns discharge minus charge at step t.
func (a AssetPlan) NetMW(t int) float64 {
	if t < 0 || t >= len(a.ChargeMW) {
		return 0
	}
	return a.DischargeMW[t] - a.ChargeMW[t]
}

// Net returns the signed dispatch over the horizon.
func (a AssetPlan) Net() []float64 {
	out := make([]float64, len(a.ChargeMW))
	for t := range out {
		out[t] = a.NetMW(t)
	}
	return out
}

// HorizonPlan is the result of one optimizer solve. A plan that is not OK
// carries zero power for every asset and must be applied as such.
type HorizonPlan struct {
	Steps   int
	DtHours float64
	Assets  []AssetPlan
	GridMW  []float64
	// BalanceSlackMW is the load left unserved per step, negative for
	// surplus the grid and assets could not absorb. It is all zero under
	// strict balance and nil when no plan was found.
	BalanceSlackMW []float64
	// Unbalanced is set when any step needed the balance slack.
	Unbalanced bool
	Status     solver.Status
	OK         bool
	Objective  float64
	Backend    string
}

// Asset returns the plan of id.
func (p HorizonPlan) Asset(id string) (AssetPlan, bool) {
	for _, a := range p.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return AssetPlan{}, false
}

// TotalNetMW sums the asset dispatch at step t.
func (p HorizonPlan) TotalNetMW(t int) float64 {
	var s float64
	for _, a := range p.Assets {
		s += a.NetMW(t)
	}
	return s
}

// GridAt returns the grid exchange at step t or 0.
func (p HorizonPlan) GridAt(t int) float64 {
	if t < 0 || t >= len(p.GridMW) {
		return 0
	}
	return p.GridMW[t]
}

// FirstStep returns the step-0 command of every asset.
func (p HorizonPlan) FirstStep() map[string]float64 {
	out := make(map[string]float64, len(p.Assets))
	for _, a := range p.Assets {
		out[a.ID] = a.NetMW(0)
	}
	return out
}

// zeroPlan is the failure plan: no power and SOC held at its current value.
func zeroPlan(ids []string, soc map[string]float64, steps int, dt float64, status solver.Status, withGrid bool) HorizonPlan {
	p := HorizonPlan{Steps: steps, DtHours: dt, Status: status}
	for _, id := range ids {
		s := make([]float64, steps+1)
		for i := range s {
			s[i] = soc[id]
		}
		p.Assets = append(p.Assets, AssetPlan{
			ID:          id,
			ChargeMW:    make([]float64, steps),
			DischargeMW: make([]float64, steps),
			SOC:         s,
		})
	}
	if withGrid {
		p.GridMW = make([]float64, steps)
	}
	return p
}

// Limit caps the step-0 power of an asset in MW, usually from its
// currently available power.
type Limit struct {
	ChargeMW    float64
	DischargeMW float64
}
