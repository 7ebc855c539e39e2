package dispatch

import (
	"fmt"
	"math"

	"github.com/kilianp07/hess/core/model"
	"github.com/kilianp07/hess/core/physics"
	"github.com/kilianp07/hess/core/solver"
)

// cycleCost makes simultaneous charge and discharge strictly worse than
// idling when an asset has no O&M cost.
const cycleCost = 1e-6

// storageOpts parameterises the variables and constraints of one asset.
type storageOpts struct {
	prefix  string
	steps   int
	dtHours float64
	// weight scales every cost term, e.g. a scenario probability.
	weight    float64
	limit     *Limit
	soft      bool
	slackW    float64
	terminalW float64
	commit    bool
}

func newStorageOpts(cfg Config, prm model.Params, prefix string, steps int, dt, weight float64, limits map[string]Limit) storageOpts {
	o := storageOpts{
		prefix:    prefix,
		steps:     steps,
		dtHours:   dt,
		weight:    weight,
		soft:      !cfg.HardSOC,
		slackW:    cfg.Weights.SOCSlack,
		terminalW: cfg.Weights.Terminal,
		commit:    cfg.UnitCommitment && prm.Commitment,
	}
	if l, ok := limits[prm.ID]; ok {
		o.limit = &l
	}
	return o
}

// storageVars indexes the variables of one asset. The energy state
// E = soc*capacity (MWh) is used instead of soc to keep coefficients near
// unity.
type storageVars struct {
	params model.Params
	cap    float64
	coef   physics.Coefficients
	soc0   float64
	ch     []int
	dis    []int
	e      []int
}

// addStorage appends the asset model: power bounds, the SOC recursion,
// soft or hard SOC bounds, optional unit commitment and terminal penalty.
func addStorage(p *solver.Problem, prm model.Params, soc0 float64, o storageOpts) *storageVars {
	capMWh := prm.CapacityMWh()
	c := prm.Coefficients(o.dtHours)
	gc, gd := c.Charge*capMWh, c.Discharge*capMWh
	chMax, disMax := WToMW(prm.ChargeRatingW), WToMW(prm.DischargeRatingW)
	om := o.weight * (prm.OMCostPerMWh*o.dtHours + cycleCost)
	lo, hi := prm.SOCMin*capMWh, prm.SOCMax*capMWh

	eLo, eHi := 0.0, solver.Inf
	if !o.soft {
		eLo, eHi = lo, hi
	}
	v := &storageVars{params: prm, cap: capMWh, coef: c, soc0: soc0}
	name := func(kind string, t int) string { return fmt.Sprintf("%s%s[%s,%d]", o.prefix, kind, prm.ID, t) }

	for t := 0; t < o.steps; t++ {
		cmax, dmax := chMax, disMax
		if t == 0 && o.limit != nil {
			cmax = math.Max(0, math.Min(cmax, o.limit.ChargeMW))
			dmax = math.Max(0, math.Min(dmax, o.limit.DischargeMW))
		}
		ch := p.AddVar(name("ch", t), 0, cmax, om)
		dis := p.AddVar(name("dis", t), 0, dmax, om)
		e := p.AddVar(name("e", t+1), eLo, eHi, 0)

		terms := []solver.Term{solver.T(e, 1), solver.T(ch, -gc), solver.T(dis, gd)}
		rhs := 0.0
		if t == 0 {
			rhs = c.Retention * soc0 * capMWh
		} else {
			terms = append(terms, solver.T(v.e[t-1], -c.Retention))
		}
		p.AddConstraint(name("soc", t), solver.Equal, rhs, terms...)

		if o.soft {
			w := o.weight * o.slackW / capMWh
			sLo := p.AddVar(name("slo", t), 0, solver.Inf, w)
			sHi := p.AddVar(name("shi", t), 0, solver.Inf, w)
			p.AddConstraint(name("min", t), solver.GreaterEq, lo, solver.T(e, 1), solver.T(sLo, 1))
			p.AddConstraint(name("max", t), solver.LessEq, hi, solver.T(e, 1), solver.T(sHi, -1))
		}
		if o.commit {
			uc := p.AddBinary(name("uc", t), 0)
			ud := p.AddBinary(name("ud", t), 0)
			p.AddConstraint(name("chon", t), solver.LessEq, 0, solver.T(ch, 1), solver.T(uc, -cmax))
			p.AddConstraint(name("dison", t), solver.LessEq, 0, solver.T(dis, 1), solver.T(ud, -dmax))
			if r := prm.MinPowerRatio; r > 0 {
				p.AddConstraint(name("chmin", t), solver.GreaterEq, 0, solver.T(ch, 1), solver.T(uc, -r*chMax))
				p.AddConstraint(name("dismin", t), solver.GreaterEq, 0, solver.T(dis, 1), solver.T(ud, -r*disMax))
			}
			p.AddConstraint(name("excl", t), solver.LessEq, 1, solver.T(uc, 1), solver.T(ud, 1))
		}
		v.ch = append(v.ch, ch)
		v.dis = append(v.dis, dis)
		v.e = append(v.e, e)
	}

	if o.terminalW > 0 && o.steps > 0 {
		w := o.weight * o.terminalW / capMWh
		tp := p.AddVar(name("tp", o.steps), 0, solver.Inf, w)
		tn := p.AddVar(name("tn", o.steps), 0, solver.Inf, w)
		p.AddConstraint(name("term", o.steps), solver.Equal, prm.MidSOC()*capMWh,
			solver.T(v.e[o.steps-1], 1), solver.T(tp, -1), solver.T(tn, 1))
	}
	return v
}

// netTerms returns discharge minus charge terms at step t.
func (v *storageVars) netTerms(t int) []solver.Term {
	return []solver.Term{solver.T(v.dis[t], 1), solver.T(v.ch[t], -1)}
}

// addTracking adds sum(terms) - target = pos - neg with |pos+neg| costed
// at w per MW.
func addTracking(p *solver.Problem, name string, target, w float64, terms []solver.Term) {
	pos := p.AddVar(name+"+", 0, solver.Inf, w)
	neg := p.AddVar(name+"-", 0, solver.Inf, w)
	terms = append(terms, solver.T(pos, -1), solver.T(neg, 1))
	p.AddConstraint(name, solver.Equal, target, terms...)
}

// plan extracts the trajectory from a solution, snapping solver noise
// below tiny to zero.
func (v *storageVars) plan(x []float64) AssetPlan {
	const tiny = 1e-9
	n := len(v.ch)
	a := AssetPlan{
		ID:          v.params.ID,
		ChargeMW:    make([]float64, n),
		DischargeMW: make([]float64, n),
		SOC:         make([]float64, n+1),
	}
	a.SOC[0] = v.soc0
	for t := 0; t < n; t++ {
		a.ChargeMW[t] = snap(x[v.ch[t]], tiny)
		a.DischargeMW[t] = snap(x[v.dis[t]], tiny)
		a.SOC[t+1] = x[v.e[t]] / v.cap
	}
	return a
}

func snap(x, tiny float64) float64 {
	if x < tiny {
		return 0
	}
	return x
}
