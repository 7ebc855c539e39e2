package dispatch

import (
	"context"
	"fmt"
	"math"

	"github.com/kilianp07/hess/core/logger"
	"github.com/kilianp07/hess/core/model"
	"github.com/kilianp07/hess/core/scenario"
	"github.com/kilianp07/hess/core/solver"
)

// UpperInput holds the measured state and forecasts for one upper solve.
// Series shorter than the horizon are edge padded.
type UpperInput struct {
	SOC       map[string]float64
	NetLoadMW []float64
	// Price is the grid price per MWh.
	Price []float64
	// ReferenceMW, when set, is tracked by the total Energy group dispatch.
	ReferenceMW []float64
	// Limits caps step-0 power per asset.
	Limits map[string]Limit
	// Scenarios selects the two-stage stochastic formulation.
	Scenarios *scenario.Set
}

// Upper is the economic dispatch optimizer of the Energy group and the
// grid exchange.
type Upper struct {
	cfg       Config
	energy    []model.Params
	smoothing []model.Params
	fb        *solver.Fallback
	log       logger.Logger
}

// NewUpper builds the optimizer for the Energy group. Smoothing assets are
// only used as recourse in the stochastic formulation.
func NewUpper(cfg Config, groups model.Groups, fb *solver.Fallback, log logger.Logger) *Upper {
	return &Upper{
		cfg:       cfg,
		energy:    paramsOf(groups.Energy),
		smoothing: paramsOf(groups.Smoothing),
		fb:        fb,
		log:       log,
	}
}

func paramsOf(assets []model.StorageAsset) []model.Params {
	out := make([]model.Params, len(assets))
	for i, a := range assets {
		out[i] = a.Params()
	}
	return out
}

func idsOf(ps []model.Params) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

// Solve returns the horizon plan. On failure the plan is zero for every
// Energy asset and for the grid, with OK false.
func (u *Upper) Solve(ctx context.Context, in UpperInput) HorizonPlan {
	if in.Scenarios != nil && in.Scenarios.Len() > 0 {
		return u.solveStochastic(ctx, in)
	}
	h, dt := u.cfg.UpperHorizon, u.cfg.UpperDtHours()
	load := PadEdge(in.NetLoadMW, h)
	price := PadEdge(in.Price, h)

	p := solver.NewProblem("upper")
	vars := make([]*storageVars, len(u.energy))
	for i, prm := range u.energy {
		vars[i] = addStorage(p, prm, in.SOC[prm.ID], u.storageOpts(prm, "", 1, in.Limits))
	}
	grid := make([]int, h)
	slacks := make([]balanceSlack, h)
	for t := 0; t < h; t++ {
		grid[t] = p.AddVar(fmt.Sprintf("grid[%d]", t), -u.cfg.GridLimitMW, u.cfg.GridLimitMW, price[t]*dt)
		terms := []solver.Term{solver.T(grid[t], 1)}
		for _, v := range vars {
			terms = append(terms, v.netTerms(t)...)
		}
		slacks[t] = u.addBalance(p, fmt.Sprintf("balance[%d]", t), load[t], 1, terms)
	}
	u.addReference(p, in.ReferenceMW, vars)

	sol, ok := u.fb.Solve(ctx, p)
	if !ok {
		u.log.Warnf("upper: no usable plan (%s), applying zero dispatch", sol.Status)
		return zeroPlan(idsOf(u.energy), in.SOC, h, dt, sol.Status, true)
	}
	plan := HorizonPlan{
		Steps:          h,
		DtHours:        dt,
		GridMW:         make([]float64, h),
		BalanceSlackMW: make([]float64, h),
		Status:         sol.Status,
		OK:             true,
		Objective:      sol.Objective,
		Backend:        sol.Backend,
	}
	for _, v := range vars {
		plan.Assets = append(plan.Assets, v.plan(sol.X))
	}
	for t, g := range grid {
		plan.GridMW[t] = sol.X[g]
		plan.BalanceSlackMW[t] = slacks[t].value(sol.X)
	}
	u.checkBalance(&plan)
	return plan
}

// checkBalance flags and logs a plan that leaves load unserved or
// surplus unabsorbed.
func (u *Upper) checkBalance(plan *HorizonPlan) {
	for t, s := range plan.BalanceSlackMW {
		if math.Abs(s) > balanceTol {
			plan.Unbalanced = true
			u.log.Warnf("upper: power balance relaxed by %.3f MW at step %d", s, t)
		}
	}
}

func (u *Upper) storageOpts(prm model.Params, prefix string, weight float64, limits map[string]Limit) storageOpts {
	return newStorageOpts(u.cfg, prm, prefix, u.cfg.UpperHorizon, u.cfg.UpperDtHours(), weight, limits)
}

// addReference makes the total Energy group dispatch track ref.
func (u *Upper) addReference(p *solver.Problem, ref []float64, vars []*storageVars) {
	if len(ref) == 0 || len(vars) == 0 {
		return
	}
	h := u.cfg.UpperHorizon
	ref = PadEdge(ref, h)
	for t := 0; t < h; t++ {
		var terms []solver.Term
		for _, v := range vars {
			terms = append(terms, v.netTerms(t)...)
		}
		addTracking(p, fmt.Sprintf("ref[%d]", t), ref[t], u.cfg.Weights.UpperTracking, terms)
	}
}

// balanceTol is the slack in MW above which a plan counts as unbalanced.
const balanceTol = 1e-6

// balanceSlack indexes the slack pair of one balance row. Both indices are
// -1 under strict balance.
type balanceSlack struct {
	pos, neg int
}

// value is the load left unserved at x, negative for unabsorbed surplus.
func (b balanceSlack) value(x []float64) float64 {
	if b.pos < 0 {
		return 0
	}
	return x[b.pos] - x[b.neg]
}

// addBalance adds sum(terms) = load, with a penalized slack pair unless
// strict balance is configured.
func (u *Upper) addBalance(p *solver.Problem, name string, load, weight float64, terms []solver.Term) balanceSlack {
	b := balanceSlack{pos: -1, neg: -1}
	if !u.cfg.StrictBalance {
		w := weight * u.cfg.Weights.BalanceSlack
		b.pos = p.AddVar(name+"+", 0, solver.Inf, w)
		b.neg = p.AddVar(name+"-", 0, solver.Inf, w)
		terms = append(terms, solver.T(b.pos, 1), solver.T(b.neg, -1))
	}
	p.AddConstraint(name, solver.Equal, load, terms...)
	return b
}
