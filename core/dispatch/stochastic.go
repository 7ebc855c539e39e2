package dispatch

import (
	"context"
	"fmt"

	"github.com/kilianp07/hess/core/solver"
)

// solveStochastic solves the two-stage program. Energy assets are first
// stage decisions shared by all scenarios. Smoothing assets and the grid
// are recourse decisions duplicated per scenario, and the objective is the
// expected recourse cost. Only the first stage is returned; GridMW is the
// expected grid exchange.
func (u *Upper) solveStochastic(ctx context.Context, in UpperInput) HorizonPlan {
	h, dt := u.cfg.UpperHorizon, u.cfg.UpperDtHours()
	set := *in.Scenarios
	if err := set.Validate(h); err != nil {
		u.log.Errorf("upper: rejecting scenario set: %v", err)
		return zeroPlan(idsOf(u.energy), in.SOC, h, dt, solver.StatusError, true)
	}
	load := PadEdge(in.NetLoadMW, h)
	price := PadEdge(in.Price, h)

	p := solver.NewProblem("upper-stochastic")
	first := make([]*storageVars, len(u.energy))
	for i, prm := range u.energy {
		first[i] = addStorage(p, prm, in.SOC[prm.ID], u.storageOpts(prm, "", 1, in.Limits))
	}
	u.addReference(p, in.ReferenceMW, first)

	grids := make([][]int, set.Len())
	slacks := make([][]balanceSlack, set.Len())
	for s, sc := range set.Scenarios {
		prob := sc.Probability
		prefix := fmt.Sprintf("s%d.", s)
		recourse := make([]*storageVars, len(u.smoothing))
		for i, prm := range u.smoothing {
			recourse[i] = addStorage(p, prm, in.SOC[prm.ID], u.storageOpts(prm, prefix, prob, in.Limits))
		}
		grids[s] = make([]int, h)
		slacks[s] = make([]balanceSlack, h)
		for t := 0; t < h; t++ {
			g := p.AddVar(fmt.Sprintf("%sgrid[%d]", prefix, t), -u.cfg.GridLimitMW, u.cfg.GridLimitMW, prob*price[t]*dt)
			grids[s][t] = g
			terms := []solver.Term{solver.T(g, 1)}
			for _, v := range first {
				terms = append(terms, v.netTerms(t)...)
			}
			for _, v := range recourse {
				terms = append(terms, v.netTerms(t)...)
			}
			slacks[s][t] = u.addBalance(p, fmt.Sprintf("%sbalance[%d]", prefix, t), load[t]+sc.Error[t], prob, terms)
		}
	}

	sol, ok := u.fb.Solve(ctx, p)
	if !ok {
		u.log.Warnf("upper: stochastic program unsolved (%s), applying zero dispatch", sol.Status)
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
	for _, v := range first {
		plan.Assets = append(plan.Assets, v.plan(sol.X))
	}
	for s, sc := range set.Scenarios {
		for t, g := range grids[s] {
			plan.GridMW[t] += sc.Probability * sol.X[g]
			plan.BalanceSlackMW[t] += sc.Probability * slacks[s][t].value(sol.X)
		}
	}
	u.checkBalance(&plan)
	return plan
}
