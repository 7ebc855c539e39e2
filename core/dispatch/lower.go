package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/hess/core/logger"
	"github.com/kilianp07/hess/core/model"
	"github.com/kilianp07/hess/core/solver"
)

// LowerInput holds the band targets for one lower solve. SOC is read only
// and shared by both sub-problems.
type LowerInput struct {
	SOC    map[string]float64
	MidMW  []float64
	HighMW []float64
	Limits map[string]Limit
	// CommittedMW is the Energy group step-0 dispatch held from the upper
	// plan. It is merged into the commands unchanged.
	CommittedMW map[string]float64
}

// LowerResult carries the step-0 commands and the per-group plans.
type LowerResult struct {
	CommandsMW map[string]float64
	Smoothing  HorizonPlan
	Power      HorizonPlan
	// SmoothingErrorMW and PowerErrorMW are target minus delivered group
	// power at step 0.
	SmoothingErrorMW float64
	PowerErrorMW     float64
}

// Lower tracks the mid band with the Smoothing group and the high band
// with the Power group as two separate programs, since their capacities
// differ by orders of magnitude.
type Lower struct {
	cfg       Config
	smoothing []model.Params
	power     []model.Params
	fb        *solver.Fallback
	log       logger.Logger
}

// NewLower builds the tracking optimizer.
func NewLower(cfg Config, groups model.Groups, fb *solver.Fallback, log logger.Logger) *Lower {
	return &Lower{
		cfg:       cfg,
		smoothing: paramsOf(groups.Smoothing),
		power:     paramsOf(groups.Power),
		fb:        fb,
		log:       log,
	}
}

// Solve runs both sub-problems and keeps only their first step.
func (l *Lower) Solve(ctx context.Context, in LowerInput) LowerResult {
	h := l.cfg.LowerHorizon
	mid := PadEdge(in.MidMW, h)
	high := PadEdge(in.HighMW, h)

	var res LowerResult
	if l.cfg.ParallelLower {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			res.Smoothing = l.track(ctx, "smoothing", l.smoothing, mid, l.cfg.Weights.MidTracking, in)
		}()
		go func() {
			defer wg.Done()
			res.Power = l.track(ctx, "power", l.power, high, l.cfg.Weights.HighTracking, in)
		}()
		wg.Wait()
	} else {
		res.Smoothing = l.track(ctx, "smoothing", l.smoothing, mid, l.cfg.Weights.MidTracking, in)
		res.Power = l.track(ctx, "power", l.power, high, l.cfg.Weights.HighTracking, in)
	}

	res.CommandsMW = make(map[string]float64, len(l.smoothing)+len(l.power)+len(in.CommittedMW))
	for id, v := range in.CommittedMW {
		res.CommandsMW[id] = v
	}
	for id, v := range res.Smoothing.FirstStep() {
		res.CommandsMW[id] = v
	}
	for id, v := range res.Power.FirstStep() {
		res.CommandsMW[id] = v
	}
	res.SmoothingErrorMW = mid[0] - res.Smoothing.TotalNetMW(0)
	res.PowerErrorMW = high[0] - res.Power.TotalNetMW(0)
	return res
}

// track builds and solves one group's program.
func (l *Lower) track(ctx context.Context, name string, assets []model.Params, target []float64, w float64, in LowerInput) HorizonPlan {
	h, dt := l.cfg.LowerHorizon, l.cfg.LowerDtHours()
	if len(assets) == 0 {
		return HorizonPlan{Steps: h, DtHours: dt, Status: solver.StatusOptimal, OK: true}
	}
	p := solver.NewProblem("lower-" + name)
	vars := make([]*storageVars, len(assets))
	for i, prm := range assets {
		vars[i] = addStorage(p, prm, in.SOC[prm.ID], newStorageOpts(l.cfg, prm, "", h, dt, 1, in.Limits))
	}
	for t := 0; t < h; t++ {
		var terms []solver.Term
		for _, v := range vars {
			terms = append(terms, v.netTerms(t)...)
		}
		addTracking(p, fmt.Sprintf("track[%d]", t), target[t], w, terms)
	}

	sol, ok := l.fb.Solve(ctx, p)
	if !ok {
		l.log.Warnf("lower: %s group unsolved (%s), idling its assets", name, sol.Status)
		return zeroPlan(idsOf(assets), in.SOC, h, dt, sol.Status, false)
	}
	plan := HorizonPlan{Steps: h, DtHours: dt, Status: sol.Status, OK: true, Objective: sol.Objective, Backend: sol.Backend}
	for _, v := range vars {
		plan.Assets = append(plan.Assets, v.plan(sol.X))
	}
	return plan
}
