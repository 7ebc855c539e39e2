package ems

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/hess/core/decompose"
	"github.com/kilianp07/hess/core/dispatch"
	"github.com/kilianp07/hess/core/events"
	"github.com/kilianp07/hess/core/logger"
	"github.com/kilianp07/hess/core/metrics"
	"github.com/kilianp07/hess/core/model"
	"github.com/kilianp07/hess/core/mqtt"
	"github.com/kilianp07/hess/core/scenario"
	"github.com/kilianp07/hess/core/solver"
	"github.com/kilianp07/hess/internal/eventbus"
)

// StepInput holds the measurements and forecasts of one control step.
// Powers are in watts, positive for demand.
type StepInput struct {
	// NetLoadW is the measured load minus renewable generation.
	NetLoadW float64
	// UpperNetLoadW and Price are sampled at the upper step and only read
	// on steps that trigger an upper solve. A missing load forecast holds
	// the current measurement.
	UpperNetLoadW []float64
	Price         []float64
	// NetLoadForecastW is sampled at the lower step, starting at the next
	// step. Without it the current imbalance is held over the window.
	NetLoadForecastW []float64
	// Scenarios selects the stochastic upper formulation, in MW.
	Scenarios *scenario.Set
}

// StepResult reports what was applied during a step.
type StepResult struct {
	Step        int
	UpperSolved bool
	// CommandsW holds the signed command applied to every asset.
	CommandsW  map[string]float64
	NetLoadW   float64
	GridW      float64
	ImbalanceW float64
	LowW       float64
	MidW       float64
	HighW      float64

	UpperStatus     solver.Status
	SmoothingStatus solver.Status
	PowerStatus     solver.Status
	// SOC is read after the commands were applied.
	SOC map[string]float64
}

// SignalDecomposer splits a signal into frequency bands.
type SignalDecomposer interface {
	Decompose(signal []float64) (decompose.Bands, error)
}

// Controller drives the two optimizer layers. Step is serialized by a mutex;
// the layers themselves never run concurrently with asset updates.
type Controller struct {
	cfg       dispatch.Config
	assets    []model.StorageAsset
	groups    model.Groups
	dec       SignalDecomposer
	upper     *dispatch.Upper
	lower     *dispatch.Lower
	backends  []solver.Backend
	log       logger.Logger
	metrics   metrics.MetricsSink
	bus       eventbus.EventBus
	publisher mqtt.Client
	// ackTimeout is zero when acknowledgments are not awaited.
	ackTimeout time.Duration
	runID      string

	mu      sync.Mutex
	step    int
	plan    dispatch.HorizonPlan
	heldMW  map[string]float64
	gridMW  float64
	history []float64
}

// New validates the configuration, partitions the assets and builds both
// optimizer layers over a shared solver fallback.
func New(cfg dispatch.Config, decCfg decompose.Config, assets []model.StorageAsset, opts ...Option) (*Controller, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("no storage assets configured")
	}
	for _, a := range assets {
		if err := a.Params().Validate(); err != nil {
			return nil, err
		}
	}
	groups, err := model.Partition(assets)
	if err != nil {
		return nil, err
	}
	dec, err := decompose.New(decCfg)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:     cfg,
		assets:  groups.All(),
		groups:  groups,
		dec:     dec,
		log:     logger.NopLogger{},
		metrics: metrics.NopSink{},
		runID:   uuid.NewString(),
		heldMW:  map[string]float64{},
	}
	for _, o := range opts {
		o(c)
	}
	fbOpts := []solver.Option{solver.WithRunID(c.runID)}
	if rec, ok := c.metrics.(metrics.SolveRecorder); ok {
		fbOpts = append(fbOpts, solver.WithRecorder(rec))
	}
	fb := solver.NewFallback(c.backends, c.log, fbOpts...)
	c.upper = dispatch.NewUpper(cfg, groups, fb, c.log)
	c.lower = dispatch.NewLower(cfg, groups, fb, c.log)
	c.log.Infof("ems run %s: %d energy, %d smoothing, %d power assets",
		c.runID, len(groups.Energy), len(groups.Smoothing), len(groups.Power))
	return c, nil
}

// RunID identifies the controller in events, metrics and solver records.
func (c *Controller) RunID() string { return c.runID }

// Groups returns the asset partition.
func (c *Controller) Groups() model.Groups { return c.groups }

// Config returns the effective dispatch configuration.
func (c *Controller) Config() dispatch.Config { return c.cfg }

// Plan returns the last upper plan.
func (c *Controller) Plan() dispatch.HorizonPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

// Step runs one control step and applies the commands to the assets. The
// only error is a decomposition invariant violation, which leaves the
// assets untouched. Solver failures degrade to zero dispatch.
func (c *Controller) Step(ctx context.Context, in StepInput) (StepResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := StepResult{Step: c.step, NetLoadW: in.NetLoadW}
	if c.step%c.cfg.StepsPerUpper() == 0 {
		if err := c.solveUpper(ctx, in); err != nil {
			return StepResult{}, err
		}
		res.UpperSolved = true
	}
	res.UpperStatus = c.plan.Status

	heldTotal := c.gridMW
	for _, v := range c.heldMW {
		heldTotal += v
	}
	imbalance := dispatch.WToMW(in.NetLoadW) - heldTotal
	bands, off, err := c.decomposeWindow(imbalance, heldTotal, in.NetLoadForecastW)
	if err != nil {
		return StepResult{}, err
	}
	h := c.cfg.LowerHorizon
	mid := bands.Mid[off : off+h]
	high := bands.High[off : off+h]

	snapshot := model.SOCSnapshot(c.assets)
	lin := dispatch.LowerInput{
		SOC:         snapshot,
		MidMW:       mid,
		HighMW:      high,
		Limits:      limitsOf(append(append([]model.StorageAsset{}, c.groups.Smoothing...), c.groups.Power...)),
		CommittedMW: c.heldMW,
	}
	c.transition(events.LayerSmoothing, events.StateSolving, "")
	c.transition(events.LayerPower, events.StateSolving, "")
	lres := c.lower.Solve(ctx, lin)
	c.finish(events.LayerSmoothing, lres.Smoothing)
	c.finish(events.LayerPower, lres.Power)

	res.CommandsW = make(map[string]float64, len(c.assets))
	cmds := dispatch.CommandsToW(lres.CommandsMW)
	now := time.Now()
	dispatched := make([]metrics.DispatchEvent, 0, len(c.assets))
	for _, a := range c.assets {
		w := cmds[a.ID()]
		a.UpdateState(w)
		res.CommandsW[a.ID()] = w
		dispatched = append(dispatched, metrics.DispatchEvent{
			RunID:   c.runID,
			Step:    c.step,
			AssetID: a.ID(),
			Role:    a.Params().Role.String(),
			PowerW:  w,
			SOC:     a.SOC(),
			Time:    now,
		})
	}
	res.SOC = model.SOCSnapshot(c.assets)
	res.GridW = dispatch.MWToW(c.gridMW)
	res.ImbalanceW = dispatch.MWToW(imbalance)
	res.LowW = dispatch.MWToW(bands.Low[off])
	res.MidW = dispatch.MWToW(mid[0])
	res.HighW = dispatch.MWToW(high[0])
	res.SmoothingStatus = lres.Smoothing.Status
	res.PowerStatus = lres.Power.Status

	c.record(res, dispatched, now)
	c.publish(res, now)
	c.step++
	return res, nil
}

// solveUpper refreshes the held Energy group commands and grid exchange.
func (c *Controller) solveUpper(ctx context.Context, in StepInput) error {
	load := in.UpperNetLoadW
	if len(load) == 0 {
		load = []float64{in.NetLoadW}
	}
	uin := dispatch.UpperInput{
		SOC:       model.SOCSnapshot(c.assets),
		NetLoadMW: dispatch.SeriesToMW(load),
		Price:     in.Price,
		Limits:    limitsOf(c.groups.Energy),
		Scenarios: in.Scenarios,
	}
	if c.cfg.TrackLowBand {
		forecast := dispatch.PadEdge(uin.NetLoadMW, c.cfg.UpperHorizon)
		bands, err := c.dec.Decompose(forecast)
		if err != nil {
			c.log.Errorf("upper reference decomposition: %v", err)
			return err
		}
		uin.ReferenceMW = bands.Low
	}
	c.transition(events.LayerUpper, events.StateSolving, "")
	c.plan = c.upper.Solve(ctx, uin)
	c.finish(events.LayerUpper, c.plan)

	c.heldMW = c.plan.FirstStep()
	c.gridMW = c.plan.GridAt(0)
	return nil
}

// decomposeWindow splits the causal imbalance window. The returned offset
// indexes the current step inside the bands.
func (c *Controller) decomposeWindow(imbalance, heldTotal float64, forecastW []float64) (decompose.Bands, int, error) {
	h := c.cfg.LowerHorizon
	c.history = append(c.history, imbalance)
	if len(c.history) > h {
		c.history = c.history[len(c.history)-h:]
	}
	future := make([]float64, h)
	if len(forecastW) > 0 {
		fc := dispatch.PadEdge(dispatch.SeriesToMW(forecastW), h)
		for k := range future {
			future[k] = fc[k] - heldTotal
		}
	} else {
		for k := range future {
			future[k] = imbalance
		}
	}
	window := make([]float64, 0, len(c.history)+h)
	window = append(window, c.history...)
	window = append(window, future...)
	bands, err := c.dec.Decompose(window)
	if err != nil {
		c.log.Errorf("imbalance decomposition: %v", err)
		return decompose.Bands{}, 0, err
	}
	return bands, len(c.history) - 1, nil
}

func limitsOf(assets []model.StorageAsset) map[string]dispatch.Limit {
	out := make(map[string]dispatch.Limit, len(assets))
	for _, a := range assets {
		out[a.ID()] = dispatch.Limit{
			ChargeMW:    dispatch.WToMW(a.AvailableChargePower()),
			DischargeMW: dispatch.WToMW(a.AvailableDischargePower()),
		}
	}
	return out
}

// finish publishes the terminal state of a layer and its return to idle.
func (c *Controller) finish(layer string, plan dispatch.HorizonPlan) {
	state := events.StateOptimal
	if !plan.OK {
		state = events.StateFailed
	}
	c.transition(layer, state, plan.Status.String())
	c.transition(layer, events.StateIdle, plan.Status.String())
}

func (c *Controller) transition(layer string, state events.LayerState, status string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.LayerEvent{
		RunID:  c.runID,
		Step:   c.step,
		Layer:  layer,
		State:  state,
		Status: status,
		Time:   time.Now(),
	})
}

func (c *Controller) record(res StepResult, dispatched []metrics.DispatchEvent, now time.Time) {
	if err := c.metrics.RecordDispatch(dispatched); err != nil {
		c.log.Warnf("record dispatch: %v", err)
	}
	rec, ok := c.metrics.(metrics.StepRecorder)
	if !ok {
		return
	}
	if err := rec.RecordStep(metrics.StepEvent{
		RunID:           c.runID,
		Step:            res.Step,
		NetLoadW:        res.NetLoadW,
		ImbalanceW:      res.ImbalanceW,
		GridW:           res.GridW,
		LowW:            res.LowW,
		MidW:            res.MidW,
		HighW:           res.HighW,
		UpperStatus:     res.UpperStatus.String(),
		SmoothingStatus: res.SmoothingStatus.String(),
		PowerStatus:     res.PowerStatus.String(),
		Time:            now,
	}); err != nil {
		c.log.Warnf("record step: %v", err)
	}
}

// publish emits the command event and forwards the commands over MQTT.
// Publishing failures are logged and never abort the step.
func (c *Controller) publish(res StepResult, now time.Time) {
	if c.bus != nil {
		cmds := make(map[string]float64, len(res.CommandsW))
		for k, v := range res.CommandsW {
			cmds[k] = v
		}
		c.bus.Publish(events.CommandEvent{RunID: c.runID, Step: res.Step, CommandsW: cmds, Time: now})
	}
	if c.publisher == nil {
		return
	}
	ids := make([]string, 0, len(res.CommandsW))
	for id := range res.CommandsW {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		cmdID, err := c.publisher.SendCommand(id, res.CommandsW[id])
		if err != nil {
			c.log.Warnf("publish command for %s: %v", id, err)
			continue
		}
		if c.ackTimeout <= 0 {
			continue
		}
		if ok, err := c.publisher.WaitForAck(cmdID, c.ackTimeout); err != nil || !ok {
			c.log.Warnf("no ack for %s command %s: %v", id, cmdID, err)
		}
	}
}
