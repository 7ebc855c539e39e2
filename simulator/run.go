package simulator

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/hess/core/decompose"
	"github.com/kilianp07/hess/core/dispatch"
	"github.com/kilianp07/hess/core/ems"
	"github.com/kilianp07/hess/core/logger"
	"github.com/kilianp07/hess/core/scenario"
)

// Config holds the simulation section of the configuration.
type Config struct {
	DurationS float64       `json:"duration_s"`
	Profiles  ProfileConfig `json:"profiles"`
	// Perfect feeds the true future net load as the lower forecast.
	Perfect bool `json:"perfect_forecast"`
}

// SetDefaults simulates one hour.
func (c *Config) SetDefaults() {
	if c.DurationS == 0 {
		c.DurationS = 3600
	}
	c.Profiles.SetDefaults()
}

// Record is the outcome of one simulated step.
type Record struct {
	Step            int                `json:"step" yaml:"step"`
	TimeS           float64            `json:"time_s" yaml:"time_s"`
	NetLoadW        float64            `json:"net_load_w" yaml:"net_load_w"`
	GridW           float64            `json:"grid_w" yaml:"grid_w"`
	ImbalanceW      float64            `json:"imbalance_w" yaml:"imbalance_w"`
	LowW            float64            `json:"low_w" yaml:"low_w"`
	MidW            float64            `json:"mid_w" yaml:"mid_w"`
	HighW           float64            `json:"high_w" yaml:"high_w"`
	CommandsW       map[string]float64 `json:"commands_w" yaml:"commands_w"`
	SOC             map[string]float64 `json:"soc" yaml:"soc"`
	UpperStatus     string             `json:"upper_status" yaml:"upper_status"`
	SmoothingStatus string             `json:"smoothing_status" yaml:"smoothing_status"`
	PowerStatus     string             `json:"power_status" yaml:"power_status"`
}

// Summary aggregates a run.
type Summary struct {
	RunID        string `json:"run_id" yaml:"run_id"`
	Steps        int    `json:"steps" yaml:"steps"`
	UpperSolves  int    `json:"upper_solves" yaml:"upper_solves"`
	FailedLayers int    `json:"failed_layers" yaml:"failed_layers"`
	// ThroughputMWh is the absolute energy exchanged per asset.
	ThroughputMWh map[string]float64 `json:"throughput_mwh" yaml:"throughput_mwh"`
	FinalSOC      map[string]float64 `json:"final_soc" yaml:"final_soc"`
	// ResidualRMSW is the RMS of net load not covered by grid and assets.
	ResidualRMSW float64 `json:"residual_rms_w" yaml:"residual_rms_w"`
	MaxGridRampW float64 `json:"max_grid_ramp_w" yaml:"max_grid_ramp_w"`
	// GridHighShare and NetLoadHighShare are the spectral energy above a
	// quarter of the sampling rate, before and after storage.
	GridHighShare    float64 `json:"grid_high_share" yaml:"grid_high_share"`
	NetLoadHighShare float64 `json:"net_load_high_share" yaml:"net_load_high_share"`
}

// Result holds every record and the summary.
type Result struct {
	Records []Record `json:"records,omitempty" yaml:"records,omitempty"`
	Summary Summary  `json:"summary" yaml:"summary"`
}

// RunOptions tunes a simulation run.
type RunOptions struct {
	// Scenarios enables the stochastic upper layer with a fresh draw per
	// upper solve.
	Scenarios scenario.Config
	Perfect   bool
	Log       logger.Logger
}

// Run drives the controller over the profiles at its lower step until the
// profiles end or ctx is canceled. The assets are those of the controller.
func Run(ctx context.Context, ctrl *ems.Controller, prof Profiles, opts RunOptions) (Result, error) {
	log := opts.Log
	if log == nil {
		log = logger.NopLogger{}
	}
	cfg := ctrl.Config()
	ratio := cfg.StepsPerUpper()
	n := prof.Len()
	res := Result{Records: make([]Record, 0, n)}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			log.Warnf("simulation interrupted at step %d: %v", i, err)
			break
		}
		in, err := StepInput(prof, i, cfg, i%ratio == 0, uint64(i/ratio), opts)
		if err != nil {
			return res, err
		}
		out, err := ctrl.Step(ctx, in)
		if err != nil {
			return res, err
		}
		res.Records = append(res.Records, Record{
			Step:            out.Step,
			TimeS:           float64(i) * prof.DtS,
			NetLoadW:        out.NetLoadW,
			GridW:           out.GridW,
			ImbalanceW:      out.ImbalanceW,
			LowW:            out.LowW,
			MidW:            out.MidW,
			HighW:           out.HighW,
			CommandsW:       out.CommandsW,
			SOC:             out.SOC,
			UpperStatus:     out.UpperStatus.String(),
			SmoothingStatus: out.SmoothingStatus.String(),
			PowerStatus:     out.PowerStatus.String(),
		})
		if out.UpperSolved {
			res.Summary.UpperSolves++
		}
		if !out.UpperStatus.Usable() || !out.SmoothingStatus.Usable() || !out.PowerStatus.Usable() {
			res.Summary.FailedLayers++
		}
	}
	summarize(&res, ctrl.RunID(), prof.DtS)
	log.Infof("simulation %s: %d steps, %d upper solves, %d steps with failed layers",
		res.Summary.RunID, res.Summary.Steps, res.Summary.UpperSolves, res.Summary.FailedLayers)
	return res, nil
}

// StepInput assembles the controller input for sample at. When upper is
// set it attaches the downsampled upper forecasts and, if scenarios are
// enabled, a draw seeded with the solve index.
func StepInput(prof Profiles, at int, cfg dispatch.Config, upper bool, solve uint64, opts RunOptions) (ems.StepInput, error) {
	in := ems.StepInput{NetLoadW: prof.NetLoadW[at]}
	if upper {
		ratio := cfg.StepsPerUpper()
		in.UpperNetLoadW = Downsample(prof.NetLoadW, at, ratio, cfg.UpperHorizon)
		in.Price = Downsample(prof.Price, at, ratio, cfg.UpperHorizon)
		if opts.Scenarios.Enabled {
			draw := opts.Scenarios
			draw.SetDefaults()
			draw.Seed += solve
			set, err := scenario.LatinHypercube(draw, cfg.UpperHorizon)
			if err != nil {
				return in, err
			}
			in.Scenarios = &set
		}
	}
	if opts.Perfect {
		in.NetLoadForecastW = Window(prof.NetLoadW, at+1, cfg.LowerHorizon)
	}
	return in, nil
}

func summarize(res *Result, runID string, dtS float64) {
	s := &res.Summary
	s.RunID = runID
	s.Steps = len(res.Records)
	s.ThroughputMWh = map[string]float64{}
	s.FinalSOC = map[string]float64{}
	if s.Steps == 0 {
		return
	}
	grid := make([]float64, s.Steps)
	load := make([]float64, s.Steps)
	residual := make([]float64, s.Steps)
	for i, r := range res.Records {
		grid[i] = r.GridW
		load[i] = r.NetLoadW
		supplied := r.GridW
		for id, w := range r.CommandsW {
			supplied += w
			s.ThroughputMWh[id] += math.Abs(w) * dtS / 3.6e9
		}
		residual[i] = r.NetLoadW - supplied
		if i > 0 {
			s.MaxGridRampW = math.Max(s.MaxGridRampW, math.Abs(grid[i]-grid[i-1]))
		}
	}
	for id, soc := range res.Records[s.Steps-1].SOC {
		s.FinalSOC[id] = soc
	}
	sq := make([]float64, len(residual))
	floats.MulTo(sq, residual, residual)
	s.ResidualRMSW = math.Sqrt(stat.Mean(sq, nil))
	s.GridHighShare = decompose.EnergyFraction(grid, 0.25, 0.5)
	s.NetLoadHighShare = decompose.EnergyFraction(load, 0.25, 0.5)
}
