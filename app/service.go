package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/hess/config"
	"github.com/kilianp07/hess/core/ems"
	coremetrics "github.com/kilianp07/hess/core/metrics"
	"github.com/kilianp07/hess/core/model"
	"github.com/kilianp07/hess/core/solver"
	"github.com/kilianp07/hess/infra/logger"
	"github.com/kilianp07/hess/infra/metrics"
	"github.com/kilianp07/hess/infra/mqtt"
	"github.com/kilianp07/hess/internal/eventbus"
	"github.com/kilianp07/hess/simulator"
)

const busBuffer = 64

// Service wires the controller to its assets, metrics sinks, event bus and
// optional MQTT publisher.
type Service struct {
	Controller *ems.Controller
	Assets     []model.StorageAsset

	cfg    *config.Config
	sink   coremetrics.MetricsSink
	bus    *eventbus.Bus
	client *mqtt.PahoClient
	log    logger.Logger
}

// BuildAssets instantiates the configured units stepping dtS seconds.
func BuildAssets(cfgs []simulator.UnitConfig, dtS float64) ([]model.StorageAsset, error) {
	assets := make([]model.StorageAsset, 0, len(cfgs))
	for _, c := range cfgs {
		u, err := simulator.NewUnitFromConfig(c, dtS)
		if err != nil {
			return nil, err
		}
		assets = append(assets, u)
	}
	return assets, nil
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	assets, err := BuildAssets(cfg.Assets, cfg.EMS.LowerStepS)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	backends, err := solver.NewBackends(cfg.Solver)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	svc := &Service{Assets: assets, cfg: cfg, sink: sink, bus: eventbus.NewWithBuffer(busBuffer), log: logg}
	opts := []ems.Option{
		ems.WithLogger(logger.New("ems")),
		ems.WithMetrics(sink),
		ems.WithBus(svc.bus),
		ems.WithBackends(backends),
	}
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		ack := time.Duration(cfg.Service.AckTimeoutMS) * time.Millisecond
		opts = append(opts, ems.WithPublisher(client, ack))
	}
	ctrl, err := ems.New(cfg.EMS, cfg.Decomposer, assets, opts...)
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("controller: %w", err)
	}
	svc.Controller = ctrl
	logg.Infow("controller ready", map[string]any{
		"run_id":    ctrl.RunID(),
		"assets":    len(assets),
		"energy":    len(ctrl.Groups().Energy),
		"smoothing": len(ctrl.Groups().Smoothing),
		"power":     len(ctrl.Groups().Power),
	})
	return svc, nil
}

func (s *Service) runOptions() simulator.RunOptions {
	return simulator.RunOptions{
		Scenarios: s.cfg.Scenarios,
		Perfect:   s.cfg.Simulation.Perfect,
		Log:       s.log,
	}
}

func (s *Service) startAmbient(ctx context.Context) {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
}

// Simulate runs the controller over generated profiles as fast as possible.
func (s *Service) Simulate(ctx context.Context) (simulator.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.startAmbient(ctx)
	sim := s.cfg.Simulation
	prof, err := simulator.Generate(sim.Profiles, sim.DurationS, s.cfg.EMS.LowerStepS)
	if err != nil {
		return simulator.Result{}, err
	}
	return simulator.Run(ctx, s.Controller, prof, s.runOptions())
}

// Run steps the controller once per lower period, scaled by the configured
// speedup, over a repeating one-day profile until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.startAmbient(ctx)
	cfg := s.Controller.Config()
	prof, err := simulator.Generate(s.cfg.Simulation.Profiles, 86400, cfg.LowerStepS)
	if err != nil {
		return err
	}
	period := time.Duration(cfg.LowerStepS / s.cfg.Service.Speedup * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	ratio := cfg.StepsPerUpper()
	n := prof.Len()
	opts := s.runOptions()
	s.log.Infof("controller running every %s", period)
	for k := 0; ; k++ {
		in, err := simulator.StepInput(prof, k%n, cfg, k%ratio == 0, uint64(k/ratio), opts)
		if err != nil {
			return err
		}
		out, err := s.Controller.Step(ctx, in)
		if err != nil {
			return fmt.Errorf("step %d: %w", k, err)
		}
		s.log.Debugw("step", map[string]any{
			"step":      out.Step,
			"grid_w":    out.GridW,
			"imbalance": out.ImbalanceW,
			"upper":     out.UpperStatus.String(),
			"smoothing": out.SmoothingStatus.String(),
			"power":     out.PowerStatus.String(),
		})
		select {
		case <-ctx.Done():
			s.log.Infof("controller stopped after %d steps", k+1)
			return nil
		case <-ticker.C:
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.client != nil {
		s.client.Disconnect()
	}
	s.bus.Close()
	if n := s.bus.Dropped(); n > 0 {
		s.log.Warnf("event bus dropped %d deliveries", n)
	}
	return coremetrics.CloseSink(s.sink)
}
