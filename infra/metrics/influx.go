package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/hess/core/metrics"
	"github.com/kilianp07/hess/infra/logger"
)

// InfluxConfig holds the InfluxDB v2 connection settings.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes dispatch loop events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client resources.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// RecordDispatch writes one asset_command point per asset.
func (s *InfluxSink) RecordDispatch(evs []coremetrics.DispatchEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, e := range evs {
		points = append(points, write.NewPointWithMeasurement("asset_command").
			AddTag("asset_id", e.AssetID).
			AddTag("role", e.Role).
			AddTag("run_id", e.RunID).
			AddField("step", e.Step).
			AddField("power_w", round3(e.PowerW)).
			AddField("soc", round6(e.SOC)).
			SetTime(e.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordSolve writes a solver attempt.
func (s *InfluxSink) RecordSolve(ev coremetrics.SolveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("solver_attempt").
		AddTag("problem", ev.Problem).
		AddTag("backend", ev.Backend).
		AddTag("status", ev.Status).
		AddTag("run_id", ev.RunID).
		AddField("attempt", ev.Attempt).
		AddField("objective", round3(ev.Objective)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStep writes the power flows of a control step.
func (s *InfluxSink) RecordStep(ev coremetrics.StepEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("control_step").
		AddTag("run_id", ev.RunID).
		AddTag("upper_status", ev.UpperStatus).
		AddTag("smoothing_status", ev.SmoothingStatus).
		AddTag("power_status", ev.PowerStatus).
		AddField("step", ev.Step).
		AddField("net_load_w", round3(ev.NetLoadW)).
		AddField("imbalance_w", round3(ev.ImbalanceW)).
		AddField("grid_w", round3(ev.GridW)).
		AddField("low_w", round3(ev.LowW)).
		AddField("mid_w", round3(ev.MidW)).
		AddField("high_w", round3(ev.HighW)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordLayer writes an optimizer layer transition.
func (s *InfluxSink) RecordLayer(ev coremetrics.LayerEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("layer_state").
		AddTag("layer", ev.Layer).
		AddTag("run_id", ev.RunID).
		AddField("state", ev.State).
		AddField("status", ev.Status).
		AddField("step", ev.Step).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
