package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/hess/core/metrics"
)

type lineServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []string
}

func newLineServer(t *testing.T) *lineServer {
	t.Helper()
	ls := &lineServer{}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		ls.mu.Lock()
		ls.bodies = append(ls.bodies, strings.TrimSpace(string(data)))
		ls.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ls.Close)
	return ls
}

func (ls *lineServer) lines() []string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	var out []string
	for _, b := range ls.bodies {
		out = append(out, strings.Split(b, "\n")...)
	}
	return out
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordDispatch(t *testing.T) {
	srv := newLineServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	evs := []coremetrics.DispatchEvent{
		{RunID: "r1", Step: 3, AssetID: "bess", Role: "energy", PowerW: 1234.5678, SOC: 0.4, Time: now},
		{RunID: "r1", Step: 3, AssetID: "sc", Role: "power", PowerW: -10, SOC: 0.9, Time: now},
	}
	require.NoError(t, sink.RecordDispatch(evs))

	exp := []string{
		line(write.NewPointWithMeasurement("asset_command").
			AddTag("asset_id", "bess").AddTag("role", "energy").AddTag("run_id", "r1").
			AddField("step", 3).AddField("power_w", 1234.568).AddField("soc", 0.4).SetTime(now)),
		line(write.NewPointWithMeasurement("asset_command").
			AddTag("asset_id", "sc").AddTag("role", "power").AddTag("run_id", "r1").
			AddField("step", 3).AddField("power_w", -10.0).AddField("soc", 0.9).SetTime(now)),
	}
	assert.Equal(t, exp, srv.lines())
}

func TestInfluxSink_RecordDispatchEmpty(t *testing.T) {
	srv := newLineServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()
	require.NoError(t, sink.RecordDispatch(nil))
	assert.Empty(t, srv.lines())
}

func TestInfluxSink_RecordSolveStepLayer(t *testing.T) {
	srv := newLineServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()

	require.NoError(t, sink.RecordSolve(coremetrics.SolveEvent{
		RunID: "r1", Problem: "upper", Backend: "simplex", Attempt: 1,
		Status: "optimal", Objective: -12.5, Duration: 1500 * time.Microsecond, Time: now,
	}))
	require.NoError(t, sink.RecordStep(coremetrics.StepEvent{
		RunID: "r1", Step: 7, NetLoadW: 100, ImbalanceW: 10, GridW: 90,
		LowW: 1, MidW: 2, HighW: 3, UpperStatus: "optimal", SmoothingStatus: "optimal",
		PowerStatus: "infeasible", Time: now,
	}))
	require.NoError(t, sink.RecordLayer(coremetrics.LayerEvent{
		RunID: "r1", Step: 7, Layer: "power", State: "failed", Status: "infeasible", Time: now,
	}))

	exp := []string{
		line(write.NewPointWithMeasurement("solver_attempt").
			AddTag("problem", "upper").AddTag("backend", "simplex").AddTag("status", "optimal").AddTag("run_id", "r1").
			AddField("attempt", 1).AddField("objective", -12.5).AddField("duration_ms", 1.5).SetTime(now)),
		line(write.NewPointWithMeasurement("control_step").
			AddTag("run_id", "r1").AddTag("upper_status", "optimal").AddTag("smoothing_status", "optimal").
			AddTag("power_status", "infeasible").
			AddField("step", 7).AddField("net_load_w", 100.0).AddField("imbalance_w", 10.0).
			AddField("grid_w", 90.0).AddField("low_w", 1.0).AddField("mid_w", 2.0).AddField("high_w", 3.0).
			SetTime(now)),
		line(write.NewPointWithMeasurement("layer_state").
			AddTag("layer", "power").AddTag("run_id", "r1").
			AddField("state", "failed").AddField("status", "infeasible").AddField("step", 7).SetTime(now)),
	}
	assert.Equal(t, exp, srv.lines())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
