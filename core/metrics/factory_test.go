package metrics_test

import (
	"errors"
	"testing"

	"github.com/kilianp07/hess/core/factory"
	metrics "github.com/kilianp07/hess/core/metrics"
	_ "github.com/kilianp07/hess/infra/metrics"
)

func TestMetricsFactory_Builtins(t *testing.T) {
	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}
	if _, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if _, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}}); err != nil {
		t.Fatalf("create prometheus: %v", err)
	}
}

func TestNewMetricsSink_Multi(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	cfgs := []factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}}
	s, err = metrics.NewMetricsSink(cfgs)
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}
}

type closingSink struct {
	metrics.NopSink
	closed *int
	err    error
}

func (c closingSink) Close() error {
	*c.closed++
	return c.err
}

func TestCloseSinkWalksMultiSink(t *testing.T) {
	var closed int
	boom := errors.New("boom")
	s := metrics.NewMultiSink(
		closingSink{closed: &closed},
		metrics.NopSink{},
		closingSink{closed: &closed, err: boom},
	)
	if err := metrics.CloseSink(s); !errors.Is(err, boom) {
		t.Fatalf("expected joined close error, got %v", err)
	}
	if closed != 2 {
		t.Fatalf("expected 2 closes, got %d", closed)
	}
	if err := metrics.CloseSink(metrics.NopSink{}); err != nil {
		t.Fatalf("nop close: %v", err)
	}
}
