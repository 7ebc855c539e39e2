package metrics

import (
	"context"

	"github.com/kilianp07/hess/core/events"
	coremetrics "github.com/kilianp07/hess/core/metrics"
	"github.com/kilianp07/hess/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records layer
// transitions on sinks able to record them. It stops when the context is
// canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.LayerRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.LayerEvent); ok {
					_ = rec.RecordLayer(coremetrics.LayerEvent{
						RunID:  e.RunID,
						Step:   e.Step,
						Layer:  e.Layer,
						State:  e.State.String(),
						Status: e.Status,
						Time:   e.Time,
					})
				}
			}
		}
	}()
}
