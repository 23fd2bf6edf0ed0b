package telemetry

import (
	"context"

	"github.com/agentmesh-go/agentmesh"

	"go.opentelemetry.io/otel/metric"
)

// Recorder is an agentmesh.Sink that turns published Events into OTEL
// metrics: one Recorder, connected once and then subscribed to every task
// a TaskWorker spawns, gives turn and decision counts without the core
// importing this package. The ModelPort and Tool wrappers (WrapModelPort,
// WrapTool) cover call-level spans; Recorder covers the orchestration-level
// counters §4.5's Event Bus already carries as data.
type Recorder struct {
	inst *Instruments
}

// NewRecorder creates a Recorder bound to inst.
func NewRecorder(inst *Instruments) *Recorder {
	return &Recorder{inst: inst}
}

// Send implements agentmesh.Sink. It never returns an error: a Recorder
// is never torn down by the Event Bus for a failed send.
func (r *Recorder) Send(ev agentmesh.Event) error {
	ctx := context.Background()
	switch ev.Type {
	case "turn_start":
		r.inst.StepsUsed.Add(ctx, 1, metric.WithAttributes(AttrTaskID.String(ev.TaskID)))
	case "agent_decision":
		attrs := []metric.AddOption{metric.WithAttributes(AttrTaskID.String(ev.TaskID))}
		r.inst.DecisionCount.Add(ctx, 1, attrs...)
	}
	return nil
}

var _ agentmesh.Sink = (*Recorder)(nil)
