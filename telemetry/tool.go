package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentmesh-go/agentmesh"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	agentmeshlog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedTool wraps an agentmesh.Tool with OTEL instrumentation of
// Execute. It does not implement agentmesh.PostProcessTool: ExecutePost is
// neither instrumented nor forwarded, so a wrapped post-process tool is not
// returned by ToolRegistry.PostProcessTools.
type ObservedTool struct {
	inner agentmesh.Tool
	inst  *Instruments
}

// WrapTool returns an instrumented tool.
func WrapTool(inner agentmesh.Tool, inst *Instruments) *ObservedTool {
	return &ObservedTool{inner: inner, inst: inst}
}

func (o *ObservedTool) Definitions() []agentmesh.ToolDefinition { return o.inner.Definitions() }

func (o *ObservedTool) Execute(ctx context.Context, name string, args json.RawMessage) (agentmesh.ToolResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		AttrToolName.String(name),
	))
	defer span.End()
	start := time.Now()

	result, err := o.inner.Execute(ctx, name, args)

	durationMs := float64(time.Since(start).Milliseconds())
	status := result.Status
	if status == "" {
		status = "success"
	}
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(AttrToolStatus.String(status))

	o.inst.ToolExecutions.Add(ctx, 1, metric.WithAttributes(
		AttrToolName.String(name), attribute.String("status", status),
	))
	o.inst.ToolDuration.Record(ctx, durationMs, metric.WithAttributes(AttrToolName.String(name)))

	var rec agentmeshlog.Record
	rec.SetSeverity(agentmeshlog.SeverityInfo)
	rec.SetBody(agentmeshlog.StringValue("tool executed"))
	rec.AddAttributes(
		agentmeshlog.String("tool.name", name),
		agentmeshlog.String("tool.status", status),
		agentmeshlog.Float64("tool.duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return result, err
}

var _ agentmesh.Tool = (*ObservedTool)(nil)
