package telemetry

import (
	"context"
	"time"

	"github.com/agentmesh-go/agentmesh"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	agentmeshlog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedModelPort wraps an agentmesh.ModelPort with OTEL instrumentation.
type ObservedModelPort struct {
	inner agentmesh.ModelPort
	inst  *Instruments
}

// WrapModelPort returns an instrumented ModelPort that emits traces,
// metrics, and logs for every Call and CallStream.
func WrapModelPort(inner agentmesh.ModelPort, inst *Instruments) *ObservedModelPort {
	return &ObservedModelPort{inner: inner, inst: inst}
}

func (o *ObservedModelPort) Name() string { return o.inner.Name() }

func (o *ObservedModelPort) Call(ctx context.Context, req agentmesh.Request) (agentmesh.Response, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "llm.call", trace.WithAttributes(
		AttrLLMModel.String(req.ModelName),
		AttrLLMProvider.String(o.inner.Name()),
		AttrToolCount.Int(len(req.Tools)),
	))
	defer span.End()
	start := time.Now()

	resp, err := o.inner.Call(ctx, req)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	o.record(ctx, span, req.ModelName, status, durationMs, resp.Usage)
	return resp, err
}

func (o *ObservedModelPort) CallStream(ctx context.Context, req agentmesh.Request) (<-chan agentmesh.Chunk, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "llm.call_stream", trace.WithAttributes(
		AttrLLMModel.String(req.ModelName),
		AttrLLMProvider.String(o.inner.Name()),
		AttrToolCount.Int(len(req.Tools)),
	))
	start := time.Now()

	inner, err := o.inner.CallStream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	out := make(chan agentmesh.Chunk)
	go func() {
		defer span.End()
		defer close(out)
		chunks := 0
		status := "ok"
		for chunk := range inner {
			chunks++
			if chunk.Kind == agentmesh.ChunkError {
				status = "error"
				span.SetStatus(codes.Error, chunk.Message)
			}
			out <- chunk
		}
		durationMs := float64(time.Since(start).Milliseconds())
		span.SetAttributes(attribute.Int("llm.stream_chunks", chunks))
		o.record(context.Background(), span, req.ModelName, status, durationMs, agentmesh.Usage{})
	}()
	return out, nil
}

func (o *ObservedModelPort) record(ctx context.Context, span trace.Span, model, status string, durationMs float64, usage agentmesh.Usage) {
	attrs := metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
	)

	span.SetAttributes(
		AttrTokensInput.Int(usage.PromptTokens),
		AttrTokensOutput.Int(usage.CompletionTokens),
	)

	o.inst.TokenUsage.Add(ctx, int64(usage.PromptTokens), metric.WithAttributes(
		AttrLLMModel.String(model), AttrLLMProvider.String(o.inner.Name()),
		attribute.String("direction", "input"),
	))
	o.inst.TokenUsage.Add(ctx, int64(usage.CompletionTokens), metric.WithAttributes(
		AttrLLMModel.String(model), AttrLLMProvider.String(o.inner.Name()),
		attribute.String("direction", "output"),
	))
	o.inst.LLMRequests.Add(ctx, 1, metric.WithAttributes(
		AttrLLMModel.String(model), AttrLLMProvider.String(o.inner.Name()),
		attribute.String("status", status),
	))
	o.inst.LLMDuration.Record(ctx, durationMs, attrs)

	var rec agentmeshlog.Record
	rec.SetSeverity(agentmeshlog.SeverityInfo)
	rec.SetBody(agentmeshlog.StringValue("llm call completed"))
	rec.AddAttributes(
		agentmeshlog.String("llm.model", model),
		agentmeshlog.String("llm.provider", o.inner.Name()),
		agentmeshlog.Int("llm.tokens.input", usage.PromptTokens),
		agentmeshlog.Int("llm.tokens.output", usage.CompletionTokens),
		agentmeshlog.Float64("llm.duration_ms", durationMs),
		agentmeshlog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)
}

var _ agentmesh.ModelPort = (*ObservedModelPort)(nil)
