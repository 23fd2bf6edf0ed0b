// Package telemetry provides OTEL-based observability for agentmesh runs.
//
// It wraps ModelPort and Tool with instrumented versions that emit traces,
// metrics, and logs via OpenTelemetry, and exposes a Recorder, an Event Bus
// sink that counts turns and decisions as metrics. Export to
// any OTEL-compatible backend by setting standard OTEL env vars.
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	agentmeshlog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/agentmesh-go/agentmesh/telemetry"

// Instruments holds all OTEL instruments used by the telemetry wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger agentmeshlog.Logger

	TokenUsage     metric.Int64Counter
	LLMRequests    metric.Int64Counter
	ToolExecutions metric.Int64Counter
	DecisionCount  metric.Int64Counter
	StepsUsed      metric.Int64Counter

	LLMDuration      metric.Float64Histogram
	ToolDuration     metric.Float64Histogram
	AgentDuration    metric.Float64Histogram
	DecisionDuration metric.Float64Histogram
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP
// exporters. Configuration comes from standard OTEL env vars
// (OTEL_EXPORTER_OTLP_ENDPOINT, etc). Returns a shutdown function that
// must be called on application exit.
func Init(ctx context.Context) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("agentmesh")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments() (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)
	logger := global.GetLoggerProvider().Logger(scopeName)

	tokenUsage, err := meter.Int64Counter("llm.token.usage",
		metric.WithDescription("Total tokens consumed"), metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}
	llmRequests, err := meter.Int64Counter("llm.requests",
		metric.WithDescription("LLM request count"), metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	toolExecutions, err := meter.Int64Counter("tool.executions",
		metric.WithDescription("Tool execution count"), metric.WithUnit("{execution}"))
	if err != nil {
		return nil, err
	}
	decisionCount, err := meter.Int64Counter("orchestrator.decisions",
		metric.WithDescription("Team Orchestrator decision count"), metric.WithUnit("{decision}"))
	if err != nil {
		return nil, err
	}
	stepsUsed, err := meter.Int64Counter("orchestrator.steps_used",
		metric.WithDescription("Turns consumed against a team's step budget"), metric.WithUnit("{turn}"))
	if err != nil {
		return nil, err
	}
	llmDuration, err := meter.Float64Histogram("llm.duration",
		metric.WithDescription("LLM call duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	toolDuration, err := meter.Float64Histogram("tool.duration",
		metric.WithDescription("Tool execution duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	agentDuration, err := meter.Float64Histogram("agent.turn.duration",
		metric.WithDescription("Agent turn duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	decisionDuration, err := meter.Float64Histogram("orchestrator.decision.duration",
		metric.WithDescription("Decision-LLM call duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:           tracer,
		Meter:            meter,
		Logger:           logger,
		TokenUsage:       tokenUsage,
		LLMRequests:      llmRequests,
		ToolExecutions:   toolExecutions,
		DecisionCount:    decisionCount,
		StepsUsed:        stepsUsed,
		LLMDuration:      llmDuration,
		ToolDuration:     toolDuration,
		AgentDuration:    agentDuration,
		DecisionDuration: decisionDuration,
	}, nil
}
