// Package telemetry wires OpenTelemetry tracing and metrics for the
// gateway and agent binaries: one tracer/meter pair per process. Traces are
// exported over OTLP/HTTP when an endpoint is configured and otherwise kept
// in an in-process provider with no exporter, so a dev checkout never has
// to stand up a collector to run the binaries. Init installs no meter
// provider: the counters come from the global otel meter provider, and this
// package exports no metrics.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the tracer, meter, and session-level counters every
// component instruments through.
type Telemetry struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	AudioBytesIn   metric.Int64Counter
	AudioBytesOut  metric.Int64Counter
	TokensUsed     metric.Int64Counter
	ToolInvocations metric.Int64Counter
	Handoffs       metric.Int64Counter

	shutdown func(context.Context) error
}

// Config selects the OTLP/HTTP trace exporter endpoint (empty disables
// export — spans are still recorded by an in-process tracer provider with
// no exporter, just never shipped anywhere).
type Config struct {
	ServiceName    string
	OTLPEndpoint   string // host:port, e.g. "localhost:4318"; "" disables export
}

// Init constructs the process-wide Telemetry. Call Shutdown on exit to
// flush any buffered spans.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	res, err := sdkresource.New(ctx,
		sdkresource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	var tp *sdktrace.TracerProvider
	if cfg.OTLPEndpoint != "" {
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: build otlp exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithResource(res),
		)
	} else {
		tp = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	}
	otel.SetTracerProvider(tp)

	meter := otel.Meter(cfg.ServiceName)

	audioIn, err := meter.Int64Counter("voicegw.audio.bytes_in", metric.WithDescription("PCM16 bytes received from clients"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build audio.bytes_in counter: %w", err)
	}
	audioOut, err := meter.Int64Counter("voicegw.audio.bytes_out", metric.WithDescription("PCM16 bytes sent to clients"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build audio.bytes_out counter: %w", err)
	}
	tokens, err := meter.Int64Counter("voicegw.voice_model.tokens", metric.WithDescription("voice model tokens consumed"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build tokens counter: %w", err)
	}
	toolInvocations, err := meter.Int64Counter("voicegw.tools.invocations", metric.WithDescription("tool invocations dispatched"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build tool invocations counter: %w", err)
	}
	handoffs, err := meter.Int64Counter("voicegw.handoffs.count", metric.WithDescription("handoffs between agents"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build handoffs counter: %w", err)
	}

	return &Telemetry{
		Tracer:          tp.Tracer(cfg.ServiceName),
		Meter:           meter,
		AudioBytesIn:    audioIn,
		AudioBytesOut:   audioOut,
		TokensUsed:      tokens,
		ToolInvocations: toolInvocations,
		Handoffs:        handoffs,
		shutdown:        tp.Shutdown,
	}, nil
}

// Shutdown flushes and stops the tracer provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

// StartSession opens a span covering one voice session's lifetime.
func (t *Telemetry) StartSession(ctx context.Context, sessionID, agentID string) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, "session",
		trace.WithAttributes(semconv.EnduserID(sessionID)),
	)
}

// StartToolInvocation opens a span covering one tool dispatch.
func (t *Telemetry) StartToolInvocation(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, "tool."+toolName)
}

// StartHandoff opens a span covering one handoff leg.
func (t *Telemetry) StartHandoff(ctx context.Context, fromAgent, toAgent string) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, "handoff")
}
