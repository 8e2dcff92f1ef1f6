package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/smsrelay"

// Tracer provides OpenTelemetry tracing for smsrelay.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartPassSpan starts a span covering one processing pass.
func (t *Tracer) StartPassSpan(ctx context.Context, trigger string, messages int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "smsrelay.pass",
		trace.WithAttributes(
			attribute.String("smsrelay.trigger", trigger),
			attribute.Int("smsrelay.messages", messages),
		),
	)
}

// EndPassSpan ends a pass span with its summary counts.
func (t *Tracer) EndPassSpan(span trace.Span, reallocated, carrier, exhausted int, err error) {
	span.SetAttributes(
		attribute.Int("smsrelay.reallocated", reallocated),
		attribute.Int("smsrelay.carrier", carrier),
		attribute.Int("smsrelay.no_senders", exhausted),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// StartSendSpan starts a span for one gateway send.
func (t *Tracer) StartSendSpan(ctx context.Context, channel, target string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "smsrelay.send",
		trace.WithAttributes(
			attribute.String("smsrelay.channel", channel),
			attribute.String("smsrelay.target", target),
		),
	)
}

// EndSendSpan ends a send span with result attributes.
func (t *Tracer) EndSendSpan(span trace.Span, latencyMs int, err error) {
	span.SetAttributes(attribute.Int("smsrelay.latency_ms", latencyMs))
	if err != nil {
		span.SetAttributes(attribute.String("smsrelay.error", err.Error()))
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
