package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// defaultTracerName is the tracer name used when none is configured.
const defaultTracerName = "wayfind"

// TracerConfig configures navigation tracing.
type TracerConfig struct {
	// TracerName is the name of the tracer (default: "wayfind").
	TracerName string

	// AttributeExtractor adds custom attributes to every navigation
	// span. May be nil.
	AttributeExtractor func(from, to string) []attribute.KeyValue
}

// TracerOption configures navigation tracing.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(from, to string) []attribute.KeyValue) TracerOption {
	return func(c *TracerConfig) {
		c.AttributeExtractor = extractor
	}
}

// Tracer wraps an OpenTelemetry tracer for navigation spans.
//
// It uses the global tracer provider; configure that in main() before
// constructing the router.
type Tracer struct {
	tracer    trace.Tracer
	extractor func(from, to string) []attribute.KeyValue
}

// NewTracer creates a navigation tracer from the global provider.
func NewTracer(opts ...TracerOption) *Tracer {
	config := TracerConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	return &Tracer{
		tracer:    otel.Tracer(config.TracerName),
		extractor: config.AttributeExtractor,
	}
}

// StartNavigation opens a span covering one navigation attempt.
func (t *Tracer) StartNavigation(ctx context.Context, from, to string, generation uint64) (context.Context, trace.Span) {
	if t == nil {
		return ctx, noopSpan(ctx)
	}
	attrs := []attribute.KeyValue{
		attribute.String("wayfind.from", from),
		attribute.String("wayfind.to", to),
		attribute.Int64("wayfind.generation", int64(generation)),
	}
	if t.extractor != nil {
		attrs = append(attrs, t.extractor(from, to)...)
	}
	return t.tracer.Start(ctx, "wayfind.navigate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartPhase opens a child span for one guard phase.
func (t *Tracer) StartPhase(ctx context.Context, phase string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, noopSpan(ctx)
	}
	return t.tracer.Start(ctx, "wayfind.phase."+phase,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordOutcome marks the span with the terminal navigation result.
func RecordOutcome(span trace.Span, result string, err error) {
	span.SetAttributes(attribute.String("wayfind.result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// noopSpan returns the span already carried by ctx, which is a no-op
// span when ctx has none. Keeps nil-tracer call sites branch-free.
func noopSpan(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
