package observability

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/xtremefabrix/formrelay/internal/config"
	"github.com/xtremefabrix/formrelay/model"
)

const tracerName = "github.com/xtremefabrix/formrelay"

// Span names.
const (
	SpanSubmission = "submission.submit"
	SpanDelivery   = "delivery.webhook"
)

// Attribute keys recorded on submission and delivery spans.
var (
	AttrFormID        = attribute.Key("formrelay.form_id")
	AttrInstanceID    = attribute.Key("formrelay.instance_id")
	AttrOutcome       = attribute.Key("formrelay.outcome")
	AttrFailureReason = attribute.Key("formrelay.failure_reason")
	AttrReplayed      = attribute.Key("formrelay.idempotent_replay")
)

// defaultSamplingRate applies when tracing is on but no rate is configured.
const defaultSamplingRate = 0.1

// InitTracing installs the global tracer provider and the W3C trace-context
// and baggage propagators. With tracing disabled nothing is installed and the
// returned shutdown does nothing.
func InitTracing(ctx context.Context, cfg config.TracingConfig, serviceName, serviceVersion string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(ratioSampler(cfg.SamplingRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp", "":
		var opts []otlptracegrpc.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported exporter %q (want otlp or stdout)", cfg.Exporter)
	}
}

// ratioSampler samples the given fraction of root traces. Rates at or above
// one sample everything.
func ratioSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.TraceIDRatioBased(defaultSamplingRate)
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSubmission starts the span of one submission attempt. instanceID is
// empty for one-shot submits.
func StartSubmission(ctx context.Context, formID, instanceID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{AttrFormID.String(formID)}
	if instanceID != "" {
		attrs = append(attrs, AttrInstanceID.String(instanceID))
	}
	return tracer().Start(ctx, SpanSubmission, trace.WithAttributes(attrs...))
}

// StartDelivery starts the client span of one webhook request.
func StartDelivery(ctx context.Context, formID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, SpanDelivery,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrFormID.String(formID)),
	)
}

// EndWithOutcome records outcome on span and ends it. Rejected and
// unreachable outcomes set an error status; validation failures do not.
func EndWithOutcome(span trace.Span, outcome model.Outcome) {
	span.SetAttributes(AttrOutcome.String(string(outcome.Kind)))
	if outcome.Reason != model.ReasonNone {
		span.SetAttributes(AttrFailureReason.String(string(outcome.Reason)))
	}
	if outcome.StatusCode != 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(outcome.StatusCode))
	}
	if outcome.Failed() {
		if outcome.Cause != nil {
			span.RecordError(outcome.Cause)
		}
		span.SetStatus(codes.Error, string(outcome.Reason))
	}
	span.End()
}

// MarkReplayed records on the active span whether a submit was answered from
// the idempotency store.
func MarkReplayed(ctx context.Context, replayed bool) {
	trace.SpanFromContext(ctx).SetAttributes(AttrReplayed.Bool(replayed))
}

// TraceIDFromContext returns the active trace ID, or "" outside a span.
func TraceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// TracingMiddleware starts a server span per request. It continues a trace
// the caller sent, echoes the trace context on the response, and renames the
// span to the chi route pattern once routing is done.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prop := otel.GetTextMapPropagator()
		ctx, span := tracer().Start(
			prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header)),
			r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
			),
		)
		defer span.End()
		prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		if pattern := routePattern(r); pattern != r.URL.Path {
			span.SetName(r.Method + " " + pattern)
			span.SetAttributes(semconv.HTTPRoute(pattern))
		}
		span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}
