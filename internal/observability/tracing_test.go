package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/xtremefabrix/formrelay/internal/config"
	"github.com/xtremefabrix/formrelay/model"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrs(s sdktrace.ReadOnlySpan) map[string]string {
	m := map[string]string{}
	for _, kv := range s.Attributes() {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func TestInitTracing(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TracingConfig
		wantErr bool
	}{
		{"disabled", config.TracingConfig{}, false},
		{"stdout", config.TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 1}, false},
		{"unknown exporter", config.TracingConfig{Enabled: true, Exporter: "zipkin"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := otel.GetTracerProvider()
			t.Cleanup(func() { otel.SetTracerProvider(prev) })

			shutdown, err := InitTracing(context.Background(), tt.cfg, "formrelay-test", "0.0.1")
			if tt.wantErr {
				assert.ErrorContains(t, err, "zipkin")
				return
			}
			require.NoError(t, err)
			assert.NoError(t, shutdown(context.Background()))
		})
	}
}

func TestRatioSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "TraceIDRatioBased{0.1}"},
		{0.25, "TraceIDRatioBased{0.25}"},
		{1, "AlwaysOnSampler"},
		{3, "AlwaysOnSampler"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ratioSampler(tt.rate).Description(), "rate %v", tt.rate)
	}
}

func TestSubmissionSpan_delivered(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartSubmission(context.Background(), "booking", "inst-1")
	EndWithOutcome(span, model.Outcome{Kind: model.OutcomeDelivered, StatusCode: 200})

	s := onlySpan(t, sr)
	assert.Equal(t, SpanSubmission, s.Name())
	assert.Equal(t, map[string]string{
		"formrelay.form_id":         "booking",
		"formrelay.instance_id":     "inst-1",
		"formrelay.outcome":         "delivered",
		"http.response.status_code": "200",
	}, attrs(s))
	assert.NotEqual(t, codes.Error, s.Status().Code)
}

func TestSubmissionSpan_oneShotHasNoInstance(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartSubmission(context.Background(), "contact", "")
	EndWithOutcome(span, model.Outcome{Kind: model.OutcomeValidationFailed, Reason: model.ReasonValidation})

	s := onlySpan(t, sr)
	a := attrs(s)
	assert.NotContains(t, a, "formrelay.instance_id")
	assert.Equal(t, "validation", a["formrelay.failure_reason"])
	assert.NotEqual(t, codes.Error, s.Status().Code, "invalid input is not a span error")
}

func TestDeliverySpan_failureSetsErrorStatus(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartDelivery(context.Background(), "contact")
	EndWithOutcome(span, model.Outcome{
		Kind:   model.OutcomeUnreachable,
		Reason: model.ReasonTransport,
		Cause:  errors.New("dial tcp: connection refused"),
	})

	s := onlySpan(t, sr)
	assert.Equal(t, SpanDelivery, s.Name())
	assert.Equal(t, trace.SpanKindClient, s.SpanKind())
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "transport", s.Status().Description)
	assert.Equal(t, "transport", attrs(s)["formrelay.failure_reason"])
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "exception", s.Events()[0].Name)
}

func TestDeliverySpan_childOfSubmission(t *testing.T) {
	sr := recordSpans(t)

	ctx, submit := StartSubmission(context.Background(), "testimonial", "")
	_, deliver := StartDelivery(ctx, "testimonial")
	EndWithOutcome(deliver, model.Outcome{Kind: model.OutcomeDelivered})
	EndWithOutcome(submit, model.Outcome{Kind: model.OutcomeDelivered})

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
}

func TestMarkReplayed(t *testing.T) {
	sr := recordSpans(t)

	ctx, span := StartSubmission(context.Background(), "contact", "")
	MarkReplayed(ctx, true)
	span.End()

	assert.Equal(t, "true", attrs(onlySpan(t, sr))["formrelay.idempotent_replay"])

	// Outside a span it is a no-op.
	MarkReplayed(context.Background(), true)
}

func TestTraceIDFromContext(t *testing.T) {
	recordSpans(t)

	assert.Empty(t, TraceIDFromContext(context.Background()))

	ctx, span := StartSubmission(context.Background(), "contact", "")
	defer span.End()
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceIDFromContext(ctx))
}

func TestTracingMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode codes.Code
	}{
		{"ok", http.StatusOK, codes.Unset},
		{"created", http.StatusCreated, codes.Unset},
		{"client error", http.StatusConflict, codes.Unset},
		{"server error", http.StatusBadGateway, codes.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := recordSpans(t)
			h := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/forms/contact/submissions", nil))

			s := onlySpan(t, sr)
			assert.Equal(t, "POST /api/forms/contact/submissions", s.Name())
			assert.Equal(t, trace.SpanKindServer, s.SpanKind())
			assert.Equal(t, tt.wantCode, s.Status().Code)

			a := attrs(s)
			assert.Equal(t, "POST", a["http.request.method"])
			assert.Equal(t, "/api/forms/contact/submissions", a["url.path"])
			assert.Equal(t, strconv.Itoa(tt.status), a["http.response.status_code"])
			assert.NotEmpty(t, rec.Header().Get("Traceparent"))
		})
	}
}

func TestTracingMiddleware_continuesCallerTrace(t *testing.T) {
	sr := recordSpans(t)
	const traceID, parentID = "4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7"

	h := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, traceID, TraceIDFromContext(r.Context()))
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
	req.Header.Set("Traceparent", "00-"+traceID+"-"+parentID+"-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	s := onlySpan(t, sr)
	assert.Equal(t, traceID, s.SpanContext().TraceID().String())
	assert.Equal(t, parentID, s.Parent().SpanID().String())
}

func TestTracingMiddleware_namesSpanAfterRoute(t *testing.T) {
	sr := recordSpans(t)

	r := chi.NewRouter()
	r.Use(TracingMiddleware)
	r.Patch("/api/instances/{instanceId}/values", func(w http.ResponseWriter, r *http.Request) {})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/api/instances/7d2e/values", nil))

	s := onlySpan(t, sr)
	assert.Equal(t, "PATCH /api/instances/{instanceId}/values", s.Name())
	assert.Equal(t, "/api/instances/{instanceId}/values", attrs(s)["http.route"])
}
