package submission

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xtremefabrix/formrelay/internal/delivery"
	"github.com/xtremefabrix/formrelay/internal/schema"
	"github.com/xtremefabrix/formrelay/model"
)

var fixedNow = time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// fakeDeliverer answers with a fixed outcome and can hold each call until
// released.
type fakeDeliverer struct {
	outcome  model.Outcome
	calls    atomic.Int32
	gate     chan struct{}
	started  chan struct{}
	mu       sync.Mutex
	payloads []delivery.Payload
}

func newFakeDeliverer(kind model.OutcomeKind, status int) *fakeDeliverer {
	return &fakeDeliverer{outcome: model.Outcome{Kind: kind, StatusCode: status}}
}

// blocking makes Deliver wait until release is called.
func (f *fakeDeliverer) blocking() *fakeDeliverer {
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 16)
	return f
}

func (f *fakeDeliverer) release() { close(f.gate) }

func (f *fakeDeliverer) Deliver(ctx context.Context, _ delivery.Target, p delivery.Payload) model.Outcome {
	f.calls.Add(1)
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.mu.Unlock()
	if f.gate != nil {
		f.started <- struct{}{}
		<-f.gate
	}
	if ctx.Err() != nil {
		return model.Outcome{Kind: model.OutcomeUnreachable, Reason: model.ReasonTransport, Cause: ctx.Err()}
	}
	return f.outcome
}

func (f *fakeDeliverer) lastPayload() delivery.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return nil
	}
	return f.payloads[len(f.payloads)-1]
}

func validContactValues() model.Values {
	return model.Values{
		"name":    "Sam Peters",
		"email":   "sam@example.com",
		"phone":   "0821234567",
		"subject": "Seat covers",
		"message": "Do you do custom stitching on bakkie seats?",
	}
}

func validTestimonialValues() model.Values {
	return model.Values{
		"nameFabrixTestimonial":        "Thandi M",
		"emailFabrixTestimonial":       "thandi@example.com",
		"ratingFabrixTestimonial":      "5",
		"testimonialFabrixTestimonial": "Excellent leather repair work on my Golf!",
	}
}

func contactPipeline(d delivery.Deliverer, opts ...PipelineOption) *Pipeline {
	opts = append([]PipelineOption{WithClock(clock)}, opts...)
	return NewPipeline(schema.Contact(), delivery.Target{URL: "https://hook.example.com/contact"}, d, opts...)
}

func testimonialPipeline(d delivery.Deliverer) *Pipeline {
	return NewPipeline(schema.Testimonial(), delivery.Target{URL: "https://hook.example.com/booking"}, d, WithClock(clock))
}

func newTestManager(pipelines ...*Pipeline) *Manager {
	n := 0
	return NewManager(pipelines, NewMemoryInstanceStore(),
		WithManagerClock(clock),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("inst-%d", n)
		}),
	)
}

// recordSpans installs a recording tracer provider for the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]string {
	m := map[string]string{}
	for _, kv := range s.Attributes() {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}
