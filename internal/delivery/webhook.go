// Package delivery posts validated form payloads to their external webhook.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xtremefabrix/formrelay/internal/observability"
	"github.com/xtremefabrix/formrelay/model"
)

// DefaultTimeout bounds a delivery whose target does not set one.
const DefaultTimeout = 10 * time.Second

// maxDrain caps how much of a response body is read before the connection is
// returned to the pool. The body is never interpreted.
const maxDrain = 64 << 10

// ErrTargetMissing is the cause attached to outcomes whose target has no URL.
var ErrTargetMissing = errors.New("delivery: webhook URL not configured")

// Target is where one form's submissions are sent. It is resolved once from
// configuration and injected.
type Target struct {
	FormID  string
	URL     string
	Timeout time.Duration
}

// Configured reports whether the target has a URL.
func (t Target) Configured() bool {
	return t.URL != ""
}

// Deliverer sends a payload to a target and classifies the result. It never
// returns Delivered for a non-2xx answer and never retries.
type Deliverer interface {
	Deliver(ctx context.Context, target Target, payload Payload) model.Outcome
}

// WebhookDeliverer issues a single JSON POST per Deliver call.
type WebhookDeliverer struct {
	client    *http.Client
	userAgent string
	now       func() time.Time
}

// Option configures a WebhookDeliverer.
type Option func(*WebhookDeliverer)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *WebhookDeliverer) {
		d.client = c
	}
}

// WithUserAgent sets the User-Agent header on outbound requests.
func WithUserAgent(ua string) Option {
	return func(d *WebhookDeliverer) {
		d.userAgent = ua
	}
}

// WithClock overrides the time source used to measure delivery duration.
func WithClock(now func() time.Time) Option {
	return func(d *WebhookDeliverer) {
		d.now = now
	}
}

// NewWebhookDeliverer creates a deliverer. The default client propagates
// trace context and records a client span per request.
func NewWebhookDeliverer(opts ...Option) *WebhookDeliverer {
	d := &WebhookDeliverer{
		client: &http.Client{
			Transport: otelhttp.NewTransport(&http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxConnsPerHost:     10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			}),
		},
		userAgent: "formrelay",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver posts payload as a JSON object to target.URL.
//
// A missing or malformed URL yields Unreachable with reason
// configuration_missing and no request. Transport failures and timeouts
// yield Unreachable with reason transport. Any 2xx is Delivered; every other
// status is Rejected carrying the code.
func (d *WebhookDeliverer) Deliver(ctx context.Context, target Target, payload Payload) model.Outcome {
	start := d.now()

	ctx, span := observability.StartDelivery(ctx, target.FormID)
	outcome := d.deliver(ctx, target, payload)
	outcome.Duration = d.now().Sub(start)
	observability.EndWithOutcome(span, outcome)
	return outcome
}

func (d *WebhookDeliverer) deliver(ctx context.Context, target Target, payload Payload) model.Outcome {
	if !target.Configured() {
		return unreachable(model.ReasonConfigurationMissing, ErrTargetMissing)
	}
	u, err := url.Parse(target.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return unreachable(model.ReasonConfigurationMissing,
			fmt.Errorf("delivery: invalid webhook URL for form %q", target.FormID))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return unreachable(model.ReasonTransport, fmt.Errorf("delivery: marshal payload: %w", err))
	}

	timeout := target.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return unreachable(model.ReasonConfigurationMissing, fmt.Errorf("delivery: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if cid := model.CorrelationIDFrom(ctx); cid != "" {
		req.Header.Set("X-Correlation-Id", cid)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return unreachable(model.ReasonTransport, fmt.Errorf("delivery: post to form %q webhook: %w", target.FormID, err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return model.Outcome{Kind: model.OutcomeDelivered, StatusCode: resp.StatusCode}
	}
	return model.Outcome{
		Kind:       model.OutcomeRejected,
		StatusCode: resp.StatusCode,
		Reason:     model.ReasonStatus,
		Cause:      fmt.Errorf("delivery: form %q webhook answered %d", target.FormID, resp.StatusCode),
	}
}

func unreachable(reason model.FailureReason, cause error) model.Outcome {
	return model.Outcome{Kind: model.OutcomeUnreachable, Reason: reason, Cause: cause}
}
