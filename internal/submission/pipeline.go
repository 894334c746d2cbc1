// Package submission runs form submissions: validation, the per-instance
// state machine, webhook delivery and submit deduplication.
package submission

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xtremefabrix/formrelay/internal/delivery"
	"github.com/xtremefabrix/formrelay/internal/observability"
	"github.com/xtremefabrix/formrelay/internal/schema"
	"github.com/xtremefabrix/formrelay/model"
)

// Pipeline binds one form schema to its delivery target.
type Pipeline struct {
	schema    model.FormSchema
	target    delivery.Target
	deliverer delivery.Deliverer
	now       func() time.Time
	logger    *zap.Logger
	observers []Observer
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithClock sets the source of "today" for date constraints.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the fallback logger.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithObserver adds a submission observer.
func WithObserver(obs Observer) PipelineOption {
	return func(p *Pipeline) { p.observers = append(p.observers, obs) }
}

// NewPipeline creates a Pipeline. target.FormID is forced to the schema ID.
func NewPipeline(s model.FormSchema, target delivery.Target, d delivery.Deliverer, opts ...PipelineOption) *Pipeline {
	target.FormID = s.ID
	p := &Pipeline{
		schema:    s,
		target:    target,
		deliverer: d,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schema returns the form schema.
func (p *Pipeline) Schema() model.FormSchema { return p.schema }

// Target returns the delivery target.
func (p *Pipeline) Target() delivery.Target { return p.target }

// Defaults returns the initial values of the form.
func (p *Pipeline) Defaults() model.Values { return schema.Defaults(p.schema) }

// Validate checks values against the schema as of the pipeline clock's today.
func (p *Pipeline) Validate(values model.Values) model.ValidationResult {
	return schema.Validate(values, p.schema, p.now())
}

// Submit validates values and, when valid, delivers them with exactly one
// request. Invalid values never reach the network.
func (p *Pipeline) Submit(ctx context.Context, values model.Values) model.Outcome {
	return p.submit(ctx, "", values)
}

func (p *Pipeline) submit(ctx context.Context, instanceID string, values model.Values) model.Outcome {
	ctx, span := observability.StartSubmission(ctx, p.schema.ID, instanceID)
	outcome := p.attempt(ctx, instanceID, values)
	observability.EndWithOutcome(span, outcome)
	p.notify(ctx, instanceID, outcome)
	return outcome
}

func (p *Pipeline) attempt(ctx context.Context, instanceID string, values model.Values) model.Outcome {
	if errs := p.Validate(values); !errs.Valid() {
		return model.Outcome{Kind: model.OutcomeValidationFailed, Errors: errs, Reason: model.ReasonValidation}
	}

	logger := observability.RequestLogger(ctx, p.logger).With(
		zap.String("form_id", p.schema.ID),
		zap.String("instance_id", instanceID),
	)
	payload := delivery.PayloadFor(p.schema, values)
	logger.Debug("submission payload", zap.Any("payload", observability.RedactBody(payload, nil)))

	outcome := p.deliverer.Deliver(ctx, p.target, payload)
	logOutcome(logger, outcome)
	return outcome
}

func logOutcome(logger *zap.Logger, outcome model.Outcome) {
	logger = logger.With(
		zap.String("outcome", string(outcome.Kind)),
		zap.Int("status_code", outcome.StatusCode),
		zap.Duration("duration", outcome.Duration),
	)
	switch {
	case outcome.Delivered():
		logger.Info("submission delivered")
	case outcome.Reason == model.ReasonConfigurationMissing:
		logger.Error("submission not delivered: webhook not configured", zap.Error(outcome.Cause))
	default:
		logger.Warn("submission not delivered",
			zap.String("reason", string(outcome.Reason)),
			zap.Error(outcome.Cause),
		)
	}
}

func (p *Pipeline) notify(ctx context.Context, instanceID string, outcome model.Outcome) {
	if len(p.observers) == 0 {
		return
	}
	event := Event{
		FormID:        p.schema.ID,
		InstanceID:    instanceID,
		CorrelationID: model.CorrelationIDFrom(ctx),
		Outcome:       outcome.Kind,
		Reason:        outcome.Reason,
		StatusCode:    outcome.StatusCode,
		Duration:      outcome.Duration,
		Timestamp:     p.now().UTC(),
	}
	for _, fe := range outcome.Errors.FieldErrors(p.schema) {
		event.InvalidFields = append(event.InvalidFields, fe.Field)
	}
	if outcome.Cause != nil {
		event.Err = outcome.Cause.Error()
	}
	for _, obs := range p.observers {
		obs.OnSubmission(ctx, event)
	}
}
