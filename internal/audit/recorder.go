package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xtremefabrix/formrelay/internal/submission"
)

// Recorder writes one audit record per submission attempt. Store failures
// are logged and never affect the submission.
type Recorder struct {
	store  Store
	logger *zap.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, logger: logger}
}

// OnSubmission implements submission.Observer.
func (r *Recorder) OnSubmission(ctx context.Context, e submission.Event) {
	rec := Record{
		ID:            uuid.NewString(),
		FormID:        e.FormID,
		InstanceID:    e.InstanceID,
		CorrelationID: e.CorrelationID,
		Outcome:       e.Outcome,
		Reason:        e.Reason,
		StatusCode:    e.StatusCode,
		DurationMs:    e.Duration.Milliseconds(),
		InvalidFields: e.InvalidFields,
		Error:         e.Err,
		CreatedAt:     e.Timestamp,
	}
	if err := r.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Error("audit append failed",
			zap.String("form_id", e.FormID),
			zap.String("correlation_id", e.CorrelationID),
			zap.Error(err),
		)
	}
}
