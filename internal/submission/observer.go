package submission

import (
	"context"
	"time"

	"github.com/xtremefabrix/formrelay/model"
)

// Observer receives one event per submission attempt. Implementations record
// metrics or audit entries and must not block for long.
type Observer interface {
	OnSubmission(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

// OnSubmission calls f.
func (f ObserverFunc) OnSubmission(ctx context.Context, event Event) { f(ctx, event) }

// Event describes the outcome of a submission attempt. It never carries form
// values.
type Event struct {
	FormID        string
	InstanceID    string
	CorrelationID string
	Outcome       model.OutcomeKind
	Reason        model.FailureReason
	StatusCode    int
	Duration      time.Duration
	InvalidFields []string
	Err           string
	Timestamp     time.Time
}
