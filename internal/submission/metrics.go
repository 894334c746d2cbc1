package submission

import (
	"context"
	"time"
)

// SubmissionMetrics receives per-attempt counts.
type SubmissionMetrics interface {
	RecordSubmission(formID, outcome string, duration time.Duration)
	RecordValidationFailure(formID, field string)
}

// NewMetricsObserver returns an Observer that feeds m.
func NewMetricsObserver(m SubmissionMetrics) Observer {
	return ObserverFunc(func(_ context.Context, e Event) {
		m.RecordSubmission(e.FormID, string(e.Outcome), e.Duration)
		for _, field := range e.InvalidFields {
			m.RecordValidationFailure(e.FormID, field)
		}
	})
}
