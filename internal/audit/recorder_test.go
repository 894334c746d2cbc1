package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xtremefabrix/formrelay/internal/submission"
	"github.com/xtremefabrix/formrelay/model"
)

type failingStore struct{}

func (failingStore) Append(context.Context, Record) error { return errors.New("disk full") }
func (failingStore) Recent(context.Context, Query) ([]Record, error) {
	return nil, nil
}

func TestRecorder_writesRecord(t *testing.T) {
	store := NewMemoryStore(10)
	r := NewRecorder(store, nil)

	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	r.OnSubmission(context.Background(), submission.Event{
		FormID:        "testimonial",
		InstanceID:    "inst-1",
		CorrelationID: "corr-1",
		Outcome:       model.OutcomeRejected,
		Reason:        model.ReasonStatus,
		StatusCode:    500,
		Duration:      1500 * time.Millisecond,
		Err:           "delivery: form \"testimonial\" webhook answered 500",
		Timestamp:     at,
	})

	got, err := store.Recent(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "testimonial", got[0].FormID)
	assert.Equal(t, model.OutcomeRejected, got[0].Outcome)
	assert.Equal(t, 500, got[0].StatusCode)
	assert.Equal(t, int64(1500), got[0].DurationMs)
	assert.Equal(t, at, got[0].CreatedAt)
}

func TestRecorder_storeFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := NewRecorder(failingStore{}, zap.New(core))

	assert.NotPanics(t, func() {
		r.OnSubmission(context.Background(), submission.Event{FormID: "contact", Outcome: model.OutcomeDelivered})
	})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "audit append failed", logs.All()[0].Message)
}

func TestRecorder_isSubmissionObserver(t *testing.T) {
	var _ submission.Observer = NewRecorder(NewMemoryStore(1), nil)
}
