package submission

import (
	"context"
	"sync"
	"time"

	"github.com/xtremefabrix/formrelay/model"
)

// Instance is one mounted form owned by a single visitor. All transitions
// happen under mu; the delivery itself runs unlocked.
//
//	idle ──submit──▶ submitting ──delivered──▶ succeeded ──acknowledge──▶ idle
//	  ▲                   │
//	  └──── failed ◀──────┘ rejected / unreachable
type Instance struct {
	id       string
	pipeline *Pipeline
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	values    model.Values
	state     model.SubmissionState
	last      *model.Outcome
	closed    bool
	createdAt time.Time
	updatedAt time.Time
	expiresAt time.Time
}

// Snapshot is a read-only copy of an instance.
type Snapshot struct {
	ID          string                `json:"id"`
	FormID      string                `json:"form_id"`
	State       model.SubmissionState `json:"state"`
	Values      model.Values          `json:"values"`
	LastOutcome *model.Outcome        `json:"last_outcome,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	ExpiresAt   time.Time             `json:"expires_at"`
}

func newInstance(id string, p *Pipeline, ttl time.Duration, now func() time.Time) *Instance {
	t := now().UTC()
	return &Instance{
		id:        id,
		pipeline:  p,
		ttl:       ttl,
		now:       now,
		values:    p.Defaults(),
		state:     model.StateIdle,
		createdAt: t,
		updatedAt: t,
		expiresAt: t.Add(ttl),
	}
}

// ID returns the instance ID.
func (i *Instance) ID() string { return i.id }

// FormID returns the ID of the instance's form.
func (i *Instance) FormID() string { return i.pipeline.schema.ID }

// Pipeline returns the pipeline the instance submits through.
func (i *Instance) Pipeline() *Pipeline { return i.pipeline }

// SetValues merges partial into the current values and returns the fresh
// validation of the whole form. Keys that are not fields are ignored.
// Editing a succeeded instance starts a new entry.
func (i *Instance) SetValues(partial model.Values) (model.ValidationResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil, model.NewInstanceClosedError(i.id)
	}
	if i.state == model.StateSubmitting {
		return nil, model.NewSubmissionInFlightError()
	}

	for name, v := range partial {
		if _, ok := i.pipeline.schema.Field(name); ok {
			i.values[name] = v
		}
	}
	if i.state == model.StateSucceeded {
		i.state = model.StateIdle
		i.last = nil
	}
	i.touch()
	return i.pipeline.Validate(i.values), nil
}

// Submit validates and delivers the current values. While a previous submit
// is in flight it fails with SUBMISSION_IN_FLIGHT and sends nothing.
//
// The delivery is detached from ctx cancellation and bounded only by the
// target timeout. If the instance is closed meanwhile, the result is returned
// but not applied.
func (i *Instance) Submit(ctx context.Context) (model.Outcome, error) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return model.Outcome{}, model.NewInstanceClosedError(i.id)
	}
	if i.state == model.StateSubmitting {
		i.mu.Unlock()
		return model.Outcome{}, model.NewSubmissionInFlightError()
	}

	prev := i.state
	if prev == model.StateSucceeded {
		prev = model.StateIdle
	}
	values := i.values.Clone()
	i.state = model.StateSubmitting
	i.touch()
	i.mu.Unlock()

	outcome := i.pipeline.submit(context.WithoutCancel(ctx), i.id, values)

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return outcome, nil
	}

	switch {
	case outcome.Delivered():
		i.state = model.StateSucceeded
		i.values = i.pipeline.Defaults()
	case outcome.Failed():
		i.state = model.StateFailed
	default:
		i.state = prev
	}
	i.last = &outcome
	i.touch()
	return outcome, nil
}

// Acknowledge dismisses a success and returns the instance to idle. It has
// no effect in any other state.
func (i *Instance) Acknowledge() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return model.NewInstanceClosedError(i.id)
	}
	if i.state == model.StateSucceeded {
		i.state = model.StateIdle
		i.last = nil
		i.touch()
	}
	return nil
}

// Close detaches the instance from its owner. A submission in flight still
// completes but its result is discarded.
func (i *Instance) Close() {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()
}

// Closed reports whether Close has been called.
func (i *Instance) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// State returns the current submission state.
func (i *Instance) State() model.SubmissionState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// ExpiresAt returns when the instance becomes eligible for reaping.
func (i *Instance) ExpiresAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.expiresAt
}

// Snapshot returns a copy of the instance's current state.
func (i *Instance) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()

	s := Snapshot{
		ID:        i.id,
		FormID:    i.pipeline.schema.ID,
		State:     i.state,
		Values:    i.values.Clone(),
		CreatedAt: i.createdAt,
		UpdatedAt: i.updatedAt,
		ExpiresAt: i.expiresAt,
	}
	if i.last != nil {
		last := *i.last
		s.LastOutcome = &last
	}
	return s
}

// touch must be called with mu held.
func (i *Instance) touch() {
	i.updatedAt = i.now().UTC()
	i.expiresAt = i.updatedAt.Add(i.ttl)
}
