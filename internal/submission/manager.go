package submission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xtremefabrix/formrelay/model"
)

// DefaultInstanceTTL is how long an untouched instance lives.
const DefaultInstanceTTL = 30 * time.Minute

// InstanceMetrics receives instance lifecycle counts.
type InstanceMetrics interface {
	SetActiveInstances(n int)
	RecordReaped(n int)
	RecordInFlightRejection(formID string)
}

// Manager opens, looks up and closes form instances.
type Manager struct {
	pipelines map[string]*Pipeline
	store     InstanceStore
	ttl       time.Duration
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
	metrics   InstanceMetrics
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithInstanceTTL sets the idle lifetime of instances.
func WithInstanceTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithManagerClock overrides the manager's time source.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides instance ID generation.
func WithIDGenerator(gen func() string) ManagerOption {
	return func(m *Manager) { m.newID = gen }
}

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithInstanceMetrics sets the instance metrics sink.
func WithInstanceMetrics(im InstanceMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = im }
}

// NewManager creates a Manager over the given pipelines, keyed by form ID.
func NewManager(pipelines []*Pipeline, store InstanceStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		pipelines: make(map[string]*Pipeline, len(pipelines)),
		store:     store,
		ttl:       DefaultInstanceTTL,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    zap.NewNop(),
	}
	for _, p := range pipelines {
		m.pipelines[p.Schema().ID] = p
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Pipeline returns the pipeline of a form.
func (m *Manager) Pipeline(formID string) (*Pipeline, bool) {
	p, ok := m.pipelines[formID]
	return p, ok
}

// Pipelines returns every pipeline ordered by form ID.
func (m *Manager) Pipelines() []*Pipeline {
	out := make([]*Pipeline, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Schema().ID < out[j].Schema().ID
	})
	return out
}

// Open mounts a new instance of a form with default values.
func (m *Manager) Open(ctx context.Context, formID string) (*Instance, error) {
	p, ok := m.pipelines[formID]
	if !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("form %q not found", formID))
	}

	inst := newInstance(m.newID(), p, m.ttl, m.now)
	if err := m.store.Create(ctx, inst); err != nil {
		return nil, err
	}
	m.reportActive()
	return inst, nil
}

// Get returns a live instance.
func (m *Manager) Get(ctx context.Context, id string) (*Instance, error) {
	return m.store.Get(ctx, id)
}

// Submit submits an instance and counts in-flight rejections.
func (m *Manager) Submit(ctx context.Context, id string) (*Instance, model.Outcome, error) {
	inst, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, model.Outcome{}, err
	}
	outcome, err := inst.Submit(ctx)
	if err != nil {
		var env *model.ErrorEnvelope
		if errors.As(err, &env) && env.Code == model.ErrSubmissionInFlight && m.metrics != nil {
			m.metrics.RecordInFlightRejection(inst.FormID())
		}
		return inst, model.Outcome{}, err
	}
	return inst, outcome, nil
}

// Close unmounts an instance. Its in-flight submission, if any, completes
// without effect.
func (m *Manager) Close(ctx context.Context, id string) error {
	inst, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	inst.Close()
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.reportActive()
	return nil
}

// ReapExpired closes and removes instances idle past their TTL. It returns
// how many were removed.
func (m *Manager) ReapExpired(ctx context.Context) (int, error) {
	expired, err := m.store.FindExpired(ctx, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("finding expired instances: %w", err)
	}

	reaped := 0
	for _, inst := range expired {
		inst.Close()
		if err := m.store.Delete(ctx, inst.ID()); err != nil {
			m.logger.Debug("expired instance already removed", zap.String("instance_id", inst.ID()))
			continue
		}
		reaped++
	}

	if reaped > 0 {
		m.logger.Info("reaped expired form instances", zap.Int("count", reaped))
		if m.metrics != nil {
			m.metrics.RecordReaped(reaped)
		}
		m.reportActive()
	}
	return reaped, nil
}

// Len returns the number of live instances.
func (m *Manager) Len() int {
	return m.store.Len()
}

func (m *Manager) reportActive() {
	if m.metrics != nil {
		m.metrics.SetActiveInstances(m.store.Len())
	}
}
