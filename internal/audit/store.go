// Package audit keeps operator-facing diagnostics of delivery attempts.
// Records never contain form values.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/xtremefabrix/formrelay/model"
)

// Record is the diagnostic trail of one submission attempt.
type Record struct {
	ID            string              `json:"id"`
	FormID        string              `json:"form_id"`
	InstanceID    string              `json:"instance_id,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	Outcome       model.OutcomeKind   `json:"outcome"`
	Reason        model.FailureReason `json:"reason,omitempty"`
	StatusCode    int                 `json:"status_code,omitempty"`
	DurationMs    int64               `json:"duration_ms"`
	InvalidFields []string            `json:"invalid_fields,omitempty"`
	Error         string              `json:"error,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Query filters Recent.
type Query struct {
	FormID string
	Limit  int
}

// DefaultLimit caps Recent when Query.Limit is unset.
const DefaultLimit = 50

// Store persists audit records.
type Store interface {
	Append(ctx context.Context, r Record) error
	// Recent returns the newest records first.
	Recent(ctx context.Context, q Query) ([]Record, error)
}

func (q Query) limit() int {
	if q.Limit <= 0 || q.Limit > 500 {
		return DefaultLimit
	}
	return q.Limit
}

// MemoryStore is a fixed-size ring of the latest records.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	next    int
	full    bool
}

// NewMemoryStore creates a ring holding at most capacity records.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{records: make([]Record, capacity)}
}

// Append adds a record, evicting the oldest when full.
func (s *MemoryStore) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[s.next] = r
	s.next = (s.next + 1) % len(s.records)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// Recent returns matching records, newest first.
func (s *MemoryStore) Recent(_ context.Context, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.full {
		n = len(s.records)
	}
	limit := q.limit()
	out := make([]Record, 0, min(limit, n))
	for i := 0; i < n && len(out) < limit; i++ {
		idx := (s.next - 1 - i + len(s.records)) % len(s.records)
		r := s.records[idx]
		if q.FormID != "" && r.FormID != q.FormID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(context.Context) error { return nil }

// Len returns the number of retained records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.records)
	}
	return s.next
}
