package submission

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xtremefabrix/formrelay/model"
)

// MemoryInstanceStore is the in-process InstanceStore.
type MemoryInstanceStore struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewMemoryInstanceStore creates an empty store.
func NewMemoryInstanceStore() *MemoryInstanceStore {
	return &MemoryInstanceStore{instances: make(map[string]*Instance)}
}

// Create adds an instance.
func (s *MemoryInstanceStore) Create(_ context.Context, inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[inst.ID()]; exists {
		return model.NewConflictError(fmt.Sprintf("form instance %q already exists", inst.ID()))
	}
	s.instances[inst.ID()] = inst
	return nil
}

// Get returns an instance by ID.
func (s *MemoryInstanceStore) Get(_ context.Context, id string) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, exists := s.instances[id]
	if !exists {
		return nil, model.NewNotFoundError(fmt.Sprintf("form instance %q not found", id))
	}
	return inst, nil
}

// Delete removes an instance.
func (s *MemoryInstanceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[id]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("form instance %q not found", id))
	}
	delete(s.instances, id)
	return nil
}

// FindExpired returns instances past their expiry, oldest first.
func (s *MemoryInstanceStore) FindExpired(_ context.Context, cutoff time.Time) ([]*Instance, error) {
	s.mu.RLock()
	candidates := make([]*Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		candidates = append(candidates, inst)
	}
	s.mu.RUnlock()

	type expiring struct {
		inst *Instance
		at   time.Time
	}
	var result []expiring
	for _, inst := range candidates {
		if at := inst.ExpiresAt(); at.Before(cutoff) {
			result = append(result, expiring{inst: inst, at: at})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].at.Before(result[j].at)
	})

	out := make([]*Instance, len(result))
	for i, e := range result {
		out[i] = e.inst
	}
	return out, nil
}

// Len returns the number of instances.
func (s *MemoryInstanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}
