package submission

import (
	"context"
	"time"
)

// InstanceStore holds live form instances. Instances own a mutex and a
// pipeline, so stores keep them in process.
type InstanceStore interface {
	// Create adds a new instance. Returns CONFLICT if the ID is taken.
	Create(ctx context.Context, inst *Instance) error

	// Get returns the instance with the given ID, or NOT_FOUND.
	Get(ctx context.Context, id string) (*Instance, error)

	// Delete removes the instance, or returns NOT_FOUND.
	Delete(ctx context.Context, id string) error

	// FindExpired returns instances whose expires_at is before cutoff,
	// oldest first.
	FindExpired(ctx context.Context, cutoff time.Time) ([]*Instance, error)

	// Len returns the number of stored instances.
	Len() int
}
