package submission

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xtremefabrix/formrelay/model"
)

// DefaultIdempotencyTTL is how long a submit result is replayable.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore deduplicates one-shot submissions. Only the outcome is
// kept; form values are represented by their hash.
type IdempotencyStore interface {
	// Check looks up a previous outcome. A key reused with a different
	// values hash yields a CONFLICT error.
	Check(ctx context.Context, key, valuesHash string) (outcome *model.Outcome, found bool, err error)

	// Store saves an outcome under key with a TTL.
	Store(ctx context.Context, key, valuesHash string, outcome model.Outcome, ttl time.Duration) error
}

type idempotencyEntry struct {
	ValuesHash string        `json:"values_hash"`
	Outcome    model.Outcome `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
}

// FormatIdempotencyKey builds the storage key for a form and client key.
func FormatIdempotencyKey(formID, key string) string {
	return fmt.Sprintf("idem:%s:%s", formID, key)
}

// HashValues returns a stable digest of values. Map keys are marshalled in
// sorted order.
func HashValues(values model.Values) string {
	data, _ := json.Marshal(values)
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func keyConflict(key string) error {
	return model.NewConflictError(fmt.Sprintf("idempotency key %q already used with different values", key))
}

// --- MemoryIdempotencyStore ---

// MemoryIdempotencyStore is an in-process IdempotencyStore with TTL.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	now     func() time.Time
}

type memEntry struct {
	data      idempotencyEntry
	expiresAt time.Time
}

// NewMemoryIdempotencyStore creates an empty store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]*memEntry),
		now:     time.Now,
	}
}

// Check looks up a stored outcome.
func (s *MemoryIdempotencyStore) Check(_ context.Context, key, valuesHash string) (*model.Outcome, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	if entry.data.ValuesHash != valuesHash {
		return nil, true, keyConflict(key)
	}

	outcome := entry.data.Outcome
	return &outcome, true, nil
}

// Store saves an outcome.
func (s *MemoryIdempotencyStore) Store(_ context.Context, key, valuesHash string, outcome model.Outcome, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memEntry{
		data:      idempotencyEntry{ValuesHash: valuesHash, Outcome: strip(outcome)},
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (s *MemoryIdempotencyStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// HealthCheck always succeeds.
func (s *MemoryIdempotencyStore) HealthCheck(context.Context) error { return nil }

// Len returns the number of entries, expired ones included.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// --- RedisIdempotencyStore ---

// RedisIdempotencyStore keeps entries in Redis with native expiry.
type RedisIdempotencyStore struct {
	client redis.Cmdable
}

// NewRedisIdempotencyStore creates a Redis-backed store.
func NewRedisIdempotencyStore(client redis.Cmdable) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

// Check looks up a stored outcome.
func (s *RedisIdempotencyStore) Check(ctx context.Context, key, valuesHash string) (*model.Outcome, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var entry idempotencyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal idempotency entry %q: %w", key, err)
	}
	if entry.ValuesHash != valuesHash {
		return nil, true, keyConflict(key)
	}
	entry.Outcome.StatusCode = entry.StatusCode
	return &entry.Outcome, true, nil
}

// Store saves an outcome with a TTL.
func (s *RedisIdempotencyStore) Store(ctx context.Context, key, valuesHash string, outcome model.Outcome, ttl time.Duration) error {
	data, err := json.Marshal(idempotencyEntry{ValuesHash: valuesHash, Outcome: strip(outcome), StatusCode: outcome.StatusCode})
	if err != nil {
		return fmt.Errorf("marshal idempotency entry: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// HealthCheck pings Redis.
func (s *RedisIdempotencyStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// strip drops diagnostic-only fields so memory and Redis replay the same
// outcome.
func strip(o model.Outcome) model.Outcome {
	return model.Outcome{Kind: o.Kind, StatusCode: o.StatusCode, Errors: o.Errors}
}
