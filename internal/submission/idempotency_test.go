package submission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtremefabrix/formrelay/internal/observability"
	"github.com/xtremefabrix/formrelay/model"
)

func newRedisStore(t *testing.T) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisIdempotencyStore(client), mr
}

func stores(t *testing.T) map[string]IdempotencyStore {
	redisStore, _ := newRedisStore(t)
	return map[string]IdempotencyStore{
		"memory": NewMemoryIdempotencyStore(),
		"redis":  redisStore,
	}
}

// --- Stores ---

func TestIdempotencyStore_roundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := FormatIdempotencyKey("contact", "k1")
			hash := HashValues(validContactValues())

			_, found, err := s.Check(ctx, key, hash)
			require.NoError(t, err)
			assert.False(t, found)

			outcome := model.Outcome{Kind: model.OutcomeDelivered, StatusCode: 200, Cause: context.Canceled, Duration: time.Second}
			require.NoError(t, s.Store(ctx, key, hash, outcome, time.Hour))

			got, found, err := s.Check(ctx, key, hash)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, model.Outcome{Kind: model.OutcomeDelivered, StatusCode: 200}, *got)
		})
	}
}

func TestIdempotencyStore_conflictOnDifferentValues(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := FormatIdempotencyKey("contact", "k2")
			require.NoError(t, s.Store(ctx, key, "hash-a", model.Outcome{Kind: model.OutcomeDelivered}, time.Hour))

			_, found, err := s.Check(ctx, key, "hash-b")
			assert.True(t, found)
			requireCode(t, err, model.ErrConflict)
		})
	}
}

func TestMemoryIdempotencyStore_expiry(t *testing.T) {
	s := NewMemoryIdempotencyStore()
	now := fixedNow
	s.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "idem:contact:a", "h", model.Outcome{Kind: model.OutcomeDelivered}, time.Minute))
	require.NoError(t, s.Store(ctx, "idem:contact:b", "h", model.Outcome{Kind: model.OutcomeDelivered}, time.Hour))

	now = now.Add(2 * time.Minute)
	_, found, err := s.Check(ctx, "idem:contact:a", "h")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, 0, s.Purge())
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.Purge())
	assert.Equal(t, 0, s.Len())
}

func TestRedisIdempotencyStore_expiry(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "idem:contact:a", "h", model.Outcome{Kind: model.OutcomeDelivered}, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, found, err := s.Check(ctx, "idem:contact:a", "h")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisIdempotencyStore_healthCheck(t *testing.T) {
	s, mr := newRedisStore(t)
	assert.NoError(t, s.HealthCheck(context.Background()))
	mr.Close()
	assert.Error(t, s.HealthCheck(context.Background()))
}

func TestRedisIdempotencyStore_corruptEntry(t *testing.T) {
	s, mr := newRedisStore(t)
	require.NoError(t, mr.Set("idem:contact:bad", "{not json"))

	_, _, err := s.Check(context.Background(), "idem:contact:bad", "h")
	assert.Error(t, err)
}

func TestHashValues_stable(t *testing.T) {
	a := model.Values{"b": "2", "a": "1"}
	b := model.Values{"a": "1", "b": "2"}
	assert.Equal(t, HashValues(a), HashValues(b))
	assert.NotEqual(t, HashValues(a), HashValues(model.Values{"a": "1", "b": "3"}))
}

// --- Deduplicator ---

func TestDeduplicator_replaysDeliveredOutcome(t *testing.T) {
	d := newFakeDeliverer(model.OutcomeDelivered, 200)
	p := contactPipeline(d)
	dd := NewDeduplicator(NewMemoryIdempotencyStore(), time.Hour, nil)

	first, replayed, err := dd.Submit(context.Background(), p, "key-1", validContactValues())
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, model.OutcomeDelivered, first.Kind)

	second, replayed, err := dd.Submit(context.Background(), p, "key-1", validContactValues())
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, model.OutcomeDelivered, second.Kind)
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestDeduplicator_conflictOnChangedValues(t *testing.T) {
	p := contactPipeline(newFakeDeliverer(model.OutcomeDelivered, 200))
	dd := NewDeduplicator(NewMemoryIdempotencyStore(), time.Hour, nil)

	_, _, err := dd.Submit(context.Background(), p, "key-1", validContactValues())
	require.NoError(t, err)

	changed := validContactValues()
	changed["subject"] = "Different subject"
	_, _, err = dd.Submit(context.Background(), p, "key-1", changed)
	requireCode(t, err, model.ErrConflict)
}

func TestDeduplicator_failuresAreNotStored(t *testing.T) {
	d := newFakeDeliverer(model.OutcomeRejected, 500)
	p := contactPipeline(d)
	dd := NewDeduplicator(NewMemoryIdempotencyStore(), time.Hour, nil)

	_, _, _ = dd.Submit(context.Background(), p, "key-1", validContactValues())
	_, replayed, err := dd.Submit(context.Background(), p, "key-1", validContactValues())
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, int32(2), d.calls.Load())
}

func TestDeduplicator_withoutKeyAlwaysSubmits(t *testing.T) {
	d := newFakeDeliverer(model.OutcomeDelivered, 200)
	p := contactPipeline(d)
	dd := NewDeduplicator(NewMemoryIdempotencyStore(), time.Hour, nil)

	for i := 0; i < 2; i++ {
		_, replayed, err := dd.Submit(context.Background(), p, "", validContactValues())
		require.NoError(t, err)
		assert.False(t, replayed)
	}
	assert.Equal(t, int32(2), d.calls.Load())

	var nilDedupe *Deduplicator
	_, _, err := nilDedupe.Submit(context.Background(), p, "key", validContactValues())
	require.NoError(t, err)
	assert.Equal(t, int32(3), d.calls.Load())
}

func TestDeduplicator_concurrentSameKeyDeliversOnce(t *testing.T) {
	d := newFakeDeliverer(model.OutcomeDelivered, 200).blocking()
	p := contactPipeline(d)
	dd := NewDeduplicator(NewMemoryIdempotencyStore(), time.Hour, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = dd.Submit(context.Background(), p, "key-1", validContactValues())
	}()
	<-d.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = dd.Submit(context.Background(), p, "key-1", validContactValues())
	}()

	d.release()
	wg.Wait()
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestDeduplicator_concurrentChangedValuesConflict(t *testing.T) {
	d := newFakeDeliverer(model.OutcomeDelivered, 200).blocking()
	p := contactPipeline(d)
	dd := NewDeduplicator(NewMemoryIdempotencyStore(), time.Hour, nil)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, firstErr = dd.Submit(context.Background(), p, "key-1", validContactValues())
	}()
	<-d.started

	changed := validContactValues()
	changed["subject"] = "Different subject"
	var secondErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, secondErr = dd.Submit(context.Background(), p, "key-1", changed)
	}()

	time.Sleep(20 * time.Millisecond)
	d.release()
	wg.Wait()

	require.NoError(t, firstErr)
	requireCode(t, secondErr, model.ErrConflict)
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestDeduplicator_marksReplayOnSpan(t *testing.T) {
	sr := recordSpans(t)
	p := contactPipeline(newFakeDeliverer(model.OutcomeDelivered, 200))
	dd := NewDeduplicator(NewMemoryIdempotencyStore(), time.Hour, nil)

	for i := 0; i < 2; i++ {
		ctx, span := observability.StartSubmission(context.Background(), "contact", "")
		_, _, err := dd.Submit(ctx, p, "key-1", validContactValues())
		require.NoError(t, err)
		span.End()
	}

	var marks []string
	for _, s := range sr.Ended() {
		if s.Name() != observability.SpanSubmission || s.Parent().IsValid() {
			continue
		}
		marks = append(marks, spanAttrs(s)["formrelay.idempotent_replay"])
	}
	assert.Equal(t, []string{"false", "true"}, marks)
}
