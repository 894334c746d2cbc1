package submission

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xtremefabrix/formrelay/internal/observability"
	"github.com/xtremefabrix/formrelay/model"
)

// Deduplicator makes one-shot submits carrying a client key at-most-once
// per key and values: a repeat replays the stored outcome without a second
// delivery. Concurrent repeats inside this process share one delivery.
type Deduplicator struct {
	store  IdempotencyStore
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
}

// NewDeduplicator creates a Deduplicator. A nil store disables replay.
func NewDeduplicator(store IdempotencyStore, ttl time.Duration, logger *zap.Logger) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{store: store, ttl: ttl, logger: logger}
}

type dedupeResult struct {
	outcome  model.Outcome
	hash     string
	replayed bool
	err      error
}

// Submit runs p.Submit unless key was already delivered with the same
// values. replayed reports a stored outcome was returned. Only delivered
// outcomes are stored, so a failed attempt may be retried under the same key.
// Concurrent calls with one key share a single attempt; a caller whose values
// differ from the shared attempt's gets CONFLICT unless the store holds an
// outcome for its own values.
func (d *Deduplicator) Submit(ctx context.Context, p *Pipeline, key string, values model.Values) (outcome model.Outcome, replayed bool, err error) {
	if d == nil || d.store == nil || key == "" {
		return p.Submit(ctx, values), false, nil
	}

	storeKey := FormatIdempotencyKey(p.Schema().ID, key)
	hash := HashValues(values)

	v, err, _ := d.group.Do(storeKey, func() (any, error) {
		prev, found, err := d.store.Check(ctx, storeKey, hash)
		if found && err != nil {
			return dedupeResult{hash: hash, err: err}, nil
		}
		if err != nil {
			return nil, err
		}
		if found {
			return dedupeResult{outcome: *prev, hash: hash, replayed: true}, nil
		}

		out := p.Submit(ctx, values)
		if out.Delivered() {
			if err := d.store.Store(ctx, storeKey, hash, out, d.ttl); err != nil {
				observability.RequestLogger(ctx, d.logger).Error("storing idempotency entry failed",
					zap.String("form_id", p.Schema().ID),
					zap.Error(err),
				)
			}
		}
		return dedupeResult{outcome: out, hash: hash}, nil
	})
	if err != nil {
		return model.Outcome{}, false, err
	}

	r := v.(dedupeResult)
	if r.hash != hash {
		r = d.answerFromStore(ctx, storeKey, hash)
	}
	if r.err != nil {
		return model.Outcome{}, false, r.err
	}
	observability.MarkReplayed(ctx, r.replayed)
	return r.outcome, r.replayed, nil
}

// answerFromStore resolves a caller that shared an attempt made with other
// values: it replays an outcome stored for its own values and otherwise
// reports the key as taken.
func (d *Deduplicator) answerFromStore(ctx context.Context, storeKey, hash string) dedupeResult {
	prev, found, err := d.store.Check(ctx, storeKey, hash)
	switch {
	case err != nil:
		return dedupeResult{hash: hash, err: err}
	case found:
		return dedupeResult{outcome: *prev, hash: hash, replayed: true}
	default:
		return dedupeResult{hash: hash, err: keyConflict(storeKey)}
	}
}
