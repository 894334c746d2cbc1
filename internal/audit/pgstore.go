package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PgStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Schema creates the delivery_audit table.
const Schema = `
CREATE TABLE IF NOT EXISTS delivery_audit (
	id             TEXT PRIMARY KEY,
	form_id        TEXT NOT NULL,
	instance_id    TEXT NOT NULL DEFAULT '',
	correlation_id TEXT NOT NULL DEFAULT '',
	outcome        TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	status_code    INTEGER NOT NULL DEFAULT 0,
	duration_ms    BIGINT NOT NULL DEFAULT 0,
	invalid_fields TEXT[] NOT NULL DEFAULT '{}',
	error          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS delivery_audit_form_created_idx
	ON delivery_audit (form_id, created_at DESC);`

// PgStore is a PostgreSQL-backed Store using pgx/v5.
type PgStore struct {
	db DB
}

// NewPgStore creates a PgStore.
func NewPgStore(db DB) *PgStore {
	return &PgStore{db: db}
}

// Migrate creates the audit table if it does not exist.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create delivery_audit: %w", err)
	}
	return nil
}

// Append inserts a record.
func (s *PgStore) Append(ctx context.Context, r Record) error {
	fields := r.InvalidFields
	if fields == nil {
		fields = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO delivery_audit (
			id, form_id, instance_id, correlation_id,
			outcome, reason, status_code, duration_ms,
			invalid_fields, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.FormID, r.InstanceID, r.CorrelationID,
		string(r.Outcome), string(r.Reason), r.StatusCode, r.DurationMs,
		fields, r.Error, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Recent returns matching records, newest first.
func (s *PgStore) Recent(ctx context.Context, q Query) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, form_id, instance_id, correlation_id,
		       outcome, reason, status_code, duration_ms,
		       invalid_fields, error, created_at
		FROM delivery_audit
		WHERE $1 = '' OR form_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		q.FormID, q.limit(),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(
			&r.ID, &r.FormID, &r.InstanceID, &r.CorrelationID,
			&r.Outcome, &r.Reason, &r.StatusCode, &r.DurationMs,
			&r.InvalidFields, &r.Error, &r.CreatedAt,
		)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit records: %w", err)
	}
	return records, nil
}

// HealthCheck pings the database.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.db.Ping(ctx)
}
