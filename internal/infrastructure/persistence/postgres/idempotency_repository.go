package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fincore/xs2a-consent-gateway/internal/idempotency"
	"github.com/jackc/pgx/v5"
)

// IdempotencyRepository is the postgres-backed idempotency record store.
// The unique constraint on the key column makes the first insert win when
// several gateway instances race on the same key.
type IdempotencyRepository struct {
	db           *DB
	accessExpiry time.Duration
	modifyExpiry time.Duration
}

var _ idempotency.Store = (*IdempotencyRepository)(nil)

func NewIdempotencyRepository(db *DB, accessExpiry, modifyExpiry time.Duration) *IdempotencyRepository {
	return &IdempotencyRepository{
		db:           db,
		accessExpiry: accessExpiry,
		modifyExpiry: modifyExpiry,
	}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Record, bool, error) {
	// The access timestamp is refreshed in the same round trip; expired rows
	// are filtered rather than deleted, the eviction worker removes them.
	query := `
		UPDATE idempotency_records
		SET last_accessed_at = now()
		WHERE key = $1
		  AND last_accessed_at > now() - make_interval(secs => $2)
		  AND created_at > now() - make_interval(secs => $3)
		RETURNING body_hash, status_code, response, created_at, last_accessed_at
	`

	var record idempotency.Record
	err := r.db.Pool.QueryRow(ctx, query, key,
		r.accessExpiry.Seconds(), r.modifyExpiry.Seconds(),
	).Scan(
		&record.BodyHash,
		&record.StatusCode,
		&record.Response,
		&record.CreatedAt,
		&record.LastAccessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return &record, true, nil
}

func (r *IdempotencyRepository) Put(ctx context.Context, key string, record idempotency.Record) error {
	// An expired leftover row under the same key is replaced; a live row is
	// never overwritten, records are immutable once stored.
	query := `
		INSERT INTO idempotency_records (key, body_hash, status_code, response, created_at, last_accessed_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (key) DO UPDATE
		SET body_hash = EXCLUDED.body_hash,
		    status_code = EXCLUDED.status_code,
		    response = EXCLUDED.response,
		    created_at = EXCLUDED.created_at,
		    last_accessed_at = EXCLUDED.last_accessed_at
		WHERE idempotency_records.last_accessed_at <= now() - make_interval(secs => $5)
		   OR idempotency_records.created_at <= now() - make_interval(secs => $6)
	`

	_, err := r.db.Pool.Exec(ctx, query, key,
		record.BodyHash, record.StatusCode, record.Response,
		r.accessExpiry.Seconds(), r.modifyExpiry.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to store idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM idempotency_records WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Evict(ctx context.Context, limit int) (int, error) {
	query := `
		DELETE FROM idempotency_records
		WHERE key IN (
			SELECT key FROM idempotency_records
			WHERE last_accessed_at <= now() - make_interval(secs => $1)
			   OR created_at <= now() - make_interval(secs => $2)
			LIMIT $3
		)
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		r.accessExpiry.Seconds(), r.modifyExpiry.Seconds(), limit,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to evict idempotency records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
