package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists documents in the kv_store table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL. The schema is created
// by RunMigrations.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertQuery = `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

func (p *PostgresStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	var value []byte
	err := p.db.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return ErrEmptyKey
	}
	if _, err := p.db.Exec(ctx, upsertQuery, key, []byte(value)); err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if _, err := p.db.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

// Update serialises writers per key with transaction-scoped advisory locks,
// taken in sorted order, so rows that do not exist yet are covered too.
func (p *PostgresStore) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	if err := validateKeys(keys); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	ordered := append([]string(nil), keys...)
	sort.Strings(ordered)
	for i, k := range ordered {
		if i > 0 && ordered[i-1] == k {
			continue
		}
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, k); err != nil {
			return fmt.Errorf("lock %s: %w", k, err)
		}
	}

	rows, err := tx.Query(ctx, `SELECT key, value FROM kv_store WHERE key = ANY($1)`, keys)
	if err != nil {
		return err
	}
	current := make(map[string]json.RawMessage, len(keys))
	for rows.Next() {
		var (
			k string
			v []byte
		)
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return err
		}
		current[k] = json.RawMessage(v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := checkWriteSet(keys, next); err != nil {
		return err
	}
	for k, v := range next {
		if v == nil {
			if _, err := tx.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, k); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.Exec(ctx, upsertQuery, k, []byte(v)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
