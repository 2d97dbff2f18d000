package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/regrant/regrant-auth/core"
	"github.com/regrant/regrant-auth/internal/dbx"
)

// PostgresStore keeps nonces in the siwe_nonces table. A single
// DELETE ... RETURNING makes consumption atomic across instances.
type PostgresStore struct {
	db   dbx.DBTX
	ttl  time.Duration
	opts options
}

// NewPostgresStore creates a new postgres nonce store
func NewPostgresStore(db dbx.DBTX, ttl time.Duration, opts ...Option) *PostgresStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &PostgresStore{
		db:   db,
		ttl:  ttl,
		opts: buildOptions(opts),
	}
}

// Issue creates a nonce for address
func (s *PostgresStore) Issue(ctx context.Context, address string) (string, error) {
	nonce, err := generateNonce(s.opts.encoding)
	if err != nil {
		return "", err
	}

	query :=
		`INSERT INTO siwe_nonces (address, nonce, expires_at)
		 VALUES ($1, $2, $3)
		 `

	expiresAt := s.opts.now().Add(s.ttl).UTC()
	if _, err := s.db.ExecContext(ctx, query, core.NormalizeAddress(address), nonce, expiresAt); err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}

	return nonce, nil
}

// Consume removes the nonce and reports whether it was present and unexpired
func (s *PostgresStore) Consume(ctx context.Context, address, nonce string) (bool, error) {
	query :=
		`DELETE FROM siwe_nonces
		 WHERE address = $1 AND nonce = $2
		 RETURNING expires_at
		 `

	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, query, core.NormalizeAddress(address), nonce).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return !s.opts.now().After(expiresAt), nil
}

// DeleteExpired removes nonces past their expiry
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	query :=
		`DELETE FROM siwe_nonces
		 WHERE expires_at < $1
		 `

	res, err := s.db.ExecContext(ctx, query, s.opts.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}
