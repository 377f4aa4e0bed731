// Package store is the relational access layer for calendar data. Reads
// are shaped for minimal round-trips: the custody views are a single
// join against the users table instead of two sequential queries, and
// rely on the composite (family_id, date) index. All statements are
// parameterized; database errors always propagate to the caller and are
// never cached.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultQueryTimeout bounds a single database query. It is deliberately
// longer than the cache operation timeout: the database is a dependency,
// the cache is not.
const DefaultQueryTimeout = 10 * time.Second

// ErrNotFound reports that a row the caller addressed does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps a *sql.DB with query timeouts and logging.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Store. A zero timeout falls back to DefaultQueryTimeout.
func New(db *sql.DB, timeout time.Duration, logger *zap.Logger) *Store {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, timeout: timeout, logger: logger}
}

func (s *Store) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
