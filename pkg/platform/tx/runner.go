package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "claimdesk/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// Runner provides a transactional boundary. Stores called with the context
// passed to fn join the transaction through Conn.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PostgresRunner runs fn inside a database transaction.
type PostgresRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresRunner(db *sql.DB) *PostgresRunner {
	return &PostgresRunner{db: db, timeout: defaultTxTimeout}
}

// WithTimeout overrides the deadline applied when ctx has none.
func (t *PostgresRunner) WithTimeout(d time.Duration) *PostgresRunner {
	t.timeout = d
	return t
}

func (t *PostgresRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, open := From(ctx); open {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// LockRunner serializes fn under a single mutex. In-memory stores have no
// rollback, so callers compensate explicitly on error. Nested calls made
// with the context passed to fn run inline, mirroring how PostgresRunner
// joins an open transaction.
type LockRunner struct {
	mu sync.Mutex
}

type lockHeldKey struct{}

func NewLockRunner() *LockRunner {
	return &LockRunner{}
}

func (t *LockRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if held, _ := ctx.Value(lockHeldKey{}).(*LockRunner); held == t {
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(context.WithValue(ctx, lockHeldKey{}, t))
}
