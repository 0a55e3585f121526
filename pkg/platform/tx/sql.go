package tx

import (
	"context"
	"database/sql"
	"time"
)

// SQLRunner runs functions inside a database/sql transaction.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLRunner builds a runner over db. A zero timeout means DefaultTimeout.
func NewSQLRunner(db *sql.DB, timeout time.Duration) *SQLRunner {
	return &SQLRunner{db: db, timeout: timeout}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cancelled(ctx); err != nil {
		return err
	}
	if _, nested := From(ctx); nested {
		return fn(ctx)
	}

	ctx, cancel := boundedContext(ctx, r.timeout)
	defer cancel()

	sqlTx, err := r.db.BeginTx(ctx, nil)
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
