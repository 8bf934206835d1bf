// SPDX-License-Identifier: Apache-2.0

// Package txn implements the transaction boundary: two execution modes,
// transact (BEGIN/COMMIT/ROLLBACK around a composite action) and run
// (no transaction, for statements the warehouse forbids inside one).
// BEGIN/COMMIT/ROLLBACK are rendered through Target rather than
// driver-native sql.Tx, because warehouse SQL dialects (Redshift,
// Snowflake) expect literal transaction-control statements over the
// wire rather than a JDBC/database-sql-level transaction.
package txn

import (
	"context"
	"database/sql"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/dbexec"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/target"
)

// poolSize is fixed: enough because loads are
// single-flight, with spares for manifest reads, folder monitor, and
// ready-check.
const poolSize = 4

// DB is a pooled warehouse connection bound to one Target dialect.
type DB struct {
	conn   *sql.DB
	target target.Target
}

// Open wraps an already-constructed *sql.DB (via the driver-specific
// sql.Open call in cmd/) with the pool sizing and dialect binding the
// transaction boundary requires. The driver's autocommit mode is left
// unchanged: statements issued through Run commit one by one, and
// Transact groups its statements between an explicit BEGIN and
// COMMIT/ROLLBACK over the connection it holds for the call's duration.
func Open(conn *sql.DB, t target.Target) *DB {
	conn.SetMaxOpenConns(poolSize)
	conn.SetMaxIdleConns(poolSize)
	return &DB{conn: conn, target: t}
}

func (d *DB) Close() error { return d.conn.Close() }

// connExecutor adapts *sql.Conn to dbexec.Executor.
type connExecutor struct {
	conn *sql.Conn
}

func (c connExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

func (c connExecutor) QueryRowContext(ctx context.Context, query string, args ...any) dbexec.RowScanner {
	return c.conn.QueryRowContext(ctx, query, args...)
}

func (c connExecutor) QueryContext(ctx context.Context, query string, args ...any) (dbexec.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (d *DB) render(s target.Statement) (string, error) {
	return d.target.ToFragment(s)
}

// Run acquires a connection, runs action with no transaction wrapper,
// and releases the connection. Used for statements the warehouse
// forbids inside a transaction (e.g. pre-transaction widening ALTERs).
func (d *DB) Run(ctx context.Context, action func(ctx context.Context, exec dbexec.Executor) error) error {
	conn, err := d.conn.Conn(ctx)
	if err != nil {
		return loaderrors.TransientDBError{Err: err}
	}
	defer conn.Close()

	return action(ctx, connExecutor{conn: conn})
}

// Transact acquires a connection, issues BEGIN, runs action, then
// COMMITs on success or ROLLBACKs on any failure, before releasing the
// connection.
func (d *DB) Transact(ctx context.Context, action func(ctx context.Context, exec dbexec.Executor) error) error {
	conn, err := d.conn.Conn(ctx)
	if err != nil {
		return loaderrors.TransientDBError{Err: err}
	}
	defer conn.Close()

	exec := connExecutor{conn: conn}

	begin, err := d.render(target.Begin())
	if err != nil {
		return err
	}
	if _, err := exec.ExecContext(ctx, begin); err != nil {
		return loaderrors.TransientDBError{Err: err}
	}

	if err := action(ctx, exec); err != nil {
		abort, rerr := d.render(target.Abort())
		if rerr == nil {
			_, _ = exec.ExecContext(ctx, abort)
		}
		return err
	}

	commit, err := d.render(target.Commit())
	if err != nil {
		return err
	}
	if _, err := exec.ExecContext(ctx, commit); err != nil {
		return loaderrors.TransientDBError{Err: err}
	}
	return nil
}
