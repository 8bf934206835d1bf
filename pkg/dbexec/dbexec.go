// SPDX-License-Identifier: Apache-2.0

// Package dbexec defines the minimal database surface shared by the
// manifest, migration planner, and transaction boundary packages. A
// *sql.Conn satisfies Executor once wrapped by pkg/txn's connExecutor.
package dbexec

import (
	"context"
	"database/sql"
)

// RowScanner is satisfied by *sql.Row; factored out as an interface so
// fakes can stand in for tests without a live connection.
type RowScanner interface {
	Scan(dest ...any) error
}

// Rows is satisfied by *sql.Rows; factored out the same way as
// RowScanner, for the folder monitor's multi-row orphan-folder query.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Executor is the read/write surface every component needs against a
// live connection or an open transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) RowScanner
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}
