// SPDX-License-Identifier: Apache-2.0

// Package loaderrors is the loader's error taxonomy: a flat set of
// small sentinel types, one per error kind, rather than a generic
// wrapped-code enum. Each type answers "what went wrong" well enough for
// the retry controller (pkg/retry), the dispatch loop (pkg/dispatch) and
// main to decide whether to retry, alert-and-ack, or exit with a
// particular process exit code.
package loaderrors

import "fmt"

// ConfigurationError covers malformed config, unknown regions, invalid
// target drivers. Fatal on startup; causes exit code 2.
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// DiscoveryError covers registry resolution failures and malformed queue
// messages. A nack is impossible (the message was already received);
// the dispatch loop alerts and acks.
type DiscoveryError struct {
	Folder string
	Reason string
}

func (e DiscoveryError) Error() string {
	return fmt.Sprintf("discovery error for %s: %s", e.Folder, e.Reason)
}

// MigrationError covers a planner that cannot compute a delta: stale
// catalog version, or a schema list with nothing to migrate to.
type MigrationError struct {
	Table  string
	Reason string
}

func (e MigrationError) Error() string {
	return fmt.Sprintf("migration error for table %s: %s", e.Table, e.Reason)
}

// TransientDBError covers connection resets, pool timeouts, and
// warehouse-busy responses. Retried by pkg/retry.
type TransientDBError struct {
	Err error
}

func (e TransientDBError) Error() string {
	return fmt.Sprintf("transient database error: %s", e.Err)
}

func (e TransientDBError) Unwrap() error { return e.Err }

// FatalDBError covers DDL syntax errors, permission errors, and
// constraint violations. Not retried; alerts, acks, and terminates the
// stream.
type FatalDBError struct {
	Err error
}

func (e FatalDBError) Error() string {
	return fmt.Sprintf("fatal database error: %s", e.Err)
}

func (e FatalDBError) Unwrap() error { return e.Err }

// RuntimeError covers anything uncaught that reaches the top-level
// dispatch handler. Causes exit code 1.
type RuntimeError struct {
	Reason string
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %s", e.Reason)
}

// Shutdown is returned by the retry controller when a cancellation
// signal interrupts a pending backoff sleep. It is not treated as an
// error by the dispatch loop's propagation policy.
var Shutdown = RuntimeError{Reason: "shutdown"}
