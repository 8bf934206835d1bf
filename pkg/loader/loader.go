// SPDX-License-Identifier: Apache-2.0

// Package loader implements the per-batch load state machine:
// manifest-check, schema-migration planning, atomic copy, and manifest
// commit, wrapped by the retry controller and reporting Stage
// transitions through the control surface.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/control"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/dbexec"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/logging"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/manifest"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/migration"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/monitoring"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/retry"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/target"
)

// errAlreadyLoaded short-circuits the in-transaction sequence the
// moment manifest.Get finds a row for base; it is never retried (the
// retry controller's default classifier only retries TransientDBError).
var errAlreadyLoaded = errors.New("folder is already loaded")

// Transactor is the subset of *txn.DB the loader depends on, so tests
// can substitute an in-memory fake.
type Transactor interface {
	Run(ctx context.Context, action func(ctx context.Context, exec dbexec.Executor) error) error
	Transact(ctx context.Context, action func(ctx context.Context, exec dbexec.Executor) error) error
}

// Loader runs one load attempt end to end.
type Loader struct {
	App        string
	Target     target.Target
	DB         Transactor
	Manifest   *manifest.Manifest
	Planner    *migration.Planner
	Retry      *retry.Controller
	Control    *control.Surface
	Log        logging.Logger
	Monitoring monitoring.Reporter
}

func New(app string, t target.Target, db Transactor, m *manifest.Manifest, p *migration.Planner, r *retry.Controller, c *control.Surface, log logging.Logger, mon monitoring.Reporter) *Loader {
	if log == nil {
		log = logging.NewNoop()
	}
	if mon == nil {
		mon = monitoring.Noop{}
	}
	if r != nil {
		r.OnAttempt = func(int) { c.IncrementAttempt() }
	}
	return &Loader{App: app, Target: t, DB: db, Manifest: m, Planner: p, Retry: r, Control: c, Log: log, Monitoring: mon}
}

// Load runs the full manifest-check/migrate/copy/commit sequence. It
// returns the warehouse-clock ingestion timestamp on success, or
// alreadyLoaded=true when the manifest already held this base.
func (l *Loader) Load(ctx context.Context, msg discovery.ShreddingComplete, disc discovery.DataDiscovery) (ingestion *time.Time, alreadyLoaded bool, err error) {
	started := time.Now()
	base := msg.Base.String()
	l.Log.LogDiscovery(base)

	l.Control.SetStage(control.StageMigrationBuild, "")
	var plan migration.Migration
	if err := l.DB.Run(ctx, func(ctx context.Context, exec dbexec.Executor) error {
		p, err := l.Planner.Plan(ctx, exec, disc)
		if err != nil {
			return err
		}
		plan = p
		return nil
	}); err != nil {
		return nil, false, fmt.Errorf("building migration plan: %w", err)
	}

	l.Control.SetStage(control.StageMigrationPre, "")
	for _, action := range plan.Pre {
		frag, err := l.Target.ToFragment(action.Statement)
		if err != nil {
			return nil, false, loaderrors.MigrationError{Table: action.Statement.Table, Reason: err.Error()}
		}
		// One statement per Run call: pre-transaction migrations are not
		// retried because some (type-widening ALTERs) are irreversible.
		if err := l.DB.Run(ctx, func(ctx context.Context, exec dbexec.Executor) error {
			_, err := exec.ExecContext(ctx, frag)
			return err
		}); err != nil {
			return nil, false, loaderrors.FatalDBError{Err: err}
		}
	}

	var existingEventColumns []string
	if l.Target.RequiresEventsColumns() {
		if err := l.DB.Run(ctx, func(ctx context.Context, exec dbexec.Executor) error {
			frag, err := l.Target.ToFragment(target.GetColumns("events"))
			if err != nil {
				return err
			}
			var csv string
			if err := exec.QueryRowContext(ctx, frag).Scan(&csv); err != nil {
				return err
			}
			if csv != "" {
				existingEventColumns = splitCSV(csv)
			}
			return nil
		}); err != nil {
			return nil, false, fmt.Errorf("reading existing events columns: %w", err)
		}
	}

	loadStatements, err := l.Target.GetLoadStatements(disc, existingEventColumns)
	if err != nil {
		return nil, false, err
	}

	attempts := 0
	retryErr := l.Retry.Do(ctx, func(ctx context.Context) error {
		attempts++
		return l.DB.Transact(ctx, func(ctx context.Context, exec dbexec.Executor) error {
			return l.runTransaction(ctx, exec, msg, plan, loadStatements)
		})
	})

	if errors.Is(retryErr, errAlreadyLoaded) {
		l.Monitoring.Alert(monitoring.Info("Folder is already loaded", base))
		return nil, true, nil
	}
	if retryErr != nil {
		return nil, false, retryErr
	}

	l.Log.LogSuccess(base, attempts)

	var readBack *manifest.Entry
	if err := l.DB.Run(ctx, func(ctx context.Context, exec dbexec.Executor) error {
		e, err := l.Manifest.Get(ctx, exec, base)
		readBack = e
		return err
	}); err != nil {
		return nil, false, fmt.Errorf("reading back manifest entry: %w", err)
	}
	if readBack == nil {
		return nil, false, fmt.Errorf("manifest entry for %s missing immediately after commit", base)
	}

	l.Monitoring.Success(monitoring.SuccessPayload{
		App: l.App, Base: base, Ingestion: readBack.Ingestion, Started: started, Attempts: attempts,
		ShreddingStarted: msg.Timestamps.JobStarted, ShreddingCompleted: msg.Timestamps.JobCompleted,
	})
	l.Control.IncrementLoaded()

	ingestion = &readBack.Ingestion
	return ingestion, false, nil
}

// runTransaction is the body wrapped by the retry controller: manifest
// check, in-transaction migration, copy, manifest commit. Any error
// here rolls back (txn.DB.Transact's responsibility).
func (l *Loader) runTransaction(ctx context.Context, exec dbexec.Executor, msg discovery.ShreddingComplete, plan migration.Migration, loadStatements []target.Statement) error {
	base := msg.Base.String()

	l.Control.SetStage(control.StageManifestCheck, "")
	existing, err := l.Manifest.Get(ctx, exec, base)
	if err != nil {
		return loaderrors.TransientDBError{Err: err}
	}
	if existing != nil {
		l.Control.Cancel("Already loaded")
		return errAlreadyLoaded
	}

	l.Control.SetStage(control.StageMigrationIn, "")
	for _, action := range plan.In {
		frag, err := l.Target.ToFragment(action.Statement)
		if err != nil {
			return loaderrors.MigrationError{Table: action.Statement.Table, Reason: err.Error()}
		}
		if _, err := exec.ExecContext(ctx, frag); err != nil {
			return loaderrors.FatalDBError{Err: err}
		}
	}

	for _, stmt := range loadStatements {
		l.Control.SetStage(control.StageLoading, stmt.LogMessage)
		l.Log.LogStage(base, stmt.LogMessage)

		frag, err := l.Target.ToFragment(stmt)
		if err != nil {
			return loaderrors.FatalDBError{Err: err}
		}
		if _, err := exec.ExecContext(ctx, frag); err != nil {
			return loaderrors.TransientDBError{Err: err}
		}
	}

	l.Control.SetStage(control.StageCommitting, "")
	if err := l.Manifest.Add(ctx, exec, msg); err != nil {
		return loaderrors.FatalDBError{Err: err}
	}

	return nil
}

func splitCSV(csv string) []string {
	return strings.Split(csv, ",")
}
