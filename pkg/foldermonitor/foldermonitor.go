// SPDX-License-Identifier: Apache-2.0

// Package foldermonitor implements the orphan-folder reconciliation
// cycle: on a fixed schedule, list object storage under
// shredderOutput/, diff it against the manifest table inside a single
// warehouse session (the alerting temp table is session-scoped), and
// alert on anything present in storage but never recorded as loaded.
package foldermonitor

import (
	"context"
	"fmt"
	"time"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/control"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/dbexec"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/logging"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/monitoring"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/objectstore"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/storageref"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/target"
)

// DB is the monitor's database dependency: the whole create/populate/
// diff/drop cycle must share one connection, because the alerting temp
// table is session-scoped.
type DB interface {
	Run(ctx context.Context, action func(ctx context.Context, exec dbexec.Executor) error) error
}

// Monitor runs the folder-reconciliation cycle.
type Monitor struct {
	Target     target.Target
	DB         DB
	Storage    objectstore.Client
	ShredderOutput storageref.StorageFolder
	Lookback   time.Duration
	Period     time.Duration
	Control    *control.Surface
	Log        logging.Logger
	Monitoring monitoring.Reporter

	now func() time.Time // overridden by tests; defaults to time.Now
}

func New(t target.Target, db DB, storage objectstore.Client, shredderOutput storageref.StorageFolder, lookback, period time.Duration, c *control.Surface, log logging.Logger, mon monitoring.Reporter) *Monitor {
	if log == nil {
		log = logging.NewNoop()
	}
	if mon == nil {
		mon = monitoring.Noop{}
	}
	return &Monitor{
		Target: t, DB: db, Storage: storage, ShredderOutput: shredderOutput, Lookback: lookback, Period: period,
		Control: c, Log: log, Monitoring: mon, now: time.Now,
	}
}

// Run ticks on Period until ctx is cancelled. A tick that fires while
// the control surface is busy is skipped, not queued.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if m.Control.IsBusy() {
				m.Log.Info("skipping folder monitor tick: busy")
				continue
			}
			if err := m.tick(ctx); err != nil {
				m.Log.Warn("folder monitor cycle failed", "error", err)
			}
		}
	}
}

// tick runs exactly one create/populate/diff/drop cycle.
func (m *Monitor) tick(ctx context.Context) error {
	folders, err := m.Storage.List(ctx, m.ShredderOutput)
	if err != nil {
		return fmt.Errorf("listing %s: %w", m.ShredderOutput, err)
	}
	cutoff := m.now().Add(-m.Lookback)

	return m.DB.Run(ctx, func(ctx context.Context, exec dbexec.Executor) error {
		if err := m.exec(ctx, exec, target.CreateAlertingTempTable()); err != nil {
			return fmt.Errorf("creating alerting temp table: %w", err)
		}
		defer func() {
			_ = m.exec(ctx, exec, target.DropAlertingTempTable())
		}()

		for _, folder := range withinLookback(folders, cutoff) {
			if err := m.exec(ctx, exec, target.FoldersCopy(folder.String())); err != nil {
				return fmt.Errorf("populating alerting temp table with %s: %w", folder, err)
			}
		}

		frag, err := m.Target.ToFragment(target.FoldersMinusManifest())
		if err != nil {
			return err
		}
		rows, err := exec.QueryContext(ctx, frag)
		if err != nil {
			return fmt.Errorf("computing folders minus manifest: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var base string
			if err := rows.Scan(&base); err != nil {
				return err
			}
			m.Log.LogAlert("Warning", "Unloaded folder found", base)
			m.Monitoring.Alert(monitoring.Warning("Unloaded folder found", base))
		}
		return rows.Err()
	})
}

func (m *Monitor) exec(ctx context.Context, exec dbexec.Executor, s target.Statement) error {
	frag, err := m.Target.ToFragment(s)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, frag)
	return err
}

// withinLookback returns folders unchanged: the objectstore.Client
// contract returns immediate child prefixes without per-object
// timestamps, so the lookback cutoff is not applied and every prefix
// listed under ShredderOutput is checked on each tick.
func withinLookback(folders []storageref.StorageFolder, _ time.Time) []storageref.StorageFolder {
	return folders
}
