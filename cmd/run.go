// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/databricks/databricks-sql-go"
	_ "github.com/lib/pq"
	"github.com/snowflakedb/gosnowflake"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/drphrozen/snowplow-rdb-loader/cmd/flags"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/config"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/control"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/dbexec"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/dispatch"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/foldermonitor"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/loader"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/logging"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/manifest"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/migration"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/objectstore"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/queue"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/retry"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/storageref"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/target"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/txn"
)

// appName identifies this process in manifest entries and log lines.
const appName = "snowplow-rdb-loader"

// Deps bundles the collaborators run wiring builds but cannot construct
// on its own: a queue.Client and an objectstore.Client. Concrete SQS/S3
// wire protocols are out of scope — SetDeps is the seam a
// deployment wires a real implementation through.
type Deps struct {
	Queue   queue.Client
	Storage objectstore.Client
}

// newDeps is the extension point for concrete queue/object-storage
// clients. Left unset, run fails fast with a ConfigurationError rather
// than silently doing nothing.
var newDeps = func(*config.Config) (Deps, error) {
	return Deps{}, loaderrors.ConfigurationError{
		Reason: "no queue.Client/objectstore.Client wired: supply them via cmd.SetDeps before cmd.Execute",
	}
}

// SetDeps overrides the queue/object-storage construction used by `run`.
// Exposed so an embedding deployment (or a test) can supply concrete
// clients without this package needing to depend on their wire protocols.
func SetDeps(f func(*config.Config) (Deps, error)) { newDeps = f }

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the warehouse loader daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(flags.ConfigFile())
	if err != nil {
		return err
	}

	lookup, err := registry.NewFileLookup(flags.IgluConfigFile())
	if err != nil {
		return loaderrors.ConfigurationError{Reason: err.Error()}
	}

	tgt, db, err := openTarget(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log := logging.New()
	if err := waitUntilWarehouseReady(ctx, db, tgt, cfg.ReadyCheck); err != nil {
		return err
	}

	mft := manifest.New(tgt)
	if err := initializeWarehouse(ctx, db, tgt, mft, cfg.FeatureFlags); err != nil {
		return err
	}

	c := control.New()
	maxBackoff := cfg.Retries.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = cfg.Retries.Backoff
	}
	rc := retry.New(retry.Config{
		MaxAttempts:     cfg.Retries.Attempts,
		InitialBackoff:  cfg.Retries.Backoff,
		MaxBackoff:      maxBackoff,
		CumulativeBound: cfg.Retries.CumulativeBound,
	}, log)

	ld := loader.New(appName, tgt, db, mft, migration.New(tgt, log), rc, c, log, nil)

	d, err := newDeps(cfg)
	if err != nil {
		return err
	}
	dsp := dispatch.New(appName, d.Queue, lookup, ld, c, log, nil)

	var monitor *foldermonitor.Monitor
	if cfg.Monitoring.Folders != nil {
		shredderOutput, err := storageref.ParseFolder(cfg.Monitoring.Folders.ShredderOutput)
		if err != nil {
			return loaderrors.ConfigurationError{Reason: fmt.Sprintf("monitoring.folders.shredderOutput: %s", err)}
		}
		monitor = foldermonitor.New(tgt, db, d.Storage, shredderOutput, cfg.Monitoring.Folders.Lookback, cfg.Monitoring.Folders.Period, c, log, nil)
	}

	windows := make([]dispatch.NoopWindow, len(cfg.Schedules.NoOperation))
	for i, w := range cfg.Schedules.NoOperation {
		windows[i] = dispatch.NoopWindow{Name: w.Name, When: w.When, Duration: w.Duration}
	}
	scheduler := dispatch.NewNoopScheduler(windows, c, log)

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return dsp.Run(gctx) })
	eg.Go(func() error { return scheduler.Run(gctx) })
	if monitor != nil {
		eg.Go(func() error { return monitor.Run(gctx) })
	}
	return eg.Wait()
}

// initializeWarehouse creates the manifest table if absent and, when
// the addLoadTstampColumn feature flag is set, adds the load_tstamp
// column to the events table unless it already exists.
func initializeWarehouse(ctx context.Context, db *txn.DB, tgt target.Target, mft *manifest.Manifest, flags config.FeatureFlags) error {
	return db.Run(ctx, func(ctx context.Context, exec dbexec.Executor) error {
		if err := mft.Initialize(ctx, exec); err != nil {
			return fmt.Errorf("initializing manifest table: %w", err)
		}
		if !flags.AddLoadTstampColumn {
			return nil
		}

		frag, err := tgt.ToFragment(target.GetColumns("events"))
		if err != nil {
			return err
		}
		var csv string
		if err := exec.QueryRowContext(ctx, frag).Scan(&csv); err != nil {
			return fmt.Errorf("reading events columns: %w", err)
		}
		for _, column := range strings.Split(csv, ",") {
			if strings.EqualFold(strings.TrimSpace(column), "load_tstamp") {
				return nil
			}
		}

		alter, err := tgt.ToFragment(target.AddLoadTstampColumn())
		if err != nil {
			return err
		}
		_, err = exec.ExecContext(ctx, alter)
		return err
	})
}

// waitUntilWarehouseReady polls target.ReadyCheck() until it succeeds or
// the configured attempt budget is exhausted. Runs before MigrationBuild,
// for warehouses that must resume from a suspended state, e.g. Snowflake.
func waitUntilWarehouseReady(ctx context.Context, db *txn.DB, tgt target.Target, rc config.ReadyCheck) error {
	attempts := rc.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = db.Run(ctx, func(ctx context.Context, exec dbexec.Executor) error {
			frag, err := tgt.ToFragment(target.ReadyCheck())
			if err != nil {
				return err
			}
			_, err = exec.ExecContext(ctx, frag)
			return err
		})
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rc.Backoff):
		}
	}
	return loaderrors.RuntimeError{Reason: fmt.Sprintf("warehouse not ready after %d attempts: %s", attempts, lastErr)}
}

// openTarget builds the dialect-specific target.Target and opens its
// pooled connection, per the storage.type named in config.
func openTarget(cfg *config.Config) (target.Target, *txn.DB, error) {
	switch cfg.Storage.Type {
	case "redshift":
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=require",
			cfg.Storage.Host, cfg.Storage.Port, cfg.Storage.Database, cfg.Storage.Username, cfg.Storage.Password)
		conn, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, loaderrors.ConfigurationError{Reason: fmt.Sprintf("opening redshift connection: %s", err)}
		}
		tgt := &target.Redshift{
			Schema:              cfg.Storage.Schema,
			UseTransitTable:     cfg.Storage.UseTransitTable,
			AddLoadTstampColumn: cfg.FeatureFlags.AddLoadTstampColumn,
		}
		return tgt, txn.Open(conn, tgt), nil

	case "snowflake":
		sfCfg := &gosnowflake.Config{
			Account:   cfg.Storage.Account,
			User:      cfg.Storage.Username,
			Password:  cfg.Storage.Password,
			Database:  cfg.Storage.Database,
			Schema:    cfg.Storage.Schema,
			Warehouse: cfg.Storage.Warehouse,
			Role:      cfg.Storage.Role,
			Region:    cfg.Region,
		}
		dsn, err := gosnowflake.DSN(sfCfg)
		if err != nil {
			return nil, nil, loaderrors.ConfigurationError{Reason: fmt.Sprintf("building snowflake dsn: %s", err)}
		}
		conn, err := sql.Open("snowflake", dsn)
		if err != nil {
			return nil, nil, loaderrors.ConfigurationError{Reason: fmt.Sprintf("opening snowflake connection: %s", err)}
		}
		tgt := &target.Snowflake{Schema: cfg.Storage.Schema, Stage: cfg.Storage.Database}
		return tgt, txn.Open(conn, tgt), nil

	case "databricks":
		dsn := fmt.Sprintf("token:%s@%s:%d%s", cfg.Storage.Token, cfg.Storage.Host, cfg.Storage.Port, cfg.Storage.HTTPPath)
		conn, err := sql.Open("databricks", dsn)
		if err != nil {
			return nil, nil, loaderrors.ConfigurationError{Reason: fmt.Sprintf("opening databricks connection: %s", err)}
		}
		tgt := &target.Databricks{Catalog: cfg.Storage.Catalog, Schema: cfg.Storage.Schema}
		return tgt, txn.Open(conn, tgt), nil

	default:
		return nil, nil, loaderrors.ConfigurationError{Reason: fmt.Sprintf("unknown storage.type %q", cfg.Storage.Type)}
	}
}
