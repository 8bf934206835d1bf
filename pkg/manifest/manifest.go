// SPDX-License-Identifier: Apache-2.0

// Package manifest implements the idempotence boundary: a warehouse
// table recording which folders have been loaded. The queue ack is a
// hint; the manifest is the sole source of truth.
package manifest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/dbexec"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/target"
)

// Executor is the manifest's database dependency, reusing the shared
// dbexec surface: pkg/txn hands the same *sql.Conn adapter to both Run
// and Transact actions, so Manifest works identically whether called outside a transaction
// (initialize, get) or inside the main load transaction (add).
type Executor = dbexec.Executor

// Entry is one manifest row, keyed by Base. Its presence is the sole
// loaded/not-loaded signal.
type Entry struct {
	Base                string
	Types               []discovery.ShreddedTypeInfo
	ShreddingStarted    time.Time
	ShreddingCompleted  time.Time
	MinCollector        nullable.Nullable[time.Time]
	MaxCollector        nullable.Nullable[time.Time]
	Ingestion           time.Time
	Compression         string
	ProcessorArtifact   string
	ProcessorVersion    string
	CountGood           nullable.Nullable[int]
}

// Manifest wraps the warehouse's manifest table behind three
// operations: initialize, get, add.
type Manifest struct {
	Target target.Target
}

func New(t target.Target) *Manifest {
	return &Manifest{Target: t}
}

// Initialize creates the manifest table if absent. Idempotent: running
// it twice against an already-initialized warehouse is a no-op because
// the rendered DDL is itself a CREATE TABLE IF NOT EXISTS.
func (m *Manifest) Initialize(ctx context.Context, exec Executor) error {
	frag, err := m.Target.ToFragment(m.Target.GetManifest())
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, frag)
	return err
}

// Get looks up a manifest row by base. A nil, nil return means the
// folder has never been loaded.
func (m *Manifest) Get(ctx context.Context, exec Executor, base string) (*Entry, error) {
	frag, err := m.Target.ToFragment(target.ManifestGet(base))
	if err != nil {
		return nil, err
	}

	var (
		entry        Entry
		typesJSON    []byte
		minCollector sql.NullTime
		maxCollector sql.NullTime
		countGood    sql.NullInt64
	)
	row := exec.QueryRowContext(ctx, frag)
	err = row.Scan(&entry.Base, &typesJSON, &entry.ShreddingStarted, &entry.ShreddingCompleted,
		&minCollector, &maxCollector, &entry.Ingestion, &entry.Compression,
		&entry.ProcessorArtifact, &entry.ProcessorVersion, &countGood)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if minCollector.Valid {
		entry.MinCollector.Set(minCollector.Time)
	}
	if maxCollector.Valid {
		entry.MaxCollector.Set(maxCollector.Time)
	}
	if countGood.Valid {
		entry.CountGood.Set(int(countGood.Int64))
	}

	if len(typesJSON) > 0 {
		if err := json.Unmarshal(typesJSON, &entry.Types); err != nil {
			return nil, err
		}
	}

	return &entry, nil
}

// Add inserts a manifest row using the warehouse clock for ingestion.
// Must execute inside the main load transaction so it co-commits with
// the copied data during the committing stage.
//
// ManifestAdd's statement fragment wraps a payload sub-select (see
// target.Redshift/Snowflake/Databricks ToFragment), so Add renders the
// row as a literal SELECT rather than binding placeholders: warehouse
// COPY/INSERT dialects generally don't support driver-level parameter
// binding the way an OLTP database does.
func (m *Manifest) Add(ctx context.Context, exec Executor, msg discovery.ShreddingComplete) error {
	typesJSON, err := json.Marshal(msg.Types)
	if err != nil {
		return err
	}

	payload := selectPayload(msg, typesJSON)
	frag, err := m.Target.ToFragment(target.ManifestAdd(payload))
	if err != nil {
		return err
	}

	_, err = exec.ExecContext(ctx, frag)
	return err
}

func selectPayload(msg discovery.ShreddingComplete, typesJSON []byte) string {
	minCollector, maxCollector := "NULL", "NULL"
	if v, err := msg.Timestamps.MinCollector.Get(); err == nil {
		minCollector = quoteTimestamp(v)
	}
	if v, err := msg.Timestamps.MaxCollector.Get(); err == nil {
		maxCollector = quoteTimestamp(v)
	}
	countGood := "NULL"
	if v, err := msg.Count.Get(); err == nil {
		countGood = fmt.Sprintf("%d", v)
	}

	return fmt.Sprintf(
		"SELECT '%s' AS base, '%s' AS types, %s AS shredding_started, %s AS shredding_completed, "+
			"%s AS min_collector, %s AS max_collector, '%s' AS compression, '%s' AS processor_artifact, "+
			"'%s' AS processor_version, %s AS count_good",
		msg.Base.String(), typesJSON, quoteTimestamp(msg.Timestamps.JobStarted), quoteTimestamp(msg.Timestamps.JobCompleted),
		minCollector, maxCollector, msg.Compression, msg.Processor.Artifact, msg.Processor.Version, countGood,
	)
}

func quoteTimestamp(t time.Time) string {
	return "'" + t.UTC().Format("2006-01-02 15:04:05.000") + "'"
}
