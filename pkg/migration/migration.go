// SPDX-License-Identifier: Apache-2.0

// Package migration implements the per-batch schema migration planner:
// it turns a DataDiscovery into a Migration{pre, in} by probing the
// warehouse for each shredded type's table state and asking the Target
// to describe what changed.
package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/dbexec"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/logging"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/target"
)

// Migration is the composite plan for one load attempt: statements that
// must run before the main transaction opens, and statements that run
// inside it.
type Migration struct {
	Pre []target.Action
	In  []target.Action
}

// Planner assembles a Migration from a DataDiscovery by probing the
// warehouse through Target's rendered statements.
type Planner struct {
	Target target.Target
	Log    logging.Logger
}

func New(t target.Target, log logging.Logger) *Planner {
	if log == nil {
		log = logging.NewNoop()
	}
	return &Planner{Target: t, Log: log}
}

func tableName(vendor, name string, model int) string {
	return fmt.Sprintf("%s_%s_%d", sanitizeIdent(vendor), sanitizeIdent(name), model)
}

func sanitizeIdent(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), ".", "_")
	return strings.ReplaceAll(s, "-", "_")
}

// Plan builds the composite Migration for one batch, folding per-table
// Blocks. Blocks are processed in the order their shredded types appear
// in d.ShreddedTypes (input-order guarantee).
func (p *Planner) Plan(ctx context.Context, exec dbexec.Executor, d discovery.DataDiscovery) (Migration, error) {
	var m Migration

	for _, st := range d.ShreddedTypes {
		if st.Schema == nil {
			// Legacy JSON type: no columnar schema, nothing to migrate.
			continue
		}

		block, err := p.planTable(ctx, exec, st.Info, *st.Schema)
		if err != nil {
			return Migration{}, fmt.Errorf("planning migration for %s/%s: %w", st.Info.Vendor, st.Info.Name, err)
		}

		p.fold(&m, block)
	}

	return m, nil
}

// planTable builds the Block for a single shredded type's table,
// branching on Target capability so the planner never issues a probe
// statement a Target doesn't support:
//
//   - Targets that fold shred types into one wide table (Snowflake)
//     answer through ExtendTable; no per-table probing happens at all.
//   - Targets with no per-table migration catalog (Databricks) skip
//     straight to UpdateTable's intent-only Block.
//   - Everything else (Redshift) probes TableExists/GetVersion/GetColumns
//     and creates or diffs the table accordingly.
func (p *Planner) planTable(ctx context.Context, exec dbexec.Executor, info discovery.ShreddedTypeInfo, state registry.SchemaList) (target.Block, error) {
	if block, ok := p.Target.ExtendTable(info); ok {
		return block, nil
	}

	if !p.Target.SupportsTableMigrations() {
		return p.Target.UpdateTable(registry.SchemaKey{}, nil, state)
	}

	name := tableName(info.Vendor, info.Name, info.Model)

	exists, err := p.tableExists(ctx, exec, name)
	if err != nil {
		return target.Block{}, err
	}
	if !exists {
		return p.Target.CreateTable(state), nil
	}

	current, err := p.getVersion(ctx, exec, name)
	if err != nil {
		return target.Block{}, err
	}

	latest := state.Latest()
	if current.Equal(latest) {
		// Empty Block: nothing changed, but fold() still emits a CommentOn
		// reaffirmation with a warning log.
		return target.Block{Target: latest}, nil
	}

	columns, err := p.getColumns(ctx, exec, name)
	if err != nil {
		return target.Block{}, err
	}

	return p.Target.UpdateTable(current, columns, state)
}

// fold merges one table's Block into the composite Migration.
func (p *Planner) fold(m *Migration, block target.Block) {
	switch {
	case block.IsCreation:
		m.In = append(m.In, block.In...)

	case len(block.Pre) == 0 && len(block.In) == 0:
		if block.Target.Vendor == "" || !p.Target.SupportsTableMigrations() {
			// CommentOn reaffirmation only has meaning where per-table
			// versioning exists; Databricks/Snowflake blocks of this
			// shape carry nothing to reaffirm.
			return
		}
		name := tableName(block.Target.Vendor, block.Target.Name, block.Target.Major)
		p.Log.Warn("migration block empty; reaffirming installed schema version", "vendor", block.Target.Vendor, "name", block.Target.Name, "table", name)
		m.Pre = append(m.Pre, target.Action{Statement: target.CommentOn(name, block.Target.URI())})

	case len(block.In) == 0:
		// pre-only: pre (including its trailing CommentOn) runs pre-transaction.
		m.Pre = append(m.Pre, block.Pre...)

	default:
		// pre non-empty (or empty) and in non-empty: pre runs before the
		// transaction, in (including CommentOn) runs inside it.
		m.Pre = append(m.Pre, block.Pre...)
		m.In = append(m.In, block.In...)
	}
}
