// SPDX-License-Identifier: Apache-2.0

package target

import (
	"strconv"
	"strings"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
)

// Action is one opaque DB effect: a statement plus a log message.
type Action struct {
	Statement Statement
	Message   string
}

// Block is one table's contribution to a Migration: alterations that
// must run before the transaction (type widenings the warehouse refuses
// inside one) and additive operations that run inside it. Redshift ends
// every non-empty Block with a CommentOn recording the schema version now
// installed; Snowflake's ExtendTable Block carries no CommentOn, since
// that dialect refuses it.
type Block struct {
	Pre        []Action
	In         []Action
	IsCreation bool
	DBSchema   string
	Target     registry.SchemaKey
}

// Target is the dialect-specific interpreter. Implementations are pure
// with respect to configuration: no I/O happens here, only statement
// construction and SQL rendering.
type Target interface {
	// Name identifies the dialect: "redshift", "snowflake", "databricks".
	Name() string

	// UpdateTable produces the delta from current to state's latest
	// version, given the table's existing columns. Redshift errors when
	// current is not found in state (stale catalog) or when state holds a
	// single entry (nothing to migrate to); Databricks checks neither and
	// returns an intent-only Block; Snowflake always errors.
	UpdateTable(current registry.SchemaKey, existingColumns []string, state registry.SchemaList) (Block, error)

	// ExtendTable answers for warehouses that fold every shred type into
	// one wide events table (Snowflake): the returned Block adds the
	// type's column. ok is false for warehouses with per-type tables.
	ExtendTable(info discovery.ShreddedTypeInfo) (block Block, ok bool)

	// GetLoadStatements produces the COPY sequence for one batch.
	// existingEventColumns is only consulted when RequiresEventsColumns.
	GetLoadStatements(d discovery.DataDiscovery, existingEventColumns []string) ([]Statement, error)

	// CreateTable produces the creation Block for a table that does not
	// exist yet.
	CreateTable(state registry.SchemaList) Block

	// GetManifest is the CREATE for the manifest table.
	GetManifest() Statement

	// ToFragment renders a statement to dialect SQL. It errors for Kinds
	// the dialect does not support.
	ToFragment(s Statement) (string, error)

	// RequiresEventsColumns is true for wide-row warehouses (Databricks)
	// whose EventsCopy is parameterized by the current column list.
	RequiresEventsColumns() bool

	// SupportsTableMigrations is true when the warehouse keeps per-type
	// tables with a versioning catalog the planner can probe.
	SupportsTableMigrations() bool
}

// shreddedTableName builds the warehouse table name for one shredded
// type: vendor and name lowercased with dots and dashes flattened to
// underscores, suffixed with the schema model.
func shreddedTableName(k registry.SchemaKey) string {
	flatten := func(s string) string {
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, ".", "_")
		return strings.ReplaceAll(s, "-", "_")
	}
	return flatten(k.Vendor) + "_" + flatten(k.Name) + "_" + strconv.Itoa(k.Major)
}

// quoteLiteral escapes a string for inclusion as a SQL literal,
// doubling single quotes.
func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// unsupportedError names a statement Kind a dialect refuses.
type unsupportedError struct {
	dialect string
	kind    Kind
}

func (e unsupportedError) Error() string {
	return e.dialect + ": " + string(e.kind) + " is not supported"
}
