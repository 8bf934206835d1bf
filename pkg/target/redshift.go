// SPDX-License-Identifier: Apache-2.0

package target

import (
	"fmt"
	"strings"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
)

var _ Target = (*Redshift)(nil)

// Redshift supports the full migration vocabulary. Type-widening
// alterations land in a Block's pre group because Redshift refuses
// ALTER COLUMN TYPE inside a transaction; additive operations run
// inside it. The optional transit-table mode loads into a sibling
// table and folds it in with ALTER TABLE APPEND.
type Redshift struct {
	Schema              string
	UseTransitTable     bool
	AddLoadTstampColumn bool
}

func (r *Redshift) Name() string                  { return "redshift" }
func (r *Redshift) RequiresEventsColumns() bool   { return false }
func (r *Redshift) SupportsTableMigrations() bool { return true }

func (r *Redshift) qualify(table string) string {
	return r.Schema + "." + table
}

// ExtendTable is a Snowflake-only capability.
func (r *Redshift) ExtendTable(discovery.ShreddedTypeInfo) (Block, bool) {
	return Block{}, false
}

// UpdateTable diffs current against state's latest, splitting the
// chain's column changes into pre (widenings) and in (additions).
func (r *Redshift) UpdateTable(current registry.SchemaKey, existingColumns []string, state registry.SchemaList) (Block, error) {
	latest := state.Latest()
	table := shreddedTableName(latest)

	if state.Len() == 1 {
		return Block{}, loaderrors.MigrationError{Table: table, Reason: "schema list has a single entry, nothing to migrate to"}
	}

	chain, ok := state.Since(current)
	if !ok {
		return Block{}, loaderrors.MigrationError{
			Table:  table,
			Reason: fmt.Sprintf("installed version %s not found in schema list (stale catalog)", current.Version()),
		}
	}

	existing := make(map[string]bool, len(existingColumns))
	for _, c := range existingColumns {
		existing[strings.ToLower(strings.TrimSpace(c))] = true
	}

	block := Block{DBSchema: r.Schema, Target: latest}
	for _, key := range chain {
		for _, change := range key.Changes {
			if change.Widen {
				ddl := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", r.qualify(table), change.Name, change.Type)
				block.Pre = append(block.Pre, Action{
					Statement: AlterTableStmt(table, ddl),
					Message:   fmt.Sprintf("widening %s.%s to %s", table, change.Name, change.Type),
				})
				continue
			}
			if existing[strings.ToLower(change.Name)] {
				continue
			}
			ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s%s", r.qualify(table), change.Name, change.Type, encodeClause(change.Encode))
			block.In = append(block.In, Action{
				Statement: AlterTableStmt(table, ddl),
				Message:   fmt.Sprintf("adding %s.%s", table, change.Name),
			})
		}
	}

	// The CommentOn marker is the last statement for the table: inside
	// the transaction when anything runs there, otherwise with the pre
	// group.
	comment := Action{Statement: CommentOn(table, latest.URI()), Message: "recording schema version " + latest.Version()}
	if len(block.In) > 0 {
		block.In = append(block.In, comment)
	} else {
		block.Pre = append(block.Pre, comment)
	}
	return block, nil
}

// CreateTable builds the creation Block: the full shredded-table DDL
// accumulated over the whole schema chain, then the version marker.
func (r *Redshift) CreateTable(state registry.SchemaList) Block {
	latest := state.Latest()
	table := shreddedTableName(latest)

	// Later versions may re-type a column they widened; last write wins.
	order := []string{}
	types := map[string]registry.ColumnChange{}
	for _, key := range state.Keys() {
		for _, change := range key.Changes {
			if _, seen := types[change.Name]; !seen {
				order = append(order, change.Name)
			}
			types[change.Name] = change
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", r.qualify(table))
	b.WriteString("  schema_vendor VARCHAR(128) ENCODE ZSTD NOT NULL,\n")
	b.WriteString("  schema_name VARCHAR(128) ENCODE ZSTD NOT NULL,\n")
	b.WriteString("  schema_format VARCHAR(128) ENCODE ZSTD NOT NULL,\n")
	b.WriteString("  schema_version VARCHAR(128) ENCODE ZSTD NOT NULL,\n")
	b.WriteString("  root_id CHAR(36) ENCODE RAW NOT NULL,\n")
	b.WriteString("  root_tstamp TIMESTAMP ENCODE ZSTD NOT NULL,\n")
	b.WriteString("  ref_root VARCHAR(255) ENCODE ZSTD NOT NULL,\n")
	b.WriteString("  ref_tree VARCHAR(1500) ENCODE ZSTD NOT NULL,\n")
	b.WriteString("  ref_parent VARCHAR(255) ENCODE ZSTD NOT NULL")
	for _, name := range order {
		change := types[name]
		fmt.Fprintf(&b, ",\n  %s %s%s", change.Name, change.Type, encodeClause(change.Encode))
	}
	b.WriteString(",\n  FOREIGN KEY (root_id) REFERENCES " + r.qualify("events") + " (event_id)\n)\n")
	b.WriteString("DISTSTYLE KEY DISTKEY (root_id) SORTKEY (root_tstamp)")

	return Block{
		IsCreation: true,
		DBSchema:   r.Schema,
		Target:     latest,
		In: []Action{
			{Statement: CreateTableStmt(table, b.String()), Message: "creating " + table},
			{Statement: CommentOn(table, latest.URI()), Message: "recording schema version " + latest.Version()},
		},
	}
}

// GetLoadStatements produces the COPY sequence: atomic events first,
// then one ShreddedCopy per columnar type. Transit mode wraps the
// events COPY in a sibling-table create/append/drop.
func (r *Redshift) GetLoadStatements(d discovery.DataDiscovery, _ []string) ([]Statement, error) {
	compression := string(d.Compression)
	eventsPath := d.Base.String() + "output=good/"

	var stmts []Statement
	if r.UseTransitTable {
		stmts = append(stmts,
			CreateTransient(),
			EventsCopy("events_transit", eventsPath, compression, nil),
			AppendTransient(),
			DropTransient(),
		)
	} else {
		stmts = append(stmts, EventsCopy("events", eventsPath, compression, nil))
	}

	for _, st := range d.ShreddedTypes {
		if st.Schema == nil {
			// Legacy JSON types land in the events table only.
			continue
		}
		table := shreddedTableName(st.Schema.Latest())
		path := fmt.Sprintf("%soutput=good/vendor=%s/name=%s/format=%s/model=%d/",
			d.Base, st.Info.Vendor, st.Info.Name, strings.ToLower(string(st.Info.Format)), st.Info.Model)
		stmts = append(stmts, ShreddedCopy(table, path, compression))
	}
	return stmts, nil
}

func (r *Redshift) GetManifest() Statement {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  base VARCHAR(512) ENCODE ZSTD NOT NULL PRIMARY KEY,
  types VARCHAR(65535) ENCODE ZSTD NOT NULL,
  shredding_started TIMESTAMP ENCODE ZSTD NOT NULL,
  shredding_completed TIMESTAMP ENCODE ZSTD NOT NULL,
  min_collector TIMESTAMP ENCODE ZSTD,
  max_collector TIMESTAMP ENCODE ZSTD,
  ingestion TIMESTAMP ENCODE ZSTD NOT NULL,
  compression VARCHAR(16) ENCODE ZSTD NOT NULL,
  processor_artifact VARCHAR(64) ENCODE ZSTD NOT NULL,
  processor_version VARCHAR(32) ENCODE ZSTD NOT NULL,
  count_good BIGINT ENCODE ZSTD
)
DISTSTYLE KEY DISTKEY (base) SORTKEY (ingestion)`, r.qualify("manifest"))
	return CreateTableStmt("manifest", ddl)
}

func (r *Redshift) ToFragment(s Statement) (string, error) {
	switch s.Kind {
	case KindBegin:
		return "BEGIN", nil
	case KindCommit:
		return "COMMIT", nil
	case KindAbort:
		return "ROLLBACK", nil
	case KindSelect1, KindReadyCheck:
		return "SELECT 1", nil
	case KindSetSchema:
		return "SET search_path TO " + r.Schema, nil

	case KindCreateAlertingTempTable:
		return "CREATE TEMPORARY TABLE IF NOT EXISTS rdb_folder_monitoring (run_id VARCHAR(1024))", nil
	case KindDropAlertingTempTable:
		return "DROP TABLE IF EXISTS rdb_folder_monitoring", nil
	case KindFoldersCopy:
		return fmt.Sprintf("INSERT INTO rdb_folder_monitoring (run_id) VALUES ('%s')", quoteLiteral(s.Source)), nil
	case KindFoldersMinusManifest:
		return fmt.Sprintf("SELECT run_id FROM rdb_folder_monitoring MINUS SELECT base FROM %s", r.qualify("manifest")), nil

	case KindEventsCopy:
		return r.copyFragment(s.Table, s.Path, s.Compression), nil
	case KindShreddedCopy:
		return r.copyFragment(s.Table, s.Path, s.Compression), nil

	case KindCreateTransient:
		return fmt.Sprintf("CREATE TABLE %s (LIKE %s)", r.qualify("events_transit"), r.qualify("events")), nil
	case KindDropTransient:
		return "DROP TABLE " + r.qualify("events_transit"), nil
	case KindAppendTransient:
		return fmt.Sprintf("ALTER TABLE %s APPEND FROM %s", r.qualify("events"), r.qualify("events_transit")), nil

	case KindTableExists:
		return fmt.Sprintf(
			"SELECT 1 FROM information_schema.tables WHERE table_schema = '%s' AND table_name = '%s'",
			quoteLiteral(r.Schema), quoteLiteral(s.Table)), nil
	case KindGetVersion:
		return fmt.Sprintf("SELECT obj_description('%s'::regclass)", quoteLiteral(r.qualify(s.Table))), nil
	case KindGetColumns:
		return fmt.Sprintf(
			"SELECT LISTAGG(column_name, ',') WITHIN GROUP (ORDER BY ordinal_position) FROM information_schema.columns WHERE table_schema = '%s' AND table_name = '%s'",
			quoteLiteral(r.Schema), quoteLiteral(s.Table)), nil

	case KindRenameTable:
		return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", r.qualify(s.From), s.To), nil

	case KindManifestAdd:
		return fmt.Sprintf(
			"INSERT INTO %s (base, types, shredding_started, shredding_completed, min_collector, max_collector, ingestion, compression, processor_artifact, processor_version, count_good) "+
				"SELECT base, types, shredding_started, shredding_completed, min_collector, max_collector, GETDATE(), compression, processor_artifact, processor_version, count_good FROM (%s)",
			r.qualify("manifest"), s.Raw), nil
	case KindManifestGet:
		return fmt.Sprintf(
			"SELECT base, types, shredding_started, shredding_completed, min_collector, max_collector, ingestion, compression, processor_artifact, processor_version, count_good FROM %s WHERE base = '%s'",
			r.qualify("manifest"), quoteLiteral(s.Source)), nil

	case KindAddLoadTstampColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN load_tstamp TIMESTAMP", r.qualify("events")), nil
	case KindCommentOn:
		return fmt.Sprintf("COMMENT ON TABLE %s IS '%s'", r.qualify(s.Table), quoteLiteral(s.Comment)), nil
	case KindCreateTable, KindAlterTable, KindDdlFile:
		return s.Raw, nil

	default:
		return "", unsupportedError{dialect: "redshift", kind: s.Kind}
	}
}

func (r *Redshift) copyFragment(table, path, compression string) string {
	frag := fmt.Sprintf("COPY %s FROM '%s' DELIMITER '\\t' TRUNCATECOLUMNS ACCEPTINVCHARS EMPTYASNULL",
		r.qualify(table), quoteLiteral(path))
	if compression == "GZIP" {
		frag += " GZIP"
	}
	return frag
}

func encodeClause(encode string) string {
	if encode == "" {
		return " ENCODE ZSTD"
	}
	return " ENCODE " + encode
}
