// SPDX-License-Identifier: Apache-2.0

package target

import (
	"fmt"
	"strings"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
)

var _ Target = (*Databricks)(nil)

// Databricks is the wide-row target with no migration capability:
// UpdateTable records intent only, and the per-type probes
// (ShreddedCopy, TableExists, GetVersion, CommentOn) fail. EventsCopy
// is parameterized by the current column list, read through GetColumns,
// because COPY INTO must name the destination columns explicitly.
type Databricks struct {
	Catalog string
	Schema  string
}

func (d *Databricks) Name() string                  { return "databricks" }
func (d *Databricks) RequiresEventsColumns() bool   { return true }
func (d *Databricks) SupportsTableMigrations() bool { return false }

func (d *Databricks) qualify(table string) string {
	if d.Catalog == "" {
		return d.Schema + "." + table
	}
	return d.Catalog + "." + d.Schema + "." + table
}

func (d *Databricks) ExtendTable(discovery.ShreddedTypeInfo) (Block, bool) {
	return Block{}, false
}

// UpdateTable records intent only: Delta tables merge schema on write,
// so there is nothing to alter ahead of the COPY.
func (d *Databricks) UpdateTable(_ registry.SchemaKey, _ []string, state registry.SchemaList) (Block, error) {
	return Block{DBSchema: d.Schema, Target: state.Latest()}, nil
}

// CreateTable is unreachable through the planner (no per-type tables);
// the returned Block records intent only.
func (d *Databricks) CreateTable(state registry.SchemaList) Block {
	return Block{DBSchema: d.Schema, Target: state.Latest()}
}

func (d *Databricks) GetLoadStatements(disc discovery.DataDiscovery, existingEventColumns []string) ([]Statement, error) {
	path := disc.Base.String() + "output=good/"
	return []Statement{EventsCopy("events", path, string(disc.Compression), existingEventColumns)}, nil
}

func (d *Databricks) GetManifest() Statement {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  base STRING NOT NULL,
  types STRING NOT NULL,
  shredding_started TIMESTAMP NOT NULL,
  shredding_completed TIMESTAMP NOT NULL,
  min_collector TIMESTAMP,
  max_collector TIMESTAMP,
  ingestion TIMESTAMP NOT NULL,
  compression STRING NOT NULL,
  processor_artifact STRING NOT NULL,
  processor_version STRING NOT NULL,
  count_good BIGINT
) USING DELTA`, d.qualify("manifest"))
	return CreateTableStmt("manifest", ddl)
}

func (d *Databricks) ToFragment(s Statement) (string, error) {
	switch s.Kind {
	case KindBegin, KindCommit, KindAbort:
		// Databricks has no multi-statement transactions; the boundary
		// degrades to per-statement Delta atomicity.
		return "SELECT 1", nil
	case KindSelect1, KindReadyCheck:
		return "SELECT 1", nil
	case KindSetSchema:
		return "USE " + d.Schema, nil

	case KindCreateAlertingTempTable:
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (run_id STRING)", d.qualify("rdb_folder_monitoring")), nil
	case KindDropAlertingTempTable:
		return "DROP TABLE IF EXISTS " + d.qualify("rdb_folder_monitoring"), nil
	case KindFoldersCopy:
		return fmt.Sprintf("INSERT INTO %s (run_id) VALUES ('%s')", d.qualify("rdb_folder_monitoring"), quoteLiteral(s.Source)), nil
	case KindFoldersMinusManifest:
		return fmt.Sprintf("SELECT run_id FROM %s EXCEPT SELECT base FROM %s",
			d.qualify("rdb_folder_monitoring"), d.qualify("manifest")), nil

	case KindEventsCopy:
		columns := "*"
		if len(s.Columns) > 0 {
			columns = strings.Join(s.Columns, ", ")
		}
		return fmt.Sprintf(
			"COPY INTO %s FROM (SELECT %s FROM '%s') FILEFORMAT = PARQUET COPY_OPTIONS ('mergeSchema' = 'true')",
			d.qualify(s.Table), columns, quoteLiteral(s.Path)), nil

	case KindGetColumns:
		infoSchema := "information_schema.columns"
		if d.Catalog != "" {
			infoSchema = d.Catalog + "." + infoSchema
		}
		return fmt.Sprintf(
			"SELECT concat_ws(',', collect_list(column_name)) FROM %s WHERE table_schema = '%s' AND table_name = '%s'",
			infoSchema, quoteLiteral(d.Schema), quoteLiteral(s.Table)), nil

	case KindRenameTable:
		return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.qualify(s.From), d.qualify(s.To)), nil

	case KindManifestAdd:
		return fmt.Sprintf(
			"INSERT INTO %s (base, types, shredding_started, shredding_completed, min_collector, max_collector, ingestion, compression, processor_artifact, processor_version, count_good) "+
				"SELECT base, types, shredding_started, shredding_completed, min_collector, max_collector, current_timestamp(), compression, processor_artifact, processor_version, count_good FROM (%s)",
			d.qualify("manifest"), s.Raw), nil
	case KindManifestGet:
		return fmt.Sprintf(
			"SELECT base, types, shredding_started, shredding_completed, min_collector, max_collector, ingestion, compression, processor_artifact, processor_version, count_good FROM %s WHERE base = '%s'",
			d.qualify("manifest"), quoteLiteral(s.Source)), nil

	case KindAddLoadTstampColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN load_tstamp TIMESTAMP", d.qualify("events")), nil
	case KindCreateTable, KindAlterTable, KindDdlFile:
		return s.Raw, nil

	default:
		// ShreddedCopy, TableExists, GetVersion, CommentOn, transit tables.
		return "", unsupportedError{dialect: "databricks", kind: s.Kind}
	}
}
