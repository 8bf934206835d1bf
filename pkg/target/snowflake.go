// SPDX-License-Identifier: Apache-2.0

package target

import (
	"fmt"
	"strings"

	"github.com/drphrozen/snowplow-rdb-loader/pkg/discovery"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/registry"
)

var _ Target = (*Snowflake)(nil)

// Snowflake folds every shred type into one wide events table: a new
// shredded type becomes a new column via ExtendTable, so there is no
// per-type table catalog to probe. GetVersion and CommentOn fail with
// "not supported", as does ShreddedCopy.
type Snowflake struct {
	Schema string
	Stage  string
}

func (s *Snowflake) Name() string                  { return "snowflake" }
func (s *Snowflake) RequiresEventsColumns() bool   { return false }
func (s *Snowflake) SupportsTableMigrations() bool { return false }

func (s *Snowflake) qualify(table string) string {
	return s.Schema + "." + table
}

// ExtendTable adds the wide-events column for one shredded type. The
// column's name and type derive from the type's Snowplow entity kind,
// carried on the discovery record: contexts arrive as arrays,
// self-describing events as single objects.
func (s *Snowflake) ExtendTable(info discovery.ShreddedTypeInfo) (Block, bool) {
	column := entityColumnName(info)
	columnType := "OBJECT"
	if info.SnowplowEntity == discovery.EntityContext {
		columnType = "ARRAY"
	}

	ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", s.qualify("events"), column, columnType)
	return Block{
		DBSchema: s.Schema,
		Target:   registry.NewSchemaKey(info.Vendor, info.Name, info.Model, 0, 0),
		In: []Action{{
			Statement: AlterTableStmt("events", ddl),
			Message:   fmt.Sprintf("extending events with %s", column),
		}},
	}, true
}

// UpdateTable is unreachable through the planner (ExtendTable always
// answers first); kept as an explicit refusal rather than a silent no-op.
func (s *Snowflake) UpdateTable(_ registry.SchemaKey, _ []string, state registry.SchemaList) (Block, error) {
	return Block{}, loaderrors.MigrationError{
		Table:  shreddedTableName(state.Latest()),
		Reason: "snowflake does not version per-type tables",
	}
}

// CreateTable is likewise unreachable: there are no per-type tables to
// create. The returned Block records intent only.
func (s *Snowflake) CreateTable(state registry.SchemaList) Block {
	return Block{DBSchema: s.Schema, Target: state.Latest()}
}

// GetLoadStatements is a single wide-row COPY: every type's data lands
// in the events table.
func (s *Snowflake) GetLoadStatements(d discovery.DataDiscovery, _ []string) ([]Statement, error) {
	path := d.Base.String() + "output=good/"
	return []Statement{EventsCopy("events", path, string(d.Compression), nil)}, nil
}

func (s *Snowflake) GetManifest() Statement {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  base VARCHAR(512) NOT NULL PRIMARY KEY,
  types VARIANT NOT NULL,
  shredding_started TIMESTAMP_NTZ NOT NULL,
  shredding_completed TIMESTAMP_NTZ NOT NULL,
  min_collector TIMESTAMP_NTZ,
  max_collector TIMESTAMP_NTZ,
  ingestion TIMESTAMP_NTZ NOT NULL,
  compression VARCHAR(16) NOT NULL,
  processor_artifact VARCHAR(64) NOT NULL,
  processor_version VARCHAR(32) NOT NULL,
  count_good BIGINT
)`, s.qualify("manifest"))
	return CreateTableStmt("manifest", ddl)
}

func (s *Snowflake) ToFragment(stmt Statement) (string, error) {
	switch stmt.Kind {
	case KindBegin:
		return "BEGIN", nil
	case KindCommit:
		return "COMMIT", nil
	case KindAbort:
		return "ROLLBACK", nil
	case KindSelect1, KindReadyCheck:
		return "SELECT 1", nil
	case KindSetSchema:
		return "USE SCHEMA " + s.Schema, nil

	case KindCreateAlertingTempTable:
		return "CREATE TEMPORARY TABLE IF NOT EXISTS rdb_folder_monitoring (run_id VARCHAR(1024))", nil
	case KindDropAlertingTempTable:
		return "DROP TABLE IF EXISTS rdb_folder_monitoring", nil
	case KindFoldersCopy:
		return fmt.Sprintf("INSERT INTO rdb_folder_monitoring (run_id) VALUES ('%s')", quoteLiteral(stmt.Source)), nil
	case KindFoldersMinusManifest:
		return fmt.Sprintf("SELECT run_id FROM rdb_folder_monitoring MINUS SELECT base FROM %s", s.qualify("manifest")), nil

	case KindEventsCopy:
		compression := "NONE"
		if stmt.Compression == "GZIP" {
			compression = "GZIP"
		}
		return fmt.Sprintf(
			"COPY INTO %s FROM '%s' FILE_FORMAT = (TYPE = JSON COMPRESSION = %s) MATCH_BY_COLUMN_NAME = CASE_INSENSITIVE",
			s.qualify(stmt.Table), quoteLiteral(stmt.Path), compression), nil

	case KindGetColumns:
		return fmt.Sprintf(
			"SELECT LISTAGG(column_name, ',') WITHIN GROUP (ORDER BY ordinal_position) FROM information_schema.columns WHERE table_schema = '%s' AND table_name = '%s'",
			quoteLiteral(strings.ToUpper(s.Schema)), quoteLiteral(strings.ToUpper(stmt.Table))), nil

	case KindRenameTable:
		return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", s.qualify(stmt.From), s.qualify(stmt.To)), nil

	case KindManifestAdd:
		return fmt.Sprintf(
			"INSERT INTO %s (base, types, shredding_started, shredding_completed, min_collector, max_collector, ingestion, compression, processor_artifact, processor_version, count_good) "+
				"SELECT base, PARSE_JSON(types), shredding_started, shredding_completed, min_collector, max_collector, CURRENT_TIMESTAMP(), compression, processor_artifact, processor_version, count_good FROM (%s)",
			s.qualify("manifest"), stmt.Raw), nil
	case KindManifestGet:
		return fmt.Sprintf(
			"SELECT base, types, shredding_started, shredding_completed, min_collector, max_collector, ingestion, compression, processor_artifact, processor_version, count_good FROM %s WHERE base = '%s'",
			s.qualify("manifest"), quoteLiteral(stmt.Source)), nil

	case KindAddLoadTstampColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS load_tstamp TIMESTAMP_NTZ", s.qualify("events")), nil
	case KindCreateTable, KindAlterTable, KindDdlFile:
		return stmt.Raw, nil

	default:
		// GetVersion, CommentOn, ShreddedCopy, TableExists, transit tables.
		return "", unsupportedError{dialect: "snowflake", kind: stmt.Kind}
	}
}

// entityColumnName builds the wide-events column for one shredded type:
// contexts_<vendor>_<name>_<model> or unstruct_event_<vendor>_<name>_<model>.
func entityColumnName(info discovery.ShreddedTypeInfo) string {
	prefix := "unstruct_event"
	if info.SnowplowEntity == discovery.EntityContext {
		prefix = "contexts"
	}
	key := registry.NewSchemaKey(info.Vendor, info.Name, info.Model, 0, 0)
	return prefix + "_" + shreddedTableName(key)
}
