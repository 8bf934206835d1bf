// SPDX-License-Identifier: Apache-2.0

// Package target defines the dialect-neutral statement vocabulary and
// the Target interface: a closed set of statement tags covering every
// warehouse operation the loader performs, with one per-dialect
// renderer (ToFragment) producing the SQL text.
package target

// Kind tags one statement in the closed vocabulary. The state machine
// never invokes a Kind a given Target does not support; the migration
// planner's capability branching is responsible for avoiding them.
type Kind string

const (
	KindBegin                   Kind = "Begin"
	KindCommit                  Kind = "Commit"
	KindAbort                   Kind = "Abort"
	KindSelect1                 Kind = "Select1"
	KindReadyCheck              Kind = "ReadyCheck"
	KindCreateAlertingTempTable Kind = "CreateAlertingTempTable"
	KindDropAlertingTempTable   Kind = "DropAlertingTempTable"
	KindFoldersMinusManifest    Kind = "FoldersMinusManifest"
	KindFoldersCopy             Kind = "FoldersCopy"
	KindEventsCopy              Kind = "EventsCopy"
	KindShreddedCopy            Kind = "ShreddedCopy"
	KindCreateTransient         Kind = "CreateTransient"
	KindDropTransient           Kind = "DropTransient"
	KindAppendTransient         Kind = "AppendTransient"
	KindTableExists             Kind = "TableExists"
	KindGetVersion              Kind = "GetVersion"
	KindRenameTable             Kind = "RenameTable"
	KindSetSchema               Kind = "SetSchema"
	KindGetColumns              Kind = "GetColumns"
	KindManifestAdd             Kind = "ManifestAdd"
	KindManifestGet             Kind = "ManifestGet"
	KindAddLoadTstampColumn     Kind = "AddLoadTstampColumn"
	KindCreateTable             Kind = "CreateTable"
	KindCommentOn               Kind = "CommentOn"
	KindDdlFile                 Kind = "DdlFile"
	KindAlterTable              Kind = "AlterTable"
)

// Statement is one tagged operation plus its payload. Only the fields
// relevant to a given Kind are set; ToFragment reads the ones it needs.
type Statement struct {
	Kind  Kind
	Table string

	// Raw carries prepared DDL text for CreateTable/AlterTable/DdlFile.
	Raw string

	// Comment is the CommentOn marker body (an iglu schema URI).
	Comment string

	// Source is the storage prefix FoldersCopy records.
	Source string

	// Path, Compression, and Columns parameterize EventsCopy and
	// ShreddedCopy. Columns is only set for wide-row warehouses whose
	// Target reports RequiresEventsColumns.
	Path        string
	Compression string
	Columns     []string

	// From and To parameterize RenameTable.
	From, To string

	// LogMessage names the statement for Stage reporting and logging.
	LogMessage string
}

func Begin() Statement      { return Statement{Kind: KindBegin} }
func Commit() Statement     { return Statement{Kind: KindCommit} }
func Abort() Statement      { return Statement{Kind: KindAbort} }
func Select1() Statement    { return Statement{Kind: KindSelect1} }
func ReadyCheck() Statement { return Statement{Kind: KindReadyCheck} }

func CreateAlertingTempTable() Statement { return Statement{Kind: KindCreateAlertingTempTable} }
func DropAlertingTempTable() Statement   { return Statement{Kind: KindDropAlertingTempTable} }
func FoldersMinusManifest() Statement    { return Statement{Kind: KindFoldersMinusManifest} }

func FoldersCopy(source string) Statement {
	return Statement{Kind: KindFoldersCopy, Source: source}
}

func EventsCopy(table, path string, compression string, columns []string) Statement {
	return Statement{
		Kind: KindEventsCopy, Table: table, Path: path, Compression: compression,
		Columns: columns, LogMessage: "COPY " + table,
	}
}

func ShreddedCopy(table, path string, compression string) Statement {
	return Statement{
		Kind: KindShreddedCopy, Table: table, Path: path, Compression: compression,
		LogMessage: "COPY " + table,
	}
}

func CreateTransient() Statement {
	return Statement{Kind: KindCreateTransient, LogMessage: "creating transit table"}
}

func DropTransient() Statement {
	return Statement{Kind: KindDropTransient, LogMessage: "dropping transit table"}
}

func AppendTransient() Statement {
	return Statement{Kind: KindAppendTransient, LogMessage: "appending transit table into events"}
}

func TableExists(name string) Statement { return Statement{Kind: KindTableExists, Table: name} }
func GetVersion(name string) Statement  { return Statement{Kind: KindGetVersion, Table: name} }
func GetColumns(name string) Statement  { return Statement{Kind: KindGetColumns, Table: name} }

func RenameTable(from, to string) Statement {
	return Statement{Kind: KindRenameTable, From: from, To: to}
}

func SetSchema() Statement { return Statement{Kind: KindSetSchema} }

func ManifestAdd(payload string) Statement {
	return Statement{Kind: KindManifestAdd, Raw: payload, Table: "manifest"}
}

func ManifestGet(base string) Statement {
	return Statement{Kind: KindManifestGet, Source: base, Table: "manifest"}
}

func AddLoadTstampColumn() Statement {
	return Statement{Kind: KindAddLoadTstampColumn, Table: "events", LogMessage: "adding load_tstamp column"}
}

func CreateTableStmt(table, ddl string) Statement {
	return Statement{Kind: KindCreateTable, Table: table, Raw: ddl, LogMessage: "creating table " + table}
}

func CommentOn(table, comment string) Statement {
	return Statement{Kind: KindCommentOn, Table: table, Comment: comment}
}

func DdlFile(ddl string) Statement { return Statement{Kind: KindDdlFile, Raw: ddl} }

func AlterTableStmt(table, ddl string) Statement {
	return Statement{Kind: KindAlterTable, Table: table, Raw: ddl}
}
