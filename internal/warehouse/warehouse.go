// Package warehouse defines the analytical store the pipeline writes to and
// the loader that wraps it.
//
// A Warehouse is opened once per run and passed explicitly to every stage.
// Backends live in subpackages and register a Factory under their kind in
// init(); import medallion/internal/warehouse/all to link every backend.
package warehouse

import (
	"context"

	"medallion/internal/table"
)

// Warehouse is the capability set the pipeline needs from an analytical store.
type Warehouse interface {
	// ReplaceTable creates or replaces name so that it holds exactly t's rows
	// with a schema derived from t.Schema. Concurrent readers see either the
	// previous table or the new one, never a mix. It returns the rows written.
	ReplaceTable(ctx context.Context, name table.Name, t *table.Table) (int64, error)

	// ExecStatement runs a DDL/DML statement and waits for it to complete.
	ExecStatement(ctx context.Context, stmt string) error

	// Dialect describes the SQL flavour ExecStatement accepts.
	Dialect() Dialect

	Close() error
}

// Dialect renders the backend-specific parts of SQL text.
type Dialect interface {
	Name() string

	// QuoteIdent quotes a single identifier (column or table part).
	QuoteIdent(s string) string

	// TableRef renders a fully-qualified, quoted table reference.
	TableRef(n table.Name) string

	// ColumnType maps a logical kind to a column type.
	ColumnType(k table.Kind) string

	// Round renders ROUND(expr, places) including any casts the backend needs.
	Round(expr string, places int) string

	// TopN reports whether row limits are written as SELECT TOP n instead of
	// a trailing LIMIT n.
	TopN() bool

	// CreateSchema returns the statement that makes n's layer exist, or ""
	// when the backend has no such concept.
	CreateSchema(n table.Name) string

	// CreateOrReplaceTableAs returns statement text that atomically replaces
	// n with the result of query.
	CreateOrReplaceTableAs(n table.Name, query string) string
}

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name: bigquery, duckdb, postgres,
	// sqlite or mssql.
	Kind string

	// DSN is the connection string for SQL backends (file path for duckdb and
	// sqlite).
	DSN string

	// ProjectID is the BigQuery project; for other backends it is only used
	// in table names.
	ProjectID string

	// CredentialsPath points at a service-account JSON key (BigQuery).
	CredentialsPath string

	// Location is the BigQuery dataset/job location, e.g. "US".
	Location string
}
