// Package duckdb is an embedded analytical warehouse backed by DuckDB. Each
// medallion layer is a DuckDB schema; the project is implied by the
// database file.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"medallion/internal/table"
	"medallion/internal/warehouse"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	warehouse.Register("duckdb", func(ctx context.Context, cfg warehouse.Config) (warehouse.Warehouse, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Dialect renders DuckDB SQL.
type Dialect struct{}

func (Dialect) Name() string               { return "duckdb" }
func (Dialect) QuoteIdent(s string) string { return warehouse.QuoteANSI(s) }
func (Dialect) TopN() bool                 { return false }

func (d Dialect) TableRef(n table.Name) string {
	return d.QuoteIdent(string(n.Layer)) + "." + d.QuoteIdent(n.Entity)
}

func (Dialect) ColumnType(k table.Kind) string {
	switch k {
	case table.String:
		return "VARCHAR"
	case table.Float64:
		return "DOUBLE"
	case table.Int64:
		return "BIGINT"
	case table.Timestamp:
		return "TIMESTAMP"
	}
	return ""
}

func (Dialect) Round(expr string, places int) string {
	return fmt.Sprintf("ROUND(%s, %d)", expr, places)
}

func (d Dialect) CreateSchema(n table.Name) string {
	return "CREATE SCHEMA IF NOT EXISTS " + d.QuoteIdent(string(n.Layer))
}

func (d Dialect) CreateOrReplaceTableAs(n table.Name, query string) string {
	return "CREATE OR REPLACE TABLE " + d.TableRef(n) + " AS\n" + query
}

// Warehouse is a DuckDB database.
type Warehouse struct {
	warehouse.SQLBase
}

var _ warehouse.Warehouse = (*Warehouse)(nil)

// Open opens the database file at path; "" or ":memory:" is in-memory.
func Open(ctx context.Context, path string) (*Warehouse, error) {
	if path == ":memory:" {
		path = ""
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return &Warehouse{SQLBase: warehouse.SQLBase{DB: db, D: Dialect{}}}, nil
}
