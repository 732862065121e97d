// Package sqlite is a single-file warehouse backed by SQLite (modernc.org,
// pure Go). SQLite has no schemas, so the layer is folded into the table
// name: proj.silver_layer.used_cars becomes `silver_layer__used_cars`.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"medallion/internal/table"
	"medallion/internal/warehouse"

	_ "modernc.org/sqlite"
)

func init() {
	warehouse.Register("sqlite", func(ctx context.Context, cfg warehouse.Config) (warehouse.Warehouse, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Dialect renders SQLite SQL.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }
func (Dialect) TopN() bool   { return false }

// QuoteIdent uses backticks. A double-quoted name that matches no column is
// read by SQLite as a string literal; a backticked one is always an
// identifier.
func (Dialect) QuoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func (Dialect) CreateSchema(table.Name) string {
	return ""
}

// TableRef flattens the layer into the table name.
func (d Dialect) TableRef(n table.Name) string {
	return d.QuoteIdent(string(n.Layer) + "__" + n.Entity)
}

func (Dialect) ColumnType(k table.Kind) string {
	switch k {
	case table.String:
		return "TEXT"
	case table.Float64:
		return "REAL"
	case table.Int64:
		return "INTEGER"
	case table.Timestamp:
		return "TIMESTAMP"
	}
	return ""
}

func (Dialect) Round(expr string, places int) string {
	return fmt.Sprintf("ROUND(%s, %d)", expr, places)
}

func (d Dialect) CreateOrReplaceTableAs(n table.Name, query string) string {
	ref := d.TableRef(n)
	return "DROP TABLE IF EXISTS " + ref + ";\nCREATE TABLE " + ref + " AS\n" + query
}

// Warehouse is a SQLite database.
type Warehouse struct {
	warehouse.SQLBase
}

var _ warehouse.Warehouse = (*Warehouse)(nil)

// Open opens (creating if needed) the database at dsn, e.g. "medallion.db"
// or "file:medallion.db?_pragma=busy_timeout(5000)".
func Open(ctx context.Context, dsn string) (*Warehouse, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Warehouse{SQLBase: warehouse.SQLBase{DB: db, D: Dialect{}}}, nil
}
