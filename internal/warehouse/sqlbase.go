package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"medallion/internal/table"
)

// BulkLoadFn writes rows into the freshly created table inside tx and returns
// the number of rows written.
type BulkLoadFn func(ctx context.Context, tx *sql.Tx, ref string, schema table.Schema, rows [][]any) (int64, error)

// SQLBase implements ReplaceTable and ExecStatement on top of database/sql.
// Backends embed it and supply the dialect plus, optionally, a faster bulk
// loader than row-by-row prepared INSERTs.
type SQLBase struct {
	DB      *sql.DB
	D       Dialect
	Bind    func(i int) string // placeholder for the 1-based parameter i; "?" when nil
	Bulk    BulkLoadFn         // nil uses prepared INSERTs
	Convert func(v any) any    // optional per-value conversion before binding
}

// Dialect implements Warehouse.
func (b *SQLBase) Dialect() Dialect { return b.D }

// Close implements Warehouse.
func (b *SQLBase) Close() error { return b.DB.Close() }

// ReplaceTable drops and recreates name and loads t in one transaction.
func (b *SQLBase) ReplaceTable(ctx context.Context, name table.Name, t *table.Table) (int64, error) {
	create, err := CreateTableSQL(b.D, name, t.Schema)
	if err != nil {
		return 0, err
	}

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{DropTableSQL(b.D, name), create}
	if s := b.D.CreateSchema(name); s != "" {
		stmts = append([]string{s}, stmts...)
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return 0, fmt.Errorf("failed to execute SQL: %w", err)
		}
	}

	ref := b.D.TableRef(name)
	rows := t.Rows
	if b.Convert != nil {
		rows = convertRows(rows, b.Convert)
	}
	bulk := b.Bulk
	if bulk == nil {
		bulk = b.insertRows
	}
	n, err := bulk(ctx, tx, ref, t.Schema, rows)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", ref, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// ExecStatement runs stmt in its own transaction so multi-statement text is
// applied atomically.
func (b *SQLBase) ExecStatement(ctx context.Context, stmt string) error {
	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// InsertSQL renders a single-row INSERT for the given columns.
func InsertSQL(d Dialect, ref string, schema table.Schema, bind func(int) string) string {
	if bind == nil {
		bind = func(int) string { return "?" }
	}
	cols := make([]string, len(schema))
	ph := make([]string, len(schema))
	for i, c := range schema {
		cols[i] = d.QuoteIdent(c.Name)
		ph[i] = bind(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", ref, strings.Join(cols, ", "), strings.Join(ph, ", "))
}

func (b *SQLBase) insertRows(ctx context.Context, tx *sql.Tx, ref string, schema table.Schema, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, InsertSQL(b.D, ref, schema, b.Bind))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var n int64
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return n, fmt.Errorf("insert row %d: %w", i, err)
		}
		n++
	}
	return n, nil
}

func convertRows(rows [][]any, fn func(any) any) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		r := make([]any, len(row))
		for j, v := range row {
			r[j] = fn(v)
		}
		out[i] = r
	}
	return out
}
