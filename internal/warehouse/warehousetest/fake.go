// Package warehousetest provides an in-memory warehouse.Warehouse for tests.
package warehousetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"medallion/internal/table"
	"medallion/internal/warehouse"
)

// Dialect is a plain ANSI dialect with LIMIT and CREATE OR REPLACE TABLE.
type Dialect struct{}

func (Dialect) Name() string                 { return "ansi" }
func (Dialect) QuoteIdent(s string) string   { return warehouse.QuoteANSI(s) }
func (Dialect) TopN() bool                   { return false }
func (Dialect) Round(e string, n int) string { return fmt.Sprintf("ROUND(%s, %d)", e, n) }

func (d Dialect) TableRef(n table.Name) string {
	return d.QuoteIdent(string(n.Layer)) + "." + d.QuoteIdent(n.Entity)
}

func (Dialect) ColumnType(k table.Kind) string {
	switch k {
	case table.String:
		return "TEXT"
	case table.Float64:
		return "DOUBLE PRECISION"
	case table.Int64:
		return "BIGINT"
	case table.Timestamp:
		return "TIMESTAMP"
	}
	return ""
}

func (d Dialect) CreateSchema(n table.Name) string {
	return "CREATE SCHEMA IF NOT EXISTS " + d.QuoteIdent(string(n.Layer))
}

func (d Dialect) CreateOrReplaceTableAs(n table.Name, query string) string {
	return "CREATE OR REPLACE TABLE " + d.TableRef(n) + " AS\n" + query
}

// Fake records every call. Hooks inject failures; nil hooks succeed.
type Fake struct {
	// ReplaceHook runs before a table is stored; a non-nil error fails the call.
	ReplaceHook func(name table.Name) error
	// ExecHook runs for every statement; a non-nil error fails the call.
	ExecHook func(stmt string) error

	mu         sync.Mutex
	tables     map[string]*table.Table
	statements []string
	replaced   []table.Name
	closed     bool
}

var _ warehouse.Warehouse = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake { return &Fake{tables: map[string]*table.Table{}} }

func (f *Fake) Dialect() warehouse.Dialect { return Dialect{} }

func (f *Fake) ReplaceTable(ctx context.Context, name table.Name, t *table.Table) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.ReplaceHook != nil {
		if err := f.ReplaceHook(name); err != nil {
			return 0, err
		}
	}
	cp := &table.Table{Schema: append(table.Schema(nil), t.Schema...), Rows: make([][]any, len(t.Rows))}
	for i, r := range t.Rows {
		cp.Rows[i] = append([]any(nil), r...)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name.String()] = cp
	f.replaced = append(f.replaced, name)
	return int64(len(cp.Rows)), nil
}

func (f *Fake) ExecStatement(ctx context.Context, stmt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.statements = append(f.statements, stmt)
	f.mu.Unlock()
	if f.ExecHook != nil {
		return f.ExecHook(stmt)
	}
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Table returns the stored table, or nil.
func (f *Fake) Table(name table.Name) *table.Table {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[name.String()]
}

// Replaced lists ReplaceTable calls that succeeded, in order.
func (f *Fake) Replaced() []table.Name {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]table.Name(nil), f.replaced...)
}

// Statements lists every statement passed to ExecStatement, in call order.
func (f *Fake) Statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statements...)
}

// StatementsMatching returns the statements containing substr.
func (f *Fake) StatementsMatching(substr string) []string {
	var out []string
	for _, s := range f.Statements() {
		if strings.Contains(s, substr) {
			out = append(out, s)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
