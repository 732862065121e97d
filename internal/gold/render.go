package gold

import (
	"fmt"
	"strings"

	"medallion/internal/table"
	"medallion/internal/warehouse"
)

// Render returns the statement that replaces target with agg computed over
// the silver table.
func Render(agg Aggregation, d warehouse.Dialect, silver, target table.Name) string {
	return d.CreateOrReplaceTableAs(target, Query(agg, d, silver))
}

// Query renders the SELECT for agg:
//
//	SELECT [TOP n] <projections>
//	FROM <silver>
//	[GROUP BY ...]
//	[ORDER BY ...]
//	[LIMIT n]
func Query(agg Aggregation, d warehouse.Dialect, silver table.Name) string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if agg.Limit > 0 && d.TopN() {
		fmt.Fprintf(&sb, "TOP %d ", agg.Limit)
	}
	cols := make([]string, len(agg.Select))
	for i, p := range agg.Select {
		cols[i] = projection(p, d)
	}
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString("\nFROM ")
	sb.WriteString(d.TableRef(silver))

	if len(agg.GroupBy) > 0 {
		sb.WriteString("\nGROUP BY ")
		sb.WriteString(strings.Join(quoteAll(d, agg.GroupBy), ", "))
	}
	if len(agg.OrderBy) > 0 {
		terms := make([]string, len(agg.OrderBy))
		for i, o := range agg.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms[i] = d.QuoteIdent(o.Column) + " " + dir
		}
		sb.WriteString("\nORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}
	if agg.Limit > 0 && !d.TopN() {
		fmt.Fprintf(&sb, "\nLIMIT %d", agg.Limit)
	}
	return sb.String()
}

func projection(p Projection, d warehouse.Dialect) string {
	var expr string
	switch p.Func {
	case Count:
		expr = "COUNT(*)"
	case Avg:
		expr = "AVG(" + d.QuoteIdent(p.Column) + ")"
	default:
		expr = d.QuoteIdent(p.Column)
	}
	if p.Round > 0 {
		expr = d.Round(expr, p.Round)
	}
	alias := p.Alias
	if alias == "" {
		if p.Func == None {
			return expr
		}
		alias = p.Column
	}
	return expr + " AS " + d.QuoteIdent(alias)
}

func quoteAll(d warehouse.Dialect, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.QuoteIdent(c)
	}
	return out
}
