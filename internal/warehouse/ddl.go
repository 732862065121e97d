package warehouse

import (
	"fmt"
	"strings"

	"medallion/internal/table"
)

// CreateTableSQL renders CREATE TABLE for name with one column per schema
// entry:
//
//	CREATE TABLE <ref> (
//	  <col> <type> [NOT NULL],
//	  ...
//	)
func CreateTableSQL(d Dialect, name table.Name, schema table.Schema) (string, error) {
	if len(schema) == 0 {
		return "", fmt.Errorf("ddl: table %s has no columns", name)
	}
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(d.TableRef(name))
	sb.WriteString(" (\n")
	for i, c := range schema {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("ddl: table %s: column %d has an empty name", name, i)
		}
		typ := d.ColumnType(c.Kind)
		if typ == "" {
			return "", fmt.Errorf("ddl: table %s: no %s type for column %s", name, d.Name(), c.Name)
		}
		sb.WriteString("  ")
		sb.WriteString(d.QuoteIdent(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if i < len(schema)-1 {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(")")
	return sb.String(), nil
}

// QuoteANSI double-quotes an identifier, doubling embedded quotes.
func QuoteANSI(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// DropTableSQL renders DROP TABLE IF EXISTS for name.
func DropTableSQL(d Dialect, name table.Name) string {
	return "DROP TABLE IF EXISTS " + d.TableRef(name)
}
