// Package all links every warehouse backend into the binary.
package all

import (
	_ "medallion/internal/warehouse/bigquery"
	_ "medallion/internal/warehouse/duckdb"
	_ "medallion/internal/warehouse/mssql"
	_ "medallion/internal/warehouse/postgres"
	_ "medallion/internal/warehouse/sqlite"
)
