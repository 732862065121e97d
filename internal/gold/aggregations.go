// Package gold materializes the Gold layer: a fixed set of aggregate tables,
// each rebuilt from the committed Silver table by one SQL statement.
package gold

// Func is the aggregate applied to a projected column.
type Func int

const (
	// None projects the column as is.
	None Func = iota
	Avg
	// Count counts rows; Column is ignored (COUNT(*)).
	Count
)

// Projection is one output column.
type Projection struct {
	Column string
	Func   Func
	// Round is the number of decimal places to round to; 0 leaves the value
	// unrounded.
	Round int
	// Alias names the output column; "" keeps Column.
	Alias string
}

// Order is one ORDER BY term. Column may name a projection alias.
type Order struct {
	Column string
	Desc   bool
}

// Aggregation describes one Gold table.
type Aggregation struct {
	Name    string
	Select  []Projection
	GroupBy []string
	OrderBy []Order
	// Limit caps the row count; 0 means no limit.
	Limit int
}

// aggregations is the Gold table set, in statement order.
var aggregations = []Aggregation{
	{
		Name: "avg_mileage_by_fuel_type",
		Select: []Projection{
			{Column: "fuel"},
			{Column: "odometer", Func: Avg, Round: 2, Alias: "average_mileage"},
		},
		GroupBy: []string{"fuel"},
	},
	{
		Name: "avg_price_by_manufacturer",
		Select: []Projection{
			{Column: "manufacturer"},
			{Func: Count, Alias: "ads"},
			{Column: "price", Func: Avg, Round: 2, Alias: "average_price"},
		},
		GroupBy: []string{"manufacturer"},
		OrderBy: []Order{{Column: "ads", Desc: true}, {Column: "manufacturer"}},
		Limit:   5,
	},
	{
		Name: "localization",
		Select: []Projection{
			{Column: "lat"},
			{Column: "long"},
			{Func: Count, Alias: "quantity"},
		},
		GroupBy: []string{"lat", "long"},
	},
	{
		Name: "price_by_mileage",
		Select: []Projection{
			{Column: "price"},
			{Column: "odometer", Alias: "mileage"},
		},
	},
	{
		Name: "prices_for_year",
		Select: []Projection{
			{Column: "price"},
			{Column: "year"},
		},
	},
}

// Aggregations returns the Gold table set in statement order.
func Aggregations() []Aggregation {
	return append([]Aggregation(nil), aggregations...)
}
