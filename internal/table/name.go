package table

// Layer is a medallion layer; it doubles as the dataset/schema name in the
// warehouse.
type Layer string

const (
	Bronze Layer = "bronze_layer"
	Silver Layer = "silver_layer"
	Gold   Layer = "gold_layer"
)

// Name is a fully-qualified warehouse table name.
type Name struct {
	Project string
	Layer   Layer
	Entity  string
}

// String renders "<project>.<layer>.<entity>".
func (n Name) String() string {
	return n.Project + "." + string(n.Layer) + "." + n.Entity
}

// BronzeName, SilverName and GoldName build names in the corresponding layer.
func BronzeName(project, entity string) Name { return Name{project, Bronze, entity} }
func SilverName(project, entity string) Name { return Name{project, Silver, entity} }
func GoldName(project, entity string) Name   { return Name{project, Gold, entity} }
