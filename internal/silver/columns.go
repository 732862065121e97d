package silver

import "medallion/internal/table"

// Entity is the default table entity for the listings dataset.
const Entity = "used_cars"

// Fill holds the replacement used when a categorical column is NULL.
var Fill = map[string]string{
	"fuel":         "other",
	"manufacturer": "other",
	"model":        "not informed",
	"condition":    "not informed",
	"title_status": "not informed",
	"transmission": "other",
	"VIN":          "-",
	"drive":        "not informed",
	"size":         "not informed",
	"type":         "other",
	"paint_color":  "not informed",
	"county":       "-",
}

// Schema is the fixed Silver column set, in load order.
var Schema = table.Schema{
	{Name: "id", Kind: table.String},
	{Name: "url", Kind: table.String, Nullable: true},
	{Name: "region", Kind: table.String, Nullable: true},
	{Name: "region_url", Kind: table.String, Nullable: true},
	{Name: "price", Kind: table.Float64},
	{Name: "year", Kind: table.Float64, Nullable: true},
	{Name: "manufacturer", Kind: table.String},
	{Name: "model", Kind: table.String},
	{Name: "condition", Kind: table.String},
	{Name: "cylinders", Kind: table.String, Nullable: true},
	{Name: "fuel", Kind: table.String},
	{Name: "odometer", Kind: table.Float64, Nullable: true},
	{Name: "title_status", Kind: table.String},
	{Name: "transmission", Kind: table.String},
	{Name: "VIN", Kind: table.String},
	{Name: "drive", Kind: table.String},
	{Name: "size", Kind: table.String},
	{Name: "type", Kind: table.String},
	{Name: "paint_color", Kind: table.String},
	{Name: "image_url", Kind: table.String, Nullable: true},
	{Name: "description", Kind: table.String, Nullable: true},
	{Name: "county", Kind: table.String},
	{Name: "state", Kind: table.String, Nullable: true},
	{Name: "lat", Kind: table.Float64, Nullable: true},
	{Name: "long", Kind: table.Float64, Nullable: true},
	{Name: "posting_date", Kind: table.Timestamp},
	{Name: "last_update", Kind: table.Timestamp},
}

// optional columns may be absent from the Bronze table; they load as NULL.
var optional = map[string]bool{"year": true, "state": true}
