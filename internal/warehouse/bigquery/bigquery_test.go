package bigquery

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"medallion/internal/table"
	"medallion/internal/warehouse"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func TestDialect(t *testing.T) {
	t.Parallel()

	d := Dialect{Location: "US"}
	n := table.GoldName("my-proj", "localization")
	assert.Equal(t, "`my-proj.gold_layer.localization`", d.TableRef(n))
	assert.Equal(t, "CREATE SCHEMA IF NOT EXISTS `my-proj.gold_layer` OPTIONS(location=\"US\")", d.CreateSchema(n))
	assert.Equal(t, "CREATE SCHEMA IF NOT EXISTS `my-proj.gold_layer`", Dialect{}.CreateSchema(n))
	assert.Equal(t, "CREATE OR REPLACE TABLE `my-proj.gold_layer.localization` AS\nSELECT 1",
		d.CreateOrReplaceTableAs(n, "SELECT 1"))
	assert.Equal(t, "FLOAT64", d.ColumnType(table.Float64))
}

func TestToSchema(t *testing.T) {
	t.Parallel()

	got := toSchema(table.Schema{
		{Name: "id", Kind: table.String},
		{Name: "year", Kind: table.Float64, Nullable: true},
		{Name: "n", Kind: table.Int64},
		{Name: "last_update", Kind: table.Timestamp},
	})
	want := bigquery.Schema{
		{Name: "id", Type: bigquery.StringFieldType, Required: true},
		{Name: "year", Type: bigquery.FloatFieldType},
		{Name: "n", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "last_update", Type: bigquery.TimestampFieldType, Required: true},
	}
	assert.Equal(t, want, got)
}

func TestEncodeNDJSON(t *testing.T) {
	t.Parallel()

	s := table.Schema{
		{Name: "id", Kind: table.String},
		{Name: "price", Kind: table.Float64, Nullable: true},
		{Name: "last_update", Kind: table.Timestamp},
	}
	ts := time.Date(2024, 3, 1, 12, 30, 0, 500000000, time.FixedZone("CET", 3600))
	var buf bytes.Buffer
	require.NoError(t, encodeNDJSON(&buf, s, [][]any{
		{"a \"quoted\" id", 6000.5, ts},
		{"2", nil, ts},
	}))
	assert.Equal(t,
		`{"id":"a \"quoted\" id","price":6000.5,"last_update":"2024-03-01T11:30:00.5Z"}`+"\n"+
			`{"id":"2","price":null,"last_update":"2024-03-01T11:30:00.5Z"}`+"\n",
		buf.String())
}

func TestEncodeNDJSON_Errors(t *testing.T) {
	t.Parallel()

	s := table.Schema{{Name: "price", Kind: table.Float64}}
	assert.Error(t, encodeNDJSON(&bytes.Buffer{}, s, [][]any{{1.0, 2.0}}))
	assert.Error(t, encodeNDJSON(&bytes.Buffer{}, s, [][]any{{math.Inf(1)}}))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	nf := fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})
	assert.True(t, isNotFound(nf))
	assert.False(t, isNotFound(&googleapi.Error{Code: http.StatusForbidden}))
	assert.True(t, isConflict(&googleapi.Error{Code: http.StatusConflict}))
}

func TestOpen_RequiresProject(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), warehouse.Config{Kind: "bigquery"})
	assert.ErrorContains(t, err, "project id")
}

// TestDataset_UsesTableProject loads into the project named by the table,
// which is also the project TableRef renders for Gold statements.
func TestDataset_UsesTableProject(t *testing.T) {
	t.Parallel()

	client, err := bigquery.NewClient(context.Background(), "client-proj", option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	w := &Warehouse{client: client, datasets: map[string]bool{}}

	name := table.SilverName("data-proj", "used_cars")
	ds := w.dataset(name)
	assert.Equal(t, "data-proj", ds.ProjectID)
	assert.Equal(t, "silver_layer", ds.DatasetID)
	assert.Equal(t, "`data-proj.silver_layer.used_cars`", Dialect{}.TableRef(name))

	ds = w.dataset(table.Name{Layer: table.Gold, Entity: "localization"})
	assert.Equal(t, "client-proj", ds.ProjectID)
}
