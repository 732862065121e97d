// Package bigquery is the Google BigQuery warehouse. Each layer is a dataset
// in the configured project; tables are replaced with WRITE_TRUNCATE load
// jobs fed newline-delimited JSON.
package bigquery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"medallion/internal/table"
	"medallion/internal/warehouse"

	"cloud.google.com/go/bigquery"
	"github.com/goccy/go-json"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func init() {
	warehouse.Register("bigquery", func(ctx context.Context, cfg warehouse.Config) (warehouse.Warehouse, error) {
		return Open(ctx, cfg)
	})
}

// Dialect renders GoogleSQL.
type Dialect struct {
	// Location is applied to datasets created by CreateSchema; "" leaves
	// the project default.
	Location string
}

func (Dialect) Name() string { return "bigquery" }

// QuoteIdent backtick-quotes an identifier.
func (Dialect) QuoteIdent(s string) string { return "`" + strings.ReplaceAll(s, "`", "\\`") + "`" }

func (Dialect) TopN() bool { return false }

// TableRef renders `project.dataset.table`.
func (d Dialect) TableRef(n table.Name) string {
	return d.QuoteIdent(n.Project + "." + string(n.Layer) + "." + n.Entity)
}

func (Dialect) ColumnType(k table.Kind) string {
	switch k {
	case table.String:
		return "STRING"
	case table.Float64:
		return "FLOAT64"
	case table.Int64:
		return "INT64"
	case table.Timestamp:
		return "TIMESTAMP"
	}
	return ""
}

func (Dialect) Round(expr string, places int) string {
	return fmt.Sprintf("ROUND(%s, %d)", expr, places)
}

func (d Dialect) CreateSchema(n table.Name) string {
	s := "CREATE SCHEMA IF NOT EXISTS " + d.QuoteIdent(n.Project+"."+string(n.Layer))
	if d.Location != "" {
		s += fmt.Sprintf(" OPTIONS(location=%q)", d.Location)
	}
	return s
}

func (d Dialect) CreateOrReplaceTableAs(n table.Name, query string) string {
	return "CREATE OR REPLACE TABLE " + d.TableRef(n) + " AS\n" + query
}

// Warehouse is a BigQuery project.
type Warehouse struct {
	client   *bigquery.Client
	d        Dialect
	location string

	mu       sync.Mutex
	datasets map[string]bool // datasets known to exist
}

var _ warehouse.Warehouse = (*Warehouse)(nil)

// Open creates a client for cfg.ProjectID. cfg.CredentialsPath selects a
// service-account key; when empty, Application Default Credentials apply.
func Open(ctx context.Context, cfg warehouse.Config) (*Warehouse, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("bigquery: project id must not be empty")
	}
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: new client: %w", err)
	}
	return &Warehouse{
		client:   client,
		d:        Dialect{Location: cfg.Location},
		location: cfg.Location,
		datasets: map[string]bool{},
	}, nil
}

func (w *Warehouse) Dialect() warehouse.Dialect { return w.d }

func (w *Warehouse) Close() error { return w.client.Close() }

// dataset addresses the layer's dataset in the table's own project, the
// same one TableRef renders. An empty project falls back to the client's.
func (w *Warehouse) dataset(name table.Name) *bigquery.Dataset {
	if name.Project == "" {
		return w.client.Dataset(string(name.Layer))
	}
	return w.client.DatasetInProject(name.Project, string(name.Layer))
}

// ensureDataset creates the dataset for name's layer when it does not exist
// yet.
func (w *Warehouse) ensureDataset(ctx context.Context, name table.Name) error {
	ds := w.dataset(name)
	key := ds.ProjectID + "." + ds.DatasetID

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.datasets[key] {
		return nil
	}
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("dataset %s metadata: %w", key, err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: w.location}); err != nil && !isConflict(err) {
			return fmt.Errorf("create dataset %s: %w", key, err)
		}
	}
	w.datasets[key] = true
	return nil
}

// ReplaceTable runs a load job with WRITE_TRUNCATE; BigQuery swaps the table
// contents atomically when the job commits.
func (w *Warehouse) ReplaceTable(ctx context.Context, name table.Name, t *table.Table) (int64, error) {
	if len(t.Schema) == 0 {
		return 0, fmt.Errorf("bigquery: table %s has no columns", name)
	}
	if err := w.ensureDataset(ctx, name); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if err := encodeNDJSON(&buf, t.Schema, t.Rows); err != nil {
		return 0, fmt.Errorf("encode %s: %w", name, err)
	}
	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.JSON
	src.Schema = toSchema(t.Schema)

	loader := w.dataset(name).Table(name.Entity).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.Location = w.location

	job, err := loader.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("start load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("load job %s: %w", job.ID(), err)
	}
	if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
		return stats.OutputRows, nil
	}
	return int64(len(t.Rows)), nil
}

// ExecStatement runs stmt as a query job and waits for it.
func (w *Warehouse) ExecStatement(ctx context.Context, stmt string) error {
	q := w.client.Query(stmt)
	q.Location = w.location
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("start query job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for query job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("query job %s: %w", job.ID(), err)
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func isConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

func toSchema(s table.Schema) bigquery.Schema {
	out := make(bigquery.Schema, len(s))
	for i, c := range s {
		f := &bigquery.FieldSchema{Name: c.Name, Required: !c.Nullable}
		switch c.Kind {
		case table.Float64:
			f.Type = bigquery.FloatFieldType
		case table.Int64:
			f.Type = bigquery.IntegerFieldType
		case table.Timestamp:
			f.Type = bigquery.TimestampFieldType
		default:
			f.Type = bigquery.StringFieldType
		}
		out[i] = f
	}
	return out
}

const timestampLayout = "2006-01-02T15:04:05.999999Z07:00"

// encodeNDJSON writes one JSON object per row with keys in schema order.
// NULLs are written as null.
func encodeNDJSON(w io.Writer, s table.Schema, rows [][]any) error {
	keys := make([][]byte, len(s))
	for i, c := range s {
		k, err := json.Marshal(c.Name)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	var line bytes.Buffer
	for r, row := range rows {
		if len(row) != len(s) {
			return fmt.Errorf("row %d has %d values, want %d", r, len(row), len(s))
		}
		line.Reset()
		line.WriteByte('{')
		for i, v := range row {
			if i > 0 {
				line.WriteByte(',')
			}
			line.Write(keys[i])
			line.WriteByte(':')
			if ts, ok := v.(time.Time); ok {
				v = ts.UTC().Format(timestampLayout)
			}
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", r, s[i].Name, err)
			}
			line.Write(b)
		}
		line.WriteString("}\n")
		if _, err := w.Write(line.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
