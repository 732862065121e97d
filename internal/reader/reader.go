// Package reader loads the raw used-car listings file into a Bronze table.
//
// The whole source is read into memory. Every column of the header becomes a
// nullable string column (empty cells are NULL, everything else is kept as
// read), and a last_update timestamp taken once per read is appended to each
// row.
package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"medallion/internal/datasource"
	"medallion/internal/table"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LastUpdate is the name of the ingestion timestamp column.
const LastUpdate = "last_update"

const utf8BOM = "\uFEFF"

var (
	// ErrSourceUnavailable reports that the source could not be opened or read.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourceMalformed reports a missing or unusable header.
	ErrSourceMalformed = errors.New("source malformed")
)

// RequiredColumns must all be present in the source header.
var RequiredColumns = []string{
	"id", "url", "region", "region_url", "price", "manufacturer", "model",
	"condition", "cylinders", "fuel", "odometer", "title_status",
	"transmission", "VIN", "drive", "size", "type", "paint_color",
	"image_url", "description", "county", "lat", "long", "posting_date",
}

// Options tunes the CSV reader. Zero values are usable.
type Options struct {
	// Comma is the field delimiter; defaults to ','.
	Comma rune
	// LazyQuotes relaxes quote handling, see csv.Reader.LazyQuotes.
	LazyQuotes bool
	// Required overrides RequiredColumns when non-nil.
	Required []string
	// Now is the clock used for last_update; defaults to time.Now.
	Now func() time.Time
	// OnRowError receives rows that were skipped (line number is 1-based and
	// counts the header).
	OnRowError func(line int, err error)
}

// Reader reads one source into a table.
type Reader struct {
	src datasource.Source
	opt Options
	log *zap.Logger
}

// New returns a Reader for src. A nil logger disables logging.
func New(src datasource.Source, opt Options, log *zap.Logger) *Reader {
	if opt.Comma == 0 {
		opt.Comma = ','
	}
	if opt.Required == nil {
		opt.Required = RequiredColumns
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{src: src, opt: opt, log: log.Named("reader")}
}

// Read returns every row of the source in file order.
//
// Errors wrap ErrSourceUnavailable when the source cannot be opened or the
// stream breaks, and ErrSourceMalformed when the header is absent or lacks a
// required column. Rows whose field count does not match the header are
// skipped and reported through Options.OnRowError.
func (r *Reader) Read(ctx context.Context) (*table.Table, error) {
	rc, err := r.src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrSourceUnavailable, r.src, err)
	}
	defer rc.Close()

	stamp := r.opt.Now().UTC()

	cr := csv.NewReader(rc)
	cr.Comma = r.opt.Comma
	cr.LazyQuotes = r.opt.LazyQuotes
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v: empty source, no header", ErrSourceMalformed, r.src)
	}
	if err != nil {
		return nil, classifyReadErr(r.src, err)
	}
	headers, err := normalizeHeaders(hdr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrSourceMalformed, r.src, err)
	}
	if missing := missingColumns(headers, r.opt.Required); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v: missing required columns %s",
			ErrSourceMalformed, r.src, strings.Join(missing, ", "))
	}

	schema := make(table.Schema, 0, len(headers)+1)
	for _, h := range headers {
		schema = append(schema, table.Column{Name: h, Kind: table.String, Nullable: true})
	}
	schema = append(schema, table.Column{Name: LastUpdate, Kind: table.Timestamp})
	out := table.New(schema, 1024)

	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) && errors.Is(pe.Err, csv.ErrFieldCount) {
				skipped++
				r.rowError(pe.StartLine, err)
				continue
			}
			return nil, classifyReadErr(r.src, err)
		}

		row := make([]any, len(schema))
		for i, v := range rec {
			if v != "" {
				row[i] = v
			}
		}
		row[len(headers)] = stamp
		out.Append(row)
	}

	if skipped > 0 {
		r.log.Warn("skipped malformed rows",
			zap.Stringer("source", sourceName{r.src}),
			zap.Int("skipped", skipped))
	}
	r.log.Debug("source read",
		zap.Stringer("source", sourceName{r.src}),
		zap.Int("rows", out.Len()),
		zap.Int("columns", len(headers)))
	return out, nil
}

func (r *Reader) rowError(line int, err error) {
	if r.opt.OnRowError != nil {
		r.opt.OnRowError(line, err)
	}
}

// classifyReadErr maps a csv.Reader failure: syntax problems are malformed
// input, anything else is the underlying stream failing.
func classifyReadErr(src datasource.Source, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %v: %w", ErrSourceMalformed, src, err)
	}
	return fmt.Errorf("%w: %v: %w", ErrSourceUnavailable, src, err)
}

// headerCleaner drops invisible format characters (BOM, zero-width joiners)
// and composes to NFC so visually equal names compare equal.
var headerCleaner = transform.Chain(runes.Remove(runes.In(unicode.Cf)), norm.NFC)

// normalizeHeaders trims and cleans header cells. Unlike column names in the
// warehouse, the case is preserved ("VIN" stays "VIN").
func normalizeHeaders(h []string) ([]string, error) {
	out := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, col := range h {
		c := col
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if cleaned, _, err := transform.String(headerCleaner, c); err == nil {
			c = cleaned
		}
		c = strings.TrimSpace(c)
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		if j, dup := seen[c]; dup {
			return nil, fmt.Errorf("duplicate header %q at columns %d and %d", c, j+1, i+1)
		}
		seen[c] = i
		out[i] = c
	}
	return out, nil
}

func missingColumns(headers, required []string) []string {
	have := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		have[h] = struct{}{}
	}
	var missing []string
	for _, c := range required {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// sourceName adapts a Source to fmt.Stringer for log fields.
type sourceName struct{ src datasource.Source }

func (s sourceName) String() string { return fmt.Sprint(s.src) }
