// Package silver turns the raw Bronze table into the typed Silver table:
// categorical gaps are filled with fixed defaults, numeric and date columns
// are coerced, and rows that cannot be coerced are handled by a per-column
// Policy. The transform is pure; it performs no I/O.
package silver

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"medallion/internal/table"

	"github.com/zeebo/xxh3"
)

// DefaultDateLayouts are tried in order for posting_date.
var DefaultDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var (
	errMissing    = errors.New("missing value")
	errNotNumber  = errors.New("not a number")
	errNotFinite  = errors.New("not a finite number")
	errNotDate    = errors.New("not a recognised date")
	errNotTime    = errors.New("not a timestamp")
	errUnexpected = errors.New("unexpected value type")
)

// Options configures a Transformer. Zero values select the defaults.
type Options struct {
	// Policies overrides DefaultPolicies per column.
	Policies map[string]Policy
	// DateLayouts are tried after DefaultDateLayouts.
	DateLayouts []string
}

// Result is the outcome of one Transform.
type Result struct {
	Table *table.Table
	// Rejected lists the rows excluded by a Drop policy, in input order.
	Rejected []*CoercionError
	// Substituted counts values replaced by NULL under a Null policy.
	Substituted int
	// Duplicates counts rows dropped because their id was already seen.
	Duplicates int
}

// Transformer is safe for concurrent use; Transform does not mutate it.
type Transformer struct {
	policies map[string]Policy
	layouts  []string
}

// NewTransformer validates the policy overrides and returns a Transformer.
func NewTransformer(opt Options) (*Transformer, error) {
	policies := DefaultPolicies()
	for col, p := range opt.Policies {
		i := Schema.Index(col)
		if i < 0 {
			return nil, fmt.Errorf("silver: policy for unknown column %q", col)
		}
		if _, ok := policies[col]; !ok {
			return nil, fmt.Errorf("silver: column %q is never coerced; policy not applicable", col)
		}
		if p == Null && !Schema[i].Nullable {
			return nil, fmt.Errorf("silver: column %q is not nullable; policy %s not allowed", col, p)
		}
		policies[col] = p
	}
	layouts := append(append([]string(nil), DefaultDateLayouts...), opt.DateLayouts...)
	return &Transformer{policies: policies, layouts: layouts}, nil
}

// coerceFn converts a trimmed raw value (nil when absent) to a Silver value.
type coerceFn func(raw any) (any, error)

type colPlan struct {
	name   string
	src    int // index in the Bronze row, -1 if absent
	fill   any
	coerce coerceFn
	policy Policy
}

// compile resolves every Silver column against the Bronze schema once.
func (t *Transformer) compile(bronze table.Schema) ([]colPlan, error) {
	plan := make([]colPlan, len(Schema))
	for i, c := range Schema {
		p := colPlan{name: c.Name, src: bronze.Index(c.Name), policy: t.policies[c.Name]}
		if p.src < 0 && !optional[c.Name] {
			return nil, fmt.Errorf("silver: bronze table has no column %q", c.Name)
		}
		if f, ok := Fill[c.Name]; ok {
			p.fill = f
		}
		switch c.Kind {
		case table.Float64:
			p.coerce = toFloat(c.Nullable)
		case table.Timestamp:
			if c.Name == "last_update" {
				p.coerce = passTime
			} else {
				p.coerce = t.toTime
			}
		default:
			p.coerce = toString(c.Nullable)
		}
		plan[i] = p
	}
	return plan, nil
}

// Transform fills, coerces and de-duplicates the Bronze rows.
//
// It returns an error only when the Bronze table lacks a required column or
// an Abort policy fires; in the latter case the error is a *CoercionError.
func (t *Transformer) Transform(bronze *table.Table) (*Result, error) {
	plan, err := t.compile(bronze.Schema)
	if err != nil {
		return nil, err
	}
	idSrc := bronze.Schema.Index("id")

	res := &Result{Table: table.New(Schema, bronze.Len())}
	seen := make(map[xxh3.Uint128]struct{}, bronze.Len())

rows:
	for r, in := range bronze.Rows {
		out := make([]any, len(plan))
		for i := range plan {
			p := &plan[i]
			var raw any
			if p.src >= 0 && p.src < len(in) {
				raw = trim(in[p.src])
			}
			if raw == nil && p.fill != nil {
				raw = p.fill
			}
			v, cerr := p.coerce(raw)
			if cerr == nil {
				out[i] = v
				continue
			}

			ce := &CoercionError{Column: p.name, Raw: raw, Row: r, Err: cerr}
			if idSrc >= 0 && idSrc < len(in) {
				if id, ok := trim(in[idSrc]).(string); ok {
					ce.RowID = id
				}
			}
			switch p.policy {
			case Null:
				out[i] = nil
				res.Substituted++
			case Abort:
				return nil, ce
			default:
				res.Rejected = append(res.Rejected, ce)
				continue rows
			}
		}

		key := xxh3.HashString128(out[0].(string))
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		res.Table.Append(out)
	}
	return res, nil
}

// trim normalises a raw cell: surrounding whitespace is dropped and blank
// strings become nil.
func trim(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func toString(nullable bool) coerceFn {
	return func(raw any) (any, error) {
		switch v := raw.(type) {
		case nil:
			if nullable {
				return nil, nil
			}
			return nil, errMissing
		case string:
			return v, nil
		default:
			return fmt.Sprint(v), nil
		}
	}
}

func toFloat(nullable bool) coerceFn {
	return func(raw any) (any, error) {
		switch v := raw.(type) {
		case nil:
			if nullable {
				return nil, nil
			}
			return nil, errMissing
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, errNotNumber
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, errNotFinite
			}
			return f, nil
		default:
			return nil, errUnexpected
		}
	}
}

func (t *Transformer) toTime(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, errMissing
	case time.Time:
		return v.UTC(), nil
	case string:
		for _, layout := range t.layouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC(), nil
			}
		}
		return nil, errNotDate
	default:
		return nil, errUnexpected
	}
}

func passTime(raw any) (any, error) {
	if ts, ok := raw.(time.Time); ok {
		return ts, nil
	}
	return nil, errNotTime
}
