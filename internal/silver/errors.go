package silver

import "fmt"

// CoercionError reports a value that could not be converted to its column's
// Silver type. Row is the 0-based position in the Bronze table.
type CoercionError struct {
	Column string
	Raw    any
	RowID  string
	Row    int
	Err    error
}

func (e *CoercionError) Error() string {
	raw := "NULL"
	if e.Raw != nil {
		raw = fmt.Sprintf("%q", e.Raw)
	}
	id := e.RowID
	if id == "" {
		id = "?"
	}
	msg := fmt.Sprintf("coerce %s=%s (row %d, id %s)", e.Column, raw, e.Row, id)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CoercionError) Unwrap() error { return e.Err }
