package silver

import (
	"fmt"
	"strings"
)

// Policy decides what happens to a row when one of its values cannot be
// coerced to the column's type.
type Policy int

const (
	// Drop excludes the row and records the CoercionError in Result.Rejected.
	Drop Policy = iota
	// Null stores NULL instead of the bad value. Only valid on nullable columns.
	Null
	// Abort fails the whole transform with the CoercionError.
	Abort
)

func (p Policy) String() string {
	switch p {
	case Drop:
		return "drop"
	case Null:
		return "null"
	case Abort:
		return "abort"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts "drop", "null" and "abort" (case-insensitive).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drop":
		return Drop, nil
	case "null":
		return Null, nil
	case "abort":
		return Abort, nil
	}
	return 0, fmt.Errorf("unknown coercion policy %q (want drop, null or abort)", s)
}

// DefaultPolicies applies to every column that can fail coercion. Columns
// that feed Gold keys and measures are strict; the rest degrade to NULL.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"id":           Drop,
		"price":        Drop,
		"posting_date": Drop,
		"year":         Null,
		"odometer":     Null,
		"lat":          Null,
		"long":         Null,
	}
}
