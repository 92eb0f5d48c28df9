// Package domain holds the data model shared by every stage of the matching
// cascade: raw input records, cleaned records, registry candidates, and the
// match result written to the checkpoint store.
package domain

import (
	"fmt"
	"time"
)

// ValueKind tags the scalar type carried by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindTime
)

// Value is the tagged union a RawRecord field holds. Input sources are
// untyped (spreadsheet cells, CSV text); this is where that ambiguity lives
// instead of leaking into the rest of the cascade.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Flt  float64
	Time time.Time
}

func Null() Value                   { return Value{Kind: KindNull} }
func StringValue(s string) Value    { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value        { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value    { return Value{Kind: KindFloat, Flt: f} }
func TimeValue(t time.Time) Value   { return Value{Kind: KindTime, Time: t} }

// IsNull reports whether the value carries no data.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsString renders the value as text. Numeric-looking identifiers and postal
// codes must always flow through RawRecord as KindString to begin with —
// this is a display/debug convenience, not a re-typing path.
func (v Value) AsString() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindString:
		return v.Str
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Flt)
	case KindTime:
		// Any date-like value crossing an LLM adapter boundary must be
		// ISO-8601 text, because the adapter contract is JSON-shaped text.
		return v.Time.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// RawRecord is an untyped, aliased input row. Field names are not fixed;
// normalization/alias resolution happens at the ingest boundary.
type RawRecord struct {
	InputID string
	Fields  map[string]Value
}

// Get returns the field by its canonical name (post alias-resolution), or
// Null if absent.
func (r RawRecord) Get(name string) Value {
	if v, ok := r.Fields[name]; ok {
		return v
	}
	return Null()
}
