package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MetaKind discriminates the scalar kinds a metadata value may hold.
type MetaKind int

const (
	MetaString MetaKind = iota
	MetaNumber
	MetaBool
)

// MetaValue is a tagged scalar: string, number or bool. Metadata arrives
// from arbitrary CSV columns and JSON objects, so the union keeps breakdown
// logic total without resorting to interface{}.
type MetaValue struct {
	Kind MetaKind
	Str  string
	Num  float64
	Bool bool
}

// Metadata maps arbitrary extra input columns/fields to scalar values.
type Metadata map[string]MetaValue

// StringMeta builds a string-valued metadata entry.
func StringMeta(s string) MetaValue { return MetaValue{Kind: MetaString, Str: s} }

// NumberMeta builds a number-valued metadata entry.
func NumberMeta(n float64) MetaValue { return MetaValue{Kind: MetaNumber, Num: n} }

// BoolMeta builds a bool-valued metadata entry.
func BoolMeta(b bool) MetaValue { return MetaValue{Kind: MetaBool, Bool: b} }

// String renders the value for display and for breakdown bucketing.
func (v MetaValue) String() string {
	switch v.Kind {
	case MetaNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case MetaBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// MarshalJSON writes the underlying scalar without a wrapper object, so
// stored metadata stays plain JSON ({"model": "gpt-4", "temp": 0.7}).
func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case MetaNumber:
		return json.Marshal(v.Num)
	case MetaBool:
		return json.Marshal(v.Bool)
	default:
		return json.Marshal(v.Str)
	}
}

// UnmarshalJSON accepts any JSON scalar. Non-scalar values are rejected so
// nested structures never leak into breakdown logic.
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case string:
		*v = StringMeta(val)
	case float64:
		*v = NumberMeta(val)
	case bool:
		*v = BoolMeta(val)
	default:
		return fmt.Errorf("metadata value must be a string, number or bool, got %T", raw)
	}
	return nil
}
