package notion

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind discriminates the parsed property value variants.
type Kind int

const (
	KindString Kind = iota
	KindList
	KindNumber
	KindBool
)

// Value is a normalized Notion property value: a scalar string, a list of
// strings, a number, or a boolean. Properties that are empty or of an
// unsupported type are simply absent from a ValueMap.
type Value struct {
	Kind Kind
	Str  string
	List []string
	Num  float64
	Bool bool
}

// String wraps a scalar string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// List wraps a list-of-strings value.
func List(items []string) Value { return Value{Kind: KindList, List: items} }

// Number wraps a numeric value.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Bool wraps a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// AsString returns the scalar string, or "" for non-string values.
func (v Value) AsString() string {
	if v.Kind == KindString {
		return v.Str
	}
	return ""
}

// AsList returns the string list, or nil for non-list values.
func (v Value) AsList() []string {
	if v.Kind == KindList {
		return v.List
	}
	return nil
}

// Equal reports deep equality of two values.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the value as its native JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindList:
		if v.List == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.List)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// UnmarshalJSON decodes a native JSON shape back into a tagged value.
func (v *Value) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}
	switch data[0] {
	case '"':
		v.Kind = KindString
		return json.Unmarshal(data, &v.Str)
	case '[':
		v.Kind = KindList
		return json.Unmarshal(data, &v.List)
	case 't', 'f':
		v.Kind = KindBool
		return json.Unmarshal(data, &v.Bool)
	default:
		v.Kind = KindNumber
		return json.Unmarshal(data, &v.Num)
	}
}

// ValueMap holds parsed page properties keyed by source-side field name.
type ValueMap map[string]Value

// Get returns the value for name and whether it is present.
func (m ValueMap) Get(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

// StringOr returns the scalar string for name, or def when absent.
func (m ValueMap) StringOr(name, def string) string {
	if v, ok := m[name]; ok && v.Kind == KindString {
		return v.Str
	}
	return def
}

// ListOr returns the string list for name, or def when absent.
func (m ValueMap) ListOr(name string, def []string) []string {
	if v, ok := m[name]; ok && v.Kind == KindList {
		return v.List
	}
	return def
}

// Names returns the sorted property names, useful for deterministic logs.
func (m ValueMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
