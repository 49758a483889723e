package domain

import (
	"strconv"
	"strings"
)

// ValueKind tags the representation held by a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber // integer of any width, kept as a base-10 string
	KindString // symbols, strings and strkey-encoded addresses
	KindBytes  // hex encoded
	KindList
	KindMap
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a decoded contract value. Exactly one of the fields is meaningful,
// selected by Kind.
type Value struct {
	Kind ValueKind
	Bool bool
	Text string
	List []Value
	Map  map[string]Value
}

func NullValue() Value            { return Value{Kind: KindNull} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func NumberValue(n string) Value  { return Value{Kind: KindNumber, Text: n} }
func StringValue(s string) Value  { return Value{Kind: KindString, Text: s} }
func BytesValue(hex string) Value { return Value{Kind: KindBytes, Text: hex} }
func ListValue(vs ...Value) Value { return Value{Kind: KindList, List: vs} }
func MapValue(m map[string]Value) Value {
	if m == nil {
		m = make(map[string]Value)
	}
	return Value{Kind: KindMap, Map: m}
}

// IsNull reports whether v carries no data.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsString returns the textual form of scalar values. Lists, maps and nulls
// have no textual form.
func (v Value) AsString() (string, bool) {
	switch v.Kind {
	case KindString, KindNumber, KindBytes:
		return v.Text, true
	case KindBool:
		return strconv.FormatBool(v.Bool), true
	default:
		return "", false
	}
}

// AsInt returns v as an int64. Numeric strings are accepted since contracts
// are not consistent about how they encode small integers.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case KindNumber, KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Text), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Native converts v to plain Go values, suitable for JSON encoding and logs.
func (v Value) Native() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber, KindString, KindBytes:
		return v.Text
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = item.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, item := range v.Map {
			out[k] = item.Native()
		}
		return out
	default:
		return nil
	}
}

// Payload is the keyed data carried by a contract event.
type Payload map[string]Value

// Lookup returns the first non-null value found under any of keys.
func (p Payload) Lookup(keys ...string) (Value, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok && !v.IsNull() {
			return v, true
		}
	}
	return Value{}, false
}

// String returns the first non-empty textual value found under any of keys.
func (p Payload) String(keys ...string) string {
	for _, k := range keys {
		v, ok := p[k]
		if !ok {
			continue
		}
		if s, ok := v.AsString(); ok && s != "" {
			return s
		}
	}
	return ""
}

// Int returns the first integer value found under any of keys.
func (p Payload) Int(keys ...string) (int64, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			if n, ok := v.AsInt(); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// Native converts the payload for logging.
func (p Payload) Native() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Native()
	}
	return out
}
