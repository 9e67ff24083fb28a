// Package properties implements the typed property values carried by a
// project: coercion of raw text into the four supported kinds, the JSON
// document the values are persisted in, and the two bulk apply paths used
// by devices and operators.
package properties

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidValue is matched by every coercion failure.
	ErrInvalidValue = errors.New("invalid property value")
	// ErrUnknownType is returned for a type tag outside int, float, bool, str.
	ErrUnknownType = errors.New("unknown property type")
)

// Kind is the declared type of a property.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
)

// String returns the canonical tag written to storage.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "str"
	default:
		return "invalid"
	}
}

// ParseKind maps a type tag to a Kind. The long tags written by older
// documents ("integer", "boolean", "string") are accepted as aliases.
func ParseKind(tag string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "int", "integer":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	case "bool", "boolean":
		return KindBool, nil
	case "str", "string":
		return KindString, nil
	}
	return KindInvalid, fmt.Errorf("%w: %q", ErrUnknownType, tag)
}

// CoercionError reports raw text that is not a valid literal for a kind.
type CoercionError struct {
	Kind  Kind
	Raw   string
	Cause error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("invalid literal for %s: %q", e.Kind, e.Raw)
}

func (e *CoercionError) Unwrap() error { return ErrInvalidValue }

// Value is a typed scalar. The zero Value has KindInvalid.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Bool() bool { return v.b }
func (v Value) Str() string { return v.s }
func (v Value) IsValid() bool { return v.kind != KindInvalid }
func (v Value) Equal(o Value) bool { return v == o }

// Zero returns the value a freshly added property of kind k starts with.
func Zero(k Kind) Value {
	return Value{kind: k}
}

// Interface returns the Go scalar held by v.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindString:
		return v.s
	}
	return nil
}

// String renders v as text that Coerce parses back to v.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	}
	return ""
}

// MarshalJSON encodes v as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindInvalid {
		return nil, fmt.Errorf("marshal property value: %w", ErrInvalidValue)
	}
	return json.Marshal(v.Interface())
}

// Coerce parses raw text into a value of kind k. Integers and floats ignore
// surrounding whitespace; booleans follow ParseBool; strings are kept as is.
func Coerce(k Kind, raw string) (Value, error) {
	switch k {
	case KindInt:
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Value{}, &CoercionError{Kind: k, Raw: raw, Cause: err}
		}
		return IntValue(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Value{}, &CoercionError{Kind: k, Raw: raw, Cause: err}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, &CoercionError{Kind: k, Raw: raw, Cause: errors.New("not a finite number")}
		}
		return FloatValue(f), nil
	case KindBool:
		b, err := ParseBool(raw)
		if err != nil {
			return Value{}, &CoercionError{Kind: k, Raw: raw, Cause: err}
		}
		return BoolValue(b), nil
	case KindString:
		return StringValue(raw), nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnknownType, k)
}

// CoerceTag is Coerce with the kind given as a type tag.
func CoerceTag(tag, raw string) (Value, error) {
	k, err := ParseKind(tag)
	if err != nil {
		return Value{}, err
	}
	return Coerce(k, raw)
}

// ParseBool accepts "true"/"1" and "false"/"0", case-insensitively. Any
// other text is rejected rather than treated as truthy.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", raw)
}

// FormBool is the checkbox rule of the operator form: only "1" is true.
func FormBool(raw string) bool {
	return raw == "1"
}
