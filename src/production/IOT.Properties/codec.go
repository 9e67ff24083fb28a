package properties

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Entry is the persisted form of one property.
type Entry struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Document is the JSON stored in a project's properties column.
type Document struct {
	Input   map[string]Entry `json:"input"`
	Control map[string]Entry `json:"control"`
}

// DecodeError identifies a stored entry that cannot be turned into a
// property.
type DecodeError struct {
	Namespace Namespace
	Name      string
	Err       error
}

func (e *DecodeError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("decode property %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("decode %s property %q: %v", e.Namespace, e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NewDocument returns a document with both namespaces empty.
func NewDocument() Document {
	return Document{Input: map[string]Entry{}, Control: map[string]Entry{}}
}

// ParseDocument reads a stored document. Empty input yields an empty
// document and missing namespaces are created.
func ParseDocument(data []byte) (Document, error) {
	doc := NewDocument()
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return doc, nil
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, fmt.Errorf("parse properties document: %w", err)
	}
	if doc.Input == nil {
		doc.Input = map[string]Entry{}
	}
	if doc.Control == nil {
		doc.Control = map[string]Entry{}
	}
	return doc, nil
}

// Marshal serializes the document for storage.
func (d Document) Marshal() ([]byte, error) {
	if d.Input == nil {
		d.Input = map[string]Entry{}
	}
	if d.Control == nil {
		d.Control = map[string]Entry{}
	}
	return json.Marshal(d)
}

// Entries returns the raw entries of one namespace.
func (d Document) Entries(ns Namespace) map[string]Entry {
	if ns == Control {
		return d.Control
	}
	return d.Input
}

// Decode decodes one namespace of the document.
func (d Document) Decode(ns Namespace) ([]Property, error) {
	props, err := Decode(d.Entries(ns))
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Namespace = ns
		}
		return nil, err
	}
	return props, nil
}

// Replace encodes props into namespace ns, discarding its previous entries.
func (d *Document) Replace(ns Namespace, props []Property) {
	if ns == Control {
		d.Control = Encode(props)
		return
	}
	d.Input = Encode(props)
}

// Decode turns stored entries into properties ordered by name. The first
// entry that does not coerce to its declared type aborts the decode.
func Decode(entries map[string]Entry) ([]Property, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]Property, 0, len(entries))
	for _, name := range names {
		e := entries[name]
		k, err := ParseKind(e.Type)
		if err != nil {
			return nil, &DecodeError{Name: name, Err: err}
		}
		v, err := valueFromJSON(k, e.Value)
		if err != nil {
			return nil, &DecodeError{Name: name, Err: err}
		}
		props = append(props, Property{Name: name, Value: v})
	}
	return props, nil
}

// Encode turns properties into stored entries using canonical tags. When
// two properties share a name the later one in props wins.
func Encode(props []Property) map[string]Entry {
	out := make(map[string]Entry, len(props))
	for _, p := range props {
		raw, err := p.Value.MarshalJSON()
		if err != nil {
			continue
		}
		out[p.Name] = Entry{Type: p.Kind().String(), Value: raw}
	}
	return out
}

// valueFromJSON coerces a stored JSON scalar through its text form so that
// stored values obey the same rules as live input. Integral floats such as
// 5.0 are accepted for int properties.
func valueFromJSON(k Kind, raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Value{}, &CoercionError{Kind: k, Raw: "null", Cause: errors.New("missing value")}
	}

	var text string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return Value{}, &CoercionError{Kind: k, Raw: string(raw), Cause: err}
		}
	case '{', '[':
		return Value{}, &CoercionError{Kind: k, Raw: string(raw), Cause: errors.New("not a scalar")}
	default:
		text = string(raw)
	}

	v, err := Coerce(k, text)
	if err != nil && k == KindInt && raw[0] != '"' {
		if f, ferr := strconv.ParseFloat(text, 64); ferr == nil && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return IntValue(int64(f)), nil
		}
	}
	return v, err
}
