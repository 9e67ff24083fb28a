package properties

import (
	"errors"
	"fmt"
)

// ErrUnknownNamespace is returned for a namespace other than input or control.
var ErrUnknownNamespace = errors.New("unknown property namespace")

// Namespace separates device-reported values from operator-set values.
type Namespace string

const (
	Input   Namespace = "input"
	Control Namespace = "control"
)

// ParseNamespace validates a namespace name.
func ParseNamespace(s string) (Namespace, error) {
	switch Namespace(s) {
	case Input, Control:
		return Namespace(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNamespace, s)
}

// Property is a named typed value.
type Property struct {
	Name  string
	Value Value
}

// New returns a property of kind k holding the zero value of that kind.
func New(name string, k Kind) Property {
	return Property{Name: name, Value: Zero(k)}
}

func (p Property) Kind() Kind { return p.Value.Kind() }

// Index returns the position of the property called name.
func Index(props []Property, name string) int {
	for i := range props {
		if props[i].Name == name {
			return i
		}
	}
	return -1
}

// Values flattens props into name -> scalar, the shape devices receive.
func Values(props []Property) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for _, p := range props {
		out[p.Name] = p.Value.Interface()
	}
	return out
}

// Clone returns a copy of props that can be modified independently.
func Clone(props []Property) []Property {
	out := make([]Property, len(props))
	copy(out, props)
	return out
}
