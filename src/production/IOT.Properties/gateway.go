package properties

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField is returned when the operator form omits a non-boolean
// control property.
var ErrMissingField = errors.New("missing field")

// FieldError ties a failure to the property it concerns.
type FieldError struct {
	Name string
	Err  error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ValidationError collects every rejected field of an operator submission.
type ValidationError struct {
	Fields []*FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return "invalid control values: " + strings.Join(names, ", ")
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		errs[i] = f
	}
	return errs
}

// FieldMessages maps each rejected field to a short reason.
func (e *ValidationError) FieldMessages() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Name] = f.Err.Error()
	}
	return out
}

// ApplyInput applies device-reported text values to the input properties.
// Only properties named in values with a non-empty value are touched; names
// that match no property are ignored. The first value that fails to coerce
// aborts the whole apply and props is left unmodified. The returned count is
// the number of properties assigned.
func ApplyInput(props []Property, values map[string]string) ([]Property, int, error) {
	out := Clone(props)
	applied := 0
	for i := range out {
		raw, ok := values[out[i].Name]
		if !ok || raw == "" {
			continue
		}
		v, err := Coerce(out[i].Kind(), raw)
		if err != nil {
			return nil, 0, &FieldError{Name: out[i].Name, Err: err}
		}
		out[i].Value = v
		applied++
	}
	return out, applied, nil
}

// ApplyControl applies an operator form to the control properties. Every
// non-boolean property must be present in form. Booleans follow the
// checkbox rule: "1" is true and anything else, absence included, is false.
// Either every property is assigned or a *ValidationError listing each bad
// field is returned and props is left unmodified.
func ApplyControl(props []Property, form map[string]string) ([]Property, error) {
	out := Clone(props)
	var verr ValidationError
	for i := range out {
		name := out[i].Name
		if out[i].Kind() == KindBool {
			out[i].Value = BoolValue(FormBool(form[name]))
			continue
		}
		raw, ok := form[name]
		if !ok {
			verr.Fields = append(verr.Fields, &FieldError{Name: name, Err: ErrMissingField})
			continue
		}
		v, err := Coerce(out[i].Kind(), raw)
		if err != nil {
			verr.Fields = append(verr.Fields, &FieldError{Name: name, Err: err})
			continue
		}
		out[i].Value = v
	}
	if len(verr.Fields) > 0 {
		return nil, &verr
	}
	return out, nil
}
