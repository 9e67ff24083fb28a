package properties

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInputIsAllOrNothing(t *testing.T) {
	props := []Property{
		{Name: "a", Value: IntValue(1)},
		{Name: "b", Value: IntValue(2)},
	}

	out, applied, err := ApplyInput(props, map[string]string{"a": "5", "b": "notanumber"})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Zero(t, applied)
	assert.ErrorIs(t, err, ErrInvalidValue)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "b", fe.Name)

	assert.Equal(t, IntValue(1), props[0].Value)
	assert.Equal(t, IntValue(2), props[1].Value)
}

func TestApplyInputSkipsEmptyAndUnknown(t *testing.T) {
	props := []Property{
		{Name: "temp", Value: FloatValue(20)},
		{Name: "online", Value: BoolValue(false)},
		{Name: "note", Value: StringValue("old")},
	}

	out, applied, err := ApplyInput(props, map[string]string{
		"temp":    "21.5",
		"online":  "TRUE",
		"note":    "",
		"unknown": "x",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, FloatValue(21.5), out[0].Value)
	assert.Equal(t, BoolValue(true), out[1].Value)
	assert.Equal(t, StringValue("old"), out[2].Value)

	// input slice untouched
	assert.Equal(t, FloatValue(20), props[0].Value)
}

func TestApplyInputRejectsTruthyWords(t *testing.T) {
	props := []Property{{Name: "on", Value: BoolValue(false)}}
	_, _, err := ApplyInput(props, map[string]string{"on": "yes"})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestApplyControlCheckboxRule(t *testing.T) {
	props := []Property{
		{Name: "fan", Value: BoolValue(true)},
		{Name: "heater", Value: BoolValue(false)},
		{Name: "light", Value: BoolValue(true)},
		{Name: "setpoint", Value: IntValue(20)},
	}

	out, err := ApplyControl(props, map[string]string{
		"heater":   "1",
		"light":    "true",
		"setpoint": "23",
	})
	require.NoError(t, err)
	assert.Equal(t, BoolValue(false), out[0].Value, "absent checkbox is false")
	assert.Equal(t, BoolValue(true), out[1].Value)
	assert.Equal(t, BoolValue(false), out[2].Value, "only \"1\" is true on the form")
	assert.Equal(t, IntValue(23), out[3].Value)
}

func TestApplyControlReportsEveryBadField(t *testing.T) {
	props := []Property{
		{Name: "mode", Value: StringValue("auto")},
		{Name: "setpoint", Value: IntValue(20)},
		{Name: "ratio", Value: FloatValue(0.5)},
	}

	out, err := ApplyControl(props, map[string]string{"setpoint": "warm"})
	require.Error(t, err)
	assert.Nil(t, out)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.ErrorIs(t, err, ErrInvalidValue)

	msgs := verr.FieldMessages()
	assert.Equal(t, "missing field", msgs["mode"])
	assert.Contains(t, msgs["setpoint"], "invalid literal for int")
	assert.Equal(t, "missing field", msgs["ratio"])
}

func TestApplyControlAcceptsEmptyString(t *testing.T) {
	props := []Property{{Name: "label", Value: StringValue("x")}}
	out, err := ApplyControl(props, map[string]string{"label": ""})
	require.NoError(t, err)
	assert.Equal(t, StringValue(""), out[0].Value)
}

func TestValuesAndIndex(t *testing.T) {
	props := []Property{New("a", KindInt), {Name: "b", Value: StringValue("x")}}
	assert.Equal(t, map[string]interface{}{"a": int64(0), "b": "x"}, Values(props))
	assert.Equal(t, 1, Index(props, "b"))
	assert.Equal(t, -1, Index(props, "c"))
}

func TestParseNamespace(t *testing.T) {
	ns, err := ParseNamespace("control")
	require.NoError(t, err)
	assert.Equal(t, Control, ns)

	_, err = ParseNamespace("output")
	assert.ErrorIs(t, err, ErrUnknownNamespace)
}
