package properties

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceRoundTripsTextForm(t *testing.T) {
	values := []Value{
		IntValue(0),
		IntValue(-42),
		IntValue(9007199254740993),
		FloatValue(3.25),
		FloatValue(-0.001),
		FloatValue(1e21),
		BoolValue(true),
		BoolValue(false),
		StringValue(""),
		StringValue("hello world"),
	}
	for _, v := range values {
		got, err := Coerce(v.Kind(), v.String())
		require.NoError(t, err, v.String())
		assert.True(t, v.Equal(got), "%s: want %v got %v", v.Kind(), v.Interface(), got.Interface())
	}
}

func TestParseBoolMachineRule(t *testing.T) {
	for _, raw := range []string{"true", "TRUE", "True", "1"} {
		b, err := ParseBool(raw)
		require.NoError(t, err, raw)
		assert.True(t, b, raw)
	}
	for _, raw := range []string{"false", "False", "0"} {
		b, err := ParseBool(raw)
		require.NoError(t, err, raw)
		assert.False(t, b, raw)
	}
	for _, raw := range []string{"yes", "no", "on", "", " true", "2"} {
		_, err := ParseBool(raw)
		assert.Error(t, err, raw)
	}
}

func TestCoerceFailures(t *testing.T) {
	cases := []struct {
		kind Kind
		raw  string
	}{
		{KindInt, "notanumber"},
		{KindInt, "1.5"},
		{KindInt, ""},
		{KindFloat, "abc"},
		{KindFloat, "NaN"},
		{KindFloat, "+Inf"},
		{KindBool, "yes"},
	}
	for _, c := range cases {
		_, err := Coerce(c.kind, c.raw)
		require.Error(t, err, "%s %q", c.kind, c.raw)
		assert.True(t, errors.Is(err, ErrInvalidValue))

		var cerr *CoercionError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, c.kind, cerr.Kind)
		assert.Equal(t, c.raw, cerr.Raw)
	}
}

func TestCoerceTrimsNumbers(t *testing.T) {
	v, err := Coerce(KindInt, " 17 ")
	require.NoError(t, err)
	assert.Equal(t, int64(17), v.Int())

	v, err = Coerce(KindString, " 17 ")
	require.NoError(t, err)
	assert.Equal(t, " 17 ", v.Str())
}

func TestParseKindAliases(t *testing.T) {
	for tag, want := range map[string]Kind{
		"int":     KindInt,
		"integer": KindInt,
		"float":   KindFloat,
		"bool":    KindBool,
		"boolean": KindBool,
		"str":     KindString,
		"string":  KindString,
	} {
		got, err := ParseKind(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, want, got, tag)
	}

	_, err := ParseKind("datetime")
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = CoerceTag("datetime", "x")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestZeroValues(t *testing.T) {
	assert.Equal(t, int64(0), Zero(KindInt).Interface())
	assert.Equal(t, float64(0), Zero(KindFloat).Interface())
	assert.Equal(t, false, Zero(KindBool).Interface())
	assert.Equal(t, "", Zero(KindString).Interface())
	assert.False(t, Value{}.IsValid())
}

func TestValueMarshalJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Value{
		"i": IntValue(3),
		"f": FloatValue(2.5),
		"b": BoolValue(true),
		"s": StringValue("x"),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"i":3,"f":2.5,"b":true,"s":"x"}`, string(b))

	_, err = json.Marshal(Value{})
	assert.Error(t, err)
}

func TestFormBool(t *testing.T) {
	assert.True(t, FormBool("1"))
	assert.False(t, FormBool("true"))
	assert.False(t, FormBool("on"))
	assert.False(t, FormBool(""))
}
