package properties

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyDocument = `{
	"input": {
		"temperature": {"type": "float", "value": 21.5},
		"count": {"type": "integer", "value": 7},
		"door_open": {"type": "bool", "value": true},
		"label": {"type": "string", "value": "north"}
	},
	"control": {
		"fan": {"type": "boolean", "value": false},
		"setpoint": {"type": "int", "value": "22"}
	}
}`

func TestDecodeEncodePreservesNamesAndValues(t *testing.T) {
	doc, err := ParseDocument([]byte(legacyDocument))
	require.NoError(t, err)

	for _, ns := range []Namespace{Input, Control} {
		props, err := doc.Decode(ns)
		require.NoError(t, err)

		again, err := Decode(Encode(props))
		require.NoError(t, err)
		assert.Equal(t, props, again, ns)
	}

	input, err := doc.Decode(Input)
	require.NoError(t, err)
	require.Len(t, input, 4)
	// ordered by name
	assert.Equal(t, []string{"count", "door_open", "label", "temperature"}, names(input))
	assert.Equal(t, IntValue(7), input[0].Value)
	assert.Equal(t, BoolValue(true), input[1].Value)
	assert.Equal(t, StringValue("north"), input[2].Value)
	assert.Equal(t, FloatValue(21.5), input[3].Value)

	control, err := doc.Decode(Control)
	require.NoError(t, err)
	assert.Equal(t, IntValue(22), control[1].Value)
}

func TestEncodeWritesCanonicalTags(t *testing.T) {
	entries := Encode([]Property{
		{Name: "a", Value: IntValue(1)},
		{Name: "b", Value: FloatValue(1.5)},
		{Name: "c", Value: BoolValue(true)},
		{Name: "d", Value: StringValue("x")},
	})

	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"a": {"type": "int", "value": 1},
		"b": {"type": "float", "value": 1.5},
		"c": {"type": "bool", "value": true},
		"d": {"type": "str", "value": "x"}
	}`, string(raw))
}

func TestEncodeLaterDuplicateWins(t *testing.T) {
	entries := Encode([]Property{
		{Name: "mode", Value: IntValue(1)},
		{Name: "mode", Value: StringValue("auto")},
	})
	require.Len(t, entries, 1)
	assert.Equal(t, "str", entries["mode"].Type)
	assert.JSONEq(t, `"auto"`, string(entries["mode"].Value))
}

func TestDecodeFailsFastOnCorruptEntry(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"input": {"level": {"type": "int", "value": "high"}}, "control": {}}`))
	require.NoError(t, err)

	_, err = doc.Decode(Input)
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, Input, de.Namespace)
	assert.Equal(t, "level", de.Name)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestDecodeRejectsUnknownTagAndNonScalars(t *testing.T) {
	_, err := Decode(map[string]Entry{"x": {Type: "date", Value: json.RawMessage(`"2024-01-01"`)}})
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode(map[string]Entry{"x": {Type: "str", Value: json.RawMessage(`{"a":1}`)}})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = Decode(map[string]Entry{"x": {Type: "int", Value: json.RawMessage(`null`)}})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestDecodeAcceptsIntegralFloatForInt(t *testing.T) {
	props, err := Decode(map[string]Entry{"n": {Type: "int", Value: json.RawMessage(`5.0`)}})
	require.NoError(t, err)
	assert.Equal(t, IntValue(5), props[0].Value)

	_, err = Decode(map[string]Entry{"n": {Type: "int", Value: json.RawMessage(`5.5`)}})
	assert.Error(t, err)
}

func TestParseDocumentFillsMissingNamespaces(t *testing.T) {
	for _, raw := range []string{"", "null", "{}", `{"input": {}}`} {
		doc, err := ParseDocument([]byte(raw))
		require.NoError(t, err, raw)
		assert.NotNil(t, doc.Input)
		assert.NotNil(t, doc.Control)

		out, err := doc.Marshal()
		require.NoError(t, err)
		assert.JSONEq(t, `{"input":{},"control":{}}`, string(out))
	}

	_, err := ParseDocument([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestDocumentReplace(t *testing.T) {
	doc := NewDocument()
	doc.Replace(Control, []Property{New("fan", KindBool)})
	doc.Replace(Input, []Property{New("temp", KindFloat)})

	out, err := doc.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"input": {"temp": {"type": "float", "value": 0}},
		"control": {"fan": {"type": "bool", "value": false}}
	}`, string(out))
}

func names(props []Property) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Name
	}
	return out
}
