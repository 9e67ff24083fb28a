package ingestor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTopic(t *testing.T) {
	project, err := ParseTopic("projects", "projects/greenhouse/input")
	require.NoError(t, err)
	assert.Equal(t, "greenhouse", project)

	project, err = ParseTopic("site/a", "site/a/pump-1/input")
	require.NoError(t, err)
	assert.Equal(t, "pump-1", project)

	for _, topic := range []string{
		"projects/greenhouse/control",
		"projects//input",
		"projects/a/b/input",
		"other/greenhouse/input",
		"projects/input",
	} {
		_, err := ParseTopic("projects", topic)
		assert.ErrorIs(t, err, ErrInvalidTopic, topic)
	}
}

func TestParsePayloadScalars(t *testing.T) {
	values, err := ParsePayload([]byte(`{"temp": 21.50, "count": 7, "on": true, "label": "north", "big": 12345678901234567890}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"temp":  "21.50",
		"count": "7",
		"on":    "true",
		"label": "north",
		"big":   "12345678901234567890",
	}, values)
}

func TestParsePayloadRejects(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":  `temp=1`,
		"array":     `[1,2]`,
		"null":      `null`,
		"nested":    `{"a":{"b":1}}`,
		"list":      `{"a":[1]}`,
		"nil value": `{"a":null}`,
	} {
		_, err := ParsePayload([]byte(payload))
		assert.ErrorIs(t, err, ErrInvalidPayload, name)
	}
}

func TestParsePayloadEmptyObject(t *testing.T) {
	values, err := ParsePayload([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, values)
}
