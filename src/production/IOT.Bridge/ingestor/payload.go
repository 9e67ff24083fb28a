package ingestor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidTopic   = errors.New("invalid topic")
	ErrInvalidPayload = errors.New("invalid payload")
)

// ParseTopic extracts the project name from <prefix>/<project>/input.
func ParseTopic(prefix, topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", fmt.Errorf("%w: %s, expected %s/<project>/input", ErrInvalidTopic, topic, prefix)
	}
	project, ok := strings.CutSuffix(rest, "/input")
	if !ok || project == "" || strings.Contains(project, "/") {
		return "", fmt.Errorf("%w: %s, expected %s/<project>/input", ErrInvalidTopic, topic, prefix)
	}
	return project, nil
}

// ParsePayload decodes a JSON object of property name to scalar into the
// string form the panel coerces. Numbers keep their literal text.
func ParsePayload(payload []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}

	values := make(map[string]string, len(raw))
	for name, v := range raw {
		switch val := v.(type) {
		case string:
			values[name] = val
		case json.Number:
			values[name] = val.String()
		case bool:
			values[name] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("%w: %q is not a scalar", ErrInvalidPayload, name)
		}
	}
	return values, nil
}
