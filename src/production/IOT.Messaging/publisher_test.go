package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
)

type doneToken struct{ err error }

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mqtt.Client
	connected bool
	err       error
	sent      []published
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return &doneToken{err: c.err}
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{TopicPrefix: "projects", QoS: 1}
}

func TestPublishControlIsRetained(t *testing.T) {
	client := &fakeClient{connected: true}
	p := NewPublisher(client, testConfig(), logger.Nop())
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	err := p.PublishControl(context.Background(), "greenhouse", map[string]interface{}{"fan": true, "target": int64(21)})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, "projects/greenhouse/control", msg.topic)
	assert.True(t, msg.retained)
	assert.Equal(t, byte(1), msg.qos)
	assert.JSONEq(t, `{"project":"greenhouse","control":{"fan":true,"target":21},"timestamp":"2026-01-02T03:04:05Z"}`, string(msg.payload))
}

func TestPublishErrorTopic(t *testing.T) {
	client := &fakeClient{connected: true}
	p := NewPublisher(client, testConfig(), logger.Nop())

	require.NoError(t, p.PublishError(context.Background(), "greenhouse", "invalid_value", "temp: bad"))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "projects/greenhouse/errors", client.sent[0].topic)
	assert.False(t, client.sent[0].retained)

	var msg ErrorMessage
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &msg))
	assert.Equal(t, "invalid_value", msg.ErrorType)
	assert.Equal(t, "greenhouse", msg.Project)
}

func TestPublishFailures(t *testing.T) {
	offline := NewPublisher(&fakeClient{}, testConfig(), logger.Nop())
	assert.ErrorIs(t, offline.PublishControl(context.Background(), "p", nil), ErrNotConnected)

	broken := &fakeClient{connected: true, err: errors.New("boom")}
	p := NewPublisher(broken, testConfig(), logger.Nop())
	err := p.PublishControl(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestTLSConfigRejectsBadCA(t *testing.T) {
	cfg, err := TLSConfig("")
	require.NoError(t, err)
	assert.Nil(t, cfg.RootCAs)

	_, err = TLSConfig("/does/not/exist.pem")
	assert.Error(t, err)
}
