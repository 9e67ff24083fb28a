package ingestor

import (
	"context"
	"errors"
	"sync"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Bridge/client"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
)

type fakeAPI struct {
	mu      sync.Mutex
	reports map[string][]map[string]string
	control map[string]interface{}
	err     error
}

func (f *fakeAPI) ReportInputs(_ context.Context, project string, values map[string]string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reports == nil {
		f.reports = make(map[string][]map[string]string)
	}
	f.reports[project] = append(f.reports[project], values)
	if f.err != nil {
		return nil, f.err
	}
	return f.control, nil
}

type published struct {
	project   string
	control   map[string]interface{}
	errorType string
	message   string
}

type fakePublisher struct {
	mu       sync.Mutex
	controls []published
	errors   []published
}

func (f *fakePublisher) PublishControl(_ context.Context, project string, values map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, published{project: project, control: values})
	return nil
}

func (f *fakePublisher) PublishError(_ context.Context, project, errorType, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, published{project: project, errorType: errorType, message: message})
	return nil
}

func bridgeConfig(workers, queue int) config.BridgeConfig {
	return config.BridgeConfig{
		MQTT:      config.MQTTConfig{TopicPrefix: "projects"},
		Workers:   workers,
		QueueSize: queue,
	}
}

func startTestIngestor(cfg config.BridgeConfig, api ReportClient) (*Ingestor, *fakePublisher) {
	pub := &fakePublisher{}
	ing := New(cfg, api, logger.Nop())
	ing.publisher = pub
	ing.startWorkers(context.Background())
	return ing, pub
}

func TestRelaysReportAndPublishesControl(t *testing.T) {
	api := &fakeAPI{control: map[string]interface{}{"fan": true}}
	ing, pub := startTestIngestor(bridgeConfig(2, 10), api)

	require.True(t, ing.Enqueue("projects/greenhouse/input", []byte(`{"temp": 21.5}`)))
	ing.Stop()

	assert.Equal(t, []map[string]string{{"temp": "21.5"}}, api.reports["greenhouse"])
	require.Len(t, pub.controls, 1)
	assert.Equal(t, "greenhouse", pub.controls[0].project)
	assert.Equal(t, map[string]interface{}{"fan": true}, pub.controls[0].control)
	assert.Empty(t, pub.errors)
	assert.Equal(t, int64(1), ing.Stats()["processed"])
}

func TestInvalidPayloadPublishesError(t *testing.T) {
	api := &fakeAPI{}
	ing, pub := startTestIngestor(bridgeConfig(1, 10), api)

	require.True(t, ing.Enqueue("projects/greenhouse/input", []byte(`{"temp": [1]}`)))
	ing.Stop()

	assert.Empty(t, api.reports)
	require.Len(t, pub.errors, 1)
	assert.Equal(t, ErrorTypeInvalidPayload, pub.errors[0].errorType)
	assert.Equal(t, "greenhouse", pub.errors[0].project)
	assert.Equal(t, int64(1), ing.Stats()["failed"])
}

func TestRejectedReportPublishesAPIMessage(t *testing.T) {
	api := &fakeAPI{err: &client.APIError{Status: 400, Message: "invalid value for count"}}
	ing, pub := startTestIngestor(bridgeConfig(1, 10), api)

	ing.Enqueue("projects/greenhouse/input", []byte(`{"count": "x"}`))
	ing.Stop()

	require.Len(t, pub.errors, 1)
	assert.Equal(t, ErrorTypeRejected, pub.errors[0].errorType)
	assert.Equal(t, "invalid value for count", pub.errors[0].message)
	assert.Empty(t, pub.controls)
}

func TestUnavailableAPIPublishesError(t *testing.T) {
	api := &fakeAPI{err: errors.New("connection refused")}
	ing, pub := startTestIngestor(bridgeConfig(1, 10), api)

	ing.Enqueue("projects/greenhouse/input", []byte(`{}`))
	ing.Stop()

	require.Len(t, pub.errors, 1)
	assert.Equal(t, ErrorTypeUnavailable, pub.errors[0].errorType)
}

func TestEnqueueIgnoresForeignTopics(t *testing.T) {
	ing, pub := startTestIngestor(bridgeConfig(1, 10), &fakeAPI{})

	assert.False(t, ing.Enqueue("projects/greenhouse/control", []byte(`{}`)))
	ing.Stop()

	assert.Empty(t, pub.errors)
	assert.Empty(t, pub.controls)
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	// no workers are started, so the queue only fills
	ing := New(bridgeConfig(1, 2), &fakeAPI{}, logger.Nop())

	assert.True(t, ing.Enqueue("projects/a/input", []byte(`{}`)))
	assert.True(t, ing.Enqueue("projects/a/input", []byte(`{}`)))
	assert.False(t, ing.Enqueue("projects/a/input", []byte(`{}`)))

	stats := ing.Stats()
	assert.Equal(t, int64(1), stats["dropped"])
	assert.Equal(t, int64(2), stats["queued"])
}

func TestWorkersDrainEveryMessage(t *testing.T) {
	api := &fakeAPI{control: map[string]interface{}{}}
	ing, pub := startTestIngestor(bridgeConfig(4, 100), api)

	for n := 0; n < 50; n++ {
		require.True(t, ing.Enqueue("projects/greenhouse/input", []byte(`{"n": 1}`)))
	}
	ing.Stop()

	assert.Len(t, api.reports["greenhouse"], 50)
	assert.Len(t, pub.controls, 50)
}

func TestEnqueueAfterStopIsIgnored(t *testing.T) {
	api := &fakeAPI{}
	ing, pub := startTestIngestor(bridgeConfig(1, 10), api)
	ing.Stop()

	assert.NotPanics(t, func() {
		assert.False(t, ing.Enqueue("projects/greenhouse/input", []byte(`{"temp": 20}`)))
	})
	assert.Empty(t, api.reports)
	assert.Empty(t, pub.controls)
	assert.Equal(t, int64(0), ing.Stats()["dropped"])
}

func TestStopDisconnectsEvenWhileReconnecting(t *testing.T) {
	c := &reconnectingClient{}
	ing, _ := startTestIngestor(bridgeConfig(1, 10), &fakeAPI{})
	ing.mqttClient = c

	ing.Stop()
	ing.Stop()
	assert.Equal(t, 1, c.disconnects)
	assert.False(t, ing.Enqueue("projects/greenhouse/input", []byte(`{}`)))
}

// reconnectingClient reports itself offline, as paho does between an
// unexpected drop and the next successful reconnect.
type reconnectingClient struct {
	mqtt.Client
	disconnects int
}

func (c *reconnectingClient) IsConnected() bool { return false }

func (c *reconnectingClient) Disconnect(uint) { c.disconnects++ }
