package ingestor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Bridge/client"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	messaging "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Messaging"
)

// Error types published on the project error topic.
const (
	ErrorTypeInvalidPayload = "invalid_payload"
	ErrorTypeRejected       = "report_rejected"
	ErrorTypeUnavailable    = "api_unavailable"
)

// ReportClient forwards input values to the panel API.
type ReportClient interface {
	ReportInputs(ctx context.Context, project string, values map[string]string) (map[string]interface{}, error)
}

// Publisher sends control values and errors back to devices.
type Publisher interface {
	PublishControl(ctx context.Context, project string, values map[string]interface{}) error
	PublishError(ctx context.Context, project, errorType, message string) error
}

// Message is one input report received from the broker.
type Message struct {
	Project    string
	Payload    []byte
	ReceivedAt time.Time
}

// Ingestor relays MQTT input reports to the panel API through a bounded
// worker pool and publishes the resulting control values.
type Ingestor struct {
	cfg        config.BridgeConfig
	api        ReportClient
	publisher  Publisher
	mqttClient mqtt.Client
	msgCh      chan Message
	wg         sync.WaitGroup
	stopOnce   sync.Once

	// guards msgCh against sends after close
	mu      sync.RWMutex
	stopped bool

	logger     *logger.Logger

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func New(cfg config.BridgeConfig, api ReportClient, logger *logger.Logger) *Ingestor {
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}
	return &Ingestor{
		cfg:    cfg,
		api:    api,
		msgCh:  make(chan Message, size),
		logger: logger.WithComponent("ingestor"),
	}
}

// Start connects to the broker, subscribes to input reports and starts
// the workers.
func (i *Ingestor) Start(ctx context.Context) error {
	c, err := messaging.Connect(i.cfg.MQTT, i.logger, i.subscribe)
	if err != nil {
		return err
	}
	i.mqttClient = c
	i.publisher = messaging.NewPublisher(c, i.cfg.MQTT, i.logger)
	i.startWorkers(ctx)
	return nil
}

func (i *Ingestor) subscribe(c mqtt.Client) {
	topic := i.cfg.MQTT.InputTopic()
	i.logger.Logger.Info().Str("topic", topic).Msg("Subscribing to input reports")
	if token := c.Subscribe(topic, i.cfg.MQTT.QoS, i.onMessage); token.Wait() && token.Error() != nil {
		i.logger.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
	}
}

func (i *Ingestor) startWorkers(ctx context.Context) {
	workers := i.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		i.wg.Add(1)
		go func() {
			defer i.wg.Done()
			i.worker(ctx)
		}()
	}
}

// Stop disconnects from the broker and waits for queued messages to drain.
// Reports arriving afterwards, e.g. from a reconnect in flight, are ignored.
func (i *Ingestor) Stop() {
	i.stopOnce.Do(func() {
		if i.mqttClient != nil {
			i.mqttClient.Disconnect(500)
		}
		i.mu.Lock()
		i.stopped = true
		close(i.msgCh)
		i.mu.Unlock()
		i.wg.Wait()
	})
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

// Stats returns counters for the health endpoint.
func (i *Ingestor) Stats() map[string]int64 {
	return map[string]int64{
		"processed": i.processed.Load(),
		"failed":    i.failed.Load(),
		"dropped":   i.dropped.Load(),
		"queued":    int64(len(i.msgCh)),
	}
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	i.Enqueue(m.Topic(), m.Payload())
}

// Enqueue queues a report received on topic. It never blocks: a full
// queue drops the message.
func (i *Ingestor) Enqueue(topic string, payload []byte) bool {
	project, err := ParseTopic(i.cfg.MQTT.TopicPrefix, topic)
	if err != nil {
		i.logger.Logger.Warn().Err(err).Msg("Ignoring message")
		return false
	}

	msg := Message{Project: project, Payload: payload, ReceivedAt: time.Now().UTC()}
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.stopped {
		i.logger.WithProject(project).Warn("Bridge stopped, ignoring input report")
		return false
	}
	select {
	case i.msgCh <- msg:
		return true
	default:
		i.dropped.Add(1)
		i.logger.WithProject(project).Warn("Queue full, dropping input report")
		return false
	}
}

func (i *Ingestor) worker(ctx context.Context) {
	for msg := range i.msgCh {
		i.process(ctx, msg)
	}
}

func (i *Ingestor) process(ctx context.Context, msg Message) {
	log := i.logger.WithProject(msg.Project)

	values, err := ParsePayload(msg.Payload)
	if err != nil {
		i.failed.Add(1)
		log.Logger.Warn().Err(err).Msg("Rejecting input report")
		i.publishError(ctx, msg.Project, ErrorTypeInvalidPayload, err.Error())
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, i.requestTimeout())
	defer cancel()

	control, err := i.api.ReportInputs(reqCtx, msg.Project, values)
	if err != nil {
		i.failed.Add(1)
		errorType := ErrorTypeUnavailable
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Permanent() {
			errorType = ErrorTypeRejected
			err = errors.New(apiErr.Message)
		}
		log.Logger.Error().Err(err).Str("error_type", errorType).Msg("Failed to relay input report")
		i.publishError(ctx, msg.Project, errorType, err.Error())
		return
	}

	i.processed.Add(1)
	if err := i.publisher.PublishControl(ctx, msg.Project, control); err != nil {
		log.ErrorWithError(err, "Failed to publish control values")
		return
	}
	log.Logger.Debug().Int("values", len(values)).Msg("Relayed input report")
}

func (i *Ingestor) publishError(ctx context.Context, project, errorType, message string) {
	if err := i.publisher.PublishError(ctx, project, errorType, message); err != nil {
		i.logger.WithProject(project).ErrorWithError(err, "Failed to publish error")
	}
}

func (i *Ingestor) requestTimeout() time.Duration {
	if i.cfg.RequestTimeout > 0 {
		return i.cfg.RequestTimeout
	}
	return 10 * time.Second
}
