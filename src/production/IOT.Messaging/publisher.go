package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
)

var ErrNotConnected = errors.New("mqtt client not connected")

const publishTimeout = 5 * time.Second

// ControlMessage is the retained payload on a project's control topic.
type ControlMessage struct {
	Project   string                 `json:"project"`
	Control   map[string]interface{} `json:"control"`
	Timestamp time.Time              `json:"timestamp"`
}

// ErrorMessage is published when a device report could not be applied.
type ErrorMessage struct {
	ErrorType string    `json:"error_type"`
	Message   string    `json:"message"`
	Project   string    `json:"project"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends control values and bridge errors to the broker.
type Publisher struct {
	client mqtt.Client
	cfg    config.MQTTConfig
	log    *logger.Logger
	now    func() time.Time
}

func NewPublisher(client mqtt.Client, cfg config.MQTTConfig, log *logger.Logger) *Publisher {
	return &Publisher{client: client, cfg: cfg, log: log.WithComponent("mqtt_publisher"), now: time.Now}
}

// PublishControl publishes the control values of project as a retained
// message so devices that connect later still receive them.
func (p *Publisher) PublishControl(ctx context.Context, project string, values map[string]interface{}) error {
	msg := ControlMessage{Project: project, Control: values, Timestamp: p.now().UTC()}
	return p.publish(ctx, p.cfg.ControlTopic(project), true, msg)
}

// PublishError reports a rejected device report on the project's error
// topic.
func (p *Publisher) PublishError(ctx context.Context, project, errorType, message string) error {
	msg := ErrorMessage{ErrorType: errorType, Message: message, Project: project, Timestamp: p.now().UTC()}
	return p.publish(ctx, p.cfg.ErrorTopic(project), false, msg)
}

func (p *Publisher) publish(ctx context.Context, topic string, retained bool, v interface{}) error {
	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	token := p.client.Publish(topic, p.cfg.QoS, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Logger.Debug().Str("topic", topic).Bool("retained", retained).Msg("Published")
	return nil
}
