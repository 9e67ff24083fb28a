// Package messaging holds the MQTT plumbing shared by the panel API and the
// bridge: client construction and the topics they publish on.
package messaging

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
)

// NewClientOptions builds reconnecting client options for cfg. onConnect
// runs after every (re)connect and is where subscriptions belong.
func NewClientOptions(cfg config.MQTTConfig, log *logger.Logger, onConnect mqtt.OnConnectHandler) (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(cfg.KeepAlive).
		SetPingTimeout(cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if cfg.BrokerUser != "" {
		opts.SetUsername(cfg.BrokerUser)
		opts.SetPassword(cfg.BrokerPass)
	}

	if cfg.UseTLS {
		tlsCfg, err := TLSConfig(cfg.CACertPath)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Logger.Error().Err(err).Msg("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Logger.Info().Str("broker", cfg.BrokerURL()).Msg("MQTT connected")
		if onConnect != nil {
			onConnect(c)
		}
	})
	return opts, nil
}

// Connect creates a client for cfg and waits for the first connection.
func Connect(cfg config.MQTTConfig, log *logger.Logger, onConnect mqtt.OnConnectHandler) (mqtt.Client, error) {
	opts, err := NewClientOptions(cfg, log, onConnect)
	if err != nil {
		return nil, err
	}
	client := mqtt.NewClient(opts)
	if tk := client.Connect(); tk.Wait() && tk.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.BrokerURL(), tk.Error())
	}
	return client, nil
}

// TLSConfig returns a TLS 1.2+ config trusting caFile when given.
func TLSConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file %s", caFile)
	}
	cfg.RootCAs = cp
	return cfg, nil
}
