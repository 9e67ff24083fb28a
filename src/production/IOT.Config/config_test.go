package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadApiConfigMemoryDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	cfg, err := LoadApiConfig()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "9002", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Devices.KeyLength)
	assert.Equal(t, 5*time.Minute, cfg.Devices.OnlineWindow)
	assert.Equal(t, 3, cfg.Properties.MaxWriteAttempts)
	assert.Equal(t, "projects", cfg.MQTT.TopicPrefix)
	assert.Empty(t, cfg.Mongo.URI)
}

func TestLoadApiConfigPostgresRequiresCredentials(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "")

	_, err := LoadApiConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_USER")
}

func TestLoadApiConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := LoadApiConfig()
	require.Error(t, err)
}

func TestLoadApiConfigOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_USER", "iot")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("DEVICE_ONLINE_WINDOW", "90s")

	cfg, err := LoadApiConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.Devices.OnlineWindow)
	assert.Equal(t, "host=localhost port=6543 user=iot password=secret dbname=iot sslmode=disable", cfg.GetDatabaseDSN())
}

func TestLoadBridgeConfigRequiresSecret(t *testing.T) {
	t.Setenv("INTERNAL_API_SECRET", "")

	_, err := LoadBridgeConfig()
	require.Error(t, err)

	t.Setenv("INTERNAL_API_SECRET", "s3cret")
	t.Setenv("API_SERVICE_URL", "http://api:9002/")
	cfg, err := LoadBridgeConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://api:9002", cfg.ApiServiceURL)
	assert.Equal(t, 4, cfg.Workers)
}

func TestMQTTTopics(t *testing.T) {
	m := MQTTConfig{TopicPrefix: "projects", BrokerHost: "broker", BrokerPort: 8883, UseTLS: true}

	assert.Equal(t, "tcps://broker:8883", m.BrokerURL())
	assert.Equal(t, "projects/+/input", m.InputTopic())
	assert.Equal(t, "projects/greenhouse/control", m.ControlTopic("greenhouse"))
	assert.Equal(t, "projects/greenhouse/errors", m.ErrorTopic("greenhouse"))

	m.SharedGroup = "bridges"
	assert.Equal(t, "$share/bridges/projects/+/input", m.InputTopic())
}
