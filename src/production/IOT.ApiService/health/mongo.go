package health

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectMongoWithTimeout connects to the report history database and pings
// the primary before returning.
func ConnectMongoWithTimeout(cfg config.MongoConfig, timeout time.Duration) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("MONGODB_URI is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	if strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		clientOptions.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	clientOptions.SetServerSelectionTimeout(timeout)
	clientOptions.SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping MongoDB: %w", err)
	}
	return client, nil
}

// MongoCheck pings the primary.
func MongoCheck(client *mongo.Client) Check {
	return func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("mongo client is nil")
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			return fmt.Errorf("mongo ping failed: %w", err)
		}
		return nil
	}
}

// MQTTCheck fails while the client has no live broker connection.
func MQTTCheck(client mqtt.Client) Check {
	return func(context.Context) error {
		if client == nil || !client.IsConnectionOpen() {
			return fmt.Errorf("mqtt broker not connected")
		}
		return nil
	}
}
