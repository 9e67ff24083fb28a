package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-this-secret-in-production"

// Storage drivers understood by the container.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds all configuration of the panel API service
type Config struct {
	Server     ServerConfig     `json:"server"`
	Storage    StorageConfig    `json:"storage"`
	Database   DatabaseConfig   `json:"database"`
	Mongo      MongoConfig      `json:"mongo"`
	MQTT       MQTTConfig       `json:"mqtt"`
	Auth       AuthConfig       `json:"auth"`
	Devices    DeviceConfig     `json:"devices"`
	Properties PropertiesConfig `json:"properties"`
	Logging    LoggingConfig    `json:"logging"`
	CORS       CORSConfig       `json:"cors"`

	// InternalAPISecret authenticates the MQTT bridge on /internal routes.
	InternalAPISecret string `json:"-"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	GinMode      string        `json:"gin_mode"`
}

// StorageConfig selects the persistence backend and the photo directory
type StorageConfig struct {
	Driver         string `json:"driver"`
	UploadDir      string `json:"upload_dir"`
	UploadURL      string `json:"upload_url"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
	MinConns int    `json:"min_conns"`
}

// MongoConfig configures the input report history store. An empty URI
// keeps history in memory.
type MongoConfig struct {
	URI        string        `json:"uri"`
	Database   string        `json:"database"`
	Collection string        `json:"collection"`
	Timeout    time.Duration `json:"timeout"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	Enabled     bool          `json:"enabled"`
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	TopicPrefix string        `json:"topic_prefix"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	QoS         byte          `json:"qos"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	JWTSecretKey               string        `json:"jwt_secret_key"`
	JWTIssuer                  string        `json:"jwt_issuer"`
	AccessTokenDuration        time.Duration `json:"access_token_duration"`
	RefreshTokenDuration       time.Duration `json:"refresh_token_duration"`
	PasswordMinLength          int           `json:"password_min_length"`
	PasswordRequireSpecialChar bool          `json:"password_require_special_char"`
	SecureCookies              bool          `json:"secure_cookies"`
	Admin                      AdminConfig   `json:"admin"`
}

// AdminConfig holds admin user configuration
type AdminConfig struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DeviceConfig holds device dashboard settings
type DeviceConfig struct {
	KeyLength    int           `json:"key_length"`
	OnlineWindow time.Duration `json:"online_window"`
}

// PropertiesConfig tunes property writes
type PropertiesConfig struct {
	MaxWriteAttempts int `json:"max_write_attempts"`
	ReportHistory    int `json:"report_history"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout, stderr, or file path
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// BridgeConfig holds configuration for the MQTT bridge service
type BridgeConfig struct {
	Server            ServerConfig  `json:"server"`
	MQTT              MQTTConfig    `json:"mqtt"`
	Logging           LoggingConfig `json:"logging"`
	ApiServiceURL     string        `json:"api_service_url"`
	InternalAPISecret string        `json:"-"`
	Workers           int           `json:"workers"`
	QueueSize         int           `json:"queue_size"`
	RequestTimeout    time.Duration `json:"request_timeout"`
}

func loadDotEnv() {
	// A missing .env file is fine; variables may be set directly.
	_ = godotenv.Load()
}

func loadMQTT(clientID string) MQTTConfig {
	return MQTTConfig{
		Enabled:     getBool("MQTT_ENABLED", false),
		BrokerHost:  getEnv("BROKER_HOST", "localhost"),
		BrokerPort:  getInt("BROKER_PORT", 1883),
		BrokerUser:  getEnv("BROKER_USER", ""),
		BrokerPass:  getEnv("BROKER_PASS", ""),
		UseTLS:      getBool("BROKER_TLS", false),
		CACertPath:  getEnv("BROKER_CA_FILE", ""),
		TopicPrefix: strings.Trim(getEnv("MQTT_TOPIC_PREFIX", "projects"), "/"),
		ClientID:    getEnv("MQTT_CLIENT_ID", clientID),
		SharedGroup: getEnv("MQTT_SHARED_GROUP", ""),
		QoS:         byte(getInt("MQTT_QOS", 1)),
		KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
		PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
	}
}

func loadLogging() LoggingConfig {
	return LoggingConfig{
		Level:        getEnv("LOG_LEVEL", "info"),
		Format:       getEnv("LOG_FORMAT", "text"),
		Output:       getEnv("LOG_OUTPUT", "stdout"),
		EnableCaller: getBool("LOG_ENABLE_CALLER", false),
	}
}

func loadServer(portKey, defaultPort string) ServerConfig {
	return ServerConfig{
		Port:         getEnv(portKey, defaultPort),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		GinMode:      getEnv("GIN_MODE", "release"),
	}
}

// LoadBridgeConfig loads configuration for the MQTT bridge service
func LoadBridgeConfig() (*BridgeConfig, error) {
	loadDotEnv()

	cfg := &BridgeConfig{
		Server:            loadServer("BRIDGE_PORT", "9003"),
		MQTT:              loadMQTT("iot-bridge"),
		Logging:           loadLogging(),
		ApiServiceURL:     strings.TrimRight(getEnv("API_SERVICE_URL", "http://api-service:9002"), "/"),
		InternalAPISecret: getEnv("INTERNAL_API_SECRET", ""),
		Workers:           getInt("BRIDGE_WORKERS", 4),
		QueueSize:         getInt("BRIDGE_QUEUE_SIZE", 1000),
		RequestTimeout:    getDuration("BRIDGE_REQUEST_TIMEOUT", 10*time.Second),
	}

	if cfg.ApiServiceURL == "" {
		return nil, fmt.Errorf("API_SERVICE_URL is required")
	}
	if cfg.InternalAPISecret == "" {
		return nil, fmt.Errorf("INTERNAL_API_SECRET is required")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("BRIDGE_WORKERS must be at least 1")
	}
	return cfg, nil
}

// LoadApiConfig loads configuration for the panel API service
func LoadApiConfig() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		Server: loadServer("PORT", "9002"),
		Storage: StorageConfig{
			Driver:         strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
			UploadDir:      getEnv("UPLOAD_DIR", "static/uploads"),
			UploadURL:      strings.TrimRight(getEnv("UPLOAD_URL", "/static/uploads"), "/"),
			MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 10<<20)),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", ""),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "iot"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getInt("POSTGRES_MAX_CONNS", 25),
			MinConns: getInt("POSTGRES_MIN_CONNS", 5),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGODB_URI", ""),
			Database:   getEnv("MONGODB_DB", "iot"),
			Collection: getEnv("MONGODB_REPORTS_COLLECTION", "input_reports"),
			Timeout:    getDuration("MONGODB_TIMEOUT", 10*time.Second),
		},
		MQTT: loadMQTT("iot-api-service"),
		Auth: AuthConfig{
			JWTSecretKey:               getEnv("JWT_SECRET_KEY", defaultJWTSecret),
			JWTIssuer:                  getEnv("JWT_ISSUER", "iot-panel"),
			AccessTokenDuration:        getDuration("JWT_ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration:       getDuration("JWT_REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			PasswordMinLength:          getInt("PASSWORD_MIN_LENGTH", 8),
			PasswordRequireSpecialChar: getBool("PASSWORD_REQUIRE_SPECIAL_CHAR", false),
			SecureCookies:              getBool("SECURE_COOKIES", false),
			Admin: AdminConfig{
				Username: getEnv("ADMIN_USERNAME", "admin"),
				Email:    getEnv("ADMIN_EMAIL", "admin@example.com"),
				Password: getEnv("ADMIN_PASSWORD", "admin12345"),
			},
		},
		Devices: DeviceConfig{
			KeyLength:    getInt("DEVICE_KEY_LENGTH", 8),
			OnlineWindow: getDuration("DEVICE_ONLINE_WINDOW", 5*time.Minute),
		},
		Properties: PropertiesConfig{
			MaxWriteAttempts: getInt("PROPERTY_WRITE_ATTEMPTS", 3),
			ReportHistory:    getInt("REPORT_HISTORY_LIMIT", 100),
		},
		Logging: loadLogging(),
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
		InternalAPISecret: getEnv("INTERNAL_API_SECRET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Database.User == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("POSTGRES_PASSWORD is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecretKey == defaultJWTSecret {
		log.Println("WARNING: Using default JWT secret key. Change JWT_SECRET_KEY in production!")
	}
	if c.Auth.PasswordMinLength < 6 {
		return fmt.Errorf("password minimum length must be at least 6")
	}
	if c.Devices.KeyLength < 4 {
		return fmt.Errorf("DEVICE_KEY_LENGTH must be at least 4")
	}
	if c.Properties.MaxWriteAttempts < 1 {
		return fmt.Errorf("PROPERTY_WRITE_ATTEMPTS must be at least 1")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// BrokerURL returns the MQTT broker URL
func (m MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if m.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.BrokerHost, m.BrokerPort)
}

// InputTopic is the subscription filter for device input reports.
func (m MQTTConfig) InputTopic() string {
	topic := m.TopicPrefix + "/+/input"
	if m.SharedGroup != "" {
		return "$share/" + m.SharedGroup + "/" + topic
	}
	return topic
}

// ControlTopic is where control values of a project are published.
func (m MQTTConfig) ControlTopic(project string) string {
	return m.TopicPrefix + "/" + project + "/control"
}

// ErrorTopic is where bridge failures for a project are published.
func (m MQTTConfig) ErrorTopic(project string) string {
	return m.TopicPrefix + "/" + project + "/errors"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
