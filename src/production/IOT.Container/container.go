package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/health"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	messaging "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Messaging"
	implementation "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repositories groups the stores the API service runs on.
type Repositories struct {
	Users    interfaces.UserRepository
	Roles    interfaces.RoleRepository
	Projects interfaces.ProjectRepository
	Devices  interfaces.DeviceRepository
	Reports  interfaces.ReportRepository
	Photos   interfaces.PhotoStore
}

// Container manages dependencies and their lifecycle
type Container struct {
	config *config.Config
	logger *logger.Logger

	db          *sql.DB
	mongoClient *mongo.Client
	mqttClient  mqtt.Client
	publisher   *messaging.Publisher
	repos       *Repositories

	// Health components
	healthChecker   *health.HealthChecker
	databaseManager *health.DatabaseManager

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions
	cleanupFuncs []func() error
}

// BridgeContainer manages dependencies for the MQTT bridge service
type BridgeContainer struct {
	config *config.BridgeConfig
	logger *logger.Logger
}

// NewApiContainer creates a new container for the API service
func NewApiContainer() (*Container, error) {
	cfg, err := config.LoadApiConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load API configuration: %w", err)
	}
	return NewContainer(cfg, logger.NewLogger(&cfg.Logging)), nil
}

// NewContainer creates a container for an already loaded configuration.
func NewContainer(cfg *config.Config, log *logger.Logger) *Container {
	return &Container{config: cfg, logger: log}
}

// NewBridgeContainer creates a new container for the MQTT bridge service
func NewBridgeContainer() (*BridgeContainer, error) {
	cfg, err := config.LoadBridgeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load bridge configuration: %w", err)
	}
	return &BridgeContainer{
		config: cfg,
		logger: logger.NewLogger(&cfg.Logging),
	}, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetConfig returns the bridge configuration
func (c *BridgeContainer) GetConfig() *config.BridgeConfig {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetLogger returns the logger
func (c *BridgeContainer) GetLogger() *logger.Logger {
	return c.logger
}

func (c *Container) usesPostgres() bool {
	return c.config.Storage.Driver == config.StorageDriverPostgres
}

// GetDatabase returns the database connection
func (c *Container) GetDatabase() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.database()
}

func (c *Container) database() (*sql.DB, error) {
	if !c.usesPostgres() {
		return nil, fmt.Errorf("storage driver %q has no database", c.config.Storage.Driver)
	}
	if c.db == nil {
		db, err := health.ConnectPostgresWithTimeout(c.config, 20*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
	}
	return c.db, nil
}

// GetMongoClient returns the report history client. It fails when no
// MongoDB URI is configured.
func (c *Container) GetMongoClient() (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mongo()
}

func (c *Container) mongo() (*mongo.Client, error) {
	if c.mongoClient == nil {
		client, err := health.ConnectMongoWithTimeout(c.config.Mongo, c.config.Mongo.Timeout)
		if err != nil {
			return nil, err
		}
		c.mongoClient = client
	}
	return c.mongoClient, nil
}

// GetPublisher returns the control publisher, or nil when MQTT is disabled.
func (c *Container) GetPublisher() (*messaging.Publisher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.MQTT.Enabled {
		return nil, nil
	}
	if c.publisher == nil {
		client, err := messaging.Connect(c.config.MQTT, c.logger.WithComponent("mqtt"), nil)
		if err != nil {
			return nil, err
		}
		c.mqttClient = client
		c.publisher = messaging.NewPublisher(client, c.config.MQTT, c.logger)
	}
	return c.publisher, nil
}

// GetRepositories builds the stores for the configured storage driver.
// Report history goes to MongoDB when a URI is set, otherwise it follows
// the storage driver.
func (c *Container) GetRepositories() (*Repositories, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repos != nil {
		return c.repos, nil
	}

	photos, err := implementation.NewFilePhotoStore(
		c.config.Storage.UploadDir,
		c.config.Storage.UploadURL,
		c.config.Storage.MaxUploadBytes,
	)
	if err != nil {
		return nil, err
	}

	repos := &Repositories{Photos: photos}
	if c.usesPostgres() {
		db, err := c.database()
		if err != nil {
			return nil, err
		}
		repos.Users = implementation.NewPostgresUserRepository(db)
		repos.Roles = implementation.NewPostgresRoleRepository(db)
		repos.Projects = implementation.NewPostgresProjectRepository(db)
		repos.Devices = implementation.NewPostgresDeviceRepository(db)
		repos.Reports = implementation.NewPostgresReportRepository(db)
	} else {
		repos.Users = implementation.NewMemoryUserRepository()
		repos.Roles = implementation.NewMemoryRoleRepository()
		repos.Projects = implementation.NewMemoryProjectRepository()
		repos.Devices = implementation.NewMemoryDeviceRepository()
		repos.Reports = implementation.NewMemoryReportRepository(c.config.Properties.ReportHistory)
	}

	if c.config.Mongo.URI != "" {
		client, err := c.mongo()
		if err != nil {
			return nil, err
		}
		coll := client.Database(c.config.Mongo.Database).Collection(c.config.Mongo.Collection)
		repos.Reports = implementation.NewMongoReportRepository(coll, c.config.Mongo.Timeout)
	}

	c.repos = repos
	return repos, nil
}

// GetHealthChecker returns a checker covering every backend in use
func (c *Container) GetHealthChecker() *health.HealthChecker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthChecker != nil {
		return c.healthChecker
	}
	checker := health.NewHealthChecker()
	if c.db != nil {
		checker.Register("postgres", health.PostgresCheck(c.db))
	}
	if c.mongoClient != nil {
		checker.Register("mongo", health.MongoCheck(c.mongoClient))
	}
	if c.mqttClient != nil {
		checker.Register("mqtt", health.MQTTCheck(c.mqttClient))
	}
	c.healthChecker = checker
	return checker
}

// GetDatabaseManager returns the database manager
func (c *Container) GetDatabaseManager() (*health.DatabaseManager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.databaseManager == nil {
		db, err := c.database()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for database manager: %w", err)
		}
		c.databaseManager = health.NewDatabaseManager(db)
	}
	return c.databaseManager, nil
}

// InitializeDatabase creates tables and indexes for the backends in use
func (c *Container) InitializeDatabase(ctx context.Context) error {
	if c.usesPostgres() {
		dbManager, err := c.GetDatabaseManager()
		if err != nil {
			return err
		}
		if err := dbManager.CreateTables(ctx); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}

	repos, err := c.GetRepositories()
	if err != nil {
		return err
	}
	if mongoRepo, ok := repos.Reports.(*implementation.MongoReportRepository); ok {
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create report indexes: %w", err)
		}
	}

	c.logger.Logger.Info().Str("driver", c.config.Storage.Driver).Msg("Storage initialized")
	return nil
}

// AddCleanupFunc adds a cleanup function
func (c *Container) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	defer c.mu.Unlock()

	// Execute cleanup functions in reverse order
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	if c.mqttClient != nil {
		c.mqttClient.Disconnect(250)
	}
	if c.mongoClient != nil {
		if err := c.mongoClient.Disconnect(ctx); err != nil {
			c.logger.ErrorWithError(err, "Error disconnecting from MongoDB")
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.ErrorWithError(err, "Error closing database connection")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}

// Shutdown gracefully shuts down the bridge container
func (c *BridgeContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Bridge container shutdown complete")
	return nil
}
