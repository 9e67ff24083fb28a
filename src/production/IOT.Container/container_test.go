package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	implementation "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Implementation"
)

func memoryConfig(t *testing.T) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Driver:    config.StorageDriverMemory,
			UploadDir: t.TempDir(),
			UploadURL: "/static/uploads",
		},
		Properties: config.PropertiesConfig{MaxWriteAttempts: 3, ReportHistory: 20},
	}
}

func TestMemoryRepositories(t *testing.T) {
	c := NewContainer(memoryConfig(t), logger.Nop())

	repos, err := c.GetRepositories()
	require.NoError(t, err)
	assert.IsType(t, &implementation.MemoryUserRepository{}, repos.Users)
	assert.IsType(t, &implementation.MemoryProjectRepository{}, repos.Projects)
	assert.IsType(t, &implementation.MemoryDeviceRepository{}, repos.Devices)
	assert.IsType(t, &implementation.MemoryReportRepository{}, repos.Reports)
	assert.NotNil(t, repos.Photos)

	again, err := c.GetRepositories()
	require.NoError(t, err)
	assert.Same(t, repos, again)
}

func TestMemoryDriverHasNoDatabase(t *testing.T) {
	c := NewContainer(memoryConfig(t), logger.Nop())

	_, err := c.GetDatabase()
	assert.Error(t, err)
	require.NoError(t, c.InitializeDatabase(context.Background()))
}

func TestPublisherDisabled(t *testing.T) {
	c := NewContainer(memoryConfig(t), logger.Nop())

	pub, err := c.GetPublisher()
	require.NoError(t, err)
	assert.Nil(t, pub)
}

func TestHealthCheckerWithoutBackends(t *testing.T) {
	c := NewContainer(memoryConfig(t), logger.Nop())

	status, healthy := c.GetHealthChecker().GetHealthStatus(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, status["checks"])
	assert.NoError(t, c.Shutdown(context.Background()))
}
