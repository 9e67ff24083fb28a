package health

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthStatusAllOK(t *testing.T) {
	h := NewHealthChecker()
	h.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	h.Register("postgres", func(context.Context) error { return nil })

	status, healthy := h.GetHealthStatus(context.Background())
	assert.True(t, healthy)
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "2026-05-01T00:00:00Z", status["timestamp"])
	checks := status["checks"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"status": "ok"}, checks["postgres"])
}

func TestHealthStatusDegraded(t *testing.T) {
	h := NewHealthChecker()
	h.Register("postgres", func(context.Context) error { return nil })
	h.Register("mqtt", func(context.Context) error { return errors.New("not connected") })

	status, healthy := h.GetHealthStatus(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, "degraded", status["status"])
	checks := status["checks"].(map[string]interface{})
	assert.Equal(t, "error", checks["mqtt"].(map[string]interface{})["status"])
	assert.Equal(t, "not connected", checks["mqtt"].(map[string]interface{})["error"])
}

func TestPostgresCheckNilDatabase(t *testing.T) {
	err := PostgresCheck(nil)(context.Background())
	assert.Error(t, err)
}

func TestSchemaCoversTables(t *testing.T) {
	ddl := strings.Join(Schema, "\n")
	for _, table := range []string{"users", "roles", "projects", "devices", "input_reports"} {
		assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}
