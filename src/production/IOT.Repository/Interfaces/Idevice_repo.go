package interfaces

import (
	"context"
	"encoding/json"
	"time"

	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
)

type DeviceRepository interface {
	// Create assigns ID. A key already in use yields ErrDuplicate.
	Create(ctx context.Context, device *panel_models.Device) (*panel_models.Device, error)

	GetByID(ctx context.Context, id int64) (*panel_models.Device, error)
	GetByKey(ctx context.Context, key string) (*panel_models.Device, error)
	// ListByUser lists the devices of userID, or every device when userID
	// is empty.
	ListByUser(ctx context.Context, userID string) ([]*panel_models.Device, error)
	ListSeenSince(ctx context.Context, userID string, since time.Time) ([]*panel_models.Device, error)

	// Heartbeat marks the device with key online at ip.
	Heartbeat(ctx context.Context, key, ip string, at time.Time) (*panel_models.Device, error)

	// EnqueueCommand appends payload to the device queue in one atomic step.
	EnqueueCommand(ctx context.Context, id int64, payload json.RawMessage) error
	// DrainCommands returns the queued commands and empties the queue in
	// one atomic step.
	DrainCommands(ctx context.Context, key string) ([]json.RawMessage, error)

	Delete(ctx context.Context, id int64) error
}
