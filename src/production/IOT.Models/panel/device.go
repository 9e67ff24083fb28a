package panel_models

import (
	"encoding/json"
	"time"
)

const (
	DeviceOnline  = "online"
	DeviceOffline = "offline"
)

// Device is a field unit owned by one user. Key is its only credential.
type Device struct {
	ID          int64             `json:"id" db:"id"`
	Type        string            `json:"type" db:"type"`
	Description string            `json:"description" db:"description"`
	Key         string            `json:"key" db:"key"`
	Status      string            `json:"status" db:"status"`
	IP          string            `json:"ip,omitempty" db:"ip"`
	LastSeen    *time.Time        `json:"last_seen,omitempty" db:"last_seen"`
	UserID      string            `json:"user_id" db:"user_id"`
	Commands    []json.RawMessage `json:"pending_commands" db:"commands"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}

// NewDevice returns an offline device with an empty command queue.
func NewDevice(deviceType, description, key, userID string) *Device {
	return &Device{
		Type:        deviceType,
		Description: description,
		Key:         key,
		Status:      DeviceOffline,
		UserID:      userID,
		Commands:    []json.RawMessage{},
		CreatedAt:   time.Now().UTC(),
	}
}

// DeviceStatus is one row of the recent activity listing.
type DeviceStatus struct {
	ID       int64     `json:"id"`
	Type     string    `json:"type"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}
