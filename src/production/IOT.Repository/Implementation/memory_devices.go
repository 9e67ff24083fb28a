package implementation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

// MemoryDeviceRepository stores devices in process memory. Queue operations
// run under the write lock so enqueue and drain are atomic.
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	nextID  int64
	devices map[int64]*panel_models.Device // id -> device
	keys    map[string]int64               // key -> id
}

func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[int64]*panel_models.Device),
		keys:    make(map[string]int64),
	}
}

func copyDevice(d *panel_models.Device) *panel_models.Device {
	out := *d
	out.Commands = append([]json.RawMessage{}, d.Commands...)
	if d.LastSeen != nil {
		t := *d.LastSeen
		out.LastSeen = &t
	}
	return &out
}

func (m *MemoryDeviceRepository) Create(ctx context.Context, device *panel_models.Device) (*panel_models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.keys[device.Key]; taken {
		return nil, fmt.Errorf("device key: %w", interfaces.ErrDuplicate)
	}
	m.nextID++
	device.ID = m.nextID
	if device.Commands == nil {
		device.Commands = []json.RawMessage{}
	}
	m.devices[device.ID] = copyDevice(device)
	m.keys[device.Key] = device.ID
	return device, nil
}

func (m *MemoryDeviceRepository) GetByID(ctx context.Context, id int64) (*panel_models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.devices[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return copyDevice(d), nil
}

func (m *MemoryDeviceRepository) GetByKey(ctx context.Context, key string) (*panel_models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.keys[key]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return copyDevice(m.devices[id]), nil
}

func (m *MemoryDeviceRepository) ListByUser(ctx context.Context, userID string) ([]*panel_models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*panel_models.Device, 0)
	for _, d := range m.devices {
		if userID == "" || d.UserID == userID {
			out = append(out, copyDevice(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryDeviceRepository) ListSeenSince(ctx context.Context, userID string, since time.Time) ([]*panel_models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*panel_models.Device, 0)
	for _, d := range m.devices {
		if (userID == "" || d.UserID == userID) && d.LastSeen != nil && !d.LastSeen.Before(since) {
			out = append(out, copyDevice(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(*out[j].LastSeen) })
	return out, nil
}

func (m *MemoryDeviceRepository) Heartbeat(ctx context.Context, key, ip string, at time.Time) (*panel_models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.keys[key]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	d := m.devices[id]
	d.Status = panel_models.DeviceOnline
	d.IP = ip
	seen := at
	d.LastSeen = &seen
	return copyDevice(d), nil
}

func (m *MemoryDeviceRepository) EnqueueCommand(ctx context.Context, id int64, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	d.Commands = append(d.Commands, append(json.RawMessage(nil), payload...))
	return nil
}

func (m *MemoryDeviceRepository) DrainCommands(ctx context.Context, key string) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.keys[key]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	d := m.devices[id]
	drained := d.Commands
	d.Commands = []json.RawMessage{}
	if drained == nil {
		drained = []json.RawMessage{}
	}
	return drained, nil
}

func (m *MemoryDeviceRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	delete(m.keys, d.Key)
	delete(m.devices, id)
	return nil
}
