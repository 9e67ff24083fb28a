package implementation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

const deviceColumns = `id, type, description, key, status, ip, last_seen, user_id, commands, created_at`

type PostgresDeviceRepository struct {
	db *sql.DB
}

func NewPostgresDeviceRepository(db *sql.DB) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

func scanDevice(row rowScanner) (*panel_models.Device, error) {
	var d panel_models.Device
	var lastSeen sql.NullTime
	var commands []byte
	if err := row.Scan(&d.ID, &d.Type, &d.Description, &d.Key, &d.Status, &d.IP,
		&lastSeen, &d.UserID, &commands, &d.CreatedAt); err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		d.LastSeen = &t
	}
	cmds, err := decodeCommands(commands)
	if err != nil {
		return nil, fmt.Errorf("device %d: %w", d.ID, err)
	}
	d.Commands = cmds
	return &d, nil
}

func decodeCommands(raw []byte) ([]json.RawMessage, error) {
	cmds := make([]json.RawMessage, 0)
	if len(raw) == 0 {
		return cmds, nil
	}
	if err := json.Unmarshal(raw, &cmds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal commands: %w", err)
	}
	return cmds, nil
}

func (r *PostgresDeviceRepository) Create(ctx context.Context, device *panel_models.Device) (*panel_models.Device, error) {
	if device.Commands == nil {
		device.Commands = []json.RawMessage{}
	}
	commands, err := json.Marshal(device.Commands)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal commands: %w", err)
	}

	query := `
		INSERT INTO devices (type, description, key, status, ip, user_id, commands, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = r.db.QueryRowContext(ctx, query, device.Type, device.Description, device.Key,
		device.Status, device.IP, device.UserID, commands, device.CreatedAt).Scan(&device.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("device key: %w", interfaces.ErrDuplicate)
		}
		return nil, err
	}
	return device, nil
}

func (r *PostgresDeviceRepository) GetByID(ctx context.Context, id int64) (*panel_models.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return d, nil
}

func (r *PostgresDeviceRepository) GetByKey(ctx context.Context, key string) (*panel_models.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE key = $1`, key))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return d, nil
}

func (r *PostgresDeviceRepository) ListByUser(ctx context.Context, userID string) ([]*panel_models.Device, error) {
	if userID == "" {
		return r.list(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	}
	return r.list(ctx, `SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY id`, userID)
}

func (r *PostgresDeviceRepository) ListSeenSince(ctx context.Context, userID string, since time.Time) ([]*panel_models.Device, error) {
	if userID == "" {
		return r.list(ctx, `SELECT `+deviceColumns+` FROM devices
			WHERE last_seen >= $1 ORDER BY last_seen DESC`, since)
	}
	return r.list(ctx, `SELECT `+deviceColumns+` FROM devices
		WHERE user_id = $1 AND last_seen >= $2 ORDER BY last_seen DESC`, userID, since)
}

func (r *PostgresDeviceRepository) list(ctx context.Context, query string, args ...interface{}) ([]*panel_models.Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := make([]*panel_models.Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *PostgresDeviceRepository) Heartbeat(ctx context.Context, key, ip string, at time.Time) (*panel_models.Device, error) {
	query := `
		UPDATE devices SET status = $1, ip = $2, last_seen = $3
		WHERE key = $4
		RETURNING ` + deviceColumns
	d, err := scanDevice(r.db.QueryRowContext(ctx, query, panel_models.DeviceOnline, ip, at, key))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return d, nil
}

// EnqueueCommand appends inside a single UPDATE so concurrent senders
// cannot overwrite each other.
func (r *PostgresDeviceRepository) EnqueueCommand(ctx context.Context, id int64, payload json.RawMessage) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET commands = commands || jsonb_build_array($1::jsonb) WHERE id = $2`,
		string(payload), id)
	if err != nil {
		return err
	}
	return expectRows(result)
}

// DrainCommands locks the row, captures the queue and clears it in one
// statement, so each command is handed to exactly one poller.
func (r *PostgresDeviceRepository) DrainCommands(ctx context.Context, key string) ([]json.RawMessage, error) {
	query := `
		WITH old AS (
			SELECT id, commands FROM devices WHERE key = $1 FOR UPDATE
		)
		UPDATE devices d SET commands = '[]'::jsonb
		FROM old
		WHERE d.id = old.id
		RETURNING old.commands
	`
	var raw []byte
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&raw); err != nil {
		return nil, mapNoRows(err)
	}
	return decodeCommands(raw)
}

func (r *PostgresDeviceRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result)
}
