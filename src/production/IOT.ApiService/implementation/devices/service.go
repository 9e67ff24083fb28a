package devices

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

const (
	keyAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	keyAttempts     = 5
	photoTimeLayout = "20060102_150405"
)

var (
	ErrKeyRequired     = errors.New("key required")
	ErrInvalidCommand  = errors.New("command must be valid JSON")
	ErrTypeRequired    = errors.New("device type is required")
	ErrKeysExhausted   = errors.New("could not allocate a unique device key")
	ErrPhotoStoreUnset = errors.New("photo uploads are disabled")
)

// Service manages devices, their heartbeats and command queues.
type Service struct {
	repo         interfaces.DeviceRepository
	photos       interfaces.PhotoStore
	authz        *rbac.Authorizer
	log          *logger.Logger
	keyLength    int
	onlineWindow time.Duration
	now          func() time.Time
	newKey       func(n int) (string, error)
}

func NewService(
	repo interfaces.DeviceRepository,
	photos interfaces.PhotoStore,
	authz *rbac.Authorizer,
	log *logger.Logger,
	cfg config.DeviceConfig,
) *Service {
	length := cfg.KeyLength
	if length < 1 {
		length = 8
	}
	window := cfg.OnlineWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Service{
		repo:         repo,
		photos:       photos,
		authz:        authz,
		log:          log.WithComponent("devices"),
		keyLength:    length,
		onlineWindow: window,
		now:          time.Now,
		newKey:       GenerateKey,
	}
}

// GenerateKey returns n characters drawn uniformly from [A-Za-z0-9].
func GenerateKey(n int) (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(keyAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// Create registers a device for owner under a fresh key.
func (s *Service) Create(ctx context.Context, owner string, req api_models.CreateDeviceRequest) (*panel_models.Device, error) {
	deviceType := strings.TrimSpace(req.Type)
	if deviceType == "" {
		return nil, ErrTypeRequired
	}

	for attempt := 0; attempt < keyAttempts; attempt++ {
		key, err := s.newKey(s.keyLength)
		if err != nil {
			return nil, fmt.Errorf("generate device key: %w", err)
		}
		device, err := s.repo.Create(ctx, panel_models.NewDevice(deviceType, strings.TrimSpace(req.Description), key, owner))
		if err == nil {
			s.log.Logger.Info().Int64("device_id", device.ID).Str("user_id", owner).Msg("Device registered")
			return device, nil
		}
		if !errors.Is(err, interfaces.ErrDuplicate) {
			return nil, err
		}
	}
	return nil, ErrKeysExhausted
}

// List returns the caller's devices, or every device for admins.
func (s *Service) List(ctx context.Context, userID, role string) ([]*panel_models.Device, error) {
	return s.repo.ListByUser(ctx, s.authz.OwnerFilter(userID, role))
}

// Get returns a device the caller may see.
func (s *Service) Get(ctx context.Context, id int64, userID, role string) (*panel_models.Device, error) {
	device, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireOwnerOrAdmin(userID, role, device.UserID); err != nil {
		return nil, err
	}
	return device, nil
}

func (s *Service) Delete(ctx context.Context, id int64, userID, role string) error {
	if _, err := s.Get(ctx, id, userID, role); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// SendCommand appends command to the queue of a device the caller may see.
func (s *Service) SendCommand(ctx context.Context, id int64, command json.RawMessage, userID, role string) error {
	if len(command) == 0 || !json.Valid(command) {
		return ErrInvalidCommand
	}
	if _, err := s.Get(ctx, id, userID, role); err != nil {
		return err
	}
	if err := s.repo.EnqueueCommand(ctx, id, command); err != nil {
		return err
	}
	s.log.Logger.Debug().Int64("device_id", id).Msg("Command queued")
	return nil
}

// Heartbeat marks the device with key online.
func (s *Service) Heartbeat(ctx context.Context, key, ip string) (*panel_models.Device, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	return s.repo.Heartbeat(ctx, key, ip, s.now().UTC())
}

// DrainCommands hands the queued commands to the device and clears them.
func (s *Service) DrainCommands(ctx context.Context, key string) ([]json.RawMessage, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	return s.repo.DrainCommands(ctx, key)
}

// Recent lists devices of the caller seen inside the online window.
func (s *Service) Recent(ctx context.Context, userID, role string) ([]panel_models.DeviceStatus, error) {
	devices, err := s.repo.ListSeenSince(ctx, s.authz.OwnerFilter(userID, role), s.now().UTC().Add(-s.onlineWindow))
	if err != nil {
		return nil, err
	}
	out := make([]panel_models.DeviceStatus, 0, len(devices))
	for _, d := range devices {
		status := panel_models.DeviceStatus{ID: d.ID, Type: d.Type, Status: d.Status}
		if d.LastSeen != nil {
			status.LastSeen = *d.LastSeen
		}
		out = append(out, status)
	}
	return out, nil
}

// DeviceByKey resolves the device a key belongs to.
func (s *Service) DeviceByKey(ctx context.Context, key string) (*panel_models.Device, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	return s.repo.GetByKey(ctx, key)
}

// SavePhoto stores a photo uploaded by the device with key. A stored photo
// counts as a sign of life, so the device is marked online from ip.
func (s *Service) SavePhoto(ctx context.Context, key, ip string, r io.Reader) (string, error) {
	if s.photos == nil {
		return "", ErrPhotoStoreUnset
	}
	device, err := s.DeviceByKey(ctx, key)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	name := fmt.Sprintf("device_%d_%s", device.ID, now.Format(photoTimeLayout))
	url, err := s.photos.Save(ctx, name, r)
	if err != nil {
		return "", err
	}
	if ip == "" {
		ip = device.IP
	}
	if _, err := s.repo.Heartbeat(ctx, key, ip, now); err != nil {
		return "", fmt.Errorf("mark device %d online: %w", device.ID, err)
	}
	s.log.Logger.Info().Int64("device_id", device.ID).Str("url", url).Msg("Photo stored")
	return url, nil
}
