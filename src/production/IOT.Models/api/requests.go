package api_models

import "encoding/json"

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpdateProfileRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type UpdateUserRequest struct {
	Email  *string `json:"email"`
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

type AuthResponse struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	Tokens   TokenPair `json:"tokens"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=200"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=200"`
}

type AddPropertyRequest struct {
	Namespace string `json:"namespace" binding:"required"`
	Name      string `json:"name" binding:"required,max=50"`
	Type      string `json:"type" binding:"required"`
}

type CreateDeviceRequest struct {
	Type        string `json:"type" binding:"required,max=50"`
	Description string `json:"description" binding:"max=200"`
}

// SendCommandRequest enqueues command for the device. The command is
// opaque and delivered to the device verbatim.
type SendCommandRequest struct {
	DeviceID int64           `json:"device_id" binding:"required"`
	Command  json.RawMessage `json:"command" binding:"required"`
}

// ReportRequest is posted by the MQTT bridge on behalf of a device.
type ReportRequest struct {
	Project string            `json:"project" binding:"required"`
	Values  map[string]string `json:"values"`
}
