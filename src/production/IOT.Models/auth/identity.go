package auth_models

import (
	"time"
)

// Role names known to the panel.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an operator account. Devices and projects are managed by users.
type User struct {
	UserID    string     `json:"user_id" db:"user_id"`
	Username  string     `json:"username" db:"username"`
	Email     string     `json:"email" db:"email"`
	Password  string     `json:"-" db:"password"` // bcrypt hash
	Role      string     `json:"role" db:"role"`
	Active    bool       `json:"active" db:"active"`
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// NewUser builds an active account; hashedPassword must already be hashed.
func NewUser(username, email, hashedPassword, role string) *User {
	now := time.Now().UTC()
	return &User{
		Username:  username,
		Email:     email,
		Password:  hashedPassword,
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin reports whether the account may manage every device and user.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Role is a row of the roles table
type Role struct {
	RoleID      string    `json:"role_id" db:"role_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// PredefinedRoles are seeded at startup.
func PredefinedRoles() []Role {
	return []Role{
		{Name: RoleAdmin, Description: "Operator with access to every project, device and account"},
		{Name: RoleUser, Description: "Operator managing their own devices and the shared projects"},
	}
}
