package interfaces

import (
	"context"

	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
)

// PaginationResult represents a paginated result
type PaginationResult struct {
	Items    interface{} `json:"items"`
	NextPage *int        `json:"next_page,omitempty"`
	Total    int         `json:"total,omitempty"`
}

// UserRepository stores operator accounts. Lookups return ErrNotFound for
// unknown ids and Create returns ErrDuplicate for a taken username.
type UserRepository interface {
	Create(ctx context.Context, user *auth_models.User) (*auth_models.User, error)

	GetByID(ctx context.Context, userID string) (*auth_models.User, error)
	GetByUsername(ctx context.Context, username string) (*auth_models.User, error)
	List(ctx context.Context, page, pageSize int, role string) (*PaginationResult, error)
	CountByRole(ctx context.Context, role string) (int, error)

	Update(ctx context.Context, user *auth_models.User) error

	Delete(ctx context.Context, userID string, hardDelete bool) error
}
