package interfaces

import (
	"context"

	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
)

type RoleRepository interface {
	// Create inserts the role or refreshes the description of an existing
	// role with the same name.
	Create(ctx context.Context, role *auth_models.Role) (*auth_models.Role, error)

	FindByName(ctx context.Context, name string) (*auth_models.Role, error)
	FindAll(ctx context.Context) ([]*auth_models.Role, error)
}
