package auth

import (
	"context"
	"errors"

	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

// ErrLastAdmin is returned when a change would leave no active admin.
var ErrLastAdmin = errors.New("cannot remove the last active admin")

// UserService provides admin user management operations
type UserService struct {
	userRepo    interfaces.UserRepository
	rbacService *rbac.Service
}

// NewUserService creates a new user service
func NewUserService(userRepo interfaces.UserRepository, rbacService *rbac.Service) *UserService {
	return &UserService{userRepo: userRepo, rbacService: rbacService}
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id string) (*auth_models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ListUsers pages through accounts, optionally filtered by role.
func (s *UserService) ListUsers(ctx context.Context, page, pageSize int, role string) (*interfaces.PaginationResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.userRepo.List(ctx, page, pageSize, role)
}

// UpdateUser applies an admin edit to an account.
func (s *UserService) UpdateUser(ctx context.Context, userID string, req api_models.UpdateUserRequest) (*auth_models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	demoting := user.IsAdmin() && user.Active &&
		((req.Role != nil && *req.Role != auth_models.RoleAdmin) || (req.Active != nil && !*req.Active))
	if demoting {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		if !s.rbacService.IsValidRole(*req.Role) {
			return nil, ErrInvalidRole
		}
		user.Role = *req.Role
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes an account for good.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsAdmin() && user.Active {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}
	return s.userRepo.Delete(ctx, userID, true)
}

func (s *UserService) ensureAnotherAdmin(ctx context.Context) error {
	n, err := s.userRepo.CountByRole(ctx, auth_models.RoleAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return ErrLastAdmin
	}
	return nil
}
