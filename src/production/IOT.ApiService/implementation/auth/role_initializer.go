package auth

import (
	"context"
	"errors"
	"fmt"

	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

// RoleInitializerService seeds roles and the first admin account
type RoleInitializerService struct {
	roleRepo    interfaces.RoleRepository
	userRepo    interfaces.UserRepository
	rbacService *rbac.Service
	logger      *logger.Logger
	adminConfig config.AdminConfig
}

// NewRoleInitializerService creates a new role initializer service
func NewRoleInitializerService(
	roleRepo interfaces.RoleRepository,
	userRepo interfaces.UserRepository,
	rbacService *rbac.Service,
	logger *logger.Logger,
	adminConfig config.AdminConfig,
) *RoleInitializerService {
	return &RoleInitializerService{
		roleRepo:    roleRepo,
		userRepo:    userRepo,
		rbacService: rbacService,
		logger:      logger.WithComponent("role_initializer"),
		adminConfig: adminConfig,
	}
}

// InitializeRoles upserts the predefined roles and loads every stored role
// into the RBAC service.
func (s *RoleInitializerService) InitializeRoles(ctx context.Context) error {
	for _, r := range auth_models.PredefinedRoles() {
		role := r
		if _, err := s.roleRepo.Create(ctx, &role); err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}

	roles, err := s.roleRepo.FindAll(ctx)
	if err != nil {
		return err
	}
	for _, role := range roles {
		s.rbacService.AddRole(role.Name)
	}
	s.logger.Logger.Info().Int("count", len(roles)).Msg("Roles loaded")
	return nil
}

// InitializeAdminUser creates the configured admin when no active admin
// exists.
func (s *RoleInitializerService) InitializeAdminUser(ctx context.Context) error {
	n, err := s.userRepo.CountByRole(ctx, auth_models.RoleAdmin)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Logger.Info().Int("count", n).Msg("Admin users already exist, skipping admin user creation")
		return nil
	}

	hashed, err := HashPassword(s.adminConfig.Password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := auth_models.NewUser(s.adminConfig.Username, s.adminConfig.Email, hashed, auth_models.RoleAdmin)
	if _, err := s.userRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, interfaces.ErrDuplicate) {
			s.logger.Logger.Warn().Str("username", s.adminConfig.Username).
				Msg("Configured admin username is taken by a non-admin account")
			return nil
		}
		return err
	}

	s.logger.Logger.Info().Str("username", s.adminConfig.Username).Msg("Admin user created with configured credentials")
	s.logger.Logger.Warn().Msg("IMPORTANT: Change the admin password after first login")
	return nil
}
