package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	jwt "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/jwt"
	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
	implementation "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Implementation"
)

var testAuthConfig = config.AuthConfig{
	JWTSecretKey:               "auth-secret",
	JWTIssuer:                  "iot-panel",
	AccessTokenDuration:        15 * time.Minute,
	RefreshTokenDuration:       time.Hour,
	PasswordMinLength:          8,
	PasswordRequireSpecialChar: false,
	Admin:                      config.AdminConfig{Username: "admin", Email: "admin@example.com", Password: "admin12345"},
}

type authFixture struct {
	users *implementation.MemoryUserRepository
	auth  *AuthService
	admin *UserService
	rbac  *rbac.Service
}

func newAuthFixture() *authFixture {
	users := implementation.NewMemoryUserRepository()
	rbacService := rbac.NewService()
	return &authFixture{
		users: users,
		auth:  NewAuthService(users, jwt.NewService(testAuthConfig), rbacService, testAuthConfig),
		admin: NewUserService(users, rbacService),
		rbac:  rbacService,
	}
}

func register(t *testing.T, f *authFixture, username, role string) *auth_models.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), api_models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
		Role:     role,
	}, role != "")
	require.NoError(t, err)
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	u := register(t, f, "operator", "")
	assert.Equal(t, auth_models.RoleUser, u.Role)
	assert.NotEqual(t, "password123", u.Password)

	resp, err := f.auth.Login(ctx, api_models.LoginRequest{Username: "operator", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, u.UserID, resp.UserID)
	assert.NotEmpty(t, resp.Tokens.AccessToken)

	stored, err := f.users.GetByID(ctx, u.UserID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	refreshed, err := f.auth.RefreshTokens(ctx, resp.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "operator", refreshed.Username)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	u := register(t, f, "operator", "")

	_, err := f.auth.Login(ctx, api_models.LoginRequest{Username: "operator", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, api_models.LoginRequest{Username: "nobody", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	u.Active = false
	require.NoError(t, f.users.Update(ctx, u))
	_, err = f.auth.Login(ctx, api_models.LoginRequest{Username: "operator", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	_, err := f.auth.Register(ctx, api_models.RegisterRequest{Username: "  ", Password: "password123"}, false)
	assert.ErrorIs(t, err, ErrUsernameRequired)

	_, err = f.auth.Register(ctx, api_models.RegisterRequest{Username: "short", Password: "abc"}, false)
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = f.auth.Register(ctx, api_models.RegisterRequest{Username: "x", Password: "password123", Role: "root"}, true)
	assert.ErrorIs(t, err, ErrInvalidRole)

	register(t, f, "operator", "")
	_, err = f.auth.Register(ctx, api_models.RegisterRequest{Username: "operator", Password: "password123"}, false)
	assert.ErrorIs(t, err, interfaces.ErrDuplicate)
}

func TestRegisterIgnoresRoleWithoutPermission(t *testing.T) {
	f := newAuthFixture()
	u, err := f.auth.Register(context.Background(), api_models.RegisterRequest{
		Username: "sneaky",
		Password: "password123",
		Role:     auth_models.RoleAdmin,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, auth_models.RoleUser, u.Role)
}

func TestSpecialCharPolicy(t *testing.T) {
	cfg := testAuthConfig
	cfg.PasswordRequireSpecialChar = true
	svc := NewAuthService(implementation.NewMemoryUserRepository(), jwt.NewService(cfg), rbac.NewService(), cfg)

	assert.ErrorIs(t, svc.ValidatePassword("password123"), ErrWeakPassword)
	assert.NoError(t, svc.ValidatePassword("password-123"))
}

func TestLastAdminIsProtected(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	admin := register(t, f, "root", auth_models.RoleAdmin)

	demote := auth_models.RoleUser
	_, err := f.admin.UpdateUser(ctx, admin.UserID, api_models.UpdateUserRequest{Role: &demote})
	assert.ErrorIs(t, err, ErrLastAdmin)
	assert.ErrorIs(t, f.admin.DeleteUser(ctx, admin.UserID), ErrLastAdmin)

	second := register(t, f, "root2", auth_models.RoleAdmin)
	_, err = f.admin.UpdateUser(ctx, admin.UserID, api_models.UpdateUserRequest{Role: &demote})
	require.NoError(t, err)
	assert.ErrorIs(t, f.admin.DeleteUser(ctx, second.UserID), ErrLastAdmin)
}

func TestRoleInitializerSeedsOnce(t *testing.T) {
	ctx := context.Background()
	users := implementation.NewMemoryUserRepository()
	roles := implementation.NewMemoryRoleRepository()
	seeder := NewRoleInitializerService(roles, users, rbac.NewService(), logger.Nop(), testAuthConfig.Admin)

	require.NoError(t, seeder.InitializeRoles(ctx))
	require.NoError(t, seeder.InitializeAdminUser(ctx))
	require.NoError(t, seeder.InitializeAdminUser(ctx))

	all, err := roles.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(auth_models.PredefinedRoles()))

	n, err := users.CountByRole(ctx, auth_models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	admin, err := users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
}
