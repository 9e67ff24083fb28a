package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	jwt "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/jwt"
	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUsernameRequired   = errors.New("username is required")
)

// AuthService aggregates auth operations
type AuthService struct {
	userRepo    interfaces.UserRepository
	jwtService  *jwt.Service
	rbacService *rbac.Service
	policy      config.AuthConfig
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo interfaces.UserRepository,
	jwtService *jwt.Service,
	rbacService *rbac.Service,
	policy config.AuthConfig,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		jwtService:  jwtService,
		rbacService: rbacService,
		policy:      policy,
	}
}

// ValidatePassword applies the configured password policy.
func (s *AuthService) ValidatePassword(password string) error {
	if len(password) < s.policy.PasswordMinLength {
		return fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, s.policy.PasswordMinLength)
	}
	if s.policy.PasswordRequireSpecialChar && strings.IndexFunc(password, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) < 0 {
		return fmt.Errorf("%w: a special character is required", ErrWeakPassword)
	}
	return nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// Register creates an account. Only callers with allowRole may pick a role
// other than the default "user".
func (s *AuthService) Register(ctx context.Context, req api_models.RegisterRequest, allowRole bool) (*auth_models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return nil, ErrUsernameRequired
	}
	if err := s.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	role := auth_models.RoleUser
	if req.Role != "" && allowRole {
		if !s.rbacService.IsValidRole(req.Role) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
		}
		role = req.Role
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := auth_models.NewUser(req.Username, req.Email, hashed, role)
	return s.userRepo.Create(ctx, user)
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, req api_models.LoginRequest) (*api_models.AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	tokenPair, err := s.jwtService.GenerateTokens(user)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user.LastLogin = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	return authResponse(user, tokenPair), nil
}

// RefreshTokens exchanges a refresh token for a new token pair
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*api_models.AuthResponse, error) {
	tokenPair, user, err := s.jwtService.RefreshTokens(ctx, refreshToken, s.userRepo)
	if err != nil {
		return nil, err
	}
	return authResponse(user, tokenPair), nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*auth_models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// UpdateProfile lets a user change their own email and password.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req api_models.UpdateProfileRequest) (*auth_models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Password != nil {
		if err := s.ValidatePassword(*req.Password); err != nil {
			return nil, err
		}
		if user.Password, err = HashPassword(*req.Password); err != nil {
			return nil, err
		}
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func authResponse(user *auth_models.User, pair *api_models.TokenPair) *api_models.AuthResponse {
	return &api_models.AuthResponse{
		UserID:   user.UserID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		Tokens:   *pair,
	}
}
