package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// Service provides JWT operations
type Service struct {
	secret          []byte
	issuer          string
	accessDuration  time.Duration
	refreshDuration time.Duration
	now             func() time.Time
}

// NewService creates a new JWT service
func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		secret:          []byte(cfg.JWTSecretKey),
		issuer:          cfg.JWTIssuer,
		accessDuration:  cfg.AccessTokenDuration,
		refreshDuration: cfg.RefreshTokenDuration,
		now:             time.Now,
	}
}

// AccessDuration is how long an access token stays valid.
func (s *Service) AccessDuration() time.Duration { return s.accessDuration }

// RefreshDuration is how long a refresh token stays valid.
func (s *Service) RefreshDuration() time.Duration { return s.refreshDuration }

// GenerateTokens creates a new set of tokens: access and refresh
func (s *Service) GenerateTokens(user *auth_models.User) (*api_models.TokenPair, error) {
	tokenID := uuid.New().String()
	now := s.now()
	expiresAt := now.Add(s.accessDuration)

	accessClaims := api_models.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
		UserID:   user.UserID,
		Username: user.Username,
		Role:     user.Role,
		TokenID:  tokenID,
	}

	refreshClaims := api_models.RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{"refresh"},
		},
		UserID:  user.UserID,
		TokenID: tokenID,
	}

	accessTokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	refreshTokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	return &api_models.TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		TokenID:      tokenID,
		ExpiresAt:    expiresAt.Unix(),
	}, nil
}

func (s *Service) keyFunc(token *jwt.Token) (interface{}, error) {
	return s.secret, nil
}

func (s *Service) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	}
}

// ValidateAccessToken validates an access token and returns the claims.
// Refresh tokens are rejected.
func (s *Service) ValidateAccessToken(tokenString string) (*api_models.AccessClaims, error) {
	claims := &api_models.AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc, s.parserOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefreshToken validates a refresh token and returns the claims
func (s *Service) ValidateRefreshToken(tokenString string) (*api_models.RefreshClaims, error) {
	claims := &api_models.RefreshClaims{}
	opts := append(s.parserOptions(), jwt.WithAudience("refresh"))
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc, opts...)
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidRefreshToken
	}
	return claims, nil
}

// RefreshTokens issues a new pair for the still active owner of a refresh
// token.
func (s *Service) RefreshTokens(ctx context.Context, refreshTokenString string, userRepo interfaces.UserRepository) (*api_models.TokenPair, *auth_models.User, error) {
	refreshClaims, err := s.ValidateRefreshToken(refreshTokenString)
	if err != nil {
		return nil, nil, err
	}

	user, err := userRepo.GetByID(ctx, refreshClaims.UserID)
	if err != nil || !user.Active {
		return nil, nil, ErrInvalidRefreshToken
	}

	pair, err := s.GenerateTokens(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate new tokens: %w", err)
	}
	return pair, user, nil
}
