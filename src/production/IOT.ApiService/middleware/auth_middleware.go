package middleware

import (
	"errors"
	"net/http"
	"strings"

	jwt "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/jwt"
	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"

	"github.com/gin-gonic/gin"
)

// Key types for request context
type contextKey string

const (
	// Context keys
	UserIDContextKey      contextKey = "user_id"
	UserRoleContextKey    contextKey = "user_role"
	UsernameContextKey    contextKey = "username"
	TokenIDContextKey     contextKey = "token_id"
	AccessTokenContextKey contextKey = "access_token"
)

// AuthMiddleware provides middleware functions for authentication and authorization
type AuthMiddleware struct {
	jwtService  *jwt.Service
	rbacService *rbac.Service
	config      Config
}

// Config holds middleware configuration
type Config struct {
	// HTTP header names for tokens
	AccessTokenHeader string

	// Cookie names for tokens; the browser panel authenticates this way
	AccessTokenCookie  string
	RefreshTokenCookie string
}

// DefaultConfig returns a default middleware configuration
func DefaultConfig() Config {
	return Config{
		AccessTokenHeader:  "Authorization",
		AccessTokenCookie:  "access_token",
		RefreshTokenCookie: "refresh_token",
	}
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtService *jwt.Service, rbacService *rbac.Service, config Config) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService:  jwtService,
		rbacService: rbacService,
		config:      config,
	}
}

// Config returns the token locations in use.
func (m *AuthMiddleware) Config() Config { return m.config }

// extractToken gets a token from either header or cookie
func extractToken(r *http.Request, headerName, cookieName string) string {
	token := r.Header.Get(headerName)
	if token != "" {
		if strings.HasPrefix(token, "Bearer ") {
			return strings.TrimPrefix(token, "Bearer ")
		}
		return token
	}

	if cookieName != "" {
		cookie, err := r.Cookie(cookieName)
		if err == nil {
			return cookie.Value
		}
	}

	return ""
}

// Authenticate middleware verifies access token
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return m.authenticate(func(c *gin.Context, msg string) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
	})
}

// AuthenticateDevicePanel verifies the access token like Authenticate but
// rejects with the {"status":"error","message":"Unauthorized"} envelope the
// device dashboard endpoints use.
func (m *AuthMiddleware) AuthenticateDevicePanel() gin.HandlerFunc {
	return m.authenticate(func(c *gin.Context, _ string) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Unauthorized"})
	})
}

func (m *AuthMiddleware) authenticate(reject func(c *gin.Context, msg string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := extractToken(c.Request, m.config.AccessTokenHeader, m.config.AccessTokenCookie)
		if accessToken == "" {
			reject(c, "Authentication required")
			return
		}

		accessClaims, err := m.jwtService.ValidateAccessToken(accessToken)
		if err != nil {
			reject(c, "Invalid access token")
			return
		}

		c.Set(string(UserIDContextKey), accessClaims.UserID)
		c.Set(string(UserRoleContextKey), accessClaims.Role)
		c.Set(string(UsernameContextKey), accessClaims.Username)
		c.Set(string(TokenIDContextKey), accessClaims.TokenID)
		c.Set(string(AccessTokenContextKey), accessToken)

		c.Next()
	}
}

// RequireAdmin ensures the authenticated user has the admin role. It must
// run after Authenticate.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetRoleFromGinContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !m.rbacService.IsAdmin(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// GetUserFromGinContext retrieves user ID from Gin context
func GetUserFromGinContext(c *gin.Context) (string, error) {
	userIDVal, exists := c.Get(string(UserIDContextKey))
	if !exists {
		return "", errors.New("user not found in context")
	}

	userID, ok := userIDVal.(string)
	if !ok || userID == "" {
		return "", errors.New("invalid user ID format in context")
	}

	return userID, nil
}

// GetRoleFromGinContext retrieves user role from Gin context
func GetRoleFromGinContext(c *gin.Context) (string, error) {
	roleVal, exists := c.Get(string(UserRoleContextKey))
	if !exists {
		return "", errors.New("role not found in context")
	}

	role, ok := roleVal.(string)
	if !ok || role == "" {
		return "", errors.New("invalid role format in context")
	}

	return role, nil
}

// GetIdentity returns user ID and role set by Authenticate.
func GetIdentity(c *gin.Context) (userID, role string, err error) {
	if userID, err = GetUserFromGinContext(c); err != nil {
		return "", "", err
	}
	if role, err = GetRoleFromGinContext(c); err != nil {
		return "", "", err
	}
	return userID, role, nil
}
