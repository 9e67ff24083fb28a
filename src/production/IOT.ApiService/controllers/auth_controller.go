package controllers

import (
	"net/http"
	"time"

	service "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/auth"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/middleware"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"

	"github.com/gin-gonic/gin"
)

// SessionCookies describes the cookies the browser panel authenticates with
type SessionCookies struct {
	AccessName      string
	RefreshName     string
	AccessDuration  time.Duration
	RefreshDuration time.Duration
	Secure          bool
}

// AuthController handles authentication requests
type AuthController struct {
	authService *service.AuthService
	cookies     SessionCookies
	logger      *logger.Logger
}

// NewAuthController creates a new auth controller
func NewAuthController(authService *service.AuthService, cookies SessionCookies, logger *logger.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		cookies:     cookies,
		logger:      logger,
	}
}

func userView(user *auth_models.User) gin.H {
	return gin.H{
		"id":       user.UserID,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	}
}

func (h *AuthController) register(c *gin.Context, role string) {
	var req api_models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Role = role

	user, err := h.authService.Register(c.Request.Context(), req, role != auth_models.RoleUser)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, userView(user))
}

// Register handles user registration. Self-registered accounts always get
// the user role.
func (h *AuthController) Register(c *gin.Context) {
	h.register(c, auth_models.RoleUser)
}

// RegisterAdmin handles admin user registration
func (h *AuthController) RegisterAdmin(c *gin.Context) {
	h.register(c, auth_models.RoleAdmin)
}

func (h *AuthController) setSession(c *gin.Context, pair api_models.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookies.AccessName, pair.AccessToken, int(h.cookies.AccessDuration.Seconds()), "/", "", h.cookies.Secure, true)
	c.SetCookie(h.cookies.RefreshName, pair.RefreshToken, int(h.cookies.RefreshDuration.Seconds()), "/", "", h.cookies.Secure, true)
}

// Login handles user login
func (h *AuthController) Login(c *gin.Context) {
	var req api_models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setSession(c, response.Tokens)
	c.JSON(http.StatusOK, response)
}

// RefreshTokens exchanges the refresh token from the cookie or the body
func (h *AuthController) RefreshTokens(c *gin.Context) {
	refreshToken, err := c.Cookie(h.cookies.RefreshName)
	if err != nil || refreshToken == "" {
		var req api_models.RefreshRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil || req.RefreshToken == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token not found"})
			return
		}
		refreshToken = req.RefreshToken
	}

	response, err := h.authService.RefreshTokens(c.Request.Context(), refreshToken)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setSession(c, response.Tokens)
	c.JSON(http.StatusOK, response)
}

// Logout clears both session cookies
func (h *AuthController) Logout(c *gin.Context) {
	c.SetCookie(h.cookies.AccessName, "", -1, "/", "", h.cookies.Secure, true)
	c.SetCookie(h.cookies.RefreshName, "", -1, "/", "", h.cookies.Secure, true)

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Profile retrieves the authenticated user's profile
func (h *AuthController) Profile(c *gin.Context) {
	userID, err := middleware.GetUserFromGinContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles updating the authenticated user's profile
func (h *AuthController) UpdateProfile(c *gin.Context) {
	userID, err := middleware.GetUserFromGinContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req api_models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Email == nil && req.Password == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// RegisterRoutes registers the auth routes with Gin
func (h *AuthController) RegisterRoutes(router *gin.Engine, authMiddleware *middleware.AuthMiddleware) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.RefreshTokens)
		auth.POST("/logout", h.Logout)
	}

	protected := auth.Group("", authMiddleware.Authenticate())
	{
		protected.GET("/profile", h.Profile)
		protected.PATCH("/profile", h.UpdateProfile)
	}

	adminOnly := auth.Group("", authMiddleware.Authenticate(), authMiddleware.RequireAdmin())
	{
		adminOnly.POST("/register/admin", h.RegisterAdmin)
	}
}
