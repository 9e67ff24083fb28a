package controllers

import (
	"net/http"
	"strconv"

	service "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/auth"
	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/middleware"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"

	"github.com/gin-gonic/gin"
)

// UserController handles user management requests
type UserController struct {
	userService *service.UserService
	authorizer  *rbac.Authorizer
	logger      *logger.Logger
}

// NewUserController creates a new user controller
func NewUserController(userService *service.UserService, authorizer *rbac.Authorizer, logger *logger.Logger) *UserController {
	return &UserController{
		userService: userService,
		authorizer:  authorizer,
		logger:      logger,
	}
}

// RegisterRoutes registers the user routes with Gin
func (h *UserController) RegisterRoutes(router *gin.Engine, authMiddleware *middleware.AuthMiddleware) {
	users := router.Group("/api/users", authMiddleware.Authenticate())
	{
		users.GET("", authMiddleware.RequireAdmin(), h.GetAllUsers)
		users.GET("/:id", h.GetUserByID)
		users.PUT("/:id", authMiddleware.RequireAdmin(), h.UpdateUser)
		users.DELETE("/:id", authMiddleware.RequireAdmin(), h.DeleteUser)
	}
}

// GetAllUsers pages through accounts, optionally filtered by ?role=
func (h *UserController) GetAllUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.userService.ListUsers(c.Request.Context(), page, pageSize, c.Query("role"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUserByID returns an account to its owner or an admin
func (h *UserController) GetUserByID(c *gin.Context) {
	currentUserID, role, err := middleware.GetIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID := c.Param("id")
	if err := h.authorizer.RequireOwnerOrAdmin(currentUserID, role, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateUser changes email, role or active flag of an account
func (h *UserController) UpdateUser(c *gin.Context) {
	var req api_models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// DeleteUser deletes a user (hard delete)
func (h *UserController) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user deleted successfully"})
}
