package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	devices "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/devices"
	projects "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/projects"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/health"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/middleware"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
)

// HealthController handles health and stats requests
type HealthController struct {
	checker        *health.HealthChecker
	projects       *projects.Service
	devices        *devices.Service
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHealthController creates a new health controller
func NewHealthController(checker *health.HealthChecker, projectSvc *projects.Service, deviceSvc *devices.Service, logger *logger.Logger, authMiddleware *middleware.AuthMiddleware) *HealthController {
	return &HealthController{
		checker:        checker,
		projects:       projectSvc,
		devices:        deviceSvc,
		logger:         logger,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)

	router.GET("/stats/summary", c.authMiddleware.Authenticate(), c.GetSummaryStats)
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	status, healthy := c.checker.GetHealthStatus(ctx.Request.Context())
	if !healthy {
		ctx.JSON(http.StatusServiceUnavailable, status)
		return
	}
	ctx.JSON(http.StatusOK, status)
}

// GetSummaryStats counts projects and the caller's devices
func (c *HealthController) GetSummaryStats(ctx *gin.Context) {
	userID, role, err := middleware.GetIdentity(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	projectList, err := c.projects.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	deviceList, err := c.devices.List(ctx.Request.Context(), userID, role)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	online, err := c.devices.Recent(ctx.Request.Context(), userID, role)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"projects":       len(projectList),
		"devices":        len(deviceList),
		"devices_online": len(online),
	})
}
