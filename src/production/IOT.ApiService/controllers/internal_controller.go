package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	projects "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/projects"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/middleware"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
)

// InternalController handles internal API endpoints for service-to-service communication
type InternalController struct {
	projects *projects.Service
	secret   string
	logger   *logger.Logger
}

// NewInternalController creates a new internal controller
func NewInternalController(svc *projects.Service, secret string, logger *logger.Logger) *InternalController {
	return &InternalController{
		projects: svc,
		secret:   secret,
		logger:   logger.WithComponent("internal_controller"),
	}
}

// ReportResponse carries the control values back to the bridge
type ReportResponse struct {
	Control map[string]interface{} `json:"control,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// CreateReport applies input values relayed from MQTT
func (c *InternalController) CreateReport(ctx *gin.Context) {
	var req api_models.ReportRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ReportResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	control, err := c.projects.ReportInputs(ctx.Request.Context(), req.Project, req.Values, panel_models.SourceMQTT)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			c.logger.WithProject(req.Project).ErrorWithError(err, "Failed to apply relayed report")
		}
		_ = ctx.Error(err)
		ctx.JSON(status, ReportResponse{Error: errorMessage(status, err)})
		return
	}

	ctx.JSON(http.StatusOK, ReportResponse{Control: control})
}

// RegisterRoutes registers the internal API routes
func (c *InternalController) RegisterRoutes(router *gin.Engine) {
	internal := router.Group("/internal")
	internal.Use(middleware.ServiceAuthMiddleware(c.secret))

	internal.POST("/reports", c.CreateReport)
}
