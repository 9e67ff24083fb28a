package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	devices "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/devices"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/middleware"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
)

// DeviceController handles the device dashboard and the endpoints devices
// call with their key.
type DeviceController struct {
	devices        *devices.Service
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewDeviceController creates a new device controller
func NewDeviceController(svc *devices.Service, logger *logger.Logger, authMiddleware *middleware.AuthMiddleware) *DeviceController {
	return &DeviceController{
		devices:        svc,
		logger:         logger.WithComponent("device_controller"),
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the device routes with Gin
func (c *DeviceController) RegisterRoutes(router *gin.Engine) {
	dashboard := router.Group("/devices", c.authMiddleware.Authenticate())
	{
		dashboard.POST("", c.CreateDevice)
		dashboard.GET("", c.ListDevices)
		dashboard.GET("/:id", c.GetDevice)
		dashboard.DELETE("/:id", c.DeleteDevice)
	}

	session := router.Group("/api", c.authMiddleware.AuthenticateDevicePanel())
	{
		session.POST("/send_command", c.SendCommand)
		session.GET("/device/status", c.DeviceStatus)
	}

	// Authenticated by device key only
	router.POST("/api/device/heartbeat", c.Heartbeat)
	router.GET("/api/commands", c.GetCommands)
	router.POST("/api/upload_photo", c.UploadPhoto)
}

func (c *DeviceController) CreateDevice(ctx *gin.Context) {
	userID, err := middleware.GetUserFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req api_models.CreateDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := c.devices.Create(ctx.Request.Context(), userID, req)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusCreated, device)
}

func (c *DeviceController) ListDevices(ctx *gin.Context) {
	userID, role, err := middleware.GetIdentity(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	list, err := c.devices.List(ctx.Request.Context(), userID, role)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"devices": list, "total": len(list)})
}

func (c *DeviceController) GetDevice(ctx *gin.Context) {
	userID, role, err := middleware.GetIdentity(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	device, err := c.devices.Get(ctx.Request.Context(), id, userID, role)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, device)
}

func (c *DeviceController) DeleteDevice(ctx *gin.Context) {
	userID, role, err := middleware.GetIdentity(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	if err := c.devices.Delete(ctx.Request.Context(), id, userID, role); err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "device deleted successfully"})
}

// SendCommand queues a command for a device of the caller
func (c *DeviceController) SendCommand(ctx *gin.Context) {
	userID, role, err := middleware.GetIdentity(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Unauthorized"})
		return
	}
	var req api_models.SendCommandRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	if err := c.devices.SendCommand(ctx.Request.Context(), req.DeviceID, req.Command, userID, role); err != nil {
		respondDeviceError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "success"})
}

// DeviceStatus lists the caller's devices seen recently
func (c *DeviceController) DeviceStatus(ctx *gin.Context) {
	userID, role, err := middleware.GetIdentity(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Unauthorized"})
		return
	}

	statuses, err := c.devices.Recent(ctx.Request.Context(), userID, role)
	if err != nil {
		respondDeviceError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, statuses)
}

func (c *DeviceController) Heartbeat(ctx *gin.Context) {
	if _, err := c.devices.Heartbeat(ctx.Request.Context(), ctx.Query("key"), ctx.ClientIP()); err != nil {
		respondDeviceError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (c *DeviceController) GetCommands(ctx *gin.Context) {
	commands, err := c.devices.DrainCommands(ctx.Request.Context(), ctx.Query("key"))
	if err != nil {
		respondDeviceError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "success", "commands": commands})
}

func (c *DeviceController) UploadPhoto(ctx *gin.Context) {
	key := ctx.Query("key")
	if _, err := c.devices.DeviceByKey(ctx.Request.Context(), key); err != nil {
		respondDeviceError(ctx, c.logger, err)
		return
	}

	header, err := ctx.FormFile("photo")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "No photo uploaded"})
		return
	}
	if header.Filename == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Empty filename"})
		return
	}
	file, err := header.Open()
	if err != nil {
		respondDeviceError(ctx, c.logger, err)
		return
	}
	defer file.Close()

	url, err := c.devices.SavePhoto(ctx.Request.Context(), key, ctx.ClientIP(), file)
	if err != nil {
		respondDeviceError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "success", "photo_url": url})
}
