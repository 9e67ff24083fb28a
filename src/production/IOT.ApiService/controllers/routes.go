package controllers

import (
	"github.com/gin-gonic/gin"
	service "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/auth"
	devices "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/devices"
	projects "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/projects"
	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/health"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/middleware"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
)

// Dependencies are the services the HTTP surface is built from.
type Dependencies struct {
	Auth           *service.AuthService
	Users          *service.UserService
	Authorizer     *rbac.Authorizer
	Projects       *projects.Service
	Devices        *devices.Service
	Health         *health.HealthChecker
	AuthMiddleware *middleware.AuthMiddleware
	Cookies        SessionCookies
	InternalSecret string
	Logger         *logger.Logger
}

// RegisterAll creates every controller and registers its routes.
func RegisterAll(router *gin.Engine, deps Dependencies) {
	NewAuthController(deps.Auth, deps.Cookies, deps.Logger).RegisterRoutes(router, deps.AuthMiddleware)
	NewUserController(deps.Users, deps.Authorizer, deps.Logger).RegisterRoutes(router, deps.AuthMiddleware)
	NewPanelController(deps.Projects, deps.Logger).RegisterRoutes(router)
	NewProjectController(deps.Projects, deps.Logger, deps.AuthMiddleware).RegisterRoutes(router)
	NewDeviceController(deps.Devices, deps.Logger, deps.AuthMiddleware).RegisterRoutes(router)
	NewHealthController(deps.Health, deps.Projects, deps.Devices, deps.Logger, deps.AuthMiddleware).RegisterRoutes(router)
	NewInternalController(deps.Projects, deps.InternalSecret, deps.Logger).RegisterRoutes(router)
}
