package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/controllers"
	authService "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/auth"
	devices "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/devices"
	jwt "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/jwt"
	projects "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/projects"
	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"
	authMiddleware "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/middleware"
	container "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Container"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	config := ctr.GetConfig()
	logger.Logger.Info().Str("storage", config.Storage.Driver).Msg("Starting API Service")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize storage")
	}

	repos, err := ctr.GetRepositories()
	if err != nil {
		logger.FatalWithError(err, "Failed to create repositories")
	}

	var notifier projects.ControlNotifier
	publisher, err := ctr.GetPublisher()
	if err != nil {
		logger.FatalWithError(err, "Failed to connect to MQTT broker")
	}
	if publisher != nil {
		notifier = publisher
	} else {
		logger.Info("MQTT disabled, control changes are not published")
	}

	// Auth stack
	jwtService := jwt.NewService(config.Auth)
	rbacService := rbac.NewService()
	authorizer := rbac.NewAuthorizer(rbacService)
	middlewareInstance := authMiddleware.NewAuthMiddleware(jwtService, rbacService, authMiddleware.DefaultConfig())

	authServiceInstance := authService.NewAuthService(repos.Users, jwtService, rbacService, config.Auth)
	userServiceInstance := authService.NewUserService(repos.Users, rbacService)

	roleInitializer := authService.NewRoleInitializerService(repos.Roles, repos.Users, rbacService, logger, config.Auth.Admin)
	if err := roleInitializer.InitializeRoles(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize roles")
	}
	if err := roleInitializer.InitializeAdminUser(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize admin user")
	}

	// Panel services
	projectService := projects.NewService(repos.Projects, repos.Reports, notifier, logger, config.Properties)
	deviceService := devices.NewService(repos.Devices, repos.Photos, authorizer, logger, config.Devices)

	gin.SetMode(config.Server.GinMode)
	router := gin.New()
	router.Use(authMiddleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = config.Storage.MaxUploadBytes

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))
	router.Static(config.Storage.UploadURL, config.Storage.UploadDir)

	controllers.RegisterAll(router, controllers.Dependencies{
		Auth:           authServiceInstance,
		Users:          userServiceInstance,
		Authorizer:     authorizer,
		Projects:       projectService,
		Devices:        deviceService,
		Health:         ctr.GetHealthChecker(),
		AuthMiddleware: middlewareInstance,
		Cookies: controllers.SessionCookies{
			AccessName:      middlewareInstance.Config().AccessTokenCookie,
			RefreshName:     middlewareInstance.Config().RefreshTokenCookie,
			AccessDuration:  config.Auth.AccessTokenDuration,
			RefreshDuration: config.Auth.RefreshTokenDuration,
			Secure:          config.Auth.SecureCookies,
		},
		InternalSecret: config.InternalAPISecret,
		Logger:         logger,
	})

	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
