// Command IOT.Startup prepares storage for the panel: it applies the
// schema, creates report indexes, seeds roles and the first admin, then
// exits. Run it before rolling out a new API service version.
package main

import (
	"context"
	"fmt"
	"time"

	authService "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/auth"
	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"
	container "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Container"
)

func main() {
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	config := ctr.GetConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize storage")
	}

	repos, err := ctr.GetRepositories()
	if err != nil {
		logger.FatalWithError(err, "Failed to create repositories")
	}

	roles := authService.NewRoleInitializerService(repos.Roles, repos.Users, rbac.NewService(), logger, config.Auth.Admin)
	if err := roles.InitializeRoles(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize roles")
	}
	if err := roles.InitializeAdminUser(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize admin user")
	}

	status, healthy := ctr.GetHealthChecker().GetHealthStatus(ctx)
	if !healthy {
		logger.Logger.Fatal().Interface("health", status).Msg("Storage is not healthy after startup")
	}
	logger.Logger.Info().Str("driver", config.Storage.Driver).Msg("Storage ready")
}
