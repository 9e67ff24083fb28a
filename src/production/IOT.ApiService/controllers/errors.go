package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	auth "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/auth"
	devices "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/devices"
	jwt "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/jwt"
	projects "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/projects"
	rbac "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/rbac"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	properties "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Properties"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

var badRequestErrors = []error{
	properties.ErrInvalidValue,
	properties.ErrUnknownType,
	properties.ErrUnknownNamespace,
	properties.ErrMissingField,
	projects.ErrProjectRequired,
	projects.ErrInvalidName,
	devices.ErrKeyRequired,
	devices.ErrInvalidCommand,
	devices.ErrTypeRequired,
	interfaces.ErrUnsupportedMedia,
	auth.ErrWeakPassword,
	auth.ErrInvalidRole,
	auth.ErrUsernameRequired,
}

// statusFor maps service and repository errors to HTTP status codes.
func statusFor(err error) int {
	var decodeErr *properties.DecodeError
	if errors.As(err, &decodeErr) {
		// stored data no longer decodes; not the caller's fault
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrDuplicate),
		errors.Is(err, interfaces.ErrVersionConflict),
		errors.Is(err, auth.ErrLastAdmin):
		return http.StatusConflict
	case errors.Is(err, rbac.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, jwt.ErrInvalidRefreshToken),
		errors.Is(err, jwt.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, devices.ErrPhotoStoreUnset):
		return http.StatusServiceUnavailable
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// errorMessage hides internal details of server errors.
func errorMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}

// respondError writes {"error": ...} and logs server errors.
func respondError(ctx *gin.Context, log *logger.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Logger.Error().Err(err).Str("path", ctx.FullPath()).Msg("Request failed")
	}
	_ = ctx.Error(err)
	ctx.JSON(status, gin.H{"error": errorMessage(status, err)})
}

// respondDeviceError writes the {"status":"error","message":...} envelope
// used by device-facing endpoints.
func respondDeviceError(ctx *gin.Context, log *logger.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Logger.Error().Err(err).Str("path", ctx.FullPath()).Msg("Device request failed")
	}
	message := errorMessage(status, err)
	if status == http.StatusNotFound {
		message = "Device not found"
	}
	_ = ctx.Error(err)
	ctx.JSON(status, gin.H{"status": "error", "message": message})
}

func paramID(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id < 1 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
