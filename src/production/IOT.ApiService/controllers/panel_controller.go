package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	projects "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/projects"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	properties "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Properties"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
)

// PanelController is the device-facing property exchange: a device reports
// its inputs in the query string and gets the control values back.
type PanelController struct {
	projects *projects.Service
	logger   *logger.Logger
}

func NewPanelController(svc *projects.Service, logger *logger.Logger) *PanelController {
	return &PanelController{projects: svc, logger: logger.WithComponent("panel_controller")}
}

func (c *PanelController) RegisterRoutes(router *gin.Engine) {
	router.GET("/api", c.Exchange)
}

// Exchange handles GET /api?project=<name>&<input>=<value>...
func (c *PanelController) Exchange(ctx *gin.Context) {
	query := ctx.Request.URL.Query()
	name := query.Get("project")
	if name == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Bad request, project name has not found"})
		return
	}

	values := make(map[string]string, len(query))
	for key, vals := range query {
		if key == "project" || len(vals) == 0 {
			continue
		}
		values[key] = vals[0]
	}

	control, err := c.projects.ReportInputs(ctx.Request.Context(), name, values, panel_models.SourceHTTP)
	if err != nil {
		c.respondExchangeError(ctx, name, err)
		return
	}
	ctx.JSON(http.StatusOK, control)
}

// respondExchangeError keeps device replies generic; the offending field
// only goes to the log.
func (c *PanelController) respondExchangeError(ctx *gin.Context, project string, err error) {
	log := c.logger.WithProject(project)
	var decodeErr *properties.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		respondError(ctx, log, err)
	case errors.Is(err, properties.ErrInvalidValue):
		log.Logger.Warn().Err(err).Msg("Rejected input report")
		_ = ctx.Error(err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Bad request"})
	case errors.Is(err, interfaces.ErrNotFound):
		_ = ctx.Error(err)
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		respondError(ctx, log, err)
	}
}
