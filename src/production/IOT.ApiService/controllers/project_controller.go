package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	projects "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/implementation/projects"
	"gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.ApiService/middleware"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	properties "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Properties"
)

// ProjectController serves the operator side of the property panel
type ProjectController struct {
	projects       *projects.Service
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
}

func NewProjectController(svc *projects.Service, logger *logger.Logger, authMiddleware *middleware.AuthMiddleware) *ProjectController {
	return &ProjectController{
		projects:       svc,
		logger:         logger.WithComponent("project_controller"),
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the project routes with Gin
func (c *ProjectController) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/projects", c.authMiddleware.Authenticate())
	{
		group.GET("", c.ListProjects)
		group.GET("/:id", c.GetProject)
		group.GET("/:id/control", c.GetControl)
		group.POST("/:id/control", c.ApplyControl)
		group.GET("/:id/reports", c.ListReports)

		// Only admins change the shape of a project
		admin := group.Group("", c.authMiddleware.RequireAdmin())
		admin.POST("", c.CreateProject)
		admin.PATCH("/:id", c.UpdateProject)
		admin.DELETE("/:id", c.DeleteProject)
		admin.POST("/:id/properties", c.AddProperty)
		admin.DELETE("/:id/properties/:namespace/:name", c.RemoveProperty)
	}
}

type projectView struct {
	ID          int64                       `json:"id"`
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	Version     int64                       `json:"version"`
	Input       []panel_models.PropertyView `json:"input"`
	Control     []panel_models.PropertyView `json:"control"`
}

func (c *ProjectController) view(ctx *gin.Context, p *panel_models.Project) (projectView, bool) {
	input, err := p.Properties.Decode(properties.Input)
	if err != nil {
		respondError(ctx, c.logger, err)
		return projectView{}, false
	}
	control, err := p.Properties.Decode(properties.Control)
	if err != nil {
		respondError(ctx, c.logger, err)
		return projectView{}, false
	}
	return projectView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Version:     p.Version,
		Input:       panel_models.ToPropertyViews(input),
		Control:     panel_models.ToPropertyViews(control),
	}, true
}

func (c *ProjectController) CreateProject(ctx *gin.Context) {
	var req api_models.CreateProjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := c.projects.Create(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	if v, ok := c.view(ctx, p); ok {
		ctx.JSON(http.StatusCreated, v)
	}
}

func (c *ProjectController) ListProjects(ctx *gin.Context) {
	list, err := c.projects.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}

	views := make([]projectView, 0, len(list))
	for _, p := range list {
		v, ok := c.view(ctx, p)
		if !ok {
			return
		}
		views = append(views, v)
	}
	ctx.JSON(http.StatusOK, gin.H{"projects": views, "total": len(views)})
}

func (c *ProjectController) GetProject(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	p, err := c.projects.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	if v, ok := c.view(ctx, p); ok {
		ctx.JSON(http.StatusOK, v)
	}
}

func (c *ProjectController) UpdateProject(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req api_models.UpdateProjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := c.projects.Update(ctx.Request.Context(), id, req)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	if v, ok := c.view(ctx, p); ok {
		ctx.JSON(http.StatusOK, v)
	}
}

func (c *ProjectController) DeleteProject(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.projects.Delete(ctx.Request.Context(), id); err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "project deleted successfully"})
}

func (c *ProjectController) AddProperty(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req api_models.AddPropertyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := c.projects.AddProperty(ctx.Request.Context(), id, req)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	if v, ok := c.view(ctx, p); ok {
		ctx.JSON(http.StatusCreated, v)
	}
}

func (c *ProjectController) RemoveProperty(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	p, err := c.projects.RemoveProperty(ctx.Request.Context(), id, ctx.Param("namespace"), ctx.Param("name"))
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	if v, ok := c.view(ctx, p); ok {
		ctx.JSON(http.StatusOK, v)
	}
}

// GetControl returns the control properties the operator form is built from.
func (c *ProjectController) GetControl(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	p, _, control, err := c.projects.Properties(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"project": p.Name,
		"version": p.Version,
		"control": panel_models.ToPropertyViews(control),
	})
}

// ApplyControl applies the submitted operator form. Every control property
// is assigned or none is.
func (c *ProjectController) ApplyControl(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := ctx.Request.ParseForm(); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	form := make(map[string]string, len(ctx.Request.PostForm))
	for name, values := range ctx.Request.PostForm {
		if len(values) > 0 {
			form[name] = values[0]
		}
	}

	p, updated, err := c.projects.UpdateControls(ctx.Request.Context(), id, form)
	if err != nil {
		var verr *properties.ValidationError
		if errors.As(err, &verr) {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"error":  "invalid control values",
				"fields": verr.FieldMessages(),
			})
			return
		}
		respondError(ctx, c.logger, err)
		return
	}

	c.logger.Logger.Info().Str("project", p.Name).Int64("version", p.Version).Msg("Control values updated")
	ctx.JSON(http.StatusOK, gin.H{
		"project": p.Name,
		"version": p.Version,
		"control": panel_models.ToPropertyViews(updated),
	})
}

func (c *ProjectController) ListReports(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	reports, total, err := c.projects.Reports(ctx.Request.Context(), id, limit)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"reports": reports, "total": total})
}
