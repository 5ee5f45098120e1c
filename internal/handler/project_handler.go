package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"donations/internal/auth"
	apperrors "donations/internal/errors"
	"donations/internal/model"
	"donations/internal/seed"
	"donations/internal/service"
)

const (
	homeProjectsLimit     = 10
	projectDonationsLimit = 20
)

// FeedFetcher downloads the external project feed.
type FeedFetcher func(ctx context.Context) ([]seed.ProjectItem, error)

// ProjectHandler handles project endpoints.
type ProjectHandler struct {
	projectService service.ProjectService
	ledgerService  service.LedgerService
	fetchFeed      FeedFetcher
}

// NewProjectHandler creates a new project handler. fetchFeed may be nil when
// no feed URL is configured.
func NewProjectHandler(projectService service.ProjectService, ledgerService service.LedgerService, fetchFeed FeedFetcher) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		ledgerService:  ledgerService,
		fetchFeed:      fetchFeed,
	}
}

// ProjectRequest represents a create-project request.
type ProjectRequest struct {
	Name         string `json:"name" form:"name" validate:"required,max=255"`
	Description  string `json:"description" form:"description"`
	TargetAmount string `json:"target_amount" form:"target_amount" validate:"required"`
	IsActive     bool   `json:"is_active" form:"is_active"`
}

// ProjectUpdateRequest represents a partial project update.
type ProjectUpdateRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Description  *string `json:"description,omitempty"`
	TargetAmount *string `json:"target_amount,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// HomeResponse is the landing page payload.
type HomeResponse struct {
	Projects    []model.Project `json:"projects"`
	CurrentUser *UserResponse   `json:"current_user"`
}

// ProjectDetailResponse is a project with its latest donations.
type ProjectDetailResponse struct {
	Project   *model.Project   `json:"project"`
	Donations []model.Donation `json:"donations"`
}

// ImportResponse reports the outcome of a project import.
type ImportResponse struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped,omitempty"`
}

func parseProjectID(c echo.Context, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, badRequest("invalid project id")
	}
	return id, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, badRequest("invalid amount")
	}
	return amount, nil
}

// Home godoc
// @Summary Landing page data
// @Tags projects
// @Produce json
// @Success 200 {object} HomeResponse
// @Router / [get]
func (h *ProjectHandler) Home(c echo.Context) error {
	projects, err := h.projectService.List(c.Request().Context(), true, 0, homeProjectsLimit)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, HomeResponse{
		Projects:    projects,
		CurrentUser: toUserResponse(CurrentIdentity(c).User),
	})
}

// List godoc
// @Summary List active projects
// @Tags projects
// @Produce json
// @Param skip query int false "Offset"
// @Param limit query int false "Page size"
// @Success 200 {array} model.Project
// @Router /projects [get]
// @Router /api/projects [get]
func (h *ProjectHandler) List(c echo.Context) error {
	offset, limit, err := pagination(c)
	if err != nil {
		return err
	}
	projects, err := h.projectService.List(c.Request().Context(), true, offset, limit)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, projects)
}

// ListAll godoc
// @Summary List every project, inactive included
// @Tags projects
// @Produce json
// @Success 200 {array} model.Project
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects/all [get]
func (h *ProjectHandler) ListAll(c echo.Context) error {
	if _, err := auth.RequireRole(CurrentIdentity(c), model.RoleAdmin); err != nil {
		return err
	}
	offset, limit, err := pagination(c)
	if err != nil {
		return err
	}
	projects, err := h.projectService.List(c.Request().Context(), false, offset, limit)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, projects)
}

// Create godoc
// @Summary Create a project
// @Tags projects
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body ProjectRequest true "Project"
// @Security BearerAuth
// @Success 201 {object} model.Project
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects [post]
// @Router /api/projects [post]
func (h *ProjectHandler) Create(c echo.Context) error {
	admin, err := auth.RequireRole(CurrentIdentity(c), model.RoleAdmin)
	if err != nil {
		return err
	}

	var req ProjectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err.Error())
	}
	target, err := parseAmount(req.TargetAmount)
	if err != nil {
		return err
	}

	project, err := h.projectService.Create(c.Request().Context(), admin.Email, service.ProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		TargetAmount: target,
		IsActive:     req.IsActive,
	})
	if err != nil {
		return fail(err)
	}

	if CurrentSurface(c) == SurfaceBrowser {
		return c.Redirect(http.StatusSeeOther, "/projects/"+project.ID.String())
	}
	return c.JSON(http.StatusCreated, project)
}

// Get godoc
// @Summary Project detail with latest donations
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} ProjectDetailResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c echo.Context) error {
	id, err := parseProjectID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	project, err := h.projectService.Get(ctx, id)
	if err != nil {
		return fail(err)
	}
	if !project.IsActive && !CurrentIdentity(c).User.IsAdmin() {
		return fail(apperrors.ErrProjectNotFound)
	}

	donations, err := h.ledgerService.ListByProject(ctx, id, 0, projectDonationsLimit)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, ProjectDetailResponse{Project: project, Donations: donations})
}

// Update godoc
// @Summary Update a project
// @Tags projects
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param id path string true "Project ID"
// @Param request body ProjectUpdateRequest true "Changed fields"
// @Success 200 {object} model.Project
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(c echo.Context) error {
	admin, err := auth.RequireRole(CurrentIdentity(c), model.RoleAdmin)
	if err != nil {
		return err
	}
	id, err := parseProjectID(c, "id")
	if err != nil {
		return err
	}

	req, err := bindProjectUpdate(c)
	if err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err.Error())
	}

	patch := service.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	}
	if req.TargetAmount != nil {
		target, err := parseAmount(*req.TargetAmount)
		if err != nil {
			return err
		}
		patch.TargetAmount = &target
	}

	project, err := h.projectService.Update(c.Request().Context(), admin.Email, id, patch)
	if err != nil {
		return fail(err)
	}
	if CurrentSurface(c) == SurfaceBrowser && !isJSONRequest(c) {
		return c.Redirect(http.StatusSeeOther, "/projects/"+project.ID.String())
	}
	return c.JSON(http.StatusOK, project)
}

// Delete godoc
// @Summary Delete a project without donations
// @Tags projects
// @Param id path string true "Project ID"
// @Success 204
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /projects/{id} [delete]
func (h *ProjectHandler) Delete(c echo.Context) error {
	admin, err := auth.RequireRole(CurrentIdentity(c), model.RoleAdmin)
	if err != nil {
		return err
	}
	id, err := parseProjectID(c, "id")
	if err != nil {
		return err
	}

	if err := h.projectService.Delete(c.Request().Context(), admin.Email, id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Import godoc
// @Summary Import projects from a feed
// @Description Upserts the posted feed, or the configured feed URL when the body is empty.
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ImportResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/projects/import [post]
func (h *ProjectHandler) Import(c echo.Context) error {
	if _, err := auth.RequireRole(CurrentIdentity(c), model.RoleAdmin); err != nil {
		return err
	}
	ctx := c.Request().Context()

	var (
		items []seed.ProjectItem
		err   error
	)
	if c.Request().ContentLength != 0 {
		items, err = seed.Decode(c.Request().Body)
		if err != nil {
			return badRequest(err.Error())
		}
	} else {
		if h.fetchFeed == nil {
			return badRequest("no project feed configured")
		}
		items, err = h.fetchFeed(ctx)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error()).SetInternal(err)
		}
	}

	projects, skipped := seed.Convert(items)
	created, updated, err := h.projectService.Import(ctx, projects)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, ImportResponse{Created: created, Updated: updated, Skipped: skipped})
}

func isJSONRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

// bindProjectUpdate reads a partial update from JSON or from form fields;
// absent form fields stay nil.
func bindProjectUpdate(c echo.Context) (ProjectUpdateRequest, error) {
	var req ProjectUpdateRequest
	if isJSONRequest(c) {
		if err := c.Bind(&req); err != nil {
			return req, badRequest("invalid request body")
		}
		return req, nil
	}

	form, err := c.FormParams()
	if err != nil {
		return req, badRequest("invalid form")
	}
	if v, ok := form["name"]; ok && len(v) > 0 {
		req.Name = &v[0]
	}
	if v, ok := form["description"]; ok && len(v) > 0 {
		req.Description = &v[0]
	}
	if v, ok := form["target_amount"]; ok && len(v) > 0 {
		req.TargetAmount = &v[0]
	}
	if v, ok := form["is_active"]; ok && len(v) > 0 {
		active, err := strconv.ParseBool(v[0])
		if err != nil {
			return req, badRequest("invalid is_active")
		}
		req.IsActive = &active
	}
	return req, nil
}
