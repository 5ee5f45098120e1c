package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"donations/internal/activity"
	"donations/internal/auth"
	"donations/internal/model"
	"donations/internal/service"
)

const dashboardActivityLimit = 50

// ActivityReader lists recent activity entries.
type ActivityReader interface {
	Recent(ctx context.Context, limit int64) ([]activity.Entry, error)
}

// AdminHandler serves the admin dashboard.
type AdminHandler struct {
	ledgerService service.LedgerService
	activity      ActivityReader
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(ledgerService service.LedgerService, reader ActivityReader) *AdminHandler {
	return &AdminHandler{ledgerService: ledgerService, activity: reader}
}

// DashboardResponse is the admin dashboard payload.
type DashboardResponse struct {
	Stats    service.Stats    `json:"stats"`
	Activity []activity.Entry `json:"activity"`
}

// Dashboard godoc
// @Summary Admin dashboard
// @Tags admin
// @Produce json
// @Success 200 {object} DashboardResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin [get]
func (h *AdminHandler) Dashboard(c echo.Context) error {
	if _, err := auth.RequireRole(CurrentIdentity(c), model.RoleAdmin); err != nil {
		return err
	}
	ctx := c.Request().Context()

	stats, err := h.ledgerService.Stats(ctx)
	if err != nil {
		return fail(err)
	}

	// the activity list is best effort; an empty list is shown when redis is down
	entries, err := h.activity.Recent(ctx, dashboardActivityLimit)
	if err != nil || entries == nil {
		entries = []activity.Entry{}
	}
	return c.JSON(http.StatusOK, DashboardResponse{Stats: stats, Activity: entries})
}
