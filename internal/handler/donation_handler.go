package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"donations/internal/auth"
	apperrors "donations/internal/errors"
	"donations/internal/model"
	"donations/internal/service"
)

// maxConflictRetries bounds how often a donation aborted by the store is replayed.
const maxConflictRetries = 2

// DonationHandler handles donation endpoints.
type DonationHandler struct {
	ledgerService service.LedgerService
	newBackOff    func() backoff.BackOff
}

// NewDonationHandler creates a new donation handler.
func NewDonationHandler(ledgerService service.LedgerService) *DonationHandler {
	return &DonationHandler{
		ledgerService: ledgerService,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 25 * time.Millisecond
			b.MaxElapsedTime = time.Second
			return b
		},
	}
}

// DonationFormRequest represents the browser donation form.
type DonationFormRequest struct {
	Amount  string `form:"amount" json:"amount" validate:"required"`
	Message string `form:"message" json:"message" validate:"max=500"`
}

// DonationRequest represents an API donation.
type DonationRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required"`
	Message   string `json:"message" validate:"max=500"`
}

// donate calls the ledger, replaying storage conflicts a bounded number of times.
func (h *DonationHandler) donate(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal, message string, donorID uuid.UUID) (*model.Donation, error) {
	var donation *model.Donation
	op := func() error {
		d, err := h.ledgerService.Donate(ctx, projectID, amount, message, donorID)
		if err != nil {
			if errors.Is(err, apperrors.ErrStorageConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		donation = d
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(h.newBackOff(), maxConflictRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return donation, nil
}

// Make godoc
// @Summary Donate to a project from the browser
// @Tags donations
// @Accept x-www-form-urlencoded
// @Param project_id path string true "Project ID"
// @Param amount formData string true "Amount"
// @Param message formData string false "Message"
// @Success 303
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /donations/make/{project_id} [post]
func (h *DonationHandler) Make(c echo.Context) error {
	donor, err := auth.RequireActive(CurrentIdentity(c))
	if err != nil {
		return err
	}
	projectID, err := parseProjectID(c, "project_id")
	if err != nil {
		return err
	}

	var req DonationFormRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}

	if _, err := h.donate(c.Request().Context(), projectID, amount, req.Message, donor.ID); err != nil {
		return fail(err)
	}
	return c.Redirect(http.StatusSeeOther, "/projects/"+projectID.String()+"?donation_success=true")
}

// Create godoc
// @Summary Donate to a project
// @Tags donations
// @Accept json
// @Produce json
// @Param request body DonationRequest true "Donation"
// @Security BearerAuth
// @Success 201 {object} model.Donation
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/donations [post]
func (h *DonationHandler) Create(c echo.Context) error {
	donor, err := auth.RequireActive(CurrentIdentity(c))
	if err != nil {
		return err
	}

	var req DonationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(err.Error())
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return badRequest("invalid project id")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}

	donation, err := h.donate(c.Request().Context(), projectID, amount, req.Message, donor.ID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, donation)
}

// My godoc
// @Summary The current user's donations
// @Tags donations
// @Produce json
// @Success 200 {array} model.Donation
// @Failure 307
// @Router /donations/my [get]
func (h *DonationHandler) My(c echo.Context) error {
	user, err := auth.RequireAuthenticated(CurrentIdentity(c))
	if err != nil {
		return err
	}
	offset, limit, err := pagination(c)
	if err != nil {
		return err
	}
	donations, err := h.ledgerService.ListByUser(c.Request().Context(), user.ID, offset, limit)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, donations)
}

// All godoc
// @Summary Every donation
// @Tags donations
// @Produce json
// @Success 200 {array} model.Donation
// @Failure 403 {object} errors.ErrorResponse
// @Router /donations/all [get]
func (h *DonationHandler) All(c echo.Context) error {
	if _, err := auth.RequireRole(CurrentIdentity(c), model.RoleAdmin); err != nil {
		return err
	}
	offset, limit, err := pagination(c)
	if err != nil {
		return err
	}
	donations, err := h.ledgerService.ListAll(c.Request().Context(), offset, limit)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, donations)
}
