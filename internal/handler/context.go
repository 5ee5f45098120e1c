package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"donations/internal/auth"
	apperrors "donations/internal/errors"
)

// IdentityKey is the echo context key holding the resolved auth.Identity.
const IdentityKey = "identity"

// SurfaceKey is the echo context key holding the Surface of the route.
const SurfaceKey = "surface"

// Surface selects how authorization denials are rendered.
type Surface int

const (
	// SurfaceBrowser redirects anonymous users to the login page.
	SurfaceBrowser Surface = iota
	// SurfaceAPI answers anonymous users with a bearer challenge.
	SurfaceAPI
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// CurrentIdentity returns the identity resolved for the request, or
// auth.Anonymous when no session middleware ran.
func CurrentIdentity(c echo.Context) auth.Identity {
	if id, ok := c.Get(IdentityKey).(auth.Identity); ok {
		return id
	}
	return auth.Anonymous
}

// CurrentSurface returns the surface the request was routed through.
func CurrentSurface(c echo.Context) Surface {
	if s, ok := c.Get(SurfaceKey).(Surface); ok {
		return s
	}
	return SurfaceBrowser
}

// pagination reads skip/limit query parameters.
func pagination(c echo.Context) (offset, limit int, err error) {
	limit = defaultLimit
	if err := echo.QueryParamsBinder(c).Int("skip", &offset).Int("limit", &limit).BindError(); err != nil {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
			Error: "invalid pagination parameters",
			Code:  "INVALID_REQUEST",
		})
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	return offset, limit, nil
}

// fail converts a service error into an echo error. Authorization denials are
// passed through untouched so the router can render them per surface.
func fail(err error) error {
	var denial *auth.Denial
	if errors.As(err, &denial) {
		return err
	}
	httpErr := apperrors.MapErrorToHTTP(err)
	he := echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	if httpErr.StatusCode >= http.StatusInternalServerError {
		return he.SetInternal(err)
	}
	return he
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
		Error: message,
		Code:  "INVALID_REQUEST",
	})
}
