package router

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"donations/internal/auth"
	apperrors "donations/internal/errors"
	"donations/internal/handler"
	"donations/internal/metrics"
)

// LoginPath is where anonymous browser users are sent.
const LoginPath = "/auth/login"

// errorHandler renders every error returned by a handler as
// {"error", "code"} JSON. Authorization denials are shaped per surface.
func errorHandler(logger *slog.Logger, m *metrics.Metrics) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var denial *auth.Denial
		if errors.As(err, &denial) {
			m.Denied(denial.Reason.String())
			err = denialError(c, denial)
			if err == nil {
				return
			}
		}

		status, body := http.StatusInternalServerError, apperrors.ErrorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"}
		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Code
			switch msg := he.Message.(type) {
			case apperrors.ErrorResponse:
				body = msg
			case string:
				body = apperrors.ErrorResponse{Error: msg, Code: codeForStatus(status)}
			default:
				body = apperrors.ErrorResponse{Error: http.StatusText(status), Code: codeForStatus(status)}
			}
			if he.Internal != nil {
				err = he.Internal
			}
		default:
			httpErr := apperrors.MapErrorToHTTP(err)
			status, body = httpErr.StatusCode, httpErr.ToErrorResponse()
		}

		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.Any("error", err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.WarnContext(c.Request().Context(), "write error response", slog.Any("error", err))
		}
	}
}

// denialError writes the browser redirect itself and returns nil, or returns
// the error to render for the surface.
func denialError(c echo.Context, denial *auth.Denial) error {
	surface := handler.CurrentSurface(c)
	switch denial.Reason {
	case auth.ReasonLoginRequired:
		if surface == handler.SurfaceBrowser {
			if err := c.Redirect(http.StatusTemporaryRedirect, LoginPath); err != nil {
				return err
			}
			return nil
		}
		return unauthorized(c)
	case auth.ReasonInactiveAccount:
		return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{Error: denial.Error(), Code: "INACTIVE_ACCOUNT"})
	default:
		return echo.NewHTTPError(http.StatusForbidden, apperrors.ErrorResponse{Error: denial.Error(), Code: "FORBIDDEN"})
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "NOT_AUTHENTICATED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	}
	if status >= http.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	return "REQUEST_FAILED"
}

// requestLogger feeds one structured line per request into slog.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
				slog.String("remote_ip", v.RemoteIP),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
