package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"github.com/unrolled/secure"

	"donations/internal/auth"
	"donations/internal/config"
	apperrors "donations/internal/errors"
	"donations/internal/handler"
	"donations/internal/metrics"
)

// Options carries the shared infrastructure the routes depend on.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Resolver *auth.SessionResolver
	// Ready reports whether the backing stores are reachable.
	Ready func(ctx context.Context) error
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	opts Options,
	authHandler *handler.AuthHandler,
	projectHandler *handler.ProjectHandler,
	donationHandler *handler.DonationHandler,
	adminHandler *handler.AdminHandler,
) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	e.HTTPErrorHandler = errorHandler(logger, opts.Metrics)
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(echo.WrapMiddleware(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        opts.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !opts.Config.IsProduction(),
	}).Handler))

	e.GET("/healthz", func(c echo.Context) error {
		if opts.Ready != nil {
			if err := opts.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	loginLimit := echo.WrapMiddleware(httprate.Limit(
		opts.Config.LoginRateLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	))

	// Browser routes: lenient cookie session
	web := e.Group("", cookieSession(opts.Config.SessionCookieName, opts.Resolver, opts.Metrics))
	web.GET("/", projectHandler.Home)

	web.POST("/auth/register", authHandler.Register)
	web.POST("/auth/login", authHandler.Login, loginLimit)
	web.GET("/auth/logout", authHandler.Logout)
	web.POST("/auth/token", authHandler.Token, loginLimit)

	web.GET("/projects", projectHandler.List)
	web.GET("/projects/all", projectHandler.ListAll)
	web.POST("/projects", projectHandler.Create)
	web.GET("/projects/:id", projectHandler.Get)
	web.PUT("/projects/:id", projectHandler.Update)
	web.DELETE("/projects/:id", projectHandler.Delete)

	web.POST("/donations/make/:project_id", donationHandler.Make)
	web.GET("/donations/my", donationHandler.My)
	web.GET("/donations/all", donationHandler.All)

	web.GET("/admin", adminHandler.Dashboard)

	// API routes: strict bearer tokens
	api := e.Group("/api", bearerSession(opts.Resolver, opts.Metrics))
	api.GET("/projects", projectHandler.List)
	api.POST("/projects", projectHandler.Create)
	api.POST("/projects/import", projectHandler.Import)
	api.POST("/donations", donationHandler.Create)
	api.GET("/me", authHandler.Me)
}

// cookieSession resolves the session cookie. Any problem with the cookie
// leaves the request anonymous.
func cookieSession(cookieName string, resolver *auth.SessionResolver, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(handler.SurfaceKey, handler.SurfaceBrowser)

			cookie, err := c.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}
			id := resolver.FromCookie(c.Request().Context(), cookie.Value)
			if id.IsAnonymous() {
				m.TokenRejected("cookie")
			}
			c.Set(handler.IdentityKey, id)
			return next(c)
		}
	}
}

// bearerSession resolves the Authorization header through echo-jwt. A missing
// header or a non-bearer scheme continues anonymously; a bearer token that
// does not resolve is rejected.
func bearerSession(resolver *auth.SessionResolver, m *metrics.Metrics) echo.MiddlewareFunc {
	markAPI := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(handler.SurfaceKey, handler.SurfaceAPI)
			return next(c)
		}
	}

	jwtMiddleware := echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.IdentityKey,
		TokenLookup: "header:" + echo.HeaderAuthorization,
		ParseTokenFunc: func(c echo.Context, header string) (interface{}, error) {
			return resolver.FromBearer(c.Request().Context(), header)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var extractErr *echojwt.TokenExtractionError
			if errors.As(err, &extractErr) {
				// no Authorization header
				return nil
			}
			if errors.Is(err, auth.ErrAuthRequired) {
				m.TokenRejected("bearer")
				return unauthorized(c)
			}
			return echo.NewHTTPError(http.StatusInternalServerError, apperrors.ErrorResponse{
				Error: "internal server error",
				Code:  "INTERNAL_ERROR",
			}).SetInternal(err)
		},
		ContinueOnIgnoredError: true,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return markAPI(jwtMiddleware(next))
	}
}

func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
		Error: "could not validate credentials",
		Code:  "NOT_AUTHENTICATED",
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
