package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"donations/internal/activity"
	"donations/internal/auth"
	"donations/internal/cache"
	"donations/internal/config"
	"donations/internal/db"
	"donations/internal/handler"
	"donations/internal/metrics"
	"donations/internal/repository"
	"donations/internal/router"
	"donations/internal/seed"
	"donations/internal/service"
)

func setup() (*config.Config, *slog.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database init: %w", err)
	}
	return cfg, logger, gormDB, nil
}

func migrate(ctx context.Context, reset bool) error {
	_, logger, gormDB, err := setup()
	if err != nil {
		return err
	}
	if reset {
		logger.Warn("resetting database, dropping all tables")
	}
	if err := db.Migrate(ctx, gormDB, reset); err != nil {
		return err
	}
	logger.Info("database migrations completed")
	return nil
}

func createAdmin(ctx context.Context, email, password string) error {
	cfg, logger, gormDB, err := setup()
	if err != nil {
		return err
	}
	if email == "" {
		email = cfg.AdminEmail
	}
	if password == "" {
		password = cfg.AdminPassword
	}

	users := repository.NewUserRepository(gormDB)
	tokens := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := service.NewAuthService(users, tokens, cfg.AccessTokenTTL, nil, nil)

	created, err := authService.EnsureAdmin(ctx, email, password)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	if created {
		logger.Info("admin user created", slog.String("email", email))
	} else {
		logger.Info("admin user already exists", slog.String("email", email))
	}
	return nil
}

func serve(parent context.Context, runMigrations bool) error {
	cfg, logger, gormDB, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runMigrations {
		if err := db.Migrate(ctx, gormDB, false); err != nil {
			return err
		}
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		// cache and activity log degrade gracefully without redis
		logger.Warn("redis unavailable", slog.Any("error", err))
	}

	activityLog := activity.New(cacheClient, cfg.ActivityLogMax, logger)
	defer activityLog.Close()

	m := metrics.New(nil)

	// Initialize repositories
	repos := repository.NewRepositories(gormDB)
	transactor := repository.NewTransactor(gormDB)

	// Initialize auth components
	tokens := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	resolver := auth.NewSessionResolver(tokens, repos.Users, logger)

	// Initialize services
	authService := service.NewAuthService(repos.Users, tokens, cfg.AccessTokenTTL, activityLog, m)
	projectService := service.NewProjectService(transactor, repos, cacheClient, activityLog)
	ledgerService := service.NewLedgerService(transactor, repos, cacheClient, activityLog, m)

	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		logger.Info("admin bootstrap skipped")
	} else if created, err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	} else if created {
		logger.Info("admin user created", slog.String("email", cfg.AdminEmail))
	}

	var fetchFeed handler.FeedFetcher
	if cfg.ProjectsSeedURL != "" {
		fetchFeed = func(ctx context.Context) ([]seed.ProjectItem, error) {
			return seed.Fetch(ctx, nil, cfg.ProjectsSeedURL)
		}
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, handler.CookieOptions{
		Name:   cfg.SessionCookieName,
		Secure: cfg.CookieSecure,
		MaxAge: cfg.CookieMaxAge(),
	})
	projectHandler := handler.NewProjectHandler(projectService, ledgerService, fetchFeed)
	donationHandler := handler.NewDonationHandler(ledgerService)
	adminHandler := handler.NewAdminHandler(ledgerService, activityLog)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	router.Register(e, router.Options{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Resolver: resolver,
		Ready: func(ctx context.Context) error {
			return db.Ping(ctx, gormDB)
		},
	}, authHandler, projectHandler, donationHandler, adminHandler)

	addr := ":" + cfg.ServerPort
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", addr), slog.String("swagger", swaggerURL(cfg)))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host + "/swagger/index.html"
	}
	return "http://" + host + "/swagger/index.html"
}
