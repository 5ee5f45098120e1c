package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"donations/internal/cache"
	"donations/internal/config"
	"donations/internal/db"
	"donations/internal/repository"
	"donations/internal/seed"
	"donations/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)

	url := flag.String("url", cfg.ProjectsSeedURL, "Project feed URL")
	flag.Parse()
	if *url == "" {
		logger.Error("no feed URL; set PROJECTS_SEED_URL or -url")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, logger, *url); err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, url string) error {
	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return err
	}
	logger.Info("connected to database")

	// Run migrations to ensure schema is up to date
	if err := db.Migrate(ctx, gormDB, false); err != nil {
		return err
	}

	logger.Info("fetching projects", slog.String("url", url))
	items, err := seed.Fetch(ctx, nil, url)
	if err != nil {
		return err
	}

	projects, skipped := seed.Convert(items)
	for _, id := range skipped {
		logger.Warn("skipping invalid project", slog.String("id", id))
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()

	repos := repository.NewRepositories(gormDB)
	projectService := service.NewProjectService(repository.NewTransactor(gormDB), repos, cacheClient, nil)

	created, updated, err := projectService.Import(ctx, projects)
	if err != nil {
		return err
	}

	logger.Info("seed completed",
		slog.Int("fetched", len(items)),
		slog.Int("created", created),
		slog.Int("updated", updated),
		slog.Int("skipped", len(skipped)),
	)
	return nil
}
