package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/arturoeanton/commit-tracker/internal/adapter/store"
	"github.com/arturoeanton/commit-tracker/internal/adapter/vcs"
	"github.com/arturoeanton/commit-tracker/internal/handler"
	"github.com/arturoeanton/commit-tracker/internal/middleware"
	"github.com/arturoeanton/commit-tracker/internal/service"
	"github.com/arturoeanton/commit-tracker/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting Commit Tracker",
		"port", cfg.Port,
		"repo_path", cfg.RepoPath,
		"sync_enabled", cfg.SyncEnabled,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		cancel()
		slog.Error("failed to apply database schema", "error", err)
		os.Exit(1)
	}
	cancel()

	// ── Adapters ─────────────────────────────────────────────────────────
	gitClient := vcs.NewGitClient(cfg.RepoPath)

	// ── Services ─────────────────────────────────────────────────────────
	commitService := service.NewCommitService(pgStore)
	syncService := service.NewSyncService(commitService, pgStore, gitClient, cfg.RepositoryName, cfg.SyncInterval, cfg.SyncBatch)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// Health check
	app.Get("/health", func(c fiber.Ctx) error {
		dbOK := pgStore.HealthCheck(c.Context())
		status := "healthy"
		code := fiber.StatusOK
		if !dbOK {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"app":      cfg.AppName,
			"database": dbOK,
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	api := app.Group("/api")

	commitHandler := handler.NewCommitHandler(commitService, pgStore)
	commitHandler.Register(api)

	gitHandler := handler.NewGitHandler(gitClient)
	gitHandler.Register(api)

	syncHandler := handler.NewSyncHandler(syncService)
	syncHandler.Register(api)

	auditHandler := handler.NewAuditHandler(pgStore)
	auditHandler.Register(api)

	// ── Background Sync ──────────────────────────────────────────────────
	if cfg.SyncEnabled {
		syncService.Start()
		defer syncService.Stop()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
