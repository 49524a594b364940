// Package main implements the entry point for the revise-api server, the
// spaced-repetition review engine behind the study platform.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/medrevise/revise-api/internal/config"
	"github.com/medrevise/revise-api/internal/platform/logger"
	"github.com/medrevise/revise-api/internal/platform/postgres"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply pending migrations and exit")
	migrateStatus := flag.Bool("migrate-status", false, "report migration status and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		slog.Error("Failed to set up logger", "error", err)
		os.Exit(1)
	}

	log.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := setupDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", "error", closeErr)
		}
	}()

	switch {
	case *migrateStatus:
		if err := postgres.MigrateStatus(db); err != nil {
			log.Error("Migration status failed", "error", err)
			os.Exit(1)
		}
		return
	case *migrateOnly:
		if err := postgres.MigrateUp(db); err != nil {
			log.Error("Migrations failed", "error", err)
			os.Exit(1)
		}
		log.Info("Migrations applied")
		return
	}

	if err := postgres.MigrateUp(db); err != nil {
		log.Error("Migrations failed", "error", err)
		os.Exit(1)
	}

	app := newApplication(cfg, db, log)

	if err := app.run(context.Background()); err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}
