package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/medrevise/revise-api/internal/config"
	"github.com/medrevise/revise-api/internal/domain/srs"
	"github.com/medrevise/revise-api/internal/platform/postgres"
	"github.com/medrevise/revise-api/internal/service/auth"
	"github.com/medrevise/revise-api/internal/service/bulkops"
	"github.com/medrevise/revise-api/internal/service/content"
	"github.com/medrevise/revise-api/internal/service/review"
	"github.com/medrevise/revise-api/internal/service/session"
)

// application holds the wired dependencies of the running server.
type application struct {
	config *config.Config
	db     *sql.DB
	logger *slog.Logger

	tokenVerifier  auth.TokenVerifier
	reviewService  review.Service
	bulkEngine     bulkops.Engine
	sessionService session.Service
	reaper         *session.Reaper
}

// newApplication wires stores, the scheduler, and services from config.
func newApplication(cfg *config.Config, db *sql.DB, log *slog.Logger) *application {
	cardStore := postgres.NewPostgresReviewCardStore(db, log)
	logStore := postgres.NewPostgresReviewLogStore(db, log)
	sessionStore := postgres.NewPostgresStudySessionStore(db, log)

	scheduler, err := srs.NewScheduler(&srs.Params{
		Weights:                 srs.DefaultWeights,
		DesiredRetention:        cfg.SRS.DesiredRetention,
		MaximumIntervalDays:     cfg.SRS.MaximumIntervalDays,
		LearningStep:            time.Duration(cfg.SRS.LearningStepMinutes) * time.Minute,
		LearningAgainResetsReps: cfg.SRS.LearningAgainResetsReps,
	})
	if err != nil {
		// Config validation runs before wiring, so bad SRS params mean a
		// programming error, not an operator one.
		// ALLOW-PANIC: invalid scheduler wiring is unrecoverable
		panic(fmt.Sprintf("failed to build scheduler: %v", err))
	}

	verifier, err := auth.NewHMACVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		// ALLOW-PANIC: invalid auth wiring is unrecoverable
		panic(fmt.Sprintf("failed to build token verifier: %v", err))
	}

	caps := review.NewCaps(cfg.Review.DailyReviewCap, cfg.Review.CrammingReviewCap)

	reviewService := review.NewService(
		db,
		cardStore,
		logStore,
		scheduler,
		content.NopProvider{},
		caps,
		review.Config{
			DefaultPageSize:       cfg.Review.DefaultPageSize,
			CompletedLookbackDays: cfg.Review.CompletedLookbackDays,
		},
		log,
	)

	bulkEngine := bulkops.NewEngine(cardStore, caps, cfg.Review.CrammingReviewCap, log)

	sessionService := session.NewService(sessionStore, log)
	reaper := session.NewReaper(
		sessionStore,
		cfg.Session.InactivityTimeout,
		cfg.Session.ReaperInterval,
		log,
	)

	return &application{
		config:         cfg,
		db:             db,
		logger:         log,
		tokenVerifier:  verifier,
		reviewService:  reviewService,
		bulkEngine:     bulkEngine,
		sessionService: sessionService,
		reaper:         reaper,
	}
}

// run starts background workers and the HTTP server, blocking until shutdown.
func (app *application) run(ctx context.Context) error {
	app.reaper.Start()
	defer app.reaper.Stop()

	return app.startHTTPServer(ctx, app.setupRouter())
}
