// Package config loads and validates application configuration from
// environment variables and optional config files.
package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Review   ReviewConfig   `mapstructure:"review"   validate:"required"`
	SRS      SRSConfig      `mapstructure:"srs"      validate:"required"`
	Session  SessionConfig  `mapstructure:"session"  validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains the settings for the trusted identity boundary.
// Authentication itself happens in an external service; this core only
// verifies the bearer token signature to resolve the user ID.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// ReviewConfig tunes the aggregator's read defaults.
type ReviewConfig struct {
	// DefaultPageSize bounds pool listings when the caller sends no limit.
	DefaultPageSize int `mapstructure:"default_page_size" validate:"required,gt=0"`

	// DailyReviewCap is the normal per-day review ceiling used by the
	// pending pool's pagination defaults.
	DailyReviewCap int `mapstructure:"daily_review_cap" validate:"required,gt=0"`

	// CrammingReviewCap replaces DailyReviewCap while a cramming window is
	// active.
	CrammingReviewCap int `mapstructure:"cramming_review_cap" validate:"required,gt=0"`

	// CompletedLookbackDays is the default window for the completed pool.
	CompletedLookbackDays int `mapstructure:"completed_lookback_days" validate:"required,gt=0"`
}

// SRSConfig tunes the default memory model.
type SRSConfig struct {
	DesiredRetention    float64 `mapstructure:"desired_retention"     validate:"required,gt=0,lte=1"`
	MaximumIntervalDays int     `mapstructure:"maximum_interval_days" validate:"required,gt=0"`
	LearningStepMinutes int     `mapstructure:"learning_step_minutes" validate:"required,gt=0"`

	// LearningAgainResetsReps selects the reps policy for "again" on a
	// learning card: true resets the counter, false pauses advancement.
	LearningAgainResetsReps bool `mapstructure:"learning_again_resets_reps"`
}

// SessionConfig tunes the study session tracker. These are explicit inputs
// to the tracker constructor, never ambient package state, so tests can run
// against virtual clocks.
type SessionConfig struct {
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout" validate:"required"`
	ReaperInterval    time.Duration `mapstructure:"reaper_interval"    validate:"required"`
}
