package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over file values and use the REVISE_ prefix with underscores
// for nesting (e.g. REVISE_DATABASE_URL, REVISE_SESSION_INACTIVITY_TIMEOUT).
// Returns a validated Config or an error describing what failed.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("REVISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for everything that has a sensible one.
// The database URL and JWT secret default to empty so env binding sees the
// keys; validation rejects them when they stay empty.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("review.default_page_size", 20)
	v.SetDefault("review.daily_review_cap", 50)
	v.SetDefault("review.cramming_review_cap", 200)
	v.SetDefault("review.completed_lookback_days", 30)

	v.SetDefault("srs.desired_retention", 0.9)
	v.SetDefault("srs.maximum_interval_days", 36500)
	v.SetDefault("srs.learning_step_minutes", 10)
	v.SetDefault("srs.learning_again_resets_reps", false)

	v.SetDefault("session.inactivity_timeout", 10*time.Minute)
	v.SetDefault("session.reaper_interval", time.Minute)
}
