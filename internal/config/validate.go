package config

import (
	"fmt"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks a loaded Config for values the rest of the system
// cannot work with.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be between 1 and 65535, got %d", ErrInvalidConfig, cfg.Server.Port)
	}

	if cfg.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}

	if cfg.Database.BusyTimeout < 0 {
		return fmt.Errorf("%w: database.busy_timeout must not be negative", ErrInvalidConfig)
	}

	if cfg.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("%w: scheduler.poll_interval must be positive", ErrInvalidConfig)
	}

	if cfg.Scheduler.WatchlistSchedule == "" {
		return fmt.Errorf("%w: scheduler.watchlist_schedule is required", ErrInvalidConfig)
	}

	if cfg.Scheduler.FriendsSchedule == "" {
		return fmt.Errorf("%w: scheduler.friends_schedule is required", ErrInvalidConfig)
	}

	if cfg.Social.RatePerSec < 0 {
		return fmt.Errorf("%w: social.rate_per_sec must not be negative", ErrInvalidConfig)
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("%w: logging.level must be one of trace, debug, info, warn, error", ErrInvalidConfig)
	}

	return nil
}
