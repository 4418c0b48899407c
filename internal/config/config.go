// Package config provides configuration management for Curio.
package config

import (
	"time"
)

// Config is the root configuration structure for Curio.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Social    SocialConfig    `mapstructure:"social"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds settings for the health/metrics HTTP surface.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds SQLite settings for the document store.
type DatabaseConfig struct {
	// Path to the SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Cache size in KB (negative for KB, positive for pages)
	CacheSize int `mapstructure:"cache_size"`

	// Busy timeout before a locked database read/write gives up
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig holds settings for the background task scheduler.
type SchedulerConfig struct {
	// PollInterval is how often the scheduler checks for due tasks
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// WatchlistSchedule is the cron expression for the watchlist monitor
	WatchlistSchedule string `mapstructure:"watchlist_schedule"`

	// FriendsSchedule is the cron expression for the friends monitor
	FriendsSchedule string `mapstructure:"friends_schedule"`
}

// SocialConfig holds settings for the social-network client.
type SocialConfig struct {
	// Account is the screen name whose friend list seeds the watchlist
	Account string `mapstructure:"account"`

	// BaseURL is the social gateway endpoint. Leaving it empty disables
	// the monitors.
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds each gateway call
	Timeout time.Duration `mapstructure:"timeout"`

	// RatePerSec caps outbound API calls per second (0 disables limiting)
	RatePerSec float64 `mapstructure:"rate_per_sec"`

	// Burst is the rate limiter burst size
	Burst int `mapstructure:"burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Pretty enables console (human-readable) output
	Pretty bool `mapstructure:"pretty"`

	// HeartbeatInterval is how often the event logger emits a heartbeat
	// event (0 disables the heartbeat)
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}
