package config

import "time"

// Default configuration values.
const (
	DefaultHost         = "localhost"
	DefaultPort         = 8090
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second

	DefaultDBPath       = "curio.db"
	DefaultCacheSize    = -64000 // 64MB
	DefaultBusyTimeout  = 5 * time.Second
	DefaultMaxOpenConns = 1 // SQLite works best with a single writer
	DefaultMaxIdleConns = 1

	DefaultPollInterval      = 5 * time.Minute
	DefaultWatchlistSchedule = "55 23 * * *"
	DefaultFriendsSchedule   = "0 */6 * * *"

	DefaultRatePerSec    = 1.0
	DefaultBurst         = 5
	DefaultSocialTimeout = 30 * time.Second

	DefaultLogLevel          = "info"
	DefaultHeartbeatInterval = 15 * time.Minute
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		Database: DatabaseConfig{
			Path:         DefaultDBPath,
			WALMode:      true,
			CacheSize:    DefaultCacheSize,
			BusyTimeout:  DefaultBusyTimeout,
			MaxOpenConns: DefaultMaxOpenConns,
			MaxIdleConns: DefaultMaxIdleConns,
		},
		Scheduler: SchedulerConfig{
			PollInterval:      DefaultPollInterval,
			WatchlistSchedule: DefaultWatchlistSchedule,
			FriendsSchedule:   DefaultFriendsSchedule,
		},
		Social: SocialConfig{
			RatePerSec: DefaultRatePerSec,
			Burst:      DefaultBurst,
			Timeout:    DefaultSocialTimeout,
		},
		Logging: LoggingConfig{
			Level:             DefaultLogLevel,
			HeartbeatInterval: DefaultHeartbeatInterval,
		},
	}
}
