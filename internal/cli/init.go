package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/curio-sh/curio/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a starter configuration file",
	Long: `Write a starter curio.yaml with the default settings.

Edit social.base_url and social.account afterwards to enable the
monitors; without them curio serve runs the HTTP surface only.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	path := filepath.Join(dir, "curio.yaml")
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	data, err := starterConfig()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	log.Info().Str("file", path).Msg("Config file written")
	fmt.Printf("Wrote %s\n\nNext steps:\n  1. Set social.base_url and social.account\n  2. Run: curio serve\n", path)
	return nil
}

// starterConfig renders the default configuration keyed the way the
// loader expects.
func starterConfig() ([]byte, error) {
	defaults := config.Default()

	doc := map[string]any{
		"server": map[string]any{
			"host": defaults.Server.Host,
			"port": defaults.Server.Port,
		},
		"database": map[string]any{
			"path":         defaults.Database.Path,
			"wal_mode":     defaults.Database.WALMode,
			"busy_timeout": defaults.Database.BusyTimeout.String(),
		},
		"scheduler": map[string]any{
			"poll_interval":      defaults.Scheduler.PollInterval.String(),
			"watchlist_schedule": defaults.Scheduler.WatchlistSchedule,
			"friends_schedule":   defaults.Scheduler.FriendsSchedule,
		},
		"social": map[string]any{
			"account":      "",
			"base_url":     "",
			"timeout":      defaults.Social.Timeout.String(),
			"rate_per_sec": defaults.Social.RatePerSec,
			"burst":        defaults.Social.Burst,
		},
		"logging": map[string]any{
			"level":              defaults.Logging.Level,
			"pretty":             defaults.Logging.Pretty,
			"heartbeat_interval": defaults.Logging.HeartbeatInterval.String(),
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}
	return data, nil
}
