package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/curio-sh/curio/internal/config"
	"github.com/curio-sh/curio/internal/database"
	"github.com/curio-sh/curio/internal/eventlog"
	"github.com/curio-sh/curio/internal/scheduler"
	"github.com/curio-sh/curio/internal/server"
	"github.com/curio-sh/curio/internal/social"
	"github.com/curio-sh/curio/internal/timeline"
	"github.com/curio-sh/curio/internal/watchlist"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor service",
	Long: `Run the Curio service: the background scheduler with the
watchlist and friends monitors, plus the HTTP surface for health,
metrics, and the timeline.

Monitors are disabled when no social gateway is configured; the
timeline API and the document store remain available.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}

	applyLogging(cfg.Logging.Level, cfg.Logging.Pretty)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open database")
		return err
	}
	defer db.Close()

	events := eventlog.New(log.Logger)
	if cfg.Logging.HeartbeatInterval > 0 {
		events.StartHeartbeat(cfg.Logging.HeartbeatInterval)
	}
	defer events.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messages, err := timeline.NewRepository(ctx, db, events)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open timeline repository")
		return err
	}
	tl := timeline.NewService(messages)

	profiles, err := watchlist.NewRepository(ctx, db, events)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open watchlist repository")
		return err
	}

	tasks := buildTasks(cfg, profiles, tl, events)

	sched := scheduler.New(tasks, events, scheduler.Config{
		PollInterval: cfg.Scheduler.PollInterval,
		OnTaskError: func(taskErr *scheduler.TaskError) {
			log.Error().Err(taskErr.Err).Str("task", taskErr.TaskName).Msg("Task failed")
			taskErr.Observe()
		},
	})

	if len(tasks) > 0 {
		if err := sched.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to start scheduler")
			return err
		}
	} else {
		log.Warn().Msg("No social gateway configured, monitors disabled")
	}

	srv := server.New(&cfg.Server, db, tl)
	srv.Start()

	watcher := watchConfig()
	if watcher != nil {
		defer watcher.Stop()
	}

	log.Info().
		Str("addr", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Int("tasks", len(tasks)).
		Msg("Curio started")

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Server shutdown error")
	}

	return nil
}

// buildTasks wires the monitors. An empty gateway URL or account leaves
// the task list empty.
func buildTasks(cfg *config.Config, profiles watchlist.Store, tl *timeline.Service, events eventlog.Logger) []scheduler.Task {
	if cfg.Social.BaseURL == "" || cfg.Social.Account == "" {
		return nil
	}

	var client social.Client = social.NewHTTPClient(cfg.Social.BaseURL, cfg.Social.Timeout)
	if cfg.Social.RatePerSec > 0 {
		client = social.NewRateLimited(client, cfg.Social.RatePerSec, cfg.Social.Burst)
	}

	return []scheduler.Task{
		watchlist.NewMonitor(client, profiles, tl, events, cfg.Social.Account, cfg.Scheduler.WatchlistSchedule),
		watchlist.NewFriendsMonitor(client, profiles, tl, events, cfg.Scheduler.FriendsSchedule),
	}
}

// watchConfig reloads the logging level when the config file changes.
func watchConfig() *config.Watcher {
	path := cfgFile
	if path == "" {
		path = "curio.yaml"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	watcher, err := config.Watch(path, func(cfg *config.Config) {
		applyLogging(cfg.Logging.Level, cfg.Logging.Pretty)
		log.Info().Str("level", cfg.Logging.Level).Msg("Logging level reloaded")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to watch config file")
		return nil
	}

	log.Info().Str("file", path).Msg("Watching config file")
	return watcher
}
