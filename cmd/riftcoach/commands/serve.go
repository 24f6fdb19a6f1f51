package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/biodoia/goriftcoach/internal/discord"
	"github.com/biodoia/goriftcoach/internal/queue"
	"github.com/biodoia/goriftcoach/internal/stats"
	"github.com/biodoia/goriftcoach/pkg/cache"
	"github.com/biodoia/goriftcoach/pkg/config"
	"github.com/biodoia/goriftcoach/pkg/database"
)

var (
	devMode     bool
	verbose     bool
	autoMigrate bool
)

// ServeCmd rappresenta il comando serve
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RiftCoach dispatcher",
	Long: `Start the HTTP dispatcher that receives chat interactions,
validates them, acknowledges with a deferred reply and enqueues
analysis work for the worker pool.`,
	Example: `  # Start dispatcher with default settings
  riftcoach serve

  # Start in development mode with verbose logging
  riftcoach serve --dev --verbose

  # Start with custom config
  riftcoach serve -c /path/to/config.yaml`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (pretty logging)")
	ServeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (debug level)")
	ServeCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "Auto-run database migrations on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogger(verbose, devMode)

	log.Info().Msg("🚀 Starting RiftCoach dispatcher")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info().
		Str("type", cfg.Database.Type).
		Msg("Database connected")

	if autoMigrate {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("✓ Database migrations completed")
	}

	redis, err := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redis.Close()

	metrics := stats.NewMetrics("riftcoach")
	broker := queue.NewBroker(redis, cfg.Redis.QueueKey)

	dispatcher, err := discord.NewDispatcher(cfg, broker, db, metrics)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	go func() {
		if err := dispatcher.Start(); err != nil {
			log.Fatal().Err(err).Msg("Dispatcher failed to start")
		}
	}()

	log.Info().Msgf("🌐 Dispatcher running on http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().Msgf("📊 Health check: http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)
	log.Info().Msgf("📈 Metrics: http://%s:%d/metrics", cfg.Server.Host, cfg.Server.Port)
	log.Info().Msg("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("⏳ Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := dispatcher.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("✓ RiftCoach dispatcher stopped cleanly")
	return nil
}
