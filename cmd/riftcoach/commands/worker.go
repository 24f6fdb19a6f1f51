package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/biodoia/goriftcoach/internal/analysis"
	"github.com/biodoia/goriftcoach/internal/discord"
	"github.com/biodoia/goriftcoach/internal/llm"
	"github.com/biodoia/goriftcoach/internal/queue"
	"github.com/biodoia/goriftcoach/internal/riot"
	"github.com/biodoia/goriftcoach/internal/scoring"
	"github.com/biodoia/goriftcoach/internal/stats"
	"github.com/biodoia/goriftcoach/pkg/cache"
	"github.com/biodoia/goriftcoach/pkg/config"
	"github.com/biodoia/goriftcoach/pkg/database"
)

var (
	workerDev     bool
	workerVerbose bool
	concurrency   int
)

// WorkerCmd rappresenta il comando worker
var WorkerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the RiftCoach analysis workers",
	Long: `Start the worker pool that consumes queued analysis requests
and runs the five-stage pipeline: fetch, score, persist, narrate, deliver.`,
	Example: `  # Start workers with configured concurrency
  riftcoach worker

  # Override concurrency
  riftcoach worker --concurrency 8`,
	RunE: runWorker,
}

func init() {
	WorkerCmd.Flags().BoolVar(&workerDev, "dev", false, "Enable development mode (pretty logging)")
	WorkerCmd.Flags().BoolVarP(&workerVerbose, "verbose", "v", false, "Enable verbose logging (debug level)")
	WorkerCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of worker goroutines (0 = from config)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	setupLogger(workerVerbose, workerDev)

	log.Info().Msg("🚀 Starting RiftCoach workers")

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

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	redis, err := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redis.Close()

	metrics := stats.NewMetrics("riftcoach")

	// Collaboratori del task
	limiters := riot.NewLimiterRegistry(cfg.RateLimit)
	gameAPI := riot.NewClient(cfg, limiters, metrics)
	narrator := llm.NewClient(cfg, metrics)
	factory := scoring.NewFactory(cfg.Feature)
	webhook := discord.NewWebhookClient(cfg.Discord.APIBaseURL, cfg.StageTimeout.Deliver)
	renderer := discord.NewRenderer()
	bundleCache := riot.NewRedisBundleCache(redis)

	task := analysis.NewTask(cfg, gameAPI, factory, narrator, db, webhook, renderer, bundleCache, metrics)

	workers := cfg.WorkerConcurrency
	if concurrency > 0 {
		workers = concurrency
	}

	broker := queue.NewBroker(redis, cfg.Redis.QueueKey)
	pool := queue.NewPool(broker, task, workers, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	log.Info().Int("concurrency", workers).Msg("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("⏳ Draining workers...")
	cancel()
	pool.Wait()

	log.Info().Msg("✓ RiftCoach workers stopped cleanly")
	return nil
}
