package config

import (
	"fmt"
	"os"
	"time"

	"github.com/biodoia/goriftcoach/pkg/database"
	"github.com/spf13/viper"
)

// Config rappresenta la configurazione completa dell'applicazione
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     database.Config    `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Riot         RiotConfig         `mapstructure:"riot"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Discord      DiscordConfig      `mapstructure:"discord"`
	StageTimeout StageTimeoutConfig `mapstructure:"stage_timeout"`
	Retry        RetryConfig        `mapstructure:"retry"`
	Degradation  DegradationConfig  `mapstructure:"degradation"`
	Feature      FeatureConfig      `mapstructure:"feature"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`

	WorkerConcurrency       int `mapstructure:"worker_concurrency"`
	InteractionTokenTTLSecs int `mapstructure:"interaction_token_ttl_seconds"`
}

// ServerConfig configurazione del server dispatcher
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// RedisConfig configurazione Redis (broker + cache)
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	QueueKey string `mapstructure:"queue_key"`
}

// RiotConfig configurazione del client verso il vendor di gioco
type RiotConfig struct {
	// BaseURL contiene il placeholder {region} sostituito a runtime
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// RateLimitConfig limiti per regione: short e long window del vendor
type RateLimitConfig struct {
	Regions map[string]RegionLimit `mapstructure:"regions"`
}

// RegionLimit descrive il doppio token bucket di una regione
type RegionLimit struct {
	Short          int `mapstructure:"short"`
	ShortWindowSec int `mapstructure:"short_window_seconds"`
	Long           int `mapstructure:"long"`
	LongWindowSec  int `mapstructure:"long_window_seconds"`
}

// LLMConfig tuning del narratore
type LLMConfig struct {
	BaseURL         string  `mapstructure:"base_url"`
	APIKey          string  `mapstructure:"api_key"`
	ModelID         string  `mapstructure:"model_id"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
}

// DiscordConfig configurazione del client webhook e del dispatcher
type DiscordConfig struct {
	APIBaseURL string `mapstructure:"api_base_url"`
	PublicKey  string `mapstructure:"public_key"`
}

// StageTimeoutConfig deadline per stage della pipeline
type StageTimeoutConfig struct {
	Fetch   time.Duration `mapstructure:"fetch"`
	Score   time.Duration `mapstructure:"score"`
	Persist time.Duration `mapstructure:"persist"`
	Narrate time.Duration `mapstructure:"narrate"`
	Deliver time.Duration `mapstructure:"deliver"`
}

// RetryConfig budget di retry per stage
type RetryConfig struct {
	Fetch   RetryBudget `mapstructure:"fetch"`
	Persist RetryBudget `mapstructure:"persist"`
}

// RetryBudget numero massimo di tentativi per un'operazione
type RetryBudget struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

// DegradationConfig controlla il fallback a template dello stage narrate
type DegradationConfig struct {
	TemplateEnabled bool `mapstructure:"template_enabled"`
}

// FeatureConfig gating delle strategie per modalità
type FeatureConfig struct {
	ArenaEnabled     bool `mapstructure:"arena_enabled"`
	BlindModeEnabled bool `mapstructure:"blind_mode_enabled"`
}

// MonitoringConfig configurazione monitoring
type MonitoringConfig struct {
	Prometheus struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"prometheus"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

// InteractionTokenTTL restituisce il TTL del token come Duration
func (c *Config) InteractionTokenTTL() time.Duration {
	return time.Duration(c.InteractionTokenTTLSecs) * time.Second
}

// Load carica la configurazione da file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Read environment variables
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// I secret vengono sempre dall'ambiente, mai dal file
	if key := os.Getenv("RIOT_API_KEY"); key != "" {
		cfg.Riot.APIKey = key
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.Type = "postgres"
		cfg.Database.Connection = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.Host = url
	}

	return &cfg, nil
}

// setDefaults imposta i valori di default
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.connection", "./data/riftcoach.db")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.log_level", "warn")

	// Redis defaults
	v.SetDefault("redis.host", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_key", "riftcoach:analysis:queue")

	// Riot defaults
	v.SetDefault("riot.base_url", "https://{region}.api.riotgames.com")

	// Rate limit defaults: short window 1s, long window 2 minuti
	v.SetDefault("rate_limit.regions.na.short", 20)
	v.SetDefault("rate_limit.regions.na.short_window_seconds", 1)
	v.SetDefault("rate_limit.regions.na.long", 100)
	v.SetDefault("rate_limit.regions.na.long_window_seconds", 120)

	// LLM defaults
	v.SetDefault("llm.base_url", "https://api.openai.com")
	v.SetDefault("llm.model_id", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_output_tokens", 1024)

	// Discord defaults
	v.SetDefault("discord.api_base_url", "https://discord.com/api/v10")

	// Stage timeouts
	v.SetDefault("stage_timeout.fetch", "10s")
	v.SetDefault("stage_timeout.score", "200ms")
	v.SetDefault("stage_timeout.persist", "2s")
	v.SetDefault("stage_timeout.narrate", "30s")
	v.SetDefault("stage_timeout.deliver", "5s")

	// Retry budgets
	v.SetDefault("retry.fetch.max_attempts", 3)
	v.SetDefault("retry.persist.max_attempts", 2)

	// Degradation & features
	v.SetDefault("degradation.template_enabled", true)
	v.SetDefault("feature.arena_enabled", true)
	v.SetDefault("feature.blind_mode_enabled", true)

	// Worker
	v.SetDefault("worker_concurrency", 4)
	v.SetDefault("interaction_token_ttl_seconds", 900)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.logging.level", "info")
	v.SetDefault("monitoring.logging.format", "json")
}

// Validate valida la configurazione
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("worker_concurrency must be >= 1, got %d", c.WorkerConcurrency)
	}
	if c.InteractionTokenTTLSecs < 1 {
		return fmt.Errorf("interaction_token_ttl_seconds must be >= 1, got %d", c.InteractionTokenTTLSecs)
	}
	if c.Retry.Fetch.MaxAttempts < 1 || c.Retry.Persist.MaxAttempts < 1 {
		return fmt.Errorf("retry budgets must be >= 1")
	}
	for region, lim := range c.RateLimit.Regions {
		if lim.Short < 1 || lim.Long < 1 {
			return fmt.Errorf("rate_limit for region %s must be positive", region)
		}
	}
	return nil
}
