package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Worker    WorkerConfig
	Scheduler SchedulerConfig
	Scoring   ScoringConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings for the duplicate fast path
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	// DedupeTTL bounds how long a fingerprint lives in the cache; the
	// store remains authoritative past it
	DedupeTTL time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// WorkerConfig holds sync worker pool configuration
type WorkerConfig struct {
	Enabled      bool
	Workers      int
	PollInterval time.Duration
	ClaimLease   time.Duration
	// PerDestinationCap bounds concurrent deliveries against a single
	// destination so one slow platform cannot absorb the whole pool
	PerDestinationCap int
}

// SchedulerConfig holds background maintenance configuration
type SchedulerConfig struct {
	Enabled           bool
	DecayInterval     time.Duration
	DecayStaleAfter   time.Duration
	DecayBatchSize    int
	LeaseReapInterval time.Duration
	CleanupEnabled    bool
	CleanupRetention  time.Duration
	CleanupInterval   time.Duration
}

// ScoringConfig holds the tunable scoring policy knobs
type ScoringConfig struct {
	PolicyVersion   string
	RecencyWeight   int
	DepthWeight     int
	FrequencyWeight int
	LookbackDays    int
	ShortWindowDays int
	FrequencyTarget int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with PULSE_ prefix (e.g., PULSE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			DedupeTTL: v.GetDuration("redis.dedupe_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Worker: WorkerConfig{
			Enabled:           v.GetBool("worker.enabled"),
			Workers:           v.GetInt("worker.workers"),
			PollInterval:      v.GetDuration("worker.poll_interval"),
			ClaimLease:        v.GetDuration("worker.claim_lease"),
			PerDestinationCap: v.GetInt("worker.per_destination_cap"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			DecayInterval:     v.GetDuration("scheduler.decay_interval"),
			DecayStaleAfter:   v.GetDuration("scheduler.decay_stale_after"),
			DecayBatchSize:    v.GetInt("scheduler.decay_batch_size"),
			LeaseReapInterval: v.GetDuration("scheduler.lease_reap_interval"),
			CleanupEnabled:    v.GetBool("scheduler.cleanup_enabled"),
			CleanupRetention:  v.GetDuration("scheduler.cleanup_retention"),
			CleanupInterval:   v.GetDuration("scheduler.cleanup_interval"),
		},
		Scoring: ScoringConfig{
			PolicyVersion:   v.GetString("scoring.policy_version"),
			RecencyWeight:   v.GetInt("scoring.recency_weight"),
			DepthWeight:     v.GetInt("scoring.depth_weight"),
			FrequencyWeight: v.GetInt("scoring.frequency_weight"),
			LookbackDays:    v.GetInt("scoring.lookback_days"),
			ShortWindowDays: v.GetInt("scoring.short_window_days"),
			FrequencyTarget: v.GetInt("scoring.frequency_target"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pulsecdp-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "pulsecdp"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.DedupeTTL == 0 {
		cfg.Redis.DedupeTTL = 10 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.Worker.Workers == 0 {
		cfg.Worker.Workers = 4
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = time.Second
	}
	if cfg.Worker.ClaimLease == 0 {
		cfg.Worker.ClaimLease = 2 * time.Minute
	}
	if cfg.Worker.PerDestinationCap == 0 {
		cfg.Worker.PerDestinationCap = 2
	}
	if cfg.Scheduler.DecayInterval == 0 {
		cfg.Scheduler.DecayInterval = time.Hour
	}
	if cfg.Scheduler.DecayStaleAfter == 0 {
		cfg.Scheduler.DecayStaleAfter = 24 * time.Hour
	}
	if cfg.Scheduler.DecayBatchSize == 0 {
		cfg.Scheduler.DecayBatchSize = 500
	}
	if cfg.Scheduler.LeaseReapInterval == 0 {
		cfg.Scheduler.LeaseReapInterval = 30 * time.Second
	}
	if cfg.Scheduler.CleanupRetention == 0 {
		cfg.Scheduler.CleanupRetention = 168 * time.Hour
	}
	if cfg.Scheduler.CleanupInterval == 0 {
		cfg.Scheduler.CleanupInterval = time.Hour
	}
	if cfg.Scoring.PolicyVersion == "" {
		cfg.Scoring.PolicyVersion = "v1"
	}
	if cfg.Scoring.RecencyWeight == 0 && cfg.Scoring.DepthWeight == 0 && cfg.Scoring.FrequencyWeight == 0 {
		cfg.Scoring.RecencyWeight = 40
		cfg.Scoring.DepthWeight = 35
		cfg.Scoring.FrequencyWeight = 25
	}
	if cfg.Scoring.LookbackDays == 0 {
		cfg.Scoring.LookbackDays = 30
	}
	if cfg.Scoring.ShortWindowDays == 0 {
		cfg.Scoring.ShortWindowDays = 7
	}
	if cfg.Scoring.FrequencyTarget == 0 {
		cfg.Scoring.FrequencyTarget = 20
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
}

// validate checks configuration consistency at startup
func (c *Config) validate() error {
	if c.Scoring.RecencyWeight+c.Scoring.DepthWeight+c.Scoring.FrequencyWeight != 100 {
		return fmt.Errorf("scoring weights must sum to 100, got %d",
			c.Scoring.RecencyWeight+c.Scoring.DepthWeight+c.Scoring.FrequencyWeight)
	}
	if c.Scoring.ShortWindowDays > c.Scoring.LookbackDays {
		return fmt.Errorf("scoring short window (%d days) cannot exceed lookback (%d days)",
			c.Scoring.ShortWindowDays, c.Scoring.LookbackDays)
	}
	if c.Worker.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Worker.PerDestinationCap < 1 {
		return fmt.Errorf("per-destination cap must be at least 1")
	}
	if c.App.Env == "production" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in production")
	}
	return nil
}

// DSN returns the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Addr returns the redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the app runs in production mode
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}
