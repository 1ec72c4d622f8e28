package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the reconciler.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Sources  SourcesConfig
	Sync     SyncConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SourceConfig identifies one upstream ticket system. A source with an empty
// domain or key is disabled at startup; the remaining sources still sync.
type SourceConfig struct {
	Domain string
	APIKey string
}

// Enabled reports whether the source has usable credentials.
func (s SourceConfig) Enabled() bool {
	return s.Domain != "" && s.APIKey != ""
}

// SourcesConfig carries credentials for the three upstream systems.
type SourcesConfig struct {
	Helpdesk    SourceConfig
	ServiceDesk SourceConfig
	Tracker     SourceConfig
}

// SyncConfig tunes the background sync machinery.
type SyncConfig struct {
	IntervalMinutes   int
	JobTimeoutMinutes int
	PageSize          int
	RulesPath         string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-reconciler"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Sources: SourcesConfig{
			Helpdesk: SourceConfig{
				Domain: os.Getenv("HELPDESK_DOMAIN"),
				APIKey: os.Getenv("HELPDESK_API_KEY"),
			},
			ServiceDesk: SourceConfig{
				Domain: os.Getenv("SERVICEDESK_DOMAIN"),
				APIKey: os.Getenv("SERVICEDESK_API_KEY"),
			},
			Tracker: SourceConfig{
				Domain: os.Getenv("TRACKER_DOMAIN"),
				APIKey: os.Getenv("TRACKER_API_KEY"),
			},
		},
		Sync: SyncConfig{
			IntervalMinutes:   getEnvAsInt("SYNC_INTERVAL_MINUTES", 60),
			JobTimeoutMinutes: getEnvAsInt("SYNC_JOB_TIMEOUT_MINUTES", 20),
			PageSize:          getEnvAsInt("SYNC_PAGE_SIZE", 100),
			RulesPath:         getEnv("RECONCILER_RULES_PATH", "rules.yaml"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Interval returns the scheduler tick period.
func (s SyncConfig) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// JobTimeout bounds one sync run.
func (s SyncConfig) JobTimeout() time.Duration {
	if s.JobTimeoutMinutes <= 0 {
		return 20 * time.Minute
	}
	return time.Duration(s.JobTimeoutMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
