package app

import (
	"time"

	"github.com/yungbote/concierge-backend/internal/data/db"
	"github.com/yungbote/concierge-backend/internal/platform/assistant"
	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/realtime/bus"
	"github.com/yungbote/concierge-backend/internal/services"
)

type Config struct {
	Port        string
	LogMode     string
	Environment string
	CORSOrigins []string

	DB db.Config

	RedisAddr      string
	RedisPassword  string
	RedisChannel   string
	ThreadCacheTTL time.Duration

	JWTSecretKey   string
	AccessTokenTTL time.Duration

	Assistant assistant.Config
	Poller    services.PollerConfig

	ServiceCatalogPath string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		Environment: envutil.String("APP_ENV", "development"),
		CORSOrigins: envutil.List("CORS_ORIGINS", nil),

		DB: db.Config{
			Driver:           envutil.String("DB_DRIVER", db.DriverPostgres),
			DSN:              envutil.String("POSTGRES_DSN", ""),
			PostgresHost:     envutil.String("POSTGRES_HOST", "localhost"),
			PostgresPort:     envutil.String("POSTGRES_PORT", "5432"),
			PostgresUser:     envutil.String("POSTGRES_USER", "postgres"),
			PostgresPassword: envutil.String("POSTGRES_PASSWORD", ""),
			PostgresName:     envutil.String("POSTGRES_DB", "concierge"),
			SQLitePath:       envutil.String("SQLITE_PATH", ""),
			SlowThreshold:    envutil.Millis("DB_SLOW_QUERY_MS", time.Second),
		},

		RedisAddr:      envutil.String("REDIS_ADDR", ""),
		RedisPassword:  envutil.String("REDIS_PASSWORD", ""),
		RedisChannel:   envutil.String("REDIS_CHANNEL", bus.DefaultChannel),
		ThreadCacheTTL: envutil.Seconds("THREAD_CACHE_TTL_SECONDS", 5*time.Minute),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		AccessTokenTTL: envutil.Seconds("ACCESS_TOKEN_TTL", time.Hour),

		Assistant: assistant.Config{
			BaseURL:     envutil.String("OPENAI_BASE_URL", assistant.DefaultBaseURL),
			APIKey:      envutil.String("OPENAI_API_KEY", ""),
			AssistantID: envutil.String("OPENAI_ASSISTANT_ID", ""),
			BetaHeader:  envutil.String("OPENAI_BETA_HEADER", assistant.DefaultBetaHeader),
			Timeout:     envutil.Seconds("OPENAI_TIMEOUT_SECONDS", assistant.DefaultTimeout),
		},
		Poller: services.PollerConfig{
			Interval:    envutil.Millis("RUN_POLL_INTERVAL_MS", services.DefaultPollInterval),
			MaxAttempts: envutil.Int("RUN_POLL_MAX_ATTEMPTS", services.DefaultPollMaxAttempts),
		},

		ServiceCatalogPath: envutil.String("SERVICE_CATALOG_PATH", ""),
	}

	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set; using in-process realtime bus and no thread cache")
	}
	log.Info("Config loaded",
		"port", cfg.Port,
		"db_driver", cfg.DB.Driver,
		"poll_interval", cfg.Poller.Interval,
		"poll_max_attempts", cfg.Poller.MaxAttempts,
	)
	return cfg
}
