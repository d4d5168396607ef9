// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Suppliers SuppliersConfig
	Channel   ChannelConfig
	Workers   WorkersConfig
	Notify    NotifyConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        string
	Debug       bool
	LogPath     string
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type SuppliersConfig struct {
	SearchTimeout time.Duration

	InnstantBaseURL string
	InnstantAPIKey  string
	InnstantAgent   string
}

type ChannelConfig struct {
	BaseURL  string
	Username string
	Password string

	Retries      int
	RetryBackoff time.Duration
	RetryMaxWait time.Duration

	BatchChunkSize  int
	BatchItemDelay  time.Duration
	BatchChunkDelay time.Duration
}

type WorkersConfig struct {
	// AutoStart is the process-wide gate; individual workers also carry an
	// Enabled flag. Both must be set for a worker to start on boot.
	AutoStart bool

	Acquisition AcquisitionConfig
	Lifecycle   LifecycleConfig
	Audit       AuditConfig
	Remediation RemediationConfig
}

type AcquisitionConfig struct {
	Enabled            bool
	Interval           time.Duration
	DryRun             bool
	PurchasesPerMinute int
	// HealthThreshold is how many consecutive failed health checks the
	// supervisor tolerates before restarting the worker.
	HealthThreshold int
}

type LifecycleConfig struct {
	Enabled         bool
	Interval        time.Duration
	Horizon         time.Duration
	HourlyCap       int
	HealthThreshold int
}

type AuditConfig struct {
	Enabled         bool
	Interval        time.Duration
	HealthThreshold int
}

type RemediationConfig struct {
	Enabled         bool
	Interval        time.Duration
	HealthThreshold int
}

type NotifyConfig struct {
	TelegramToken  string
	TelegramChatID string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")

	v.SetDefault("APP_NAME", "medici")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")

	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("SUPPLIER_SEARCH_TIMEOUT", "25s")

	v.SetDefault("CHANNEL_PUSH_RETRIES", 3)
	v.SetDefault("CHANNEL_PUSH_BACKOFF", "1s")
	v.SetDefault("CHANNEL_PUSH_MAX_WAIT", "30s")
	v.SetDefault("CHANNEL_BATCH_CHUNK_SIZE", 50)
	v.SetDefault("CHANNEL_BATCH_ITEM_DELAY", "100ms")
	v.SetDefault("CHANNEL_BATCH_CHUNK_DELAY", "1s")

	v.SetDefault("WORKERS_AUTOSTART", false)
	v.SetDefault("ACQUISITION_ENABLED", false)
	v.SetDefault("ACQUISITION_INTERVAL", "60s")
	v.SetDefault("ACQUISITION_DRY_RUN", true)
	v.SetDefault("ACQUISITION_PURCHASES_PER_MINUTE", 1)
	v.SetDefault("ACQUISITION_HEALTH_THRESHOLD", 3)
	v.SetDefault("LIFECYCLE_ENABLED", false)
	v.SetDefault("LIFECYCLE_INTERVAL", "5m")
	v.SetDefault("LIFECYCLE_HORIZON", "24h")
	v.SetDefault("LIFECYCLE_HOURLY_CAP", 10)
	v.SetDefault("LIFECYCLE_HEALTH_THRESHOLD", 3)
	v.SetDefault("AUDIT_ENABLED", false)
	v.SetDefault("AUDIT_INTERVAL", "10m")
	v.SetDefault("AUDIT_HEALTH_THRESHOLD", 3)
	v.SetDefault("REMEDIATION_ENABLED", false)
	v.SetDefault("REMEDIATION_INTERVAL", "15m")
	v.SetDefault("REMEDIATION_HEALTH_THRESHOLD", 3)

	// A missing .env is fine; the environment still applies.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !strings.Contains(err.Error(), "no such file") {
				return Config{}, err
			}
		}
	}
	v.AutomaticEnv()

	cfg := Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: v.GetString("ENVIRONMENT"),
			Port:        v.GetString("PORT"),
			Debug:       v.GetBool("DEBUG"),
			LogPath:     v.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			DSN:          v.GetString("DATABASE_DSN"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Suppliers: SuppliersConfig{
			SearchTimeout:   v.GetDuration("SUPPLIER_SEARCH_TIMEOUT"),
			InnstantBaseURL: v.GetString("INNSTANT_BASE_URL"),
			InnstantAPIKey:  v.GetString("INNSTANT_API_KEY"),
			InnstantAgent:   v.GetString("INNSTANT_AGENT"),
		},
		Channel: ChannelConfig{
			BaseURL:         v.GetString("CHANNEL_BASE_URL"),
			Username:        v.GetString("CHANNEL_USERNAME"),
			Password:        v.GetString("CHANNEL_PASSWORD"),
			Retries:         v.GetInt("CHANNEL_PUSH_RETRIES"),
			RetryBackoff:    v.GetDuration("CHANNEL_PUSH_BACKOFF"),
			RetryMaxWait:    v.GetDuration("CHANNEL_PUSH_MAX_WAIT"),
			BatchChunkSize:  v.GetInt("CHANNEL_BATCH_CHUNK_SIZE"),
			BatchItemDelay:  v.GetDuration("CHANNEL_BATCH_ITEM_DELAY"),
			BatchChunkDelay: v.GetDuration("CHANNEL_BATCH_CHUNK_DELAY"),
		},
		Workers: WorkersConfig{
			AutoStart: v.GetBool("WORKERS_AUTOSTART"),
			Acquisition: AcquisitionConfig{
				Enabled:            v.GetBool("ACQUISITION_ENABLED"),
				Interval:           v.GetDuration("ACQUISITION_INTERVAL"),
				DryRun:             v.GetBool("ACQUISITION_DRY_RUN"),
				PurchasesPerMinute: v.GetInt("ACQUISITION_PURCHASES_PER_MINUTE"),
				HealthThreshold:    v.GetInt("ACQUISITION_HEALTH_THRESHOLD"),
			},
			Lifecycle: LifecycleConfig{
				Enabled:         v.GetBool("LIFECYCLE_ENABLED"),
				Interval:        v.GetDuration("LIFECYCLE_INTERVAL"),
				Horizon:         v.GetDuration("LIFECYCLE_HORIZON"),
				HourlyCap:       v.GetInt("LIFECYCLE_HOURLY_CAP"),
				HealthThreshold: v.GetInt("LIFECYCLE_HEALTH_THRESHOLD"),
			},
			Audit: AuditConfig{
				Enabled:         v.GetBool("AUDIT_ENABLED"),
				Interval:        v.GetDuration("AUDIT_INTERVAL"),
				HealthThreshold: v.GetInt("AUDIT_HEALTH_THRESHOLD"),
			},
			Remediation: RemediationConfig{
				Enabled:         v.GetBool("REMEDIATION_ENABLED"),
				Interval:        v.GetDuration("REMEDIATION_INTERVAL"),
				HealthThreshold: v.GetInt("REMEDIATION_HEALTH_THRESHOLD"),
			},
		},
		Notify: NotifyConfig{
			TelegramToken:  v.GetString("TELEGRAM_BOT_TOKEN"),
			TelegramChatID: v.GetString("TELEGRAM_CHAT_ID"),
		},
	}
	return cfg, nil
}

var Module = fx.Module("config",
	fx.Provide(Load),
)
