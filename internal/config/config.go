package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"8001"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database (the monitored MLB data store)
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Alert persistence (local durable store, independent of the data store)
	AlertStorePath string `envconfig:"ALERT_STORE_PATH" default:"/var/lib/dugout/alerts"`

	// Alert lifecycle
	MaintenanceMode     bool          `envconfig:"MAINTENANCE_MODE" default:"false"`
	DuplicateWindow     time.Duration `envconfig:"ALERT_DUPLICATE_WINDOW" default:"10m"`
	StaleAlertThreshold time.Duration `envconfig:"ALERT_STALE_THRESHOLD" default:"2h"`
	AlertRetentionDays  int           `envconfig:"ALERT_RETENTION_DAYS" default:"30"`
	AutoRecoveryEnabled bool          `envconfig:"ALERT_AUTO_RECOVERY" default:"true"`
	CPURecoveryPercent  float64       `envconfig:"RECOVERY_CPU_PERCENT" default:"60"`
	MemRecoveryPercent  float64       `envconfig:"RECOVERY_MEMORY_PERCENT" default:"70"`
	DiskRecoveryPercent float64       `envconfig:"RECOVERY_DISK_PERCENT" default:"75"`
	LatencyRecoverySecs float64       `envconfig:"RECOVERY_LATENCY_SECONDS" default:"0.5"`
	RateLimitCritical   time.Duration `envconfig:"NOTIFY_RATE_LIMIT_CRITICAL" default:"5m"`
	RateLimitWarning    time.Duration `envconfig:"NOTIFY_RATE_LIMIT_WARNING" default:"15m"`
	RateLimitInfo       time.Duration `envconfig:"NOTIFY_RATE_LIMIT_INFO" default:"1h"`

	// Notification channels
	SMTPHost         string   `envconfig:"SMTP_HOST"`
	SMTPPort         int      `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername     string   `envconfig:"SMTP_USERNAME"`
	SMTPPassword     string   `envconfig:"SMTP_PASSWORD"`
	AlertFromEmail   string   `envconfig:"ALERT_FROM_EMAIL" default:"alerts@statedge.io"`
	AlertToEmails    []string `envconfig:"ALERT_TO_EMAILS"`
	SlackWebhookURL  string   `envconfig:"SLACK_WEBHOOK_URL"`
	CustomWebhookURL string   `envconfig:"CUSTOM_WEBHOOK_URL"`

	// Cleanup
	LogDir           string        `envconfig:"LOG_DIR" default:"./logs"`
	LogRetentionDays int           `envconfig:"LOG_RETENTION_DAYS" default:"30"`
	MaxLogFiles      int           `envconfig:"MAX_LOG_FILES" default:"100"`
	TempFileMaxAge   time.Duration `envconfig:"TEMP_FILE_MAX_AGE" default:"24h"`

	// Health aggregation
	HealthCacheTTL time.Duration `envconfig:"HEALTH_CACHE_TTL" default:"30s"`
	ProbeTimeout   time.Duration `envconfig:"HEALTH_PROBE_TIMEOUT" default:"5s"`
	MLBStatsAPIURL string        `envconfig:"MLB_STATS_API_URL" default:"https://statsapi.mlb.com/api/v1/teams"`
	FanGraphsURL   string        `envconfig:"FANGRAPHS_URL" default:"https://www.fangraphs.com/api/leaders/major-league/data"`

	// Scheduler (robfig cron specs)
	HealthRefreshSpec    string `envconfig:"SCHEDULE_HEALTH_REFRESH" default:"@every 1m"`
	AlertMaintenanceSpec string `envconfig:"SCHEDULE_ALERT_MAINTENANCE" default:"@every 5m"`
	CleanupSpec          string `envconfig:"SCHEDULE_CLEANUP" default:"0 2 * * 0"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
