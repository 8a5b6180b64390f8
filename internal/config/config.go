package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Shared secret for the service token presented by the console
	// backend and the external cron caller.
	ServiceTokenSecret string `envconfig:"SERVICE_TOKEN_SECRET" required:"true"`

	CORSAllowedOrigins   string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
	CORSAllowCredentials bool   `envconfig:"CORS_ALLOW_CREDENTIALS" default:"false"`

	// Stuck-run recovery window, applied uniformly to all jobs.
	JobStaleAfterMinutes int `envconfig:"JOB_STALE_AFTER_MINUTES" default:"30"`

	// Optional outbound delivery webhook.
	WebhookURL     string  `envconfig:"WEBHOOK_URL" default:""`
	WebhookSecret  string  `envconfig:"WEBHOOK_SECRET" default:""`
	WebhookRateRPS float64 `envconfig:"WEBHOOK_RATE_RPS" default:"5"`

	// Optional SMTP delivery for email-channel outbox messages.
	SMTPHost string `envconfig:"SMTP_HOST" default:""`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser string `envconfig:"SMTP_USER" default:""`
	SMTPPass string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom string `envconfig:"SMTP_FROM" default:""`

	// Optional YAML file overriding the built-in job schedules.
	SchedulesPath    string `envconfig:"SCHEDULES_PATH" default:""`
	SchedulerEnabled bool   `envconfig:"SCHEDULER_ENABLED" default:"true"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) StaleAfter() time.Duration {
	m := c.JobStaleAfterMinutes
	if m <= 0 {
		m = 30
	}
	return time.Duration(m) * time.Minute
}

func (c Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
