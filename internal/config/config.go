// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`

	// CentralDBURL is the control store DSN: tenants, communication_jobs,
	// communication_queue, message_templates, agent_jobs.
	CentralDBURL string `env:"CENTRAL_DB_URL,required"`

	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`

	// Processor knobs (C9).
	PollIntervalMS    int           `env:"POLL_INTERVAL_MS" envDefault:"5000"`
	MaxConcurrentJobs int           `env:"MAX_CONCURRENT_JOBS" envDefault:"5"`
	RetryDelayMinutes int           `env:"RETRY_DELAY_MINUTES" envDefault:"5"`
	MaxRetries        int           `env:"MAX_RETRIES" envDefault:"3"`
	ShutdownGrace     time.Duration `env:"SHUTDOWN_GRACE" envDefault:"30s"`

	// LLM content generation (C7).
	LLMAPIKey  string `env:"LLM_API_KEY"`
	LLMBaseURL string `env:"LLM_BASE_URL" envDefault:"https://api.anthropic.com"`
	LLMModel   string `env:"LLM_MODEL" envDefault:"claude-3-5-haiku-latest"`

	// Scheduler task parameters (C11), see spec §4.9 / §6.
	GhostCustomerMonths       int `env:"GHOST_CUSTOMER_MONTHS" envDefault:"12"`
	WarrantyWarningDays       int `env:"WARRANTY_WARNING_DAYS" envDefault:"30"`
	TradeInMinAgeYears        int `env:"TRADE_IN_MIN_AGE_YEARS" envDefault:"8"`
	TradeInMinRepairCount     int `env:"TRADE_IN_MIN_REPAIR_COUNT" envDefault:"3"`
	FirstServiceHoursThresh   int `env:"FIRST_SERVICE_HOURS_THRESHOLD" envDefault:"20"`
	UsageServiceHoursInterval int `env:"USAGE_SERVICE_HOURS_INTERVAL" envDefault:"100"`

	// Scheduler task frequencies. Hourly/daily/weekly/monthly tasks each run on
	// their own ticker; DailySweepHour gates the daily tasks to a specific UTC hour
	// so a sweep doesn't fire the instant the process starts.
	DailySweepHour   int `env:"DAILY_SWEEP_HOUR" envDefault:"6"`
	WeeklySweepHour  int `env:"WEEKLY_SWEEP_HOUR" envDefault:"6"`
	MonthlySweepHour int `env:"MONTHLY_SWEEP_HOUR" envDefault:"6"`
	QueuePollSeconds int `env:"QUEUE_POLL_SECONDS" envDefault:"30"`

	// Ambient HTTP/observability surface.
	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"dealer-comms-engine"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// PollInterval returns the processor poll interval as a time.Duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// RetryDelay returns the fixed job-reschedule delay as a time.Duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMinutes) * time.Minute
}
