// Package config defines the configuration structure for the reports extraction
// scheduler. Configuration is loaded once at process initialization (Lambda
// Cold Start) and is immutable thereafter; components receive the sub-struct
// they need through their constructors instead of reading globals.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format aborts the invocation before
// any work is dispatched (fail fast).
package config

import (
	"time"

	"reportpoller/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// State backends accepted by StateConfig.Backend.
const (
	StateBackendS3       = "s3"
	StateBackendPostgres = "postgres"
)

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"gworkspace-timer-trigger"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Destination   DestinationConfig
	Scheduler     SchedulerConfig
	Queue         QueueConfig
	State         StateConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// DestinationConfig identifies the Log Analytics workspace that downstream
// consumers ship fetched events to. The scheduler only validates it: a
// malformed URI is a deployment error and must stop the run before anything
// is enqueued.
type DestinationConfig struct {
	WorkspaceID     string `envconfig:"WORKSPACE_ID" validate:"required"`
	LogAnalyticsURI string `envconfig:"LOG_ANALYTICS_URI"`
}

// SchedulerConfig holds the watermark, window and guard tuning parameters.
// Delay and window settings are whole units named by their env var suffix;
// use the accessor methods to obtain durations.
type SchedulerConfig struct {
	FetchDelayMinutes           int      `envconfig:"FETCH_DELAY_MINUTES" default:"10" validate:"gte=0"`
	CalendarFetchDelayHours     int      `envconfig:"CALENDAR_FETCH_DELAY_HOURS" default:"6" validate:"gte=0"`
	ChatFetchDelayDays          int      `envconfig:"CHAT_FETCH_DELAY_DAYS" default:"1" validate:"gte=0"`
	UserAccountsFetchDelayHours int      `envconfig:"USER_ACCOUNTS_FETCH_DELAY_HOURS" default:"3" validate:"gte=0"`
	LoginFetchDelayHours        int      `envconfig:"LOGIN_FETCH_DELAY_HOURS" default:"6" validate:"gte=0"`
	MaxWindowMinutes            int      `envconfig:"MAX_TIME_WINDOW_MINUTES" default:"5" validate:"gt=0"`
	ExcludedActivities          []string `envconfig:"EXCLUDED_ACTIVITIES"`
	MaxQueueDepth               int      `envconfig:"MAX_QUEUE_DEPTH" default:"1000" validate:"gt=0"`
	MaxInvocationMinutes        int      `envconfig:"MAX_INVOCATION_MINUTES" default:"3" validate:"gt=0"`

	BackpressurePollInterval time.Duration `envconfig:"BACKPRESSURE_POLL_INTERVAL" default:"15s" validate:"gt=0"`
	PastDueTolerance         time.Duration `envconfig:"PAST_DUE_TOLERANCE" default:"1m"`
}

// FetchDelay is the default cutoff delay for activities without a class override.
func (c SchedulerConfig) FetchDelay() time.Duration {
	return time.Duration(c.FetchDelayMinutes) * time.Minute
}

// CalendarFetchDelay is the cutoff delay for the calendar activity.
func (c SchedulerConfig) CalendarFetchDelay() time.Duration {
	return time.Duration(c.CalendarFetchDelayHours) * time.Hour
}

// ChatFetchDelay is the cutoff delay for the chat activity.
func (c SchedulerConfig) ChatFetchDelay() time.Duration {
	return time.Duration(c.ChatFetchDelayDays) * 24 * time.Hour
}

// UserAccountsFetchDelay is the cutoff delay for the user_accounts activity.
func (c SchedulerConfig) UserAccountsFetchDelay() time.Duration {
	return time.Duration(c.UserAccountsFetchDelayHours) * time.Hour
}

// LoginFetchDelay is the cutoff delay for the login activity.
func (c SchedulerConfig) LoginFetchDelay() time.Duration {
	return time.Duration(c.LoginFetchDelayHours) * time.Hour
}

// MaxWindow is the longest time range a single work item may cover.
func (c SchedulerConfig) MaxWindow() time.Duration {
	return time.Duration(c.MaxWindowMinutes) * time.Minute
}

// MaxInvocationDuration is the hard ceiling the deadline budget derives from.
func (c SchedulerConfig) MaxInvocationDuration() time.Duration {
	return time.Duration(c.MaxInvocationMinutes) * time.Minute
}

// QueueConfig holds the downstream work queue settings.
type QueueConfig struct {
	URL string `envconfig:"WORK_QUEUE_URL" validate:"required,url"`
	// Base64Encode wraps each message body in base64, matching consumers that
	// decode queue payloads before parsing.
	Base64Encode bool `envconfig:"BASE64_ENCODE_MESSAGES" default:"true"`
}

// StateConfig selects where the watermark document lives.
type StateConfig struct {
	Backend string `envconfig:"STATE_BACKEND" default:"s3" validate:"oneof=s3 postgres"`
	Bucket  string `envconfig:"STATE_BUCKET" validate:"required_if=Backend s3"`
	// Key is the S3 object key, or the state row key for the postgres backend.
	Key string `envconfig:"STATE_KEY" default:"gworkspace/watermarks.json" validate:"required"`
}

// DatabaseConfig holds database connection and pool tuning parameters. Only
// used by the postgres state backend.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"2" validate:"gt=0,lte=1000"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m" validate:"gt=0"`
}

// AWSConfig holds regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"WorkspaceReports"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// Linker-injected build metadata, e.g.
//
//	go build -ldflags "-X reportpoller/internal/config.version=1.4.0 -X reportpoller/internal/config.commit=$(git rev-parse --short HEAD)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// BuildInfo is filled from the linker variables above, never from the
// environment.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

func currentBuild() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}
