// Package main is the entrypoint for the Workspace Reports timer-trigger
// Lambda function.
//
// An EventBridge schedule invokes the function every few minutes. Each
// invocation waits for the downstream work queue to have capacity, then for
// every configured Reports activity enqueues the time windows between the
// activity's watermark and its cutoff, persisting the watermark after each
// window.
//
// This file handles dependency wiring (Cold Start) and delegates all business
// logic to the internal/scheduler package (Driver.Run).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"reportpoller/internal/config"
	"reportpoller/internal/db"
	"reportpoller/internal/metrics"
	"reportpoller/internal/queue"
	"reportpoller/internal/scheduler"
	"reportpoller/internal/storage"
	"reportpoller/internal/types"
	"reportpoller/internal/watermark"
)

func main() {
	ctx := context.Background()

	// Configuration errors are fatal before anything is enqueued.
	cfg, err := config.LoadConfig(ctx, config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel).With(
		"service", cfg.Service,
		"version", cfg.Build.Version,
	)
	slog.SetDefault(logger)

	logger.Info("timer trigger initializing (cold start)",
		"environment", cfg.Environment,
		"state_backend", cfg.State.Backend,
		"workspace_id", cfg.Destination.WorkspaceID,
	)

	driver, err := wire(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	lambda.Start(newHandler(driver, cfg.Scheduler.PastDueTolerance, time.Now, logger))
}

// wire builds the AWS clients, stores and the scheduler Driver from cfg.
func wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*scheduler.Driver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	endpoint := cfg.AWS.EndpointURL

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	workQueue, err := queue.NewWorkQueue(sqsClient, cfg.Queue)
	if err != nil {
		return nil, err
	}

	warnUnknownExclusions(logger, cfg.Scheduler.ExcludedActivities)
	activities := types.ConfiguredActivities(cfg.Scheduler.ExcludedActivities)

	driverCfg := scheduler.DriverConfig{
		Activities: activities,
		Scheduler:  cfg.Scheduler,
		Queue:      workQueue,
		Logger:     logger,
	}

	switch cfg.State.Backend {
	case config.StateBackendPostgres:
		pool, err := newPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		driverCfg.Store = watermark.NewAdapter(db.NewStateRepository(pool, cfg.State.Key), activities, logger)
		driverCfg.History = db.NewRunHistoryRepository(pool)
	default:
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
		blob := storage.NewS3BlobStore(s3Client, cfg.State.Bucket, cfg.State.Key)
		driverCfg.Store = watermark.NewAdapter(blob, activities, logger)
	}

	if cfg.Observability.EnableMetrics {
		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		driverCfg.Metrics = metrics.NewRunPublisher(cwClient, cfg.Observability.MetricNamespace, logger)
	}

	logger.Info("timer trigger initialized",
		"activities", len(activities),
		"queue_url", cfg.Queue.URL,
		"max_queue_depth", cfg.Scheduler.MaxQueueDepth,
		"max_window", cfg.Scheduler.MaxWindow().String(),
		"metrics_enabled", cfg.Observability.EnableMetrics,
	)

	return scheduler.NewDriver(driverCfg), nil
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// warnUnknownExclusions logs each EXCLUDED_ACTIVITIES name that matches no
// activity. Such names have no effect on scheduling.
func warnUnknownExclusions(logger *slog.Logger, excluded []string) {
	for _, name := range types.UnknownActivities(excluded) {
		logger.Warn("excluded activity is not in the catalog, ignoring", "activity", name)
	}
}

// runner is the slice of *scheduler.Driver the handler needs.
type runner interface {
	Run(ctx context.Context, in scheduler.TriggerInput) (scheduler.RunSummary, error)
}

// handlerResponse is returned to the Lambda runtime and shows up in the
// invocation result.
type handlerResponse struct {
	InvocationID      string         `json:"invocation_id"`
	StopReason        string         `json:"stop_reason"`
	WindowsDispatched int            `json:"windows_dispatched"`
	PerActivity       map[string]int `json:"per_activity,omitempty"`
}

// newHandler creates the Lambda handler for EventBridge scheduled events.
// The past-due flag is derived from the event time and is informational only.
func newHandler(r runner, pastDueTolerance time.Duration, now func() time.Time, logger *slog.Logger) func(ctx context.Context, event events.CloudWatchEvent) (handlerResponse, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, event events.CloudWatchEvent) (handlerResponse, error) {
		input := scheduler.TriggerInput{
			InvocationID:  uuid.NewString(),
			ScheduledTime: event.Time,
			PastDue:       isPastDue(now(), event.Time, pastDueTolerance),
		}

		attrs := []any{
			"invocation_id", input.InvocationID,
			"event_id", event.ID,
		}
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			attrs = append(attrs, "aws_request_id", lc.AwsRequestID)
		}
		logger.InfoContext(ctx, "timer trigger invoked", attrs...)

		summary, err := r.Run(ctx, input)
		resp := handlerResponse{
			InvocationID:      summary.InvocationID,
			StopReason:        string(summary.StopReason),
			WindowsDispatched: summary.WindowsDispatched,
		}
		if len(summary.PerActivity) > 0 {
			resp.PerActivity = make(map[string]int, len(summary.PerActivity))
			for a, n := range summary.PerActivity {
				resp.PerActivity[string(a)] = n
			}
		}
		if err != nil {
			logger.ErrorContext(ctx, "timer trigger failed",
				"invocation_id", input.InvocationID,
				"error_code", string(types.CodeOf(err)),
				"error_details", types.DetailsOf(err),
				"error", err,
				"windows_dispatched_before_error", summary.WindowsDispatched,
			)
			return resp, fmt.Errorf("reports scheduler failed: %w", err)
		}
		return resp, nil
	}
}

// isPastDue reports whether the invocation started more than tolerance after
// the scheduled time. A zero scheduled time is never past due.
func isPastDue(now, scheduled time.Time, tolerance time.Duration) bool {
	if scheduled.IsZero() {
		return false
	}
	return now.Sub(scheduled) > tolerance
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
