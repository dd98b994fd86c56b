// Package metrics publishes scheduler run summaries to CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"reportpoller/internal/scheduler"
	"reportpoller/internal/types"
)

// maxDatumsPerCall is the PutMetricData per-request datum limit.
const maxDatumsPerCall = 1000

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that RunPublisher implements scheduler.MetricsPublisher.
var _ scheduler.MetricsPublisher = (*RunPublisher)(nil)

// RunPublisher emits one batch of metrics per invocation.
//
// Metrics emitted:
//   - WindowsDispatched: Dims {Activity} -- per activity with at least one window
//   - WindowsDispatched: No dims -- invocation total
//   - QueueDepth: No dims -- last depth seen by the backpressure gate
//   - RunStopped: Dims {StopReason} -- one per invocation
//   - RunDuration: No dims -- invocation wall time
//   - WatermarkLag: Dims {Activity} -- seconds between watermark and cutoff
type RunPublisher struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewRunPublisher creates a RunPublisher for the given namespace. An empty
// namespace uses types.MetricNamespace.
func NewRunPublisher(client CloudWatchClient, namespace string, logger *slog.Logger) *RunPublisher {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunPublisher{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// PublishRun sends the metrics for summary. The caller decides what to do
// with a failure; the scheduler only logs it.
func (p *RunPublisher) PublishRun(ctx context.Context, summary scheduler.RunSummary) error {
	data := Datums(summary)

	for start := 0; start < len(data); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(data))
		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			return fmt.Errorf("metrics: put metric data: %w", err)
		}
	}

	p.logger.DebugContext(ctx, "run metrics published",
		"namespace", p.namespace,
		"datums", len(data),
	)
	return nil
}

// Datums converts a run summary into CloudWatch metric data. Per-activity
// datums are ordered by activity name.
func Datums(summary scheduler.RunSummary) []cwtypes.MetricDatum {
	timestamp := aws.Time(summary.FinishedAt)
	if summary.FinishedAt.IsZero() {
		timestamp = nil
	}

	data := []cwtypes.MetricDatum{
		{
			MetricName: aws.String(types.MetricWindowsDispatched),
			Value:      aws.Float64(float64(summary.WindowsDispatched)),
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  timestamp,
		},
		{
			MetricName: aws.String(types.MetricQueueDepth),
			Value:      aws.Float64(float64(summary.QueueDepth)),
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  timestamp,
		},
		{
			MetricName: aws.String(types.MetricRunStopped),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  timestamp,
			Dimensions: []cwtypes.Dimension{
				{
					Name:  aws.String(types.DimStopReason),
					Value: aws.String(string(summary.StopReason)),
				},
			},
		},
	}

	if !summary.StartedAt.IsZero() && !summary.FinishedAt.IsZero() {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricRunDuration),
			Value:      aws.Float64(float64(summary.FinishedAt.Sub(summary.StartedAt).Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Timestamp:  timestamp,
		})
	}

	for _, activity := range sortedActivities(summary.PerActivity) {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricWindowsDispatched),
			Value:      aws.Float64(float64(summary.PerActivity[activity])),
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  timestamp,
			Dimensions: activityDimension(activity),
		})
	}

	for _, activity := range sortedActivities(summary.Lag) {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricWatermarkLag),
			Value:      aws.Float64(summary.Lag[activity].Seconds()),
			Unit:       cwtypes.StandardUnitSeconds,
			Timestamp:  timestamp,
			Dimensions: activityDimension(activity),
		})
	}

	return data
}

func activityDimension(activity types.Activity) []cwtypes.Dimension {
	return []cwtypes.Dimension{
		{
			Name:  aws.String(types.DimActivity),
			Value: aws.String(string(activity)),
		},
	}
}

func sortedActivities[V any](m map[types.Activity]V) []types.Activity {
	out := make([]types.Activity, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
