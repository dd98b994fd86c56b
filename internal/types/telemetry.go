package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricWindowsDispatched = "WindowsDispatched"
	MetricQueueDepth        = "QueueDepth"
	MetricRunStopped        = "RunStopped"
	MetricRunDuration       = "RunDuration"
	MetricWatermarkLag      = "WatermarkLag"

	// Dimension Keys
	DimActivity   = "Activity"
	DimStopReason = "StopReason"

	// Default Metric Namespace
	MetricNamespace = "WorkspaceReports"
)
