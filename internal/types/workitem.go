package types

import "time"

// Window is a half-open extraction range [Start, End) for one activity.
type Window struct {
	Start time.Time
	End   time.Time
}

// WorkItem is the queue payload that tells a downstream consumer to fetch one
// window of one activity from the Reports API. It is immutable once enqueued.
// Consumers must tolerate redelivery; re-fetching a window is idempotent.
type WorkItem struct {
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Activity  Activity `json:"activity"`
}

// NewWorkItem formats a planned window as a WorkItem.
func NewWorkItem(activity Activity, w Window) WorkItem {
	return WorkItem{
		StartTime: FormatTimestamp(w.Start),
		EndTime:   FormatTimestamp(w.End),
		Activity:  activity,
	}
}
