package scheduler

import (
	"time"

	"reportpoller/internal/config"
	"reportpoller/internal/types"
)

// CutoffPolicy computes the latest instant that may be fetched for an
// activity. Some Reports streams publish events late, so each activity class
// waits its own delay before a minute is considered complete.
type CutoffPolicy struct {
	defaultDelay time.Duration
	overrides    map[types.Activity]time.Duration
}

// NewCutoffPolicy builds the policy from scheduler configuration.
func NewCutoffPolicy(cfg config.SchedulerConfig) CutoffPolicy {
	return CutoffPolicy{
		defaultDelay: cfg.FetchDelay(),
		overrides: map[types.Activity]time.Duration{
			types.ActivityCalendar:     cfg.CalendarFetchDelay(),
			types.ActivityChat:         cfg.ChatFetchDelay(),
			types.ActivityUserAccounts: cfg.UserAccountsFetchDelay(),
			types.ActivityLogin:        cfg.LoginFetchDelay(),
		},
	}
}

// Delay returns the fetch delay for activity.
func (p CutoffPolicy) Delay(activity types.Activity) time.Duration {
	if d, ok := p.overrides[activity]; ok {
		return d
	}
	return p.defaultDelay
}

// Cutoff returns truncate(now, minute) - Delay(activity), in UTC.
func (p CutoffPolicy) Cutoff(activity types.Activity, now time.Time) time.Time {
	return now.UTC().Truncate(time.Minute).Add(-p.Delay(activity))
}
