package config

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"reportpoller/internal/types"
)

// TestSecretStringAlias verifies the config alias is the shared redacted type.
func TestSecretStringAlias(t *testing.T) {
	var s SecretString = "postgres://user:pass@db/state"
	var typed types.SecretString = s

	if typed.Unmask() != "postgres://user:pass@db/state" {
		t.Errorf("Unmask() = %q", typed.Unmask())
	}
	if s.String() == s.Unmask() {
		t.Error("String() should not expose the raw value")
	}
}

// TestEnvconfigTags verifies every documented environment variable is bound.
func TestEnvconfigTags(t *testing.T) {
	tests := []struct {
		typ   reflect.Type
		field string
		tag   string
	}{
		{reflect.TypeOf(Config{}), "Environment", "APP_ENV"},
		{reflect.TypeOf(Config{}), "LogLevel", "LOG_LEVEL"},
		{reflect.TypeOf(DestinationConfig{}), "WorkspaceID", "WORKSPACE_ID"},
		{reflect.TypeOf(DestinationConfig{}), "LogAnalyticsURI", "LOG_ANALYTICS_URI"},
		{reflect.TypeOf(SchedulerConfig{}), "FetchDelayMinutes", "FETCH_DELAY_MINUTES"},
		{reflect.TypeOf(SchedulerConfig{}), "CalendarFetchDelayHours", "CALENDAR_FETCH_DELAY_HOURS"},
		{reflect.TypeOf(SchedulerConfig{}), "ChatFetchDelayDays", "CHAT_FETCH_DELAY_DAYS"},
		{reflect.TypeOf(SchedulerConfig{}), "UserAccountsFetchDelayHours", "USER_ACCOUNTS_FETCH_DELAY_HOURS"},
		{reflect.TypeOf(SchedulerConfig{}), "LoginFetchDelayHours", "LOGIN_FETCH_DELAY_HOURS"},
		{reflect.TypeOf(SchedulerConfig{}), "MaxWindowMinutes", "MAX_TIME_WINDOW_MINUTES"},
		{reflect.TypeOf(SchedulerConfig{}), "ExcludedActivities", "EXCLUDED_ACTIVITIES"},
		{reflect.TypeOf(SchedulerConfig{}), "MaxQueueDepth", "MAX_QUEUE_DEPTH"},
		{reflect.TypeOf(SchedulerConfig{}), "MaxInvocationMinutes", "MAX_INVOCATION_MINUTES"},
		{reflect.TypeOf(QueueConfig{}), "URL", "WORK_QUEUE_URL"},
		{reflect.TypeOf(StateConfig{}), "Backend", "STATE_BACKEND"},
		{reflect.TypeOf(DatabaseConfig{}), "URL", "DATABASE_URL"},
		{reflect.TypeOf(ObservabilityConfig{}), "MetricNamespace", "METRIC_NAMESPACE"},
	}

	for _, tt := range tests {
		t.Run(tt.typ.Name()+"."+tt.field, func(t *testing.T) {
			f, ok := tt.typ.FieldByName(tt.field)
			if !ok {
				t.Fatalf("field %s not found on %s", tt.field, tt.typ.Name())
			}
			if got := f.Tag.Get("envconfig"); got != tt.tag {
				t.Errorf("envconfig tag = %q, want %q", got, tt.tag)
			}
		})
	}
}

// TestConfigSecretFieldsJSONRedaction verifies a JSON dump of the config
// never contains the database password.
func TestConfigSecretFieldsJSONRedaction(t *testing.T) {
	cfg := Config{
		Environment: "prod",
		Database:    DatabaseConfig{URL: "postgres://user:hunter2@db/state"},
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Errorf("JSON output leaked the database password: %s", data)
	}
}

func TestCurrentBuild(t *testing.T) {
	saved := [3]string{version, commit, buildTime}
	t.Cleanup(func() { version, commit, buildTime = saved[0], saved[1], saved[2] })

	version, commit, buildTime = "1.4.0", "abc1234", "2024-06-10T12:00:00Z"
	got := currentBuild()
	if got != (BuildInfo{Version: "1.4.0", Commit: "abc1234", BuildTime: "2024-06-10T12:00:00Z"}) {
		t.Errorf("currentBuild() = %+v", got)
	}
}
