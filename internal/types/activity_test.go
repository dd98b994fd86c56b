package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActivityCatalog_HasTwentyUniqueEntries(t *testing.T) {
	assert.Len(t, ActivityCatalog, 20)

	seen := make(map[Activity]bool)
	for _, a := range ActivityCatalog {
		assert.False(t, seen[a], "duplicate activity %q", a)
		seen[a] = true
	}
}

func TestConfiguredActivities_NoExclusions(t *testing.T) {
	got := ConfiguredActivities(nil)
	assert.Equal(t, ActivityCatalog, got)
}

func TestConfiguredActivities_RemovesExcludedAndKeepsOrder(t *testing.T) {
	got := ConfiguredActivities([]string{" chat", "drive ", "", "not_an_activity"})

	assert.Len(t, got, 18)
	assert.NotContains(t, got, ActivityChat)
	assert.NotContains(t, got, ActivityDrive)
	assert.Equal(t, ActivityUserAccounts, got[0])
	assert.Equal(t, ActivityDataStudio, got[len(got)-1])
}

func TestIsKnownActivity(t *testing.T) {
	assert.True(t, IsKnownActivity("login"))
	assert.False(t, IsKnownActivity("LOGIN"))
	assert.False(t, IsKnownActivity(""))
}

func TestConfiguredActivities_IgnoresUnknownNames(t *testing.T) {
	got := ConfiguredActivities([]string{"drive", "payroll"})

	assert.Len(t, got, len(ActivityCatalog)-1)
	assert.NotContains(t, got, ActivityDrive)
}

func TestUnknownActivities(t *testing.T) {
	assert.Equal(t, []string{"payroll", "Drive"},
		UnknownActivities([]string{"drive", " payroll ", "", "Drive", "login"}))
	assert.Nil(t, UnknownActivities([]string{"admin", "chat"}))
}
