package types

import "strings"

// Activity names one Google Workspace Reports application stream. Each
// activity is tracked independently with its own watermark and delay policy.
type Activity string

const (
	ActivityUserAccounts       Activity = "user_accounts"
	ActivityAccessTransparency Activity = "access_transparency"
	ActivityAdmin              Activity = "admin"
	ActivityCalendar           Activity = "calendar"
	ActivityChat               Activity = "chat"
	ActivityDrive              Activity = "drive"
	ActivityGCP                Activity = "gcp"
	ActivityGPlus              Activity = "gplus"
	ActivityGroups             Activity = "groups"
	ActivityGroupsEnterprise   Activity = "groups_enterprise"
	ActivityJamboard           Activity = "jamboard"
	ActivityLogin              Activity = "login"
	ActivityMeet               Activity = "meet"
	ActivityMobile             Activity = "mobile"
	ActivityRules              Activity = "rules"
	ActivitySAML               Activity = "saml"
	ActivityToken              Activity = "token"
	ActivityContextAwareAccess Activity = "context_aware_access"
	ActivityChrome             Activity = "chrome"
	ActivityDataStudio         Activity = "data_studio"
)

// ActivityCatalog is the fixed, ordered set of activities the scheduler knows
// about. Processing order within an invocation follows this declaration order.
var ActivityCatalog = []Activity{
	ActivityUserAccounts,
	ActivityAccessTransparency,
	ActivityAdmin,
	ActivityCalendar,
	ActivityChat,
	ActivityDrive,
	ActivityGCP,
	ActivityGPlus,
	ActivityGroups,
	ActivityGroupsEnterprise,
	ActivityJamboard,
	ActivityLogin,
	ActivityMeet,
	ActivityMobile,
	ActivityRules,
	ActivitySAML,
	ActivityToken,
	ActivityContextAwareAccess,
	ActivityChrome,
	ActivityDataStudio,
}

// ConfiguredActivities returns the catalog in declared order with the excluded
// names removed. Exclusion names are matched after trimming whitespace; names
// that are not in the catalog are ignored.
func ConfiguredActivities(excluded []string) []Activity {
	skip := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		name = strings.TrimSpace(name)
		if name != "" {
			skip[name] = struct{}{}
		}
	}

	out := make([]Activity, 0, len(ActivityCatalog))
	for _, a := range ActivityCatalog {
		if _, ok := skip[string(a)]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

// IsKnownActivity reports whether name is part of the catalog.
func IsKnownActivity(name string) bool {
	for _, a := range ActivityCatalog {
		if string(a) == name {
			return true
		}
	}
	return false
}

// UnknownActivities returns the trimmed, non-blank names that are not in the
// catalog, in input order.
func UnknownActivities(names []string) []string {
	var out []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" && !IsKnownActivity(name) {
			out = append(out, name)
		}
	}
	return out
}
