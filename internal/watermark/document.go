// Package watermark persists and recovers the per-activity watermark
// document: the record of how far each Reports activity has been dispatched
// to the work queue.
package watermark

import (
	"encoding/json"
	"time"

	"reportpoller/internal/types"
)

// Document maps a key to its JSON member in the persisted object. Configured
// activities hold a types.WatermarkLayout string. Every other key is kept
// byte-for-byte so that re-enabling an activity resumes where it stopped and
// foreign metadata survives a rewrite.
type Document map[string]json.RawMessage

// Get returns the parsed watermark for activity. ok is false when the entry
// is missing, not a string, or unparseable.
func (d Document) Get(activity types.Activity) (time.Time, bool) {
	raw, exists := d[string(activity)]
	if !exists {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	t, err := types.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Set stores t for activity unconditionally.
func (d Document) Set(activity types.Activity, t time.Time) {
	d[string(activity)] = quote(types.FormatTimestamp(t))
}

// Advance moves the watermark for activity forward to t. It reports false and
// leaves the document untouched when t would move the watermark backward.
func (d Document) Advance(activity types.Activity, t time.Time) bool {
	if current, ok := d.Get(activity); ok && t.Before(current) {
		return false
	}
	d.Set(activity, t)
	return true
}

// Marshal encodes the document as the JSON object persisted in the store.
func (d Document) Marshal() (string, error) {
	b, err := json.Marshal(map[string]json.RawMessage(d))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Timestamps in WatermarkLayout never need escaping.
func quote(s string) json.RawMessage {
	return json.RawMessage(`"` + s + `"`)
}
