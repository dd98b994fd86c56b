package types

import (
	"errors"
	"time"
)

// WatermarkLayout is the wire format shared by the persisted watermark
// document and the queued work items: UTC, millisecond precision, trailing Z.
// Downstream consumers parse this exact shape, so it must round-trip stably.
const WatermarkLayout = "2006-01-02T15:04:05.000Z"

// legacySecondsLayout is the single-timestamp state format written before
// per-activity tracking existed.
const legacySecondsLayout = "2006-01-02T15:04:05Z"

// ErrInvalidTimestamp is returned when no known layout matches the input.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// FormatTimestamp renders t in WatermarkLayout, truncating (not rounding) to
// milliseconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(WatermarkLayout)
}

// TimestampParser is one strategy for turning a raw string into a time.
// It reports false when the input is not in its format.
type TimestampParser func(raw string) (time.Time, bool)

func layoutParser(layout string) TimestampParser {
	return func(raw string) (time.Time, bool) {
		t, err := time.Parse(layout, raw)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
}

// TimestampParsers is the ordered list of accepted timestamp formats. The
// first parser that succeeds wins.
var TimestampParsers = []TimestampParser{
	// Fractional seconds of any precision, including none.
	layoutParser("2006-01-02T15:04:05.999999999Z"),
	layoutParser(legacySecondsLayout),
	layoutParser(time.RFC3339Nano),
}

// ParseTimestamp tries each parser in order and returns the first success,
// truncated to millisecond precision.
func ParseTimestamp(raw string) (time.Time, error) {
	for _, parse := range TimestampParsers {
		if t, ok := parse(raw); ok {
			return t.Truncate(time.Millisecond), nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}
