package types

import "log/slog"

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString holds a credential loaded from the environment or SSM, such as
// DATABASE_URL. It prints, marshals and logs as a redacted placeholder so a
// config dump never carries the raw value.
//
// Unmask is the only way to read the value; the pgx pool constructor is its
// one caller.
type SecretString string

func (s SecretString) String() string { return redactedPlaceholder }

func (s SecretString) GoString() string { return redactedPlaceholder }

func (s SecretString) MarshalJSON() ([]byte, error) { return redactedJSON, nil }

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value { return slog.StringValue(redactedPlaceholder) }

// IsSet reports whether a value was configured.
func (s SecretString) IsSet() bool { return s != "" }

// Unmask returns the raw value.
func (s SecretString) Unmask() string { return string(s) }
