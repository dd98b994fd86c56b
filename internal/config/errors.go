package config

import "fmt"

// ConfigErrorType classifies why LoadConfig failed.
type ConfigErrorType string

const (
	ErrSecretResolution   ConfigErrorType = "SECRET_RESOLUTION"
	ErrParsing            ConfigErrorType = "PARSING_FAILED"
	ErrValidation         ConfigErrorType = "VALIDATION_FAILED"
	ErrInvalidDestination ConfigErrorType = "INVALID_DESTINATION"
)

// ConfigError is the only error type LoadConfig returns. The entrypoint logs
// it and exits; nothing is retried.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(t ConfigErrorType, err error, format string, args ...any) *ConfigError {
	return &ConfigError{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}
