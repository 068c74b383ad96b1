package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.DelayMS < 0 {
		errs = append(errs, ValidationError{
			Field:   "delay_ms",
			Message: "delay cannot be negative",
		})
	}

	errs = append(errs, validateConnection(&c.Connection)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateConnection(c *ConnectionConfig) ValidationErrors {
	var errs ValidationErrors

	if c.Portal && c.Socket != "" {
		errs = append(errs, ValidationError{
			Field:   "connection.socket",
			Message: "socket and portal are mutually exclusive",
		})
	}
	if c.WaitMS < 0 {
		errs = append(errs, ValidationError{
			Field:   "connection.wait_ms",
			Message: "wait cannot be negative",
		})
	}
	if c.DeviceTimeoutMS < 0 {
		errs = append(errs, ValidationError{
			Field:   "connection.device_timeout_ms",
			Message: "device timeout cannot be negative",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "trace", "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: trace, debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	return errs
}
