package config

import (
	"fmt"
	"strconv"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			errs = append(errs, ValidationError{Field: "DATABASE_URL", Message: "required when STORE_DRIVER is postgres"})
		}
	case "memory":
	default:
		errs = append(errs, ValidationError{
			Field:   "STORE_DRIVER",
			Message: fmt.Sprintf("must be 'postgres' or 'memory', got %q", cfg.StoreDriver),
		})
	}

	errs = appendDuration(errs, "STORE_TIMEOUT", cfg.StoreTimeoutStr)
	errs = appendDuration(errs, "NOTIFY_TIMEOUT", cfg.NotifyTimeoutStr)

	if n, err := strconv.Atoi(cfg.NotifyBufferStr); err != nil || n <= 0 {
		errs = append(errs, ValidationError{Field: "NOTIFY_BUFFER", Message: "must be a positive integer"})
	}

	if _, err := cfg.Location(); err != nil {
		errs = append(errs, ValidationError{Field: "REPORTING_TZ", Message: fmt.Sprintf("unknown time zone: %v", err)})
	}

	if cfg.EmailEnabled() && cfg.SMTPFrom == "" {
		errs = append(errs, ValidationError{Field: "SMTP_FROM", Message: "required when SMTP_HOST is set"})
	}

	if cfg.SMSEnabled() {
		if cfg.TwilioAuthToken == "" {
			errs = append(errs, ValidationError{Field: "TWILIO_AUTH_TOKEN", Message: "required when TWILIO_ACCOUNT_SID is set"})
		}
		if cfg.TwilioPhoneNumber == "" {
			errs = append(errs, ValidationError{Field: "TWILIO_PHONE_NUMBER", Message: "required when TWILIO_ACCOUNT_SID is set"})
		}
	}

	if cfg.Port == "" {
		errs = append(errs, ValidationError{Field: "PORT", Message: "required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func appendDuration(errs ValidationErrors, field, value string) ValidationErrors {
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid duration: %v", err)})
	}
	if d <= 0 {
		return append(errs, ValidationError{Field: field, Message: "must be positive"})
	}
	return errs
}
