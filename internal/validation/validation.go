package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateTitle checks if a task title is valid
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ValidationError{Field: "title", Message: "title is required"}
	}
	return nil
}

// ValidateContentURL checks if a task content reference is valid. The
// reference identifies the embedded interactive page; it may be absolute or
// server-relative.
func ValidateContentURL(contentURL string) error {
	contentURL = strings.TrimSpace(contentURL)
	if contentURL == "" {
		return ValidationError{Field: "content_url", Message: "content URL is required"}
	}
	if !strings.HasPrefix(contentURL, "/") &&
		!strings.HasPrefix(contentURL, "http://") &&
		!strings.HasPrefix(contentURL, "https://") {
		return ValidationError{Field: "content_url", Message: "content URL must be absolute or start with /"}
	}
	return nil
}

// ValidateTelemetry checks the numeric fields of a completion event.
// Telemetry comes from embedded content and is untrusted: negative values
// would silently corrupt aggregation, so they are rejected outright.
func ValidateTelemetry(correct, incorrect int, timeMs int64) error {
	if correct < 0 {
		return ValidationError{Field: "correct", Message: "correct count must not be negative"}
	}
	if incorrect < 0 {
		return ValidationError{Field: "incorrect", Message: "incorrect count must not be negative"}
	}
	if timeMs < 0 {
		return ValidationError{Field: "timeMs", Message: "elapsed time must not be negative"}
	}
	return nil
}
