package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// AccessDeniedError reports a permission check failure. Subject is the
// authenticated principal, Permission the action it lacked, and Resource
// the store or credential it targeted.
type AccessDeniedError struct {
	Subject    string
	Permission string
	Resource   string
}

func (e AccessDeniedError) Error() string {
	subject := e.Subject
	if subject == "" {
		subject = "anonymous"
	}
	msg := fmt.Sprintf("Access denied: '%s' is missing the %s permission", subject, e.Permission)
	if e.Resource != "" {
		msg += fmt.Sprintf(" on %s", e.Resource)
	}
	return msg
}

// UnavailablePropertyError reports that a credential property cannot be
// produced right now, such as the content of a file-backed credential whose
// file has gone missing. Err is the optional cause; without one a generic
// message is generated.
type UnavailablePropertyError struct {
	Property string
	Kind     string
	Err      error
}

func (e UnavailablePropertyError) Error() string {
	msg := fmt.Sprintf("property '%s' is not available on credentials of kind '%s'", e.Property, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e UnavailablePropertyError) Unwrap() error {
	return e.Err
}

// StoreError enhances store-specific errors with context
func StoreError(store string, operation string, err error) error {
	suggestion := getStoreSuggestion(err)

	return UserError{
		Message:    fmt.Sprintf("credential store '%s' error during %s", store, operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// getStoreSuggestion returns helpful suggestions based on the store error
func getStoreSuggestion(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "keyring") || strings.Contains(errStr, "secret service") {
		return "The OS keyring is unavailable. Set key_backend: file in credops.yaml to use a file-based master key"
	}
	if strings.Contains(errStr, "schema") || strings.Contains(errStr, "does not validate") {
		return "A record file failed validation. Restore it from backup or remove it and re-add the credential"
	}
	if strings.Contains(errStr, "permission denied") {
		return "Check ownership and permissions of the credops data directory"
	}
	if strings.Contains(errStr, "no such file or directory") {
		return "The data directory is missing. Run 'credops list' once to initialize it"
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Already a user-friendly error
	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}
	if _, ok := err.(AccessDeniedError); ok {
		return err
	}
	if _, ok := err.(UnavailablePropertyError); ok {
		return err
	}

	// Simplify common technical errors
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "json:") {
		return ConfigError{
			Message:    "Invalid JSON format",
			Suggestion: "Validate the record file or restore it from backup",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
