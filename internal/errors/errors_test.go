package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/credops/internal/errors"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Record file is corrupt",
		Suggestion: "Restore the file from backup",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Record file is corrupt")
	assert.Contains(t, errMsg, "Restore the file from backup")
	assert.Contains(t, errMsg, "💡")
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "key_backend",
		Value:      "vault",
		Message:    "Unknown backend",
		Suggestion: "Use 'keyring' or 'file'",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "key_backend")
	assert.Contains(t, errMsg, "vault")
	assert.Contains(t, errMsg, "Unknown backend")
	assert.Contains(t, errMsg, "'keyring' or 'file'")
}

// TestAccessDeniedErrorFormatting verifies denial messages name the
// principal and the missing permission
func TestAccessDeniedErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.AccessDeniedError{
		Subject:    "alice",
		Permission: "credentials.update",
		Resource:   "store 'system.contexts'",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "alice")
	assert.Contains(t, errMsg, "credentials.update")
	assert.Contains(t, errMsg, "system.contexts")
}

func TestAccessDeniedErrorAnonymousSubject(t *testing.T) {
	t.Parallel()

	err := errors.AccessDeniedError{Permission: "credentials.view"}

	assert.Contains(t, err.Error(), "anonymous")
}

// TestUnavailablePropertyErrorFormatting verifies property errors name the
// property and the kind that lacks it
func TestUnavailablePropertyErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UnavailablePropertyError{
		Property: "username",
		Kind:     "secret_text",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "username")
	assert.Contains(t, errMsg, "secret_text")
}

func TestUnavailablePropertyErrorWithCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("open /tmp/key.pem: no such file or directory")
	err := errors.UnavailablePropertyError{
		Property: "content",
		Kind:     "secret_file",
		Err:      cause,
	}

	assert.Contains(t, err.Error(), "no such file or directory")
	assert.Equal(t, cause, err.Unwrap())
}

// TestStoreErrorSuggestions verifies store errors carry actionable hints
func TestStoreErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name               string
		errorMsg           string
		expectedSuggestion string
	}{
		{
			name:               "keyring_unavailable",
			errorMsg:           "failed to read from keyring: secret service not running",
			expectedSuggestion: "key_backend: file",
		},
		{
			name:               "schema_violation",
			errorMsg:           "record does not validate against schema",
			expectedSuggestion: "re-add the credential",
		},
		{
			name:               "permission_denied",
			errorMsg:           "open contexts/global.json: permission denied",
			expectedSuggestion: "data directory",
		},
		{
			name:               "missing_directory",
			errorMsg:           "open contexts: no such file or directory",
			expectedSuggestion: "credops list",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			baseErr := fmt.Errorf("%s", tt.errorMsg)
			storeErr := errors.StoreError("system.contexts", "list", baseErr)

			errMsg := storeErr.Error()
			assert.Contains(t, errMsg, "system.contexts")
			assert.Contains(t, errMsg, "list")
			assert.Contains(t, errMsg, tt.expectedSuggestion)
		})
	}
}

// TestSimplifyError verifies error simplification for common cases
func TestSimplifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		inputError    error
		expectedType  string
		expectedInMsg string
	}{
		{
			name:          "yaml_error",
			inputError:    fmt.Errorf("yaml: line 5: mapping values are not allowed"),
			expectedType:  "ConfigError",
			expectedInMsg: "Invalid YAML",
		},
		{
			name:          "json_error",
			inputError:    fmt.Errorf("json: invalid character"),
			expectedType:  "ConfigError",
			expectedInMsg: "Invalid JSON",
		},
		{
			name:          "permission_denied",
			inputError:    fmt.Errorf("permission denied"),
			expectedType:  "UserError",
			expectedInMsg: "Permission denied",
		},
		{
			name:          "file_not_found",
			inputError:    fmt.Errorf("no such file or directory"),
			expectedType:  "UserError",
			expectedInMsg: "not found",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			simplified := errors.SimplifyError(tt.inputError)

			errMsg := simplified.Error()
			assert.Contains(t, errMsg, tt.expectedInMsg)

			// Check error type
			switch tt.expectedType {
			case "ConfigError":
				_, ok := simplified.(errors.ConfigError)
				assert.True(t, ok, "Should be ConfigError type")
			case "UserError":
				_, ok := simplified.(errors.UserError)
				assert.True(t, ok, "Should be UserError type")
			}
		})
	}
}

// TestSimplifyErrorKeepsDomainErrors verifies domain errors pass through
// untouched
func TestSimplifyErrorKeepsDomainErrors(t *testing.T) {
	t.Parallel()

	denied := errors.AccessDeniedError{Subject: "bob", Permission: "credentials.create"}
	assert.Equal(t, denied, errors.SimplifyError(denied))

	unavailable := errors.UnavailablePropertyError{Property: "passphrase", Kind: "secret_text"}
	assert.Equal(t, unavailable, errors.SimplifyError(unavailable))
}

// TestUserErrorUnwrap verifies error unwrapping works correctly
func TestUserErrorUnwrap(t *testing.T) {
	t.Parallel()

	baseErr := fmt.Errorf("base error")
	userErr := errors.UserError{
		Message: "wrapped error",
		Err:     baseErr,
	}

	unwrapped := userErr.Unwrap()
	assert.Equal(t, baseErr, unwrapped)
}

// TestNilErrorHandling verifies nil errors are handled gracefully
func TestNilErrorHandling(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.SimplifyError(nil))
}
