package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/credops/internal/logging"
)

// TestSecretRedactionAtInfoLevel verifies secrets are redacted in Info-level logs
func TestSecretRedactionAtInfoLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithOutput(&buf, false, true)

	secretValue := "super-secret-password-12345"
	logger.Info("Stored credential value: %s", logging.Secret(secretValue))

	output := buf.String()
	assert.Contains(t, output, "[REDACTED]", "Log should contain redaction marker")
	assert.NotContains(t, output, secretValue, "Log must not contain actual secret value")
	assert.Contains(t, output, "Stored credential value", "Log should contain message text")
}

// TestSecretRedactionAtDebugLevel verifies secrets are redacted in Debug-level logs
func TestSecretRedactionAtDebugLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithOutput(&buf, true, true)

	secretValue := "debug-secret-api-key-67890"
	logger.Debug("Decrypted payload: %s", logging.Secret(secretValue))

	output := buf.String()
	assert.Contains(t, output, "[REDACTED]", "Debug log should contain redaction marker")
	assert.NotContains(t, output, secretValue, "Debug log must not contain actual secret value")
	assert.Contains(t, output, "[DEBUG]", "Should indicate debug level")
}

// TestMultipleSecretsRedaction verifies multiple secrets in one log line are all redacted
func TestMultipleSecretsRedaction(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithOutput(&buf, false, true)

	secret1 := "password-123"
	secret2 := "api-key-456"
	secret3 := "token-789"

	logger.Info("Credentials: password=%s, api_key=%s, token=%s",
		logging.Secret(secret1),
		logging.Secret(secret2),
		logging.Secret(secret3))

	output := buf.String()
	redactedCount := strings.Count(output, "[REDACTED]")
	assert.Equal(t, 3, redactedCount, "All three secrets should be redacted")

	assert.NotContains(t, output, secret1)
	assert.NotContains(t, output, secret2)
	assert.NotContains(t, output, secret3)
}

// TestSecretRedactionAcrossLogLevels verifies redaction works at all log levels
func TestSecretRedactionAcrossLogLevels(t *testing.T) {
	t.Parallel()

	secretValue := "multi-level-secret-abc"

	levels := []struct {
		name  string
		debug bool
		logFn func(*logging.Logger, string, ...interface{})
	}{
		{"info", false, (*logging.Logger).Info},
		{"warn", false, (*logging.Logger).Warn},
		{"error", false, (*logging.Logger).Error},
		{"debug", true, (*logging.Logger).Debug},
	}

	for _, tt := range levels {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := logging.NewWithOutput(&buf, tt.debug, true)

			tt.logFn(logger, "Secret: %s", logging.Secret(secretValue))

			output := buf.String()
			assert.Contains(t, output, "[REDACTED]")
			assert.NotContains(t, output, secretValue)
		})
	}
}

// TestSecretRedactionWithNonSecretData verifies non-secret data is not redacted
func TestSecretRedactionWithNonSecretData(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithOutput(&buf, false, true)

	publicValue := "credential-id-42"
	secretValue := "private-secret-123"

	logger.Info("Updated %s with new secret %s", publicValue, logging.Secret(secretValue))

	output := buf.String()
	assert.Contains(t, output, publicValue, "Public information should not be redacted")
	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, secretValue)
}

// TestColorOutputDisabled verifies logs work correctly without color
func TestColorOutputDisabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithOutput(&buf, false, true)

	logger.Info("Test message")

	output := buf.String()
	assert.NotContains(t, output, "\033[", "Should not contain ANSI codes when color disabled")
	assert.Contains(t, output, "✓", "Should contain checkmark")
}

// TestColorOutputEnabled verifies color codes appear when enabled
func TestColorOutputEnabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithOutput(&buf, false, false)

	logger.Warn("colored warning")

	assert.Contains(t, buf.String(), "\033[33m")
}

// TestDebugModeDisabled verifies debug logs don't appear when debug is off
func TestDebugModeDisabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithOutput(&buf, false, true)

	logger.Debug("This should not appear")

	assert.Empty(t, buf.String(), "Debug message should not appear when debug is disabled")
}

// TestDebugModeEnabled verifies debug logs appear when debug is on
func TestDebugModeEnabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithOutput(&buf, true, true)

	logger.Debug("This should appear")

	output := buf.String()
	assert.Contains(t, output, "[DEBUG]", "Debug message should appear when debug is enabled")
	assert.Contains(t, output, "This should appear")
}
