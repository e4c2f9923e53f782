package config

import (
	"fmt"
	"os"

	"github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
	"github.com/systmms/credops/internal/storage"
	"gopkg.in/yaml.v3"
)

// Master key backends.
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
)

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Optional   bool // a missing file falls back to defaults instead of failing
	Definition *Definition
}

// Definition represents the credops.yaml structure
type Definition struct {
	Version        int    `yaml:"version"`
	DataDir        string `yaml:"data_dir,omitempty"`
	KeyBackend     string `yaml:"key_backend,omitempty"`
	KeyringService string `yaml:"keyring_service,omitempty"`
	KeyName        string `yaml:"key_name,omitempty"`
	Debug          bool   `yaml:"debug,omitempty"`
	NoColor        bool   `yaml:"no_color,omitempty"`
}

// Load reads and parses the credops.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if c.Optional {
				c.Definition = &Definition{}
				return nil
			}
			return errors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a credops.yaml, or drop --config to run with the defaults",
			}
		}
		return errors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return errors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	// Validate version
	if def.Version != 0 {
		return errors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your credops.yaml file",
		}
	}

	if err := def.validate(); err != nil {
		return err
	}

	c.Definition = &def
	return nil
}

func (d *Definition) validate() error {
	switch d.KeyBackend {
	case "", BackendKeyring, BackendFile:
	default:
		return errors.ConfigError{
			Field:      "key_backend",
			Value:      d.KeyBackend,
			Message:    "unknown master key backend",
			Suggestion: fmt.Sprintf("Use one of: %s, %s", BackendKeyring, BackendFile),
		}
	}
	return nil
}

// DataDir returns the configured data directory, falling back to the
// CREDOPS_DATA_DIR / XDG resolution chain when the file does not set one.
func (c *Config) DataDir() string {
	if c.Definition != nil && c.Definition.DataDir != "" {
		return c.Definition.DataDir
	}
	return storage.DefaultDataDir()
}

// KeyBackend returns the configured master key backend, defaulting to the
// OS keyring.
func (c *Config) KeyBackend() string {
	if c.Definition != nil && c.Definition.KeyBackend != "" {
		return c.Definition.KeyBackend
	}
	return BackendKeyring
}

// KeyringService returns the keyring service name; empty means the
// keystore default.
func (c *Config) KeyringService() string {
	if c.Definition == nil {
		return ""
	}
	return c.Definition.KeyringService
}

// KeyName returns the confidential-store entry name for the master key;
// empty means the codec default.
func (c *Config) KeyName() string {
	if c.Definition == nil {
		return ""
	}
	return c.Definition.KeyName
}

// Debug reports whether the file enables debug logging.
func (c *Config) Debug() bool {
	return c.Definition != nil && c.Definition.Debug
}

// NoColor reports whether the file disables colored output.
func (c *Config) NoColor() bool {
	return c.Definition != nil && c.Definition.NoColor
}
