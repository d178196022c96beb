package config

import (
	"os"

	sserrors "github.com/systmms/secretsync/internal/errors"
	"github.com/systmms/secretsync/internal/logging"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "secretsync.yaml"

// Config holds the runtime configuration.
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the secretsync.yaml structure.
type Definition struct {
	Version    int    `yaml:"version"`
	Project    string `yaml:"project,omitempty"`
	SourceRoot string `yaml:"sourceRoot,omitempty"`
	AgeKeyFile string `yaml:"ageKeyFile,omitempty"`
	// Replication lists the locations new secrets replicate to. Empty
	// means automatic replication.
	Replication   []string `yaml:"replication,omitempty"`
	MaxConcurrent int      `yaml:"maxConcurrent,omitempty"`
}

// Load reads and parses the secretsync.yaml file. A missing file at the
// default path is not an error: the tool runs on flags and environment
// alone. A missing file at an explicitly chosen path is.
func (c *Config) Load() error {
	path := c.Path
	explicit := path != "" && path != DefaultPath
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if !explicit {
				c.Definition = &Definition{}
				return nil
			}
			return sserrors.ConfigError{
				Field:      "config",
				Value:      path,
				Message:    "configuration file not found",
				Suggestion: "Check the --config path, or omit it to use defaults",
			}
		}
		return sserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return sserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}

	if def.Version != 0 {
		return sserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your secretsync.yaml file",
		}
	}

	c.Definition = &def
	return nil
}

// ResolveProject returns the project scope: the flag value if set,
// otherwise the config file, otherwise common GCP environment variables.
// An empty result is valid; the remote client then relies on ambient
// credentials to determine the project.
func (c *Config) ResolveProject(flag string) string {
	if flag != "" {
		return flag
	}
	if c.Definition != nil && c.Definition.Project != "" {
		return c.Definition.Project
	}
	for _, env := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return ""
}

// SourceRoot returns the directory holding secret definition files.
func (c *Config) SourceRoot(flag string) string {
	if flag != "" {
		return flag
	}
	if c.Definition != nil && c.Definition.SourceRoot != "" {
		return c.Definition.SourceRoot
	}
	return "secrets"
}

// AgeKeyFile returns the configured identity file path, if any.
func (c *Config) AgeKeyFile() string {
	if c.Definition == nil {
		return ""
	}
	return c.Definition.AgeKeyFile
}

// Replication returns the configured replication locations for newly
// created secrets. Empty means automatic replication.
func (c *Config) Replication() []string {
	if c.Definition == nil {
		return nil
	}
	return c.Definition.Replication
}

// MaxConcurrent returns the per-run bound on concurrent reconciliations.
func (c *Config) MaxConcurrent() int {
	if c.Definition != nil && c.Definition.MaxConcurrent > 0 {
		return c.Definition.MaxConcurrent
	}
	return 10
}
