package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted when a token is absent from the
// config file. Tokens in files tend to leak into version control.
const (
	EnvSourceToken      = "DBMIGRATE_SOURCE_TOKEN"
	EnvDestinationToken = "DBMIGRATE_DESTINATION_TOKEN"
)

// Workspace is one environment's connection settings.
type Workspace struct {
	Host  string `yaml:"host"`
	Token string `yaml:"token"`
}

// Config is the file-based configuration. Command-line flags override
// the corresponding fields after loading.
type Config struct {
	Source      Workspace `yaml:"source"`
	Destination Workspace `yaml:"destination"`

	// Cloud selects the destination platform flavor, "aws" or "azure".
	// Only AWS workspaces take per-object role assignments.
	Cloud string `yaml:"cloud"`

	// Groups restricts export scope to the named groups.
	Groups []string `yaml:"groups"`

	Parallelism int  `yaml:"parallelism"`
	MapSPByName bool `yaml:"map_sp_by_name"`
}

// LoadConfig reads a yaml config file and applies environment token
// fallbacks. A missing path yields an empty config: everything can
// also come from flags and environment.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Cloud: "aws"}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if cfg.Source.Token == "" {
		cfg.Source.Token = os.Getenv(EnvSourceToken)
	}
	if cfg.Destination.Token == "" {
		cfg.Destination.Token = os.Getenv(EnvDestinationToken)
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	return cfg, nil
}

// ApplyRoles reports whether the destination flavor supports per-object
// role assignment.
func (c *Config) ApplyRoles() bool {
	return c.Cloud == "aws"
}

// ValidateCloud rejects unknown flavor values early, before any API
// call depends on the distinction.
func (c *Config) ValidateCloud() error {
	switch c.Cloud {
	case "aws", "azure":
		return nil
	default:
		return fmt.Errorf("invalid cloud %q: must be aws or azure", c.Cloud)
	}
}

// RequireSource checks the settings an export run needs.
func (c *Config) RequireSource() error {
	if c.Source.Host == "" {
		return fmt.Errorf("source host is not configured")
	}
	if c.Source.Token == "" {
		return fmt.Errorf("source token is not configured (set source.token or %s)", EnvSourceToken)
	}
	return nil
}

// RequireDestination checks the settings an import run needs.
func (c *Config) RequireDestination() error {
	if c.Destination.Host == "" {
		return fmt.Errorf("destination host is not configured")
	}
	if c.Destination.Token == "" {
		return fmt.Errorf("destination token is not configured (set destination.token or %s)", EnvDestinationToken)
	}
	return nil
}
