// Package config loads the CLI's YAML configuration file: named repository
// connection settings plus a default committer identity, so repeated
// commands don't need --root/--bucket/--name repeated on every invocation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const (
	// DriverLocal selects the backend/local filesystem backend.
	DriverLocal = "local"
	// DriverS3 selects the backend/cloud S3-compatible backend.
	DriverS3 = "s3"

	defaultRepoName = "default"
)

// Config is the root of a parsed configuration file.
type Config struct {
	User  User                   `yaml:"user"`
	Repos map[string]*RepoConfig `yaml:"repos"`
}

// User is the default committer identity attached to new versions when a
// command doesn't override it with --name/--addr.
type User struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address,omitempty"`
}

// RepoConfig names one repository's backend connection settings.
type RepoConfig struct {
	Driver    string `yaml:"driver"` // "local" or "s3"
	Root      string `yaml:"root,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Algorithm string `yaml:"algorithm,omitempty"` // default digest algorithm for new objects
}

// Default returns an empty configuration with a single "default" repo
// pointing at a local directory, used when no config file exists yet.
func Default() *Config {
	return &Config{
		Repos: map[string]*RepoConfig{
			defaultRepoName: {Driver: DriverLocal, Root: "."},
		},
	}
}

// Load reads and parses the YAML configuration file at path. A missing
// file is not an error: it returns Default().
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Repos == nil {
		cfg.Repos = map[string]*RepoConfig{}
	}
	return &cfg, nil
}

// Save writes cfg as YAML to path, creating its parent directory if
// needed.
func Save(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// Repo returns the named repository config, or the "default" entry when
// name is empty.
func (c *Config) Repo(name string) (*RepoConfig, error) {
	if name == "" {
		name = defaultRepoName
	}
	r, ok := c.Repos[name]
	if !ok {
		return nil, fmt.Errorf("no repo named %q in config", name)
	}
	return r, nil
}

// DefaultConfigPath returns the conventional location of the CLI's config
// file under the user's home directory, ~/.ocfl/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ocfl", "config.yaml"), nil
}
