// Package config persists arkv's destinations and SSH settings as a TOML
// file under the user's configuration directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/ehamiter/arkv"
)

const (
	// DefaultPort is the SSH port used when a destination omits one.
	DefaultPort = 22

	// DefaultKeyPath is the SSH key suggested during setup.
	DefaultKeyPath = "~/.ssh/id_ed25519"

	configFileName = "config.toml"

	// envConfigDir overrides the config directory, mainly for tests.
	envConfigDir = "ARKV_CONFIG_DIR"
)

// Destination is one configured upload target as stored on disk.
type Destination struct {
	Name       string `mapstructure:"name" toml:"name"`
	Host       string `mapstructure:"host" toml:"host"`
	Port       int    `mapstructure:"port" toml:"port"`
	Username   string `mapstructure:"username" toml:"username"`
	RemotePath string `mapstructure:"remote_path" toml:"remote_path"`
	Password   string `mapstructure:"password" toml:"password,omitempty"`
}

// Config is the root of the persisted configuration file.
type Config struct {
	SSHKeyPath   string        `mapstructure:"ssh_key_path" toml:"ssh_key_path"`
	Destinations []Destination `mapstructure:"destinations" toml:"destinations"`
}

// Dir returns the directory holding the configuration file.
func Dir() (string, error) {
	if dir := os.Getenv(envConfigDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "arkv"), nil
}

// Path returns the full path of the configuration file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Exists reports whether a configuration file is present.
func Exists() bool {
	path, err := Path()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads and parses the configuration file.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Save writes the configuration file, creating the directory if needed.
// The file is written 0600 because it may contain passwords.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// applyDefaults sets default values for unspecified options.
func (c *Config) applyDefaults() {
	for i := range c.Destinations {
		if c.Destinations[i].Port == 0 {
			c.Destinations[i].Port = DefaultPort
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Destinations) == 0 {
		return fmt.Errorf("at least one destination must be configured")
	}

	seen := make(map[string]struct{}, len(c.Destinations))

	for i, d := range c.Destinations {
		if d.Name == "" {
			return fmt.Errorf("destination %d: name is required", i)
		}
		if _, exists := seen[d.Name]; exists {
			return fmt.Errorf("destination %d: duplicate name %q", i, d.Name)
		}
		seen[d.Name] = struct{}{}

		if d.Host == "" {
			return fmt.Errorf("destination %q: host is required", d.Name)
		}
		if d.Username == "" {
			return fmt.Errorf("destination %q: username is required", d.Name)
		}
		if d.RemotePath == "" {
			return fmt.Errorf("destination %q: remote_path is required", d.Name)
		}
		if d.Password == "" && c.SSHKeyPath == "" {
			return fmt.Errorf("destination %q: no password set and no ssh_key_path configured", d.Name)
		}
	}

	return nil
}

// FindDestination returns the destination with the given name.
func (c *Config) FindDestination(name string) (Destination, bool) {
	for _, d := range c.Destinations {
		if d.Name == name {
			return d, true
		}
	}
	return Destination{}, false
}

// Resolve maps a stored destination to the engine's connection settings.
// A stored password selects password authentication; otherwise the shared
// SSH key path applies.
func (c *Config) Resolve(d Destination) arkv.Destination {
	dest := arkv.Destination{
		Name:       d.Name,
		Host:       d.Host,
		Port:       d.Port,
		Username:   d.Username,
		RemoteBase: d.RemotePath,
		Password:   d.Password,
	}
	if d.Password == "" {
		dest.KeyPath = c.SSHKeyPath
	}
	return dest.WithDefaults()
}
