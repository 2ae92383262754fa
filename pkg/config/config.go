// Package config provides the gopill configuration: the paths and arguments
// of the external tools, the rsync mirrors, the peer-cache server, logging and
// hooks. A Config is built once per invocation from the defaults overlaid by a
// YAML or JSON(C) file and is not modified afterwards.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/fsutil"
)

// Config represents the application configuration.
type Config struct {
	Pacman   PacmanConfig   `yaml:"pacman" json:"pacman"`
	Aria2    Aria2Config    `yaml:"aria2" json:"aria2"`
	Rsync    RsyncConfig    `yaml:"rsync" json:"rsync"`
	Pacserve PacserveConfig `yaml:"pacserve" json:"pacserve"`
	Settings Settings       `yaml:"settings" json:"settings"`
	Hooks    HooksConfig    `yaml:"hooks" json:"hooks"`
}

// PacmanConfig locates pacman and its configuration file.
type PacmanConfig struct {
	Path   string `yaml:"path" json:"path"`
	Config string `yaml:"config" json:"config"`
}

// Aria2Config configures the segmented downloader.
type Aria2Config struct {
	Path string   `yaml:"path" json:"path"`
	Args []string `yaml:"args" json:"args"`
}

// RsyncConfig configures mirror replication.
type RsyncConfig struct {
	Path string   `yaml:"path" json:"path"`
	Args []string `yaml:"args" json:"args"`
	// Servers are rsync:// URLs tried in order. "$repo" and "$arch" in the
	// path are substituted per artifact.
	Servers []string `yaml:"servers" json:"servers"`
	// DBOnly restricts mirror replication to sync databases.
	DBOnly bool `yaml:"db_only" json:"db_only"`
	// OfficialRepositories are the repositories the mirrors carry.
	OfficialRepositories []string `yaml:"official_repositories" json:"official_repositories"`
}

// PacserveConfig configures the peer-cache service.
type PacserveConfig struct {
	Server  string   `yaml:"server,omitempty" json:"server,omitempty"`
	Timeout Duration `yaml:"timeout" json:"timeout"`
}

// Settings represents general application settings.
type Settings struct {
	LogLevel string `yaml:"log_level" json:"log_level"` // debug, info, warn, error
	Color    string `yaml:"color" json:"color"`         // auto, always, never
}

// HooksConfig lists tengo scripts run around each download.
type HooksConfig struct {
	PreDownload  []string `yaml:"pre_download,omitempty" json:"pre_download,omitempty"`
	PostDownload []string `yaml:"post_download,omitempty" json:"post_download,omitempty"`
}

// Default configuration values.
const (
	DefaultPacmanPath   = "/usr/bin/pacman"
	DefaultPacmanConfig = "/etc/pacman.conf"
	DefaultAria2Path    = "/usr/bin/aria2c"
	DefaultRsyncPath    = "/usr/bin/rsync"

	// DefaultPacserveTimeout is the default timeout for peer-cache searches.
	DefaultPacserveTimeout = 10 * time.Second

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultOfficialRepositories are the repositories carried by the Arch Linux mirrors.
var DefaultOfficialRepositories = []string{
	"core", "core-testing",
	"extra", "extra-testing",
	"multilib", "multilib-testing",
	"gnome-unstable", "kde-unstable",
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pacman: PacmanConfig{Path: DefaultPacmanPath, Config: DefaultPacmanConfig},
		Aria2:  Aria2Config{Path: DefaultAria2Path, Args: []string{}},
		Rsync: RsyncConfig{
			Path:                 DefaultRsyncPath,
			Args:                 []string{},
			Servers:              []string{},
			OfficialRepositories: append([]string(nil), DefaultOfficialRepositories...),
		},
		Pacserve: PacserveConfig{Timeout: Duration(DefaultPacserveTimeout)},
		Settings: Settings{LogLevel: "info", Color: "auto"},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the defaults.
// Files ending in .json or .jsonc are read as JSON with comments; anything
// else as YAML.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidPath, err.Error())
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}

	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".json", ".jsonc":
		return ParseJSON(data)
	default:
		return ParseYAML(data)
	}
}

// ParseYAML overlays YAML data on the defaults and validates the result.
func ParseYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrConfigParse, err)
	}
	return cfg.finish()
}

// ParseJSON overlays JSON data, which may carry comments and trailing
// commas, on the defaults and validates the result.
func ParseJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrConfigParse, err)
	}
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	c.Settings.LogLevel = strings.ToLower(c.Settings.LogLevel)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveConfig writes the configuration as YAML, replacing path atomically.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	data, err := c.ToYAML()
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidPath, err.Error())
	}
	if err := fsutil.EnsureFileDir(absPath); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	tempPath := absPath + ".tmp"
	if err := os.WriteFile(tempPath, data, fsutil.FileModeDefault); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "failed to replace config file")
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	var sb strings.Builder
	encoder := yaml.NewEncoder(&sb)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}
	return []byte(sb.String()), nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if c.Pacman.Path == "" {
		return fmt.Errorf("%w: pacman.path cannot be empty", errors.ErrConfigValidation)
	}
	if c.Aria2.Path == "" {
		return fmt.Errorf("%w: aria2.path cannot be empty", errors.ErrConfigValidation)
	}
	if err := validateRsync(c.Rsync); err != nil {
		return err
	}
	if err := validatePacserve(c.Pacserve); err != nil {
		return err
	}
	return validateSettings(c.Settings)
}

func validateRsync(r RsyncConfig) error {
	if len(r.Servers) > 0 && r.Path == "" {
		return fmt.Errorf("%w: rsync.path cannot be empty when servers are configured", errors.ErrConfigValidation)
	}
	for _, server := range r.Servers {
		u, err := url.Parse(server)
		if err != nil || u.Scheme != "rsync" || u.Host == "" {
			return fmt.Errorf("%w: rsync server %q must be an rsync:// URL", errors.ErrConfigValidation, server)
		}
	}
	return nil
}

func validatePacserve(p PacserveConfig) error {
	if p.Timeout < 0 {
		return fmt.Errorf("%w: pacserve.timeout cannot be negative", errors.ErrConfigValidation)
	}
	if p.Server == "" {
		return nil
	}
	u, err := url.Parse(p.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: pacserve server %q must be an http(s) URL", errors.ErrConfigValidation, p.Server)
	}
	return nil
}

func validateSettings(s Settings) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[s.LogLevel] {
		return fmt.Errorf("%w: invalid log level %q", errors.ErrConfigValidation, s.LogLevel)
	}
	switch s.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("%w: invalid color %q (auto, always, never)", errors.ErrConfigValidation, s.Color)
	}
	return nil
}

// Duration is a time.Duration written as a string such as "10s" in both YAML
// and JSON.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
