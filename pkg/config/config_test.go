package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/fsutil"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test default values
	assert.Equal(t, DefaultPacmanPath, cfg.Pacman.Path)
	assert.Equal(t, DefaultPacmanConfig, cfg.Pacman.Config)
	assert.Equal(t, DefaultAria2Path, cfg.Aria2.Path)
	assert.Equal(t, DefaultRsyncPath, cfg.Rsync.Path)
	assert.Empty(t, cfg.Rsync.Servers)
	assert.Contains(t, cfg.Rsync.OfficialRepositories, "core")
	assert.Equal(t, 10*time.Second, cfg.Pacserve.Timeout.Std())
	assert.Equal(t, "info", cfg.Settings.LogLevel)
	assert.Equal(t, "auto", cfg.Settings.Color)
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfigDoesNotShareSlices(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rsync.OfficialRepositories[0] = "changed"

	assert.Equal(t, "core", DefaultOfficialRepositories[0])
}

func TestLoadConfigYAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "gopill.yaml")

	configContent := `aria2:
  args: ["--max-connection-per-server=4"]
rsync:
  servers:
    - rsync://mirror.example.org/archlinux/$repo/os/$arch
  db_only: true
pacserve:
  server: http://localhost:15678
  timeout: 3s
settings:
  log_level: DEBUG
hooks:
  post_download: [/etc/gopill/notify.tengo]`

	require.NoError(t, os.WriteFile(configPath, []byte(configContent), fsutil.FileModeDefault))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"--max-connection-per-server=4"}, cfg.Aria2.Args)
	assert.Equal(t, DefaultAria2Path, cfg.Aria2.Path, "unset keys keep their defaults")
	assert.Len(t, cfg.Rsync.Servers, 1)
	assert.True(t, cfg.Rsync.DBOnly)
	assert.Equal(t, "http://localhost:15678", cfg.Pacserve.Server)
	assert.Equal(t, 3*time.Second, cfg.Pacserve.Timeout.Std())
	assert.Equal(t, "debug", cfg.Settings.LogLevel)
	assert.Equal(t, []string{"/etc/gopill/notify.tengo"}, cfg.Hooks.PostDownload)
}

func TestLoadConfigJSONC(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "gopill.json")

	configContent := `{
  // comments and trailing commas are accepted
  "pacman": {"config": "/tmp/pacman.conf"},
  "rsync": {
    "servers": ["rsync://a.example.org/$repo/os/$arch"],
  },
  "pacserve": {"timeout": "250ms"},
}`

	require.NoError(t, os.WriteFile(configPath, []byte(configContent), fsutil.FileModeDefault))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/pacman.conf", cfg.Pacman.Config)
	assert.Equal(t, DefaultPacmanPath, cfg.Pacman.Path)
	assert.Equal(t, []string{"rsync://a.example.org/$repo/os/$arch"}, cfg.Rsync.Servers)
	assert.Equal(t, 250*time.Millisecond, cfg.Pacserve.Timeout.Std())
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig("")
	require.ErrorIs(t, err, errors.ErrEmptyConfigPath)

	tempDir := t.TempDir()
	bad := filepath.Join(tempDir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("settings: [unclosed"), fsutil.FileModeDefault))
	_, err = LoadConfig(bad)
	require.ErrorIs(t, err, errors.ErrConfigParse)

	badJSON := filepath.Join(tempDir, "bad.json")
	require.NoError(t, os.WriteFile(badJSON, []byte(`{"pacserve": {"timeout": "soon"}}`), fsutil.FileModeDefault))
	_, err = LoadConfig(badJSON)
	require.ErrorIs(t, err, errors.ErrConfigParse)

	invalid := filepath.Join(tempDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("settings:\n  log_level: loud\n"), fsutil.FileModeDefault))
	_, err = LoadConfig(invalid)
	require.ErrorIs(t, err, errors.ErrConfigValidation)
}

func TestSaveConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rsync.Servers = []string{"rsync://mirror.example.org/arch/$repo/os/$arch"}
	cfg.Pacserve.Server = "http://peer:15678"
	cfg.Pacserve.Timeout = Duration(5 * time.Second)

	configPath := filepath.Join(t.TempDir(), "nested", "gopill.yaml")
	require.NoError(t, cfg.SaveConfig(configPath))

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	require.ErrorIs(t, cfg.SaveConfig(""), errors.ErrEmptyConfigPath)
}

func TestToYAML(t *testing.T) {
	data, err := DefaultConfig().ToYAML()
	require.NoError(t, err)

	assert.Contains(t, string(data), "aria2:\n  path: /usr/bin/aria2c")
	assert.Contains(t, string(data), "timeout: 10s")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty pacman path", func(c *Config) { c.Pacman.Path = "" }, true},
		{"empty aria2 path", func(c *Config) { c.Aria2.Path = "" }, true},
		{"empty rsync path without servers", func(c *Config) { c.Rsync.Path = "" }, false},
		{"empty rsync path with servers", func(c *Config) {
			c.Rsync.Path = ""
			c.Rsync.Servers = []string{"rsync://m.example.org/$repo"}
		}, true},
		{"http mirror", func(c *Config) { c.Rsync.Servers = []string{"http://m.example.org/$repo"} }, true},
		{"negative timeout", func(c *Config) { c.Pacserve.Timeout = Duration(-time.Second) }, true},
		{"pacserve without scheme", func(c *Config) { c.Pacserve.Server = "localhost:15678" }, true},
		{"pacserve https", func(c *Config) { c.Pacserve.Server = "https://peer.example.org" }, false},
		{"bad log level", func(c *Config) { c.Settings.LogLevel = "trace" }, true},
		{"bad color", func(c *Config) { c.Settings.Color = "sometimes" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrConfigValidation)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
