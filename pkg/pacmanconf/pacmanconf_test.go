package pacmanconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/fsutil"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), fsutil.FileModeDefault))
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mirrorlist"), `## Worldwide
Server = https://geo.mirror.example.org/$repo/os/$arch
#Server = https://disabled.example.org/$repo/os/$arch
Server = https://backup.example.org/archlinux/$repo/os/$arch
`)
	conf := filepath.Join(dir, "pacman.conf")
	writeFile(t, conf, `[options]
DBPath      = /srv/pacman/db/
CacheDir    = /srv/pacman/cache/
CacheDir    = /mnt/shared/cache/
Architecture = auto
IgnorePkg   = linux linux-headers
IgnorePkg   = nvidia-*
IgnoreGroup = gnome
Color
CheckSpace
SigLevel    = Required DatabaseOptional
LocalFileSigLevel = Optional

[core]
Include = `+filepath.Join(dir, "mirrorlist")+`

[extra]
SigLevel = PackageOptional DatabaseNever TrustAll
Server = file:///srv/local/$repo
Include = `+filepath.Join(dir, "mirrorlist")+`

[custom]
SigLevel = Never
Server = https://custom.example.org/$arch
`)
	return conf
}

func TestLoad(t *testing.T) {
	orig := hostMachine
	hostMachine = func() string { return "x86_64" }
	t.Cleanup(func() { hostMachine = orig })

	cfg, err := Load(writeConfig(t), Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "/srv/pacman/db/", cfg.DBPath)
	assert.Equal(t, "/srv/pacman/db/sync", cfg.SyncDir())
	assert.Equal(t, "/srv/pacman/db/local", cfg.LocalDir())
	assert.Equal(t, []string{"/srv/pacman/cache/", "/mnt/shared/cache/"}, cfg.CacheDirs)
	assert.Equal(t, "x86_64", cfg.Arch())
	assert.Equal(t, []string{"linux", "linux-headers", "nvidia-*"}, cfg.IgnorePkg)
	assert.Equal(t, []string{"gnome"}, cfg.IgnoreGroup)
	assert.True(t, cfg.Color)
	assert.Equal(t, DefaultSigLevel, cfg.SigLevel)

	require.Len(t, cfg.Repositories, 3)
	assert.Equal(t, "core", cfg.Repositories[0].Name)
	assert.Equal(t, "extra", cfg.Repositories[1].Name)
	assert.Equal(t, "custom", cfg.Repositories[2].Name)

	core, ok := cfg.Repository("core")
	require.True(t, ok)
	assert.Equal(t, []string{
		"https://geo.mirror.example.org/core/os/x86_64",
		"https://backup.example.org/archlinux/core/os/x86_64",
	}, core.ExpandedServers(cfg.Arch()))
	assert.Equal(t, SigLevel{Package: Required, Database: Optional}, core.SigLevel)

	extra, ok := cfg.Repository("extra")
	require.True(t, ok)
	assert.Equal(t, "file:///srv/local/extra", extra.ExpandedServers("x86_64")[0])
	assert.Len(t, extra.Servers, 3)
	assert.Equal(t, SigLevel{Package: Optional, Database: Never}, extra.SigLevel)

	custom, _ := cfg.Repository("custom")
	assert.Equal(t, SigLevel{Package: Never, Database: Never}, custom.SigLevel)

	_, ok = cfg.Repository("multilib")
	assert.False(t, ok)
}

func TestLoadDefaults(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "pacman.conf")
	writeFile(t, conf, "[options]\nArchitecture = aarch64\n")

	cfg, err := Load(conf, Overrides{})
	require.NoError(t, err)

	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, []string{DefaultCacheDir}, cfg.CacheDirs)
	assert.Equal(t, "aarch64", cfg.Arch())
	assert.False(t, cfg.Color)
	assert.Empty(t, cfg.Repositories)
}

func TestLoadOverrides(t *testing.T) {
	conf := writeConfig(t)

	cfg, err := Load(conf, Overrides{Root: "/mnt/chroot", CacheDirs: []string{"/tmp/cache"}, Arch: "armv7h"})
	require.NoError(t, err)
	assert.Equal(t, "/mnt/chroot", cfg.RootDir)
	assert.Equal(t, "/mnt/chroot/srv/pacman/db", cfg.DBPath)
	assert.Equal(t, []string{"/tmp/cache"}, cfg.CacheDirs)
	assert.Equal(t, "armv7h", cfg.Arch())

	cfg, err = Load(conf, Overrides{Root: "/mnt/chroot", DBPath: "/var/lib/other"})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/other", cfg.DBPath, "an explicit dbpath is not rebased")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.conf"), Overrides{})
	require.ErrorIs(t, err, errors.ErrPacmanConfig)

	conf := filepath.Join(t.TempDir(), "pacman.conf")
	writeFile(t, conf, "[core]\nInclude = /nonexistent/gopill/mirrorlist\n")
	_, err = Load(conf, Overrides{})
	require.ErrorIs(t, err, errors.ErrPacmanConfig)

	// Unmatched globs are not an error.
	writeFile(t, conf, "[core]\nInclude = /nonexistent/gopill/*.conf\n")
	_, err = Load(conf, Overrides{})
	require.NoError(t, err)
}

func TestLoadIncludeCycle(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "pacman.conf")
	writeFile(t, conf, "[core]\nInclude = "+conf+"\n")

	_, err := Load(conf, Overrides{})
	require.ErrorIs(t, err, errors.ErrPacmanConfig)
}

func TestIgnored(t *testing.T) {
	cfg := &Config{IgnorePkg: []string{"linux", "nvidia-*"}}

	assert.True(t, cfg.Ignored("linux"))
	assert.True(t, cfg.Ignored("nvidia-utils"))
	assert.False(t, cfg.Ignored("linux-firmware"))
}

func TestSigLevelApply(t *testing.T) {
	tests := []struct {
		directive string
		want      SigLevel
	}{
		{"", DefaultSigLevel},
		{"Never", SigLevel{Never, Never}},
		{"Optional TrustAll", SigLevel{Optional, Optional}},
		{"PackageRequired DatabaseNever", SigLevel{Required, Never}},
		{"Never PackageRequired", SigLevel{Required, Never}},
		{"DatabaseRequired", SigLevel{Required, Required}},
		{"PackageTrustedOnly", DefaultSigLevel},
	}

	for _, tt := range tests {
		t.Run(tt.directive, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultSigLevel.Apply(tt.directive))
		})
	}
}
