package syncdb

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/model"
	"github.com/glorpus-work/gopill/pkg/pacmanconf"
	"github.com/glorpus-work/gopill/test/testutil"
)

const sum = "9F86D081884C7D659A2FEAA0C55AD015A3BF4F1B2B0B822CD15D6C15B0F00A08"

func newFixture(t *testing.T) (*pacmanconf.Config, *Resolver) {
	t.Helper()
	dbPath := t.TempDir()
	conf := &pacmanconf.Config{
		DBPath:        dbPath,
		Architectures: []string{"x86_64"},
		IgnorePkg:     []string{"linux"},
		Repositories: []pacmanconf.Repository{
			{
				Name:     "core",
				Servers:  []string{"https://a.example.org/$repo/os/$arch", "https://b.example.org/$repo/os/$arch/"},
				SigLevel: pacmanconf.DefaultSigLevel,
			},
			{
				Name:     "extra",
				Servers:  []string{"https://a.example.org/$repo/os/$arch"},
				SigLevel: pacmanconf.SigLevel{Package: pacmanconf.Never, Database: pacmanconf.Never},
			},
		},
	}

	testutil.WriteSyncDB(t, filepath.Join(conf.SyncDir(), "core.db"),
		testutil.DBEntry{Name: "bash", Version: "5.2.037-1", Checksum: sum, Signed: true},
		testutil.DBEntry{Name: "linux", Version: "6.12.1-1"},
		testutil.DBEntry{Name: "vim", Version: "9.1.0-1", Groups: []string{"editors"}},
	)
	testutil.WriteSyncDB(t, filepath.Join(conf.SyncDir(), "extra.db"),
		testutil.DBEntry{Name: "vim", Version: "9.1.1-1", Groups: []string{"editors"}},
		testutil.DBEntry{Name: "nano", Version: "8.2-1", Groups: []string{"editors"}},
		testutil.DBEntry{Name: "emacs", Version: "30.1-1", Groups: []string{"editors"}},
	)
	return conf, New(conf)
}

func TestDatabases(t *testing.T) {
	_, r := newFixture(t)

	dbs := r.Databases(true)
	require.Len(t, dbs, 2)
	assert.Equal(t, "core", dbs[0].Name)
	assert.Equal(t, "core.files", dbs[0].Filename())
	assert.Equal(t, []string{
		"https://a.example.org/core/os/x86_64",
		"https://b.example.org/core/os/x86_64/",
	}, dbs[0].Servers)
	assert.True(t, dbs[0].WantsSignature)
	assert.False(t, dbs[1].WantsSignature)
}

func TestResolve(t *testing.T) {
	_, r := newFixture(t)

	res, err := r.Resolve(context.Background(), model.ResolveRequest{
		Targets: []string{"bash", "extra/vim", "missing", "core/nano"},
	})
	require.NoError(t, err)

	require.Len(t, res.Packages, 2)
	bash := res.Packages[0]
	assert.Equal(t, "bash-5.2.037-1-x86_64.pkg.tar.zst", bash.Filename)
	assert.Equal(t, "core", bash.Repository)
	assert.Equal(t, sum, bash.Checksum)
	assert.Equal(t, int64(1024), bash.Size)
	assert.Equal(t, []string{
		"https://a.example.org/core/os/x86_64/bash-5.2.037-1-x86_64.pkg.tar.zst",
		"https://b.example.org/core/os/x86_64/bash-5.2.037-1-x86_64.pkg.tar.zst",
	}, bash.URLs)
	assert.False(t, bash.WantsSignature, "the database already carries the signature")

	vim := res.Packages[1]
	assert.Equal(t, "extra", vim.Repository)
	assert.Equal(t, "9.1.1-1", vim.Version)
	assert.False(t, vim.WantsSignature)

	assert.Equal(t, []string{"missing", "core/nano"}, res.Unresolved)
	assert.Empty(t, res.Dependencies)
}

func TestResolveRepositoryOrder(t *testing.T) {
	_, r := newFixture(t)

	res, err := r.Resolve(context.Background(), model.ResolveRequest{Targets: []string{"vim"}})
	require.NoError(t, err)
	require.Len(t, res.Packages, 1)
	assert.Equal(t, "core", res.Packages[0].Repository)
	assert.True(t, res.Packages[0].WantsSignature)
}

func TestResolveGroup(t *testing.T) {
	_, r := newFixture(t)

	res, err := r.Resolve(context.Background(), model.ResolveRequest{Targets: []string{"extra/editors"}})
	require.NoError(t, err)
	require.Len(t, res.Packages, 3)
	assert.Equal(t, []string{"emacs", "nano", "vim"},
		[]string{res.Packages[0].Name, res.Packages[1].Name, res.Packages[2].Name})

	res, err = r.Resolve(context.Background(), model.ResolveRequest{Targets: []string{"editors"}})
	require.NoError(t, err)
	require.Len(t, res.Packages, 1, "the first repository carrying the group wins")
	assert.Equal(t, "core", res.Packages[0].Repository)
}

func TestResolveSysupgrade(t *testing.T) {
	conf, r := newFixture(t)
	testutil.WriteLocalDB(t, conf.LocalDir(),
		testutil.DBEntry{Name: "bash", Version: "5.2.026-2"},
		testutil.DBEntry{Name: "linux", Version: "6.11.0-1"},
		testutil.DBEntry{Name: "nano", Version: "8.2-1"},
		testutil.DBEntry{Name: "yay", Version: "12.4.2-1"},
		testutil.DBEntry{Name: "emacs", Version: "1:29.4-1"},
	)

	res, err := r.Resolve(context.Background(), model.ResolveRequest{Sysupgrade: true})
	require.NoError(t, err)

	require.Len(t, res.Packages, 1)
	assert.Equal(t, "bash", res.Packages[0].Name)
	assert.Equal(t, []string{"yay"}, res.Foreign)
}

func TestBuildQueue(t *testing.T) {
	conf, r := newFixture(t)
	testutil.WriteLocalDB(t, conf.LocalDir(), testutil.DBEntry{Name: "paru", Version: "2.0.4-1"})

	q, err := r.BuildQueue(context.Background(), model.ResolveRequest{
		Targets:    []string{"bash", "core/bash", "nano"},
		Sysupgrade: true,
	})
	require.NoError(t, err)
	assert.Len(t, q.Packages(), 2, "duplicates collapse by filename")
	assert.Equal(t, []string{"paru"}, q.Passthrough())

	q, err = r.BuildQueue(context.Background(), model.ResolveRequest{Databases: true})
	require.NoError(t, err)
	assert.Len(t, q.Databases(), 2)
	assert.Empty(t, q.Packages())

	_, err = r.BuildQueue(context.Background(), model.ResolveRequest{Targets: []string{"nope", "nothing"}})
	require.ErrorIs(t, err, errors.ErrResolve)
	assert.Contains(t, err.Error(), "nope, nothing")
}

func TestMissingDatabase(t *testing.T) {
	conf := &pacmanconf.Config{
		DBPath:        t.TempDir(),
		Architectures: []string{"x86_64"},
		Repositories:  []pacmanconf.Repository{{Name: "core"}},
	}

	_, err := New(conf).Resolve(context.Background(), model.ResolveRequest{Targets: []string{"bash"}})
	require.ErrorIs(t, err, errors.ErrDatabaseNotFound)
}

func TestParseDesc(t *testing.T) {
	desc, err := ParseDesc(strings.NewReader("%NAME%\nbash\n\n%DEPENDS%\nglibc\nreadline\n\n%EMPTY%\n"))
	require.NoError(t, err)

	assert.Equal(t, "bash", desc.First("NAME"))
	assert.Equal(t, []string{"glibc", "readline"}, desc["DEPENDS"])
	assert.Contains(t, desc, "EMPTY")
	assert.Equal(t, "", desc.First("EMPTY"))
	assert.Equal(t, "", desc.First("MISSING"))
}

func TestInstalledPackagesMissingDir(t *testing.T) {
	installed, err := InstalledPackages(filepath.Join(t.TempDir(), "local"))
	require.NoError(t, err)
	assert.Empty(t, installed)
}
