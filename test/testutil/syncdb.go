package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mholt/archives"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/gopill/pkg/fsutil"
)

// DBEntry describes one package for a generated sync or local database.
type DBEntry struct {
	Name     string
	Version  string
	Checksum string
	Groups   []string
	Signed   bool
}

// Filename is the package file name pacman would use for the entry.
func (e DBEntry) Filename() string {
	return fmt.Sprintf("%s-%s-x86_64.pkg.tar.zst", e.Name, e.Version)
}

func (e DBEntry) desc() string {
	var sb strings.Builder
	section := func(name string, values ...string) {
		sb.WriteString("%" + name + "%\n")
		for _, v := range values {
			sb.WriteString(v + "\n")
		}
		sb.WriteString("\n")
	}
	section("FILENAME", e.Filename())
	section("NAME", e.Name)
	section("VERSION", e.Version)
	section("CSIZE", "1024")
	if e.Checksum != "" {
		section("SHA256SUM", e.Checksum)
	}
	if len(e.Groups) > 0 {
		section("GROUPS", e.Groups...)
	}
	if e.Signed {
		section("PGPSIG", "iQEzBAABCAAdFiEE")
	}
	return sb.String()
}

func writeDescTree(t *testing.T, dir string, entries []DBEntry) {
	t.Helper()
	for _, e := range entries {
		entryDir := filepath.Join(dir, e.Name+"-"+e.Version)
		require.NoError(t, fsutil.EnsureDir(entryDir))
		require.NoError(t, os.WriteFile(filepath.Join(entryDir, "desc"), []byte(e.desc()), fsutil.FileModeDefault))
	}
}

// WriteSyncDB writes a gzip-compressed tar sync database to path.
func WriteSyncDB(t *testing.T, path string, entries ...DBEntry) {
	t.Helper()
	ctx := context.Background()

	tree := t.TempDir()
	writeDescTree(t, tree, entries)

	files, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		tree + string(os.PathSeparator): "",
	})
	require.NoError(t, err)

	require.NoError(t, fsutil.EnsureFileDir(path))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = out.Close() }()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}
	require.NoError(t, format.Archive(ctx, out, files))
}

// WriteLocalDB writes an installed-package database under localDir.
func WriteLocalDB(t *testing.T, localDir string, entries ...DBEntry) {
	t.Helper()
	writeDescTree(t, localDir, entries)
}
