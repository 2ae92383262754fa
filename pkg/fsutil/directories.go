// Package fsutil holds the filesystem helpers shared by the transports: directory
// creation, atomic copies with detached signatures and checksum checks.
package fsutil

import (
	"os"
	"path/filepath"
)

// EnsureDir creates path and its parents with DirModeDefault.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the directory that will hold filePath.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}
