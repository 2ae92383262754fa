// Package cache cleans up after interrupted downloads and reports what the
// package cache and sync directory hold.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/gopill/internal/logger"
	gperrors "github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/lock"
	"github.com/glorpus-work/gopill/pkg/model"
	"github.com/glorpus-work/gopill/pkg/pacmanconf"
)

const (
	// ControlFileExt is the extension aria2c uses for its resume state.
	ControlFileExt = ".aria2"

	packageMarker = ".pkg.tar"
)

// ErrCacheClean is returned when there's an error cleaning the cache.
var ErrCacheClean = fmt.Errorf("failed to clean cache")

// DefaultManager implements the Manager interface for cache operations.
type DefaultManager struct{}

// NewManager creates a new cache manager.
func NewManager() *DefaultManager {
	return &DefaultManager{}
}

// Targets returns the sync directory, guarded by the database lock, and each
// package cache, guarded by its cache lock.
func Targets(conf *pacmanconf.Config) []Target {
	targets := []Target{{
		Directory: conf.SyncDir(),
		LockPath:  filepath.Join(conf.DBPath, lock.DatabaseFile),
		LockLabel: lock.DatabaseLabel,
	}}
	for _, dir := range conf.CacheDirs {
		targets = append(targets, Target{
			Directory: dir,
			LockPath:  filepath.Join(dir, lock.CacheFile),
			LockLabel: lock.CacheLabel,
		})
	}
	return targets
}

// Clean removes leftover aria2 control files from each target while holding
// the target's lock. Directories that do not exist are skipped.
func (cm *DefaultManager) Clean(targets []Target) (*CleanResult, error) {
	result := &CleanResult{}

	for _, target := range targets {
		if _, err := os.Stat(target.Directory); errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Skipping missing directory", logger.Fields{"directory": target.Directory})
			continue
		}

		logger.Info("Cleaning directory", logger.Fields{"directory": target.Directory})
		err := lock.With(target.LockPath, target.LockLabel, func() error {
			return cleanControlFiles(target.Directory, result)
		})
		if err != nil {
			return result, err
		}
	}

	logger.Debug("Cleaning complete", logger.Fields{"removed": len(result.Removed)})
	return result, nil
}

func cleanControlFiles(dir string, result *CleanResult) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ControlFileExt))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheClean, err)
	}

	for _, path := range matches {
		info, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCacheClean, err)
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			logger.Error("Failed to remove control file", logger.Fields{"path": path, "error": err})
			return fmt.Errorf("%w: %w", ErrCacheClean, err)
		}
		result.Removed = append(result.Removed, path)
		result.TotalFreed += info.Size()
		logger.Debug("Removed control file", logger.Fields{"path": path})
	}
	return nil
}

// GetInfo returns information about each directory. Missing directories
// report zero files.
func (cm *DefaultManager) GetInfo(dirs []string) ([]Info, error) {
	infos := make([]Info, 0, len(dirs))
	for _, dir := range dirs {
		info, err := dirInfo(dir)
		if err != nil {
			return nil, gperrors.Wrapf(err, "failed to get cache info for %s", dir)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func dirInfo(dir string) (Info, error) {
	info := Info{Directory: dir}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return info, err
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		fi, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return info, err
		}

		name := entry.Name()
		info.TotalFiles++
		info.TotalSize += fi.Size()
		switch {
		case strings.HasSuffix(name, ControlFileExt):
			info.ControlFiles++
		case strings.HasSuffix(name, model.SignatureExt):
			info.Signatures++
		case strings.Contains(name, packageMarker):
			info.PackageFiles++
			info.PackageSize += fi.Size()
		}
	}
	return info, nil
}
