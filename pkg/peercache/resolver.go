package peercache

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/fsutil"
	"github.com/glorpus-work/gopill/pkg/model"
)

// Resolver maps pending packages to peer-cache URLs.
//
// A local pacserve usually serves the very cache directory gopill is about to
// write into. Downloading a file from it would truncate the file while it is
// being read, so every entry served by Server itself is checked against the
// expected checksum first: stale cached copies are deleted and the service is
// asked once more. Entries still inconsistent after that are dropped.
//
// Only CacheDirs[0], the download directory held under the cache lock, is
// repaired. A stale copy in any other cache directory is left in place and
// its entry is dropped.
type Resolver struct {
	Client    Client
	Server    string
	CacheDirs []string
}

// Result is the outcome of one resolution.
type Result struct {
	URLs    map[string]string // filename -> URL, only for pending filenames
	Queries int
	Deleted []string
}

// Resolve queries the service for pending. Service errors are not fatal: they
// are logged and leave every package unresolved. Failing to delete a stale
// cached copy is returned.
func (r *Resolver) Resolve(ctx context.Context, pending []model.PackageArtifact) (Result, error) {
	var res Result
	if r == nil || r.Server == "" || r.Client == nil || len(pending) == 0 {
		return res, nil
	}

	byName := make(map[string]model.PackageArtifact, len(pending))
	for _, p := range pending {
		byName[p.Filename] = p
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	found, ok := r.search(ctx, names, &res)
	if !ok {
		return res, nil
	}

	deleted, err := r.heal(found, byName)
	if err != nil {
		return res, err
	}
	res.Deleted = deleted

	if len(deleted) > 0 {
		found, ok = r.search(ctx, names, &res)
		if !ok {
			return res, nil
		}
	}

	res.URLs = make(map[string]string, len(found))
	for name, url := range found {
		pkg, pendingName := byName[name]
		if !pendingName || url == "" {
			continue
		}
		if r.selfServed(url) {
			if stale, _ := r.staleCopy(pkg); stale != "" {
				logger.Warn("Peer cache still inconsistent after requery, ignoring it for this package",
					logger.Fields{"file": name, "url": url})
				continue
			}
		}
		res.URLs[name] = url
	}
	logger.Debug("Peer cache resolution", logger.Fields{"pending": len(names), "resolved": len(res.URLs), "queries": res.Queries})
	return res, nil
}

func (r *Resolver) search(ctx context.Context, names []string, res *Result) (map[string]string, bool) {
	res.Queries++
	found, err := r.Client.Search(ctx, r.Server, names)
	if err != nil {
		logger.Warn("Peer cache query failed", logger.Fields{"server": r.Server, "error": err.Error()})
		return nil, false
	}
	return found, found != nil
}

// heal deletes stale cached copies of self-served entries.
func (r *Resolver) heal(found map[string]string, byName map[string]model.PackageArtifact) ([]string, error) {
	var deleted []string
	for name, url := range found {
		pkg, ok := byName[name]
		if !ok || !r.selfServed(url) {
			continue
		}
		for {
			stale, err := r.staleCopy(pkg)
			if err != nil {
				return deleted, err
			}
			if stale == "" {
				break
			}
			if !r.writable(stale) {
				logger.Warn("Stale cached copy outside the download cache, leaving it",
					logger.Fields{"path": stale, "file": name})
				break
			}
			if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
				return deleted, errors.Wrapf(err, "failed to remove stale cached copy %s", stale)
			}
			logger.Info("Removed stale cached copy", logger.Fields{"path": stale})
			deleted = append(deleted, stale)
		}
	}
	sort.Strings(deleted)
	return deleted, nil
}

// staleCopy walks the cache directories in order and returns the first cached
// copy of pkg whose digest mismatches, stopping at the first valid one.
// Without a checksum nothing can be judged stale.
func (r *Resolver) staleCopy(pkg model.PackageArtifact) (string, error) {
	if pkg.Checksum == "" {
		return "", nil
	}
	for _, dir := range r.CacheDirs {
		path := filepath.Join(dir, pkg.Filename)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		ok, err := fsutil.ChecksumMatches(path, pkg.Checksum)
		if err != nil {
			return "", errors.Wrapf(err, "failed to verify cached copy %s", path)
		}
		if !ok {
			return path, nil
		}
		return "", nil
	}
	return "", nil
}

// writable reports whether path lies in the locked download cache.
func (r *Resolver) writable(path string) bool {
	return len(r.CacheDirs) > 0 && filepath.Dir(path) == filepath.Clean(r.CacheDirs[0])
}

func (r *Resolver) selfServed(url string) bool {
	return strings.HasPrefix(url, r.Server)
}
