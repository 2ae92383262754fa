// Package syncdb resolves download targets against pacman's sync databases.
// It reads the compressed <repo>.db archives in the sync directory and the
// installed-package database, and turns the result into a download queue.
package syncdb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/glorpus-work/gopill/internal/logger"
	gperrors "github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/model"
	"github.com/glorpus-work/gopill/pkg/pacmanconf"
)

// Package is one entry of a sync database.
type Package struct {
	Name       string
	Version    string
	Filename   string
	Repository string
	Checksum   string
	Size       int64
	Groups     []string
	Signed     bool
}

// Resolver answers name lookups from the sync databases of one pacman
// configuration. Databases are read lazily on first use.
type Resolver struct {
	conf *pacmanconf.Config
	arch string

	mu     sync.Mutex
	loaded bool
	repos  map[string]map[string]Package
}

// New creates a Resolver for conf.
func New(conf *pacmanconf.Config) *Resolver {
	return &Resolver{conf: conf, arch: conf.Arch()}
}

// Databases returns one artifact per configured repository, in configuration order.
func (r *Resolver) Databases(files bool) []model.DatabaseArtifact {
	dbs := make([]model.DatabaseArtifact, 0, len(r.conf.Repositories))
	for _, repo := range r.conf.Repositories {
		dbs = append(dbs, model.DatabaseArtifact{
			Name:            repo.Name,
			Servers:         repo.ExpandedServers(r.arch),
			WantsSignature:  repo.SigLevel.Database != pacmanconf.Never,
			WantsFilesIndex: files,
		})
	}
	return dbs
}

// Resolve looks up the requested targets and, for a sysupgrade, every
// outdated installed package. Targets are "name", "repo/name" or a group name.
func (r *Resolver) Resolve(ctx context.Context, req model.ResolveRequest) (model.Resolution, error) {
	var res model.Resolution
	if err := r.load(ctx); err != nil {
		return res, err
	}

	for _, target := range req.Targets {
		pkgs := r.lookup(target)
		if len(pkgs) == 0 {
			res.Unresolved = append(res.Unresolved, target)
			continue
		}
		for _, p := range pkgs {
			res.Packages = append(res.Packages, r.artifact(p))
		}
	}

	if req.Sysupgrade {
		upgrades, foreign, err := r.sysupgrade()
		if err != nil {
			return res, err
		}
		for _, p := range upgrades {
			res.Packages = append(res.Packages, r.artifact(p))
		}
		res.Foreign = foreign
	}

	logger.Debug("Resolved targets", logger.Fields{
		"packages":   len(res.Packages),
		"unresolved": len(res.Unresolved),
		"foreign":    len(res.Foreign),
	})
	return res, nil
}

// BuildQueue resolves req into a download queue. Unresolved targets are a
// resolution error; foreign packages are carried as passthrough entries.
func (r *Resolver) BuildQueue(ctx context.Context, req model.ResolveRequest) (*model.DownloadQueue, error) {
	q := model.NewDownloadQueue()
	if req.Databases {
		for _, db := range r.Databases(req.Files) {
			q.AddDatabase(db)
		}
		return q, nil
	}

	res, err := r.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(res.Unresolved) > 0 {
		return nil, fmt.Errorf("%w: target not found: %s", gperrors.ErrResolve, strings.Join(res.Unresolved, ", "))
	}
	for _, p := range res.All() {
		q.AddPackage(p)
	}
	for _, name := range res.Foreign {
		q.AddPassthrough(name)
	}
	return q, nil
}

func (r *Resolver) load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}

	repos := make(map[string]map[string]Package, len(r.conf.Repositories))
	for _, repo := range r.conf.Repositories {
		dbPath := filepath.Join(r.conf.SyncDir(), repo.Name+model.DatabaseExt)
		if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s (refresh the databases first)", gperrors.ErrDatabaseNotFound, dbPath)
		}

		pkgs := map[string]Package{}
		err := readArchive(ctx, dbPath, func(d Desc) error {
			p := packageFromDesc(d, repo.Name)
			if p.Name != "" {
				pkgs[p.Name] = p
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %w", gperrors.ErrResolve, err)
		}
		repos[repo.Name] = pkgs
		logger.Debug("Loaded sync database", logger.Fields{"repository": repo.Name, "packages": len(pkgs)})
	}

	r.repos = repos
	r.loaded = true
	return nil
}

func packageFromDesc(d Desc, repo string) Package {
	size, _ := strconv.ParseInt(d.First("CSIZE"), 10, 64)
	return Package{
		Name:       d.First("NAME"),
		Version:    d.First("VERSION"),
		Filename:   d.First("FILENAME"),
		Repository: repo,
		Checksum:   d.First("SHA256SUM"),
		Size:       size,
		Groups:     d["GROUPS"],
		Signed:     d.First("PGPSIG") != "",
	}
}

// lookup resolves a target to packages. Plain names search repositories in
// configuration order; a name that matches no package may name a group.
func (r *Resolver) lookup(target string) []Package {
	repoName, name, qualified := strings.Cut(target, "/")
	if !qualified {
		name, repoName = target, ""
	}

	for _, repo := range r.conf.Repositories {
		if repoName != "" && repo.Name != repoName {
			continue
		}
		if p, ok := r.repos[repo.Name][name]; ok {
			return []Package{p}
		}
	}

	for _, repo := range r.conf.Repositories {
		if repoName != "" && repo.Name != repoName {
			continue
		}
		if members := r.groupMembers(repo.Name, name); len(members) > 0 {
			return members
		}
	}
	return nil
}

func (r *Resolver) groupMembers(repo, group string) []Package {
	for _, ignored := range r.conf.IgnoreGroup {
		if ignored == group {
			return nil
		}
	}
	var members []Package
	for _, p := range r.repos[repo] {
		for _, g := range p.Groups {
			if g == group && !r.conf.Ignored(p.Name) {
				members = append(members, p)
				break
			}
		}
	}
	sortPackages(members)
	return members
}

// find returns the first repository's entry for name.
func (r *Resolver) find(name string) (Package, bool) {
	for _, repo := range r.conf.Repositories {
		if p, ok := r.repos[repo.Name][name]; ok {
			return p, true
		}
	}
	return Package{}, false
}

func (r *Resolver) artifact(p Package) model.PackageArtifact {
	repo, _ := r.conf.Repository(p.Repository)
	urls := make([]string, 0, len(repo.Servers))
	for _, server := range repo.ExpandedServers(r.arch) {
		urls = append(urls, model.JoinURL(server, p.Filename))
	}
	return model.PackageArtifact{
		Name:           p.Name,
		Version:        p.Version,
		Filename:       p.Filename,
		Repository:     p.Repository,
		Checksum:       p.Checksum,
		Size:           p.Size,
		URLs:           urls,
		WantsSignature: repo.SigLevel.Package != pacmanconf.Never && !p.Signed,
	}
}
