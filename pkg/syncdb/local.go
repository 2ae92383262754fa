package syncdb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/glorpus-work/gopill/internal/logger"
	gperrors "github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/model"
)

// Installed is one entry of the local database.
type Installed struct {
	Name    string
	Version string
}

// InstalledPackages reads <DBPath>/local/*/desc, sorted by name. A missing
// local database means nothing is installed.
func InstalledPackages(localDir string) ([]Installed, error) {
	entries, err := os.ReadDir(localDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gperrors.ErrResolve, err)
	}

	var installed []Installed
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		descPath := filepath.Join(localDir, entry.Name(), descFile)
		f, err := os.Open(descPath)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", gperrors.ErrResolve, err)
		}
		desc, err := ParseDesc(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", gperrors.ErrResolve, descPath, err)
		}
		if name := desc.First("NAME"); name != "" {
			installed = append(installed, Installed{Name: name, Version: desc.First("VERSION")})
		}
	}
	sort.Slice(installed, func(i, j int) bool { return installed[i].Name < installed[j].Name })
	return installed, nil
}

// sysupgrade returns sync packages newer than their installed versions and
// the names of installed packages that no repository carries.
func (r *Resolver) sysupgrade() ([]Package, []string, error) {
	installed, err := InstalledPackages(r.conf.LocalDir())
	if err != nil {
		return nil, nil, err
	}

	var upgrades []Package
	var foreign []string
	for _, local := range installed {
		p, ok := r.find(local.Name)
		if !ok {
			foreign = append(foreign, local.Name)
			continue
		}
		if model.CompareVersions(p.Version, local.Version) <= 0 {
			continue
		}
		if r.conf.Ignored(local.Name) {
			logger.Warn("Skipping ignored package upgrade", logger.Fields{
				"package":   local.Name,
				"installed": local.Version,
				"available": p.Version,
			})
			continue
		}
		upgrades = append(upgrades, p)
	}
	return upgrades, foreign, nil
}

func sortPackages(pkgs []Package) {
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
}
