// Package pacmanconf reads pacman.conf and the mirror lists it includes. It
// exposes the options gopill needs (database and cache locations, the
// architecture, signature levels) and the ordered list of sync repositories.
package pacmanconf

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
	"gopkg.in/ini.v1"

	"github.com/glorpus-work/gopill/pkg/errors"
)

const (
	// DefaultPath is the system pacman.conf.
	DefaultPath = "/etc/pacman.conf"
	// DefaultDBPath is pacman's database directory when DBPath is unset.
	DefaultDBPath = "/var/lib/pacman/"
	// DefaultCacheDir is pacman's package cache when CacheDir is unset.
	DefaultCacheDir = "/var/cache/pacman/pkg/"
	// ArchAuto asks for the architecture of the running machine.
	ArchAuto = "auto"

	optionsSection  = "options"
	maxIncludeDepth = 10
)

// Config is a parsed pacman configuration.
type Config struct {
	Path          string
	RootDir       string
	DBPath        string
	CacheDirs     []string
	Architectures []string
	IgnorePkg     []string
	IgnoreGroup   []string
	Color         bool
	SigLevel      SigLevel
	Repositories  []Repository
}

// Repository is one sync repository section.
type Repository struct {
	Name     string
	Servers  []string // raw, with $repo and $arch unexpanded
	SigLevel SigLevel
}

// Overrides are command-line values applied on top of the file.
type Overrides struct {
	Root      string
	DBPath    string
	CacheDirs []string
	Arch      string
}

// hostMachine reports the machine name of the running kernel.
var hostMachine = func() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err == nil {
		if m := unix.ByteSliceToString(u.Machine[:]); m != "" {
			return m
		}
	}
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	default:
		return runtime.GOARCH
	}
}

// Load parses the pacman.conf at path, follows its Include directives and
// applies the overrides.
func Load(path string, ov Overrides) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	p := &parser{options: map[string][]string{}, repoIndex: map[string]int{}}
	if err := p.parseFile(path, "", 0); err != nil {
		return nil, err
	}

	cfg := &Config{
		Path:          path,
		RootDir:       p.last(optionsSection, "RootDir", "/"),
		DBPath:        p.last(optionsSection, "DBPath", DefaultDBPath),
		CacheDirs:     p.list(optionsSection, "CacheDir"),
		Architectures: p.list(optionsSection, "Architecture"),
		IgnorePkg:     p.list(optionsSection, "IgnorePkg"),
		IgnoreGroup:   p.list(optionsSection, "IgnoreGroup"),
		Color:         p.has(optionsSection, "Color"),
	}
	if len(cfg.CacheDirs) == 0 {
		cfg.CacheDirs = []string{DefaultCacheDir}
	}

	sig := DefaultSigLevel
	for _, v := range p.options[optionsSection+"\x00SigLevel"] {
		sig = sig.Apply(v)
	}
	cfg.SigLevel = sig

	for _, r := range p.repos {
		repo := Repository{Name: r.name, Servers: r.values["Server"], SigLevel: sig}
		for _, v := range r.values["SigLevel"] {
			repo.SigLevel = repo.SigLevel.Apply(v)
		}
		cfg.Repositories = append(cfg.Repositories, repo)
	}

	cfg.apply(ov)
	return cfg, nil
}

func (c *Config) apply(ov Overrides) {
	if ov.Root != "" {
		c.RootDir = ov.Root
		if ov.DBPath == "" {
			c.DBPath = filepath.Join(ov.Root, strings.TrimPrefix(c.DBPath, "/"))
		}
	}
	if ov.DBPath != "" {
		c.DBPath = ov.DBPath
	}
	if len(ov.CacheDirs) > 0 {
		c.CacheDirs = append([]string(nil), ov.CacheDirs...)
	}
	if ov.Arch != "" {
		c.Architectures = []string{ov.Arch}
	}
}

// Arch returns the primary architecture with "auto" resolved.
func (c *Config) Arch() string {
	if len(c.Architectures) == 0 || c.Architectures[0] == ArchAuto {
		return hostMachine()
	}
	return c.Architectures[0]
}

// SyncDir is where sync databases live.
func (c *Config) SyncDir() string { return filepath.Join(c.DBPath, "sync") }

// LocalDir is the installed-package database.
func (c *Config) LocalDir() string { return filepath.Join(c.DBPath, "local") }

// Repository looks up a repository by name.
func (c *Config) Repository(name string) (Repository, bool) {
	for _, r := range c.Repositories {
		if r.Name == name {
			return r, true
		}
	}
	return Repository{}, false
}

// Ignored reports whether a package name is listed in IgnorePkg. Entries may be globs.
func (c *Config) Ignored(name string) bool {
	for _, pattern := range c.IgnorePkg {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// ExpandedServers returns the repository's servers with $repo and $arch substituted.
func (r Repository) ExpandedServers(arch string) []string {
	out := make([]string, 0, len(r.Servers))
	for _, s := range r.Servers {
		s = strings.ReplaceAll(s, "$repo", r.Name)
		s = strings.ReplaceAll(s, "$arch", arch)
		out = append(out, s)
	}
	return out
}

type repoSection struct {
	name   string
	values map[string][]string
}

type parser struct {
	options   map[string][]string // "section\x00key" for [options]
	repos     []*repoSection
	repoIndex map[string]int
}

func (p *parser) parseFile(path, current string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("%w: include depth exceeded at %s", errors.ErrPacmanConfig, path)
	}

	f, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:   true,
		AllowShadows:       true,
		IgnoreContinuation: true,
		KeyValueDelimiters: "=",
	}, path)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrPacmanConfig, err)
	}

	for _, section := range f.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			// Keys before any header belong to the including section.
			name = current
		}
		for _, key := range section.Keys() {
			for _, value := range key.ValueWithShadows() {
				if key.Name() == "Include" {
					if err := p.include(value, name, depth); err != nil {
						return err
					}
					continue
				}
				if name == "" {
					continue
				}
				p.add(name, key.Name(), value)
			}
		}
	}
	return nil
}

func (p *parser) include(pattern, section string, depth int) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("%w: bad Include pattern %q: %w", errors.ErrPacmanConfig, pattern, err)
	}
	if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
		return fmt.Errorf("%w: included file not found: %s", errors.ErrPacmanConfig, pattern)
	}
	for _, m := range matches {
		if err := p.parseFile(m, section, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) add(section, key, value string) {
	if section == optionsSection {
		k := section + "\x00" + key
		p.options[k] = append(p.options[k], value)
		return
	}
	i, ok := p.repoIndex[section]
	if !ok {
		i = len(p.repos)
		p.repoIndex[section] = i
		p.repos = append(p.repos, &repoSection{name: section, values: map[string][]string{}})
	}
	r := p.repos[i]
	r.values[key] = append(r.values[key], value)
}

func (p *parser) values(section, key string) []string {
	return p.options[section+"\x00"+key]
}

func (p *parser) has(section, key string) bool {
	return len(p.values(section, key)) > 0
}

func (p *parser) last(section, key, def string) string {
	v := p.values(section, key)
	if len(v) == 0 || v[len(v)-1] == "" {
		return def
	}
	return v[len(v)-1]
}

// list flattens whitespace-separated values across repeated keys.
func (p *parser) list(section, key string) []string {
	var out []string
	for _, v := range p.values(section, key) {
		out = append(out, strings.Fields(v)...)
	}
	return out
}
