package orchestrator

import (
	"github.com/glorpus-work/gopill/pkg/aria2"
	"github.com/glorpus-work/gopill/pkg/config"
	"github.com/glorpus-work/gopill/pkg/hooks"
	"github.com/glorpus-work/gopill/pkg/mirror"
	"github.com/glorpus-work/gopill/pkg/pacmanconf"
	"github.com/glorpus-work/gopill/pkg/peercache"
	"github.com/glorpus-work/gopill/pkg/process"
	"github.com/glorpus-work/gopill/pkg/router"
	"github.com/glorpus-work/gopill/pkg/syncdb"
)

// New assembles an orchestrator from the gopill and pacman configurations.
// Hook scripts are read here, so a missing script fails before any download.
func New(cfg *config.Config, pc *pacmanconf.Config, runner process.Runner) (*Orchestrator, error) {
	scripts, err := hooks.Load(cfg.Hooks.PreDownload, cfg.Hooks.PostDownload)
	if err != nil {
		return nil, err
	}

	rt := &router.Router{
		MirrorConfigured:     len(cfg.Rsync.Servers) > 0,
		MirrorDatabasesOnly:  cfg.Rsync.DBOnly,
		OfficialRepositories: cfg.Rsync.OfficialRepositories,
		CacheDirs:            pc.CacheDirs,
	}
	if cfg.Pacserve.Server != "" {
		rt.PeerCache = &peercache.Resolver{
			Client:    peercache.NewHTTPClient(cfg.Pacserve.Timeout.Std()),
			Server:    cfg.Pacserve.Server,
			CacheDirs: pc.CacheDirs,
		}
	}

	o := &Orchestrator{
		Resolver: syncdb.New(pc),
		Router:   rt,
		Mirror:   mirror.New(cfg.Rsync.Path, cfg.Rsync.Args, cfg.Rsync.Servers, pc.Arch(), runner),
		Aria2:    aria2.New(cfg.Aria2.Path, cfg.Aria2.Args, runner),
		Scripts:  scripts,
		DBPath:   pc.DBPath,
	}
	if len(pc.CacheDirs) > 0 {
		o.CacheDir = pc.CacheDirs[0]
	}
	return o, nil
}
