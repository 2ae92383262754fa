package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/model"
)

type syncOptions struct {
	refresh      int
	sysupgrade   int
	downloadOnly bool
	targets      []string
}

// downloads reports whether the options ask for any package.
func (o syncOptions) downloads() bool {
	return o.sysupgrade > 0 || len(o.targets) > 0
}

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync [targets...]",
		Short: "Download packages, then install them with pacman",
		Long: `Refresh the sync databases, download the requested packages into the
pacman cache and hand over to "pacman -S" for the installation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.targets = args
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().CountVarP(&opts.refresh, "refresh", "y", "refresh the sync databases (twice to force)")
	cmd.Flags().CountVarP(&opts.sysupgrade, "sysupgrade", "u", "upgrade installed packages")
	cmd.Flags().BoolVarP(&opts.downloadOnly, "downloadonly", "w", false, "download packages without installing them")

	return cmd
}

func runSync(cmd *cobra.Command, opts syncOptions) error {
	cfg, pc, err := loadAll()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg, pc)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if opts.refresh > 0 {
		report, err := orch.RefreshDatabases(ctx, false, opts.refresh > 1)
		if err != nil {
			return err
		}
		logReport("Databases refreshed", report)
	}

	if !opts.downloads() {
		return nil
	}

	report, err := orch.DownloadPackages(ctx, model.ResolveRequest{
		Targets:    opts.targets,
		Sysupgrade: opts.sysupgrade > 0,
	})
	if err != nil {
		return err
	}
	logReport("Packages downloaded", report)

	if opts.downloadOnly {
		return nil
	}
	args := pacmanSyncArgs(opts, useColor(cfg, pc))
	logger.Debug("Handing over to pacman", logger.Fields{"args": strings.Join(args, " ")})
	return runPacman(cmd, cfg, args)
}

// pacmanSyncArgs builds the pacman command line that installs what sync
// downloaded. The databases are already fresh, so --refresh is not repeated.
func pacmanSyncArgs(opts syncOptions, color bool) []string {
	args := []string{"--sync"}
	for range opts.sysupgrade {
		args = append(args, "--sysupgrade")
	}
	args = append(args, pacmanOverrideArgs()...)
	if color {
		args = append(args, "--color", "always")
	} else {
		args = append(args, "--color", "never")
	}
	return append(args, opts.targets...)
}

// pacmanOverrideArgs forwards the pacman.conf overrides given to gopill.
func pacmanOverrideArgs() []string {
	var args []string
	if p := stringFlag(PacmanConfigPath); p != "" {
		args = append(args, "--config", p)
	}
	if p := stringFlag(DBPath); p != "" {
		args = append(args, "--dbpath", p)
	}
	if p := stringFlag(RootDir); p != "" {
		args = append(args, "--root", p)
	}
	if CacheDirs != nil {
		for _, dir := range *CacheDirs {
			args = append(args, "--cachedir", dir)
		}
	}
	if p := stringFlag(Arch); p != "" {
		args = append(args, "--arch", p)
	}
	return args
}

// NewRefreshCmd creates the refresh command.
func NewRefreshCmd() *cobra.Command {
	var (
		force bool
		files bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Download the sync databases",
		Long:  "Download the sync databases of every configured repository into <DBPath>/sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRefresh(cmd, files, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "download even if the databases are up to date")
	cmd.Flags().BoolVar(&files, "files", false, "download the .files databases instead of .db")

	return cmd
}

func runRefresh(cmd *cobra.Command, files, force bool) error {
	cfg, pc, err := loadAll()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg, pc)
	if err != nil {
		return err
	}
	report, err := orch.RefreshDatabases(cmd.Context(), files, force)
	if err != nil {
		return err
	}
	logReport("Databases refreshed", report)
	return nil
}

// NewDownloadCmd creates the download command.
func NewDownloadCmd() *cobra.Command {
	var sysupgrade bool

	cmd := &cobra.Command{
		Use:   "download [targets...]",
		Short: "Download packages into the pacman cache",
		Long:  "Download the requested packages into the first pacman cache directory without installing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, model.ResolveRequest{Targets: args, Sysupgrade: sysupgrade})
		},
	}

	cmd.Flags().BoolVarP(&sysupgrade, "sysupgrade", "u", false, "download every outdated installed package")

	return cmd
}

func runDownload(cmd *cobra.Command, req model.ResolveRequest) error {
	if len(req.Targets) == 0 && !req.Sysupgrade {
		logger.Info("Nothing to download")
		return nil
	}
	cfg, pc, err := loadAll()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg, pc)
	if err != nil {
		return err
	}
	report, err := orch.DownloadPackages(cmd.Context(), req)
	if err != nil {
		return err
	}
	logReport("Packages downloaded", report)
	return nil
}
