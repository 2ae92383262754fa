package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/cache"
)

// NewCleanCmd creates the clean command.
func NewCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover download files",
		Long:  "Remove aria2 control files left behind by interrupted downloads in the sync directory and every package cache",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runClean(cache.NewManager())
		},
	}
}

// NewCacheCmd creates the cache command with subcommands
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the package caches",
		Long:  "Show information about and clean the sync directory and package caches",
	}

	cmd.AddCommand(
		NewCleanCmd(),
		newCacheInfoCmd(),
	)

	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show cache information",
		Long:  "Display size and file counts of the sync directory and every package cache",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runCacheInfo(cache.NewManager())
		},
	}

	return cmd
}

func runClean(manager cache.Manager) error {
	_, pc, err := loadAll()
	if err != nil {
		return err
	}

	result, err := manager.Clean(cache.Targets(pc))
	if err != nil {
		return err
	}

	logger.Success("Cleaning completed", logger.Fields{
		"removed":     len(result.Removed),
		"total_freed": humanize.Bytes(uint64(result.TotalFreed)),
	})
	return nil
}

func runCacheInfo(manager cache.Manager) error {
	_, pc, err := loadAll()
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(pc.CacheDirs)+1)
	dirs = append(dirs, pc.SyncDir())
	dirs = append(dirs, pc.CacheDirs...)

	infos, err := manager.GetInfo(dirs)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(w, "DIRECTORY\tSIZE\tFILES\tPACKAGES\tSIGNATURES\tLEFTOVERS")
	for _, info := range infos {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d (%s)\t%d\t%d\n",
			info.Directory,
			humanize.Bytes(uint64(info.TotalSize)),
			info.TotalFiles,
			info.PackageFiles,
			humanize.Bytes(uint64(info.PackageSize)),
			info.Signatures,
			info.ControlFiles,
		)
	}
	return w.Flush()
}
