package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/gopill/internal/cli"
)

var (
	configPath       string
	pacmanConfigPath string
	dbPath           string
	rootDir          string
	cacheDirs        []string
	arch             string
	verbose          bool
	quiet            bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		var exitErr *cli.ExitStatusError
		if errors.As(err, &exitErr) && exitErr.Status > 0 {
			os.Exit(exitErr.Status)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gopill",
		Short: "Parallel and segmented downloads for pacman",
		Long: `gopill speeds up pacman sync operations by downloading with:
- rsync replication from official mirrors
- aria2c segmented downloads from every configured server
- a pacserve peer cache on the local network`,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "gopill config file path (default: auto-detect)")
	cmd.PersistentFlags().StringVar(&pacmanConfigPath, "pacman-config", "", "pacman config file path (default: from gopill config)")
	cmd.PersistentFlags().StringVarP(&dbPath, "dbpath", "b", "", "override the pacman database path")
	cmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "override the installation root")
	cmd.PersistentFlags().StringArrayVar(&cacheDirs, "cachedir", nil, "override the package cache directory (repeatable)")
	cmd.PersistentFlags().StringVar(&arch, "arch", "", "override the architecture")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only report errors")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Set up CLI pkg variables
	cli.ConfigPath = &configPath
	cli.PacmanConfigPath = &pacmanConfigPath
	cli.DBPath = &dbPath
	cli.RootDir = &rootDir
	cli.CacheDirs = &cacheDirs
	cli.Arch = &arch
	cli.Verbose = &verbose
	cli.Quiet = &quiet

	// Add subcommands
	cmd.AddCommand(
		cli.NewSyncCmd(),
		cli.NewRefreshCmd(),
		cli.NewDownloadCmd(),
		cli.NewCleanCmd(),
		cli.NewCacheCmd(),
		cli.NewConfigCmd(),
		cli.NewPacmanCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
