package cli

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/config"
)

// NewConfigCmd creates the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  "View and create the gopill configuration",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective gopill configuration and the repositories read from pacman.conf",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration file")

	return cmd
}

func runConfigShow(*cobra.Command, []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := cfg.ToYAML()
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	pc, err := loadPacmanConfig(cfg)
	if err != nil {
		logger.Warn("Skipping pacman repositories", logger.Fields{"error": err})
		return nil
	}

	fmt.Printf("\nRepositories (%d) from %s:\n", len(pc.Repositories), pc.Path)
	tabWriter := tabwriter.NewWriter(os.Stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "REPOSITORY\tSERVERS\tTRANSPORT")
	for _, repo := range pc.Repositories {
		transport := "aria2c"
		if len(cfg.Rsync.Servers) > 0 && slices.Contains(cfg.Rsync.OfficialRepositories, repo.Name) {
			transport = "rsync"
		}
		_, _ = fmt.Fprintf(tabWriter, "%s\t%d\t%s\n", repo.Name, len(repo.Servers), transport)
	}
	return tabWriter.Flush()
}

func runConfigInit(force bool) error {
	configPath := getConfigPath()
	if configPath == "" {
		return fmt.Errorf("no configuration path available, use --config")
	}

	// Check if config file already exists
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := config.DefaultConfig().SaveConfig(configPath); err != nil {
		return fmt.Errorf("failed to save default configuration: %w", err)
	}

	logger.Success("Configuration file created", logger.Fields{"path": configPath})
	return nil
}
