package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/glorpus-work/gopill/internal/cli.Version=...".
var (
	Version   = "0.1.0"
	BuildDate = ""
	GitCommit = ""
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the gopill version",
		Long:  "Print the gopill release, the commit and date it was built from, and the Go toolchain.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			writeVersion(cmd.OutOrStdout(), buildSettings())
		},
	}
}

// buildSettings returns the vcs settings embedded by the Go toolchain.
func buildSettings() map[string]string {
	settings := map[string]string{}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

func writeVersion(w io.Writer, settings map[string]string) {
	commit, date := GitCommit, BuildDate
	if commit == "" {
		commit = settings["vcs.revision"]
		if settings["vcs.modified"] == "true" {
			commit += "-dirty"
		}
	}
	if date == "" {
		date = settings["vcs.time"]
	}

	fmt.Fprintf(w, "gopill %s (%s)\n", Version, runtime.Version())
	if commit != "" {
		fmt.Fprintf(w, "commit: %s\n", commit)
	}
	if date != "" {
		fmt.Fprintf(w, "built:  %s\n", date)
	}
}
