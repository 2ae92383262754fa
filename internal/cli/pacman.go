package cli

import (
	"github.com/spf13/cobra"
)

// NewPacmanCmd creates the pacman pass-through command.
func NewPacmanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pacman -- [pacman arguments...]",
		Short: "Run pacman with the given arguments",
		Long:  "Run the configured pacman executable with the arguments after -- unchanged and exit with its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPacmanPassthrough(cmd, args)
		},
	}

	return cmd
}

func runPacmanPassthrough(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runPacman(cmd, cfg, args)
}
