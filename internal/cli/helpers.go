package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/config"
	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/fsutil"
	"github.com/glorpus-work/gopill/pkg/orchestrator"
	"github.com/glorpus-work/gopill/pkg/pacmanconf"
	"github.com/glorpus-work/gopill/pkg/process"
)

// These variables will be set by the main package
var (
	ConfigPath       *string
	PacmanConfigPath *string
	DBPath           *string
	RootDir          *string
	CacheDirs        *[]string
	Arch             *string
	Verbose          *bool
	Quiet            *bool
)

// newRunner starts the external tools. Tests replace it to silence children.
var newRunner = func() process.Runner { return process.NewExecRunner() }

func stringFlag(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func boolFlag(p *bool) bool {
	return p != nil && *p
}

// loadConfig reads the gopill configuration and initialises logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Settings.LogLevel
	switch {
	case boolFlag(Verbose):
		level = "debug"
	case boolFlag(Quiet):
		level = "error"
	}
	logger.InitLogger(level, logger.FormatAuto)
	return cfg, nil
}

func getConfigPath() string {
	if p := stringFlag(ConfigPath); p != "" {
		return p
	}

	defaultPath, err := fsutil.DefaultConfigPath()
	if err != nil {
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}

// loadPacmanConfig reads pacman.conf with the command-line overrides applied.
func loadPacmanConfig(cfg *config.Config) (*pacmanconf.Config, error) {
	path := stringFlag(PacmanConfigPath)
	if path == "" {
		path = cfg.Pacman.Config
	}

	ov := pacmanconf.Overrides{
		Root:   stringFlag(RootDir),
		DBPath: stringFlag(DBPath),
		Arch:   stringFlag(Arch),
	}
	if CacheDirs != nil {
		ov.CacheDirs = *CacheDirs
	}

	pc, err := pacmanconf.Load(path, ov)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded pacman configuration", logger.Fields{
		"path":   pc.Path,
		"dbpath": pc.DBPath,
		"arch":   pc.Arch(),
	})
	return pc, nil
}

// loadAll loads both configurations.
func loadAll() (*config.Config, *pacmanconf.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	pc, err := loadPacmanConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pc, nil
}

func newOrchestrator(cfg *config.Config, pc *pacmanconf.Config) (*orchestrator.Orchestrator, error) {
	orch, err := orchestrator.New(cfg, pc, newRunner())
	if err != nil {
		return nil, err
	}
	orch.Progress = orchestrator.Progress{OnEvent: printEvent}
	return orch, nil
}

func printEvent(e orchestrator.Event) {
	if boolFlag(Quiet) {
		return
	}
	fmt.Printf(":: %s: %s\n", e.Phase, e.Msg)
}

func logReport(msg string, report *orchestrator.Report) {
	if report == nil {
		return
	}
	fields := logger.Fields{
		"mode":      report.Mode.String(),
		"directory": report.OutputDir,
		"artifacts": report.Total(),
	}
	if report.MirrorFallback {
		fields["mirror_fallback"] = true
	}
	if len(report.Passthrough) > 0 {
		fields["passthrough"] = len(report.Passthrough)
	}
	logger.Success(msg, fields)
}

// useColor resolves settings.color against pacman's Color option and stdout.
func useColor(cfg *config.Config, pc *pacmanconf.Config) bool {
	switch cfg.Settings.Color {
	case "always":
		return true
	case "never":
		return false
	}
	return pc.Color && term.IsTerminal(int(os.Stdout.Fd()))
}

// runPacman runs pacman with args connected to the terminal and turns a
// non-zero status into an error.
func runPacman(cmd *cobra.Command, cfg *config.Config, args []string) error {
	status, err := process.Run(cmd.Context(), newRunner(), process.Command{
		Label:       "pacman",
		Path:        cfg.Pacman.Path,
		Args:        args,
		Interactive: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to run pacman")
	}
	if status != 0 {
		return &ExitStatusError{Label: "pacman", Status: status}
	}
	return nil
}

// ExitStatusError carries the status of a pass-through child so main can
// exit with it.
type ExitStatusError struct {
	Label  string
	Status int
}

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Label, e.Status)
}
