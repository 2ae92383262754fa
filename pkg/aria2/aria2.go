// Package aria2 drives aria2c, the segmented downloader, over a metalink
// document fed through its standard input.
package aria2

import (
	"context"
	"fmt"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/metalink"
	"github.com/glorpus-work/gopill/pkg/model"
	"github.com/glorpus-work/gopill/pkg/process"
)

// DefaultLabel identifies aria2c in logs and errors.
const DefaultLabel = "aria2c"

// ControlFileExt is the extension of the control files aria2c leaves next to
// interrupted downloads.
const ControlFileExt = ".aria2"

// nonFatalStatuses are the aria2c exit statuses that do not fail a run:
// success, timeout, resource not found, too many not-found responses and
// aborted-by-speed-limit. See aria2c(1).
var nonFatalStatuses = map[int]struct{}{0: {}, 2: {}, 3: {}, 4: {}, 5: {}}

// NonFatal reports whether an aria2c exit status is acceptable.
func NonFatal(status int) bool {
	_, ok := nonFatalStatuses[status]
	return ok
}

// Mode selects the transfer flags for a dispatch.
type Mode int

const (
	// ModePackages uses aria2c's default segmentation and resume behaviour.
	ModePackages Mode = iota
	// ModeRefresh fetches databases over one connection each and skips unchanged ones.
	ModeRefresh
	// ModeForceRefresh fetches databases over one connection each, unconditionally.
	ModeForceRefresh
)

// ModeFor derives the mode from the call context. force only matters for refreshes.
func ModeFor(isDatabaseRefresh, force bool) Mode {
	switch {
	case isDatabaseRefresh && force:
		return ModeForceRefresh
	case isDatabaseRefresh:
		return ModeRefresh
	default:
		return ModePackages
	}
}

func (m Mode) String() string {
	switch m {
	case ModeRefresh:
		return "refresh"
	case ModeForceRefresh:
		return "force-refresh"
	default:
		return "packages"
	}
}

// Flags returns the command-line flags of the mode.
func (m Mode) Flags() []string {
	switch m {
	case ModeRefresh:
		return []string{
			"--split=1",
			"--continue=false",
			"--remove-control-file=true",
			"--allow-overwrite=true",
			"--conditional-get=true",
		}
	case ModeForceRefresh:
		return []string{
			"--split=1",
			"--continue=false",
			"--remove-control-file=true",
			"--allow-overwrite=true",
			"--conditional-get=false",
		}
	default:
		return nil
	}
}

// ExitError is a fatal aria2c exit status.
type ExitError struct {
	Label  string
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %s exited with %d", errors.ErrDownloadFatal, e.Label, e.Status)
}

// Unwrap returns ErrDownloadFatal so callers can match with errors.Is.
func (e *ExitError) Unwrap() error { return errors.ErrDownloadFatal }

// Executor builds and starts aria2c commands.
type Executor struct {
	Path   string
	Args   []string
	Label  string
	Runner process.Runner
}

// New returns an executor for the aria2c binary at path with extra user args.
func New(path string, args []string, runner process.Runner) *Executor {
	return &Executor{Path: path, Args: args, Label: DefaultLabel, Runner: runner}
}

// WithLabel returns a copy of the executor that reports under label.
func (e *Executor) WithLabel(label string) *Executor {
	c := *e
	c.Label = label
	return &c
}

func (e *Executor) label() string {
	if e.Label == "" {
		return DefaultLabel
	}
	return e.Label
}

// Command builds the aria2c command for q. ok is false when no artifact of q
// has a remote source, in which case there is nothing to run.
func (e *Executor) Command(q *model.DownloadQueue, mode Mode, dir string) (cmd process.Command, ok bool, err error) {
	doc := metalink.FromQueue(q)
	if len(doc.Files) == 0 {
		return process.Command{}, false, nil
	}
	data, err := doc.Marshal()
	if err != nil {
		return process.Command{}, false, err
	}

	args := []string{"--metalink-file=-"}
	args = append(args, e.Args...)
	args = append(args, mode.Flags()...)
	return process.Command{
		Label: e.label(),
		Path:  e.Path,
		Args:  args,
		Dir:   dir,
		Stdin: data,
	}, true, nil
}

// Dispatch starts aria2c for q in dir without waiting for it. A nil handle
// with a nil error means there was nothing to download.
func (e *Executor) Dispatch(ctx context.Context, q *model.DownloadQueue, mode Mode, dir string) (*Handle, error) {
	if q.Empty() {
		return nil, nil
	}
	cmd, ok, err := e.Command(q, mode, dir)
	if err != nil || !ok {
		return nil, err
	}

	logger.Debug("Dispatching segmented download", logger.Fields{
		"label": cmd.Label, "mode": mode.String(), "artifacts": q.Len(), "dir": dir,
	})
	proc, err := e.Runner.Start(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrTransport, err)
	}
	return &Handle{label: cmd.Label, proc: proc}, nil
}

// Handle is a running aria2c.
type Handle struct {
	label string
	proc  process.Process
}

// Label returns the label of the running command.
func (h *Handle) Label() string { return h.label }

// Wait blocks until aria2c exits and classifies its status. A nil handle
// waits for nothing.
func (h *Handle) Wait() error {
	if h == nil {
		return nil
	}
	status, err := h.proc.Wait()
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrTransport, err)
	}
	if !NonFatal(status) {
		logger.Error("Segmented download failed", logger.Fields{"label": h.label, "status": status})
		return &ExitError{Label: h.label, Status: status}
	}
	logger.Debug("Segmented download finished", logger.Fields{"label": h.label, "status": status})
	return nil
}
