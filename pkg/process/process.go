// Package process starts the external tools gopill drives (aria2c, rsync,
// pacman) and reports their exit statuses. Children are never killed through
// the context: once started they run to completion and must be awaited.
package process

//go:generate mockgen -source=process.go -destination=mocks/mock_process.go -package=mocks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/glorpus-work/gopill/internal/logger"
)

// SignaledStatus is reported for children terminated by a signal.
const SignaledStatus = -1

// Command describes one child process.
type Command struct {
	Label       string   // short name used in logs and errors, e.g. "aria2c"
	Path        string   // executable
	Args        []string // arguments, without the executable
	Dir         string   // working directory; empty means the current one
	Stdin       []byte   // fed to the child's standard input when non-nil
	Interactive bool     // connect the child to this process's stdin
}

// Argv returns the executable followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Process is a started child.
type Process interface {
	// Wait blocks until the child exits and returns its exit status. The
	// error is non-nil only when the status could not be determined.
	Wait() (int, error)
	// Command returns the command the child was started from.
	Command() Command
}

// Runner starts child processes.
type Runner interface {
	Start(ctx context.Context, cmd Command) (Process, error)
}

// ExecRunner starts children with os/exec and streams their output.
// Children may run concurrently; writes from their output copies into
// Stdout and Stderr are serialized unless the writer is an *os.File, which
// the children inherit directly.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer

	mu sync.Mutex
}

// NewExecRunner returns a runner that forwards child output to this process's
// stdout and stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Start launches cmd without waiting for it. The context only gates the
// launch itself.
func (r *ExecRunner) Start(ctx context.Context, cmd Command) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("not starting %s: %w", cmd.Label, err)
	}
	if cmd.Path == "" {
		return nil, fmt.Errorf("no executable configured for %s", cmd.Label)
	}

	c := exec.Command(cmd.Path, cmd.Args...) //nolint:gosec // the executable comes from the configuration
	c.Dir = cmd.Dir
	c.Stdout = r.guard(r.Stdout)
	c.Stderr = r.guard(r.Stderr)
	switch {
	case cmd.Stdin != nil:
		c.Stdin = bytes.NewReader(cmd.Stdin)
	case cmd.Interactive:
		c.Stdin = os.Stdin
	}

	logger.Debug("Starting process", logger.Fields{"label": cmd.Label, "command": cmd.String(), "dir": cmd.Dir})
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Label, err)
	}
	return &execProcess{cmd: cmd, c: c}, nil
}

// guard wraps w so that concurrent children share it safely. Stdout and
// Stderr share one mutex because they are often the same writer.
func (r *ExecRunner) guard(w io.Writer) io.Writer {
	if w == nil {
		return nil
	}
	if _, ok := w.(*os.File); ok {
		return w
	}
	return &lockedWriter{mu: &r.mu, w: w}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

type execProcess struct {
	cmd    Command
	c      *exec.Cmd
	once   sync.Once
	status int
	err    error
}

func (p *execProcess) Command() Command { return p.cmd }

// Wait is safe to call more than once; later calls return the first result.
func (p *execProcess) Wait() (int, error) {
	p.once.Do(func() {
		err := p.c.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			p.status = 0
		case errors.As(err, &exitErr):
			p.status = exitErr.ExitCode()
			if p.status < 0 {
				p.status = SignaledStatus
			}
		default:
			p.status = SignaledStatus
			p.err = fmt.Errorf("waiting for %s: %w", p.cmd.Label, err)
		}
		logger.Debug("Process exited", logger.Fields{"label": p.cmd.Label, "status": p.status})
	})
	return p.status, p.err
}

// WaitAll joins every process and returns their statuses in order. All
// processes are awaited even when one of them fails to report a status.
func WaitAll(procs []Process) ([]int, error) {
	statuses := make([]int, len(procs))
	var g errgroup.Group
	for i, p := range procs {
		g.Go(func() error {
			status, err := p.Wait()
			statuses[i] = status
			return err
		})
	}
	return statuses, g.Wait()
}

// Run starts cmd and waits for it.
func Run(ctx context.Context, r Runner, cmd Command) (int, error) {
	p, err := r.Start(ctx, cmd)
	if err != nil {
		return SignaledStatus, err
	}
	return p.Wait()
}
