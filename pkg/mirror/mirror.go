// Package mirror replicates artifacts from rsync mirrors. Every configured
// endpoint is tried in order; an endpoint that only reports transient
// failures hands over to the next one, anything else aborts.
package mirror

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/model"
	"github.com/glorpus-work/gopill/pkg/process"
)

const (
	// MaxArgs is rsync's hard limit on the number of command-line arguments.
	MaxArgs = 1000
	// Label identifies rsync in logs and errors.
	Label = "rsync"
)

// transientStatuses are the rsync exit statuses that mean the endpoint is
// unreachable or stale: protocol incompatibility, client-server startup error,
// socket I/O, data stream, partial transfer, vanished source files and
// timeout. See rsync(1).
var transientStatuses = map[int]struct{}{2: {}, 5: {}, 10: {}, 12: {}, 23: {}, 24: {}, 30: {}}

// Transient reports whether an rsync exit status warrants trying the next endpoint.
func Transient(status int) bool {
	_, ok := transientStatuses[status]
	return ok
}

// Outcome is the non-fatal result of a replication.
type Outcome int

const (
	// Satisfied means one endpoint delivered the whole queue.
	Satisfied Outcome = iota
	// Exhausted means every endpoint failed transiently; the queue still has to be fetched.
	Exhausted
)

func (o Outcome) String() string {
	if o == Satisfied {
		return "satisfied"
	}
	return "exhausted"
}

// ExitFailure is one split command's unclassified exit status.
type ExitFailure struct {
	Command int
	Status  int
}

// FatalError reports an endpoint that failed with a status that is neither
// success nor transient.
type FatalError struct {
	Endpoint string
	Failures []ExitFailure
}

func (e *FatalError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("rsync process %d exited with %d", f.Command, f.Status))
	}
	return fmt.Sprintf("%s: %s (server: %s)", errors.ErrMirrorFatal, strings.Join(parts, ", "), e.Endpoint)
}

// Unwrap returns ErrMirrorFatal so callers can match with errors.Is.
func (e *FatalError) Unwrap() error { return errors.ErrMirrorFatal }

// Executor builds and runs rsync commands against the configured endpoints.
type Executor struct {
	Path      string
	Args      []string
	Endpoints []string // rsync:// URLs whose path may contain $repo and $arch
	Arch      string
	MaxArgs   int
	Runner    process.Runner
}

// New returns an executor with the default argument ceiling.
func New(path string, args, endpoints []string, arch string, runner process.Runner) *Executor {
	return &Executor{Path: path, Args: args, Endpoints: endpoints, Arch: arch, MaxArgs: MaxArgs, Runner: runner}
}

// Configured reports whether at least one endpoint exists.
func (e *Executor) Configured() bool {
	return e != nil && len(e.Endpoints) > 0
}

// Commands translates q into rsync commands for one endpoint. Each command
// carries a disjoint slice of the path list, stays within the argument
// ceiling, and names the endpoint host on its first path.
func (e *Executor) Commands(endpoint string, q *model.DownloadQueue, outputDir string) ([]process.Command, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidPath, "invalid mirror %q: %v", endpoint, err)
	}
	if outputDir == "" {
		outputDir = "."
	}
	template := strings.ReplaceAll(strings.TrimPrefix(u.Path, "/"), "$arch", e.Arch)

	var paths []string
	addPath := func(repo, filename string, sig bool) {
		p := "::" + path.Join(strings.ReplaceAll(template, "$repo", repo), filename)
		paths = append(paths, p)
		if sig {
			paths = append(paths, p+model.SignatureExt)
		}
	}
	for _, db := range q.Databases() {
		addPath(db.Name, db.Filename(), db.WantsSignature)
	}
	for _, pkg := range q.Packages() {
		addPath(pkg.Repository, pkg.Filename, pkg.WantsSignature)
	}

	base := append([]string{"-aL"}, e.Args...)
	ceiling := e.MaxArgs
	if ceiling <= 0 {
		ceiling = MaxArgs
	}
	// The executable and the output directory count against the ceiling too.
	limit := ceiling - (len(base) + 2)
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d arguments leave no room for paths", errors.ErrArgumentCeiling, ceiling)
	}

	var cmds []process.Command
	for start := 0; start < len(paths); start += limit {
		chunk := append([]string(nil), paths[start:min(start+limit, len(paths))]...)
		chunk[0] = u.Host + chunk[0]
		args := make([]string, 0, len(base)+len(chunk)+1)
		args = append(args, base...)
		args = append(args, chunk...)
		args = append(args, outputDir)
		cmds = append(cmds, process.Command{Label: Label, Path: e.Path, Args: args, Dir: outputDir})
	}
	return cmds, nil
}

// Download runs the endpoint loop for q. Endpoints are tried strictly in
// configured order and all split commands of an endpoint are awaited before
// its outcome is judged.
func (e *Executor) Download(ctx context.Context, q *model.DownloadQueue, outputDir string) (Outcome, error) {
	if q.Empty() {
		return Satisfied, nil
	}
	for _, endpoint := range e.Endpoints {
		cmds, err := e.Commands(endpoint, q, outputDir)
		if err != nil {
			return Exhausted, err
		}

		logger.Debug("Replicating from mirror", logger.Fields{"endpoint": endpoint, "commands": len(cmds), "artifacts": q.Len()})
		statuses, err := e.runAll(ctx, cmds)
		if err != nil {
			return Exhausted, err
		}

		failures, transient := classify(statuses)
		switch {
		case len(failures) > 0:
			fatal := &FatalError{Endpoint: endpoint, Failures: failures}
			logger.Error("Mirror replication failed", logger.Fields{"endpoint": endpoint, "error": fatal.Error()})
			return Exhausted, fatal
		case transient:
			logger.Warn("Mirror unavailable, trying next endpoint", logger.Fields{"endpoint": endpoint, "statuses": statuses})
			continue
		default:
			logger.Debug("Mirror replication complete", logger.Fields{"endpoint": endpoint})
			return Satisfied, nil
		}
	}
	logger.Warn("All mirrors failed transiently, falling back to segmented download", logger.Fields{"artifacts": q.Len()})
	return Exhausted, nil
}

// runAll starts every command, then joins all of those that started. A start
// failure is reported only after the started ones have exited.
func (e *Executor) runAll(ctx context.Context, cmds []process.Command) ([]int, error) {
	procs := make([]process.Process, 0, len(cmds))
	var startErr error
	for _, cmd := range cmds {
		p, err := e.Runner.Start(ctx, cmd)
		if err != nil {
			startErr = fmt.Errorf("%w: %w", errors.ErrTransport, err)
			break
		}
		procs = append(procs, p)
	}
	statuses, waitErr := process.WaitAll(procs)
	if startErr != nil {
		return nil, startErr
	}
	if waitErr != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrTransport, waitErr)
	}
	return statuses, nil
}

// classify splits statuses into unclassified failures and whether any
// transient failure occurred. Successes count for neither.
func classify(statuses []int) (failures []ExitFailure, transient bool) {
	for i, status := range statuses {
		switch {
		case status == 0:
		case Transient(status):
			transient = true
		default:
			failures = append(failures, ExitFailure{Command: i, Status: status})
		}
	}
	return failures, transient
}
