// Package orchestrator ties resolution, routing and the transports together.
//
// Download resolves the targets, lets the router satisfy what it can from
// local copies, starts the segmented downloader for the generic and
// peer-cache queues, runs the mirror endpoint loop alongside it and hands the
// mirror queue to a second downloader when every mirror failed transiently.
// Every started child is awaited before an error is returned.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/aria2"
	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/fsutil"
	"github.com/glorpus-work/gopill/pkg/hooks"
	"github.com/glorpus-work/gopill/pkg/lock"
	"github.com/glorpus-work/gopill/pkg/mirror"
	"github.com/glorpus-work/gopill/pkg/model"
)

// FallbackLabel names the downloader that takes over the mirror queue.
const FallbackLabel = "aria2c (mirror fallback)"

// Orchestrator ties Resolver, Router and the transport executors together.
type Orchestrator struct {
	Resolver Resolver
	Router   Router
	Mirror   *mirror.Executor
	Aria2    *aria2.Executor
	Scripts  hooks.HookManager // optional pre/post download hooks
	Progress Progress

	DBPath   string // holds the sync directory and db.lck
	CacheDir string // package downloads go here, guarded by cache.lck
}

func (o *Orchestrator) emit(phase, msg string) {
	if o.Progress.OnEvent != nil {
		o.Progress.OnEvent(Event{Phase: phase, Msg: msg})
	}
}

// RefreshDatabases downloads the sync databases into <DBPath>/sync while
// holding the database lock. files selects the .files databases; force
// disables conditional fetching.
func (o *Orchestrator) RefreshDatabases(ctx context.Context, files, force bool) (*Report, error) {
	if o.DBPath == "" {
		return nil, errors.Wrap(errors.ErrInvalidPath, "database path is not set")
	}
	req := model.ResolveRequest{
		Databases: true,
		Files:     files,
		OutputDir: filepath.Join(o.DBPath, "sync"),
	}

	var report *Report
	err := lock.With(filepath.Join(o.DBPath, lock.DatabaseFile), lock.DatabaseLabel, func() error {
		var err error
		report, err = o.Download(ctx, req, true, force)
		return err
	})
	return report, err
}

// DownloadPackages downloads the resolved packages into the cache directory
// while holding its cache lock.
func (o *Orchestrator) DownloadPackages(ctx context.Context, req model.ResolveRequest) (*Report, error) {
	if o.CacheDir == "" {
		return nil, errors.Wrap(errors.ErrInvalidPath, "cache directory is not set")
	}
	req.OutputDir = o.CacheDir
	req.Databases = false

	var report *Report
	err := lock.With(filepath.Join(o.CacheDir, lock.CacheFile), lock.CacheLabel, func() error {
		var err error
		report, err = o.Download(ctx, req, false, false)
		return err
	})
	return report, err
}

// Download fetches everything req names into req.OutputDir. The caller is
// responsible for holding the lock of that directory.
func (o *Orchestrator) Download(ctx context.Context, req model.ResolveRequest, isDatabaseRefresh, force bool) (*Report, error) {
	if o.Resolver == nil || o.Router == nil || o.Aria2 == nil {
		return nil, fmt.Errorf("orchestrator is missing a resolver, router or downloader")
	}
	req.Databases = isDatabaseRefresh
	mode := aria2.ModeFor(isDatabaseRefresh, force)
	report := &Report{Mode: mode, OutputDir: req.OutputDir}

	o.emit("resolving", "")
	q, err := o.Resolver.BuildQueue(ctx, req)
	if err != nil {
		o.emit("error", err.Error())
		return nil, err
	}
	report.Passthrough = q.Passthrough()
	if q.Empty() {
		o.emit("done", "nothing to download")
		return report, nil
	}

	if err := fsutil.EnsureDir(req.OutputDir); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", req.OutputDir)
	}

	hookCtx := hooks.HookContext{Mode: mode.String(), OutputDir: req.OutputDir, Files: filenames(q)}
	if err := o.runScripts(hooks.PreDownload, hookCtx); err != nil {
		o.emit("error", err.Error())
		return nil, err
	}

	o.emit("routing", fmt.Sprintf("%d artifacts", q.Len()))
	plan, err := o.Router.Route(ctx, q, req.OutputDir)
	if err != nil {
		o.emit("error", err.Error())
		return nil, err
	}
	report.Counts = plan.Counts()
	logger.Debug("Routed download queue", countFields(report.Counts))

	generic := q.Select(plan.Refs(model.TransportGeneric)).Merge(plan.PeerCacheQueue())
	mirrorQ := q.Select(plan.Refs(model.TransportMirror))

	o.emit("downloading", fmt.Sprintf("%d generic, %d mirror", generic.Len(), mirrorQ.Len()))
	if err := o.transfer(ctx, generic, mirrorQ, mode, req.OutputDir, report); err != nil {
		o.emit("error", err.Error())
		return report, err
	}

	hookCtx.Counts = make(map[string]int, len(report.Counts))
	for t, n := range report.Counts {
		hookCtx.Counts[t.String()] = n
	}
	if err := o.runScripts(hooks.PostDownload, hookCtx); err != nil {
		o.emit("error", err.Error())
		return report, err
	}

	o.emit("done", "")
	return report, nil
}

// transfer starts the generic download, runs the mirror loop while it is in
// flight and awaits every child before returning the first failure.
func (o *Orchestrator) transfer(ctx context.Context, generic, mirrorQ *model.DownloadQueue, mode aria2.Mode, dir string, report *Report) error {
	genericHandle, err := o.Aria2.Dispatch(ctx, generic, mode, dir)
	if err != nil {
		return err
	}

	var errs []error
	var fallbackHandle *aria2.Handle
	if !mirrorQ.Empty() {
		outcome := mirror.Exhausted
		var mirrorErr error
		if o.Mirror.Configured() {
			outcome, mirrorErr = o.Mirror.Download(ctx, mirrorQ, dir)
		}
		report.MirrorOutcome = outcome

		switch {
		case mirrorErr != nil:
			errs = append(errs, mirrorErr)
		case outcome == mirror.Exhausted:
			report.MirrorFallback = true
			fallbackHandle, err = o.Aria2.WithLabel(FallbackLabel).Dispatch(ctx, mirrorQ, mode, dir)
			if err != nil {
				errs = append(errs, err)
			}
		}
	}

	errs = append(errs, genericHandle.Wait(), fallbackHandle.Wait())
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runScripts(hookType hooks.HookType, ctx hooks.HookContext) error {
	if o.Scripts == nil || !o.Scripts.HasHook(hookType) {
		return nil
	}
	if err := o.Scripts.Execute(hookType, ctx); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrHookExecution, err)
	}
	return nil
}

func filenames(q *model.DownloadQueue) []string {
	refs := q.Refs()
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, q.Filename(ref))
	}
	return names
}

func countFields(counts map[model.Transport]int) logger.Fields {
	fields := make(logger.Fields, len(counts))
	for t, n := range counts {
		fields[t.String()] = n
	}
	return fields
}
