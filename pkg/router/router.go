// Package router decides, per artifact, which transport fetches it.
//
// Precedence: a local copy (file:// source or a valid copy already in a
// package cache) wins; packages the peer cache resolved come next; official
// artifacts go to the rsync mirrors when any are configured; everything else
// is left to the segmented downloader.
package router

//go:generate mockgen -source=router.go -destination=mocks/mock_router.go -package=mocks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/fsutil"
	"github.com/glorpus-work/gopill/pkg/model"
	"github.com/glorpus-work/gopill/pkg/peercache"
)

const fileScheme = "file://"

// PeerResolver is the part of the peer-cache resolver the router uses.
type PeerResolver interface {
	Resolve(ctx context.Context, pending []model.PackageArtifact) (peercache.Result, error)
}

// Router partitions download queues into transports.
type Router struct {
	PeerCache            PeerResolver // nil when no peer cache is configured
	MirrorConfigured     bool
	MirrorDatabasesOnly  bool
	OfficialRepositories []string
	CacheDirs            []string // searched for valid package copies
}

// Route builds the plan for q. Local copies are performed here, into
// outputDir; a copy failing for any reason other than a missing source is
// returned as an error.
func (r *Router) Route(ctx context.Context, q *model.DownloadQueue, outputDir string) (*model.Plan, error) {
	plan := &model.Plan{Queue: q}
	official := make(map[string]struct{}, len(r.OfficialRepositories))
	for _, name := range r.OfficialRepositories {
		official[name] = struct{}{}
	}
	mirrorEligible := func(repo string, isPackage bool) bool {
		if !r.MirrorConfigured || (isPackage && r.MirrorDatabasesOnly) {
			return false
		}
		_, ok := official[repo]
		return ok
	}

	for i, db := range q.Databases() {
		ref := model.Ref{Kind: model.KindDatabase, Index: i}
		var sources []string
		for _, server := range db.Servers {
			if strings.HasPrefix(server, fileScheme) {
				sources = append(sources, filepath.Join(strings.TrimPrefix(server, fileScheme), db.Filename()))
			}
		}
		path, err := copyFirst(sources, filepath.Join(outputDir, db.Filename()), db.WantsSignature)
		if err != nil {
			return nil, err
		}

		decision := model.TransportDecision{Ref: ref, Transport: model.TransportGeneric}
		switch {
		case path != "":
			decision = model.TransportDecision{Ref: ref, Transport: model.TransportLocalCopy, Path: path}
		case mirrorEligible(db.Name, false):
			decision.Transport = model.TransportMirror
		}
		plan.Decisions = append(plan.Decisions, decision)
	}

	pkgDecisions := make([]model.TransportDecision, q.Len()-len(plan.Decisions))
	var pending []model.PackageArtifact
	var pendingIdx []int
	for i, pkg := range q.Packages() {
		ref := model.Ref{Kind: model.KindPackage, Index: i}
		path, err := r.localPackage(pkg, outputDir)
		if err != nil {
			return nil, err
		}
		if path != "" {
			pkgDecisions[i] = model.TransportDecision{Ref: ref, Transport: model.TransportLocalCopy, Path: path}
			continue
		}
		pending = append(pending, pkg)
		pendingIdx = append(pendingIdx, i)
	}

	var peer map[string]string
	if r.PeerCache != nil && len(pending) > 0 {
		res, err := r.PeerCache.Resolve(ctx, pending)
		if err != nil {
			return nil, err
		}
		peer = res.URLs
	}

	for n, pkg := range pending {
		ref := model.Ref{Kind: model.KindPackage, Index: pendingIdx[n]}
		decision := model.TransportDecision{Ref: ref, Transport: model.TransportGeneric}
		if url, ok := peer[pkg.Filename]; ok {
			decision.Transport = model.TransportPeerCache
			decision.URL = url
		} else if mirrorEligible(pkg.Repository, true) {
			decision.Transport = model.TransportMirror
		}
		pkgDecisions[pendingIdx[n]] = decision
	}
	plan.Decisions = append(plan.Decisions, pkgDecisions...)

	for _, d := range plan.Decisions {
		logger.Debug("Routed artifact", logger.Fields{
			"file": q.Filename(d.Ref), "transport": d.Transport.String(), "path": d.Path, "url": d.URL,
		})
	}
	return plan, nil
}

// localPackage satisfies pkg from a file:// candidate or a cache directory.
// It returns the destination path on success and "" when remote transports
// are needed.
func (r *Router) localPackage(pkg model.PackageArtifact, outputDir string) (string, error) {
	dest := filepath.Join(outputDir, pkg.Filename)

	var sources []string
	for _, u := range pkg.URLs {
		if strings.HasPrefix(u, fileScheme) {
			sources = append(sources, strings.TrimPrefix(u, fileScheme))
		}
	}
	if path, err := copyFirst(sources, dest, pkg.WantsSignature); err != nil || path != "" {
		return path, err
	}

	if pkg.Checksum == "" {
		return "", nil
	}
	for _, dir := range r.CacheDirs {
		cached := filepath.Join(dir, pkg.Filename)
		ok, err := fsutil.ChecksumMatches(cached, pkg.Checksum)
		if err != nil {
			return "", fmt.Errorf("%w: verifying %s: %w", errors.ErrLocalCopy, cached, err)
		}
		if !ok {
			continue
		}
		path, err := copyFirst([]string{cached}, dest, pkg.WantsSignature)
		if err != nil || path != "" {
			return path, err
		}
	}
	return "", nil
}

// copyFirst copies the first existing source (and its signature when sig is
// set) to dest. Missing sources are skipped.
func copyFirst(sources []string, dest string, sig bool) (string, error) {
	for _, src := range sources {
		result, err := fsutil.CopyWithSignature(src, dest, sig)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", errors.ErrLocalCopy, src, err)
		}
		switch result {
		case fsutil.Copied, fsutil.AlreadyInPlace:
			return dest, nil
		case fsutil.SourceMissing:
			logger.Debug("Local source missing, trying next", logger.Fields{"source": src})
		}
	}
	return "", nil
}
