//go:generate mockgen -destination=./mocks/orchestrator.go . Resolver,Router

package orchestrator

import (
	"context"

	"github.com/glorpus-work/gopill/pkg/aria2"
	"github.com/glorpus-work/gopill/pkg/mirror"
	"github.com/glorpus-work/gopill/pkg/model"
)

// Resolver turns download targets into a queue.
type Resolver interface {
	BuildQueue(ctx context.Context, req model.ResolveRequest) (*model.DownloadQueue, error)
}

// Router partitions a queue into transports, performing local copies.
type Router interface {
	Route(ctx context.Context, q *model.DownloadQueue, outputDir string) (*model.Plan, error)
}

// Event represents a simple progress notification.
type Event struct {
	Phase string // resolving|routing|downloading|done|error
	Msg   string
}

// Progress carries callbacks for progress events.
type Progress struct {
	OnEvent func(Event)
}

// Report summarises one download.
type Report struct {
	Mode           aria2.Mode
	OutputDir      string
	Counts         map[model.Transport]int
	MirrorOutcome  mirror.Outcome
	MirrorFallback bool     // the mirror queue went to the segmented downloader
	Passthrough    []string // carried, not downloaded
}

// Total returns the number of artifacts in the queue.
func (r *Report) Total() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}
