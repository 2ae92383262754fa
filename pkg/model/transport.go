package model

import "fmt"

// Transport names the mechanism chosen for an artifact.
type Transport int

const (
	// TransportLocalCopy means the artifact was copied from a file:// source or already sits in a cache.
	TransportLocalCopy Transport = iota
	// TransportPeerCache means the artifact is fetched from a peer-cache URL.
	TransportPeerCache
	// TransportMirror means the artifact is replicated from an rsync mirror.
	TransportMirror
	// TransportGeneric means the artifact is fetched by the segmented downloader.
	TransportGeneric
)

// Transports lists every transport in routing precedence order.
var Transports = []Transport{TransportLocalCopy, TransportPeerCache, TransportMirror, TransportGeneric}

func (t Transport) String() string {
	switch t {
	case TransportLocalCopy:
		return "local"
	case TransportPeerCache:
		return "peercache"
	case TransportMirror:
		return "mirror"
	case TransportGeneric:
		return "generic"
	default:
		return fmt.Sprintf("Transport(%d)", int(t))
	}
}

// TransportDecision is the routing outcome for one artifact. Path is set for
// local copies, URL for peer-cache hits.
type TransportDecision struct {
	Ref       Ref
	Transport Transport
	Path      string
	URL       string
}

// Plan is the partition of a queue into transports. Every artifact of the
// source queue appears in exactly one decision.
type Plan struct {
	Queue     *DownloadQueue
	Decisions []TransportDecision
}

// Refs returns the references routed to t, in queue order.
func (p *Plan) Refs(t Transport) []Ref {
	var refs []Ref
	for _, d := range p.Decisions {
		if d.Transport == t {
			refs = append(refs, d.Ref)
		}
	}
	return refs
}

// Counts returns the number of artifacts per transport.
func (p *Plan) Counts() map[Transport]int {
	counts := make(map[Transport]int, len(Transports))
	for _, t := range Transports {
		counts[t] = 0
	}
	for _, d := range p.Decisions {
		counts[d.Transport]++
	}
	return counts
}

// PeerCacheQueue returns the peer-cache decisions as a queue whose packages
// carry the single peer URL in place of their candidate list.
func (p *Plan) PeerCacheQueue() *DownloadQueue {
	out := NewDownloadQueue()
	for _, d := range p.Decisions {
		if d.Transport != TransportPeerCache || d.Ref.Kind != KindPackage {
			continue
		}
		pkg := p.Queue.Package(d.Ref.Index)
		pkg.URLs = []string{d.URL}
		out.AddPackage(pkg)
	}
	return out
}
