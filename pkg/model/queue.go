package model

// Kind tells which list of a DownloadQueue a Ref points into.
type Kind int

const (
	// KindDatabase refers to the database list.
	KindDatabase Kind = iota
	// KindPackage refers to the package list.
	KindPackage
)

func (k Kind) String() string {
	if k == KindDatabase {
		return "database"
	}
	return "package"
}

// Ref addresses one artifact inside a DownloadQueue by list and index.
type Ref struct {
	Kind  Kind
	Index int
}

// DownloadQueue holds the artifacts of one invocation. Entries are appended
// and never modified or removed; other components refer to them through Ref
// values and build narrower queues with Select.
type DownloadQueue struct {
	databases   []DatabaseArtifact
	packages    []PackageArtifact
	passthrough []string
}

// NewDownloadQueue returns an empty queue.
func NewDownloadQueue() *DownloadQueue {
	return &DownloadQueue{}
}

// AddDatabase appends a database artifact and returns its reference.
func (q *DownloadQueue) AddDatabase(d DatabaseArtifact) Ref {
	q.databases = append(q.databases, cloneDatabase(d))
	return Ref{Kind: KindDatabase, Index: len(q.databases) - 1}
}

// AddPackage appends a package artifact and returns its reference.
func (q *DownloadQueue) AddPackage(p PackageArtifact) Ref {
	q.packages = append(q.packages, clonePackage(p))
	return Ref{Kind: KindPackage, Index: len(q.packages) - 1}
}

// AddPassthrough records an item that is carried for accounting only.
func (q *DownloadQueue) AddPassthrough(name string) {
	q.passthrough = append(q.passthrough, name)
}

// Database returns the database at index i.
func (q *DownloadQueue) Database(i int) DatabaseArtifact { return q.databases[i] }

// Package returns the package at index i.
func (q *DownloadQueue) Package(i int) PackageArtifact { return q.packages[i] }

// Databases returns a copy of the database list.
func (q *DownloadQueue) Databases() []DatabaseArtifact {
	return append([]DatabaseArtifact(nil), q.databases...)
}

// Packages returns a copy of the package list.
func (q *DownloadQueue) Packages() []PackageArtifact {
	return append([]PackageArtifact(nil), q.packages...)
}

// Passthrough returns the unresolved or foreign items.
func (q *DownloadQueue) Passthrough() []string {
	return append([]string(nil), q.passthrough...)
}

// Refs returns references to every artifact, databases first.
func (q *DownloadQueue) Refs() []Ref {
	refs := make([]Ref, 0, q.Len())
	for i := range q.databases {
		refs = append(refs, Ref{Kind: KindDatabase, Index: i})
	}
	for i := range q.packages {
		refs = append(refs, Ref{Kind: KindPackage, Index: i})
	}
	return refs
}

// Filename returns the destination filename of the referenced artifact.
func (q *DownloadQueue) Filename(r Ref) string {
	if r.Kind == KindDatabase {
		return q.databases[r.Index].Filename()
	}
	return q.packages[r.Index].Filename
}

// Len returns the number of downloadable artifacts.
func (q *DownloadQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.databases) + len(q.packages)
}

// Empty reports whether the queue carries nothing to download.
func (q *DownloadQueue) Empty() bool { return q.Len() == 0 }

// Select builds a new queue from the referenced artifacts, keeping the order of refs.
// Passthrough items are not carried over.
func (q *DownloadQueue) Select(refs []Ref) *DownloadQueue {
	out := NewDownloadQueue()
	for _, r := range refs {
		if r.Kind == KindDatabase {
			out.AddDatabase(q.databases[r.Index])
		} else {
			out.AddPackage(q.packages[r.Index])
		}
	}
	return out
}

// Merge returns a new queue holding the artifacts of q followed by those of other.
func (q *DownloadQueue) Merge(other *DownloadQueue) *DownloadQueue {
	out := q.Select(q.Refs())
	out.passthrough = append(out.passthrough, q.passthrough...)
	if other != nil {
		for _, d := range other.databases {
			out.AddDatabase(d)
		}
		for _, p := range other.packages {
			out.AddPackage(p)
		}
	}
	return out
}

func cloneDatabase(d DatabaseArtifact) DatabaseArtifact {
	d.Servers = append([]string(nil), d.Servers...)
	return d
}

func clonePackage(p PackageArtifact) PackageArtifact {
	p.URLs = append([]string(nil), p.URLs...)
	return p
}
