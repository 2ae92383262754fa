package cache

// Manager defines the interface for cache management operations.
type Manager interface {
	Clean(targets []Target) (*CleanResult, error)
	GetInfo(dirs []string) ([]Info, error)
}

// Target is a directory to clean together with the lock that guards it.
type Target struct {
	Directory string
	LockPath  string
	LockLabel string
}

// CleanResult contains information about what was cleaned.
type CleanResult struct {
	Removed    []string
	TotalFreed int64
}

// Info represents the contents of one cache directory.
type Info struct {
	Directory    string
	TotalSize    int64
	TotalFiles   int
	PackageSize  int64
	PackageFiles int
	Signatures   int
	ControlFiles int // leftover aria2 control files
}
