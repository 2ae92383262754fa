package hooks

//go:generate mockgen -source=types.go -destination=mocks/mock_types.go -package=mocks

// HookType represents the type of hook.
type HookType string

// Supported hook types.
const (
	PreDownload  HookType = "pre-download"
	PostDownload HookType = "post-download"
)

// Hook is one tengo script bound to a hook type.
type Hook struct {
	Type    HookType
	Path    string // where the script was loaded from, for messages
	Content string
}

// HookContext contains information passed to hooks.
type HookContext struct {
	Mode      string         // packages, refresh or force-refresh
	OutputDir string         // directory the artifacts are written to
	Files     []string       // filenames in the download queue
	Counts    map[string]int // artifacts per transport; empty before routing
	Vars      map[string]interface{}
}

// HookManager defines the interface for managing hooks.
type HookManager interface {
	// Execute runs every hook of the given type in registration order,
	// stopping at the first failure.
	Execute(hookType HookType, ctx HookContext) error

	// AddHook registers a hook.
	AddHook(hook Hook) error

	// HasHook checks if a hook of the specified type exists.
	HasHook(hookType HookType) bool
}
