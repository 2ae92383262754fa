package fsutil

// Modes for files and directories gopill creates.
const (
	FileModeDefault = 0o644 // -rw-r--r--
	DirModeDefault  = 0o755 // drwxr-xr-x
)
