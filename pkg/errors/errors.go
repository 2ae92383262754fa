// Package errors holds the sentinel errors shared across gopill and small
// helpers for adding context while keeping errors.Is matching intact.
package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath  = fmt.Errorf("config file path cannot be empty")
	ErrConfigParse      = fmt.Errorf("failed to parse config")
	ErrConfigValidation = fmt.Errorf("invalid configuration")
	ErrPacmanConfig     = fmt.Errorf("failed to load pacman configuration")

	// Filesystem errors.
	ErrInvalidPath = fmt.Errorf("invalid path")
	ErrLocalCopy   = fmt.Errorf("local copy failed")

	// Locking errors.
	ErrLocked = fmt.Errorf("directory is locked")

	// Resolution errors.
	ErrResolve          = fmt.Errorf("failed to resolve targets")
	ErrDatabaseNotFound = fmt.Errorf("sync database not found")

	// Transport errors.
	ErrTransport       = fmt.Errorf("transport failed")
	ErrMirrorFatal     = fmt.Errorf("mirror replication failed")
	ErrDownloadFatal   = fmt.Errorf("segmented download failed")
	ErrArgumentCeiling = fmt.Errorf("argument ceiling too low for command")
	ErrPeerCache       = fmt.Errorf("peer cache query failed")

	// Hook errors.
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")
	ErrHookLoad      = fmt.Errorf("failed to load hook")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
