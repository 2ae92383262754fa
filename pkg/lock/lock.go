// Package lock provides cross-process mutual exclusion over a directory through
// a sentinel file. The sentinel is flock(2)ed while held and carries a label
// and the holder's pid so that a stale file left by a crashed process can be
// told apart from a live holder.
package lock

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/fsutil"
)

const (
	// DatabaseFile is the sentinel guarding the sync database directory.
	DatabaseFile = "db.lck"
	// DatabaseLabel labels the database lock.
	DatabaseLabel = "database"
	// CacheFile is the sentinel guarding a package cache directory.
	CacheFile = "cache.lck"
	// CacheLabel labels the cache lock.
	CacheLabel = "cache"

	// acquireAttempts bounds the retries when the sentinel is replaced between open and flock.
	acquireAttempts = 5
)

// HeldError reports that a live process already holds the lock.
type HeldError struct {
	Path   string
	Holder string
	PID    int
}

func (e *HeldError) Error() string {
	holder := e.Holder
	if holder == "" {
		holder = "another process"
	}
	if e.PID > 0 {
		return fmt.Sprintf("%s: %s held by %s (pid %d)", errors.ErrLocked, e.Path, holder, e.PID)
	}
	return fmt.Sprintf("%s: %s held by %s", errors.ErrLocked, e.Path, holder)
}

// Unwrap returns ErrLocked so callers can match with errors.Is.
func (e *HeldError) Unwrap() error { return errors.ErrLocked }

// Lock is an acquired sentinel. It must be released exactly once.
type Lock struct {
	path  string
	label string
	file  *os.File
}

// Path returns the sentinel path.
func (l *Lock) Path() string { return l.path }

// Label returns the diagnostic label written into the sentinel.
func (l *Lock) Label() string { return l.label }

// Acquire takes the sentinel at path without waiting. It returns a *HeldError
// when another open file description holds the flock, when the sentinel names
// a different process that is still alive, or when a sentinel we did not
// create carries no pid. The last case covers pacman, which creates db.lck
// empty and never flocks it. Only a sentinel naming a dead pid is reclaimed.
func Acquire(path, label string) (*Lock, error) {
	if path == "" {
		return nil, errors.Wrap(errors.ErrInvalidPath, "lock path cannot be empty")
	}
	if err := fsutil.EnsureFileDir(path); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}

	for attempt := 0; attempt < acquireAttempts; attempt++ {
		f, created, err := openSentinel(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open lock file %s", path)
		}
		if f == nil {
			continue
		}

		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			holder, pid := readSentinel(f)
			_ = f.Close()
			if err == unix.EWOULDBLOCK {
				return nil, &HeldError{Path: path, Holder: holder, PID: pid}
			}
			return nil, errors.Wrapf(err, "failed to lock %s", path)
		}

		// The previous holder removes the sentinel before unlocking; if that
		// happened after our open, our descriptor points at an unlinked inode.
		if !sameInode(f, path) {
			_ = f.Close()
			continue
		}

		holder, pid := readSentinel(f)
		if pid > 0 && pid != os.Getpid() && alive(pid) {
			_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
			_ = f.Close()
			return nil, &HeldError{Path: path, Holder: holder, PID: pid}
		}
		if pid <= 0 && !created {
			_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
			_ = f.Close()
			return nil, &HeldError{Path: path, Holder: holder}
		}
		if pid > 0 {
			logger.Debug("Reclaiming stale lock", logger.Fields{"path": path, "holder": holder, "pid": pid})
		}

		if err := writeSentinel(f, label); err != nil {
			_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
			_ = f.Close()
			return nil, errors.Wrapf(err, "failed to write lock file %s", path)
		}
		logger.Debug("Acquired lock", logger.Fields{"path": path, "label": label})
		return &Lock{path: path, label: label, file: f}, nil
	}
	return nil, fmt.Errorf("%w: %s kept changing while acquiring", errors.ErrLocked, path)
}

// Release removes the sentinel and drops the flock. Calling Release on an
// already released lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	var firstErr error
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		firstErr = errors.Wrapf(err, "failed to remove lock file %s", l.path)
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil && firstErr == nil {
		firstErr = errors.Wrapf(err, "failed to unlock %s", l.path)
	}
	if err := l.file.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrapf(err, "failed to close lock file %s", l.path)
	}
	l.file = nil
	logger.Debug("Released lock", logger.Fields{"path": l.path, "label": l.label})
	return firstErr
}

// With holds the sentinel at path for the duration of fn. The lock is
// released on every return path, including panics; a release failure is
// reported only when fn itself succeeded.
func With(path, label string, fn func() error) (err error) {
	l, err := Acquire(path, label)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := l.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn()
}

// openSentinel creates the sentinel exclusively, falling back to opening an
// existing one. created reports whether this call made the file. A nil file
// with a nil error means the sentinel vanished between the two opens.
func openSentinel(path string) (f *os.File, created bool, err error) {
	f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, fsutil.FileModeDefault)
	if err == nil {
		return f, true, nil
	}
	if !os.IsExist(err) {
		return nil, false, err
	}
	f, err = os.OpenFile(path, os.O_RDWR, fsutil.FileModeDefault)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	return f, false, err
}

func sameInode(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	onDisk, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, onDisk)
}

func readSentinel(f *os.File) (label string, pid int) {
	if _, err := f.Seek(0, 0); err != nil {
		return "", 0
	}
	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		label = strings.TrimSpace(scanner.Text())
	}
	if scanner.Scan() {
		pid, _ = strconv.Atoi(strings.TrimSpace(scanner.Text()))
	}
	return label, pid
}

func writeSentinel(f *os.File, label string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(fmt.Sprintf("%s\n%d\n", label, os.Getpid())), 0); err != nil {
		return err
	}
	return f.Sync()
}

func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
