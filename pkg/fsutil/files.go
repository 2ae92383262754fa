package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CopyResult tells a caller whether a local copy satisfied the artifact or
// whether routing should move on to the next candidate source.
type CopyResult int

const (
	// Copied means the file (and its signature, if requested) is now at the destination.
	Copied CopyResult = iota
	// SourceMissing means the source or its requested signature does not exist.
	SourceMissing
	// AlreadyInPlace means source and destination are the same file.
	AlreadyInPlace
)

func (r CopyResult) String() string {
	switch r {
	case Copied:
		return "copied"
	case SourceMissing:
		return "source-missing"
	case AlreadyInPlace:
		return "already-in-place"
	default:
		return fmt.Sprintf("CopyResult(%d)", int(r))
	}
}

// CopyWithSignature copies src to dst and, when sig is set, src.sig to dst.sig.
// A missing source is reported as SourceMissing with a nil error; every other
// I/O failure is returned. Both files are checked before anything is written so
// a missing signature never leaves a half-satisfied destination behind.
func CopyWithSignature(src, dst string, sig bool) (CopyResult, error) {
	if src == "" || dst == "" {
		return SourceMissing, fmt.Errorf("source and destination paths cannot be empty")
	}

	pairs := [][2]string{{src, dst}}
	if sig {
		pairs = append(pairs, [2]string{SignaturePath(src), SignaturePath(dst)})
	}

	inPlace := true
	for _, pair := range pairs {
		srcInfo, err := os.Stat(pair[0])
		if errors.Is(err, fs.ErrNotExist) {
			return SourceMissing, nil
		}
		if err != nil {
			return SourceMissing, fmt.Errorf("failed to stat source %s: %w", pair[0], err)
		}
		if dstInfo, err := os.Stat(pair[1]); err != nil || !os.SameFile(srcInfo, dstInfo) {
			inPlace = false
		}
	}
	if inPlace {
		return AlreadyInPlace, nil
	}

	for _, pair := range pairs {
		if err := Copy(pair[0], pair[1]); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return SourceMissing, nil
			}
			return SourceMissing, err
		}
	}
	return Copied, nil
}

// Copy copies the contents of srcFile to dstFile through a temporary file in
// the destination directory, so readers never observe a truncated dstFile.
func Copy(srcFile, dstFile string) error {
	src, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", srcFile, err)
	}
	defer func() { _ = src.Close() }()

	if err := EnsureFileDir(dstFile); err != nil {
		return fmt.Errorf("failed to create destination directory for %s: %w", dstFile, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dstFile), "."+filepath.Base(dstFile)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", dstFile, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to copy from %s to %s: %w", srcFile, dstFile, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file for %s: %w", dstFile, err)
	}
	if err := os.Chmod(tmpPath, FileModeDefault); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", dstFile, err)
	}
	if err := os.Rename(tmpPath, dstFile); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, dstFile, err)
	}
	return nil
}

// SHA256File returns the lowercase hex SHA-256 digest of a file.
// A missing file yields an error matching fs.ErrNotExist.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumMatches reports whether path exists and its SHA-256 digest equals want.
// A missing file is (false, nil).
func ChecksumMatches(path, want string) (bool, error) {
	got, err := SHA256File(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got == NormalizeHex(want), nil
}

// NormalizeHex lowercases and trims a hex digest for comparison.
func NormalizeHex(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
