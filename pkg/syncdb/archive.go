package syncdb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/mholt/archives"
)

// descFile is the per-package metadata file inside sync and local databases.
const descFile = "desc"

// Desc is a parsed desc file: %SECTION% headers mapped to their lines.
type Desc map[string][]string

// First returns the first value of a section or "".
func (d Desc) First(section string) string {
	if v := d[section]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// ParseDesc reads the %SECTION%-delimited desc format.
func ParseDesc(r io.Reader) (Desc, error) {
	desc := Desc{}
	var section string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			section = ""
		case len(line) > 2 && strings.HasPrefix(line, "%") && strings.HasSuffix(line, "%"):
			section = strings.Trim(line, "%")
			if _, ok := desc[section]; !ok {
				desc[section] = nil
			}
		case section != "":
			desc[section] = append(desc[section], line)
		}
	}
	return desc, scanner.Err()
}

// readArchive streams a compressed database archive once and hands every
// desc entry to fn.
func readArchive(ctx context.Context, archivePath string, fn func(Desc) error) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	format, stream, err := archives.Identify(ctx, archivePath, f)
	if err != nil {
		return fmt.Errorf("failed to identify database %s: %w", archivePath, err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("database %s is not an archive", archivePath)
	}

	return extractor.Extract(ctx, stream, func(_ context.Context, info archives.FileInfo) error {
		if info.IsDir() || path.Base(info.NameInArchive) != descFile {
			return nil
		}
		rc, err := info.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s in %s: %w", info.NameInArchive, archivePath, err)
		}
		defer func() { _ = rc.Close() }()

		desc, err := ParseDesc(rc)
		if err != nil {
			return fmt.Errorf("failed to parse %s in %s: %w", info.NameInArchive, archivePath, err)
		}
		return fn(desc)
	})
}
