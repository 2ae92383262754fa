// Package testutil holds helpers shared by package tests: fake executables
// that record how they were invoked, a fake peer-cache server and generated
// pacman databases.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// StatusRule makes a fake binary exit with Status when its joined argument
// list contains Match.
type StatusRule struct {
	Match  string
	Status int
}

// FakeBinary is a shell script standing in for aria2c, rsync or pacman.
type FakeBinary struct {
	Name string
	Path string
	dir  string
}

// Invocation is one recorded run of a FakeBinary.
type Invocation struct {
	Args  []string
	Stdin string
	Dir   string
}

// NewFakeBinary writes an executable script into a fresh temp directory. The
// script records its arguments, working directory and stdin, then exits with
// the status of the first matching rule or defaultStatus.
func NewFakeBinary(t *testing.T, name string, defaultStatus int, rules ...StatusRule) *FakeBinary {
	t.Helper()
	dir := t.TempDir()
	b := &FakeBinary{Name: name, Path: filepath.Join(dir, name), dir: dir}

	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&script, "rec=%s/%s-$$\n", shellQuote(dir), name)
	script.WriteString("for a in \"$@\"; do printf '%s\\n' \"$a\"; done > \"$rec.args\"\n")
	script.WriteString("pwd > \"$rec.dir\"\n")
	script.WriteString("cat > \"$rec.stdin\"\n")
	fmt.Fprintf(&script, "printf '%%s\\n' \"$*\" >> %s\n", shellQuote(filepath.Join(dir, name+".calls")))
	if len(rules) > 0 {
		script.WriteString("case \"$*\" in\n")
		for _, r := range rules {
			fmt.Fprintf(&script, "  *%s*) exit %d ;;\n", shellQuote(r.Match), r.Status)
		}
		script.WriteString("esac\n")
	}
	fmt.Fprintf(&script, "exit %d\n", defaultStatus)

	if err := os.WriteFile(b.Path, []byte(script.String()), 0o755); err != nil {
		t.Fatalf("failed to write fake %s: %v", name, err)
	}
	return b
}

// Calls returns one line per invocation, each the space-joined argument list,
// in the order the invocations finished recording.
func (b *FakeBinary) Calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(b.dir, b.Name+".calls"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to read calls of %s: %v", b.Name, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// Invocations returns every recorded invocation sorted by their joined arguments.
func (b *FakeBinary) Invocations(t *testing.T) []Invocation {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(b.dir, b.Name+"-*.args"))
	if err != nil {
		t.Fatalf("failed to list invocations of %s: %v", b.Name, err)
	}
	invocations := make([]Invocation, 0, len(matches))
	for _, argsPath := range matches {
		prefix := strings.TrimSuffix(argsPath, ".args")
		inv := Invocation{
			Args:  readLines(t, argsPath),
			Stdin: readString(t, prefix+".stdin"),
			Dir:   strings.TrimSpace(readString(t, prefix+".dir")),
		}
		invocations = append(invocations, inv)
	}
	sort.Slice(invocations, func(i, j int) bool {
		return strings.Join(invocations[i].Args, " ") < strings.Join(invocations[j].Args, " ")
	})
	return invocations
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	content := strings.TrimRight(readString(t, path), "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
