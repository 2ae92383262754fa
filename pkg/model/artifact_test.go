package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseArtifact_Filename(t *testing.T) {
	assert.Equal(t, "core.db", DatabaseArtifact{Name: "core"}.Filename())
	assert.Equal(t, "core.files", DatabaseArtifact{Name: "core", WantsFilesIndex: true}.Filename())
}

func TestDatabaseArtifact_URLs(t *testing.T) {
	db := DatabaseArtifact{
		Name:    "extra",
		Servers: []string{"https://a.example/extra/os/x86_64/", "https://b.example/extra/os/x86_64"},
	}
	assert.Equal(t, []string{
		"https://a.example/extra/os/x86_64/extra.db",
		"https://b.example/extra/os/x86_64/extra.db",
	}, db.URLs())
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected int
	}{
		{name: "equal", a: "1.2.3-1", b: "1.2.3-1", expected: 0},
		{name: "newer pkgver", a: "1.10.0-1", b: "1.9.0-3", expected: 1},
		{name: "older pkgrel", a: "1.2.3-1", b: "1.2.3-2", expected: -1},
		{name: "epoch wins", a: "1:0.1-1", b: "9.9-1", expected: 1},
		{name: "missing pkgrel", a: "2.0", b: "2.0-1", expected: -1},
		{name: "unparseable falls back to string order", a: "r123.abc-1", b: "r124.abc-1", expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompareVersions(tt.a, tt.b))
		})
	}
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://x/y/z.pkg", JoinURL("https://x/y/", "z.pkg"))
	assert.Equal(t, "https://x/y/z.pkg", JoinURL("https://x/y", "z.pkg"))
}
