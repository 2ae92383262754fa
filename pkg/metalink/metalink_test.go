package metalink

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/gopill/pkg/model"
)

func TestFromQueue_DatabasesAndPackages(t *testing.T) {
	q := model.NewDownloadQueue()
	q.AddDatabase(model.DatabaseArtifact{
		Name:           "core",
		Servers:        []string{"file:///srv/core", "https://a/core/os/x86_64", "https://b/core/os/x86_64"},
		WantsSignature: true,
	})
	q.AddPackage(model.PackageArtifact{
		Filename: "pkgA-1.0-1-x86_64.pkg.tar.zst",
		Checksum: "DEADBEEF",
		Size:     1024,
		URLs:     []string{"https://a/pkgA-1.0-1-x86_64.pkg.tar.zst", "https://b/pkgA-1.0-1-x86_64.pkg.tar.zst"},
	})

	doc := FromQueue(q)
	assert.Equal(t, []string{"core.db", "core.db.sig", "pkgA-1.0-1-x86_64.pkg.tar.zst"}, doc.Filenames())

	db := doc.Files[0]
	assert.Empty(t, db.Hashes)
	assert.Equal(t, []URL{
		{Priority: 1, Value: "https://a/core/os/x86_64/core.db"},
		{Priority: 2, Value: "https://b/core/os/x86_64/core.db"},
	}, db.URLs)
	assert.Equal(t, []URL{
		{Priority: 1, Value: "https://a/core/os/x86_64/core.db.sig"},
		{Priority: 2, Value: "https://b/core/os/x86_64/core.db.sig"},
	}, doc.Files[1].URLs)

	pkg := doc.Files[2]
	assert.Equal(t, []Hash{{Type: HashSHA256, Value: "deadbeef"}}, pkg.Hashes)
	assert.Equal(t, int64(1024), pkg.Size)
	assert.Equal(t, 1, pkg.URLs[0].Priority)
}

func TestFromQueue_SkipsArtifactsWithoutRemoteSource(t *testing.T) {
	q := model.NewDownloadQueue()
	q.AddPackage(model.PackageArtifact{Filename: "local-only", URLs: []string{"file:///var/cache/local-only"}})
	q.AddPackage(model.PackageArtifact{Filename: "remote", URLs: []string{"https://m/remote"}})

	assert.Equal(t, []string{"remote"}, FromQueue(q).Filenames())
}

func TestMarshal_RoundTrip(t *testing.T) {
	q := model.NewDownloadQueue()
	q.AddPackage(model.PackageArtifact{
		Filename:       "pkgB-2.0-1-any.pkg.tar.zst",
		Checksum:       "abc123",
		URLs:           []string{"https://unofficial/pkgB-2.0-1-any.pkg.tar.zst"},
		WantsSignature: true,
	})

	data, err := FromQueue(q).Marshal()
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "<?xml"))
	assert.Contains(t, text, `<metalink xmlns="urn:ietf:params:xml:ns:metalink">`)
	assert.Contains(t, text, `<hash type="sha-256">abc123</hash>`)
	assert.Contains(t, text, `<url priority="1">https://unofficial/pkgB-2.0-1-any.pkg.tar.zst</url>`)
	assert.NotContains(t, text, "<size>")

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkgB-2.0-1-any.pkg.tar.zst", "pkgB-2.0-1-any.pkg.tar.zst.sig"}, parsed.Filenames())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("<metalink"))
	assert.Error(t, err)
}
