package repozip

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smtindex/smtindex/pkg/semver"
	"github.com/smtindex/smtindex/pkg/sources"
	"github.com/smtindex/smtindex/pkg/whttp"
)

const tree = "https://github.com/admin-shell-io/submodel-templates/tree/main"

func makeZip(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if name[len(name)-1] != '/' {
			_, err = w.Write([]byte("x"))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestEnumerate_ThreePartVersion(t *testing.T) {
	data := makeZip(t,
		"submodel-templates-main/",
		"submodel-templates-main/published/",
		"submodel-templates-main/published/DigitalNameplate/",
		"submodel-templates-main/published/DigitalNameplate/3/",
		"submodel-templates-main/published/DigitalNameplate/3/0/",
		"submodel-templates-main/published/DigitalNameplate/3/0/1/",
		"submodel-templates-main/published/DigitalNameplate/3/0/1/docs/",
		"submodel-templates-main/published/DigitalNameplate/3/0/1/docs/index.md",
	)

	entries, err := Enumerate(data, tree)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, semver.New(3, 0, 0), entries[0].Version)
	assert.Equal(t, "published/DigitalNameplate/3/0", entries[0].RepoPath)

	e := entries[1]
	assert.Equal(t, semver.New(3, 0, 1), e.Version)
	assert.Equal(t, "published/DigitalNameplate/3/0/1", e.RepoPath)
	assert.Equal(t, "DigitalNameplate", e.TemplateName)
	assert.Equal(t, "digitalnameplate", e.Slug)
	assert.Equal(t, sources.AreaPublished, e.Area)
	assert.Equal(t, tree+"/published/DigitalNameplate/3/0/1", e.URL)
}

func TestEnumerate_TwoPartVersion(t *testing.T) {
	data := makeZip(t,
		"submodel-templates-main/",
		"submodel-templates-main/published/Example/",
		"submodel-templates-main/published/Example/2/",
		"submodel-templates-main/published/Example/2/1/",
		"submodel-templates-main/published/Example/2/1/docs/",
		"submodel-templates-main/published/Example/2/1/docs/readme.md",
	)

	entries, err := Enumerate(data, tree)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2.1.0", entries[0].Version.String())
}

func TestEnumerate_VersionFolderOnly(t *testing.T) {
	data := makeZip(t, "submodel-templates-main/deprecated/Legacy/1/0/")

	entries, err := Enumerate(data, tree)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "deprecated/Legacy/1/0", entries[0].RepoPath)
	assert.Equal(t, sources.AreaDeprecated, entries[0].Area)
}

func TestEnumerate_FilesWithoutDirectoryEntries(t *testing.T) {
	data := makeZip(t,
		"root/published/Contact Information/1/0/docs/a.md",
		"root/published/Contact Information/1/0/docs/b.md",
		"root/published/Contact Information/1/0/model.aasx",
	)

	entries, err := Enumerate(data, tree+"/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "published/Contact Information/1/0", entries[0].RepoPath)
	assert.Equal(t, tree+"/published/Contact%20Information/1/0", entries[0].URL)
	assert.Equal(t, "contact-information", entries[0].Slug)
}

func TestEnumerate_Ignored(t *testing.T) {
	data := makeZip(t,
		"root/README.md",
		"root/published/",
		"root/published/T/",
		"root/published/T/1/",
		"root/published/T/docs/",
		"root/published/T/1/readme.md",
		"root/published/T/1/0",
		"root/other/T/1/0/",
		"root/published/T/v1/0/",
	)

	entries, err := Enumerate(data, tree)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnumerate_NotAZip(t *testing.T) {
	_, err := Enumerate([]byte("not a zip"), tree)
	require.Error(t, err)
}

func TestSource_FetchVersionsAndHeadCommit(t *testing.T) {
	archive := makeZip(t, "submodel-templates-dev/published/Example/2/1/")

	mux := http.NewServeMux()
	mux.HandleFunc("/acme/templates/archive/refs/heads/dev.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(archive)
	})
	mux.HandleFunc("/api/repos/acme/templates/commits/dev", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sha":"0123abcd","commit":{"message":"update"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := New(
		WithRepo("acme/templates"),
		WithBranch("dev"),
		WithEndpoints(srv.URL, srv.URL+"/api"),
		WithClient(whttp.NewClient(2*time.Second, 0)),
	)
	assert.Equal(t, srv.URL+"/acme/templates", src.URL())

	entries, err := src.FetchVersions(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, srv.URL+"/acme/templates/tree/dev/published/Example/2/1", entries[0].URL)

	sha, err := src.HeadCommit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0123abcd", sha)
}

func TestSource_HeadCommitMissingSHA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer srv.Close()

	src := New(WithEndpoints(srv.URL, srv.URL), WithClient(whttp.NewClient(2*time.Second, 0)))
	_, err := src.HeadCommit(context.Background())
	require.Error(t, err)
}
