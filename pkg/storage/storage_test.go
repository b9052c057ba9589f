package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/sources"
)

func str(s string) *string { return &s }

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func v(version string, latest bool, pdf *string) catalog.TemplateVersion {
	return catalog.TemplateVersion{Version: version, IsLatest: latest, Links: catalog.VersionLinks{PDF: pdf}, GitHub: []catalog.RepoReference{}}
}

func firstCatalog() *catalog.Catalog {
	c := catalog.New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), []catalog.TemplateRecord{
		{ID: "ext-old", Name: "Old", Status: sources.StatusUnknown, Versions: []catalog.TemplateVersion{v("1.0.0", true, nil)}},
		{ID: "idta-02006-dn", Name: "DN", IDTANumber: str("02006"), Status: sources.StatusInReview,
			Versions: []catalog.TemplateVersion{v("3.0.0", true, str("https://x/3.pdf")), v("2.0.0", false, nil)}},
	})
	commit := "abc"
	c.Provenance = &catalog.BuildProvenance{GitCommit: &commit, ToolVersion: "test"}
	return c
}

func secondCatalog() *catalog.Catalog {
	return catalog.New(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), []catalog.TemplateRecord{
		{ID: "gh-new", Name: "New", Status: sources.StatusPublished, Versions: []catalog.TemplateVersion{v("0.1.0", true, nil)}},
		{ID: "idta-02006-dn", Name: "DN", IDTANumber: str("02006"), Status: sources.StatusPublished,
			Versions: []catalog.TemplateVersion{v("3.0.1", true, nil), v("3.0.0", false, str("https://x/3.pdf"))}},
	})
}

type changeKey struct{ id, version, kind string }

func keys(changes []Change) []changeKey {
	out := make([]changeKey, 0, len(changes))
	for _, c := range changes {
		out = append(out, changeKey{c.TemplateID, c.Version, c.ChangeType})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].id != out[j].id {
			return out[i].id < out[j].id
		}
		if out[i].version != out[j].version {
			return out[i].version < out[j].version
		}
		return out[i].kind < out[j].kind
	})
	return out
}

func TestUpsertCatalog_FirstRun(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	res, err := db.UpsertCatalog(ctx, firstCatalog())
	require.NoError(t, err)
	assert.True(t, res.IsFirstRun)
	assert.Equal(t, []changeKey{
		{"ext-old", "", ChangeAdded},
		{"idta-02006-dn", "", ChangeAdded},
	}, keys(res.Changes))

	templates, err := db.ListTemplates(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "idta-02006-dn", templates[1].ID)
	assert.Equal(t, "3.0.0", templates[1].LatestVersion)
	assert.Equal(t, 2, templates[1].VersionCount)
	assert.False(t, templates[1].FirstSeenAt.IsZero())
}

func TestUpsertCatalog_Diff(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.UpsertCatalog(ctx, firstCatalog())
	require.NoError(t, err)

	res, err := db.UpsertCatalog(ctx, secondCatalog())
	require.NoError(t, err)
	assert.False(t, res.IsFirstRun)

	assert.Equal(t, []changeKey{
		{"ext-old", "", ChangeRemoved},
		{"gh-new", "", ChangeAdded},
		{"idta-02006-dn", "", ChangeUpdated},
		{"idta-02006-dn", "2.0.0", ChangeRemoved},
		{"idta-02006-dn", "3.0.0", ChangeUpdated},
		{"idta-02006-dn", "3.0.1", ChangeAdded},
	}, keys(res.Changes))

	for _, c := range res.Changes {
		assert.Equal(t, res.BuildID, c.BuildID)
		if c.TemplateID == "idta-02006-dn" && c.Version == "" {
			assert.Contains(t, c.Detail, `status: "In Review" -> "Published"`)
			assert.Contains(t, c.Detail, `latest_version: "3.0.0" -> "3.0.1"`)
		}
	}

	recent, err := db.ListRecentChanges(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, recent, 8)

	limited, err := db.ListRecentChanges(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpsertCatalog_Unchanged(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.UpsertCatalog(ctx, firstCatalog())
	require.NoError(t, err)
	res, err := db.UpsertCatalog(ctx, firstCatalog())
	require.NoError(t, err)
	assert.Empty(t, res.Changes)

	builds, err := db.ListBuilds(ctx, 0)
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, res.BuildID, builds[0].ID)
	assert.Equal(t, "abc", builds[0].GitCommit)
	assert.Equal(t, 3, builds[0].VersionCount)
}

func TestLatestCatalog(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.LatestCatalog(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = db.UpsertCatalog(ctx, firstCatalog())
	require.NoError(t, err)
	_, err = db.UpsertCatalog(ctx, secondCatalog())
	require.NoError(t, err)

	c, err := db.LatestCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, secondCatalog().Templates, c.Templates)
}

func TestListTemplatesAndStats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.UpsertCatalog(ctx, firstCatalog())
	require.NoError(t, err)

	got, err := db.ListTemplates(ctx, ListOptions{Status: "in review"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "idta-02006-dn", got[0].ID)

	got, err = db.ListTemplates(ctx, ListOptions{Query: "old"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ext-old", got[0].ID)

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []StatusStats{
		{Status: "In Review", TemplateCount: 1, VersionCount: 2},
		{Status: "unknown", TemplateCount: 1, VersionCount: 1},
	}, stats)
}
