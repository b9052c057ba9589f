package validate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/merge"
	"github.com/smtindex/smtindex/pkg/sources"
)

func str(s string) *string { return &s }

func version(v string, pdf, gh *string) catalog.TemplateVersion {
	return catalog.TemplateVersion{
		Version: v,
		Links:   catalog.VersionLinks{PDF: pdf, GitHub: gh},
		GitHub:  []catalog.RepoReference{},
	}
}

func record(id string, versions ...catalog.TemplateVersion) catalog.TemplateRecord {
	if versions == nil {
		versions = []catalog.TemplateVersion{}
	}
	return catalog.TemplateRecord{ID: id, Name: id, Status: sources.StatusPublished, Versions: versions}
}

func TestCatalog(t *testing.T) {
	gh := str("https://github.com/admin-shell-io/submodel-templates/tree/main/published/X/1/0")
	pdf := str("https://example.org/x.pdf")

	tests := []struct {
		name      string
		templates []catalog.TemplateRecord
		want      []Issue
	}{
		{
			name:      "clean",
			templates: []catalog.TemplateRecord{record("idta-02006-x", version("1.0.0", pdf, gh))},
			want:      []Issue{},
		},
		{
			name: "duplicate reports earlier index",
			templates: []catalog.TemplateRecord{
				record("a", version("1.0.0", pdf, nil)),
				record("b", version("1.0.0", pdf, nil)),
				record("b", version("1.0.0", pdf, nil)),
			},
			want: []Issue{{Severity: SeverityError, TemplateID: "b", Message: "Duplicate template ID (first at index 1)"}},
		},
		{
			name:      "no links",
			templates: []catalog.TemplateRecord{record("a", version("1.0.0", nil, str("")))},
			want:      []Issue{{Severity: SeverityWarning, TemplateID: "a", Message: "Version 1.0.0 has no PDF or GitHub link"}},
		},
		{
			name:      "unparseable version",
			templates: []catalog.TemplateRecord{record("a", version("draft", pdf, nil))},
			want:      []Issue{{Severity: SeverityWarning, TemplateID: "a", Message: "Invalid version format: 'draft'"}},
		},
		{
			name:      "no versions",
			templates: []catalog.TemplateRecord{record("ext-a")},
			want:      []Issue{{Severity: SeverityWarning, TemplateID: "ext-a", Message: "Template has no versions"}},
		},
		{
			name:      "malformed pdf",
			templates: []catalog.TemplateRecord{record("a", version("1.0.0", str("not a url"), gh))},
			want:      []Issue{{Severity: SeverityWarning, TemplateID: "a", Message: "Malformed PDF URL: 'not a url'"}},
		},
		{
			name:      "malformed repo link",
			templates: []catalog.TemplateRecord{record("a", version("1.0.0", pdf, str("ftp://github.com/x")))},
			want:      []Issue{{Severity: SeverityWarning, TemplateID: "a", Message: "Malformed GitHub URL: 'ftp://github.com/x'"}},
		},
		{
			name:      "repo link off domain",
			templates: []catalog.TemplateRecord{record("a", version("1.0.0", pdf, str("https://gitlab.com/x/y")))},
			want:      []Issue{{Severity: SeverityInfo, TemplateID: "a", Message: "Non-GitHub URL in github field: 'https://gitlab.com/x/y'"}},
		},
		{
			name:      "subdomain of repo domain",
			templates: []catalog.TemplateRecord{record("a", version("1.0.0", pdf, str("https://www.GitHub.com/x/y")))},
			want:      []Issue{},
		},
		{
			name:      "checks are additive",
			templates: []catalog.TemplateRecord{record("a", version("beta", nil, nil))},
			want: []Issue{
				{Severity: SeverityWarning, TemplateID: "a", Message: "Version beta has no PDF or GitHub link"},
				{Severity: SeverityWarning, TemplateID: "a", Message: "Invalid version format: 'beta'"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := catalog.New(time.Now(), tt.templates)
			got := Catalog(c)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_DoesNotMutate(t *testing.T) {
	c := catalog.New(time.Unix(0, 0), []catalog.TemplateRecord{record("a", version("x", nil, nil)), record("a")})
	before := *c
	before.Templates = append([]catalog.TemplateRecord(nil), c.Templates...)

	Catalog(c)
	assert.Equal(t, before.Templates, c.Templates)
}

func TestPassed(t *testing.T) {
	assert.True(t, Passed(nil))
	assert.True(t, Passed([]Issue{{Severity: SeverityWarning}, {Severity: SeverityInfo}}))
	assert.False(t, Passed([]Issue{{Severity: SeverityInfo}, {Severity: SeverityError}}))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Issue{
		{Severity: SeverityError},
		{Severity: SeverityWarning},
		{Severity: SeverityWarning},
		{Severity: SeverityInfo},
	})
	assert.Equal(t, Summary{Errors: 1, Warnings: 2, Info: 1}, s)
}

func TestExternalWithoutVersionsWarns(t *testing.T) {
	records := merge.Sources([]sources.RegistryEntry{{Name: "Some External Model"}}, nil)
	issues := Catalog(catalog.New(time.Now(), records))

	require.Len(t, issues, 1)
	assert.Equal(t, "ext-some-external-model", issues[0].TemplateID)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, "Template has no versions", issues[0].Message)
	assert.True(t, Passed(issues))
}

func TestLoadAndValidate(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(dir, "missing.json")
		c, issues := LoadAndValidate(path)
		assert.Nil(t, c)
		require.Len(t, issues, 1)
		assert.Equal(t, SeverityError, issues[0].Severity)
		assert.Empty(t, issues[0].TemplateID)
		assert.Equal(t, "Index file not found: "+path, issues[0].Message)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		c, issues := LoadAndValidate(path)
		assert.Nil(t, c)
		require.Len(t, issues, 1)
		assert.Equal(t, SeverityError, issues[0].Severity)
		assert.Contains(t, issues[0].Message, "Invalid JSON")
		assert.False(t, Passed(issues))
	})

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "index.json")
		want := catalog.New(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), []catalog.TemplateRecord{
			record("idta-02006-x", version("1.0.0", str("https://example.org/x.pdf"), nil)),
		})
		require.NoError(t, catalog.Save(want, path))

		c, issues := LoadAndValidate(path)
		require.NotNil(t, c)
		assert.Empty(t, issues)
		assert.Len(t, c.Templates, 1)
	})
}
