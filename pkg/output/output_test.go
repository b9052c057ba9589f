package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/sources"
	"github.com/smtindex/smtindex/pkg/validate"
)

func str(s string) *string { return &s }

func sampleCatalog() *catalog.Catalog {
	return catalog.New(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), []catalog.TemplateRecord{
		{
			ID: "ext-future", Name: "Future, Model", Status: sources.StatusProposal,
			Versions: []catalog.TemplateVersion{},
		},
		{
			ID: "idta-02006-digital-nameplate", Name: "Digital Nameplate", IDTANumber: str("02006"), Status: sources.StatusPublished,
			Versions: []catalog.TemplateVersion{
				{
					Version: "3.0.1", IsLatest: true,
					Links: catalog.VersionLinks{GitHub: str("https://github.com/x/tree/main/published/DN/3/0/1")},
					GitHub: []catalog.RepoReference{
						{Version: "3.0.1", Area: sources.AreaPublished, RepoPath: "published/DN/3/0/1"},
						{Version: "3.0.1", Area: sources.AreaDeprecated, RepoPath: "deprecated/DN/3/0/1"},
					},
				},
				{
					Version: "3.0.0",
					Links:   catalog.VersionLinks{PDF: str("https://example.org/dn.pdf")},
					GitHub:  []catalog.RepoReference{},
				},
			},
		},
	})
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleCatalog()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"ext-future", "Future, Model", "", "Proposal submitted", "", "", "", "", "", "", ""}, rows[1])
	assert.Equal(t, []string{
		"idta-02006-digital-nameplate", "Digital Nameplate", "02006", "Published",
		"3.0.1", "True", "", "https://github.com/x/tree/main/published/DN/3/0/1",
		"published", "published/DN/3/0/1", "published:published/DN/3/0/1;deprecated:deprecated/DN/3/0/1",
	}, rows[2])
	assert.Equal(t, []string{
		"idta-02006-digital-nameplate", "Digital Nameplate", "02006", "Published",
		"3.0.0", "False", "https://example.org/dn.pdf", "", "", "", "",
	}, rows[3])
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats(sampleCatalog())
	assert.Equal(t, "1.0", s.SchemaVersion)
	assert.Equal(t, 2, s.TotalTemplates)
	assert.Equal(t, 2, s.TotalVersions)
	assert.Equal(t, map[string]int{"Proposal submitted": 1, "Published": 1}, s.ByStatus)
	assert.Equal(t, map[string]int{"ext": 1, "idta": 1}, s.ByPrefix)
	assert.Nil(t, s.Issues)
}

func TestSummarize(t *testing.T) {
	c := sampleCatalog()

	empty := Summarize(c.Templates[0])
	assert.Nil(t, empty.LatestVersion)
	assert.Equal(t, 0, empty.VersionCount)

	dn := Summarize(c.Templates[1])
	require.NotNil(t, dn.LatestVersion)
	assert.Equal(t, "3.0.1", *dn.LatestVersion)
	assert.Equal(t, 2, dn.VersionCount)
	assert.Equal(t, "02006", *dn.IDTANumber)
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	issues := []validate.Issue{{Severity: validate.SeverityWarning, TemplateID: "ext-future", Message: "Template has no versions"}}

	paths, err := WriteAll(dir, sampleCatalog(), issues)
	require.NoError(t, err)

	loaded, err := catalog.Load(paths.JSON)
	require.NoError(t, err)
	assert.Len(t, loaded.Templates, 2)

	_, err = os.Stat(paths.CSV)
	require.NoError(t, err)

	data, err := os.ReadFile(paths.Stats)
	require.NoError(t, err)
	var stats Stats
	require.NoError(t, json.Unmarshal(data, &stats))
	require.NotNil(t, stats.Issues)
	assert.Equal(t, 1, stats.Issues.Warnings)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), stats.GeneratedAt.Time)
}
