// Package output writes a built catalog to disk as JSON, CSV and a stats
// summary, and derives the summary views served over HTTP.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/validate"
)

const (
	IndexJSON = "index.json"
	IndexCSV  = "index.csv"
	StatsJSON = "stats.json"
)

var csvHeader = []string{
	"template_id",
	"template_name",
	"idta_number",
	"status",
	"version",
	"is_latest",
	"pdf_link",
	"github_link",
	"github_area",
	"github_repo_path",
	"github_versions",
}

// Paths lists the files written by WriteAll.
type Paths struct {
	JSON  string
	CSV   string
	Stats string
}

// WriteAll writes index.json, index.csv and stats.json into dir.
func WriteAll(dir string, c *catalog.Catalog, issues []validate.Issue) (Paths, error) {
	p := Paths{
		JSON:  filepath.Join(dir, IndexJSON),
		CSV:   filepath.Join(dir, IndexCSV),
		Stats: filepath.Join(dir, StatsJSON),
	}

	if err := catalog.Save(c, p.JSON); err != nil {
		return p, fmt.Errorf("writing %s: %w", p.JSON, err)
	}
	if err := writeFile(p.CSV, func(w io.Writer) error { return WriteCSV(w, c) }); err != nil {
		return p, fmt.Errorf("writing %s: %w", p.CSV, err)
	}
	stats := ComputeStats(c)
	summary := validate.Summarize(issues)
	stats.Issues = &summary
	if err := writeFile(p.Stats, func(w io.Writer) error { return writeJSON(w, stats) }); err != nil {
		return p, fmt.Errorf("writing %s: %w", p.Stats, err)
	}
	return p, nil
}

// WriteCSV writes one row per template version, or a single row with empty
// version columns for a template without versions.
func WriteCSV(w io.Writer, c *catalog.Catalog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, t := range c.Templates {
		base := []string{t.ID, t.Name, value(t.IDTANumber), string(t.Status)}

		if len(t.Versions) == 0 {
			if err := cw.Write(append(base, "", "", "", "", "", "", "")); err != nil {
				return err
			}
			continue
		}

		for _, v := range t.Versions {
			var area, path string
			refs := make([]string, 0, len(v.GitHub))
			for i, ref := range v.GitHub {
				if i == 0 {
					area, path = string(ref.Area), ref.RepoPath
				}
				refs = append(refs, string(ref.Area)+":"+ref.RepoPath)
			}

			row := append(append([]string(nil), base...),
				v.Version,
				csvBool(v.IsLatest),
				value(v.Links.PDF),
				value(v.Links.GitHub),
				area,
				path,
				strings.Join(refs, ";"),
			)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// Stats summarizes a catalog.
type Stats struct {
	SchemaVersion  string            `json:"schema_version"`
	GeneratedAt    catalog.Timestamp `json:"generated_at"`
	TotalTemplates int               `json:"total_templates"`
	TotalVersions  int               `json:"total_versions"`
	ByStatus       map[string]int    `json:"by_status"`
	ByPrefix       map[string]int    `json:"by_prefix"`
	Issues         *validate.Summary `json:"issues,omitempty"`
}

func ComputeStats(c *catalog.Catalog) Stats {
	s := Stats{
		SchemaVersion:  c.SchemaVersion,
		GeneratedAt:    c.GeneratedAt,
		TotalTemplates: len(c.Templates),
		TotalVersions:  c.VersionCount(),
		ByStatus:       map[string]int{},
		ByPrefix:       map[string]int{},
	}
	for _, t := range c.Templates {
		s.ByStatus[string(t.Status)]++
		s.ByPrefix[t.Prefix()]++
	}
	return s
}

// TemplateSummary is the list view of a template.
type TemplateSummary struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	IDTANumber    *string `json:"idta_number"`
	Status        string  `json:"status"`
	VersionCount  int     `json:"version_count"`
	LatestVersion *string `json:"latest_version"`
}

func Summarize(t catalog.TemplateRecord) TemplateSummary {
	s := TemplateSummary{
		ID:           t.ID,
		Name:         t.Name,
		IDTANumber:   t.IDTANumber,
		Status:       string(t.Status),
		VersionCount: len(t.Versions),
	}
	if len(t.Versions) > 0 {
		v := t.Versions[0].Version
		s.LatestVersion = &v
	}
	return s
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// csvBool renders booleans as True/False, as earlier index.csv files do.
func csvBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
