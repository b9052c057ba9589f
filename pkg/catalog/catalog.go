// Package catalog holds the canonical, persisted shape of the template index.
// JSON field names match the index.json files already published, so optional
// values are pointers that serialize as null rather than being omitted.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smtindex/smtindex/pkg/sources"
)

const (
	SchemaVersion = "1.0"

	DefaultRegistryURL   = "https://industrialdigitaltwin.org/content-hub/teilmodelle"
	DefaultRepositoryURL = "https://github.com/admin-shell-io/submodel-templates"
)

// RepoReference records one repository folder a version was observed in.
type RepoReference struct {
	Version   string       `json:"version"`
	Area      sources.Area `json:"area"`
	RepoPath  string       `json:"repo_path"`
	GitHubURL string       `json:"github_url"`
}

// VersionLinks bundles the documents published for one version.
type VersionLinks struct {
	PDF    *string `json:"pdf"`
	GitHub *string `json:"github"`
}

// TemplateVersion is one version of a template, owned by its TemplateRecord.
type TemplateVersion struct {
	Version  string          `json:"version"`
	IsLatest bool            `json:"is_latest"`
	Links    VersionLinks    `json:"links"`
	GitHub   []RepoReference `json:"github"`
}

// TemplateRecord is one reconciled template with its version history,
// newest version first.
type TemplateRecord struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	IDTANumber  *string           `json:"idta_number"`
	Status      sources.Status    `json:"status"`
	RawStatus   *string           `json:"raw_status"`
	Description *string           `json:"description"`
	Versions    []TemplateVersion `json:"versions"`
}

// Latest returns the version flagged as latest, if any.
func (r TemplateRecord) Latest() (TemplateVersion, bool) {
	for _, v := range r.Versions {
		if v.IsLatest {
			return v, true
		}
	}
	return TemplateVersion{}, false
}

// Prefix returns the identifier scheme of the record: idta, ext or gh.
func (r TemplateRecord) Prefix() string {
	p, _, _ := strings.Cut(r.ID, "-")
	return p
}

// Sources lists the upstream URLs the catalog was built from.
type Sources struct {
	IDTARegisteredTemplates string `json:"idta_registered_templates"`
	GitHubSubmodelTemplates string `json:"github_submodel_templates"`
}

// DefaultSources returns the upstream URLs used when none are configured.
func DefaultSources() Sources {
	return Sources{
		IDTARegisteredTemplates: DefaultRegistryURL,
		GitHubSubmodelTemplates: DefaultRepositoryURL,
	}
}

// SourceProvenance describes one fetch of an upstream source.
type SourceProvenance struct {
	URL         string    `json:"url"`
	FetchedAt   Timestamp `json:"fetched_at"`
	RecordCount int       `json:"record_count"`
}

// BuildProvenance describes how a catalog was produced.
type BuildProvenance struct {
	BuildStartedAt       Timestamp          `json:"build_started_at"`
	BuildCompletedAt     Timestamp          `json:"build_completed_at"`
	BuildDurationSeconds float64            `json:"build_duration_seconds"`
	Sources              []SourceProvenance `json:"sources"`
	GitCommit            *string            `json:"git_commit"`
	ToolVersion          string             `json:"tool_version"`
}

// Catalog is the complete template index.
type Catalog struct {
	SchemaVersion string           `json:"schema_version"`
	GeneratedAt   Timestamp        `json:"generated_at"`
	Sources       Sources          `json:"sources"`
	Provenance    *BuildProvenance `json:"provenance"`
	Templates     []TemplateRecord `json:"templates"`
}

// New returns an empty catalog stamped with generatedAt.
func New(generatedAt time.Time, templates []TemplateRecord) *Catalog {
	if templates == nil {
		templates = []TemplateRecord{}
	}
	return &Catalog{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   At(generatedAt),
		Sources:       DefaultSources(),
		Templates:     templates,
	}
}

// VersionCount returns the number of versions across all templates.
func (c *Catalog) VersionCount() int {
	n := 0
	for _, t := range c.Templates {
		n += len(t.Versions)
	}
	return n
}

// Find returns the template with the given identifier.
func (c *Catalog) Find(id string) (TemplateRecord, bool) {
	for _, t := range c.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return TemplateRecord{}, false
}

// Load reads a catalog from an index.json file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses catalog JSON.
func Decode(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid catalog JSON: %w", err)
	}
	if c.Templates == nil {
		c.Templates = []TemplateRecord{}
	}
	return &c, nil
}

// Save writes the catalog as indented JSON, creating parent directories.
func Save(c *Catalog, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
