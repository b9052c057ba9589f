package fixture

import (
	"context"

	"github.com/smtindex/smtindex/pkg/identity"
	"github.com/smtindex/smtindex/pkg/semver"
	"github.com/smtindex/smtindex/pkg/sources"
)

// Offline sources used by `build --dev` and tests. The data covers every
// merge path: URL, exact slug and fuzzy matches, registry-only and
// repository-only templates, and an unparseable registry version.

const (
	RegistryURL = "https://fixture.invalid/content-hub"
	RepoURL     = "https://github.com/admin-shell-io/submodel-templates"
	Commit      = "0000000000000000000000000000000000000000"
)

type Registry struct {
	Entries []sources.RegistryEntry
}

// NewRegistry returns a registry source serving the built-in rows.
func NewRegistry() *Registry { return &Registry{Entries: RegistryEntries()} }

func (r *Registry) Name() string { return "fixture-registry" }

func (r *Registry) FetchTemplates(ctx context.Context) ([]sources.RegistryEntry, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, RegistryURL, err
	}
	return append([]sources.RegistryEntry(nil), r.Entries...), RegistryURL, nil
}

type Repository struct {
	Entries []sources.VersionEntry
}

// NewRepository returns a repository source serving the built-in folders.
func NewRepository() *Repository { return &Repository{Entries: VersionEntries()} }

func (r *Repository) Name() string { return "fixture-repository" }

func (r *Repository) URL() string { return RepoURL }

func (r *Repository) FetchVersions(ctx context.Context) ([]sources.VersionEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]sources.VersionEntry(nil), r.Entries...), nil
}

func (r *Repository) HeadCommit(ctx context.Context) (string, error) {
	return Commit, ctx.Err()
}

func RegistryEntries() []sources.RegistryEntry {
	s := sources.String
	return []sources.RegistryEntry{
		{
			Name: "Digital Nameplate for Industrial Equipment", RegistryNumber: s("02006"), Version: s("3.0"),
			Status: sources.StatusPublished, RawStatus: s("Published"),
			PDFLink:  s("https://industrialdigitaltwin.org/wp-content/uploads/2025/01/IDTA-02006-3-0_Submodel_Digital-Nameplate.pdf"),
			RepoLink: s(RepoURL + "/tree/main/published/Digital%20nameplate"),
		},
		{
			Name: "Contact Information", RegistryNumber: s("02002"), Version: s("1.0"),
			Status: sources.StatusPublished, RawStatus: s("Published"),
			PDFLink: s("https://industrialdigitaltwin.org/wp-content/uploads/2023/04/IDTA-02002-1-0_Submodel_ContactInformation.pdf"),
		},
		{
			Name: "Handover Documentation", RegistryNumber: s("02004"), Version: s("1.2"),
			Status: sources.StatusPublished, RawStatus: s("Published"),
			Description: s("Exchange of documentation between manufacturer and operator following VDI 2770."),
		},
		{
			Name: "Handover Documentation", Version: s("2.0"),
			Status: sources.StatusInReview, RawStatus: s("In Review"),
			RepoLink: s(RepoURL + "/tree/main/published/Handover%20Documentation"),
		},
		{
			Name: "Carbon Footprint", RegistryNumber: s("02023"), Version: s("0.9"),
			Status: sources.StatusPublished, RawStatus: s("Published"),
		},
		{
			Name: "Battery Passport", Version: s("draft"),
			Status: sources.StatusInDevelopment, RawStatus: s("In Development"),
		},
		{
			Name:   "Asset Interfaces Mapping Configuration",
			Status: sources.StatusProposal, RawStatus: s("Proposal submitted"),
		},
	}
}

func VersionEntries() []sources.VersionEntry {
	folders := []struct {
		area     sources.Area
		template string
		version  []string
	}{
		{sources.AreaPublished, "Digital nameplate", []string{"2", "0"}},
		{sources.AreaPublished, "Digital nameplate", []string{"3", "0"}},
		{sources.AreaPublished, "Digital nameplate", []string{"3", "0", "1"}},
		{sources.AreaPublished, "Contact Information", []string{"1", "0"}},
		{sources.AreaPublished, "Handover Documentation", []string{"1", "2"}},
		{sources.AreaPublished, "CarbonFootprint", []string{"0", "9"}},
		{sources.AreaDeprecated, "Technical Data", []string{"1", "1"}},
		{sources.AreaPublished, "Technical Data", []string{"1", "2"}},
	}

	out := make([]sources.VersionEntry, 0, len(folders))
	for _, f := range folders {
		v, _ := semver.FromPathParts(f.version)
		path := string(f.area) + "/" + f.template
		for _, p := range f.version {
			path += "/" + p
		}
		out = append(out, sources.NewVersionEntry(f.template, f.area, v, path, RepoURL+"/tree/main/"+identity.EscapePath(path)))
	}
	return out
}
