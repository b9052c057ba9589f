// Package merge reconciles registry rows and repository version folders into
// canonical template records.
//
// Matching runs per registry template (rows grouped by slug) and stops at the
// first strategy that finds repository evidence:
//
//  1. the registry repository link, when it points into a /tree/ folder, is
//     compared against the template root URL of every repository entry;
//  2. the registry slug is looked up exactly among repository slugs;
//  3. the first repository slug that fuzzily matches is taken.
//
// Repository slugs left unclaimed become gh- records of their own.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/identity"
	"github.com/smtindex/smtindex/pkg/semver"
	"github.com/smtindex/smtindex/pkg/sources"
)

// Strategy names how a registry template found its repository entries.
type Strategy string

const (
	StrategyNone  Strategy = "none"
	StrategyURL   Strategy = "url"
	StrategySlug  Strategy = "slug"
	StrategyFuzzy Strategy = "fuzzy"
)

// Stats counts the outcome of a merge.
type Stats struct {
	RegistryTemplates   int
	RepositoryTemplates int
	Matched             map[Strategy]int
	RepositoryOnly      int
}

// Result is the output of Run.
type Result struct {
	Records []catalog.TemplateRecord
	Stats   Stats
}

// Sources merges registry and repository data into records sorted by id.
// The inputs are not modified and the output depends only on them.
func Sources(registry []sources.RegistryEntry, repo []sources.VersionEntry) []catalog.TemplateRecord {
	return Run(registry, repo).Records
}

// Run is Sources with match statistics.
func Run(registry []sources.RegistryEntry, repo []sources.VersionEntry) Result {
	idx := newRepoIndex(repo)
	groups := groupRegistry(registry)

	stats := Stats{
		RegistryTemplates:   len(groups),
		RepositoryTemplates: len(idx.slugs),
		Matched:             map[Strategy]int{},
	}

	records := make([]catalog.TemplateRecord, 0, len(groups)+len(idx.slugs))
	consumed := make(map[string]bool)

	for _, g := range groups {
		matches, strategy := idx.find(g)
		stats.Matched[strategy]++
		if len(matches) > 0 {
			consumed[matches[0].Slug] = true
		}
		records = append(records, registryRecord(g, matches))
	}

	for _, slug := range idx.slugs {
		if consumed[slug] {
			continue
		}
		stats.RepositoryOnly++
		records = append(records, repositoryRecord(idx.bySlug[slug]))
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return Result{Records: records, Stats: stats}
}

// registryGroup is every registry row sharing one slug.
type registryGroup struct {
	slug    string
	primary sources.RegistryEntry
	rows    []sources.RegistryEntry
}

// groupRegistry groups rows by slug in first-seen order. The primary row is
// the first one carrying a registry number, else the first row.
func groupRegistry(entries []sources.RegistryEntry) []*registryGroup {
	var groups []*registryGroup
	bySlug := make(map[string]*registryGroup)

	for _, e := range entries {
		slug := e.Slug()
		g, ok := bySlug[slug]
		if !ok {
			g = &registryGroup{slug: slug, primary: e}
			bySlug[slug] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, e)
	}

	for _, g := range groups {
		for _, row := range g.rows {
			if hasValue(row.RegistryNumber) {
				g.primary = row
				break
			}
		}
	}
	return groups
}

// repoIndex keeps repository entries by slug and by template root URL, both
// in first-seen order so lookups that scan are deterministic.
type repoIndex struct {
	slugs    []string
	bySlug   map[string][]sources.VersionEntry
	prefixes []string
	byPrefix map[string][]sources.VersionEntry
}

func newRepoIndex(entries []sources.VersionEntry) *repoIndex {
	idx := &repoIndex{
		bySlug:   make(map[string][]sources.VersionEntry),
		byPrefix: make(map[string][]sources.VersionEntry),
	}

	for _, e := range entries {
		if _, ok := idx.bySlug[e.Slug]; !ok {
			idx.slugs = append(idx.slugs, e.Slug)
		}
		idx.bySlug[e.Slug] = append(idx.bySlug[e.Slug], e)

		root := rootURL(e)
		if _, ok := idx.byPrefix[root]; !ok {
			idx.prefixes = append(idx.prefixes, root)
		}
		idx.byPrefix[root] = append(idx.byPrefix[root], e)
	}

	for _, list := range idx.bySlug {
		sortNewestFirst(list)
	}
	for _, list := range idx.byPrefix {
		sortNewestFirst(list)
	}
	return idx
}

func sortNewestFirst(entries []sources.VersionEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[j].Version.Less(entries[i].Version)
	})
}

// rootURL is the normalized URL of the folder holding all versions of the
// entry's template.
func rootURL(e sources.VersionEntry) string {
	u := strings.TrimRight(e.URL, "/")
	path := strings.Trim(e.RepoPath, "/")
	encoded := identity.EscapePath(path)

	if path != "" && strings.HasSuffix(u, "/"+encoded) {
		base := strings.TrimSuffix(u, "/"+encoded)
		if root := identity.TemplateRoot(path); root != "" {
			base += "/" + identity.EscapePath(root)
		}
		return identity.NormalizeRepoURL(base)
	}

	// URL does not end in the repository path; strip version segments from it.
	parts := strings.Split(u, "/")
	end := len(parts)
	for end > 0 && semver.IsNumeric(parts[end-1]) {
		end--
	}
	return identity.NormalizeRepoURL(strings.Join(parts[:end], "/"))
}

// find returns the repository entries backing a registry group.
func (idx *repoIndex) find(g *registryGroup) ([]sources.VersionEntry, Strategy) {
	if link := value(g.primary.RepoLink); strings.Contains(link, "/tree/") {
		normalized := identity.NormalizeRepoURL(link)
		// Prefix containment is tested both ways, so a template root that is a
		// string prefix of a sibling (Part vs PartTwo) can match the sibling.
		for _, prefix := range idx.prefixes {
			if strings.HasPrefix(normalized, prefix) || strings.HasPrefix(prefix, normalized) {
				return idx.byPrefix[prefix], StrategyURL
			}
		}
	}

	if entries, ok := idx.bySlug[g.slug]; ok {
		return entries, StrategySlug
	}

	for _, slug := range idx.slugs {
		if identity.SlugsMatch(g.slug, slug) {
			return idx.bySlug[slug], StrategyFuzzy
		}
	}
	return nil, StrategyNone
}

// registryRecord builds the record for one registry group, layering in any
// matched repository entries.
func registryRecord(g *registryGroup, matches []sources.VersionEntry) catalog.TemplateRecord {
	acc := newVersionSet()

	for _, row := range g.rows {
		if !hasValue(row.Version) {
			continue
		}
		v := semver.Normalize(*row.Version)
		if existing, ok := acc.get(v); ok {
			fillLink(&existing.Links.PDF, row.PDFLink)
			fillLink(&existing.Links.GitHub, row.RepoLink)
			continue
		}
		acc.add(&catalog.TemplateVersion{
			Version: v,
			Links: catalog.VersionLinks{
				PDF:    clone(row.PDFLink),
				GitHub: clone(row.RepoLink),
			},
			GitHub: []catalog.RepoReference{},
		})
	}

	for _, e := range matches {
		acc.addRepository(e)
	}

	var description *string
	for _, row := range g.rows {
		if hasValue(row.Description) {
			description = clone(row.Description)
			break
		}
	}

	p := g.primary
	return catalog.TemplateRecord{
		ID:          registryID(p, g.slug),
		Name:        p.Name,
		IDTANumber:  clone(p.RegistryNumber),
		Status:      statusOf(p.Status),
		RawStatus:   clone(p.RawStatus),
		Description: description,
		Versions:    finalizeVersions(acc.list()),
	}
}

// repositoryRecord builds a gh- record from entries sharing one slug.
// Callers must pass at least one entry.
func repositoryRecord(entries []sources.VersionEntry) catalog.TemplateRecord {
	if len(entries) == 0 {
		panic("merge: repository record requested with no entries")
	}

	first := entries[0]
	status := sources.StatusUnknown
	acc := newVersionSet()
	for _, e := range entries {
		if e.Area == sources.AreaPublished {
			status = sources.StatusPublished
		}
		acc.addRepository(e)
	}

	return catalog.TemplateRecord{
		ID:       "gh-" + first.Slug,
		Name:     first.TemplateName,
		Status:   status,
		Versions: finalizeVersions(acc.list()),
	}
}

func registryID(primary sources.RegistryEntry, slug string) string {
	if hasValue(primary.RegistryNumber) {
		return fmt.Sprintf("idta-%s-%s", strings.TrimSpace(*primary.RegistryNumber), slug)
	}
	return "ext-" + slug
}

func statusOf(s sources.Status) sources.Status {
	if s.Valid() {
		return s
	}
	return sources.StatusUnknown
}

// finalizeVersions orders versions newest first and flags only the first one
// as latest. Unparseable versions keep their relative order after the rest.
func finalizeVersions(versions []catalog.TemplateVersion) []catalog.TemplateVersion {
	sort.SliceStable(versions, func(i, j int) bool {
		return semver.NewerFirst(versions[i].Version, versions[j].Version)
	})
	for i := range versions {
		versions[i].IsLatest = i == 0
	}
	return versions
}

// versionSet accumulates the versions of a single record, keyed by
// normalized version string, in insertion order.
type versionSet struct {
	order     []string
	byVersion map[string]*catalog.TemplateVersion
}

func newVersionSet() *versionSet {
	return &versionSet{byVersion: make(map[string]*catalog.TemplateVersion)}
}

func (s *versionSet) get(v string) (*catalog.TemplateVersion, bool) {
	tv, ok := s.byVersion[v]
	return tv, ok
}

func (s *versionSet) add(tv *catalog.TemplateVersion) {
	s.order = append(s.order, tv.Version)
	s.byVersion[tv.Version] = tv
}

// addRepository attaches e as a reference on its version, creating the
// version when it is new.
func (s *versionSet) addRepository(e sources.VersionEntry) {
	v := e.Version.String()
	ref := catalog.RepoReference{
		Version:   v,
		Area:      e.Area,
		RepoPath:  e.RepoPath,
		GitHubURL: e.URL,
	}

	if existing, ok := s.get(v); ok {
		existing.GitHub = append(existing.GitHub, ref)
		if !hasValue(existing.Links.GitHub) {
			existing.Links.GitHub = sources.String(e.URL)
		}
		return
	}

	s.add(&catalog.TemplateVersion{
		Version: v,
		Links:   catalog.VersionLinks{GitHub: sources.String(e.URL)},
		GitHub:  []catalog.RepoReference{ref},
	})
}

func (s *versionSet) list() []catalog.TemplateVersion {
	out := make([]catalog.TemplateVersion, 0, len(s.order))
	for _, v := range s.order {
		out = append(out, *s.byVersion[v])
	}
	return out
}

// fillLink sets *dst from src only when dst is still empty.
func fillLink(dst **string, src *string) {
	if hasValue(*dst) || !hasValue(src) {
		return
	}
	*dst = clone(src)
}

func hasValue(p *string) bool {
	return p != nil && strings.TrimSpace(*p) != ""
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func clone(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
