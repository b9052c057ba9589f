// Package sources defines the raw records produced by the registry and
// repository adapters, and the interfaces those adapters implement.
package sources

import (
	"context"
	"strings"

	"github.com/smtindex/smtindex/pkg/identity"
	"github.com/smtindex/smtindex/pkg/semver"
)

// Status is the publication state of a template as reported by the registry.
type Status string

const (
	StatusPublished     Status = "Published"
	StatusInReview      Status = "In Review"
	StatusInDevelopment Status = "In Development"
	StatusProposal      Status = "Proposal submitted"
	StatusUnknown       Status = "unknown"
)

// Statuses lists every valid Status value.
var Statuses = []Status{StatusPublished, StatusInReview, StatusInDevelopment, StatusProposal, StatusUnknown}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// NormalizeStatus maps free status text (English or German) to a Status.
func NormalizeStatus(text string) Status {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "published") || strings.Contains(t, "veröffentlicht"):
		return StatusPublished
	case strings.Contains(t, "review") || strings.Contains(t, "in prüfung"):
		return StatusInReview
	case strings.Contains(t, "development") || strings.Contains(t, "in entwicklung"):
		return StatusInDevelopment
	case strings.Contains(t, "proposal") || strings.Contains(t, "vorschlag"):
		return StatusProposal
	}
	return StatusUnknown
}

// Area is the top-level repository folder a version was found under.
type Area string

const (
	AreaPublished  Area = "published"
	AreaDeprecated Area = "deprecated"
)

// RegistryEntry is one template row scraped from the content hub.
// Only Name is guaranteed; every pointer field may be absent.
type RegistryEntry struct {
	Name           string
	RegistryNumber *string
	Version        *string
	Status         Status
	RawStatus      *string
	Description    *string
	PDFLink        *string
	RepoLink       *string
}

// Slug returns the identity slug derived from the entry name.
func (e RegistryEntry) Slug() string {
	return identity.Slugify(e.Name)
}

// VersionEntry is one version folder discovered in the repository.
type VersionEntry struct {
	TemplateName string
	Area         Area
	Version      semver.SemVer
	RepoPath     string
	URL          string
	Slug         string
}

// NewVersionEntry fills in the derived slug.
func NewVersionEntry(templateName string, area Area, v semver.SemVer, repoPath, url string) VersionEntry {
	return VersionEntry{
		TemplateName: templateName,
		Area:         area,
		Version:      v,
		RepoPath:     repoPath,
		URL:          url,
		Slug:         identity.Slugify(templateName),
	}
}

// RegistrySource produces registry rows. The returned URL is the page that
// actually yielded the rows, recorded as catalog provenance.
type RegistrySource interface {
	Name() string
	FetchTemplates(ctx context.Context) ([]RegistryEntry, string, error)
}

// RepositorySource produces repository version entries.
type RepositorySource interface {
	Name() string
	URL() string
	FetchVersions(ctx context.Context) ([]VersionEntry, error)
}

// CommitResolver is implemented by repository sources that can report the
// commit their data was taken from.
type CommitResolver interface {
	HeadCommit(ctx context.Context) (string, error)
}

// String returns a pointer to s, or nil when s is blank.
func String(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Value dereferences p, returning "" when absent.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Logger abstracts logging so adapters can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// NopLogger silently discards all messages.
type NopLogger struct{}

func (NopLogger) Infof(string, ...interface{})  {}
func (NopLogger) Warnf(string, ...interface{})  {}
func (NopLogger) Errorf(string, ...interface{}) {}
func (NopLogger) Debugf(string, ...interface{}) {}
