// Package validate checks a finished catalog for data-quality problems.
// Checks never modify the catalog and are additive: every problem found is
// reported, and only error-severity issues fail validation.
package validate

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/semver"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// RepoDomain is the registrable domain repository links are expected on.
const RepoDomain = "github.com"

// Issue is a single validation finding. TemplateID is empty for problems
// that concern the catalog as a whole.
type Issue struct {
	Severity   Severity `json:"severity"`
	TemplateID string   `json:"template_id,omitempty"`
	Message    string   `json:"message"`
}

func (i Issue) String() string {
	id := i.TemplateID
	if id == "" {
		id = "-"
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, id, i.Message)
}

var urlPattern = regexp.MustCompile(`(?i)^https?://[^\s/$.?#].[^\s]*$`)

type check func(c *catalog.Catalog) []Issue

var checks = []check{
	duplicateIDs,
	missingLinks,
	invalidVersions,
	noVersions,
	urlPatterns,
}

// Catalog runs every check against c.
func Catalog(c *catalog.Catalog) []Issue {
	issues := []Issue{}
	if c == nil {
		return issues
	}
	for _, fn := range checks {
		issues = append(issues, fn(c)...)
	}
	return issues
}

// Passed reports whether issues contains no errors.
func Passed(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Summary counts issues per severity.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

func Summarize(issues []Issue) Summary {
	var s Summary
	for _, i := range issues {
		switch i.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Info++
		}
	}
	return s
}

// LoadAndValidate reads the index file at path and validates it. Load
// failures are returned as a single catalog-level error issue with a nil
// catalog.
func LoadAndValidate(path string) (*catalog.Catalog, []Issue) {
	data, err := os.ReadFile(path)
	if err != nil {
		msg := fmt.Sprintf("Failed to read index: %v", err)
		if errors.Is(err, fs.ErrNotExist) {
			msg = fmt.Sprintf("Index file not found: %s", path)
		}
		return nil, []Issue{{Severity: SeverityError, Message: msg}}
	}

	c, err := catalog.Decode(data)
	if err != nil {
		return nil, []Issue{{Severity: SeverityError, Message: fmt.Sprintf("Invalid JSON: %v", errors.Unwrap(err))}}
	}
	return c, Catalog(c)
}

func duplicateIDs(c *catalog.Catalog) []Issue {
	var issues []Issue
	seen := make(map[string]int)
	for i, t := range c.Templates {
		if first, ok := seen[t.ID]; ok {
			issues = append(issues, Issue{
				Severity:   SeverityError,
				TemplateID: t.ID,
				Message:    fmt.Sprintf("Duplicate template ID (first at index %d)", first),
			})
			continue
		}
		seen[t.ID] = i
	}
	return issues
}

func missingLinks(c *catalog.Catalog) []Issue {
	var issues []Issue
	for _, t := range c.Templates {
		for _, v := range t.Versions {
			if present(v.Links.PDF) || present(v.Links.GitHub) {
				continue
			}
			issues = append(issues, Issue{
				Severity:   SeverityWarning,
				TemplateID: t.ID,
				Message:    fmt.Sprintf("Version %s has no PDF or GitHub link", v.Version),
			})
		}
	}
	return issues
}

func invalidVersions(c *catalog.Catalog) []Issue {
	var issues []Issue
	for _, t := range c.Templates {
		for _, v := range t.Versions {
			if _, ok := semver.Parse(v.Version); ok {
				continue
			}
			issues = append(issues, Issue{
				Severity:   SeverityWarning,
				TemplateID: t.ID,
				Message:    fmt.Sprintf("Invalid version format: '%s'", v.Version),
			})
		}
	}
	return issues
}

func noVersions(c *catalog.Catalog) []Issue {
	var issues []Issue
	for _, t := range c.Templates {
		if len(t.Versions) == 0 {
			issues = append(issues, Issue{
				Severity:   SeverityWarning,
				TemplateID: t.ID,
				Message:    "Template has no versions",
			})
		}
	}
	return issues
}

func urlPatterns(c *catalog.Catalog) []Issue {
	var issues []Issue
	for _, t := range c.Templates {
		for _, v := range t.Versions {
			if pdf := v.Links.PDF; present(pdf) && !urlPattern.MatchString(*pdf) {
				issues = append(issues, Issue{
					Severity:   SeverityWarning,
					TemplateID: t.ID,
					Message:    fmt.Sprintf("Malformed PDF URL: '%s'", *pdf),
				})
			}

			gh := v.Links.GitHub
			if !present(gh) {
				continue
			}
			switch {
			case !urlPattern.MatchString(*gh):
				issues = append(issues, Issue{
					Severity:   SeverityWarning,
					TemplateID: t.ID,
					Message:    fmt.Sprintf("Malformed GitHub URL: '%s'", *gh),
				})
			case !onRepoDomain(*gh):
				issues = append(issues, Issue{
					Severity:   SeverityInfo,
					TemplateID: t.ID,
					Message:    fmt.Sprintf("Non-GitHub URL in github field: '%s'", *gh),
				})
			}
		}
	}
	return issues
}

// onRepoDomain reports whether link is hosted under RepoDomain, comparing
// registrable domains so that subdomains count.
func onRepoDomain(link string) bool {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return false
	}
	domain, err := publicsuffix.Domain(strings.ToLower(u.Hostname()))
	if err != nil {
		return false
	}
	return domain == RepoDomain
}

func present(p *string) bool {
	return p != nil && *p != ""
}
