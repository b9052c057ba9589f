// Package identity derives the stable identity strings used to decide whether
// a registry row and a repository folder describe the same template.
package identity

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/smtindex/smtindex/pkg/semver"
)

var (
	nonAlnumRegex    = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	registryNumRegex = regexp.MustCompile(`\b(\d{5})\b`)
	treeBranchRegex  = regexp.MustCompile(`/tree/(main|master)/?$`)

	// Letters that do not decompose into base + mark.
	ligatures = strings.NewReplacer("ß", "ss", "æ", "ae", "Æ", "ae", "ø", "o", "Ø", "o", "œ", "oe", "Œ", "oe")
)

// Slugify converts a template display name to its lowercase hyphenated slug.
//
//	Slugify("Digital Nameplate")          == "digital-nameplate"
//	Slugify("Schnittstelle für Geräte")   == "schnittstelle-fur-gerate"
func Slugify(name string) string {
	s := ligatures.Replace(name)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = nonAlnumRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SlugsMatch reports whether two slugs are close enough to be the same
// template: equal, one containing the other, or equal once hyphens are removed.
// An empty slug matches nothing.
func SlugsMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return strings.ReplaceAll(a, "-", "") == strings.ReplaceAll(b, "-", "")
}

// NormalizeRepoURL trims a trailing slash and a trailing /tree/main or
// /tree/master segment so links to the same folder compare equal.
func NormalizeRepoURL(u string) string {
	u = strings.TrimRight(u, "/")
	return treeBranchRegex.ReplaceAllString(u, "")
}

// ExtractRegistryNumber returns the first standalone five digit number in text.
//
//	ExtractRegistryNumber("IDTA 02006 Digital Nameplate") == "02006"
func ExtractRegistryNumber(text string) (string, bool) {
	m := registryNumRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// TemplateRoot strips the trailing numeric version segments from a repository
// path: "published/Digital Nameplate/3/0/1" -> "published/Digital Nameplate".
func TemplateRoot(repoPath string) string {
	parts := strings.Split(strings.Trim(repoPath, "/"), "/")
	end := len(parts)
	for end > 0 && semver.IsNumeric(parts[end-1]) {
		end--
	}
	return strings.Join(parts[:end], "/")
}

// EscapePath escapes every segment of a slash separated path for use in a URL.
func EscapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
