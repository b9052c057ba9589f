// Package semver parses and orders the major.minor.patch versions used by
// submodel templates. Versions come either from free-form registry text
// ("V1.0", "3.0.1") or from numeric repository folder names (3/0/1).
package semver

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SemVer is an immutable (major, minor, patch) triple.
type SemVer struct {
	Major int
	Minor int
	Patch int
}

var versionRegex = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?$`)

// New returns the version major.minor.patch.
func New(major, minor, patch int) SemVer {
	return SemVer{Major: major, Minor: minor, Patch: patch}
}

// Parse reads versions such as "1", "1.0", "1.0.0", "v1.0" or "V1.0".
// Missing minor/patch parts default to zero. Anything else fails.
func Parse(text string) (SemVer, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "v") || strings.HasPrefix(text, "V") {
		text = text[1:]
	}

	m := versionRegex.FindStringSubmatch(text)
	if m == nil {
		return SemVer{}, false
	}

	var parts [3]int
	for i := 0; i < 3; i++ {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return SemVer{}, false
		}
		parts[i] = n
	}
	return New(parts[0], parts[1], parts[2]), true
}

// FromPathParts builds a version from numeric path segments like
// ["3", "0", "1"]. At least two segments are required; a third is optional.
func FromPathParts(parts []string) (SemVer, bool) {
	if len(parts) < 2 {
		return SemVer{}, false
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}

	var nums [3]int
	for i, p := range parts {
		if !isDigits(p) {
			return SemVer{}, false
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return SemVer{}, false
		}
		nums[i] = n
	}
	return New(nums[0], nums[1], nums[2]), true
}

// LeadingNumeric returns the numeric segments at the start of parts, stopping
// at the first non-numeric one (usually a content folder such as "docs").
func LeadingNumeric(parts []string) []string {
	out := make([]string, 0, 3)
	for _, p := range parts {
		if !isDigits(p) {
			break
		}
		out = append(out, p)
	}
	return out
}

// IsNumeric reports whether s is a non-empty run of ASCII digits.
func IsNumeric(s string) bool {
	return isDigits(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 ordering v before, equal to or after o.
func (v SemVer) Compare(o SemVer) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

func (v SemVer) Less(o SemVer) bool { return v.Compare(o) < 0 }

func (v SemVer) Equal(o SemVer) bool { return v == o }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Normalize renders text in canonical major.minor.patch form when it parses,
// and returns it unchanged otherwise.
func Normalize(text string) string {
	if v, ok := Parse(text); ok {
		return v.String()
	}
	return text
}

// SortStrings sorts version strings newest first. Strings that do not parse
// are placed after all parseable ones, keeping their input order.
func SortStrings(versions []string) []string {
	out := append([]string(nil), versions...)
	sort.SliceStable(out, func(i, j int) bool {
		return NewerFirst(out[i], out[j])
	})
	return out
}

// NewerFirst is a "less" function ordering a before b when a is a newer
// version. Unparseable versions never sort before parseable ones.
func NewerFirst(a, b string) bool {
	va, okA := Parse(a)
	vb, okB := Parse(b)
	switch {
	case okA && okB:
		return vb.Less(va)
	case okA:
		return true
	default:
		return false
	}
}
