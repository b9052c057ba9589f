package contenthub

import (
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/smtindex/smtindex/pkg/sources"
)

// TokenParser reads the page as a flat stream of text and link tokens. Each
// template starts after a "Downloads & Links" header cell and is laid out as
// name, number, version, status, then free text and links up to the next
// "Submodel Template" header.
type TokenParser struct{}

func (TokenParser) Name() string { return "tokens" }

const (
	rowAnchor = "Downloads & Links"
	rowEnd    = "Submodel Template"
)

var headerTokens = map[string]bool{
	"Submodel Template":    true,
	"IDTA Number":          true,
	"Version":              true,
	"Status":               true,
	"Downloads & Links":    true,
	"Coming soon":          true,
	"Select sorting":       true,
	"Sort by IDTA numbers": true,
	"Sort by name":         true,
}

var (
	tokenNumber  = regexp.MustCompile(`^\d{5}$`)
	tokenVersion = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?$`)
)

type token struct {
	text string
	href string
	link bool
}

func (TokenParser) Parse(page string) ([]sources.RegistryEntry, error) {
	toks, err := tokenize(page)
	if err != nil {
		return nil, err
	}

	var entries []sources.RegistryEntry
	for i := 0; i < len(toks); {
		if !toks[i].link && toks[i].text == rowAnchor {
			if e, next, ok := tokenEntry(toks, i+1); ok {
				entries = append(entries, e)
				i = next
				continue
			}
		}
		i++
	}
	return dedupe(entries), nil
}

func tokenEntry(toks []token, start int) (sources.RegistryEntry, int, bool) {
	var fields [4]string
	j := start
	for k := range fields {
		var ok bool
		fields[k], j, ok = nextText(toks, j)
		if !ok {
			return sources.RegistryEntry{}, 0, false
		}
	}
	name, number, version, status := fields[0], fields[1], fields[2], fields[3]

	external := strings.EqualFold(number, "external")
	if !external && !tokenNumber.MatchString(number) {
		return sources.RegistryEntry{}, 0, false
	}
	if !tokenVersion.MatchString(version) {
		return sources.RegistryEntry{}, 0, false
	}

	e := sources.RegistryEntry{
		Name:      name,
		Version:   sources.String(version),
		Status:    sources.NormalizeStatus(status),
		RawStatus: sources.String(status),
	}
	if !external {
		e.RegistryNumber = sources.String(number)
	}

	end := j
	var desc []string
	for ; end < len(toks); end++ {
		t := toks[end]
		if !t.link && t.text == rowEnd {
			break
		}
		if t.link {
			lowerHref, lowerText := strings.ToLower(t.href), strings.ToLower(t.text)
			switch {
			case e.PDFLink == nil && (strings.Contains(lowerHref, ".pdf") || strings.Contains(lowerText, "pdf") || strings.HasPrefix(lowerText, "download")):
				e.PDFLink = sources.String(t.href)
			case e.RepoLink == nil && strings.Contains(lowerHref, "github.com"):
				e.RepoLink = sources.String(t.href)
			}
			continue
		}
		if headerTokens[t.text] || strings.HasPrefix(t.text, "Each submodel template that passes") {
			continue
		}
		desc = append(desc, t.text)
	}
	e.Description = sources.String(strings.Join(strings.Fields(strings.Join(desc, " ")), " "))

	return e, end, true
}

// nextText returns the next non-header text token at or after i.
func nextText(toks []token, i int) (string, int, bool) {
	for ; i < len(toks); i++ {
		if toks[i].link || headerTokens[toks[i].text] {
			continue
		}
		return toks[i].text, i + 1, true
	}
	return "", i, false
}

// dedupe keeps one entry per (number, version, name), the last one seen, at
// the position of the first.
func dedupe(entries []sources.RegistryEntry) []sources.RegistryEntry {
	type key struct{ number, version, name string }
	pos := make(map[key]int)
	var out []sources.RegistryEntry
	for _, e := range entries {
		k := key{sources.Value(e.RegistryNumber), sources.Value(e.Version), e.Name}
		if i, ok := pos[k]; ok {
			out[i] = e
			continue
		}
		pos[k] = len(out)
		out = append(out, e)
	}
	return out
}

// tokenize flattens the document into text runs and links. Text inside a
// link belongs to the link token only; script and style contents are dropped.
func tokenize(page string) ([]token, error) {
	z := html.NewTokenizer(strings.NewReader(page))

	var (
		toks    []token
		skip    int
		inLink  bool
		href    string
		linkBuf []string
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return toks, err
			}
			return toks, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "title":
				if tt == html.StartTagToken {
					skip++
				}
			case "a":
				if tt != html.StartTagToken {
					continue
				}
				href = ""
				for hasAttr {
					var k, v []byte
					k, v, hasAttr = z.TagAttr()
					if string(k) == "href" {
						href = string(v)
					}
				}
				inLink = href != ""
				linkBuf = linkBuf[:0]
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "title":
				if skip > 0 {
					skip--
				}
			case "a":
				if inLink {
					if txt := compact(strings.Join(linkBuf, " ")); txt != "" {
						toks = append(toks, token{text: txt, href: href, link: true})
					}
					inLink = false
				}
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			txt := compact(string(z.Text()))
			if txt == "" {
				continue
			}
			if inLink {
				linkBuf = append(linkBuf, txt)
				continue
			}
			toks = append(toks, token{text: txt})
		}
	}
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
