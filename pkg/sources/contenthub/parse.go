package contenthub

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/smtindex/smtindex/pkg/identity"
	"github.com/smtindex/smtindex/pkg/semver"
	"github.com/smtindex/smtindex/pkg/sources"
)

// Parser extracts registry rows from one page of HTML. Parsers are tried in
// order and the first one that returns rows wins.
type Parser interface {
	Name() string
	Parse(page string) ([]sources.RegistryEntry, error)
}

func DefaultParsers() []Parser {
	return []Parser{GridParser{}, CardParser{}, TokenParser{}}
}

// Parse runs parsers in order and returns the first non-empty result along
// with the name of the parser that produced it.
func Parse(page string, parsers ...Parser) ([]sources.RegistryEntry, string) {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}
	for _, p := range parsers {
		entries, err := p.Parse(page)
		if err != nil || len(entries) == 0 {
			continue
		}
		return entries, p.Name()
	}
	return nil, ""
}

// GridParser reads the current content-hub layout: one div.parts__title row
// per template, with the name in a wide column followed by number, version,
// status and links columns. Rows that do not have the grid shape are parsed
// as generic cards.
type GridParser struct{}

func (GridParser) Name() string { return "grid" }

func (GridParser) Parse(page string) ([]sources.RegistryEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	var entries []sources.RegistryEntry
	doc.Find("div.parts__title").Each(func(_ int, row *goquery.Selection) {
		if e, ok := gridRow(row); ok {
			entries = append(entries, e)
			return
		}
		if e, ok := cardEntry(row); ok {
			entries = append(entries, e)
		}
	})
	return entries, nil
}

func gridRow(row *goquery.Selection) (sources.RegistryEntry, bool) {
	nameCol := row.Find(".col-span-4").First()
	cols := row.Find(".col-span-2")
	if nameCol.Length() == 0 || cols.Length() < 4 {
		return sources.RegistryEntry{}, false
	}

	name := text(nameCol)
	if name == "" {
		return sources.RegistryEntry{}, false
	}

	e := sources.RegistryEntry{Name: name}

	if raw := text(cols.Eq(0)); raw != "" && strings.ToLower(raw) != "extern" {
		if n, ok := identity.ExtractRegistryNumber(raw); ok {
			e.RegistryNumber = sources.String(n)
		} else if semver.IsNumeric(raw) {
			e.RegistryNumber = sources.String(raw)
		}
	}

	e.Version = sources.String(text(cols.Eq(1)))

	rawStatus := text(cols.Eq(2))
	e.RawStatus = sources.String(rawStatus)
	e.Status = sources.NormalizeStatus(rawStatus)

	cols.Eq(3).Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		lowerHref := strings.ToLower(href)
		label := strings.ToLower(a.Text())
		switch {
		case strings.Contains(lowerHref, "github") || strings.Contains(label, "github"):
			e.RepoLink = sources.String(href)
		case strings.Contains(lowerHref, ".pdf") || strings.Contains(label, "pdf"):
			e.PDFLink = sources.String(href)
		}
	})

	return e, true
}

// CardParser reads older accordion and card layouts where each template is a
// self-contained block with a heading and free text.
type CardParser struct{}

func (CardParser) Name() string { return "card" }

func (CardParser) Parse(page string) ([]sources.RegistryEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	var entries []sources.RegistryEntry
	doc.Find(".accordion-item, .template-card, .teilmodell-item").Each(func(_ int, card *goquery.Selection) {
		if e, ok := cardEntry(card); ok {
			entries = append(entries, e)
		}
	})
	return entries, nil
}

var (
	headingNumberPrefix = regexp.MustCompile(`^IDTA\s*\d+[-\s]*`)
	headingVersionTail  = regexp.MustCompile(`\s*[-–]\s*V?\d+\.\d+.*$`)

	cardVersionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[Vv]ersion\s*(\d+\.\d+(?:\.\d+)?)`),
		regexp.MustCompile(`[Vv](\d+\.\d+(?:\.\d+)?)`),
		regexp.MustCompile(`\b(\d+\.\d+\.\d+)\b`),
	}

	badgeClass       = regexp.MustCompile(`status|badge|label`)
	descriptionClass = regexp.MustCompile(`description|desc|summary|abstract`)
)

func cardEntry(card *goquery.Selection) (sources.RegistryEntry, bool) {
	name := cardName(card)
	if name == "" {
		return sources.RegistryEntry{}, false
	}

	body := card.Text()
	e := sources.RegistryEntry{
		Name:        name,
		Status:      cardStatus(card, body),
		Version:     cardVersion(body),
		Description: cardDescription(card),
	}

	if n, ok := identity.ExtractRegistryNumber(name); ok {
		e.RegistryNumber = sources.String(n)
	} else if n, ok := identity.ExtractRegistryNumber(body); ok {
		e.RegistryNumber = sources.String(n)
	}

	card.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		lowerHref := strings.ToLower(href)
		if e.PDFLink == nil && (strings.Contains(lowerHref, ".pdf") || strings.Contains(strings.ToLower(a.Text()), "pdf")) {
			e.PDFLink = sources.String(href)
		}
		if e.RepoLink == nil && strings.Contains(lowerHref, "github.com") {
			e.RepoLink = sources.String(href)
		}
	})

	return e, true
}

func cardName(card *goquery.Selection) string {
	for _, tag := range []string{"h2", "h3", "h4", "h5"} {
		heading := card.Find(tag).First()
		if heading.Length() == 0 {
			continue
		}
		name := headingNumberPrefix.ReplaceAllString(text(heading), "")
		name = strings.TrimSpace(headingVersionTail.ReplaceAllString(name, ""))
		if name != "" {
			return name
		}
	}

	for _, attr := range []string{"title", "data-title"} {
		if v, ok := card.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func cardStatus(card *goquery.Selection, body string) sources.Status {
	t := strings.ToLower(body)
	switch {
	case strings.Contains(t, "published") || strings.Contains(t, "veröffentlicht"):
		return sources.StatusPublished
	case strings.Contains(t, "in review") || strings.Contains(t, "in prüfung"):
		return sources.StatusInReview
	case strings.Contains(t, "in development") || strings.Contains(t, "in entwicklung"):
		return sources.StatusInDevelopment
	case strings.Contains(t, "proposal submitted") || strings.Contains(t, "vorschlag"):
		return sources.StatusProposal
	}

	badge := withClass(card, badgeClass)
	if badge.Length() == 0 {
		return sources.StatusUnknown
	}
	switch s := strings.ToLower(badge.Text()); {
	case strings.Contains(s, "published"):
		return sources.StatusPublished
	case strings.Contains(s, "review"):
		return sources.StatusInReview
	case strings.Contains(s, "development"):
		return sources.StatusInDevelopment
	}
	return sources.StatusUnknown
}

func cardVersion(body string) *string {
	for _, re := range cardVersionPatterns {
		if m := re.FindStringSubmatch(body); m != nil {
			return sources.String(m[1])
		}
	}
	return nil
}

func cardDescription(card *goquery.Selection) *string {
	if el := withClass(card, descriptionClass); el.Length() > 0 {
		return sources.String(text(el))
	}

	var desc *string
	card.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if t := text(p); utf8.RuneCountInString(t) > 50 {
			desc = sources.String(t)
			return false
		}
		return true
	})
	return desc
}

// withClass returns the first descendant whose class attribute matches re.
func withClass(s *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	return s.Find("[class]").FilterFunction(func(_ int, el *goquery.Selection) bool {
		class, _ := el.Attr("class")
		return re.MatchString(class)
	}).First()
}

// text returns the selection's text with whitespace runs collapsed.
func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
