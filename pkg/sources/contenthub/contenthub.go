// Package contenthub scrapes the template registry published on the IDTA
// content hub.
package contenthub

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/smtindex/smtindex/pkg/sources"
	"github.com/smtindex/smtindex/pkg/whttp"
)

// DefaultURLs are tried in order until one yields templates.
var DefaultURLs = []string{
	"https://industrialdigitaltwin.org/content-hub/teilmodelle",
	"https://industrialdigitaltwin.org/en/content-hub/submodels",
}

// ErrNoTemplates is returned when every page was fetched but none of them
// contained recognizable template rows.
var ErrNoTemplates = errors.New("contenthub: no templates found")

type Source struct {
	urls     []string
	client   *retryablehttp.Client
	renderer Renderer
	parsers  []Parser
	log      sources.Logger
}

type Option func(*Source)

func WithURLs(urls ...string) Option {
	return func(s *Source) {
		if len(urls) > 0 {
			s.urls = urls
		}
	}
}

func WithClient(c *retryablehttp.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithRenderer enables the headless-browser fallback used when no page
// yields templates over plain HTTP.
func WithRenderer(r Renderer) Option {
	return func(s *Source) { s.renderer = r }
}

func WithParsers(p ...Parser) Option {
	return func(s *Source) { s.parsers = p }
}

func WithLogger(l sources.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

func New(opts ...Option) *Source {
	s := &Source{
		urls:    DefaultURLs,
		parsers: DefaultParsers(),
		log:     sources.NopLogger{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		s.client = whttp.NewClient(30*time.Second, 3)
	}
	return s
}

func (s *Source) Name() string { return "contenthub" }

// FetchTemplates returns the registry rows of the first page that yields any,
// together with that page's URL.
func (s *Source) FetchTemplates(ctx context.Context) ([]sources.RegistryEntry, string, error) {
	var fetchErrs []error

	for _, u := range s.urls {
		res, err := whttp.Get(ctx, u, s.client)
		if err != nil {
			s.log.Warnf("Fetching %s failed: %v", u, err)
			fetchErrs = append(fetchErrs, err)
			continue
		}
		s.log.Debugf("Fetched %s (%q, %d chars)", u, res.HTTPTitle, res.ResponseLength)

		if entries := s.parse(res.BodyString(), u); len(entries) > 0 {
			s.log.Infof("Found %d registry rows at %s", len(entries), u)
			return entries, u, nil
		}
	}

	if s.renderer != nil {
		s.log.Infof("No templates over plain HTTP, rendering pages in a browser")
		for _, u := range s.urls {
			page, err := s.renderer.Render(ctx, u)
			if err != nil {
				s.log.Warnf("Rendering %s failed: %v", u, err)
				fetchErrs = append(fetchErrs, err)
				continue
			}
			if entries := s.parse(page, u); len(entries) > 0 {
				s.log.Infof("Found %d registry rows at %s (rendered)", len(entries), u)
				return entries, u, nil
			}
		}
	}

	if len(fetchErrs) == len(s.urls) && s.renderer == nil {
		return nil, s.urls[0], fmt.Errorf("contenthub: %w", errors.Join(fetchErrs...))
	}
	return nil, s.urls[0], ErrNoTemplates
}

func (s *Source) parse(page, pageURL string) []sources.RegistryEntry {
	entries, parser := Parse(page, s.parsers...)
	if parser != "" {
		s.log.Debugf("Parsed %s with %s parser", pageURL, parser)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return entries
	}
	for i := range entries {
		entries[i].PDFLink = resolve(base, entries[i].PDFLink)
		entries[i].RepoLink = resolve(base, entries[i].RepoLink)
	}
	return entries
}

// resolve makes a relative link absolute against base.
func resolve(base *url.URL, link *string) *string {
	if link == nil || strings.Contains(*link, "://") {
		return link
	}
	ref, err := url.Parse(strings.TrimSpace(*link))
	if err != nil {
		return link
	}
	return sources.String(base.ResolveReference(ref).String())
}
