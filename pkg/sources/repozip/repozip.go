// Package repozip enumerates template versions from a branch archive of the
// submodel-templates repository.
//
// The repository keeps one folder per template version:
//
//	<root>/published/<Template>/<major>/<minor>[/<patch>]/...
//	<root>/deprecated/<Template>/<major>/<minor>[/<patch>]/...
package repozip

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/smtindex/smtindex/pkg/identity"
	"github.com/smtindex/smtindex/pkg/semver"
	"github.com/smtindex/smtindex/pkg/sources"
	"github.com/smtindex/smtindex/pkg/whttp"
)

const (
	DefaultRepo   = "admin-shell-io/submodel-templates"
	DefaultBranch = "main"

	githubURL    = "https://github.com"
	githubAPIURL = "https://api.github.com"
)

type Source struct {
	repo    string
	branch  string
	baseURL string
	apiURL  string
	client  *retryablehttp.Client
	log     sources.Logger
}

type Option func(*Source)

// WithRepo sets the owner/name of the repository.
func WithRepo(repo string) Option {
	return func(s *Source) {
		if repo != "" {
			s.repo = strings.Trim(repo, "/")
		}
	}
}

func WithBranch(branch string) Option {
	return func(s *Source) {
		if branch != "" {
			s.branch = branch
		}
	}
}

// WithEndpoints overrides the web and API hosts, for mirrors and tests.
func WithEndpoints(baseURL, apiURL string) Option {
	return func(s *Source) {
		if baseURL != "" {
			s.baseURL = strings.TrimRight(baseURL, "/")
		}
		if apiURL != "" {
			s.apiURL = strings.TrimRight(apiURL, "/")
		}
	}
}

func WithClient(c *retryablehttp.Client) Option {
	return func(s *Source) { s.client = c }
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
		repo:    DefaultRepo,
		branch:  DefaultBranch,
		baseURL: githubURL,
		apiURL:  githubAPIURL,
		log:     sources.NopLogger{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		s.client = whttp.NewClient(120*time.Second, 3)
	}
	return s
}

func (s *Source) Name() string { return "repozip" }

// URL is the repository home page.
func (s *Source) URL() string { return s.baseURL + "/" + s.repo }

// ArchiveURL is the zip download of the configured branch.
func (s *Source) ArchiveURL() string {
	return fmt.Sprintf("%s/archive/refs/heads/%s.zip", s.URL(), s.branch)
}

// TreeURL is the prefix under which repository paths are browsable.
func (s *Source) TreeURL() string {
	return fmt.Sprintf("%s/tree/%s", s.URL(), s.branch)
}

func (s *Source) FetchVersions(ctx context.Context) ([]sources.VersionEntry, error) {
	res, err := whttp.Get(ctx, s.ArchiveURL(), s.client)
	if err != nil {
		return nil, fmt.Errorf("repozip: downloading archive: %w", err)
	}
	s.log.Infof("Downloaded %s (%.1f MB)", s.ArchiveURL(), float64(len(res.Body))/1024/1024)

	entries, err := Enumerate(res.Body, s.TreeURL())
	if err != nil {
		return nil, fmt.Errorf("repozip: %w", err)
	}
	s.log.Infof("Found %d version folders in %s", len(entries), s.repo)
	return entries, nil
}

// HeadCommit returns the SHA the configured branch currently points at.
func (s *Source) HeadCommit(ctx context.Context) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/commits/%s", s.apiURL, s.repo, s.branch)
	res, err := whttp.Get(ctx, u, s.client, whttp.WHTTPHeader{Name: "Accept", Value: "application/vnd.github+json"})
	if err != nil {
		return "", fmt.Errorf("repozip: resolving head commit: %w", err)
	}
	sha := gjson.GetBytes(res.Body, "sha").String()
	if sha == "" {
		return "", fmt.Errorf("repozip: no sha in commit response from %s", u)
	}
	return sha, nil
}

// Enumerate walks a repository archive and returns one entry per version
// folder, in archive order. treeURL prefixes the escaped repository path to
// form each entry's URL.
func Enumerate(archive []byte, treeURL string) ([]sources.VersionEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}

	treeURL = strings.TrimRight(treeURL, "/")
	seen := make(map[string]bool)
	var entries []sources.VersionEntry

	for _, f := range zr.File {
		folder, ok := versionFolder(f.Name)
		if !ok || seen[folder.repoPath] {
			continue
		}
		seen[folder.repoPath] = true
		entries = append(entries, sources.NewVersionEntry(
			folder.template,
			folder.area,
			folder.version,
			folder.repoPath,
			treeURL+"/"+identity.EscapePath(folder.repoPath),
		))
	}
	return entries, nil
}

type folder struct {
	area     sources.Area
	template string
	version  semver.SemVer
	repoPath string
}

// versionFolder locates the version folder an archive path belongs to. A
// directory entry ending right at its version segments is a version folder
// of its own, so 3/0/ and 3/0/1/ both count. Any deeper path belongs to the
// folder formed by its leading numeric segments.
func versionFolder(name string) (folder, bool) {
	isDir := strings.HasSuffix(name, "/")
	parts := strings.Split(strings.Trim(name, "/"), "/")

	// root/area/template/major/minor at minimum
	if len(parts) < 5 {
		return folder{}, false
	}

	areaIdx := -1
	for i, p := range parts[1:] {
		if p == string(sources.AreaPublished) || p == string(sources.AreaDeprecated) {
			areaIdx = i + 1
			break
		}
	}
	if areaIdx < 0 || areaIdx+2 >= len(parts) {
		return folder{}, false
	}

	rest := parts[areaIdx+2:]
	nums := semver.LeadingNumeric(rest)
	if len(nums) == len(rest) && !isDir {
		// a file whose name is numeric, not a folder
		nums = nums[:len(nums)-1]
	}

	v, ok := semver.FromPathParts(nums)
	if !ok {
		return folder{}, false
	}

	return folder{
		area:     sources.Area(parts[areaIdx]),
		template: parts[areaIdx+1],
		version:  v,
		repoPath: strings.Join(parts[areaIdx:areaIdx+2+len(nums)], "/"),
	}, true
}
