// Package build runs one full catalog build: both sources are fetched
// concurrently, merged, validated, written to disk and optionally recorded
// in the history database.
package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/merge"
	"github.com/smtindex/smtindex/pkg/output"
	"github.com/smtindex/smtindex/pkg/sources"
	"github.com/smtindex/smtindex/pkg/sources/contenthub"
	"github.com/smtindex/smtindex/pkg/storage"
	"github.com/smtindex/smtindex/pkg/validate"
)

// Config holds everything Run needs for a single build.
type Config struct {
	Registry   sources.RegistrySource
	Repository sources.RepositorySource

	OutputDir   string      // empty = do not write files
	DB          *storage.DB // optional
	ToolVersion string
	Log         sources.Logger   // optional; nil = no logging
	Now         func() time.Time // optional; defaults to time.Now

	// OnChange is called for every change recorded in the history database.
	OnChange func(c storage.Change, isFirstRun bool)
}

// Result holds the outcome of a build.
type Result struct {
	Catalog   *catalog.Catalog
	Issues    []validate.Issue
	Merge     merge.Stats
	Paths     *output.Paths
	Persisted *storage.UpsertResult // nil when no DB was configured or the write was skipped
}

// wipeThreshold is the stored template count above which an empty build is
// not recorded.
const wipeThreshold = 10

func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Registry == nil || cfg.Repository == nil {
		return nil, errors.New("build: both a registry and a repository source are required")
	}
	log := cfg.Log
	if log == nil {
		log = sources.NopLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	started := now().UTC()

	var (
		registry    []sources.RegistryEntry
		registryURL string
		registryAt  time.Time
		repo        []sources.VersionEntry
		repoAt      time.Time
		commit      *string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries, u, err := cfg.Registry.FetchTemplates(gctx)
		registryURL, registryAt = u, now().UTC()
		if errors.Is(err, contenthub.ErrNoTemplates) {
			log.Warnf("%s returned no templates, continuing with repository data only", cfg.Registry.Name())
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.Registry.Name(), err)
		}
		registry = entries
		return nil
	})
	g.Go(func() error {
		entries, err := cfg.Repository.FetchVersions(gctx)
		repoAt = now().UTC()
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.Repository.Name(), err)
		}
		repo = entries
		return nil
	})
	if resolver, ok := cfg.Repository.(sources.CommitResolver); ok {
		g.Go(func() error {
			sha, err := resolver.HeadCommit(gctx)
			if err != nil {
				log.Warnf("Could not resolve repository commit: %v", err)
				return nil
			}
			commit = &sha
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Infof("Fetched %d registry rows and %d repository versions", len(registry), len(repo))

	merged := merge.Run(registry, repo)
	log.Infof("Merged %d templates (url: %d, slug: %d, fuzzy: %d, unmatched: %d, repository only: %d)",
		len(merged.Records),
		merged.Stats.Matched[merge.StrategyURL],
		merged.Stats.Matched[merge.StrategySlug],
		merged.Stats.Matched[merge.StrategyFuzzy],
		merged.Stats.Matched[merge.StrategyNone],
		merged.Stats.RepositoryOnly)

	completed := now().UTC()
	c := catalog.New(completed, merged.Records)
	c.Sources = catalog.Sources{
		IDTARegisteredTemplates: registryURL,
		GitHubSubmodelTemplates: cfg.Repository.URL(),
	}
	c.Provenance = &catalog.BuildProvenance{
		BuildStartedAt:       catalog.At(started),
		BuildCompletedAt:     catalog.At(completed),
		BuildDurationSeconds: completed.Sub(started).Seconds(),
		Sources: []catalog.SourceProvenance{
			{URL: registryURL, FetchedAt: catalog.At(registryAt), RecordCount: len(registry)},
			{URL: cfg.Repository.URL(), FetchedAt: catalog.At(repoAt), RecordCount: len(repo)},
		},
		GitCommit:   commit,
		ToolVersion: cfg.ToolVersion,
	}

	res := &Result{Catalog: c, Merge: merged.Stats}

	res.Issues = validate.Catalog(c)
	sum := validate.Summarize(res.Issues)
	log.Infof("Validation: %d errors, %d warnings, %d info", sum.Errors, sum.Warnings, sum.Info)
	for _, issue := range res.Issues {
		log.Debugf("%s", issue)
	}

	if cfg.OutputDir != "" {
		paths, err := output.WriteAll(cfg.OutputDir, c, res.Issues)
		if err != nil {
			return res, err
		}
		res.Paths = &paths
		log.Infof("Wrote %s, %s and %s", paths.JSON, paths.CSV, paths.Stats)
	}

	if cfg.DB != nil {
		persisted, err := persist(ctx, cfg, c, log)
		if err != nil {
			return res, err
		}
		res.Persisted = persisted
	}

	return res, nil
}

func persist(ctx context.Context, cfg Config, c *catalog.Catalog, log sources.Logger) (*storage.UpsertResult, error) {
	// Safety check: an empty build over a populated history is almost
	// certainly an upstream outage.
	if len(c.Templates) == 0 {
		stored, err := cfg.DB.ListTemplates(ctx, storage.ListOptions{})
		if err != nil {
			log.Warnf("Could not count stored templates: %v", err)
		}
		if len(stored) > wipeThreshold {
			log.Errorf("Build produced 0 templates, but the database has %d. Not recording this build.", len(stored))
			return nil, nil
		}
	}

	persisted, err := cfg.DB.UpsertCatalog(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("recording build: %w", err)
	}

	if persisted.IsFirstRun {
		log.Infof("First build recorded, database populated with %d templates", len(c.Templates))
	} else {
		log.Infof("Build %d recorded with %d changes", persisted.BuildID, len(persisted.Changes))
	}
	if cfg.OnChange != nil {
		for _, ch := range persisted.Changes {
			cfg.OnChange(ch, persisted.IsFirstRun)
		}
	}
	return persisted, nil
}
