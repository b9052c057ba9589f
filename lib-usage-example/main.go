package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/smtindex/smtindex/pkg/merge"
	"github.com/smtindex/smtindex/pkg/sources/contenthub"
	"github.com/smtindex/smtindex/pkg/sources/fixture"
	"github.com/smtindex/smtindex/pkg/sources/repozip"
)

func main() {
	// Usage: go run . [-offline]

	offline := flag.Bool("offline", false, "Use the built-in sample data instead of fetching")
	flag.Parse()

	ctx := context.Background()

	if *offline {
		printRecords(merge.Run(fixture.RegistryEntries(), fixture.VersionEntries()))
		return
	}

	// Sources can also be used on their own
	registry, _, err := contenthub.New().FetchTemplates(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "content hub:", err)
	}
	versions, err := repozip.New().FetchVersions(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "repository:", err)
		os.Exit(1)
	}

	printRecords(merge.Run(registry, versions))
}

func printRecords(res merge.Result) {
	for _, r := range res.Records {
		latest := "-"
		if v, ok := r.Latest(); ok {
			latest = v.Version
		}
		fmt.Println(r.ID, r.Status, latest)
	}
	fmt.Printf("%d templates, %d matched by url, %d by slug, %d fuzzy\n",
		len(res.Records), res.Stats.Matched[merge.StrategyURL], res.Stats.Matched[merge.StrategySlug], res.Stats.Matched[merge.StrategyFuzzy])
}
