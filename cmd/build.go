package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smtindex/smtindex/internal/utils"
	"github.com/smtindex/smtindex/pkg/build"
	"github.com/smtindex/smtindex/pkg/sources"
	"github.com/smtindex/smtindex/pkg/sources/contenthub"
	"github.com/smtindex/smtindex/pkg/sources/fixture"
	"github.com/smtindex/smtindex/pkg/sources/repozip"
	"github.com/smtindex/smtindex/pkg/storage"
	"github.com/smtindex/smtindex/pkg/validate"
	"github.com/smtindex/smtindex/pkg/whttp"
)

// buildCmd implements: smtindex build
//
//	--out string     Output directory (default from output.dir)
//	--dev            Use the built-in offline sources
//	--render         Fall back to a headless browser when the content hub yields nothing
//	--db             Record the build in the history database and print changes
//	--dbpath string  Path to the history database
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Fetch both sources, merge, validate and write the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'smtindex build --help'", args[0])
		}

		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			outDir = viper.GetString("output.dir")
		}
		dev, _ := cmd.Flags().GetBool("dev")
		useDB, _ := cmd.Flags().GetBool("db")

		cfg := build.Config{
			OutputDir:   utils.ExpandPath(outDir),
			ToolVersion: Version,
			Log:         utils.Log,
			OnChange:    printChange,
		}

		if dev {
			utils.Log.Info("Using built-in offline sources")
			cfg.Registry, cfg.Repository = fixture.NewRegistry(), fixture.NewRepository()
		} else {
			render, _ := cmd.Flags().GetBool("render")
			reg, repo, err := liveSources(render || viper.GetBool("contenthub.render"))
			if err != nil {
				return err
			}
			cfg.Registry, cfg.Repository = reg, repo
		}

		if useDB {
			dbPath, err := dbPathFlag(cmd)
			if err != nil {
				return err
			}
			lock, err := utils.NewDBLock(dbPath)
			if err != nil {
				return err
			}
			if err := lock.Lock(); err != nil {
				return err
			}
			defer lock.Unlock()

			if err := utils.EnsureDBDir(dbPath); err != nil {
				return err
			}
			db, err := storage.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			cfg.DB = db
		}

		res, err := build.Run(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if res.Persisted != nil && res.Persisted.IsFirstRun {
			fmt.Printf("First build recorded, database populated with %d templates\n", len(res.Catalog.Templates))
		}

		sum := validate.Summarize(res.Issues)
		fmt.Printf("Built %d templates (%d versions): %d errors, %d warnings\n",
			len(res.Catalog.Templates), res.Catalog.VersionCount(), sum.Errors, sum.Warnings)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("out", "o", "", "Output directory (default from config output.dir)")
	buildCmd.Flags().Bool("dev", false, "Use built-in offline sources instead of fetching")
	buildCmd.Flags().Bool("render", false, "Render the content hub in a headless browser when plain HTTP finds no templates")
	buildCmd.Flags().Bool("db", false, "Record the build in the history database and print changes")
	buildCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default from config db.path)")
}

// liveSources builds the network-backed sources from configuration.
func liveSources(render bool) (sources.RegistrySource, sources.RepositorySource, error) {
	timeout, err := time.ParseDuration(viper.GetString("http.timeout"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid http.timeout: %w", err)
	}
	retries := viper.GetInt("http.retries")

	opts := []contenthub.Option{
		contenthub.WithClient(whttp.NewClient(timeout, retries)),
		contenthub.WithLogger(utils.Log),
	}
	if urls := viper.GetStringSlice("contenthub.urls"); len(urls) > 0 {
		opts = append(opts, contenthub.WithURLs(urls...))
	}
	if render {
		opts = append(opts, contenthub.WithRenderer(contenthub.BrowserRenderer{
			Bin:    viper.GetString("contenthub.browser"),
			Settle: time.Second,
			Log:    utils.Log,
		}))
	}

	repo := repozip.New(
		repozip.WithRepo(viper.GetString("repository.name")),
		repozip.WithBranch(viper.GetString("repository.branch")),
		repozip.WithLogger(utils.Log),
	)
	return contenthub.New(opts...), repo, nil
}

func printChange(c storage.Change, isFirstRun bool) {
	if isFirstRun {
		return
	}

	subject := c.TemplateID
	if c.Version != "" {
		subject += " " + c.Version
	}

	switch c.ChangeType {
	case storage.ChangeAdded:
		fmt.Printf("🆕  %s  %s\n", subject, c.Name)
	case storage.ChangeRemoved:
		fmt.Printf("❌  %s  %s\n", subject, c.Name)
	case storage.ChangeUpdated:
		fmt.Printf("🔄  %s  %s\n", subject, c.Detail)
	}
}
