package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smtindex/smtindex/internal/utils"
	"github.com/smtindex/smtindex/pkg/storage"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the build history database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := existingDBPath(cmd)
		if err != nil {
			return err
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints template and version counts per status.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openExistingDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(context.Background())
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "STATUS\tTEMPLATES\tVERSIONS\t")

		var totalTemplates, totalVersions int
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t\n", s.Status, s.TemplateCount, s.VersionCount)
			totalTemplates += s.TemplateCount
			totalVersions += s.VersionCount
		}

		fmt.Fprintln(w, " \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t%d\t\n", totalTemplates, totalVersions)

		return w.Flush()
	},
}

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recent catalog changes (default 50)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openExistingDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		changes, err := db.ListRecentChanges(context.Background(), limit)
		if err != nil {
			return err
		}
		for _, c := range changes {
			ts := c.OccurredAt.Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %-7s  %s  %s  %s\n", ts, c.ChangeType, c.TemplateID, c.Version, c.Detail)
		}
		return nil
	},
}

var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "List recorded builds, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openExistingDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		builds, err := db.ListBuilds(context.Background(), limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tGENERATED\tTEMPLATES\tVERSIONS\tCOMMIT\tTOOL")
		for _, b := range builds {
			commit := b.GitCommit
			if len(commit) > 12 {
				commit = commit[:12]
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\n", b.ID, b.GeneratedAt.Format("2006-01-02 15:04:05"), b.TemplateCount, b.VersionCount, commit, b.ToolVersion)
		}
		return w.Flush()
	},
}

// getCmd represents the parent `db get` command.
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Extract stored data from the database",
}

var getLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the most recently recorded catalog as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openExistingDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		c, err := db.LatestCatalog(context.Background())
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no builds recorded yet, run 'smtindex build --db' first")
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(changesCmd)
	dbCmd.AddCommand(buildsCmd)
	dbCmd.AddCommand(getCmd)
	getCmd.AddCommand(getLatestCmd)

	dbCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default from config db.path)")
	changesCmd.Flags().Int("limit", 50, "Number of recent changes to show")
	buildsCmd.Flags().Int("limit", 20, "Number of builds to show")
}

// dbPathFlag resolves --dbpath, then db.path from config, to an absolute path.
func dbPathFlag(cmd *cobra.Command) (string, error) {
	dbPath, _ := cmd.Flags().GetString("dbpath")
	if dbPath == "" {
		dbPath = viper.GetString("db.path")
	}
	return utils.GetAbsDBPath(dbPath)
}

func existingDBPath(cmd *cobra.Command) (string, error) {
	dbPath, err := dbPathFlag(cmd)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("database not found: %s", dbPath)
		}
		return "", err
	}
	return dbPath, nil
}

func openExistingDB(cmd *cobra.Command) (*storage.DB, error) {
	dbPath, err := existingDBPath(cmd)
	if err != nil {
		return nil, err
	}
	return storage.Open(dbPath)
}
