package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smtindex/smtindex/internal/utils"
	"github.com/smtindex/smtindex/pkg/output"
	"github.com/smtindex/smtindex/pkg/validate"
)

// errValidationFailed makes the command exit non-zero without repeating the report.
var errValidationFailed = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an index.json and print a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("index")
		if path == "" {
			path = filepath.Join(viper.GetString("output.dir"), output.IndexJSON)
		}
		path = utils.ExpandPath(path)

		c, issues := validate.LoadAndValidate(path)
		if c != nil {
			fmt.Printf("Validated %d templates (%d versions) from %s\n", len(c.Templates), c.VersionCount(), path)
		}
		printIssues(os.Stdout, issues)

		if !validate.Passed(issues) {
			return errValidationFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringP("index", "i", "", "Path to index.json (default: <output.dir>/index.json)")
}

func printIssues(out io.Writer, issues []validate.Issue) {
	sum := validate.Summarize(issues)
	if len(issues) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEVERITY\tTEMPLATE\tMESSAGE")
		for _, i := range issues {
			id := i.TemplateID
			if id == "" {
				id = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", i.Severity, id, i.Message)
		}
		w.Flush()
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%d errors, %d warnings, %d info\n", sum.Errors, sum.Warnings, sum.Info)
}
