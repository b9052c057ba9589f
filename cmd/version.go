package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smtindex/smtindex/pkg/catalog"
)

// Version is set at build time with -ldflags "-X github.com/smtindex/smtindex/cmd.Version=...".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("smtindex %s (schema %s)\n", Version, catalog.SchemaVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
