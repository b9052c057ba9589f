package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smtindex/smtindex/internal/server"
	"github.com/smtindex/smtindex/internal/utils"
	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/output"
	"github.com/smtindex/smtindex/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the index over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		bind, _ := cmd.Flags().GetString("bind")
		if bind == "" {
			bind = viper.GetString("server.bind")
		}
		indexPath, _ := cmd.Flags().GetString("index")
		if indexPath == "" {
			indexPath = filepath.Join(viper.GetString("output.dir"), output.IndexJSON)
		}
		user, _ := cmd.Flags().GetString("user")
		pass, _ := cmd.Flags().GetString("pass")
		withHistory, _ := cmd.Flags().GetBool("db")

		c, err := catalog.Load(utils.ExpandPath(indexPath))
		if err != nil {
			return fmt.Errorf("%w (run 'smtindex build' first or pass --index)", err)
		}

		var db *storage.DB
		if withHistory {
			db, err = openExistingDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
		}

		return server.New(c, db, user, pass).Start(bind)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("bind", "", "HTTP listen address (default from config server.bind)")
	serveCmd.Flags().StringP("index", "i", "", "Path to index.json (default: <output.dir>/index.json)")
	serveCmd.Flags().Bool("db", false, "Serve /changes from the history database")
	serveCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default from config db.path)")
	serveCmd.Flags().StringP("user", "u", "", "Basic auth username")
	serveCmd.Flags().StringP("pass", "p", "", "Basic auth password")
}
