package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/smtindex/smtindex/internal/utils"
	"github.com/smtindex/smtindex/pkg/sources/contenthub"
	"github.com/smtindex/smtindex/pkg/sources/repozip"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "smtindex",
	Short: "Index of AAS Submodel Templates.",
	Long: `smtindex builds a catalog of Asset Administration Shell Submodel Templates by
reconciling the IDTA content hub registry with the admin-shell-io/submodel-templates
repository, validates it, keeps a history of changes and serves it over HTTP.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.smtindex.yaml)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".smtindex")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("smtindex")
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.smtindex.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

func setConfigDefaults() {
	viper.SetDefault("contenthub.urls", contenthub.DefaultURLs)
	viper.SetDefault("contenthub.render", false)
	viper.SetDefault("contenthub.browser", "")
	viper.SetDefault("repository.name", repozip.DefaultRepo)
	viper.SetDefault("repository.branch", repozip.DefaultBranch)
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.retries", 3)
	viper.SetDefault("output.dir", "dist")
	viper.SetDefault("db.path", utils.DefaultDBPath)
	viper.SetDefault("server.bind", ":8000")
}
