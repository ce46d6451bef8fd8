// Package cmd implements the pawsync command line.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pawcontrol/pawsync/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "pawsync",
	Short: "Adaptive update coordinator for polled dog devices",
	Long: `pawsync polls every tracked dog's modules on an adaptive interval,
diffs each cycle against the last one and announces exactly the entities
that changed. Priority refreshes are batched between full cycles.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/pawsync/config.yaml)")
	rootCmd.PersistentFlags().String("registry", "", "dog registry file (overrides registry.path)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("registry.path", rootCmd.PersistentFlags().Lookup("registry"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Defaults first so they apply even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PAWSYNC")
	// e.g. PAWSYNC_FETCH_BASE_URL for fetch.base_url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine
	_ = viper.ReadInConfig()
}
