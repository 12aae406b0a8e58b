// Package cli implements the tagwatch command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tagwatch/internal/config"
	"github.com/custodia-labs/tagwatch/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "tagwatch",
	Short: "Watch social posts and classify them with LLM-powered narrative tagging",
	Long: `tagwatch polls X accounts, classifies each post against a markdown
tag taxonomy using an LLM backend, and publishes the results as replies,
quotes, or Nostr notes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}

// loadConfig loads the configured file, falling back to defaults when no
// --config flag was given and the default path is absent.
func loadConfig() (*config.AppConfig, error) {
	return config.Load(configPath, configPath != "")
}

// SetVersion overrides the reported version string.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
