package cli

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tagwatch/internal/config"
)

var (
	configInitPath  string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate example configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Prints the configuration after defaults, the config file, and
environment overrides have been applied. Secrets stay behind their env
var names and are never printed.`,
	RunE: runConfigShow,
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", config.DefaultPath, "path to write config file")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(configInitPath); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configInitPath)
	}

	if err := os.WriteFile(configInitPath, []byte(config.ExampleTOML()), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	cmd.Printf("Wrote example configuration to %s\n", configInitPath)
	cmd.Println("Edit it, then check your setup with: tagwatch doctor")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	encoded, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	cmd.Print(string(encoded))
	return nil
}
