package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tagwatch/internal/adapters/driven/definitions/fs"
)

var (
	defsDir       string
	defsListJSON  bool
	defsWatchFlag bool
)

var definitionsCmd = &cobra.Command{
	Use:   "definitions",
	Short: "Manage tag definitions",
}

var definitionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all loaded definitions",
	RunE:  runDefinitionsList,
}

var definitionsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate definitions",
	Long: `Checks every definition file for parse errors, invalid IDs, and
duplicates. With --watch, revalidates on every file change until
interrupted.`,
	RunE: runDefinitionsValidate,
}

func init() {
	definitionsCmd.PersistentFlags().StringVar(&defsDir, "definitions-dir", "", "override definitions directory")
	definitionsListCmd.Flags().BoolVar(&defsListJSON, "json", false, "output as JSON")
	definitionsValidateCmd.Flags().BoolVar(&defsWatchFlag, "watch", false, "revalidate on file changes")
	definitionsCmd.AddCommand(definitionsListCmd)
	definitionsCmd.AddCommand(definitionsValidateCmd)
	rootCmd.AddCommand(definitionsCmd)
}

func definitionsRepo() (*fs.Repo, error) {
	dir := defsDir
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		dir = cfg.General.DefinitionsDir
	}
	return fs.New(dir)
}

func runDefinitionsList(cmd *cobra.Command, _ []string) error {
	repo, err := definitionsRepo()
	if err != nil {
		return err
	}

	definitions, err := repo.Load(cmd.Context())
	if err != nil {
		return err
	}

	if defsListJSON {
		type entry struct {
			ID       string   `json:"id"`
			Title    string   `json:"title"`
			Aliases  []string `json:"aliases,omitempty"`
			Short    string   `json:"short,omitempty"`
			FilePath string   `json:"file_path"`
		}
		entries := make([]entry, len(definitions))
		for i, def := range definitions {
			entries[i] = entry{def.ID, def.Title, def.Aliases, def.Short, def.FilePath}
		}
		encoded, err := json.MarshalIndent(map[string]any{
			"count":       len(entries),
			"definitions": entries,
		}, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(encoded))
		return nil
	}

	cmd.Printf("Tag Definitions (%d found)\n", len(definitions))
	cmd.Println("==========================")
	cmd.Println()
	for _, def := range definitions {
		cmd.Printf("ID: %s\n", def.ID)
		cmd.Printf("  Title: %s\n", def.Title)
		if len(def.Aliases) > 0 {
			cmd.Printf("  Aliases: %s\n", strings.Join(def.Aliases, ", "))
		}
		if def.Short != "" {
			cmd.Printf("  Short: %s\n", def.Short)
		}
		cmd.Printf("  File: %s\n\n", def.FilePath)
	}
	return nil
}

func runDefinitionsValidate(cmd *cobra.Command, _ []string) error {
	repo, err := definitionsRepo()
	if err != nil {
		return err
	}

	validate := func() error {
		definitions, err := repo.Load(cmd.Context())
		if err != nil {
			cmd.PrintErrf("✗ Validation failed: %v\n", err)
			return err
		}
		cmd.Printf("✓ Validation passed (%d definitions)\n", len(definitions))
		return nil
	}

	cmd.Printf("Validating definitions in: %s\n", repo.Dir())
	err = validate()

	if !defsWatchFlag {
		if err != nil {
			return fmt.Errorf("validation failed")
		}
		return nil
	}

	cmd.Println("Watching for changes. Press Ctrl+C to stop.")
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := repo.Watch(ctx, func() { _ = validate() }); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
