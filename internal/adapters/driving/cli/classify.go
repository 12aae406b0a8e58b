package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tagwatch/internal/adapters/driven/definitions/fs"
	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/services"
)

var (
	classifyText    string
	classifyFile    string
	classifyJSON    bool
	classifyDefsDir string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "One-shot classification of text",
	Long: `Classifies a piece of text against the tag definitions and prints
the result. Reads from stdin when neither --text nor --file is given.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyText, "text", "", "text to classify")
	classifyCmd.Flags().StringVar(&classifyFile, "file", "", "file containing text to classify (use - for stdin)")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "output as JSON")
	classifyCmd.Flags().StringVar(&classifyDefsDir, "definitions-dir", "", "override definitions directory")
	classifyCmd.MarkFlagsMutuallyExclusive("text", "file")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	text, err := classifyInputText(cmd.InOrStdin())
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: no text provided for classification", domain.ErrInvalidInput)
	}

	dir := classifyDefsDir
	if dir == "" {
		dir = cfg.General.DefinitionsDir
	}
	repo, err := fs.New(dir)
	if err != nil {
		return err
	}
	definitions, err := repo.Load(cmd.Context())
	if err != nil {
		return err
	}

	classifier, err := buildClassifier(cfg)
	if err != nil {
		return err
	}

	// Synthetic post so the prefilter behaves as in the main loop.
	post := &domain.SourcePost{
		ID:        "cli-input",
		Text:      text,
		Author:    "cli",
		CreatedAt: time.Now().UTC(),
	}

	service := services.NewClassifyService(classifier, classifyConfigFrom(cfg))
	output, err := service.Classify(cmd.Context(), post, definitions)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	if classifyJSON {
		encoded, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(encoded))
		return nil
	}

	printClassification(cmd, output)
	return nil
}

func printClassification(cmd *cobra.Command, output *domain.ClassifyOutput) {
	cmd.Println("Classification Results")
	cmd.Println("======================")
	cmd.Println()
	cmd.Printf("Summary: %s\n\n", output.Summary)

	if len(output.Tags) == 0 {
		cmd.Println("No tags matched.")
		return
	}

	cmd.Println("Tags:")
	for _, tag := range output.Tags {
		cmd.Printf("  - %s (confidence: %.2f)\n", tag.ID, tag.Confidence)
		cmd.Printf("    Rationale: %s\n", tag.Rationale)
		if len(tag.Evidence) > 0 {
			cmd.Println("    Evidence:")
			for _, e := range tag.Evidence {
				cmd.Printf("      - %q\n", e)
			}
		}
		cmd.Println()
	}
}

// classifyInputText resolves the input text from --text, --file, or stdin.
func classifyInputText(stdin io.Reader) (string, error) {
	if classifyText != "" {
		return classifyText, nil
	}

	if classifyFile != "" && classifyFile != "-" {
		data, err := os.ReadFile(classifyFile)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
