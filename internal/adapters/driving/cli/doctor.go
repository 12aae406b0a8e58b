package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tagwatch/internal/adapters/driven/definitions/fs"
	"github.com/custodia-labs/tagwatch/internal/config"
)

// Check statuses.
const (
	statusOK    = "ok"
	statusWarn  = "warn"
	statusError = "error"
)

var (
	doctorCheck string
	doctorJSON  bool
)

// checkResult is one doctor check outcome.
type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// doctorReport aggregates all checks.
type doctorReport struct {
	Config      checkResult `json:"config"`
	Definitions checkResult `json:"definitions"`
	LLM         checkResult `json:"llm"`
	XRead       checkResult `json:"x_read"`
	XWrite      checkResult `json:"x_write"`
	Nostr       checkResult `json:"nostr"`
	Overall     string      `json:"overall"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate configuration and show status",
	Long: `Checks the configuration file, tag definitions, LLM backend, and
publisher credentials, and reports what is missing before a run.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorCheck, "check", "", "check a single component (config, definitions, llm, x, nostr)")
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	report := doctorReport{
		Config:      checkResult{statusError, "not checked"},
		Definitions: checkResult{statusError, "not checked"},
		LLM:         checkResult{statusError, "not checked"},
		XRead:       checkResult{statusError, "not checked"},
		XWrite:      checkResult{statusError, "not checked"},
		Nostr:       checkResult{statusError, "not checked"},
	}

	cfg, err := loadConfig()
	if err != nil {
		report.Config = checkResult{statusError, fmt.Sprintf("failed to load config: %v", err)}
	} else {
		report.Config = checkResult{statusOK, "configuration loaded"}
		report.Definitions = checkDefinitions(cmd, cfg)
		report.LLM = checkLLM(cfg)
		report.XRead = checkXRead(cfg)
		report.XWrite = checkXWrite(cfg)
		report.Nostr = checkNostr(cfg)
	}

	// X write and Nostr are optional; they never fail the overall verdict.
	required := []checkResult{report.Config, report.Definitions, report.LLM, report.XRead}
	report.Overall = statusOK
	for _, c := range required {
		if c.Status == statusError {
			report.Overall = statusError
			break
		}
		if c.Status == statusWarn {
			report.Overall = statusWarn
		}
	}

	if doctorJSON {
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(encoded))
	} else {
		printReport(cmd, &report)
	}

	if report.Overall == statusError {
		return fmt.Errorf("doctor found errors")
	}
	return nil
}

func checkDefinitions(cmd *cobra.Command, cfg *config.AppConfig) checkResult {
	if doctorSkips("definitions") {
		return checkResult{statusOK, "skipped"}
	}

	repo, err := fs.New(cfg.General.DefinitionsDir)
	if err != nil {
		return checkResult{statusError, err.Error()}
	}

	definitions, err := repo.Load(cmd.Context())
	if err != nil {
		return checkResult{statusError, fmt.Sprintf("validation failed: %v", err)}
	}
	return checkResult{statusOK, fmt.Sprintf("%d definitions loaded", len(definitions))}
}

func checkLLM(cfg *config.AppConfig) checkResult {
	if doctorSkips("llm") {
		return checkResult{statusOK, "skipped"}
	}

	provider := cfg.LLM.Provider
	model := cfg.LLM.Model

	var apiKeyEnv string
	switch provider {
	case "openai":
		apiKeyEnv = cfg.LLM.OpenAI.APIKeyEnv
	case "anthropic":
		apiKeyEnv = cfg.LLM.Anthropic.APIKeyEnv
	case "gemini":
		apiKeyEnv = cfg.LLM.Gemini.APIKeyEnv
	case "openai_compat":
		apiKeyEnv = cfg.LLM.OpenAICompat.APIKeyEnv
	case "ollama":
		return checkResult{statusOK, fmt.Sprintf("provider: ollama, model: %s", model)}
	case "local_cmd":
		return checkLocalCmd(cfg.LLM.LocalCmd.Command, model)
	case "stub":
		return checkResult{statusOK, "provider: stub (offline)"}
	default:
		return checkResult{statusWarn, fmt.Sprintf("unknown provider: %s", provider)}
	}

	if apiKeyEnv == "" {
		return checkResult{statusError, fmt.Sprintf("no API key env var configured for %s", provider)}
	}
	return envVarCheck(apiKeyEnv, fmt.Sprintf("provider: %s, model: %s, API key: %s", provider, model, apiKeyEnv))
}

func checkLocalCmd(command, model string) checkResult {
	if strings.TrimSpace(command) == "" {
		return checkResult{statusError, "local_cmd command is empty"}
	}
	if commandExists(command) {
		return checkResult{statusOK, fmt.Sprintf("provider: local_cmd, model: %s, command: %s", model, command)}
	}
	return checkResult{statusWarn, fmt.Sprintf("command not found on PATH: %s", command)}
}

func commandExists(command string) bool {
	if strings.ContainsRune(command, os.PathSeparator) {
		info, err := os.Stat(command)
		return err == nil && !info.IsDir()
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		info, err := os.Stat(filepath.Join(dir, command))
		if err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

func checkXRead(cfg *config.AppConfig) checkResult {
	if doctorSkips("x") {
		return checkResult{statusOK, "skipped"}
	}

	envVar := cfg.X.Read.BearerTokenEnv
	if envVar == "" {
		return checkResult{statusError, "no bearer token env var configured"}
	}
	if len(cfg.Watch.Accounts) == 0 {
		return checkResult{statusWarn, "no accounts configured to watch"}
	}
	return envVarCheck(envVar, fmt.Sprintf("bearer token: %s, accounts: %s",
		envVar, strings.Join(cfg.Watch.Accounts, ", ")))
}

func checkXWrite(cfg *config.AppConfig) checkResult {
	if doctorSkips("x") {
		return checkResult{statusOK, "skipped"}
	}

	if !cfg.X.Write.Enabled {
		return checkResult{statusOK, "X write disabled"}
	}
	envVar := cfg.X.Write.OAuth2UserTokenEnv
	if envVar == "" {
		return checkResult{statusError, "no user token env var configured"}
	}
	return envVarCheck(envVar, fmt.Sprintf("user token: %s, mode: %s", envVar, cfg.X.Write.Mode))
}

func checkNostr(cfg *config.AppConfig) checkResult {
	if doctorSkips("nostr") {
		return checkResult{statusOK, "skipped"}
	}

	if !cfg.Nostr.Enabled {
		return checkResult{statusOK, "Nostr disabled"}
	}
	if cfg.Nostr.SecretKeyEnv == "" {
		return checkResult{statusError, "no secret key env var configured"}
	}
	if len(cfg.Nostr.Relays) == 0 {
		return checkResult{statusWarn, "no relays configured"}
	}
	return envVarCheck(cfg.Nostr.SecretKeyEnv,
		fmt.Sprintf("secret key: %s, relays: %d", cfg.Nostr.SecretKeyEnv, len(cfg.Nostr.Relays)))
}

// envVarCheck reports ok when the env var holds a non-empty value, warn
// otherwise. The value itself is never printed.
func envVarCheck(envVar, message string) checkResult {
	if strings.TrimSpace(os.Getenv(envVar)) != "" {
		return checkResult{statusOK, message + " (set)"}
	}
	return checkResult{statusWarn, message + " (not set)"}
}

// doctorSkips reports whether --check excludes the named component.
func doctorSkips(component string) bool {
	return doctorCheck != "" && doctorCheck != component
}

func printReport(cmd *cobra.Command, report *doctorReport) {
	cmd.Println("tagwatch doctor report")
	cmd.Println("======================")
	cmd.Println()

	printCheck(cmd, "Config", report.Config)
	printCheck(cmd, "Definitions", report.Definitions)
	printCheck(cmd, "LLM Provider", report.LLM)
	printCheck(cmd, "X Read", report.XRead)
	printCheck(cmd, "X Write", report.XWrite)
	printCheck(cmd, "Nostr", report.Nostr)

	cmd.Println()
	cmd.Printf("%s Overall: %s\n", statusSymbol(report.Overall), strings.ToUpper(report.Overall))

	if report.Overall == statusOK {
		cmd.Println()
		cmd.Println("Ready to run! Try: tagwatch run --dry-run --once")
	}
}

func printCheck(cmd *cobra.Command, name string, result checkResult) {
	cmd.Printf("%s %s: %s\n", statusSymbol(result.Status), name, result.Message)
}

func statusSymbol(status string) string {
	switch status {
	case statusOK:
		return color.New(color.FgGreen).Sprint("✓")
	case statusWarn:
		return color.New(color.FgYellow).Sprint("⚠")
	default:
		return color.New(color.FgRed).Sprint("✗")
	}
}
