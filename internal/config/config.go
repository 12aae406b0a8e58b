// Package config loads the tagwatch TOML configuration with defaults
// and environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "./config.toml"

// envPrefix namespaces environment overrides, e.g.
// TAGWATCH__LLM__PROVIDER=ollama overrides llm.provider.
const envPrefix = "TAGWATCH__"

// AppConfig is the top-level configuration.
type AppConfig struct {
	General GeneralConfig `toml:"general"`
	Watch   WatchConfig   `toml:"watch"`
	LLM     LLMConfig     `toml:"llm"`
	X       XConfig       `toml:"x"`
	Nostr   NostrConfig   `toml:"nostr"`
	Policy  PolicyConfig  `toml:"policy"`
	Render  RenderConfig  `toml:"render"`
}

// GeneralConfig holds daemon-wide settings.
type GeneralConfig struct {
	DefinitionsDir     string `toml:"definitions_dir"`
	StateDBPath        string `toml:"state_db_path"`
	LogLevel           string `toml:"log_level"`
	DryRun             bool   `toml:"dry_run"`
	MaxConcurrent      int    `toml:"max_concurrent"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
	RateLimitPerHour   int    `toml:"rate_limit_per_hour"`
}

// WatchConfig selects which timelines to poll and how often.
type WatchConfig struct {
	PollIntervalSecs int      `toml:"poll_interval_secs"`
	Accounts         []string `toml:"accounts"`
	IncludeReplies   bool     `toml:"include_replies"`
	IncludeReposts   bool     `toml:"include_reposts"`
	IgnorePatterns   []string `toml:"ignore_patterns"`
}

// LLMConfig selects and tunes the classifier backend.
type LLMConfig struct {
	Provider        string          `toml:"provider"`
	Model           string          `toml:"model"`
	Temperature     float64         `toml:"temperature"`
	TimeoutSecs     int             `toml:"timeout_secs"`
	Retries         int             `toml:"retries"`
	MaxOutputTokens int             `toml:"max_output_tokens"`
	PrefilterTopK   int             `toml:"prefilter_top_k"`
	OpenAI          OpenAIConfig    `toml:"openai"`
	Anthropic       AnthropicConfig `toml:"anthropic"`
	Gemini          GeminiConfig    `toml:"gemini"`
	Ollama          OllamaConfig    `toml:"ollama"`
	OpenAICompat    OpenAIConfig    `toml:"openai_compat"`
	LocalCmd        LocalCmdConfig  `toml:"local_cmd"`
}

// OpenAIConfig covers OpenAI and OpenAI-compatible endpoints.
type OpenAIConfig struct {
	APIKeyEnv string `toml:"api_key_env"`
	BaseURL   string `toml:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKeyEnv string `toml:"api_key_env"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKeyEnv string `toml:"api_key_env"`
}

// OllamaConfig holds local Ollama settings.
type OllamaConfig struct {
	BaseURL string `toml:"base_url"`
}

// LocalCmdConfig runs a local CLI as the classifier backend.
type LocalCmdConfig struct {
	Command     string   `toml:"command"`
	Args        []string `toml:"args"`
	TimeoutSecs int      `toml:"timeout_secs"`
}

// XConfig groups the X read and write halves.
type XConfig struct {
	Read  XReadConfig  `toml:"read"`
	Write XWriteConfig `toml:"write"`
}

// XReadConfig configures timeline polling.
type XReadConfig struct {
	BearerTokenEnv string `toml:"bearer_token_env"`
}

// XWriteConfig configures publishing back to X.
type XWriteConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mode               string `toml:"mode"`
	OAuth2UserTokenEnv string `toml:"oauth2_user_token_env"`
	MaxChars           int    `toml:"max_chars"`
}

// NostrConfig configures Nostr publishing.
type NostrConfig struct {
	Enabled      bool     `toml:"enabled"`
	SecretKeyEnv string   `toml:"secret_key_env"`
	Relays       []string `toml:"relays"`
}

// PolicyConfig constrains classifier output before rendering.
type PolicyConfig struct {
	MaxTags            int      `toml:"max_tags"`
	MinConfidence      float64  `toml:"min_confidence"`
	MaxRationaleLength int      `toml:"max_rationale_length"`
	ForbiddenPatterns  []string `toml:"forbidden_patterns"`
}

// RenderConfig tunes the rendered post text.
type RenderConfig struct {
	IncludeConfidence    bool    `toml:"include_confidence"`
	IncludeRationale     bool    `toml:"include_rationale"`
	MinConfidenceDisplay float64 `toml:"min_confidence_display"`
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	return &AppConfig{
		General: GeneralConfig{
			DefinitionsDir:     "./definitions",
			StateDBPath:        "./state.sqlite",
			LogLevel:           "info",
			DryRun:             true,
			MaxConcurrent:      4,
			RateLimitPerMinute: 0,
			RateLimitPerHour:   0,
		},
		Watch: WatchConfig{
			PollIntervalSecs: 60,
		},
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o-mini",
			Temperature:     0.2,
			TimeoutSecs:     45,
			Retries:         2,
			MaxOutputTokens: 600,
			PrefilterTopK:   12,
			OpenAI: OpenAIConfig{
				APIKeyEnv: "OPENAI_API_KEY",
				BaseURL:   "https://api.openai.com/v1",
			},
			Anthropic: AnthropicConfig{APIKeyEnv: "ANTHROPIC_API_KEY"},
			Gemini:    GeminiConfig{APIKeyEnv: "GEMINI_API_KEY"},
			Ollama:    OllamaConfig{BaseURL: "http://localhost:11434"},
		},
		X: XConfig{
			Read: XReadConfig{BearerTokenEnv: "X_BEARER_TOKEN"},
			Write: XWriteConfig{
				Enabled:            false,
				Mode:               string(domain.ModeReply),
				OAuth2UserTokenEnv: "X_USER_TOKEN",
				MaxChars:           280,
			},
		},
		Nostr: NostrConfig{
			Enabled:      false,
			SecretKeyEnv: "NOSTR_NSEC",
		},
		Policy: PolicyConfig{
			MaxTags:            5,
			MinConfidence:      0.0,
			MaxRationaleLength: 200,
		},
		Render: RenderConfig{
			IncludeConfidence:    true,
			IncludeRationale:     true,
			MinConfidenceDisplay: 0.5,
		},
	}
}

// Load reads the configuration file at path, falling back to defaults
// when it does not exist. A path given explicitly must exist. Environment
// variables with the TAGWATCH__ prefix override individual values.
func Load(path string, explicit bool) (*AppConfig, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrConfig, path, err)
		}
	case os.IsNotExist(err):
		if explicit {
			return nil, fmt.Errorf("%w: config file not found: %s", domain.ErrConfig, path)
		}
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c *AppConfig) Validate() error {
	if _, err := domain.ParsePublishMode(c.X.Write.Mode); err != nil {
		return fmt.Errorf("%w: x.write.mode: %v", domain.ErrConfig, err)
	}
	if c.General.MaxConcurrent < 1 {
		return fmt.Errorf("%w: general.max_concurrent must be at least 1", domain.ErrConfig)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("%w: llm.temperature must be between 0 and 2", domain.ErrConfig)
	}
	if c.Watch.PollIntervalSecs < 1 {
		return fmt.Errorf("%w: watch.poll_interval_secs must be at least 1", domain.ErrConfig)
	}
	return nil
}

// applyEnvOverrides maps TAGWATCH__SECTION__KEY variables onto config
// fields, e.g. TAGWATCH__LLM__PROVIDER or TAGWATCH__GENERAL__DRY_RUN.
func applyEnvOverrides(cfg *AppConfig) {
	overrides := map[string]func(string) error{
		"GENERAL__DEFINITIONS_DIR":       setString(&cfg.General.DefinitionsDir),
		"GENERAL__STATE_DB_PATH":         setString(&cfg.General.StateDBPath),
		"GENERAL__LOG_LEVEL":             setString(&cfg.General.LogLevel),
		"GENERAL__DRY_RUN":               setBool(&cfg.General.DryRun),
		"GENERAL__MAX_CONCURRENT":        setInt(&cfg.General.MaxConcurrent),
		"GENERAL__RATE_LIMIT_PER_MINUTE": setInt(&cfg.General.RateLimitPerMinute),
		"GENERAL__RATE_LIMIT_PER_HOUR":   setInt(&cfg.General.RateLimitPerHour),
		"WATCH__POLL_INTERVAL_SECS":      setInt(&cfg.Watch.PollIntervalSecs),
		"WATCH__ACCOUNTS":                setStrings(&cfg.Watch.Accounts),
		"WATCH__INCLUDE_REPLIES":         setBool(&cfg.Watch.IncludeReplies),
		"WATCH__INCLUDE_REPOSTS":         setBool(&cfg.Watch.IncludeReposts),
		"LLM__PROVIDER":                  setString(&cfg.LLM.Provider),
		"LLM__MODEL":                     setString(&cfg.LLM.Model),
		"LLM__TIMEOUT_SECS":              setInt(&cfg.LLM.TimeoutSecs),
		"LLM__RETRIES":                   setInt(&cfg.LLM.Retries),
		"LLM__PREFILTER_TOP_K":           setInt(&cfg.LLM.PrefilterTopK),
		"X__WRITE__ENABLED":              setBool(&cfg.X.Write.Enabled),
		"X__WRITE__MODE":                 setString(&cfg.X.Write.Mode),
		"NOSTR__ENABLED":                 setBool(&cfg.Nostr.Enabled),
		"NOSTR__RELAYS":                  setStrings(&cfg.Nostr.Relays),
	}

	for key, apply := range overrides {
		value, ok := os.LookupEnv(envPrefix + key)
		if !ok {
			continue
		}
		// Unparseable overrides are ignored rather than fatal.
		_ = apply(value)
	}
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

func setStrings(dst *[]string) func(string) error {
	return func(v string) error {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
		return nil
	}
}

// ExampleTOML returns a commented starter configuration for `config init`.
func ExampleTOML() string {
	return `# tagwatch configuration

[general]
definitions_dir = "./definitions"
state_db_path = "./state.sqlite"
log_level = "info"
dry_run = true
max_concurrent = 4
# 0 disables rate limiting
rate_limit_per_minute = 0
rate_limit_per_hour = 0

[watch]
poll_interval_secs = 60
accounts = ["example_account_1", "example_account_2"]
include_replies = false
include_reposts = false
# ignore_patterns = ["^RT @", "^AD:"]

[llm]
provider = "openai"  # openai, anthropic, gemini, ollama, openai_compat, local_cmd, stub
model = "gpt-4o-mini"
temperature = 0.2
timeout_secs = 45
retries = 2
max_output_tokens = 600
prefilter_top_k = 12

[llm.openai]
api_key_env = "OPENAI_API_KEY"
base_url = "https://api.openai.com/v1"

[llm.anthropic]
api_key_env = "ANTHROPIC_API_KEY"

[llm.gemini]
api_key_env = "GEMINI_API_KEY"

[llm.ollama]
base_url = "http://localhost:11434"

[llm.openai_compat]
api_key_env = "LLM_API_KEY"
base_url = "https://your-provider.com/v1"

[llm.local_cmd]
command = "llm"
args = []
# timeout_secs = 45

[x.read]
bearer_token_env = "X_BEARER_TOKEN"

[x.write]
enabled = false
mode = "reply"  # reply, quote, new_post
oauth2_user_token_env = "X_USER_TOKEN"
max_chars = 280

[nostr]
enabled = false
secret_key_env = "NOSTR_NSEC"
relays = ["wss://relay.damus.io", "wss://nos.lol"]

[policy]
max_tags = 5
min_confidence = 0.0
max_rationale_length = 200
# forbidden_patterns = ["(?i)guaranteed"]

[render]
include_confidence = true
include_rationale = true
min_confidence_display = 0.5
`
}
