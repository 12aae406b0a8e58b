package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/tagwatch/internal/adapters/driven/llm"
	"github.com/custodia-labs/tagwatch/internal/adapters/driven/llm/anthropic"
	"github.com/custodia-labs/tagwatch/internal/adapters/driven/llm/gemini"
	"github.com/custodia-labs/tagwatch/internal/adapters/driven/llm/localcmd"
	"github.com/custodia-labs/tagwatch/internal/adapters/driven/llm/ollama"
	"github.com/custodia-labs/tagwatch/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/tagwatch/internal/adapters/driven/llm/stub"
	nostrpub "github.com/custodia-labs/tagwatch/internal/adapters/driven/publish/nostr"
	xpub "github.com/custodia-labs/tagwatch/internal/adapters/driven/publish/x"
	xsource "github.com/custodia-labs/tagwatch/internal/adapters/driven/source/x"
	"github.com/custodia-labs/tagwatch/internal/config"
	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
	"github.com/custodia-labs/tagwatch/internal/core/services"
)

// llmConfigFrom maps the app config onto the shared LLM settings.
func llmConfigFrom(cfg *config.LLMConfig) llm.Config {
	return llm.Config{
		Model:           cfg.Model,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Timeout:         time.Duration(cfg.TimeoutSecs) * time.Second,
		Retries:         cfg.Retries,
	}
}

// buildClassifier constructs the classifier backend named by llm.provider.
func buildClassifier(cfg *config.AppConfig) (driven.Classifier, error) {
	llmCfg := llmConfigFrom(&cfg.LLM)

	switch cfg.LLM.Provider {
	case "openai":
		apiKey, err := loadSecret(cfg.LLM.OpenAI.APIKeyEnv, "openai")
		if err != nil {
			return nil, err
		}
		return openai.New(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			LLM:     llmCfg,
		})
	case "anthropic":
		apiKey, err := loadSecret(cfg.LLM.Anthropic.APIKeyEnv, "anthropic")
		if err != nil {
			return nil, err
		}
		return anthropic.New(anthropic.Config{APIKey: apiKey, LLM: llmCfg})
	case "gemini":
		apiKey, err := loadSecret(cfg.LLM.Gemini.APIKeyEnv, "gemini")
		if err != nil {
			return nil, err
		}
		return gemini.New(gemini.Config{APIKey: apiKey, LLM: llmCfg})
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL: strings.TrimSpace(cfg.LLM.Ollama.BaseURL),
			LLM:     llmCfg,
		}), nil
	case "openai_compat":
		baseURL := strings.TrimSpace(cfg.LLM.OpenAICompat.BaseURL)
		if baseURL == "" {
			return nil, fmt.Errorf("%w: openai_compat base_url is required", domain.ErrConfig)
		}
		apiKey, err := loadSecret(cfg.LLM.OpenAICompat.APIKeyEnv, "openai_compat")
		if err != nil {
			return nil, err
		}
		return openai.New(openai.Config{APIKey: apiKey, BaseURL: baseURL, LLM: llmCfg})
	case "local_cmd":
		localCfg := llmCfg
		if cfg.LLM.LocalCmd.TimeoutSecs > 0 {
			localCfg.Timeout = time.Duration(cfg.LLM.LocalCmd.TimeoutSecs) * time.Second
		}
		return localcmd.New(localcmd.Config{
			Command: cfg.LLM.LocalCmd.Command,
			Args:    cfg.LLM.LocalCmd.Args,
			LLM:     localCfg,
		})
	case "stub":
		return stub.Echo(), nil
	default:
		return nil, fmt.Errorf("%w: unknown LLM provider: %s", domain.ErrConfig, cfg.LLM.Provider)
	}
}

// buildPostSource constructs the X timeline reader.
func buildPostSource(cfg *config.AppConfig) (driven.PostSource, error) {
	bearerToken, err := loadSecret(cfg.X.Read.BearerTokenEnv, "x_read")
	if err != nil {
		return nil, err
	}
	return xsource.New(xsource.Config{BearerToken: bearerToken})
}

// buildXPublisher constructs the X publisher, disabled when publishing is
// off or a dry run is requested.
func buildXPublisher(cfg *config.AppConfig, dryRun bool) (driven.Publisher, error) {
	if dryRun || !cfg.X.Write.Enabled {
		return xpub.Disabled(), nil
	}

	mode, err := domain.ParsePublishMode(cfg.X.Write.Mode)
	if err != nil {
		return nil, err
	}
	userToken, err := loadSecret(cfg.X.Write.OAuth2UserTokenEnv, "x_write")
	if err != nil {
		return nil, err
	}
	return xpub.New(xpub.Config{
		UserToken: userToken,
		Mode:      mode,
		MaxChars:  cfg.X.Write.MaxChars,
	})
}

// buildNostrPublisher constructs the Nostr publisher, disabled when
// publishing is off or a dry run is requested.
func buildNostrPublisher(cfg *config.AppConfig, dryRun bool) (driven.Publisher, error) {
	if dryRun || !cfg.Nostr.Enabled {
		return nostrpub.Disabled(), nil
	}

	if len(cfg.Nostr.Relays) == 0 {
		return nil, fmt.Errorf("%w: nostr enabled but no relays configured", domain.ErrConfig)
	}
	secretKey, err := loadSecret(cfg.Nostr.SecretKeyEnv, "nostr")
	if err != nil {
		return nil, err
	}
	return nostrpub.New(nostrpub.Config{
		SecretKey: secretKey,
		Relays:    cfg.Nostr.Relays,
	})
}

// classifyConfigFrom maps the app config onto the classify settings.
func classifyConfigFrom(cfg *config.AppConfig) services.ClassifyConfig {
	return services.ClassifyConfig{
		PrefilterTopK:  cfg.LLM.PrefilterTopK,
		MaxOutputChars: cfg.X.Write.MaxChars,
	}
}

// renderConfigFrom maps the app config onto the render settings.
func renderConfigFrom(cfg *config.AppConfig) (services.RenderConfig, error) {
	mode, err := domain.ParsePublishMode(cfg.X.Write.Mode)
	if err != nil {
		return services.RenderConfig{}, err
	}
	return services.RenderConfig{
		XMaxChars:         cfg.X.Write.MaxChars,
		XPublishMode:      mode,
		IncludeConfidence: cfg.Render.IncludeConfidence,
		IncludeRationale:  cfg.Render.IncludeRationale,
		MinConfidence:     cfg.Render.MinConfidenceDisplay,
	}, nil
}

// policyFrom maps the app config onto the output policy. A zeroed policy
// section disables validation.
func policyFrom(cfg *config.AppConfig) *domain.PolicyConfig {
	p := cfg.Policy
	if p.MaxTags == 0 && p.MinConfidence == 0 && p.MaxRationaleLength == 0 && len(p.ForbiddenPatterns) == 0 {
		return nil
	}
	return &domain.PolicyConfig{
		MaxTags:            p.MaxTags,
		MinConfidence:      p.MinConfidence,
		MaxRationaleLength: p.MaxRationaleLength,
		ForbiddenPatterns:  p.ForbiddenPatterns,
	}
}

// runLoopConfigFrom assembles the full run loop configuration.
func runLoopConfigFrom(cfg *config.AppConfig, dryRun bool) (services.RunLoopConfig, error) {
	render, err := renderConfigFrom(cfg)
	if err != nil {
		return services.RunLoopConfig{}, err
	}
	return services.RunLoopConfig{
		Accounts:           cfg.Watch.Accounts,
		IncludeReplies:     cfg.Watch.IncludeReplies,
		IncludeReposts:     cfg.Watch.IncludeReposts,
		IgnorePatterns:     cfg.Watch.IgnorePatterns,
		DryRun:             dryRun,
		MaxConcurrent:      cfg.General.MaxConcurrent,
		RateLimitPerMinute: cfg.General.RateLimitPerMinute,
		RateLimitPerHour:   cfg.General.RateLimitPerHour,
		Classify:           classifyConfigFrom(cfg),
		Render:             render,
		Policy:             policyFrom(cfg),
	}, nil
}

// loadSecret resolves a secret through its configured env var, rejecting
// missing or empty values.
func loadSecret(envVar, provider string) (string, error) {
	if strings.TrimSpace(envVar) == "" {
		return "", fmt.Errorf("%w: no secret env var configured for %s", domain.ErrConfig, provider)
	}
	value := os.Getenv(envVar)
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: env var %s is not set for %s", domain.ErrConfig, envVar, provider)
	}
	return value, nil
}
