package llm

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"tradecrew/internal/config"
	"tradecrew/internal/retry"
	"tradecrew/pkg/errors"
)

// NewChatModel builds the chat model for the configured provider, tuned
// by the current settings snapshot and wrapped with retries. Models are
// cheap to construct, so callers build one per run and pick up settings
// changes without a restart.
func NewChatModel(ctx context.Context, cfg *config.Config, settings config.Settings) (model.ToolCallingChatModel, error) {
	modelName := settings.Model
	if modelName == "" {
		modelName = cfg.LLM.Model
	}
	maxTokens := settings.MaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.LLM.MaxTokens
	}

	var base model.ToolCallingChatModel
	var err error

	switch cfg.LLM.Provider {
	case config.ProviderDeepseek:
		base, err = deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.LLM.APIKey,
			Model:     modelName,
			MaxTokens: maxTokens,
		})
	case config.ProviderOpenAI:
		temperature := settings.Temperature
		base, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       modelName,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
	default:
		return nil, errors.Configf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "create %s chat model", cfg.LLM.Provider)
	}

	return WithRetries(base, retry.DefaultConfig()), nil
}
