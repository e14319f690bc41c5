package llm

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"tradecrew/internal/retry"
	"tradecrew/pkg/logger"
)

// retryingModel retries Generate calls with exponential backoff. Retries
// live here, below the agent loop, so a recovered provider blip never
// replays completed tool calls.
type retryingModel struct {
	inner  model.ToolCallingChatModel
	policy *retry.Config
	log    *logger.Logger
}

// WithRetries wraps m so transient provider errors are retried before
// they surface as generation failures.
func WithRetries(m model.ToolCallingChatModel, policy *retry.Config) model.ToolCallingChatModel {
	if policy == nil {
		policy = retry.DefaultConfig()
	}
	return &retryingModel{
		inner:  m,
		policy: policy,
		log:    logger.Get().With("component", "llm"),
	}
}

// Generate implements model.BaseChatModel
func (m *retryingModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	var out *schema.Message
	attempt := 0
	err := retry.Do(ctx, m.policy, func() error {
		attempt++
		msg, err := m.inner.Generate(ctx, input, opts...)
		if err != nil {
			if attempt <= m.policy.MaxRetries {
				m.log.Warnf("generate attempt %d failed, retrying: %v", attempt, err)
			}
			return err
		}
		out = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream implements model.BaseChatModel. A stream cannot be resumed
// mid-flight, so only the passthrough is offered.
func (m *retryingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return m.inner.Stream(ctx, input, opts...)
}

// WithTools implements model.ToolCallingChatModel
func (m *retryingModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &retryingModel{inner: inner, policy: m.policy, log: m.log}, nil
}
