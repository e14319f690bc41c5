package agents

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"tradecrew/internal/models"
)

//go:embed prompts
var promptFiles embed.FS

// userTpl closes every turn with the request parameters so a role never has
// to dig them out of earlier sections.
const userTpl = `Trading request parameters:
- Symbol: {symbol}
- Initial capital (USD): {initial_capital}
- Strategy preference: {strategy_preference}
- Risk tolerance: {risk_tolerance}
- Consider recent news impact: {consider_news}
{news_directive}
Produce your section of the analysis now.`

// systemPrompt loads the persona template for a role from the embedded
// markdown files.
func systemPrompt(role models.Role) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", role.String()))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", role.String(), err)
	}
	return string(content), nil
}

// buildMessages assembles the chat context for one role's turn: its persona
// as the system message, every earlier section verbatim as assistant
// messages, then the request parameters as the user message.
func buildMessages(ctx context.Context, role models.Role, req models.TradingRequest, prior []models.AgentOutput) ([]*schema.Message, error) {
	systemTpl, err := systemPrompt(role)
	if err != nil {
		return nil, err
	}

	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemTpl),
		schema.MessagesPlaceholder("prior_sections", true),
		schema.UserMessage(userTpl),
	)

	params := map[string]any{
		"symbol":              req.Symbol,
		"initial_capital":     req.InitialCapital.String(),
		"strategy_preference": req.StrategyPreference,
		"risk_tolerance":      req.RiskTolerance,
		"consider_news":       yesNo(req.ConsiderNews),
		"news_directive":      newsDirective(req),
		"current_date":        time.Now().Format("2006-01-02"),
		"prior_sections":      priorMessages(prior),
	}

	msgs, err := tpl.Format(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("format %s prompt: %w", role.String(), err)
	}
	return msgs, nil
}

// priorMessages renders completed sections as assistant turns. Section text
// is passed through a placeholder, not the template, so braces in model
// output never trip the formatter.
func priorMessages(prior []models.AgentOutput) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(prior))
	for _, out := range prior {
		msgs = append(msgs, schema.AssistantMessage(
			fmt.Sprintf("%s section:\n\n%s", out.Role.Display(), out.Text), nil))
	}
	return msgs
}

func newsDirective(req models.TradingRequest) string {
	if !req.ConsiderNews {
		return ""
	}
	return fmt.Sprintf("\nWeigh recent news coverage of %s and its sector in your reasoning.\n", req.Symbol)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
