package pipeline

import (
	"fmt"
	"strings"
	"time"

	"tradecrew/internal/models"
)

// BuildReport assembles the final report from the finished sections.
func BuildReport(runID string, req models.TradingRequest, sections []models.AgentOutput, startedAt, finishedAt time.Time) *models.Report {
	return &models.Report{
		RunID:      runID,
		Request:    req,
		Sections:   sections,
		Markdown:   renderMarkdown(req, sections, finishedAt),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
}

func renderMarkdown(req models.TradingRequest, sections []models.AgentOutput, finishedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Trading Analysis: %s\n\n", req.Symbol)
	fmt.Fprintf(&b, "Generated %s.\n\n", finishedAt.Format("2006-01-02 15:04 MST"))

	news := "no"
	if req.ConsiderNews {
		news = "yes"
	}
	fmt.Fprintf(&b, "- Initial capital: %s USD\n", req.InitialCapital.String())
	fmt.Fprintf(&b, "- Strategy preference: %s\n", req.StrategyPreference)
	fmt.Fprintf(&b, "- Risk tolerance: %s\n", req.RiskTolerance)
	fmt.Fprintf(&b, "- News considered: %s\n\n", news)

	for _, sec := range sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", sec.Role.Display(), strings.TrimSpace(sec.Text))
	}

	if hasToolCalls(sections) {
		b.WriteString("## Tool Activity\n\n")
		for _, sec := range sections {
			if len(sec.ToolCalls) == 0 {
				continue
			}
			fmt.Fprintf(&b, "**%s**\n\n", sec.Role.Display())
			for _, call := range sec.ToolCalls {
				fmt.Fprintf(&b, "- `%s` %s\n", call.Tool, call.Query)
			}
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func hasToolCalls(sections []models.AgentOutput) bool {
	for _, sec := range sections {
		if len(sec.ToolCalls) > 0 {
			return true
		}
	}
	return false
}
