package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tradecrew/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ADB5")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#3B82F6"))

	sectionStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00ADB5")).
			Padding(1, 2).
			Width(100)

	paramStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B5CF6"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))
)

// WelcomeBanner shows the startup banner
func WelcomeBanner() {
	banner := `
████████╗██████╗  █████╗ ██████╗ ███████╗ ██████╗██████╗ ███████╗██╗    ██╗
╚══██╔══╝██╔══██╗██╔══██╗██╔══██╗██╔════╝██╔════╝██╔══██╗██╔════╝██║    ██║
   ██║   ██████╔╝███████║██║  ██║█████╗  ██║     ██████╔╝█████╗  ██║ █╗ ██║
   ██║   ██╔══██╗██╔══██║██║  ██║██╔══╝  ██║     ██╔══██╗██╔══╝  ██║███╗██║
   ██║   ██║  ██║██║  ██║██████╔╝███████╗╚██████╗██║  ██║███████╗╚███╔███╔╝
   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝ ╚══════╝ ╚═════╝╚═╝  ╚═╝╚══════╝ ╚══╝╚══╝
`

	welcomeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00ADB5")).
		Bold(true).
		Align(lipgloss.Center).
		Width(80).
		MarginBottom(1)

	taglineStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3B82F6")).
		Italic(true).
		Align(lipgloss.Center).
		Width(80).
		MarginBottom(2)

	fmt.Print(welcomeStyle.Render(banner))
	fmt.Print(taglineStyle.Render("Four-role trading analysis powered by Large Language Models"))
	fmt.Println()
}

// Report prints a finished analysis to the terminal, one panel per role.
func Report(report *models.Report) {
	fmt.Println()
	fmt.Println(titleStyle.Render(fmt.Sprintf("📊 Trading Analysis: %s", report.Request.Symbol)))

	news := "no"
	if report.Request.ConsiderNews {
		news = "yes"
	}
	params := fmt.Sprintf("💰 Capital: %s USD | 🎯 Strategy: %s | ⚖️  Risk: %s | 📰 News: %s",
		report.Request.InitialCapital.String(),
		report.Request.StrategyPreference,
		report.Request.RiskTolerance,
		news,
	)
	fmt.Println(paramStyle.Render(params))
	fmt.Println()

	for _, sec := range report.Sections {
		fmt.Println(renderSection(sec))
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✅ Analysis completed in %s",
		report.FinishedAt.Sub(report.StartedAt).Round(time.Second))))
	fmt.Println()
}

func renderSection(sec models.AgentOutput) string {
	var content strings.Builder

	header := fmt.Sprintf("%s %s", roleIcon(sec.Role), sec.Role.Display())
	content.WriteString(sectionHeaderStyle.Render(header))
	content.WriteString("\n\n")
	content.WriteString(strings.TrimSpace(sec.Text))

	if len(sec.ToolCalls) > 0 {
		content.WriteString("\n\n")
		content.WriteString(toolStyle.Render(fmt.Sprintf("🔧 Evidence gathered (%d tool calls):", len(sec.ToolCalls))))
		for _, call := range sec.ToolCalls {
			content.WriteString("\n")
			content.WriteString(toolStyle.Render(fmt.Sprintf("  • %s: %s", call.Tool, truncateString(call.Query, 70))))
		}
	}

	return sectionStyle.Render(content.String())
}

func roleIcon(role models.Role) string {
	switch role {
	case models.RoleDataAnalyst:
		return "📊"
	case models.RoleStrategyDeveloper:
		return "📈"
	case models.RoleTradeAdvisor:
		return "💼"
	case models.RoleRiskAdvisor:
		return "⚖️"
	default:
		return "🤖"
	}
}

// Error shows an error message
func Error(err error) {
	fmt.Println(errorStyle.Render(fmt.Sprintf("❌ Error: %s", err.Error())))
}

// Info shows an info message
func Info(message string) {
	fmt.Println(infoStyle.Render(fmt.Sprintf("ℹ️  %s", message)))
}

// Success shows a success message
func Success(message string) {
	fmt.Println(successStyle.Render(fmt.Sprintf("✅ %s", message)))
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
