package cli

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/shopspring/decimal"

	"tradecrew/internal/display"
	"tradecrew/internal/models"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// runInteractiveMode walks the user through a request, runs the crew, shows
// the report, and loops until they exit.
func runInteractiveMode(ctx context.Context) error {
	display.WelcomeBanner()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	for {
		req, err := promptForRequest()
		if err != nil {
			return err
		}

		confirmed, err := promptForConfirmation(req)
		if err != nil {
			return err
		}
		if !confirmed {
			display.Info("Analysis canceled.")
		} else {
			fmt.Printf("\n🔄 Running the crew on %s, this can take a few minutes...\n\n", req.Symbol)
			report, err := app.Pipeline.Execute(ctx, req)
			if err != nil {
				display.Error(describeRunError(err))
			} else {
				display.Report(report)
			}
		}

		again, err := promptForRestartOrExit()
		if err != nil {
			return err
		}
		if !again {
			fmt.Println("👋 Thank you for using TradeCrew!")
			return nil
		}
		fmt.Println()
	}
}

// promptForRequest collects the full trading request.
func promptForRequest() (models.TradingRequest, error) {
	req := models.DefaultRequest()

	var symbol string
	symbolPrompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Default: req.Symbol,
		Help:    "The symbol every role will analyze",
	}
	err := survey.AskOne(symbolPrompt, &symbol, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(strings.ToUpper(val.(string)))
		if len(str) == 0 {
			return fmt.Errorf("ticker symbol cannot be empty")
		}
		if len(str) > 10 {
			return fmt.Errorf("ticker symbol too long (max 10 characters)")
		}
		if !tickerPattern.MatchString(str) {
			return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
		}
		return nil
	}))
	if err != nil {
		return req, err
	}
	req.Symbol = strings.TrimSpace(strings.ToUpper(symbol))

	var capitalStr string
	capitalPrompt := &survey.Input{
		Message: "Enter your initial capital in USD:",
		Default: req.InitialCapital.String(),
		Help:    "Position sizing is based on this amount. Minimum 1000.",
	}
	err = survey.AskOne(capitalPrompt, &capitalStr, survey.WithValidator(func(val interface{}) error {
		amount, err := decimal.NewFromString(strings.TrimSpace(val.(string)))
		if err != nil {
			return fmt.Errorf("capital must be a number")
		}
		if amount.LessThan(models.MinInitialCapital) {
			return fmt.Errorf("capital must be at least %s USD", models.MinInitialCapital.String())
		}
		return nil
	}))
	if err != nil {
		return req, err
	}
	req.InitialCapital, _ = decimal.NewFromString(strings.TrimSpace(capitalStr))

	var strategy string
	strategyPrompt := &survey.Select{
		Message: "Select your trading strategy preference:",
		Options: models.StrategyOptions,
		Default: req.StrategyPreference,
		Help:    "The Trading Strategy Developer tailors its proposals to this style.",
	}
	if err := survey.AskOne(strategyPrompt, &strategy); err != nil {
		return req, err
	}
	req.StrategyPreference = strategy

	var risk string
	riskPrompt := &survey.Select{
		Message: "Select your risk tolerance:",
		Options: models.RiskLevels,
		Default: req.RiskTolerance,
		Help:    "The Risk Advisor checks every proposal against this level.",
	}
	if err := survey.AskOne(riskPrompt, &risk); err != nil {
		return req, err
	}
	req.RiskTolerance = risk

	newsPrompt := &survey.Confirm{
		Message: "Should the crew weigh recent news impact?",
		Default: req.ConsiderNews,
	}
	if err := survey.AskOne(newsPrompt, &req.ConsiderNews); err != nil {
		return req, err
	}

	return req, nil
}

// promptForConfirmation shows the request summary and asks to proceed.
func promptForConfirmation(req models.TradingRequest) (bool, error) {
	news := "yes"
	if !req.ConsiderNews {
		news = "no"
	}

	summary := fmt.Sprintf(`
Analysis Configuration Summary:
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

📊 Ticker Symbol:     %s
💰 Initial Capital:   %s USD
🎯 Strategy:          %s
⚖️  Risk Tolerance:    %s
📰 Consider News:     %s

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`,
		req.Symbol,
		req.InitialCapital.String(),
		req.StrategyPreference,
		req.RiskTolerance,
		news,
	)

	fmt.Println(summary)

	var confirmed bool
	prompt := &survey.Confirm{
		Message: "Proceed with this analysis?",
		Default: true,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}

// promptForRestartOrExit asks what to do after a run finishes.
func promptForRestartOrExit() (bool, error) {
	var choice string
	prompt := &survey.Select{
		Message: "What would you like to do next?",
		Options: []string{
			"Start a new analysis",
			"Exit TradeCrew",
		},
		Default: "Start a new analysis",
	}

	if err := survey.AskOne(prompt, &choice); err != nil {
		return false, err
	}
	return choice == "Start a new analysis", nil
}
