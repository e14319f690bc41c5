package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tradecrew/internal/display"
	"tradecrew/internal/models"
	"tradecrew/internal/server"
	"tradecrew/pkg/errors"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tradecrew",
		Short: "TradeCrew - AI-Powered Trading Analysis",
		Long: `TradeCrew runs a crew of four LLM analysis roles over a stock symbol:
market data, strategy, trade execution, and risk. Run it interactively,
one-shot from the command line, or as a web app.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveMode(cmd.Context())
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the CLI with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	rootCmd.SetContext(ctx)
	return rootCmd.ExecuteContext(ctx)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the TradeCrew web app",
		Long:  "Serve the analysis form, report pages and run history over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Cfg.HTTP.Addr
			}

			srv, err := server.New(server.Config{
				Addr:     addr,
				Analyzer: app.Pipeline,
				Runs:     app.runReader(),
			})
			if err != nil {
				return err
			}

			display.Info(fmt.Sprintf("TradeCrew listening on %s", addr))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (defaults to HTTP_ADDR)")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [SYMBOL]",
		Short: "Run one trading analysis from the command line",
		Long: `Run a full four-role analysis for a stock symbol and print the report.
Example: tradecrew analyze AAPL --capital 50000 --risk High --strategy "Swing Trading"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			capitalStr, _ := cmd.Flags().GetString("capital")
			capital, err := decimal.NewFromString(capitalStr)
			if err != nil {
				return fmt.Errorf("invalid --capital value %q: %w", capitalStr, err)
			}

			strategy, _ := cmd.Flags().GetString("strategy")
			risk, _ := cmd.Flags().GetString("risk")
			news, _ := cmd.Flags().GetBool("news")
			asJSON, _ := cmd.Flags().GetBool("json")
			outPath, _ := cmd.Flags().GetString("output")

			req := models.TradingRequest{
				Symbol:             args[0],
				InitialCapital:     capital,
				StrategyPreference: strategy,
				RiskTolerance:      risk,
				ConsiderNews:       news,
			}

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if !asJSON {
				fmt.Printf("🚀 Starting analysis for %s...\n", strings.ToUpper(strings.TrimSpace(args[0])))
			}

			report, err := app.Pipeline.Execute(ctx, req)
			if err != nil {
				return describeRunError(err)
			}

			if outPath != "" {
				if err := writeReportFile(outPath, report.Markdown); err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			display.Report(report)
			if outPath != "" {
				display.Info(fmt.Sprintf("Report written to %s", outPath))
			}
			return nil
		},
	}

	defaults := models.DefaultRequest()
	cmd.Flags().String("capital", defaults.InitialCapital.String(), "Initial capital in USD (minimum 1000)")
	cmd.Flags().String("strategy", defaults.StrategyPreference, "Strategy preference: "+strings.Join(models.StrategyOptions, ", "))
	cmd.Flags().String("risk", defaults.RiskTolerance, "Risk tolerance: "+strings.Join(models.RiskLevels, ", "))
	cmd.Flags().Bool("news", defaults.ConsiderNews, "Weigh recent news impact")
	cmd.Flags().Bool("json", false, "Print the report as JSON instead of styled text")
	cmd.Flags().String("output", "", "Also write the report markdown to this file")

	return cmd
}

func writeReportFile(path, markdown string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List past runs, or print one run's report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Store == nil {
				return fmt.Errorf("run history is disabled")
			}

			if len(args) == 1 {
				return showRun(ctx, app, args[0])
			}

			limit, _ := cmd.Flags().GetInt("limit")
			return listRuns(ctx, app, limit)
		},
	}

	cmd.Flags().Int("limit", 20, "Number of runs to list")
	return cmd
}

func listRuns(ctx context.Context, app *App, limit int) error {
	runs, err := app.Store.ListRuns(ctx, 0, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		display.Info("No runs yet. Start one with: tradecrew analyze AAPL")
		return nil
	}

	fmt.Println("📜 Past runs:")
	fmt.Println(strings.Repeat("─", 100))
	for _, run := range runs {
		status := "✅"
		if run.Status != "completed" {
			status = "❌"
		}
		fmt.Printf("%s  %-8s %-16s %-10s %s  %s\n",
			status, run.Symbol, run.StrategyPreference, run.RiskTolerance,
			run.FinishedAt.Format("2006-01-02 15:04"), run.ID)
	}
	fmt.Println(strings.Repeat("─", 100))
	fmt.Println("💡 Show one run: tradecrew history <RUN_ID>")
	return nil
}

func showRun(ctx context.Context, app *App, runID string) error {
	run, err := app.Store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run with id %s", runID)
	}

	if run.Status != "completed" {
		display.Error(fmt.Errorf("run %s failed at the %s: %s", runID, run.FailedRole, run.Error))
		return nil
	}

	fmt.Println(run.Markdown)
	return nil
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			showConfig(app)
			return nil
		},
	})

	return configCmd
}

func showConfig(app *App) {
	cfg := app.Cfg

	fmt.Println("📋 Current TradeCrew Configuration:")
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("Environment:          %s\n", cfg.App.Env)
	fmt.Printf("Log Level:            %s\n", cfg.App.LogLevel)
	fmt.Printf("HTTP Address:         %s\n", cfg.HTTP.Addr)
	fmt.Println()
	fmt.Printf("LLM Provider:         %s\n", cfg.LLM.Provider)
	fmt.Printf("Model:                %s\n", cfg.LLM.Model)
	fmt.Printf("Temperature:          %.2f\n", cfg.LLM.Temperature)
	fmt.Printf("Max Tokens:           %d\n", cfg.LLM.MaxTokens)
	fmt.Println()
	fmt.Printf("Data Directory:       %s\n", cfg.Data.Dir)
	fmt.Printf("Database:             %s\n", cfg.Data.DBPath)
	fmt.Printf("Cache Enabled:        %t\n", cfg.Data.CacheEnabled)
	if cfg.Data.SettingsFile != "" {
		fmt.Printf("Settings File:        %s\n", cfg.Data.SettingsFile)
	}
	fmt.Printf("Eino Debug:           %t\n", cfg.Debug.EinoEnabled)
	fmt.Println()

	fmt.Println("🔌 API Configuration:")
	fmt.Println("─────────────────────")
	fmt.Printf("LLM API:              %s\n", configuredMark(cfg.LLM.APIKey != ""))
	fmt.Printf("Serper API:           %s\n", configuredMark(cfg.Search.SerperAPIKey != ""))
	fmt.Printf("Longbridge API:       %s\n", configuredMark(cfg.LongportEnabled()))
}

func configuredMark(ok bool) string {
	if ok {
		return "✅ Configured"
	}
	return "❌ Not configured"
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("TradeCrew v1.0.0")
			fmt.Println("AI-Powered Trading Analysis Crew")
		},
	}
}

// describeRunError turns pipeline errors into operator-friendly messages.
func describeRunError(err error) error {
	var genErr *errors.GenerationError
	if errors.As(err, &genErr) {
		return fmt.Errorf("the %s could not produce its section, no report was generated: %w", genErr.Role, genErr.Err)
	}
	return err
}
