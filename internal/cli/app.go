package cli

import (
	"context"

	"tradecrew/internal/agents"
	"tradecrew/internal/config"
	"tradecrew/internal/dataflows"
	"tradecrew/internal/debug"
	"tradecrew/internal/pipeline"
	"tradecrew/internal/server"
	"tradecrew/internal/storage/sqlite"
	"tradecrew/internal/tools"
	"tradecrew/pkg/logger"
)

// App holds everything a command needs after bootstrap.
type App struct {
	Cfg      *config.Config
	Pipeline *pipeline.Pipeline
	Store    *sqlite.Store

	closers []func() error
}

// newApp loads configuration and wires the full stack: logger, settings,
// data clients, toolbox, crew, pipeline, storage. Configuration problems
// are fatal here, before any run starts.
func newApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return nil, err
	}
	log := logger.Get().With("component", "app")

	if err := debug.InitEino(ctx, cfg); err != nil {
		return nil, err
	}

	app := &App{Cfg: cfg}

	settings := config.Static(config.DefaultSettings(cfg))
	if cfg.Data.SettingsFile != "" {
		mgr, err := config.NewSettingsManager(cfg.Data.SettingsFile, config.DefaultSettings(cfg))
		if err != nil {
			return nil, err
		}
		if err := mgr.Watch(ctx, nil); err != nil {
			log.Warnf("settings watch unavailable: %v", err)
		}
		settings = mgr.Get
	}

	var longport *dataflows.LongportClient
	if cfg.LongportEnabled() {
		lp, err := dataflows.NewLongportClient(cfg.Longport.AppKey, cfg.Longport.AppSecret, cfg.Longport.AccessToken)
		if err != nil {
			log.Warnf("longbridge quotes unavailable: %v", err)
		} else {
			longport = lp
			app.closers = append(app.closers, func() error { lp.Close(); return nil })
		}
	}

	cacheDir := cfg.CacheDir()
	toolbox := tools.NewToolbox(tools.ToolboxConfig{
		Search: dataflows.NewSerperClient(dataflows.SerperConfig{
			APIKey:       cfg.Search.SerperAPIKey,
			CacheDir:     cacheDir,
			CacheEnabled: cfg.Data.CacheEnabled,
		}),
		Scraper: dataflows.NewPageScraper(dataflows.ScraperConfig{
			CacheDir:     cacheDir,
			CacheEnabled: cfg.Data.CacheEnabled,
		}),
		Market: dataflows.NewMarketClient(dataflows.MarketConfig{
			CacheDir:     cacheDir,
			CacheEnabled: cfg.Data.CacheEnabled,
			Longport:     longport,
		}),
		Settings: settings,
	})

	var runStore pipeline.RunStore
	store, err := sqlite.Open(cfg.Data.DBPath)
	if err != nil {
		log.Warnf("run history disabled: %v", err)
	} else {
		app.Store = store
		runStore = store
		app.closers = append(app.closers, store.Close)
	}

	crew := agents.NewCrew(cfg, settings, toolbox)
	app.Pipeline = pipeline.New(crew.Runners, runStore)

	return app, nil
}

// runReader adapts the optional store for the web server. Returning a typed
// nil through the interface would defeat the server's nil check.
func (a *App) runReader() server.RunReader {
	if a.Store == nil {
		return nil
	}
	return a.Store
}

// Close releases everything the app opened, newest first.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = logger.Sync()
	return firstErr
}
