package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tradecrew/pkg/errors"
	"tradecrew/pkg/logger"
)

// Settings are the runtime tunables that may change between runs without
// a restart. They are read from an optional JSON file watched for edits;
// credentials never live here.
type Settings struct {
	Model          string  `json:"model"`
	Temperature    float32 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	MaxToolSteps   int     `json:"max_tool_steps"`
	SearchResults  int     `json:"search_results"`
	ScrapeMaxChars int     `json:"scrape_max_chars"`
}

// DefaultSettings derives initial runtime settings from the environment
// configuration.
func DefaultSettings(cfg *Config) Settings {
	return Settings{
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		MaxToolSteps:   40,
		SearchResults:  cfg.Search.ResultCount,
		ScrapeMaxChars: 8000,
	}
}

// Validate checks settings ranges
func (s Settings) Validate() error {
	if s.Model == "" {
		return errors.New("model must not be empty")
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return errors.Newf("temperature out of range [0, 2]: %v", s.Temperature)
	}
	if s.MaxTokens <= 0 {
		return errors.Newf("max_tokens must be positive: %d", s.MaxTokens)
	}
	if s.MaxToolSteps < 1 || s.MaxToolSteps > 64 {
		return errors.Newf("max_tool_steps out of range [1, 64]: %d", s.MaxToolSteps)
	}
	if s.SearchResults < 1 || s.SearchResults > 20 {
		return errors.Newf("search_results out of range [1, 20]: %d", s.SearchResults)
	}
	if s.ScrapeMaxChars < 500 {
		return errors.Newf("scrape_max_chars too small: %d", s.ScrapeMaxChars)
	}
	return nil
}

// Static wraps fixed settings in the provider shape used by components
// that read a snapshot per run.
func Static(s Settings) func() Settings {
	return func() Settings { return s }
}

// SettingsManager serves runtime settings from a watched JSON file
type SettingsManager struct {
	path     string
	mu       sync.RWMutex
	settings Settings
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(Settings)
	defaults Settings
	log      *logger.Logger
}

type settingsOptions struct {
	debounce time.Duration
}

// SettingsOption configures the settings manager
type SettingsOption func(*settingsOptions)

// WithDebounce overrides the reload debounce interval
func WithDebounce(d time.Duration) SettingsOption {
	return func(o *settingsOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// NewSettingsManager loads settings from path, creating the file with
// defaults when it does not exist.
func NewSettingsManager(path string, defaults Settings, opts ...SettingsOption) (*SettingsManager, error) {
	options := settingsOptions{
		debounce: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := defaults.Validate(); err != nil {
		return nil, errors.Wrap(err, "default settings")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create settings dir")
	}

	settings, err := loadOrCreateSettings(path, defaults)
	if err != nil {
		return nil, err
	}

	return &SettingsManager{
		path:     path,
		settings: settings,
		debounce: options.debounce,
		defaults: defaults,
		log:      logger.Get().With("component", "settings"),
	}, nil
}

// Get returns the current settings snapshot
func (m *SettingsManager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Path returns the watched file location
func (m *SettingsManager) Path() string {
	return m.path
}

// Watch reloads settings when the file changes until ctx is done.
// onChange may be nil.
func (m *SettingsManager) Watch(ctx context.Context, onChange func(Settings)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watcher != nil {
		m.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.watcher = watcher
	debounce := m.debounce
	path := m.path
	m.mu.Unlock()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrap(err, "watch settings dir")
	}

	go m.watchLoop(ctx, watcher, path, debounce)
	return nil
}

func (m *SettingsManager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration) {
	defer watcher.Close()

	var timerMu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, m.reloadFromDisk)
		timerMu.Unlock()
	}

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isSettingsEvent(evt, path) {
				continue
			}
			trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				m.log.Warnf("settings watcher error: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func isSettingsEvent(evt fsnotify.Event, path string) bool {
	if filepath.Clean(evt.Name) != filepath.Clean(path) {
		return false
	}
	return evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (m *SettingsManager) reloadFromDisk() {
	var settings Settings
	if err := loadSettingsFile(m.path, &settings); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			settings = m.defaults
			if err := writeSettingsFile(m.path, settings); err != nil {
				m.log.Warnf("settings recreate failed: %v", err)
				return
			}
		} else {
			m.log.Warnf("settings reload failed: %v", err)
			return
		}
	}
	if err := settings.Validate(); err != nil {
		m.log.Warnf("settings validation failed: %v", err)
		return
	}

	m.mu.RLock()
	current := m.settings
	m.mu.RUnlock()
	if reflect.DeepEqual(current, settings) {
		return
	}

	m.mu.Lock()
	m.settings = settings
	cb := m.onChange
	m.mu.Unlock()

	m.log.Infof("settings reloaded from %s", m.path)
	if cb != nil {
		cb(settings)
	}
}

func loadOrCreateSettings(path string, defaults Settings) (Settings, error) {
	var settings Settings
	if _, err := os.Stat(path); err == nil {
		if err := loadSettingsFile(path, &settings); err != nil {
			return Settings{}, errors.Wrap(err, "load settings")
		}
		if err := settings.Validate(); err != nil {
			return Settings{}, err
		}
		return settings, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Settings{}, errors.Wrap(err, "stat settings")
	}

	if err := writeSettingsFile(path, defaults); err != nil {
		return Settings{}, errors.Wrap(err, "write initial settings")
	}
	return defaults, nil
}

func loadSettingsFile(path string, out *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func writeSettingsFile(path string, settings Settings) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "settings-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp settings")
	}
	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&settings); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return errors.Wrap(err, "encode settings")
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return errors.Wrap(err, "flush settings")
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return errors.Wrap(err, "close temp settings")
	}
	return os.Rename(tmpFile.Name(), path)
}
