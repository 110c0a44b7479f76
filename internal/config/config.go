package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justyntemme/solstice/internal/logging"
)

// Config holds all user-configurable settings loaded from config.json
type Config struct {
	Search     SearchConfig     `json:"search"`
	FolderSize FolderSizeConfig `json:"folderSize"`
	Undo       UndoConfig       `json:"undo"`
	Thumbnails ThumbnailConfig  `json:"thumbnails"`
	Watcher    WatcherConfig    `json:"watcher"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Store      StoreConfig      `json:"store"`
}

// SearchConfig bounds every traversal-backed search
type SearchConfig struct {
	MaxResults       int      `json:"maxResults"`
	MaxConcurrency   int      `json:"maxConcurrency"`
	Timeout          string   `json:"timeout"` // Go duration, e.g. "30s"
	AdvancedMaxDepth int      `json:"advancedMaxDepth"`
	ContentMaxBytes  int64    `json:"contentMaxBytes"`
	TextExtensions   []string `json:"textExtensions"` // Extensions eligible for content search
}

// FolderSizeConfig holds folder size aggregation settings
type FolderSizeConfig struct {
	MaxDepth int `json:"maxDepth"`
}

// UndoConfig holds undo history settings
type UndoConfig struct {
	Capacity int `json:"capacity"`
}

// ThumbnailConfig holds thumbnail cache settings
type ThumbnailConfig struct {
	MaxEntries int    `json:"maxEntries"`
	MaxPixels  int    `json:"maxPixels"` // Longest edge of a generated thumbnail
	CacheDir   string `json:"cacheDir"`  // Empty disables the disk cache
}

// WatcherConfig holds directory watcher settings
type WatcherConfig struct {
	DebounceMs int `json:"debounceMs"`
}

// LoggingConfig mirrors logging.Config
type LoggingConfig struct {
	Level      string `json:"level"`  // debug | info | warn | error
	Format     string `json:"format"` // json | console
	OutputPath string `json:"outputPath"`
}

// MetricsConfig holds the Prometheus endpoint address
type MetricsConfig struct {
	Addr string `json:"addr"` // Empty disables the endpoint
}

// StoreConfig holds the tag database location
type StoreConfig struct {
	Path string `json:"path"`
}

// DefaultTextExtensions are the extensions content search will read.
var DefaultTextExtensions = []string{
	".txt", ".md", ".js", ".ts", ".jsx", ".tsx", ".json", ".html", ".css", ".scss",
	".py", ".java", ".c", ".cpp", ".cs", ".h", ".go", ".rs", ".rb", ".php", ".sh",
	".yaml", ".yml", ".xml", ".ini", ".cfg", ".conf", ".log", ".csv", ".toml",
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a configuration manager backed by ConfigPath()
func NewManager() *Manager {
	return NewManagerAt(ConfigPath())
}

// NewManagerAt creates a configuration manager backed by path
func NewManagerAt(path string) *Manager {
	return &Manager{
		config: DefaultConfig(),
		path:   path,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			MaxResults:       500,
			MaxConcurrency:   20,
			Timeout:          "30s",
			AdvancedMaxDepth: 6,
			ContentMaxBytes:  100 * 1024,
			TextExtensions:   append([]string(nil), DefaultTextExtensions...),
		},
		FolderSize: FolderSizeConfig{MaxDepth: 11},
		Undo:       UndoConfig{Capacity: 50},
		Thumbnails: ThumbnailConfig{
			MaxEntries: 200,
			MaxPixels:  256,
			CacheDir:   filepath.Join(configDir(), "thumbnails"),
		},
		Watcher: WatcherConfig{DebounceMs: 200},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stderr",
		},
		Store: StoreConfig{Path: filepath.Join(configDir(), "solstice.db")},
	}
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "solstice")
}

// ConfigPath returns the config file path: ~/.config/solstice/config.json
// This is consistent across all platforms (Windows, macOS, Linux)
func ConfigPath() string {
	return filepath.Join(configDir(), "config.json")
}

// Path returns the file this manager reads and writes
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Load reads the configuration from the config file
// If the file doesn't exist, creates it with defaults
// If parsing fails, stores the error and returns defaults
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parseErr = nil

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Error("config: create directory failed", zap.String("dir", dir), zap.Error(err))
		return err
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		logging.Info("config: creating default config", zap.String("path", m.path))
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			logging.Error("config: save default failed", zap.Error(saveErr))
			return saveErr
		}
		return nil
	}
	if err != nil {
		logging.Error("config: read failed", zap.String("path", m.path), zap.Error(err))
		return err
	}

	// Unmarshal over defaults so sections missing from older files keep sane values
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		logging.Warn("config: JSON parse error, using defaults", zap.Error(err))
		m.parseErr = err
		m.config = DefaultConfig()
		return nil
	}
	cfg.normalize()

	logging.Info("config: loaded", zap.String("path", m.path))
	m.config = cfg
	return nil
}

// normalize replaces out-of-range values with defaults
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = def.Search.MaxResults
	}
	if c.Search.MaxConcurrency <= 0 {
		c.Search.MaxConcurrency = def.Search.MaxConcurrency
	}
	if _, err := time.ParseDuration(c.Search.Timeout); err != nil {
		c.Search.Timeout = def.Search.Timeout
	}
	if c.Search.AdvancedMaxDepth <= 0 {
		c.Search.AdvancedMaxDepth = def.Search.AdvancedMaxDepth
	}
	if c.Search.ContentMaxBytes <= 0 {
		c.Search.ContentMaxBytes = def.Search.ContentMaxBytes
	}
	if len(c.Search.TextExtensions) == 0 {
		c.Search.TextExtensions = def.Search.TextExtensions
	}
	if c.FolderSize.MaxDepth <= 0 {
		c.FolderSize.MaxDepth = def.FolderSize.MaxDepth
	}
	if c.Undo.Capacity <= 0 {
		c.Undo.Capacity = def.Undo.Capacity
	}
	if c.Thumbnails.MaxEntries <= 0 {
		c.Thumbnails.MaxEntries = def.Thumbnails.MaxEntries
	}
	if c.Thumbnails.MaxPixels <= 0 {
		c.Thumbnails.MaxPixels = def.Thumbnails.MaxPixels
	}
	if c.Watcher.DebounceMs < 0 {
		c.Watcher.DebounceMs = def.Watcher.DebounceMs
	}
}

// SearchTimeout returns the parsed traversal timeout
func (c SearchConfig) SearchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// saveUnlocked saves config without acquiring lock (caller must hold lock)
func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// Update applies fn to the configuration and persists it
func (m *Manager) Update(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.config)
	m.config.normalize()
	return m.saveUnlocked()
}

// GenerateConfig backs up the existing config at path and writes a fresh default.
// Returns the backup path if a backup was created, or empty string if no existing config
func GenerateConfig(path string) (backupPath string, err error) {
	if _, err := os.Stat(path); err == nil {
		timestamp := time.Now().Format("20060102-150405")
		backupPath = filepath.Join(filepath.Dir(path), "config.backup."+timestamp+".json")

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read existing config: %w", err)
		}
		if err := os.WriteFile(backupPath, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write backup: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return backupPath, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return backupPath, fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return backupPath, fmt.Errorf("failed to write config: %w", err)
	}

	return backupPath, nil
}
