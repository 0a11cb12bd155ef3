package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the configuration directory relative to the home
	// directory. It is also the default data directory.
	ConfigDir = ".config/cliphist"

	MaxHistoryLimit = 10000
	MaxDebounceMS   = 5000

	DefaultS3Key = "cliphist/clipboard-storage.json"
)

// Persistence backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

var backends = map[string]bool{
	BackendSQLite: true,
	BackendFile:   true,
	BackendBolt:   true,
	BackendS3:     true,
	BackendMemory: true,
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Config represents the cliphist configuration
type Config struct {
	HistoryLimit int    `yaml:"history_limit"`
	DebounceMS   int    `yaml:"debounce_ms"`
	Backend      string `yaml:"backend"`
	DataDir      string `yaml:"data_dir,omitempty"`
	S3Bucket     string `yaml:"s3_bucket,omitempty"`
	S3Key        string `yaml:"s3_key,omitempty"`
	S3Region     string `yaml:"s3_region,omitempty"`
	LogLevel     string `yaml:"log_level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		HistoryLimit: 100,
		DebounceMS:   100,
		Backend:      BackendSQLite,
		S3Key:        DefaultS3Key,
		LogLevel:     "info",
	}
}

// Debounce returns the change coalescing window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	if lvl, ok := logLevels[c.LogLevel]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// ConfigManager manages configuration persistence
type ConfigManager struct {
	configPath string
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() (*ConfigManager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ConfigDir, "config.yaml")

	return &ConfigManager{
		configPath: configPath,
	}, nil
}

// NewConfigManagerWithPath creates a config manager with custom config path
func NewConfigManagerWithPath(configPath string) *ConfigManager {
	return &ConfigManager{
		configPath: configPath,
	}
}

// Load reads the configuration from file, or returns default if file doesn't exist.
// Keys missing from the file keep their default values.
func (cm *ConfigManager) Load() (*Config, error) {
	data, err := os.ReadFile(cm.configPath)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cm.validateAndSetDefaults(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save writes the configuration to file
func (cm *ConfigManager) Save(config *Config) error {
	if err := cm.validateAndSetDefaults(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	configDir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// validateAndSetDefaults validates configuration and sets defaults for empty fields
func (cm *ConfigManager) validateAndSetDefaults(config *Config) error {
	if config.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be greater than 0")
	}
	if config.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("history_limit cannot exceed %d items", MaxHistoryLimit)
	}

	if config.DebounceMS < 0 || config.DebounceMS > MaxDebounceMS {
		return fmt.Errorf("debounce_ms must be between 0 and %d", MaxDebounceMS)
	}

	if config.Backend == "" {
		config.Backend = BackendSQLite
	}
	if !backends[config.Backend] {
		return fmt.Errorf("unknown backend %q", config.Backend)
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if _, ok := logLevels[config.LogLevel]; !ok {
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}

	if config.S3Key == "" {
		config.S3Key = DefaultS3Key
	}

	return nil
}

// GetConfigPath returns the path to the config file
func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// Keys returns the configuration keys in sorted order.
func Keys() []string {
	keys := []string{
		"history-limit", "debounce-ms", "backend", "data-dir",
		"s3-bucket", "s3-key", "s3-region", "log-level",
	}
	sort.Strings(keys)
	return keys
}

// Update modifies a specific configuration value
func (cm *ConfigManager) Update(key, value string) error {
	config, err := cm.Load()
	if err != nil {
		return err
	}

	switch key {
	case "history-limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for history-limit: %s", value)
		}
		config.HistoryLimit = n
	case "debounce-ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for debounce-ms: %s", value)
		}
		config.DebounceMS = n
	case "backend":
		config.Backend = value
	case "data-dir":
		config.DataDir = value
	case "s3-bucket":
		config.S3Bucket = value
	case "s3-key":
		config.S3Key = value
	case "s3-region":
		config.S3Region = value
	case "log-level":
		config.LogLevel = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	return cm.Save(config)
}

// Get returns the value for a specific configuration key
func (cm *ConfigManager) Get(key string) (string, error) {
	config, err := cm.Load()
	if err != nil {
		return "", err
	}

	values := config.values()
	value, ok := values[key]
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	return value, nil
}

// List returns all configuration keys and values
func (cm *ConfigManager) List() (map[string]string, error) {
	config, err := cm.Load()
	if err != nil {
		return nil, err
	}
	return config.values(), nil
}

func (c *Config) values() map[string]string {
	result := map[string]string{
		"history-limit": strconv.Itoa(c.HistoryLimit),
		"debounce-ms":   strconv.Itoa(c.DebounceMS),
		"backend":       c.Backend,
		"data-dir":      c.DataDir,
		"s3-bucket":     c.S3Bucket,
		"s3-key":        c.S3Key,
		"s3-region":     c.S3Region,
		"log-level":     c.LogLevel,
	}
	for _, key := range []string{"data-dir", "s3-bucket", "s3-region"} {
		if result[key] == "" {
			result[key] = "[default]"
		}
	}
	return result
}

// ResolveDataDir returns the directory file-based backends store data in.
// If dataDir is empty, uses ~/.config/cliphist.
// If dataDir is absolute, uses it directly.
// If dataDir is relative, treats it as a subdirectory of ~/.config/cliphist.
func ResolveDataDir(dataDir string) (string, error) {
	if filepath.IsAbs(dataDir) {
		return dataDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ConfigDir, dataDir), nil
}
