package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds application configuration.
type Config struct {
	// WorkerURL is the base address of the resolution/download boundary
	// (e.g. https://yourname.workers.dev). Required for acquisition.
	WorkerURL string `json:"worker_url"`

	// AppOrigin is the origin where the application's own static assets are
	// hosted. Only responses from this origin are cached opportunistically
	// by the offline asset cache.
	AppOrigin string `json:"app_origin,omitempty"`

	// CacheVersion tags the offline asset cache. Bumping it installs a fresh
	// cache; activation purges superseded versions.
	CacheVersion string `json:"cache_version,omitempty"`

	// HTTPTimeoutSeconds bounds every boundary request. A hung resolve or
	// download would otherwise block its link indefinitely.
	HTTPTimeoutSeconds int `json:"http_timeout_seconds,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "text" (tinted console) or "json".
	LogFormat string `json:"log_format,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default. Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools lists MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheVersion:       "static-v1",
		HTTPTimeoutSeconds: 60,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.mstash.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to baseDir/config.json.
// Used by the CLI "config" command to persist the worker URL.
func Save(baseDir string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(baseDir, "config.json"), append(data, '\n'), 0600)
}

// Merge combines base and overlay configs. Overlay values win when non-zero.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.WorkerURL = overlay.WorkerURL
	if result.WorkerURL == "" {
		result.WorkerURL = base.WorkerURL
	}

	result.AppOrigin = overlay.AppOrigin
	if result.AppOrigin == "" {
		result.AppOrigin = base.AppOrigin
	}

	result.CacheVersion = overlay.CacheVersion
	if result.CacheVersion == "" {
		result.CacheVersion = base.CacheVersion
	}

	result.HTTPTimeoutSeconds = overlay.HTTPTimeoutSeconds
	if result.HTTPTimeoutSeconds == 0 {
		result.HTTPTimeoutSeconds = base.HTTPTimeoutSeconds
	}

	result.LogLevel = overlay.LogLevel
	if result.LogLevel == "" {
		result.LogLevel = base.LogLevel
	}

	result.LogFormat = overlay.LogFormat
	if result.LogFormat == "" {
		result.LogFormat = base.LogFormat
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.DisabledTools = overlay.DisabledTools
	if result.DisabledTools == nil {
		result.DisabledTools = base.DisabledTools
	}

	return result
}
