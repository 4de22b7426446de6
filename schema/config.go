package schema

import (
	"errors"
	"os"
	"path/filepath"
)

// ServiceConfig defines defaults and limits for the core service.
type ServiceConfig struct {
	ProjectRoot    string
	StateDir       string
	DefaultEngine  EngineID
	DefaultModel   ModelID
	AllowedModels  []ModelID
	DefaultTheme   ThemeName
	TabTitleMax    int
	TabTitleSuffix string
	BufferMaxLines int
	// MaxWindows caps the number of detached windows per workspace; a
	// detach beyond the cap fails with ErrDetachFailed, tab intact.
	MaxWindows int
	// DisableAuditLogging disables audit trail debug logs for commands.
	DisableAuditLogging bool
}

// DefaultBufferMaxLines is the default per-tab buffer limit.
const DefaultBufferMaxLines = 5000

// DefaultMaxWindows is the default detached window cap per workspace.
const DefaultMaxWindows = 8

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.ProjectRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.ProjectRoot = filepath.Join(home, ".chimerax", "projects")
	}
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".chimerax", "state")
	}
	if cfg.TabTitleMax <= 0 {
		cfg.TabTitleMax = 12
	}
	if cfg.TabTitleSuffix == "" {
		cfg.TabTitleSuffix = "$"
	}
	if cfg.DefaultEngine == "" {
		cfg.DefaultEngine = DefaultEngine
	}
	if _, err := NormalizeEngineID(string(cfg.DefaultEngine)); err != nil {
		return ServiceConfig{}, err
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = DefaultTheme
	}
	if cfg.BufferMaxLines <= 0 {
		cfg.BufferMaxLines = DefaultBufferMaxLines
	}
	if cfg.MaxWindows <= 0 {
		cfg.MaxWindows = DefaultMaxWindows
	}
	if cfg.TabTitleMax <= len(cfg.TabTitleSuffix) {
		return ServiceConfig{}, errors.New("tab title max must exceed suffix length")
	}
	return cfg, nil
}
