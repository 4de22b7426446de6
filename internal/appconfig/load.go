package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("project_root", cfg.ProjectRoot)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("models.default", cfg.Models.Default)
	v.SetDefault("models.allowed", cfg.Models.Allowed)
	v.SetDefault("service.buffer_max_lines", cfg.Service.BufferMaxLines)
	v.SetDefault("service.tab_title_max", cfg.Service.TabTitleMax)
	v.SetDefault("service.tab_title_suffix", cfg.Service.TabTitleSuffix)
	v.SetDefault("service.max_windows", cfg.Service.MaxWindows)
	v.SetDefault("service.default_engine", cfg.Service.DefaultEngine)
	v.SetDefault("service.default_theme", cfg.Service.DefaultTheme)
	v.SetDefault("engines.claude.binary", cfg.Engines.Claude.Binary)
	v.SetDefault("engines.claude.args", cfg.Engines.Claude.Args)
	v.SetDefault("engines.claude.env", cfg.Engines.Claude.Env)
	v.SetDefault("engines.codex.binary", cfg.Engines.Codex.Binary)
	v.SetDefault("engines.codex.args", cfg.Engines.Codex.Args)
	v.SetDefault("engines.codex.env", cfg.Engines.Codex.Env)
	v.SetDefault("engines.gemini.binary", cfg.Engines.Gemini.Binary)
	v.SetDefault("engines.gemini.args", cfg.Engines.Gemini.Args)
	v.SetDefault("engines.gemini.env", cfg.Engines.Gemini.Env)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("auth.user_file", cfg.Auth.UserFile)
	v.SetDefault("auth.seed_users", cfg.Auth.SeedUsers)
	v.SetDefault("logging.disable_audit_trails", cfg.Logging.DisableAuditTrails)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	return cfg, nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.ProjectRoot = expandEnv(cfg.ProjectRoot)
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Engines.Claude.Binary = expandEnv(cfg.Engines.Claude.Binary)
	cfg.Engines.Codex.Binary = expandEnv(cfg.Engines.Codex.Binary)
	cfg.Engines.Gemini.Binary = expandEnv(cfg.Engines.Gemini.Binary)
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
	cfg.Auth.UserFile = expandEnv(cfg.Auth.UserFile)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
