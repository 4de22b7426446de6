package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/chimerax/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	ProjectRoot   string        `mapstructure:"project_root" yaml:"project_root"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	Models        ModelsConfig  `mapstructure:"models" yaml:"models"`
	Service       ServiceConfig `mapstructure:"service" yaml:"service"`
	Engines       EnginesConfig `mapstructure:"engines" yaml:"engines"`
	SSH           SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	Auth          AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ModelsConfig controls allowed and default LLM models.
type ModelsConfig struct {
	Default string   `mapstructure:"default" yaml:"default"`
	Allowed []string `mapstructure:"allowed" yaml:"allowed"`
}

// ServiceConfig controls core service behavior.
type ServiceConfig struct {
	BufferMaxLines int    `mapstructure:"buffer_max_lines" yaml:"buffer_max_lines"`
	TabTitleMax    int    `mapstructure:"tab_title_max" yaml:"tab_title_max"`
	TabTitleSuffix string `mapstructure:"tab_title_suffix" yaml:"tab_title_suffix"`
	MaxWindows     int    `mapstructure:"max_windows" yaml:"max_windows"`
	DefaultEngine  string `mapstructure:"default_engine" yaml:"default_engine"`
	DefaultTheme   string `mapstructure:"default_theme" yaml:"default_theme"`
}

// EnginesConfig configures the engine CLI invocations.
type EnginesConfig struct {
	Claude EngineConfig `mapstructure:"claude" yaml:"claude"`
	Codex  EngineConfig `mapstructure:"codex" yaml:"codex"`
	Gemini EngineConfig `mapstructure:"gemini" yaml:"gemini"`
}

// EngineConfig configures one engine CLI binary.
type EngineConfig struct {
	Binary string            `mapstructure:"binary" yaml:"binary"`
	Args   []string          `mapstructure:"args" yaml:"args"`
	Env    map[string]string `mapstructure:"env" yaml:"env"`
}

// SSHConfig configures the SSH server.
type SSHConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath string `mapstructure:"host_key_path" yaml:"host_key_path"`
}

// AuthConfig configures auth storage and seed users.
type AuthConfig struct {
	UserFile  string     `mapstructure:"user_file" yaml:"user_file"`
	SeedUsers []SeedUser `mapstructure:"seed_users" yaml:"seed_users"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// SeedUser seeds a user record in the auth store.
type SeedUser struct {
	Username     string `mapstructure:"username" yaml:"username"`
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`
	TOTPSecret   string `mapstructure:"totp_secret" yaml:"totp_secret"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		ProjectRoot:   filepath.Join(home, ".chimerax", "projects"),
		StateDir:      filepath.Join(home, ".chimerax", "state"),
		Models: ModelsConfig{
			Default: "",
			Allowed: []string{},
		},
		Service: ServiceConfig{
			BufferMaxLines: schema.DefaultBufferMaxLines,
			TabTitleMax:    12,
			TabTitleSuffix: "$",
			MaxWindows:     schema.DefaultMaxWindows,
			DefaultEngine:  string(schema.DefaultEngine),
			DefaultTheme:   string(schema.DefaultTheme),
		},
		Engines: EnginesConfig{
			Claude: EngineConfig{Binary: "claude", Args: []string{}, Env: map[string]string{}},
			Codex:  EngineConfig{Binary: "codex", Args: []string{}, Env: map[string]string{}},
			Gemini: EngineConfig{Binary: "gemini", Args: []string{}, Env: map[string]string{}},
		},
		SSH: SSHConfig{
			Addr:        ":27522",
			HostKeyPath: filepath.Join(home, ".chimerax", "ssh_host_key"),
		},
		Auth: AuthConfig{
			UserFile:  filepath.Join(home, ".chimerax", "users.json"),
			SeedUsers: []SeedUser{},
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".chimerax", "config.yaml"), nil
}
