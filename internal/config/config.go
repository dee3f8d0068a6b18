package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. FLOATCHAT_SERVER_URL.
const EnvPrefix = "FLOATCHAT"

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Model  ModelConfig  `mapstructure:"model" yaml:"model"`
	Drafts DraftsConfig `mapstructure:"drafts" yaml:"drafts"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Theme  ThemeConfig  `mapstructure:"theme" yaml:"theme,omitempty"`
}

type ServerConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Token   string        `mapstructure:"token" yaml:"token,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// MarshalYAML writes the timeout as a duration string so Load can read it back.
func (s ServerConfig) MarshalYAML() (any, error) {
	return struct {
		URL     string `yaml:"url"`
		Token   string `yaml:"token,omitempty"`
		Timeout string `yaml:"timeout"`
	}{s.URL, s.Token, s.Timeout.String()}, nil
}

// ModelConfig is the model preselected for new sessions.
type ModelConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Name     string `mapstructure:"name" yaml:"name"`
}

type DraftsConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// ThemeConfig overrides TUI colors. Values are lipgloss colors, either ANSI
// numbers ("10") or hex ("#ff8800"). Empty fields keep the default.
type ThemeConfig struct {
	Primary   string `mapstructure:"primary" yaml:"primary,omitempty"`
	Secondary string `mapstructure:"secondary" yaml:"secondary,omitempty"`
	Success   string `mapstructure:"success" yaml:"success,omitempty"`
	Error     string `mapstructure:"error" yaml:"error,omitempty"`
	Warning   string `mapstructure:"warning" yaml:"warning,omitempty"`
	Muted     string `mapstructure:"muted" yaml:"muted,omitempty"`
	Text      string `mapstructure:"text" yaml:"text,omitempty"`
	Spinner   string `mapstructure:"spinner" yaml:"spinner,omitempty"`
	UserMsgBg string `mapstructure:"user_msg_bg" yaml:"user_msg_bg,omitempty"`
}

// Default returns the configuration used when no file or env override exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Model: ModelConfig{
			Provider: "openai",
			Name:     "gpt-4",
		},
		Drafts: DraftsConfig{Backend: "sqlite"},
		Log:    LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.token", d.Server.Token)
	v.SetDefault("server.timeout", d.Server.Timeout)
	v.SetDefault("model.provider", d.Model.Provider)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("drafts.backend", d.Drafts.Backend)
	v.SetDefault("drafts.path", d.Drafts.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		configDir, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config dir: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}

	// Read config file (optional - won't error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve() error {
	url, err := ResolveValue(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	c.Server.URL = url

	token, err := ResolveValue(c.Server.Token)
	if err != nil {
		return fmt.Errorf("server.token: %w", err)
	}
	c.Server.Token = token
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.URL) == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}
	switch strings.ToLower(c.Drafts.Backend) {
	case "", "sqlite", "file", "memory", "none":
	default:
		return fmt.Errorf("drafts.backend %q is not one of sqlite, file, memory, none", c.Drafts.Backend)
	}
	return nil
}

// ApplyOverrides replaces the preselected model; empty values leave the
// current setting in place.
func (c *Config) ApplyOverrides(provider, model string) {
	if provider != "" {
		c.Model.Provider = provider
	}
	if model != "" {
		c.Model.Name = model
	}
}

// GetConfigDir returns the floatchat directory under the user config dir.
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "floatchat"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes the config to path, or the default location when path is empty.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	header := "# floatchat configuration\n# Values may reference ${ENV_VAR} or $(shell command).\n"
	return os.WriteFile(path, append([]byte(header), data...), 0600)
}
