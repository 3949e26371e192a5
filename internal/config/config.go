package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrMissingToken is returned by Validate when no bearer token is configured
var ErrMissingToken = errors.New("STEP_TOKEN environment variable is required")

const (
	// DefaultBaseURL is the production Step Challenge host
	DefaultBaseURL = "https://step-app-4x-yhw.fly.dev"
	// DefaultEndpointPath is the JSON-RPC path on the remote host
	DefaultEndpointPath = "/mcp"
	// DefaultTimeout guards every outbound call
	DefaultTimeout = 30 * time.Second

	ToolsSourceStatic = "static"
	ToolsSourceRemote = "remote"
)

// Config holds the application configuration
type Config struct {
	Token         string        `mapstructure:"token" yaml:"token,omitempty"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	EndpointPath  string        `mapstructure:"endpoint_path" yaml:"endpoint_path,omitempty"`
	TokenInParams bool          `mapstructure:"token_in_params" yaml:"token_in_params,omitempty"`
	ToolsSource   string        `mapstructure:"tools_source" yaml:"tools_source,omitempty"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
	LogLevel      string        `mapstructure:"log_level" yaml:"log_level,omitempty"`
	LogFormat     string        `mapstructure:"log_format" yaml:"log_format,omitempty"`

	// File is the config file that was read, empty when none was found
	File string `mapstructure:"-" yaml:"-"`
}

// Dir returns the per-user configuration directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "step-bridge")
}

// DefaultFile returns the path login writes to
func DefaultFile() string {
	return filepath.Join(Dir(), "config.yaml")
}

// New returns a viper instance with defaults, search paths and env bindings
// set up. Callers may bind flags on it before passing it to Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("endpoint_path", DefaultEndpointPath)
	v.SetDefault("token_in_params", false)
	v.SetDefault("tools_source", ToolsSourceStatic)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.AddConfigPath(Dir())
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("STEP")
	v.AutomaticEnv()

	// The bridge scripts disagree on the variable name, accept both.
	v.BindEnv("token", "STEP_TOKEN", "STEP_CHALLENGE_TOKEN")
	v.BindEnv("base_url", "STEP_CHALLENGE_URL", "STEP_BASE_URL")
	v.BindEnv("endpoint_path", "STEP_ENDPOINT_PATH")
	v.BindEnv("token_in_params", "STEP_TOKEN_IN_PARAMS")
	v.BindEnv("tools_source", "STEP_TOOLS_SOURCE")
	v.BindEnv("timeout", "STEP_TIMEOUT")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("log_format", "LOG_FORMAT")

	return v
}

// Load loads configuration from environment and config files
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = New()
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if _, ok := err.(*os.PathError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.normalize()

	return &cfg, nil
}

func (c *Config) normalize() {
	c.Token = strings.TrimSpace(c.Token)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.EndpointPath = strings.TrimSpace(c.EndpointPath)
	if c.EndpointPath == "" {
		c.EndpointPath = DefaultEndpointPath
	}
	if !strings.HasPrefix(c.EndpointPath, "/") {
		c.EndpointPath = "/" + c.EndpointPath
	}
	c.ToolsSource = strings.ToLower(strings.TrimSpace(c.ToolsSource))
	if c.ToolsSource != ToolsSourceRemote {
		c.ToolsSource = ToolsSourceStatic
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks the fields required to talk to the remote service
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// Endpoint returns the full JSON-RPC URL
func (c *Config) Endpoint() string {
	return c.BaseURL + c.EndpointPath
}

// Save writes the persistent subset of c to path as YAML, merging over any
// values already stored there.
func Save(path string, c *Config) error {
	stored := Config{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if c.Token != "" {
		stored.Token = c.Token
	}
	if c.BaseURL != "" && c.BaseURL != DefaultBaseURL {
		stored.BaseURL = c.BaseURL
	}
	if c.EndpointPath != "" && c.EndpointPath != DefaultEndpointPath {
		stored.EndpointPath = c.EndpointPath
	}
	if c.TokenInParams {
		stored.TokenInParams = true
	}

	data, err := yaml.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
