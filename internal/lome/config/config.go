package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/store"
	"github.com/longkey1/lome/internal/openrouter"
	"github.com/longkey1/lome/internal/server"
)

// Config holds the configuration of both the client and the server
type Config struct {
	Model             string `toml:"model" mapstructure:"model"` // Format: "vendor/model" (e.g., "openai/gpt-4-turbo")
	OpenRouterBaseURL string `toml:"openrouter_base_url" mapstructure:"openrouter_base_url"`
	OpenRouterToken   string `toml:"openrouter_token" mapstructure:"openrouter_token"`

	// Client: talk to a remote server when set, otherwise run the backend in-process
	ServerURL    string `toml:"server_url" mapstructure:"server_url"`
	SessionToken string `toml:"session_token" mapstructure:"session_token"`
	// Email of the persona used by the in-process backend
	LocalUser string `toml:"local_user" mapstructure:"local_user"`

	// Server
	ListenAddr    string `toml:"listen_addr" mapstructure:"listen_addr"`
	SessionSecret string `toml:"session_secret" mapstructure:"session_secret"`
	SessionTTL    string `toml:"session_ttl" mapstructure:"session_ttl"`

	DataDir     string `toml:"data_dir" mapstructure:"data_dir"`
	StoreDriver string `toml:"store_driver" mapstructure:"store_driver"` // "file" or "sqlite"
	CatalogFile string `toml:"catalog_file" mapstructure:"catalog_file"`

	// Hide pending messages whose text already arrived from the server within
	// this window ("" or "0" disables)
	DedupeWindow string `toml:"dedupe_window" mapstructure:"dedupe_window"`

	LogLevel  string `toml:"log_level" mapstructure:"log_level"`   // debug, info, warn, error
	LogFormat string `toml:"log_format" mapstructure:"log_format"` // text or json
}

var _ openrouter.Config = (*Config)(nil)

// GetModel returns the model name
func (c *Config) GetModel() string {
	return c.Model
}

// GetBaseURL returns the router base URL
func (c *Config) GetBaseURL() string {
	return c.OpenRouterBaseURL
}

// GetToken returns the router token
func (c *Config) GetToken() string {
	return c.OpenRouterToken
}

// GetVendor extracts the vendor name from the model string
func (c *Config) GetVendor() (string, error) {
	vendor, _, err := lome.ParseModelString(c.Model)
	return vendor, err
}

// Remote reports whether the client talks to a remote server
func (c *Config) Remote() bool {
	return c.ServerURL != ""
}

// SessionTTLDuration parses SessionTTL
func (c *Config) SessionTTLDuration() (time.Duration, error) {
	return parseDuration("session_ttl", c.SessionTTL)
}

// DedupeWindowDuration parses DedupeWindow
func (c *Config) DedupeWindowDuration() (time.Duration, error) {
	return parseDuration("dedupe_window", c.DedupeWindow)
}

func parseDuration(key, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, value)
	}
	return d, nil
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig(dataDir string) *Config {
	return &Config{
		Model:             "openai/gpt-4-turbo",
		OpenRouterBaseURL: openrouter.DefaultBaseURL,
		OpenRouterToken:   "$OPENROUTER_API_KEY", // Default to env var
		ServerURL:         "",
		SessionToken:      "",
		LocalUser:         "local@dev.lome-chat.com",
		ListenAddr:        server.DefaultAddr,
		SessionSecret:     "$LOME_SESSION_SECRET",
		SessionTTL:        "168h",
		DataDir:           dataDir,
		StoreDriver:       store.DriverFile,
		CatalogFile:       "",
		DedupeWindow:      "",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// SetDefaults registers the defaults of NewDefaultConfig on v
func SetDefaults(v *viper.Viper, dataDir string) {
	d := NewDefaultConfig(dataDir)
	v.SetDefault("model", d.Model)
	v.SetDefault("openrouter_base_url", d.OpenRouterBaseURL)
	v.SetDefault("openrouter_token", d.OpenRouterToken)
	v.SetDefault("server_url", d.ServerURL)
	v.SetDefault("session_token", d.SessionToken)
	v.SetDefault("local_user", d.LocalUser)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("session_secret", d.SessionSecret)
	v.SetDefault("session_ttl", d.SessionTTL)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("store_driver", d.StoreDriver)
	v.SetDefault("catalog_file", d.CatalogFile)
	v.SetDefault("dedupe_window", d.DedupeWindow)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom loads configuration from v, expanding $VAR references in
// tokens and secrets and resolving relative paths against the config file
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for _, field := range []*string{
		&config.OpenRouterToken,
		&config.OpenRouterBaseURL,
		&config.SessionToken,
		&config.SessionSecret,
		&config.ServerURL,
		&config.DataDir,
		&config.CatalogFile,
	} {
		*field = expandEnvVar(*field)
	}

	if config.DataDir != "" {
		absPath, err := ResolvePath(v, config.DataDir)
		if err != nil {
			return nil, fmt.Errorf("error resolving data directory path '%s': %w", config.DataDir, err)
		}
		config.DataDir = absPath
	}
	if config.CatalogFile != "" {
		absPath, err := ResolvePath(v, config.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("error resolving catalog file path '%s': %w", config.CatalogFile, err)
		}
		config.CatalogFile = absPath
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.Model != "" {
		if _, _, err := lome.ParseModelString(c.Model); err != nil {
			return fmt.Errorf("invalid model: %w", err)
		}
	}
	switch c.StoreDriver {
	case "", store.DriverFile, store.DriverSQLite:
	default:
		return fmt.Errorf("unsupported store_driver: %s (supported: %s, %s)", c.StoreDriver, store.DriverFile, store.DriverSQLite)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log_format: %s (supported: text, json)", c.LogFormat)
	}
	if _, err := c.SessionTTLDuration(); err != nil {
		return err
	}
	if _, err := c.DedupeWindowDuration(); err != nil {
		return err
	}
	return nil
}
