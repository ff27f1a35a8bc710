package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultModel       = "claude-sonnet-4-5-thinking"
	defaultMode        = "copilot"
	defaultSearchFocus = "internet"

	defaultStreamTimeoutMinutes = 30

	mcpTransportStdio = "stdio"
	mcpTransportHTTP  = "http"
)

// Config represents the application configuration parsed from YAML, with
// session credentials overlaid from the environment.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Models   ModelsConfig   `yaml:"models"`
	MCP      MCPConfig      `yaml:"mcp"`
}

// ServerConfig defines the REST listener.
type ServerConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// AuthEnabled reports whether API-key authentication applies.
func (s ServerConfig) AuthEnabled() bool {
	return s.APIKey != ""
}

// UpstreamConfig captures the upstream endpoint and session credentials.
// Credentials are never read from the YAML file, only from the environment.
type UpstreamConfig struct {
	BaseURL              string `yaml:"base_url"`
	StreamTimeoutMinutes int    `yaml:"stream_timeout_minutes"`
	SessionToken         string `yaml:"-"`
	CFClearance          string `yaml:"-"`
	VisitorID            string `yaml:"-"`
	SessionID            string `yaml:"-"`
	CFBotManagement      string `yaml:"-"`
}

// StreamTimeout returns the upstream read bound as a duration.
func (u UpstreamConfig) StreamTimeout() time.Duration {
	return time.Duration(u.StreamTimeoutMinutes) * time.Minute
}

// DefaultsConfig holds the fallback query settings used when a request does
// not pin them explicitly.
type DefaultsConfig struct {
	Model       string `yaml:"model"`
	Mode        string `yaml:"mode"`
	SearchFocus string `yaml:"search_focus"`
}

// ModelsConfig controls model-name resolution policy.
type ModelsConfig struct {
	// Strict rejects unknown model names instead of falling back to the
	// default model.
	Strict bool `yaml:"strict"`
}

// MCPConfig selects the MCP transport and, for HTTP, its listener.
type MCPConfig struct {
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	// Mount serves the MCP streamable HTTP handler at /mcp inside the REST
	// server instead of a separate listener.
	Mount bool `yaml:"mount"`
}

// Load reads YAML configuration from disk, overlays environment values and
// validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a configuration purely from environment variables and
// built-in defaults. Used by the MCP stdio command, which has no config file.
func FromEnv() (Config, error) {
	var cfg Config
	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8045
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://www.perplexity.ai"
	}
	if c.Upstream.StreamTimeoutMinutes == 0 {
		c.Upstream.StreamTimeoutMinutes = defaultStreamTimeoutMinutes
	}
	if c.Defaults.Model == "" {
		c.Defaults.Model = defaultModel
	}
	if c.Defaults.Mode == "" {
		c.Defaults.Mode = defaultMode
	}
	if c.Defaults.SearchFocus == "" {
		c.Defaults.SearchFocus = defaultSearchFocus
	}
	if c.MCP.Transport == "" {
		c.MCP.Transport = mcpTransportStdio
	}
	if c.MCP.Host == "" {
		c.MCP.Host = "127.0.0.1"
	}
	if c.MCP.Port == 0 {
		c.MCP.Port = 8000
	}
}

func (c *Config) applyEnv() {
	c.Upstream.SessionToken = os.Getenv("PERPLEXITY_SESSION_TOKEN")
	c.Upstream.CFClearance = os.Getenv("PERPLEXITY_CF_CLEARANCE")
	c.Upstream.VisitorID = os.Getenv("PERPLEXITY_VISITOR_ID")
	c.Upstream.SessionID = os.Getenv("PERPLEXITY_SESSION_ID")
	c.Upstream.CFBotManagement = os.Getenv("PERPLEXITY_CF_BM")

	if key := os.Getenv("API_KEY"); key != "" {
		c.Server.APIKey = key
	}
	if model := os.Getenv("DEFAULT_MODEL"); model != "" {
		c.Defaults.Model = model
	}
	if mode := os.Getenv("DEFAULT_MODE"); mode != "" {
		c.Defaults.Mode = mode
	}
	if focus := os.Getenv("DEFAULT_SEARCH_FOCUS"); focus != "" {
		c.Defaults.SearchFocus = focus
	}
	if transport := os.Getenv("MCP_TRANSPORT_MODE"); transport != "" {
		c.MCP.Transport = transport
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		return fmt.Errorf("upstream.base_url must be provided")
	}
	if c.Upstream.StreamTimeoutMinutes <= 0 {
		return fmt.Errorf("upstream.stream_timeout_minutes must be positive, got %d", c.Upstream.StreamTimeoutMinutes)
	}
	if strings.TrimSpace(c.Defaults.Model) == "" {
		return fmt.Errorf("defaults.model must be provided")
	}

	switch c.MCP.Transport {
	case mcpTransportStdio, mcpTransportHTTP:
	default:
		return fmt.Errorf("mcp.transport %q must be one of %q or %q", c.MCP.Transport, mcpTransportStdio, mcpTransportHTTP)
	}
	if c.MCP.Transport == mcpTransportHTTP && !c.MCP.Mount {
		if c.MCP.Port <= 0 || c.MCP.Port > 65535 {
			return fmt.Errorf("mcp.port must be a valid TCP port, got %d", c.MCP.Port)
		}
	}

	return c.Upstream.ValidateCredentials()
}

// ValidateCredentials checks that the required upstream session tokens are
// present. Split out so it can be re-checked at client construction.
func (u UpstreamConfig) ValidateCredentials() error {
	missing := make([]string, 0, 3)
	if u.SessionToken == "" {
		missing = append(missing, "PERPLEXITY_SESSION_TOKEN")
	}
	if u.CFClearance == "" {
		missing = append(missing, "PERPLEXITY_CF_CLEARANCE")
	}
	if u.VisitorID == "" {
		missing = append(missing, "PERPLEXITY_VISITOR_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
