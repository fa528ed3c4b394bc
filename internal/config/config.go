// ABOUTME: Configuration loading and parsing for talkai-gateway
// ABOUTME: Supports YAML or TOML files with env var expansion, duration parsing, and env fallbacks

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty.
const (
	DefaultHTTPAddr       = "0.0.0.0:3000"
	DefaultWSPath         = "/api/v1/talkAi"
	DefaultModelProvider  = "gemini"
	DefaultModelName      = "gemini-2.0-flash"
	DefaultSendBuffer     = 32
	DefaultWriteTimeout   = 10 * time.Second
	DefaultInboundQueue   = 8
	DefaultApprovalWait   = 5 * time.Minute
	DefaultDocumentsPath  = "data/documents"
	DefaultDatabasesPath  = "data/sqlite"
	DefaultSearchURL      = "https://lite.duckduckgo.com/lite/?q="
	DefaultFetchCommand   = "curl"
	DefaultCommandTimeout = 20 * time.Second
	DefaultMaxOutputBytes = 16 * 1024
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "TALKAI_CONFIG"

// Config represents the complete talkai-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Model     ModelConfig     `yaml:"model" toml:"model"`
	Sessions  SessionsConfig  `yaml:"sessions" toml:"sessions"`
	Approvals ApprovalsConfig `yaml:"approvals" toml:"approvals"`
	Tools     ToolsConfig     `yaml:"tools" toml:"tools"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP listener and WebSocket route
type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr" toml:"http_addr"`
	WSPath         string   `yaml:"ws_path" toml:"ws_path"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"` // host patterns; empty allows same-origin only
}

// ModelConfig selects the language model
type ModelConfig struct {
	Provider    string   `yaml:"provider" toml:"provider"`
	Name        string   `yaml:"name" toml:"name"`
	APIKey      string   `yaml:"api_key" toml:"api_key"`
	Temperature *float64 `yaml:"temperature" toml:"temperature"`
}

// SessionsConfig holds per-connection limits
type SessionsConfig struct {
	SendBuffer     int    `yaml:"send_buffer" toml:"send_buffer"`
	InboundQueue   int    `yaml:"inbound_queue" toml:"inbound_queue"`
	MaxReplayTurns int    `yaml:"max_replay_turns" toml:"max_replay_turns"` // 0 replays everything
	GreetingPrompt string `yaml:"greeting_prompt" toml:"greeting_prompt"`

	WriteTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	WriteTimeoutRaw string `yaml:"write_timeout" toml:"write_timeout"`
}

// ApprovalsConfig holds approval gate settings
type ApprovalsConfig struct {
	Timeout time.Duration `yaml:"-" toml:"-"` // 0 waits forever

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// ToolsConfig holds tool backends and limits
type ToolsConfig struct {
	DocumentsPath   string   `yaml:"documents_path" toml:"documents_path"`
	DatabasesPath   string   `yaml:"databases_path" toml:"databases_path"`
	SearchURL       string   `yaml:"search_url" toml:"search_url"`
	FetchCommand    string   `yaml:"fetch_command" toml:"fetch_command"`
	AllowedCommands []string `yaml:"allowed_commands" toml:"allowed_commands"` // defaults to the fetch command
	MaxOutputBytes  int      `yaml:"max_output_bytes" toml:"max_output_bytes"`

	CommandTimeout time.Duration `yaml:"-" toml:"-"`

	CommandTimeoutRaw string `yaml:"command_timeout" toml:"command_timeout"`
}

// DatabaseConfig holds the approval audit database location
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"` // empty disables the audit ledger
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration built from defaults and environment fallbacks.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path if it exists, otherwise returns Default().
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default()
	}
	return Load(path)
}

// ResolvePath picks the config file path: the flag value, then
// $TALKAI_CONFIG, then $XDG_CONFIG_HOME/talkai/gateway.yaml.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "talkai", "gateway.yaml")
}

func (c *Config) finish() error {
	applyEnvFallbacks(c)
	applyDefaults(c)

	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnvFallbacks fills fields left empty from the conventional environment
// variables: PORT (or port), DOCUMENTS_PATH, SQLITE_DB_PATH, GOOGLE_API_KEY.
func applyEnvFallbacks(c *Config) {
	if c.Server.HTTPAddr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = os.Getenv("port")
		}
		if port != "" {
			c.Server.HTTPAddr = "0.0.0.0:" + port
		}
	}
	if c.Tools.DocumentsPath == "" {
		c.Tools.DocumentsPath = os.Getenv("DOCUMENTS_PATH")
	}
	if c.Tools.DatabasesPath == "" {
		c.Tools.DatabasesPath = os.Getenv("SQLITE_DB_PATH")
	}
	if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
}

func applyDefaults(c *Config) {
	setDefault(&c.Server.HTTPAddr, DefaultHTTPAddr)
	setDefault(&c.Server.WSPath, DefaultWSPath)

	setDefault(&c.Model.Provider, DefaultModelProvider)
	setDefault(&c.Model.Name, DefaultModelName)

	if c.Sessions.SendBuffer == 0 {
		c.Sessions.SendBuffer = DefaultSendBuffer
	}
	if c.Sessions.InboundQueue == 0 {
		c.Sessions.InboundQueue = DefaultInboundQueue
	}
	setDefault(&c.Sessions.WriteTimeoutRaw, DefaultWriteTimeout.String())
	setDefault(&c.Approvals.TimeoutRaw, DefaultApprovalWait.String())

	setDefault(&c.Tools.DocumentsPath, DefaultDocumentsPath)
	setDefault(&c.Tools.DatabasesPath, DefaultDatabasesPath)
	setDefault(&c.Tools.SearchURL, DefaultSearchURL)
	setDefault(&c.Tools.FetchCommand, DefaultFetchCommand)
	if len(c.Tools.AllowedCommands) == 0 {
		c.Tools.AllowedCommands = []string{c.Tools.FetchCommand}
	}
	if c.Tools.MaxOutputBytes == 0 {
		c.Tools.MaxOutputBytes = DefaultMaxOutputBytes
	}
	setDefault(&c.Tools.CommandTimeoutRaw, DefaultCommandTimeout.String())

	setDefault(&c.Logging.Level, DefaultLogLevel)
	setDefault(&c.Logging.Format, DefaultLogFormat)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path must start with '/'")
	}
	if c.Server.WSPath == "/health" || strings.HasPrefix(c.Server.WSPath, "/health/") {
		return fmt.Errorf("server.ws_path must not shadow the health endpoints")
	}

	if c.Model.Provider != DefaultModelProvider {
		return fmt.Errorf("model.provider %q is not supported (only %q)", c.Model.Provider, DefaultModelProvider)
	}
	if t := c.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("model.temperature must be between 0 and 2")
	}

	if c.Sessions.SendBuffer < 0 {
		return fmt.Errorf("sessions.send_buffer must be positive")
	}
	if c.Sessions.InboundQueue < 0 {
		return fmt.Errorf("sessions.inbound_queue must be positive")
	}
	if c.Sessions.MaxReplayTurns < 0 {
		return fmt.Errorf("sessions.max_replay_turns must not be negative")
	}
	if c.Sessions.WriteTimeout < 0 || c.Approvals.Timeout < 0 || c.Tools.CommandTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}

	if c.Tools.MaxOutputBytes < 0 {
		return fmt.Errorf("tools.max_output_bytes must be positive")
	}
	if !strings.HasPrefix(c.Tools.SearchURL, "http://") && !strings.HasPrefix(c.Tools.SearchURL, "https://") {
		return fmt.Errorf("tools.search_url must be an http or https URL")
	}
	if strings.ContainsAny(c.Tools.FetchCommand, " \t") {
		return fmt.Errorf("tools.fetch_command must be a single executable")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\"")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Sessions.WriteTimeout, err = parseDuration("sessions.write_timeout", cfg.Sessions.WriteTimeoutRaw); err != nil {
		return err
	}
	if cfg.Approvals.Timeout, err = parseDuration("approvals.timeout", cfg.Approvals.TimeoutRaw); err != nil {
		return err
	}
	if cfg.Tools.CommandTimeout, err = parseDuration("tools.command_timeout", cfg.Tools.CommandTimeoutRaw); err != nil {
		return err
	}
	return nil
}

func parseDuration(name, raw string) (time.Duration, error) {
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", name, raw, err)
	}
	return d, nil
}
