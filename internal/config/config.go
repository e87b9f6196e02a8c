// Package config provides configuration management for sigilgate.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version         int               `yaml:"version"`
	Home            string            `yaml:"home"`
	RequiredChainID uint64            `yaml:"required_chain_id"`
	Chains          []ChainConfig     `yaml:"chains"`
	Connectors      []ConnectorConfig `yaml:"connectors"`
	Agent           AgentConfig       `yaml:"agent"`
	Probe           ProbeConfig       `yaml:"probe"`
	Session         SessionConfig     `yaml:"session"`
	Auth            AuthConfig        `yaml:"auth"`
	Output          OutputConfig      `yaml:"output"`
	Logging         LoggingConfig     `yaml:"logging"`
}

// ChainConfig describes one network the agent can be asked to add or select.
type ChainConfig struct {
	ChainID        uint64         `yaml:"chain_id"`
	Name           string         `yaml:"name"`
	NativeCurrency CurrencyConfig `yaml:"native_currency"`
	RPCURLs        []string       `yaml:"rpc_urls"`
	ExplorerURLs   []string       `yaml:"explorer_urls"`
}

// CurrencyConfig describes a chain's native currency.
type CurrencyConfig struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

// ConnectorConfig is one entry of the connector catalog.
type ConnectorConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Marker string `yaml:"marker"`
}

// AgentConfig defines how the signing agent is reached.
type AgentConfig struct {
	Endpoints      []EndpointConfig `yaml:"endpoints"`
	RequestTimeout time.Duration    `yaml:"request_timeout"`
	RatePerSecond  float64          `yaml:"rate_per_second"`
	Burst          int              `yaml:"burst"`
}

// EndpointConfig is one co-installed agent endpoint (http(s) or ws(s)).
// Markers, when empty, are discovered from web3_clientVersion.
type EndpointConfig struct {
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	Markers []string `yaml:"markers,omitempty"`
}

// ProbeConfig defines availability probing timings.
type ProbeConfig struct {
	SettleDelay  time.Duration `yaml:"settle_delay"`
	MaxAttempts  int           `yaml:"max_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SessionConfig defines how long the core waits before telling the shell
// that dependent state must be re-fetched.
type SessionConfig struct {
	ConnectReloadDelay    time.Duration `yaml:"connect_reload_delay"`
	DisconnectReloadDelay time.Duration `yaml:"disconnect_reload_delay"`
}

// AuthConfig defines sign-in proof storage and the EIP-712 domains.
type AuthConfig struct {
	Store     string                  `yaml:"store"`
	Path      string                  `yaml:"path"`
	ProofTTL  time.Duration           `yaml:"proof_ttl"`
	Domains   map[string]DomainConfig `yaml:"domains"`
	Statement string                  `yaml:"statement"`
}

// DomainConfig is the EIP-712 domain for one protected feature domain.
type DomainConfig struct {
	Name              string `yaml:"name"`
	Version           string `yaml:"version"`
	VerifyingContract string `yaml:"verifying_contract"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file on top of Defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gateerr.WithDetails(gateerr.ErrConfigNotFound, map[string]string{"path": path})
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, gateerr.WithCause(gateerr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	invalid := func(reason string) error {
		return gateerr.WithDetails(gateerr.ErrConfigInvalid, map[string]string{"reason": reason})
	}

	if len(c.Chains) == 0 {
		return invalid("no chains configured")
	}
	if _, ok := c.Chain(c.RequiredChainID); !ok {
		return invalid(fmt.Sprintf("required chain %d is not in the chain list", c.RequiredChainID))
	}
	for _, ch := range c.Chains {
		if len(ch.RPCURLs) == 0 {
			return invalid(fmt.Sprintf("chain %d has no rpc urls", ch.ChainID))
		}
	}

	for _, ep := range c.Agent.Endpoints {
		u, err := url.Parse(ep.URL)
		if err != nil || u.Host == "" {
			return invalid(fmt.Sprintf("agent endpoint %q has invalid url %q", ep.Name, ep.URL))
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			return invalid(fmt.Sprintf("agent endpoint %q has unsupported scheme %q", ep.Name, u.Scheme))
		}
	}

	seen := make(map[string]bool, len(c.Connectors))
	for _, cc := range c.Connectors {
		if cc.ID == "" {
			return invalid("connector id is empty")
		}
		if seen[cc.ID] {
			return invalid(fmt.Sprintf("duplicate connector %q", cc.ID))
		}
		seen[cc.ID] = true

		switch strings.ToLower(cc.Kind) {
		case "injected", "coinbase", "other":
		default:
			return invalid(fmt.Sprintf("connector %q has unknown kind %q", cc.ID, cc.Kind))
		}
	}

	switch c.Auth.Store {
	case "memory", "file", "sqlite":
	default:
		return invalid(fmt.Sprintf("unknown auth store %q", c.Auth.Store))
	}

	return nil
}

// Chain returns the configured chain with the given id.
func (c *Config) Chain(id uint64) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.ChainID == id {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

// GetHome returns the sigilgate home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default sigilgate home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sigilgate"
	}
	return filepath.Join(home, ".sigilgate")
}

// ExpandHome expands a leading "~/" to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
