package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/sigilgate/internal/config"
	"github.com/mrz1836/sigilgate/internal/output"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify sigilgate configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.sigilgate/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.

Example:
  sigilgate config init
  sigilgate config init --force`,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the current configuration settings, including environment
overrides.

Example:
  sigilgate config show
  sigilgate config show -o json`,
	RunE: runConfigShow,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its path.

The path uses dot notation to navigate the configuration tree.

Examples:
  sigilgate config get required_chain_id
  sigilgate config get auth.store
  sigilgate config get session.connect_reload_delay`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value by its path.

The path uses dot notation to navigate the configuration tree.
The configuration file will be updated immediately.

Examples:
  sigilgate config set required_chain_id 23294
  sigilgate config set auth.store sqlite
  sigilgate config set logging.level debug`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return gateerr.WithSuggestion(
			gateerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home

	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - agent.endpoints: Where the signing agent bridge listens")
	outln(w, "  - required_chain_id: The network every session is steered to")
	outln(w, "  - auth.store: Where sign-in proofs are kept (memory/file/sqlite)")
	outln(w, "  - logging.level: Log level (off/error/debug)")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	return showConfig(cmd.OutOrStdout(), formatter, cfg)
}

// showConfig writes c in the format fp asks for.
func showConfig(w io.Writer, fp FormatProvider, c *config.Config) error {
	if fp.Format() == output.FormatJSON {
		return displayConfigJSON(w, c)
	}
	return displayConfigText(w, c)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	path := args[0]

	value, err := getConfigValue(cfg, path)
	if err != nil {
		return gateerr.WithSuggestion(
			gateerr.ErrNotFound,
			fmt.Sprintf("configuration path '%s' not found", path),
		)
	}

	outln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := args[0]
	value := args[1]

	if _, err := getConfigValue(cfg, path); err != nil {
		return gateerr.WithSuggestion(
			gateerr.ErrNotFound,
			fmt.Sprintf("configuration path '%s' not found", path),
		)
	}

	// Environment overrides must not leak into the file
	configPath := config.Path(cfg.Home)
	currentCfg, err := config.Load(configPath)
	if err != nil {
		currentCfg = config.Defaults()
		currentCfg.Home = cfg.Home
	}

	if err := setConfigValue(currentCfg, path, value); err != nil {
		return err
	}
	if err := currentCfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := config.Save(currentCfg, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out(cmd.OutOrStdout(), "Set %s = %s\n", path, value)
	return nil
}

// configField is one scalar setting addressable by a dot path.
type configField struct {
	get func(c *config.Config) string
	set func(c *config.Config, value string) error
}

// configFields lists the settable paths.
//
//nolint:gochecknoglobals // static lookup table
var configFields = map[string]configField{
	"home": {
		get: func(c *config.Config) string { return c.Home },
		set: func(c *config.Config, v string) error { c.Home = v; return nil },
	},
	"required_chain_id": {
		get: func(c *config.Config) string { return strconv.FormatUint(c.RequiredChainID, 10) },
		set: func(c *config.Config, v string) error {
			id, err := parseChainID(v)
			if err != nil {
				return err
			}
			c.RequiredChainID = id
			return nil
		},
	},
	"output.default_format": {
		get: func(c *config.Config) string { return c.Output.DefaultFormat },
		set: oneOf(func(c *config.Config) *string { return &c.Output.DefaultFormat }, "text", "json", "auto"),
	},
	"output.color": {
		get: func(c *config.Config) string { return c.Output.Color },
		set: oneOf(func(c *config.Config) *string { return &c.Output.Color }, "auto", "always", "never"),
	},
	"output.verbose": {
		get: func(c *config.Config) string { return strconv.FormatBool(c.Output.Verbose) },
		set: func(c *config.Config, v string) error { c.Output.Verbose = v == "true"; return nil },
	},
	"logging.level": {
		get: func(c *config.Config) string { return c.Logging.Level },
		set: oneOf(func(c *config.Config) *string { return &c.Logging.Level }, "off", "error", "debug"),
	},
	"logging.file": {
		get: func(c *config.Config) string { return c.Logging.File },
		set: func(c *config.Config, v string) error { c.Logging.File = v; return nil },
	},
	"auth.store": {
		get: func(c *config.Config) string { return c.Auth.Store },
		set: oneOf(func(c *config.Config) *string { return &c.Auth.Store }, "memory", "file", "sqlite"),
	},
	"auth.path": {
		get: func(c *config.Config) string { return c.Auth.Path },
		set: func(c *config.Config, v string) error { c.Auth.Path = v; return nil },
	},
	"auth.proof_ttl": {
		get: func(c *config.Config) string { return c.Auth.ProofTTL.String() },
		set: duration(func(c *config.Config) *time.Duration { return &c.Auth.ProofTTL }),
	},
	"agent.request_timeout": {
		get: func(c *config.Config) string { return c.Agent.RequestTimeout.String() },
		set: duration(func(c *config.Config) *time.Duration { return &c.Agent.RequestTimeout }),
	},
	"probe.settle_delay": {
		get: func(c *config.Config) string { return c.Probe.SettleDelay.String() },
		set: duration(func(c *config.Config) *time.Duration { return &c.Probe.SettleDelay }),
	},
	"probe.poll_interval": {
		get: func(c *config.Config) string { return c.Probe.PollInterval.String() },
		set: duration(func(c *config.Config) *time.Duration { return &c.Probe.PollInterval }),
	},
	"session.connect_reload_delay": {
		get: func(c *config.Config) string { return c.Session.ConnectReloadDelay.String() },
		set: duration(func(c *config.Config) *time.Duration { return &c.Session.ConnectReloadDelay }),
	},
	"session.disconnect_reload_delay": {
		get: func(c *config.Config) string { return c.Session.DisconnectReloadDelay.String() },
		set: duration(func(c *config.Config) *time.Duration { return &c.Session.DisconnectReloadDelay }),
	},
}

func oneOf(field func(*config.Config) *string, valid ...string) func(*config.Config, string) error {
	return func(c *config.Config, value string) error {
		for _, v := range valid {
			if value == v {
				*field(c) = value
				return nil
			}
		}
		return gateerr.WithDetails(
			gateerr.ErrInvalidInput,
			map[string]string{"value": value, "valid": strings.Join(valid, ", ")},
		)
	}
}

func duration(field func(*config.Config) *time.Duration) func(*config.Config, string) error {
	return func(c *config.Config, value string) error {
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return gateerr.WithDetails(
				gateerr.ErrInvalidInput,
				map[string]string{"value": value, "valid": "a duration such as 500ms or 24h"},
			)
		}
		*field(c) = d
		return nil
	}
}

// getConfigValue retrieves a value from the config using dot notation.
func getConfigValue(c *config.Config, path string) (string, error) {
	f, ok := configFields[path]
	if !ok {
		return "", gateerr.WithDetails(gateerr.ErrNotFound, map[string]string{"path": path})
	}
	return f.get(c), nil
}

// setConfigValue sets a value in the config using dot notation.
func setConfigValue(c *config.Config, path, value string) error {
	f, ok := configFields[path]
	if !ok {
		return gateerr.WithDetails(gateerr.ErrNotFound, map[string]string{"path": path})
	}
	return f.set(c, value)
}

// displayConfigText shows the config in text format.
func displayConfigText(w io.Writer, c *config.Config) error {
	outln(w, "Configuration:")
	outln(w)
	out(w, "  Home: %s\n", c.Home)
	out(w, "  Required chain: %d\n", c.RequiredChainID)
	outln(w)
	outln(w, "  Agent:")
	for _, ep := range c.Agent.Endpoints {
		out(w, "    %s: %s\n", ep.Name, ep.URL)
	}
	out(w, "    request_timeout: %s\n", c.Agent.RequestTimeout)
	outln(w)
	outln(w, "  Connectors:")
	for _, cc := range c.Connectors {
		out(w, "    %s: %s (%s)\n", cc.ID, cc.Name, cc.Kind)
	}
	outln(w)
	outln(w, "  Auth:")
	out(w, "    store: %s\n", c.Auth.Store)
	out(w, "    path: %s\n", c.Auth.Path)
	out(w, "    proof_ttl: %s\n", c.Auth.ProofTTL)
	outln(w)
	outln(w, "  Session:")
	out(w, "    connect_reload_delay: %s\n", c.Session.ConnectReloadDelay)
	out(w, "    disconnect_reload_delay: %s\n", c.Session.DisconnectReloadDelay)
	outln(w)
	outln(w, "  Output:")
	out(w, "    default_format: %s\n", c.Output.DefaultFormat)
	out(w, "    verbose: %t\n", c.Output.Verbose)
	out(w, "    color: %s\n", c.Output.Color)
	outln(w)
	outln(w, "  Logging:")
	out(w, "    level: %s\n", c.Logging.Level)
	out(w, "    file: %s\n", c.Logging.File)

	return nil
}

// displayConfigJSON shows the config in JSON format.
func displayConfigJSON(w io.Writer, c *config.Config) error {
	type endpointJSON struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	type configJSON struct {
		Version         int            `json:"version"`
		Home            string         `json:"home"`
		RequiredChainID uint64         `json:"required_chain_id"`
		Endpoints       []endpointJSON `json:"agent_endpoints"`
		Connectors      []string       `json:"connectors"`
		Auth            struct {
			Store    string `json:"store"`
			Path     string `json:"path"`
			ProofTTL string `json:"proof_ttl"`
		} `json:"auth"`
		Session struct {
			ConnectReloadDelay    string `json:"connect_reload_delay"`
			DisconnectReloadDelay string `json:"disconnect_reload_delay"`
		} `json:"session"`
		Output struct {
			DefaultFormat string `json:"default_format"`
			Color         string `json:"color"`
			Verbose       bool   `json:"verbose"`
		} `json:"output"`
		Logging struct {
			Level string `json:"level"`
			File  string `json:"file"`
		} `json:"logging"`
	}

	outCfg := configJSON{
		Version:         c.Version,
		Home:            c.Home,
		RequiredChainID: c.RequiredChainID,
	}
	for _, ep := range c.Agent.Endpoints {
		outCfg.Endpoints = append(outCfg.Endpoints, endpointJSON{Name: ep.Name, URL: ep.URL})
	}
	for _, cc := range c.Connectors {
		outCfg.Connectors = append(outCfg.Connectors, cc.ID)
	}
	outCfg.Auth.Store = c.Auth.Store
	outCfg.Auth.Path = c.Auth.Path
	outCfg.Auth.ProofTTL = c.Auth.ProofTTL.String()
	outCfg.Session.ConnectReloadDelay = c.Session.ConnectReloadDelay.String()
	outCfg.Session.DisconnectReloadDelay = c.Session.DisconnectReloadDelay.String()
	outCfg.Output.DefaultFormat = c.Output.DefaultFormat
	outCfg.Output.Color = c.Output.Color
	outCfg.Output.Verbose = c.Output.Verbose
	outCfg.Logging.Level = c.Logging.Level
	outCfg.Logging.File = c.Logging.File

	return writeJSON(w, outCfg)
}
