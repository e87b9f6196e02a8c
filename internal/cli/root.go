// Package cli implements the sigilgate command-line shell.
//
// The shell owns the decisions the connection core leaves to its caller:
// how alerts are shown and what re-fetching dependent state means after a
// session invalidation.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/sigilgate/internal/config"
	"github.com/mrz1836/sigilgate/internal/output"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	colorMode    string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
	cmdCtx    *CommandContext
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sigilgate",
	Short: "Connect a signing agent and keep it on the required network",
	Long: `sigilgate connects to a browser wallet or other signing agent, makes sure
it is on the required network and manages the per-network sign-in proofs
that gate protected actions.

Example:
  sigilgate connectors
  sigilgate connect metamask
  sigilgate sign trove
  sigilgate status`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initGlobals()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	walkCommands(rootCmd, enrichParentLong)

	err := rootCmd.Execute()
	if err != nil {
		var fp FormatProvider
		if formatter != nil {
			fp = formatter
		}
		_ = output.FormatError(os.Stderr, err, errorFormat(fp))
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return gateerr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals() error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(home))
	switch {
	case errors.Is(err, gateerr.ErrConfigNotFound):
		cfg = config.Defaults()
	case err != nil:
		return err
	}
	cfg.Home = home

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if cfg.Home != config.DefaultHome() && cfg.Auth.Path == config.Defaults().Auth.Path {
		cfg.Auth.Path = filepath.Join(cfg.Home, "signin.json")
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}
	if colorMode != "" && colorMode != "auto" {
		cfg.Output.Color = colorMode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger = openLogger(cfg, os.Stderr)

	explicitFormat := output.ParseFormat(cfg.GetOutputFormat())
	detectedFormat := output.DetectFormat(os.Stdout, explicitFormat)
	palette := output.NewPalette(detectedFormat == output.FormatText && output.ColorEnabled(cfg.Output.Color, os.Stdout))
	formatter = output.NewFormatter(detectedFormat, os.Stdout, palette)
	cmdCtx = NewCommandContext(cfg, logger, formatter)

	return nil
}

// errorFormat picks the format errors are rendered in. Errors raised before
// the globals exist are rendered as text.
func errorFormat(fp FormatProvider) output.Format {
	if fp == nil {
		return output.FormatText
	}
	return fp.Format()
}

// openLogger creates the logger described by cp. Verbose runs log to stderr;
// otherwise a relative log file lives under the home directory. A log file
// that cannot be opened disables logging.
func openLogger(cp ConfigProvider, stderr io.Writer) *config.Logger {
	level := config.ParseLogLevel(cp.GetLoggingLevel())
	if cp.IsVerbose() {
		return config.NewWriterLogger(level, stderr)
	}

	file := cp.GetLoggingFile()
	if file != "" && !filepath.IsAbs(file) && !strings.HasPrefix(file, "~/") {
		file = filepath.Join(cp.GetHome(), file)
	}
	l, err := config.NewLogger(level, file)
	if err != nil {
		return config.NullLogger()
	}
	return l
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the global logger.
func Logger() *config.Logger {
	return logger
}

// Formatter returns the global output formatter.
func Formatter() *output.Formatter {
	return formatter
}

// Context returns the global command context.
func Context() *CommandContext {
	return cmdCtx
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "sigilgate data directory (default: ~/.sigilgate)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "color text output: auto, always, never")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr at debug level")
}
