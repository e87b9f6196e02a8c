package cli

import (
	"io"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/config"
	"github.com/mrz1836/sigilgate/internal/output"
)

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config    *config.Config
	Logger    LogWriter
	Formatter *output.Formatter
	Clock     clock.Clock
	// Source overrides endpoint discovery.
	Source agent.HandleSource
	// Alerts receives blocking user alerts.
	Alerts io.Writer
}

// NewCommandContext creates a context with the given dependencies.
func NewCommandContext(
	cfg *config.Config,
	logger LogWriter,
	formatter *output.Formatter,
) *CommandContext {
	return &CommandContext{
		Config:    cfg,
		Logger:    logger,
		Formatter: formatter,
		Clock:     clock.New(),
		Alerts:    os.Stderr,
	}
}

// WithSource sets the agent handle source.
func (c *CommandContext) WithSource(s agent.HandleSource) *CommandContext {
	c.Source = s
	return c
}

// WithClock sets the clock driving probe polls and invalidations.
func (c *CommandContext) WithClock(clk clock.Clock) *CommandContext {
	c.Clock = clk
	return c
}

// WithAlerts sets where alerts are written.
func (c *CommandContext) WithAlerts(w io.Writer) *CommandContext {
	c.Alerts = w
	return c
}

// commandContext returns the global context bound to the command's streams.
func commandContext(cmd *cobra.Command) *CommandContext {
	cc := *cmdCtx
	cc.Formatter = output.NewFormatter(cmdCtx.Formatter.Format(), cmd.OutOrStdout(), cmdCtx.Formatter.Palette())
	cc.Alerts = cmd.ErrOrStderr()
	return &cc
}
