package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// agentGrace covers probing and the wait for a pending invalidation on top
// of a single agent request.
const agentGrace = 30 * time.Second

// contextWithTimeout returns a timeout context rooted in the command context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, d)
}

// agentContext bounds a command that talks to the signing agent.
func agentContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return contextWithTimeout(cmd, cfg.Agent.RequestTimeout+agentGrace)
}
