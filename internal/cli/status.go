package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/sigilgate/internal/chain"
	"github.com/mrz1836/sigilgate/internal/metrics"
	"github.com/mrz1836/sigilgate/internal/output"
	"github.com/mrz1836/sigilgate/internal/session"
)

// statusCmd shows the session as the agent reports it.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the connected account, network and sign-in state",
	Long: `Reattach to the signing agent without prompting and show the session:
the connected account and network, and which protected domains still need
a sign-in on that network.

Example:
  sigilgate status
  sigilgate status --connector coinbase -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// watchCmd follows the agent until interrupted.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow account and network changes of the agent",
	Long: `Follow the signing agent until interrupted. Account and network
changes are applied as they happen: the agent is steered back to the
required network once, and sign-in obligations are re-evaluated.

Agents reached over a websocket push changes; others are polled.

Example:
  sigilgate watch
  sigilgate watch --interval 5s`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	statusConnector string
	watchInterval   time.Duration
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)

	for _, cmd := range []*cobra.Command{statusCmd, watchCmd} {
		cmd.Flags().StringVarP(&statusConnector, "connector", "c", defaultConnector, "connector the agent was connected with")
		_ = cmd.RegisterFlagCompletionFunc("connector", completeConnectors)
	}
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "poll interval for agents that do not push changes")
}

// stateView is the session as shown to the user.
type stateView struct {
	SessionID string          `json:"session_id"`
	Phase     string          `json:"phase"`
	Failure   string          `json:"failure,omitempty"`
	Connector string          `json:"connector,omitempty"`
	Status    string          `json:"status"`
	Address   string          `json:"address,omitempty"`
	ChainID   uint64          `json:"chain_id,omitempty"`
	Network   string          `json:"network,omitempty"`
	Required  bool            `json:"on_required_network"`
	SignIn    map[string]bool `json:"sign_in_required,omitempty"`

	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
}

func newStateView(required uint64, registry *chain.Registry, st session.State) stateView {
	v := stateView{
		SessionID: st.ID,
		Phase:     st.Phase.String(),
		Failure:   st.FailureReason,
		Connector: st.ConnectorID,
		Status:    st.Account.Status.String(),
	}
	if st.Account.HasAddress() {
		v.Address = st.Account.Address.Hex()
	}
	if st.Account.ChainID != 0 {
		v.ChainID = st.Account.ChainID
		v.Required = st.Account.ChainID == required
		if d, err := registry.Lookup(st.Account.ChainID); err == nil {
			v.Network = d.Name
		}
	}
	if st.Account.Connected() {
		v.SignIn = make(map[string]bool, len(session.Domains()))
		for _, d := range session.Domains() {
			v.SignIn[d.String()] = st.NeedsSignIn(d, st.Account.ChainID)
		}
	}
	return v
}

// printState writes the session in the command's output format.
func printState(cc *CommandContext, st session.State) error {
	registry, err := chain.FromConfig(cc.Config)
	if err != nil {
		return err
	}
	v := newStateView(registry.Required().ChainID, registry, st)
	if cc.Config.Output.Verbose {
		snap := metrics.Global.Snapshot()
		v.Metrics = &snap
	}

	if cc.Formatter.IsJSON() {
		return cc.Formatter.Print(v)
	}

	palette := cc.Formatter.Palette()
	table := output.NewTable("FIELD", "VALUE")
	table.SetNoHeader(true)
	table.SetSeparator("  ")
	table.AddRow("Session", palette.Muted(v.SessionID))
	table.AddRow("Phase", palette.Phase(v.Phase))
	if v.Failure != "" {
		table.AddRow("Failure", v.Failure)
	}
	table.AddRow("Account", v.Status)
	if v.Address != "" {
		table.AddRow("Address", v.Address)
	}
	if v.ChainID != 0 {
		network := strconv.FormatUint(v.ChainID, 10)
		if v.Network != "" {
			network += " (" + v.Network + ")"
		}
		if !v.Required {
			network += " " + palette.Phase("failed")
		}
		table.AddRow("Network", network)
	}
	for _, d := range session.Domains() {
		if needed, ok := v.SignIn[d.String()]; ok {
			table.AddRow(d.String(), palette.SignIn(needed))
		}
	}
	if m := v.Metrics; m != nil {
		table.AddRow("Agent calls", fmt.Sprintf("%d (%d errors, %.1fms avg)",
			m.AgentCallsTotal, m.AgentErrorsTotal, metrics.Global.AgentLatencyAvgMs()))
		table.AddRow("Switches", strconv.FormatInt(m.ChainSwitches, 10))
		table.AddRow("Invalidations", strconv.FormatInt(m.Invalidations, 10))
	}
	return cc.Formatter.Print(table)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, cancel := agentContext(cmd)
	defer cancel()

	cc := commandContext(cmd)
	c, err := openCore(cc)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.resume(ctx, statusConnector); err != nil {
		return err
	}
	return printState(cc, c.store.Snapshot())
}

func runWatch(cmd *cobra.Command, _ []string) error {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cc := commandContext(cmd)
	c, err := openCore(cc)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.resume(ctx, statusConnector); err != nil {
		return err
	}
	if err := printState(cc, c.store.Snapshot()); err != nil {
		return err
	}

	w := cc.Formatter.Writer()
	var (
		mu   sync.Mutex
		last = c.store.Snapshot().Account
	)
	c.store.Subscribe(func(st session.State) {
		mu.Lock()
		defer mu.Unlock()
		if st.Account == last {
			return
		}
		last = st.Account
		if st.Account.Connected() {
			output.Infof(w, "account %s on chain %d", st.Account.Address.Hex(), st.Account.ChainID)
			return
		}
		output.Infof(w, "account %s", st.Account.Status)
	})
	c.follow(ctx)

	go func() {
		for {
			inv, ok := c.awaitInvalidation(ctx, time.Hour)
			if ctx.Err() != nil {
				return
			}
			if ok {
				output.Infof(w, "session %s replaced by %s (%s)", inv.Previous, inv.SessionID, inv.Reason)
			}
		}
	}()

	return c.wallet.Watch(ctx, cc.Clock, watchInterval)
}
