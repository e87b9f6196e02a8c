package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/sigilgate/internal/classify"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// defaultConnector is the connector commands reattach through when none is given.
const defaultConnector = "metamask"

// connectCmd connects a signing agent through a connector.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectCmd = &cobra.Command{
	Use:   "connect <connector>",
	Short: "Connect a signing agent",
	Long: `Connect the signing agent behind a connector and steer it to the
required network.

The agent may show a prompt. Once connected the session is reloaded and
the sign-in obligations of the connected network are listed.

Example:
  sigilgate connect metamask
  sigilgate connect coinbase -o json`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeConnectors,
	RunE:              runConnect,
}

// disconnectCmd drops the session.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the signing agent",
	Long: `Revoke this client's account permission and forget the sign-in
proofs of the connected network.

Example:
  sigilgate disconnect
  sigilgate disconnect --connector coinbase`,
	Args: cobra.NoArgs,
	RunE: runDisconnect,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var disconnectConnector string

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)

	disconnectCmd.Flags().StringVarP(&disconnectConnector, "connector", "c", defaultConnector, "connector the agent was connected with")
	_ = disconnectCmd.RegisterFlagCompletionFunc("connector", completeConnectors)
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx, cancel := agentContext(cmd)
	defer cancel()

	cc := commandContext(cmd)
	c, err := openCore(cc)
	if err != nil {
		return err
	}
	defer c.close()

	// the proofs of the network the agent is on are dropped by the connect
	if _, err := c.resume(ctx, args[0]); err != nil {
		cc.Logger.Debug("connect: resuming %s: %v", args[0], err)
	}

	c.follow(ctx)
	c.orch.RefreshAvailability(ctx)

	if err := c.orch.Connect(ctx, args[0]); err != nil {
		return connectError(err)
	}

	st, err := c.settleSession(ctx, args[0], cc.Config.Session.ConnectReloadDelay)
	if err != nil {
		return err
	}
	return printState(cc, st)
}

func runDisconnect(cmd *cobra.Command, _ []string) error {
	ctx, cancel := agentContext(cmd)
	defer cancel()

	cc := commandContext(cmd)
	c, err := openCore(cc)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.resume(ctx, disconnectConnector); err != nil {
		// nothing to revoke; the local session is still dropped
		cc.Logger.Debug("disconnect: resuming %s: %v", disconnectConnector, err)
	}

	if err := c.orch.Disconnect(ctx); err != nil {
		return err
	}

	st, err := c.settleSession(ctx, disconnectConnector, cc.Config.Session.DisconnectReloadDelay)
	if err != nil {
		return err
	}
	return printState(cc, st)
}

// connectError gives raw agent failures the code of their failure class.
func connectError(err error) error {
	var ge *gateerr.GateError
	if gateerr.As(err, &ge) {
		return err
	}
	return gateerr.WithCause(classify.Classify(err).Sentinel(), err)
}
