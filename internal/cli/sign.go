package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/sigilgate/internal/output"
	"github.com/mrz1836/sigilgate/internal/session"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// signCmd obtains a sign-in proof for a protected domain.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var signCmd = &cobra.Command{
	Use:   "sign <trove|debt_token>",
	Short: "Sign in to a protected domain on the connected network",
	Long: `Ask the connected agent for a typed-data signature that proves control
of the account for one protected domain on the connected network. The
proof is stored and reused until it expires, the account changes network
or the session is disconnected.

Example:
  sigilgate sign trove
  sigilgate sign debt_token --connector coinbase`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"trove", "debt_token"},
	RunE:      runSign,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var signConnector string

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVarP(&signConnector, "connector", "c", defaultConnector, "connector the agent was connected with")
	_ = signCmd.RegisterFlagCompletionFunc("connector", completeConnectors)
}

// signView is the outcome of a sign-in as shown to the user.
type signView struct {
	Domain    string    `json:"domain"`
	ChainID   uint64    `json:"chain_id"`
	Address   string    `json:"address"`
	Skipped   bool      `json:"skipped,omitempty"`
	Reused    bool      `json:"reused,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func runSign(cmd *cobra.Command, args []string) error {
	domain, err := session.ParseDomain(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := agentContext(cmd)
	defer cancel()

	cc := commandContext(cmd)
	c, err := openCore(cc)
	if err != nil {
		return err
	}
	defer c.close()

	acct, err := c.resume(ctx, signConnector)
	if err != nil {
		return err
	}
	if !acct.Connected() {
		return gateerr.WithSuggestion(gateerr.ErrNotConnected, "run 'sigilgate connect "+signConnector+"' first")
	}

	view := signView{Domain: domain.String(), ChainID: acct.ChainID, Address: acct.Address.Hex()}
	if !c.auth.NeedsSignIn(domain, acct.ChainID) {
		view.Reused = true
		return printSign(cc, view)
	}

	res, err := c.auth.Sign(ctx, domain)
	if err != nil {
		return err
	}
	view.Skipped = res.Skipped
	if res.Proof != nil {
		view.ExpiresAt = res.Proof.ExpiresAt
	}
	return printSign(cc, view)
}

func printSign(cc *CommandContext, v signView) error {
	if cc.Formatter.IsJSON() {
		return cc.Formatter.Print(v)
	}

	w := cc.Formatter.Writer()
	switch {
	case v.Reused:
		output.Infof(w, "Already signed in to %s on chain %d", v.Domain, v.ChainID)
	case v.Skipped:
		output.Infof(w, "A sign-in for %s is already in progress", v.Domain)
	default:
		output.Successf(w, "Signed in to %s on chain %d as %s", v.Domain, v.ChainID, v.Address)
		if !v.ExpiresAt.IsZero() {
			out(w, "  Proof expires %s\n", v.ExpiresAt.UTC().Format(time.RFC3339))
		}
	}
	return nil
}
