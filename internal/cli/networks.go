package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/mrz1836/sigilgate/internal/chain"
	"github.com/mrz1836/sigilgate/internal/output"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// networksCmd lists the configured networks.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List configured networks",
	Long: `List the networks the agent can be asked to add or select. The
required network is the one every session is steered to.

Example:
  sigilgate networks
  sigilgate networks -o json`,
	Args: cobra.NoArgs,
	RunE: runNetworks,
}

// switchNetworkCmd asks the agent to select a network.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var switchNetworkCmd = &cobra.Command{
	Use:   "switch-network <chain-id>",
	Short: "Ask the agent to select a network",
	Long: `Ask the connected agent to select a network. The chain id may be
decimal or 0x-prefixed hex.

Example:
  sigilgate switch-network 23294
  sigilgate switch-network 0x5aff`,
	Args: cobra.ExactArgs(1),
	RunE: runSwitchNetwork,
}

// addNetworkCmd asks the agent to register a network.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var addNetworkCmd = &cobra.Command{
	Use:   "add-network <chain-id>",
	Short: "Ask the agent to register a configured network",
	Long: `Ask the connected agent to register one of the configured networks.
A network the agent already knows is not an error.

Example:
  sigilgate add-network 23295`,
	Args: cobra.ExactArgs(1),
	RunE: runAddNetwork,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var networkConnector string

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(networksCmd)
	rootCmd.AddCommand(switchNetworkCmd)
	rootCmd.AddCommand(addNetworkCmd)

	for _, cmd := range []*cobra.Command{switchNetworkCmd, addNetworkCmd} {
		cmd.Flags().StringVarP(&networkConnector, "connector", "c", defaultConnector, "connector the agent was connected with")
		_ = cmd.RegisterFlagCompletionFunc("connector", completeConnectors)
	}
}

// networkView is one network as shown to the user.
type networkView struct {
	ChainID  uint64 `json:"chain_id"`
	HexID    string `json:"hex_id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Icon     string `json:"icon"`
	Required bool   `json:"required"`
}

func runNetworks(cmd *cobra.Command, _ []string) error {
	cc := commandContext(cmd)
	registry, err := chain.FromConfig(cc.Config)
	if err != nil {
		return err
	}
	required := registry.Required().ChainID

	views := make([]networkView, 0, len(registry.List()))
	for _, d := range registry.List() {
		views = append(views, networkView{
			ChainID:  d.ChainID,
			HexID:    d.HexID(),
			Name:     d.Name,
			Currency: d.NativeCurrency.Symbol,
			Icon:     string(d.Icon()),
			Required: d.ChainID == required,
		})
	}

	if cc.Formatter.IsJSON() {
		return cc.Formatter.Print(views)
	}

	palette := cc.Formatter.Palette()
	table := output.NewTable("CHAIN", "NAME", "CURRENCY", "ICON", "")
	for _, v := range views {
		mark := ""
		if v.Required {
			mark = palette.Bold("required")
		}
		table.AddRow(strconv.FormatUint(v.ChainID, 10), v.Name, v.Currency, v.Icon, mark)
	}
	return cc.Formatter.Print(table)
}

func runSwitchNetwork(cmd *cobra.Command, args []string) error {
	chainID, err := parseChainID(args[0])
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

	if _, err := c.resume(ctx, networkConnector); err != nil {
		return err
	}
	if err := c.orch.SwitchNetwork(ctx, chainID); err != nil {
		return err
	}

	if cc.Formatter.IsJSON() {
		return cc.Formatter.Print(map[string]uint64{"chain_id": chainID})
	}
	output.Successf(cc.Formatter.Writer(), "Agent switched to chain %d", chainID)
	return nil
}

func runAddNetwork(cmd *cobra.Command, args []string) error {
	chainID, err := parseChainID(args[0])
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

	if _, err := c.resume(ctx, networkConnector); err != nil {
		return err
	}
	if err := c.orch.AddNetwork(ctx, chainID); err != nil {
		return err
	}

	if cc.Formatter.IsJSON() {
		return cc.Formatter.Print(map[string]uint64{"chain_id": chainID})
	}
	output.Successf(cc.Formatter.Writer(), "Chain %d registered with the agent", chainID)
	return nil
}

// parseChainID accepts a decimal or 0x-prefixed chain id.
func parseChainID(s string) (uint64, error) {
	s = strings.TrimSpace(s)

	var (
		id  uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err = hexutil.DecodeUint64("0x" + s[2:])
	} else {
		id, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil || id == 0 {
		return 0, gateerr.WithSuggestion(
			gateerr.WithDetails(gateerr.ErrInvalidInput, map[string]string{"chain_id": s}),
			fmt.Sprintf("chain ids are decimal or 0x-prefixed hex, e.g. %d", chain.SapphireTestnet),
		)
	}
	return id, nil
}
