package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/sigilgate/internal/output"
)

// connectorsCmd lists the connector catalog with probed availability.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "List connectors and whether their agent is installed",
	Long: `List the configured connectors in picker order.

Each connector is probed against the signing agents that answer on the
configured endpoints. A connector whose agent is missing cannot be used
to connect.

Example:
  sigilgate connectors
  sigilgate connectors -o json`,
	Args: cobra.NoArgs,
	RunE: runConnectors,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(connectorsCmd)
}

// connectorView is one connector as shown to the user.
type connectorView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Available bool   `json:"available"`
	Known     bool   `json:"probed"`
}

func runConnectors(cmd *cobra.Command, _ []string) error {
	ctx, cancel := agentContext(cmd)
	defer cancel()

	cc := commandContext(cmd)
	c, err := openCore(cc)
	if err != nil {
		return err
	}
	defer c.close()

	results := c.orch.RefreshAvailability(ctx)

	views := make([]connectorView, 0, len(c.catalog.List()))
	for _, conn := range c.catalog.List() {
		available, known := results[conn.ID]
		views = append(views, connectorView{
			ID:        conn.ID,
			Name:      conn.Label(),
			Kind:      string(conn.Kind),
			Available: available,
			Known:     known,
		})
	}

	if cc.Formatter.IsJSON() {
		return cc.Formatter.Print(views)
	}

	palette := cc.Formatter.Palette()
	table := output.NewTable("ID", "NAME", "KIND", "STATUS")
	for _, v := range views {
		table.AddRow(v.ID, v.Name, v.Kind, palette.Availability(v.Available, v.Known))
	}
	return cc.Formatter.Print(table)
}
