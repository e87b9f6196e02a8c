package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/sigilgate/internal/config"
)

// completionCmd generates shell completion scripts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for sigilgate.

To load completions:

Bash:
  $ source <(sigilgate completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ sigilgate completion bash > /etc/bash_completion.d/sigilgate
  # macOS:
  $ sigilgate completion bash > $(brew --prefix)/etc/bash_completion.d/sigilgate

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ sigilgate completion zsh > "${fpath[1]}/_sigilgate"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ sigilgate completion fish | source

  # To load completions for each session, execute once:
  $ sigilgate completion fish > ~/.config/fish/completions/sigilgate.fish

PowerShell:
  PS> sigilgate completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> sigilgate completion powershell > sigilgate.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(w)
		case "zsh":
			return cmd.Root().GenZshCompletion(w)
		case "fish":
			return cmd.Root().GenFishCompletion(w, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(w)
		}
		return nil
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(completionCmd)
}

// completeConnectors completes connector ids. Completion runs without the
// persistent pre-run, so the configuration may not be loaded.
func completeConnectors(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	connectors := config.Defaults().Connectors
	if cfg != nil {
		connectors = cfg.Connectors
	}

	ids := make([]string, 0, len(connectors))
	for _, c := range connectors {
		if strings.HasPrefix(c.ID, toComplete) {
			ids = append(ids, c.ID+"\t"+c.Name)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
