package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// walkCommands visits every command in the tree depth-first.
func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

// enrichParentLong appends the available subcommands to a parent command's
// Long description so its help never drifts from the command tree. It is
// idempotent.
func enrichParentLong(cmd *cobra.Command) {
	const marker = "\n\nSubcommands:\n"
	if !cmd.HasAvailableSubCommands() || strings.Contains(cmd.Long, marker) {
		return
	}

	width := 0
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() && len(sub.Name()) > width {
			width = len(sub.Name())
		}
	}

	var sb strings.Builder
	sb.WriteString(cmd.Long)
	sb.WriteString(marker)
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		sb.WriteString("  ")
		sb.WriteString(sub.Name())
		sb.WriteString(strings.Repeat(" ", width-len(sub.Name())+3))
		sb.WriteString(sub.Short)
		sb.WriteString("\n")
	}
	cmd.Long = sb.String()
}
