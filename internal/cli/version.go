package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary. Fields are set at link time.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

//nolint:gochecknoglobals // set once from main before Execute
var buildInfo BuildInfo

// SetBuildInfo records the version information shown by the version command.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
}

// formatVersion renders build info, substituting placeholders for unset fields.
func formatVersion(info BuildInfo) string {
	version := info.Version
	if version == "" {
		version = "dev"
	}
	commit := info.Commit
	if commit == "" {
		commit = "unknown"
	}
	date := info.Date
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cc := commandContext(cmd)
		if cc.Formatter.IsJSON() {
			return cc.Formatter.Print(struct {
				BuildInfo

				GoVersion string `json:"go_version"`
			}{BuildInfo: buildInfo, GoVersion: runtime.Version()})
		}
		return cc.Formatter.Println("sigilgate", formatVersion(buildInfo))
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
}
