package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// Version returns the version string set at build time.
func Version() string { return appVersion }

var rootCmd = &cobra.Command{
	Use:   "prdflow",
	Short: "prdflow - PRD backlog automation for coding assistants",
	Long: `prdflow manages a structured backlog of PRD work items stored as a JSON
document and drives them through an external coding-assistant CLI.

It provides commands for editing items and their step checklists, running
the sequential automation loop with completion detection, and sweeping
finished items into dated archives.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("prdflow %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
