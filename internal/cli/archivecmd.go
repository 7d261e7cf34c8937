package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move completed, passing items into a dated archive file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := Archiver.ArchiveCompleted()
		if err != nil {
			return fmt.Errorf("archiving: %w", err)
		}
		if result.ArchivedCount == 0 {
			fmt.Println("Nothing to archive.")
			return nil
		}
		fmt.Printf("Archived %d items to %s (%d remaining)\n",
			result.ArchivedCount, result.ArchiveFile, result.RemainingItems)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete archive files older than the retention window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := Archiver.CleanupOldArchives(Cfg.RetentionDays)
		if err != nil {
			return fmt.Errorf("cleaning up archives: %w", err)
		}
		if Cfg.RetentionDays <= 0 {
			fmt.Println("Retention disabled; nothing removed.")
			return nil
		}
		fmt.Printf("Removed %d archive files older than %d days\n", removed, Cfg.RetentionDays)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd, cleanupCmd)
}
