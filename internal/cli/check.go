package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prdflow/prdflow/pkg/models"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check in-progress items for completion and mark the done ones",
	Long: `Scan every in-progress item, and for any whose completion signal fires
(status, completion token, or all steps checked) mark it completed and report
the next actionable item.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		completed, err := Detector.CheckAndAdvance(func(item models.WorkItem, next *models.WorkItem) {
			fmt.Printf("completed %s: %s\n", item.ID, item.Description)
			if next != nil {
				fmt.Printf("  next up: %s (%s)\n", next.ID, next.Description)
			}
		})
		if err != nil {
			return fmt.Errorf("checking items: %w", err)
		}
		if len(completed) == 0 {
			fmt.Println("No in-progress item is complete yet.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
