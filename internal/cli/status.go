package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prdflow/prdflow/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Set a work item's status",
	Long: `Set a work item's status. Valid values are not-started, in-progress,
in-review and completed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, status := args[0], models.Status(args[1])
		if !models.IsValidStatus(status) {
			return fmt.Errorf("invalid status %q (want one of not-started, in-progress, in-review, completed)", args[1])
		}

		item, err := Store.UpdateItem(id, func(item models.WorkItem) models.WorkItem {
			item.Status = status
			return item
		})
		if err != nil {
			return fmt.Errorf("updating %s: %w", id, err)
		}

		logCLIEvent("item.status_changed", map[string]any{"id": item.ID, "status": string(status)})
		fmt.Printf("%s is now %s\n", item.ID, item.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
