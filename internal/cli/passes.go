package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/prdflow/prdflow/pkg/models"
)

var passesCmd = &cobra.Command{
	Use:   "passes <id> <true|false>",
	Short: "Set a work item's verification flag",
	Long: `Set whether a work item passes verification. Only completed items that
pass verification are eligible for archiving.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		passes, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid value %q (want true or false)", args[1])
		}

		item, err := Store.UpdateItem(args[0], func(item models.WorkItem) models.WorkItem {
			item.Passes = passes
			return item
		})
		if err != nil {
			return fmt.Errorf("updating %s: %w", args[0], err)
		}

		fmt.Printf("%s passes=%t", item.ID, item.Passes)
		if item.IsArchivable() {
			fmt.Print(" (archivable)")
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passesCmd)
}
