package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prdflow/prdflow/pkg/models"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single work item in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := Store.Read()
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.ID == args[0] {
				printItem(item)
				return nil
			}
		}
		return fmt.Errorf("item %s not found", args[0])
	},
}

func printItem(item models.WorkItem) {
	fmt.Printf("ID:          %s\n", item.ID)
	fmt.Printf("Category:    %s\n", item.Category)
	fmt.Printf("Status:      %s\n", styleForStatus(item.Status).Render(string(item.Status)))
	fmt.Printf("Passes:      %s\n", passesLabel(item))
	fmt.Printf("Description: %s\n", item.Description)
	if len(item.Steps) == 0 {
		fmt.Println("Steps:       (none)")
		return
	}
	fmt.Println("Steps:")
	for i, step := range item.Steps {
		mark := " "
		if step.Tracked && step.Completed {
			mark = "x"
		}
		fmt.Printf("  %2d. [%s] %s\n", i+1, mark, step.Text)
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
}
