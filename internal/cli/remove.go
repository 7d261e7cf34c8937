package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a work item from the document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := Store.RemoveItem(args[0]); err != nil {
			return fmt.Errorf("removing %s: %w", args[0], err)
		}
		logCLIEvent("item.removed", map[string]any{"id": args[0]})
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
