package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var nextCmd = &cobra.Command{
	Use:   "next <id>",
	Short: "Show the next actionable item after the given one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		next, err := Detector.NextItem(args[0])
		if err != nil {
			return err
		}
		if next == nil {
			fmt.Println("No actionable item after", args[0])
			return nil
		}
		printItem(*next)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nextCmd)
}
