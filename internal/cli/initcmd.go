package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prdflow/prdflow/internal/core"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the PRD document and default configuration",
	Long: `Initialize the current directory for prdflow: write a .prdflow.yaml with
the default settings and create an empty prd.json document.

Fails if either file already exists.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("store not initialized")
		}

		cfgPath, err := core.WriteDefaultConfig(BasePath)
		if err != nil {
			return fmt.Errorf("initializing: %w", err)
		}
		if err := Store.Create(); err != nil {
			return fmt.Errorf("initializing: %w", err)
		}

		fmt.Printf("Initialized prdflow in %s\n", BasePath)
		fmt.Printf("  Config:   %s\n", cfgPath)
		fmt.Printf("  Document: %s\n", Store.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
