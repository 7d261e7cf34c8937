package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prdflow/prdflow/pkg/models"
)

var addSteps []string

var addCmd = &cobra.Command{
	Use:   "add <category> <description>",
	Short: "Add a work item to the backlog",
	Long: `Add a work item with the given category and description. The id is
generated from the category prefix and the next free sequence number
(e.g. ui-007). Use --step (repeatable) to seed the step checklist.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("store not initialized")
		}

		description, category, err := models.ValidateUserInput(strings.Join(args[1:], " "), args[0], Cfg.Categories)
		if err != nil {
			return fmt.Errorf("adding item: %w", err)
		}

		items, err := Store.Read()
		if err != nil {
			return fmt.Errorf("adding item: %w", err)
		}

		item := models.NewWorkItem(nextID(items, category), category, description)
		for _, text := range addSteps {
			item.Steps = append(item.Steps, models.PlainStep(text))
		}

		if err := Store.AddItem(item); err != nil {
			return fmt.Errorf("adding item: %w", err)
		}
		logCLIEvent("item.created", map[string]any{"id": item.ID, "category": item.Category})

		fmt.Printf("Added %s\n", item.ID)
		fmt.Printf("  Category:    %s\n", item.Category)
		fmt.Printf("  Description: %s\n", item.Description)
		if len(item.Steps) > 0 {
			fmt.Printf("  Steps:       %d\n", len(item.Steps))
		}
		return nil
	},
}

// nextID returns "<category>-NNN" with the smallest unused sequence number
// greater than every existing one for that category.
func nextID(items []models.WorkItem, category string) string {
	max := 0
	prefix := category + "-"
	for _, item := range items {
		if !strings.HasPrefix(item.ID, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(item.ID, prefix)); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s-%03d", category, max+1)
}

func init() {
	addCmd.Flags().StringArrayVar(&addSteps, "step", nil, "Seed a checklist step (repeatable)")
	rootCmd.AddCommand(addCmd)
}
