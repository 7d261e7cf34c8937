package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/prdflow/prdflow/internal/core"
	"github.com/prdflow/prdflow/pkg/models"
)

var (
	listStatus   string
	listCategory string
	listMax      int
)

// Status colors for list output.
var (
	styleNotStarted = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	styleInReview   = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	styleCompleted  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	stylePasses     = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	styleFails      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List work items in stored order",
	Long: `List work items, optionally filtered by status and category. The order
is the document's stored order, which is also the run loop's queue order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Loop == nil {
			return fmt.Errorf("run loop manager not initialized")
		}

		queue, err := Loop.BuildQueue(core.QueueOptions{
			StatusFilter:   listStatus,
			CategoryFilter: listCategory,
			MaxItems:       listMax,
		})
		if err != nil {
			return fmt.Errorf("listing items: %w", err)
		}

		if len(queue) == 0 {
			fmt.Println("No items match.")
			return nil
		}

		fmt.Printf("%-12s %-10s %-12s %-7s %-7s %s\n", "ID", "CATEGORY", "STATUS", "PASSES", "STEPS", "DESCRIPTION")
		for _, item := range queue {
			fmt.Printf("%-12s %-10s %-12s %-7s %-7s %s\n",
				item.ID,
				item.Category,
				styleForStatus(item.Status).Render(string(item.Status)),
				passesLabel(item),
				stepsLabel(item),
				truncate(item.Description, 60),
			)
		}
		return nil
	},
}

func styleForStatus(s models.Status) lipgloss.Style {
	switch s {
	case models.StatusInProgress:
		return styleInProgress
	case models.StatusInReview:
		return styleInReview
	case models.StatusCompleted:
		return styleCompleted
	default:
		return styleNotStarted
	}
}

func passesLabel(item models.WorkItem) string {
	if item.Passes {
		return stylePasses.Render("yes")
	}
	return styleFails.Render("no")
}

func stepsLabel(item models.WorkItem) string {
	done := 0
	for _, s := range item.Steps {
		if s.Tracked && s.Completed {
			done++
		}
	}
	return fmt.Sprintf("%d/%d", done, len(item.Steps))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "all", "Filter by status (not-started, in-progress, in-review, completed, all)")
	listCmd.Flags().StringVar(&listCategory, "category", "all", "Filter by category")
	listCmd.Flags().IntVar(&listMax, "max-items", 0, "Limit the number of items shown (0 = unlimited)")
	rootCmd.AddCommand(listCmd)
}
