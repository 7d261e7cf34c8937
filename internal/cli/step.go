package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prdflow/prdflow/internal/storage"
	"github.com/prdflow/prdflow/pkg/models"
)

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Manage a work item's steps",
}

var stepAddCmd = &cobra.Command{
	Use:   "add <id> <text>",
	Short: "Append a step to a work item",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		text := strings.TrimSpace(strings.Join(args[1:], " "))
		if text == "" {
			return fmt.Errorf("step text cannot be empty")
		}

		item, err := Store.UpdateItem(id, func(item models.WorkItem) models.WorkItem {
			item.Steps = append(item.Steps, models.PlainStep(text))
			return item
		})
		if err != nil {
			return fmt.Errorf("adding step to %s: %w", id, err)
		}
		fmt.Printf("%s now has %d steps\n", item.ID, len(item.Steps))
		return nil
	},
}

var stepCheckCmd = &cobra.Command{
	Use:   "check <id> <number>",
	Short: "Mark a step as completed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStepCompleted(args[0], args[1], true)
	},
}

var stepUncheckCmd = &cobra.Command{
	Use:   "uncheck <id> <number>",
	Short: "Mark a step as not completed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStepCompleted(args[0], args[1], false)
	},
}

var stepEditCmd = &cobra.Command{
	Use:   "edit <id> <number> <text>",
	Short: "Rewrite a step's text",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := parseStepNumber(args[1])
		if err != nil {
			return err
		}
		text := strings.TrimSpace(strings.Join(args[2:], " "))
		if text == "" {
			return fmt.Errorf("step text cannot be empty")
		}

		item, err := updateStep(args[0], idx, func(step *models.Step) {
			step.Text = text
		})
		if err != nil {
			return fmt.Errorf("editing step on %s: %w", args[0], err)
		}
		fmt.Printf("step %d of %s updated\n", idx+1, item.ID)
		return nil
	},
}

// setStepCompleted marks a step done or not done. Checking a plain step
// upgrades it to a tracked one; unchecking keeps it tracked.
func setStepCompleted(id, number string, completed bool) error {
	idx, err := parseStepNumber(number)
	if err != nil {
		return err
	}

	item, err := updateStep(id, idx, func(step *models.Step) {
		*step = step.Track()
		step.Completed = completed
	})
	if err != nil {
		return fmt.Errorf("updating step on %s: %w", id, err)
	}

	verb := "unchecked"
	if completed {
		verb = "checked"
	}
	fmt.Printf("%s step %d of %s\n", verb, idx+1, item.ID)
	if item.StepsComplete() {
		fmt.Printf("all steps of %s are complete\n", item.ID)
	}
	return nil
}

// updateStep mutates one step of one item inside a store transaction, so a
// bad index leaves the document untouched.
func updateStep(id string, idx int, mutate func(step *models.Step)) (models.WorkItem, error) {
	var updated models.WorkItem
	err := Store.Transaction(func(items *[]models.WorkItem) error {
		for i := range *items {
			if (*items)[i].ID != id {
				continue
			}
			if idx >= len((*items)[i].Steps) {
				return fmt.Errorf("step %d out of range (item has %d steps)", idx+1, len((*items)[i].Steps))
			}
			mutate(&(*items)[i].Steps[idx])
			updated = (*items)[i]
			return nil
		}
		return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	})
	if err != nil {
		return models.WorkItem{}, err
	}
	return updated, nil
}

func parseStepNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid step number %q (steps are numbered from 1)", s)
	}
	return n - 1, nil
}

func init() {
	stepCmd.AddCommand(stepAddCmd, stepCheckCmd, stepUncheckCmd, stepEditCmd)
	rootCmd.AddCommand(stepCmd)
}
