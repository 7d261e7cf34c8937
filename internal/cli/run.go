package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/prdflow/prdflow/internal/core"
	"github.com/prdflow/prdflow/pkg/models"
)

var (
	runStatus        string
	runCategory      string
	runMaxItems      int
	runIterations    int
	runStopOnFailure bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the assistant over the queued items",
	Long: `Build a queue from the stored items, then dispatch the assistant to each
item in turn, waiting for its completion signal before moving on. Ctrl-C stops
the loop cooperatively at the next checkpoint.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(stop)
		go func() {
			<-stop
			fmt.Fprintln(os.Stderr, "\ninterrupt received, stopping after the current checkpoint")
			Loop.StopLoop()
		}()

		opts := core.LoopOptions{
			Queue: core.QueueOptions{
				StatusFilter:   runStatus,
				CategoryFilter: runCategory,
				MaxItems:       runMaxItems,
			},
			StopOnFailure:     runStopOnFailure,
			IterationsPerItem: runIterations,
			OnItemStart: func(item models.WorkItem, iteration int) {
				fmt.Printf("-> %s (iteration %d): %s\n", item.ID, iteration, item.Description)
			},
			OnItemComplete: func(item models.WorkItem, success bool, iteration int) {
				if success {
					fmt.Printf("   %s iteration %d done\n", item.ID, iteration)
					return
				}
				fmt.Printf("   %s iteration %d did not complete\n", item.ID, iteration)
			},
			OnLoopComplete: func(processed, succeeded, failed int) {
				fmt.Printf("loop finished: %d processed, %d succeeded, %d failed\n", processed, succeeded, failed)
			},
		}

		if err := Loop.StartLoop(opts); err != nil {
			return fmt.Errorf("running loop: %w", err)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runStatus, "status", string(models.StatusNotStarted), "Status filter for the queue (or 'all')")
	runCmd.Flags().StringVar(&runCategory, "category", "all", "Category filter for the queue (or 'all')")
	runCmd.Flags().IntVar(&runMaxItems, "max-items", 0, "Process at most this many items (0 = unlimited)")
	runCmd.Flags().IntVar(&runIterations, "iterations", 1, "Dispatch iterations per item")
	runCmd.Flags().BoolVar(&runStopOnFailure, "stop-on-failure", false, "Stop the loop after the first item that fails")
	rootCmd.AddCommand(runCmd)
}
