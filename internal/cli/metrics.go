package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var metricsDays int

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show event log metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized")
		}

		since := time.Now().UTC().AddDate(0, 0, -metricsDays)
		m, err := MetricsCalc.Calculate(since)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		fmt.Printf("Metrics for the last %d days:\n", metricsDays)
		fmt.Printf("  Events:          %d\n", m.EventCount)
		fmt.Printf("  Items created:   %d\n", m.ItemsCreated)
		fmt.Printf("  Items completed: %d\n", m.ItemsCompleted)
		fmt.Printf("  Loops started:   %d\n", m.LoopsStarted)
		fmt.Printf("  Loops finished:  %d\n", m.LoopsFinished)
		fmt.Printf("  Loops cancelled: %d\n", m.LoopsCancelled)
		fmt.Printf("  Archive sweeps:  %d\n", m.ArchiveSweeps)
		if m.OldestEvent != nil && m.NewestEvent != nil {
			fmt.Printf("  Window:          %s .. %s\n",
				m.OldestEvent.Format(time.RFC3339), m.NewestEvent.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	metricsCmd.Flags().IntVar(&metricsDays, "days", 7, "Window in days")
	rootCmd.AddCommand(metricsCmd)
}
