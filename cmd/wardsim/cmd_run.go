package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/wardsim/internal/report"
)

func runCmd() *cobra.Command {
	var (
		flags   modeFlags
		tail    int
		jsonOut bool
		logFile string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless simulation and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			mode, err := flags.apply()
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			w, err := newWorld(logger, mode, true)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			defer func() { _ = w.Close() }()

			runHeadless(cmd.Context(), w.sim, cfg.Simulation.Steps, cfg.Simulation.Tick)
			summary := report.Summarize(w.sim.Metrics(), w.sim.Engine().Stats())

			if logFile != "" {
				if err := writeFile(logFile, w.log.Export); err != nil {
					return fmt.Errorf("run: %w", err)
				}
				logger.Info("activity log exported", "path", logFile)
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			for _, e := range w.log.Recent(tail) {
				fmt.Println(e.String())
			}
			if tail > 0 {
				fmt.Println()
			}
			fmt.Printf("Run %s finished at %s\n", w.sim.RunID(), w.sim.Now())
			fmt.Printf("  moves:          %d (%d rejected)\n", summary.Moves, summary.RejectedMoves)
			fmt.Printf("  examinations:   %d\n", summary.Examinations)
			fmt.Printf("  accuracy:       %.1f%%\n", summary.AccuracyPercent)
			fmt.Printf("  time saved:     %s\n", summary.TimeSaved)
			fmt.Printf("  time lost:      %s\n", summary.TimeLost)
			fmt.Printf("  energy used:    %.2f Wh of %.2f Wh always-on\n", summary.EnergyConsumedWh, summary.EnergyBaselineWh)
			fmt.Printf("  energy wasted:  %.2f Wh\n", summary.EnergyWastedWh)
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().IntVar(&tail, "tail", 20, "Print the last N activity lines (0 = none)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the summary as JSON")
	cmd.Flags().StringVar(&logFile, "log-out", "", "Write the activity log to this file")
	return cmd
}

// writeFile creates path and hands it to write.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
