package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/report"
)

func compareCmd() *cobra.Command {
	var (
		flags   modeFlags
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run the same scenario in predictive and traditional mode and compare KPIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			base, err := flags.apply()
			if err != nil {
				return fmt.Errorf("compare: %w", err)
			}

			var c report.Comparison
			for _, sim := range []models.SimMode{models.ModePredictive, models.ModeTraditional} {
				mode := models.Mode{Sim: sim, Drive: base.Drive}
				w, err := newWorld(logger, mode, false)
				if err != nil {
					return fmt.Errorf("compare: %w", err)
				}
				runHeadless(cmd.Context(), w.sim, cfg.Simulation.Steps, cfg.Simulation.Tick)
				s := report.Summarize(w.sim.Metrics(), w.sim.Engine().Stats())
				_ = w.Close()

				if sim == models.ModePredictive {
					c.Predictive = s
				} else {
					c.Traditional = s
				}
				logger.Info("compare: run finished", "mode", sim, "moves", s.Moves)
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(c)
			}
			return report.RenderComparison(os.Stdout, c)
		},
	}
	flags.register(cmd, false)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the comparison as JSON")
	return cmd
}
