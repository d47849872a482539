package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/wardsim/internal/report"
)

func reportCmd() *cobra.Command {
	var (
		flags   modeFlags
		narrate bool
		out     string
		logFile string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run a headless simulation and print a full performance report",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			mode, err := flags.apply()
			if err != nil {
				return fmt.Errorf("report: %w", err)
			}

			w, err := newWorld(logger, mode, true)
			if err != nil {
				return fmt.Errorf("report: %w", err)
			}
			defer func() { _ = w.Close() }()

			runHeadless(ctx, w.sim, cfg.Simulation.Steps, cfg.Simulation.Tick)
			rep := report.Build(w.sim.Snapshot(), w.sim.Movements(), w.sim.Engine().Stats())

			if narrate {
				if cfg.Claude.APIKey == "" {
					logger.Warn("report: --narrate requires ANTHROPIC_API_KEY; skipping narrative")
				} else {
					n := report.NewNarrator(cfg.Claude.APIKey, cfg.Claude.Model, logger)
					text, nerr := n.Narrate(ctx, rep)
					if nerr != nil {
						return fmt.Errorf("report: narrating: %w", nerr)
					}
					rep.Narrative = text
				}
			}

			if logFile != "" {
				if err := writeFile(logFile, w.log.Export); err != nil {
					return fmt.Errorf("report: %w", err)
				}
			}

			render := func(dst io.Writer) error {
				if jsonOut {
					enc := json.NewEncoder(dst)
					enc.SetIndent("", "  ")
					return enc.Encode(rep)
				}
				return report.Render(dst, rep)
			}
			if out == "" {
				return render(os.Stdout)
			}
			if err := writeFile(out, render); err != nil {
				return fmt.Errorf("report: %w", err)
			}
			fmt.Printf("Report written to %s\n", out)
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().BoolVar(&narrate, "narrate", false, "Add a Claude-written narrative (requires ANTHROPIC_API_KEY)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().StringVar(&logFile, "log-out", "", "Write the activity log to this file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the report as JSON")
	return cmd
}
