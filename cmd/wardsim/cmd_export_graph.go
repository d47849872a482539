package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/wardsim/internal/graphexport"
)

func exportGraphCmd() *cobra.Command {
	var flags modeFlags
	cmd := &cobra.Command{
		Use:   "export-graph",
		Short: "Run a headless simulation and write the learned transition graph to Neo4j",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			mode, err := flags.apply()
			if err != nil {
				return fmt.Errorf("export-graph: %w", err)
			}

			w, err := newWorld(logger, mode, false)
			if err != nil {
				return fmt.Errorf("export-graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			runHeadless(ctx, w.sim, cfg.Simulation.Steps, cfg.Simulation.Tick)

			exp, err := graphexport.NewExporter(ctx, graphexport.Options{
				URI:      cfg.Neo4j.URI,
				Username: cfg.Neo4j.Username,
				Password: cfg.Neo4j.Password,
				Database: cfg.Neo4j.Database,
			}, logger)
			if err != nil {
				return fmt.Errorf("export-graph: %w", err)
			}
			defer func() { _ = exp.Close(ctx) }()

			snap := w.sim.Snapshot()
			res, err := exp.Export(ctx, snap.RunID, snap.Rooms, w.sim.Engine().Snapshot())
			if err != nil {
				return fmt.Errorf("export-graph: %w", err)
			}
			fmt.Printf("Exported run %s: %d rooms, %d transitions\n", snap.RunID, res.Rooms, res.Edges)
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}
