package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	wardmcp "github.com/ajitpratap0/wardsim/internal/mcp"
	"github.com/ajitpratap0/wardsim/internal/simulation"
)

func mcpCmd() *cobra.Command {
	var (
		flags    modeFlags
		realtime bool
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  add_actor      add a staff member, doctor or patient to a room
  move_actor     queue a move to another room
  withdraw_move  cancel a queued move
  advance        advance the simulated clock
  snapshot       full room, equipment and actor state
  metrics        time and energy totals
  predict        predicted next room of an actor

The clock only advances through the advance tool unless --realtime is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			mode, err := flags.apply()
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}

			w, err := newWorld(logger, mode, true)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer func() { _ = w.Close() }()

			runner := simulation.NewRunner(w.sim, cfg.Simulation.Tick, cfg.Simulation.Speed, logger)
			if realtime {
				go func() { _ = runner.Run(cmd.Context()) }()
			}

			srv := wardmcp.NewServer(runner, cfg.Simulation.Tick, logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: wardsim MCP server starting", "transport", "stdio", "run_id", w.sim.RunID())

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}
	flags.register(cmd, true)
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Tick the simulation on the wall clock")
	return cmd
}
