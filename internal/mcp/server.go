// Package mcp implements the Model Context Protocol server for wardsim.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/simulation"
)

const (
	// defaultAdvanceSteps is how many ticks the advance tool runs by default.
	defaultAdvanceSteps = 1

	// maxAdvanceSteps caps one advance call.
	maxAdvanceSteps = 10000
)

// Server wraps an MCPServer around a simulation runner.
type Server struct {
	mcp    *mcpserver.MCPServer
	runner *simulation.Runner
	tick   time.Duration
	logger *slog.Logger
}

// NewServer creates a new MCP server. If runner is nil, every tool call
// returns an error response instead of panicking.
func NewServer(runner *simulation.Runner, tick time.Duration, logger *slog.Logger) *Server {
	s := &Server{
		runner: runner,
		tick:   tick,
		logger: logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"wardsim",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildAddActorTool(), s.handleAddActor)
	mcpSrv.AddTool(buildMoveActorTool(), s.handleMoveActor)
	mcpSrv.AddTool(buildWithdrawMoveTool(), s.handleWithdrawMove)
	mcpSrv.AddTool(buildAdvanceTool(), s.handleAdvance)
	mcpSrv.AddTool(buildSnapshotTool(), s.handleSnapshot)
	mcpSrv.AddTool(buildMetricsTool(), s.handleMetrics)
	mcpSrv.AddTool(buildPredictTool(), s.handlePredict)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleAddActor is the exported handler for the "add_actor" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleAddActor(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleAddActor(ctx, req)
}

// HandleMoveActor is the exported handler for the "move_actor" tool.
func (s *Server) HandleMoveActor(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleMoveActor(ctx, req)
}

// HandleWithdrawMove is the exported handler for the "withdraw_move" tool.
func (s *Server) HandleWithdrawMove(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleWithdrawMove(ctx, req)
}

// HandleAdvance is the exported handler for the "advance" tool.
func (s *Server) HandleAdvance(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleAdvance(ctx, req)
}

// HandleSnapshot is the exported handler for the "snapshot" tool.
func (s *Server) HandleSnapshot(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleSnapshot(ctx, req)
}

// HandleMetrics is the exported handler for the "metrics" tool.
func (s *Server) HandleMetrics(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleMetrics(ctx, req)
}

// HandlePredict is the exported handler for the "predict" tool.
func (s *Server) HandlePredict(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handlePredict(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// domainError turns a simulation error into a tool error result.
func domainError(op string, err error) *mcpgo.CallToolResult {
	switch {
	case errors.Is(err, models.ErrUnknownEntity):
		return mcpgo.NewToolResultErrorf("%s: not found: %v", op, err)
	case errors.Is(err, models.ErrInvalidTransition):
		return mcpgo.NewToolResultErrorf("%s: not allowed: %v", op, err)
	default:
		return mcpgo.NewToolResultErrorf("%s failed: %v", op, err)
	}
}

// --- tool definitions ---

func buildAddActorTool() mcpgo.Tool {
	return mcpgo.NewTool("add_actor",
		mcpgo.WithDescription("Add a staff member, doctor or patient to a room. Returns the new actor ID."),
		mcpgo.WithString("type",
			mcpgo.Required(),
			mcpgo.Description("Actor type: staff, doctor, or patient"),
		),
		mcpgo.WithString("room",
			mcpgo.Required(),
			mcpgo.Description("Room ID, e.g. lobby, icu, radiology, lab"),
		),
	)
}

func buildMoveActorTool() mcpgo.Tool {
	return mcpgo.NewTool("move_actor",
		mcpgo.WithDescription("Queue a move of an actor to another room. The move is applied on the next tick; returns a command ID."),
		mcpgo.WithString("actor",
			mcpgo.Required(),
			mcpgo.Description("Actor ID, e.g. S000"),
		),
		mcpgo.WithString("room",
			mcpgo.Required(),
			mcpgo.Description("Destination room ID"),
		),
	)
}

func buildWithdrawMoveTool() mcpgo.Tool {
	return mcpgo.NewTool("withdraw_move",
		mcpgo.WithDescription("Cancel a queued move that has not been applied yet."),
		mcpgo.WithString("command_id",
			mcpgo.Required(),
			mcpgo.Description("Command ID returned by move_actor"),
		),
	)
}

func buildAdvanceTool() mcpgo.Tool {
	return mcpgo.NewTool("advance",
		mcpgo.WithDescription("Advance the simulated clock by a number of ticks and return the accumulated metrics."),
		mcpgo.WithNumber("steps",
			mcpgo.Description("Number of ticks (default: 1)"),
		),
		mcpgo.WithNumber("seconds",
			mcpgo.Description("Simulated seconds per tick (default: configured tick)"),
		),
	)
}

func buildSnapshotTool() mcpgo.Tool {
	return mcpgo.NewTool("snapshot",
		mcpgo.WithDescription("Get the full state of every room, equipment and actor."),
	)
}

func buildMetricsTool() mcpgo.Tool {
	return mcpgo.NewTool("metrics",
		mcpgo.WithDescription("Get run totals: time saved and lost, energy consumed and saved, prediction accuracy."),
	)
}

func buildPredictTool() mcpgo.Tool {
	return mcpgo.NewTool("predict",
		mcpgo.WithDescription("Get the predicted next room of an actor with its confidence."),
		mcpgo.WithString("actor",
			mcpgo.Required(),
			mcpgo.Description("Actor ID, e.g. D000"),
		),
	)
}

// --- tool handlers ---

func (s *Server) handleAddActor(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.runner == nil {
		return mcpgo.NewToolResultError("simulation is unavailable"), nil
	}
	t := models.ActorType(strings.ToLower(req.GetString("type", "")))
	if !t.IsValid() {
		return mcpgo.NewToolResultErrorf("invalid type %q: must be one of staff, doctor, patient", t), nil
	}
	room := req.GetString("room", "")
	if room == "" {
		return mcpgo.NewToolResultError("room is required"), nil
	}

	id, err := s.runner.AddActor(t, room)
	if err != nil {
		return domainError("add_actor", err), nil
	}
	s.logger.Info("mcp: actor added", "id", id, "room", room)
	return toolResultJSON(map[string]string{"id": id})
}

func (s *Server) handleMoveActor(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.runner == nil {
		return mcpgo.NewToolResultError("simulation is unavailable"), nil
	}
	actorID := req.GetString("actor", "")
	room := req.GetString("room", "")
	if actorID == "" || room == "" {
		return mcpgo.NewToolResultError("actor and room are required"), nil
	}

	cmdID, err := s.runner.RequestMove(actorID, room)
	if err != nil {
		return domainError("move_actor", err), nil
	}
	return toolResultJSON(map[string]string{"command_id": cmdID})
}

func (s *Server) handleWithdrawMove(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.runner == nil {
		return mcpgo.NewToolResultError("simulation is unavailable"), nil
	}
	id := req.GetString("command_id", "")
	if id == "" {
		return mcpgo.NewToolResultError("command_id is required"), nil
	}
	if err := s.runner.WithdrawMove(id); err != nil {
		return domainError("withdraw_move", err), nil
	}
	return toolResultJSON(map[string]bool{"withdrawn": true})
}

func (s *Server) handleAdvance(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.runner == nil {
		return mcpgo.NewToolResultError("simulation is unavailable"), nil
	}
	steps := req.GetInt("steps", defaultAdvanceSteps)
	if steps <= 0 || steps > maxAdvanceSteps {
		return mcpgo.NewToolResultErrorf("steps must be between 1 and %d", maxAdvanceSteps), nil
	}
	dt := s.tick
	if sec := req.GetFloat("seconds", 0); sec > 0 {
		dt = time.Duration(sec * float64(time.Second))
	}

	delta, err := s.runner.AdvanceBy(steps, dt)
	if err != nil {
		return domainError("advance", err), nil
	}
	return toolResultJSON(map[string]any{"delta": delta, "now": s.runner.Now().String()})
}

func (s *Server) handleSnapshot(_ context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.runner == nil {
		return mcpgo.NewToolResultError("simulation is unavailable"), nil
	}
	return toolResultJSON(s.runner.Snapshot())
}

func (s *Server) handleMetrics(_ context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.runner == nil {
		return mcpgo.NewToolResultError("simulation is unavailable"), nil
	}
	return toolResultJSON(s.runner.Metrics())
}

func (s *Server) handlePredict(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.runner == nil {
		return mcpgo.NewToolResultError("simulation is unavailable"), nil
	}
	actorID := req.GetString("actor", "")
	if actorID == "" {
		return mcpgo.NewToolResultError("actor is required"), nil
	}
	p, ok, err := s.runner.Predict(actorID)
	if err != nil {
		return domainError("predict", err), nil
	}
	if !ok {
		return toolResultJSON(map[string]any{"actor": actorID, "predicted": false})
	}
	return toolResultJSON(map[string]any{"actor": actorID, "predicted": true, "prediction": p})
}
