package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/wardsim/internal/activity"
	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/prediction"
	"github.com/ajitpratap0/wardsim/internal/simulation"
)

const (
	// defaultEventLimit is how many activity entries GET /v1/events returns by default.
	defaultEventLimit = 50

	// maxAdvanceSteps caps a single POST /v1/advance.
	maxAdvanceSteps = 10000
)

// Server is an HTTP API server that exposes simulation commands and queries.
type Server struct {
	runner    *simulation.Runner
	log       *activity.Log
	tick      time.Duration
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a new Server with the given dependencies. tick is the
// default step length for POST /v1/advance.
func NewServer(runner *simulation.Runner, log *activity.Log, tick time.Duration, logger *slog.Logger, authToken string) *Server {
	return &Server{
		runner:    runner,
		log:       log,
		tick:      tick,
		logger:    logger,
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check: no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("GET /v1/snapshot", s.auth(s.handleSnapshot))
	mux.HandleFunc("GET /v1/metrics", s.auth(s.handleMetrics))
	mux.HandleFunc("GET /v1/events", s.auth(s.handleEvents))
	mux.HandleFunc("GET /v1/movements", s.auth(s.handleMovements))
	mux.HandleFunc("GET /v1/predictions", s.auth(s.handlePredictions))
	mux.HandleFunc("POST /v1/actors", s.auth(s.handleAddActor))
	mux.HandleFunc("DELETE /v1/actors/{id}", s.auth(s.handleRemoveActor))
	mux.HandleFunc("POST /v1/moves", s.auth(s.handleRequestMove))
	mux.HandleFunc("DELETE /v1/moves/{id}", s.auth(s.handleWithdrawMove))
	mux.HandleFunc("POST /v1/mode", s.auth(s.handleSetMode))
	mux.HandleFunc("POST /v1/advance", s.auth(s.handleAdvance))
	mux.HandleFunc("POST /v1/auto-step", s.auth(s.handleAutoStep))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.Snapshot())
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.Metrics())
}

// eventsResponse is returned by GET /v1/events.
type eventsResponse struct {
	Entries []activity.Entry `json:"entries"`
	Lines   []string         `json:"lines"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries := s.log.Recent(limit)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.String())
	}
	s.writeJSON(w, http.StatusOK, eventsResponse{Entries: entries, Lines: lines})
}

func (s *Server) handleMovements(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"movements": s.runner.Movements()})
}

// predictionsResponse is returned by GET /v1/predictions.
type predictionsResponse struct {
	Stats  prediction.Stats        `json:"stats"`
	Recent []prediction.Prediction `json:"recent"`
	Edges  []prediction.Edge       `json:"edges"`
}

func (s *Server) handlePredictions(w http.ResponseWriter, _ *http.Request) {
	stats, recent, edges := s.runner.Predictions()
	s.writeJSON(w, http.StatusOK, predictionsResponse{Stats: stats, Recent: recent, Edges: edges})
}

// addActorRequest is the body accepted by POST /v1/actors.
type addActorRequest struct {
	Type models.ActorType `json:"type"`
	Room string           `json:"room"`
}

func (s *Server) handleAddActor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req addActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Type.IsValid() {
		s.writeError(w, http.StatusBadRequest, "invalid actor type")
		return
	}
	if req.Room == "" {
		s.writeError(w, http.StatusBadRequest, "room is required")
		return
	}

	id, err := s.runner.AddActor(req.Type, req.Room)
	if err != nil {
		s.writeDomainError(w, "add actor", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleRemoveActor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.runner.RemoveActor(id); err != nil {
		s.writeDomainError(w, "remove actor", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

// moveRequest is the body accepted by POST /v1/moves.
type moveRequest struct {
	Actor string `json:"actor"`
	Room  string `json:"room"`
}

func (s *Server) handleRequestMove(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Actor == "" || req.Room == "" {
		s.writeError(w, http.StatusBadRequest, "actor and room are required")
		return
	}

	id, err := s.runner.RequestMove(req.Actor, req.Room)
	if err != nil {
		s.writeDomainError(w, "request move", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"command_id": id})
}

func (s *Server) handleWithdrawMove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.runner.WithdrawMove(id); err != nil {
		s.writeDomainError(w, "withdraw move", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"withdrawn": true})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var m models.Mode
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !m.Sim.IsValid() || !m.Drive.IsValid() {
		s.writeError(w, http.StatusBadRequest, "invalid mode")
		return
	}
	if err := s.runner.SetMode(m); err != nil {
		s.writeDomainError(w, "set mode", err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

// advanceRequest is the body accepted by POST /v1/advance. Dt is a Go
// duration string; both fields are optional.
type advanceRequest struct {
	Steps int    `json:"steps"`
	Dt    string `json:"dt"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req advanceRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Steps == 0 {
		req.Steps = 1
	}
	if req.Steps < 0 || req.Steps > maxAdvanceSteps {
		s.writeError(w, http.StatusBadRequest, "steps must be between 1 and 10000")
		return
	}
	dt := s.tick
	if req.Dt != "" {
		d, err := time.ParseDuration(req.Dt)
		if err != nil || d < 0 {
			s.writeError(w, http.StatusBadRequest, "dt must be a non-negative duration")
			return
		}
		dt = d
	}

	delta, err := s.runner.AdvanceBy(req.Steps, dt)
	if err != nil {
		s.writeDomainError(w, "advance", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"delta": delta, "now": s.runner.Now()})
}

func (s *Server) handleAutoStep(w http.ResponseWriter, _ *http.Request) {
	m, err := s.runner.AutoStep()
	if err != nil {
		s.writeDomainError(w, "auto step", err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

// --- helpers ---

// writeDomainError maps simulation sentinel errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, models.ErrUnknownEntity):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrAlreadyActive),
		errors.Is(err, models.ErrNotReady):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "op", op, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
