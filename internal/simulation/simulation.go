// Package simulation drives a hospital floor on a simulated clock: it applies
// actor moves, trains the prediction engine, preloads predicted rooms and
// accounts time and energy on every tick.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/wardsim/internal/actor"
	"github.com/ajitpratap0/wardsim/internal/metrics"
	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/prediction"
	"github.com/ajitpratap0/wardsim/internal/room"
)

// Listener receives the ordered events of each tick followed by its metrics.
// Listeners are called synchronously on the simulation's goroutine and must
// not call back into the simulation.
type Listener interface {
	OnEvents(b models.EventBatch)
	OnTick(m models.TickMetrics)
}

// Source distinguishes user commands from moves generated by the auto driver.
type Source string

const (
	SourceUser Source = "user"
	SourceAuto Source = "auto"
)

// Command is a queued move request, applied at the next tick.
type Command struct {
	ID      string `json:"id"`
	ActorID string `json:"actor_id"`
	RoomID  string `json:"room_id"`
	Source  Source `json:"source"`
}

// Simulation is the single-writer coordinator. It is not safe for concurrent
// use; wrap it in a Runner for interactive surfaces.
type Simulation struct {
	runID  string
	opts   Options
	logger *slog.Logger

	mode  models.Mode
	clock time.Duration

	rooms      map[string]*room.Room
	roomOrder  []string
	actors     map[string]*actor.Actor
	actorOrder []string
	counters   map[models.ActorType]int

	engine *prediction.Engine
	driver Driver
	issued map[string]prediction.Prediction

	queue     []Command
	events    []models.Event
	seq       uint64
	delta     models.TickMetrics
	totals    models.Totals
	movements []models.MovementRecord
	listeners []Listener
}

// New builds a simulation with every room of the layout and no actors.
func New(opts Options, logger *slog.Logger) (*Simulation, error) {
	if err := validateLayout(opts.Layout); err != nil {
		return nil, err
	}
	if !opts.Mode.Sim.IsValid() || !opts.Mode.Drive.IsValid() {
		return nil, fmt.Errorf("invalid mode %+v: %w", opts.Mode, models.ErrInvalidTransition)
	}
	if opts.MovementLogSize <= 0 {
		opts.MovementLogSize = DefaultMovementLogSize
	}
	if !opts.Driver.Kind.IsValid() {
		opts.Driver.Kind = DriverScript
	}

	s := &Simulation{
		runID:     uuid.New().String(),
		opts:      opts,
		logger:    logger,
		mode:      opts.Mode,
		rooms:     make(map[string]*room.Room, len(opts.Layout)),
		actors:    make(map[string]*actor.Actor),
		counters:  make(map[models.ActorType]int),
		engine:    prediction.NewEngine(opts.Prediction, logger),
		issued:    make(map[string]prediction.Prediction),
		listeners: append([]Listener(nil), opts.Listeners...),
	}
	for _, rs := range opts.Layout {
		pos := models.Position{X: rs.X, Y: rs.Y}
		s.rooms[rs.ID] = room.New(rs.ID, rs.Type, pos, opts.Policy, s.emit)
		s.roomOrder = append(s.roomOrder, rs.ID)
	}
	s.driver = newDriver(opts.Driver, s.roomOfType)
	return s, nil
}

// RunID returns the unique identifier of this run.
func (s *Simulation) RunID() string { return s.runID }

// Now returns the simulated time since the run started.
func (s *Simulation) Now() time.Duration { return s.clock }

// Mode returns the current operating mode.
func (s *Simulation) Mode() models.Mode { return s.mode }

// Engine exposes the prediction engine for read-only inspection.
func (s *Simulation) Engine() *prediction.Engine { return s.engine }

// Room returns the room with the given ID, or nil.
func (s *Simulation) Room(id string) *room.Room { return s.rooms[id] }

// Actor returns the actor with the given ID, or nil.
func (s *Simulation) Actor(id string) *actor.Actor { return s.actors[id] }

// Subscribe adds a listener for subsequent events and ticks.
func (s *Simulation) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// AddActor creates an actor of type t in roomID and returns its ID. Arrival
// effects on the room's equipment count toward the next tick's metrics.
func (s *Simulation) AddActor(t models.ActorType, roomID string) (string, error) {
	if !t.IsValid() {
		return "", fmt.Errorf("add actor: type %q: %w", t, models.ErrUnknownEntity)
	}
	r, ok := s.rooms[roomID]
	if !ok {
		return "", fmt.Errorf("add actor: room %q: %w", roomID, models.ErrUnknownEntity)
	}

	id := models.ActorID(t, s.counters[t])
	a := actor.New(id, t, s.opts.HistorySize)
	arrival, err := a.Place(r, s.clock)
	if err != nil {
		return "", fmt.Errorf("add actor: %w", err)
	}
	s.counters[t]++
	s.actors[id] = a
	s.actorOrder = append(s.actorOrder, id)
	s.applyArrival(arrival)

	s.emit(models.Event{Kind: models.EventActorAdded, ActorID: id, RoomID: roomID, Detail: string(t)})
	s.logger.Info("actor added", "actor", id, "type", t, "room", roomID)
	s.flush()
	return id, nil
}

// RemoveActor takes an actor out of the simulation. Queued moves for it are
// rejected when drained.
func (s *Simulation) RemoveActor(id string) error {
	a, ok := s.actors[id]
	if !ok {
		return fmt.Errorf("remove actor %q: %w", id, models.ErrUnknownEntity)
	}
	from := a.RoomID()
	if err := a.Leave(); err != nil {
		return fmt.Errorf("remove actor: %w", err)
	}
	delete(s.actors, id)
	for i, aid := range s.actorOrder {
		if aid == id {
			s.actorOrder = append(s.actorOrder[:i], s.actorOrder[i+1:]...)
			break
		}
	}
	delete(s.issued, id)
	s.engine.Forget(id)

	s.emit(models.Event{Kind: models.EventActorRemoved, ActorID: id, RoomID: from})
	s.logger.Info("actor removed", "actor", id, "room", from)
	s.flush()
	return nil
}

// RequestMove validates and queues a move, returning the command ID. The move
// is revalidated and applied on the next tick.
func (s *Simulation) RequestMove(actorID, roomID string) (string, error) {
	return s.enqueue(actorID, roomID, SourceUser)
}

func (s *Simulation) enqueue(actorID, roomID string, src Source) (string, error) {
	a, ok := s.actors[actorID]
	if !ok {
		return "", fmt.Errorf("request move: actor %q: %w", actorID, models.ErrUnknownEntity)
	}
	if _, ok := s.rooms[roomID]; !ok {
		return "", fmt.Errorf("request move: room %q: %w", roomID, models.ErrUnknownEntity)
	}
	if a.RoomID() == roomID {
		return "", fmt.Errorf("request move %s: already in %s: %w", actorID, roomID, models.ErrInvalidTransition)
	}
	cmd := Command{ID: uuid.New().String(), ActorID: actorID, RoomID: roomID, Source: src}
	s.queue = append(s.queue, cmd)
	return cmd.ID, nil
}

// WithdrawMove removes a queued command that has not been applied yet.
func (s *Simulation) WithdrawMove(cmdID string) error {
	for i, c := range s.queue {
		if c.ID == cmdID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("withdraw move %q: %w", cmdID, models.ErrUnknownEntity)
}

// Pending returns a copy of the queued commands in FIFO order.
func (s *Simulation) Pending() []Command {
	out := make([]Command, len(s.queue))
	copy(out, s.queue)
	return out
}

// SetMode switches the operating mode. Mid-run switches reset prediction
// accuracy but keep learned counts.
func (s *Simulation) SetMode(m models.Mode) error {
	if !m.Sim.IsValid() || !m.Drive.IsValid() {
		return fmt.Errorf("set mode %+v: %w", m, models.ErrInvalidTransition)
	}
	if m == s.mode {
		return nil
	}
	if s.clock > 0 {
		s.engine.ResetAccuracy()
	}
	s.issued = make(map[string]prediction.Prediction)
	if m.Drive == models.DriveAuto && s.mode.Drive != models.DriveAuto {
		s.driver.Reset()
	}
	s.logger.Info("mode changed", "from", s.mode, "to", m, "at", s.clock)
	s.mode = m
	return nil
}

// Advance runs one tick of length dt.
func (s *Simulation) Advance(dt time.Duration) models.TickMetrics {
	return s.Tick(dt)
}

// RunAutoStep forces the auto driver's next move and applies it with a
// zero-length tick. It fails in manual mode.
func (s *Simulation) RunAutoStep() (models.TickMetrics, error) {
	if s.mode.Drive != models.DriveAuto {
		return models.TickMetrics{}, fmt.Errorf("auto step in manual mode: %w", models.ErrInvalidTransition)
	}
	intents := s.driver.Step(s.actorViews())
	return s.tick(0, s.commandsFor(intents)), nil
}

// Tick advances the simulation by dt.
func (s *Simulation) Tick(dt time.Duration) models.TickMetrics {
	if dt < 0 {
		dt = 0
	}
	var auto []Command
	if s.mode.Drive == models.DriveAuto {
		auto = s.commandsFor(s.driver.Advance(dt, s.actorViews()))
	}
	return s.tick(dt, auto)
}

func (s *Simulation) tick(dt time.Duration, auto []Command) models.TickMetrics {
	cmds := append(auto, s.queue...)
	s.queue = nil
	for _, c := range cmds {
		s.apply(c)
	}

	if s.mode.Sim == models.ModePredictive {
		s.predictAndPreload()
	}

	s.clock += dt
	for _, id := range s.roomOrder {
		res := s.rooms[id].Tick(dt)
		s.delta.EnergyConsumedWh += res.ConsumedWh
		s.delta.EnergyBaselineWh += res.BaselineWh
		s.delta.EnergyWastedWh += res.WastedWh
		s.totals.PreloadsWasted += res.PreloadsWasted
		s.totals.Shutdowns += res.Shutdowns
		metrics.Add(metrics.PreloadsWasted, res.PreloadsWasted)
		if res.ExaminationStarted {
			s.totals.Examinations++
			metrics.Inc(metrics.ExaminationsTotal)
		}
	}

	m := s.delta
	m.At = s.clock
	m.Dt = dt
	m.EnergySavedWh = m.EnergyBaselineWh - m.EnergyConsumedWh
	m.Accuracy = s.engine.Accuracy()
	s.totals.Add(m)
	s.delta = models.TickMetrics{}
	metrics.Inc(metrics.TicksTotal)

	s.flush()
	for _, l := range s.listeners {
		l.OnTick(m)
	}
	return m
}

// apply revalidates and executes one command, then trains the engine.
func (s *Simulation) apply(c Command) {
	a, r := s.actors[c.ActorID], s.rooms[c.RoomID]
	var err error
	switch {
	case a == nil || r == nil:
		err = fmt.Errorf("move %s to %s: %w", c.ActorID, c.RoomID, models.ErrUnknownEntity)
	case c.Source == SourceAuto && s.mode.Drive == models.DriveManual:
		err = fmt.Errorf("auto move in manual mode: %w", models.ErrInvalidTransition)
	}
	var (
		t       models.Transition
		arrival room.Arrival
	)
	if err == nil {
		t, arrival, err = a.MoveTo(r, s.clock)
	}
	if err != nil {
		s.reject(c, err)
		return
	}

	s.totals.Moves++
	metrics.Inc(metrics.MovesTotal)
	s.applyArrival(arrival)
	s.record(models.MovementRecord{Transition: t, TimeSaved: arrival.TimeSaved, TimeLost: arrival.TimeLost})
	s.logger.Debug("actor moved", "actor", t.ActorID, "from", t.From, "to", t.To,
		"saved", arrival.TimeSaved, "lost", arrival.TimeLost, "source", c.Source)

	delete(s.issued, a.ID())
	if !a.Type().Rule().Predictable || t.From == "" {
		return
	}
	key := prediction.Key(s.engine.Granularity(), a.ID(), a.Type())
	switch s.engine.Observe(a.ID(), key, t.From, t.To) {
	case prediction.OutcomeHit:
		metrics.Inc(metrics.PredictionHits)
		s.emit(models.Event{Kind: models.EventPredictionHit, ActorID: a.ID(), From: t.From, To: t.To})
	case prediction.OutcomeMiss:
		metrics.Inc(metrics.PredictionMisses)
		s.emit(models.Event{Kind: models.EventPredictionMiss, ActorID: a.ID(), From: t.From, To: t.To})
	}
}

func (s *Simulation) reject(c Command, err error) {
	s.totals.RejectedMoves++
	metrics.Inc(metrics.MovesRejected)
	s.emit(models.Event{
		Kind:    models.EventMoveRejected,
		ActorID: c.ActorID,
		RoomID:  c.RoomID,
		Detail:  err.Error(),
	})
	level := slog.LevelInfo
	if errors.Is(err, models.ErrInvalidTransition) && c.Source == SourceAuto {
		level = slog.LevelDebug
	}
	s.logger.Log(context.Background(), level, "move rejected", "cmd", c.ID, "actor", c.ActorID, "room", c.RoomID, "error", err)
}

// predictAndPreload issues one prediction per actor stay and preloads the
// predicted room when the engine is confident enough.
func (s *Simulation) predictAndPreload() {
	for _, id := range s.actorOrder {
		a := s.actors[id]
		if !a.Type().Rule().Predictable || a.Room() == nil {
			continue
		}
		key := prediction.Key(s.engine.Granularity(), id, a.Type())
		p, ok := s.engine.Predict(key, a.RoomID())
		if !ok {
			continue
		}
		if prev, done := s.issued[id]; done && prev.From == p.From && prev.To == p.To {
			continue
		}
		s.issued[id] = p
		s.engine.Track(id, p)
		s.emit(models.Event{
			Kind:       models.EventPredictionMade,
			ActorID:    id,
			RoomID:     p.To,
			From:       p.From,
			To:         p.To,
			Confidence: p.Confidence,
		})
		if !s.engine.ShouldPreload(p.Confidence) {
			continue
		}
		target, ok := s.rooms[p.To]
		if !ok {
			continue
		}
		res := target.Preload(s.clock)
		issued := res.Started + res.Woken
		s.totals.Preloads += issued
		metrics.Add(metrics.PreloadsTotal, issued)
		if issued > 0 {
			s.logger.Debug("room preloaded", "room", p.To, "actor", id, "confidence", p.Confidence,
				"started", res.Started, "woken", res.Woken)
		}
	}
}

func (s *Simulation) applyArrival(a room.Arrival) {
	s.delta.TimeSaved += a.TimeSaved
	s.delta.TimeLost += a.TimeLost
	s.totals.ColdStarts += a.ColdStarts
	s.totals.Wakes += a.Wakes
	s.totals.PreloadsUsed += a.PreloadsUsed
}

func (s *Simulation) record(m models.MovementRecord) {
	s.movements = append(s.movements, m)
	if over := len(s.movements) - s.opts.MovementLogSize; over > 0 {
		s.movements = append(s.movements[:0], s.movements[over:]...)
	}
}

// emit stamps an event with the next sequence number and the current time and
// buffers it until the next flush.
func (s *Simulation) emit(e models.Event) {
	s.seq++
	e.Seq = s.seq
	e.At = s.clock
	s.events = append(s.events, e)
}

func (s *Simulation) flush() {
	if len(s.events) == 0 {
		return
	}
	b := models.EventBatch{RunID: s.runID, Mode: s.mode, Events: s.events}
	s.events = nil
	for _, l := range s.listeners {
		l.OnEvents(b)
	}
}

func (s *Simulation) commandsFor(intents []Intent) []Command {
	cmds := make([]Command, 0, len(intents))
	for _, in := range intents {
		cmds = append(cmds, Command{ID: uuid.New().String(), ActorID: in.ActorID, RoomID: in.RoomID, Source: SourceAuto})
	}
	return cmds
}

func (s *Simulation) roomOfType(rt models.RoomType) (string, bool) {
	for _, id := range s.roomOrder {
		if s.rooms[id].Type() == rt {
			return id, true
		}
	}
	return "", false
}

func (s *Simulation) actorViews() []models.ActorView {
	out := make([]models.ActorView, 0, len(s.actorOrder))
	for _, id := range s.actorOrder {
		v := s.actors[id].View()
		if p, ok := s.issued[id]; ok {
			v.PredictedRoom = p.To
		}
		out = append(out, v)
	}
	return out
}

// Snapshot returns a deep copy of the simulation state.
func (s *Simulation) Snapshot() models.Snapshot {
	snap := models.Snapshot{
		RunID:   s.runID,
		At:      s.clock,
		Mode:    s.mode,
		Rooms:   make([]models.RoomView, 0, len(s.roomOrder)),
		Actors:  s.actorViews(),
		Totals:  s.Metrics(),
		Pending: len(s.queue),
	}
	for _, id := range s.roomOrder {
		snap.Rooms = append(snap.Rooms, s.rooms[id].View())
	}
	return snap
}

// Metrics returns the run totals so far.
func (s *Simulation) Metrics() models.Totals {
	t := s.totals
	t.Accuracy = s.engine.Accuracy()
	return t
}

// Movements returns a copy of the movement log, oldest first.
func (s *Simulation) Movements() []models.MovementRecord {
	out := make([]models.MovementRecord, len(s.movements))
	copy(out, s.movements)
	return out
}

// Predict returns the engine's current best guess for an actor without
// tracking it.
func (s *Simulation) Predict(actorID string) (prediction.Prediction, bool, error) {
	a, ok := s.actors[actorID]
	if !ok {
		return prediction.Prediction{}, false, fmt.Errorf("predict %q: %w", actorID, models.ErrUnknownEntity)
	}
	if a.Room() == nil {
		return prediction.Prediction{}, false, nil
	}
	p, ok := s.engine.Predict(prediction.Key(s.engine.Granularity(), actorID, a.Type()), a.RoomID())
	return p, ok, nil
}

// CheckConsistency verifies that every actor's room lists it as an occupant
// and that no room lists an unknown or misplaced actor.
func (s *Simulation) CheckConsistency() error {
	for id, a := range s.actors {
		if r := a.Room(); r != nil && !r.Contains(id) {
			return fmt.Errorf("actor %s not listed in room %s", id, r.ID())
		}
	}
	for _, rid := range s.roomOrder {
		for _, oid := range s.rooms[rid].OccupantIDs() {
			a, ok := s.actors[oid]
			if !ok {
				return fmt.Errorf("room %s lists unknown actor %s", rid, oid)
			}
			if a.RoomID() != rid {
				return fmt.Errorf("room %s lists actor %s located in %q", rid, oid, a.RoomID())
			}
		}
	}
	return nil
}
