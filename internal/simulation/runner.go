package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/prediction"
)

// Runner serializes access to a Simulation and optionally drives it from a
// wall-clock ticker. All reads return copies.
type Runner struct {
	mu       sync.Mutex
	sim      *Simulation
	interval time.Duration
	speed    float64
	logger   *slog.Logger
}

// NewRunner wraps sim. Each wall-clock interval advances the simulation by
// interval × speed.
func NewRunner(sim *Simulation, interval time.Duration, speed float64, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	if speed <= 0 {
		speed = 1
	}
	return &Runner{sim: sim, interval: interval, speed: speed, logger: logger}
}

// Run ticks the simulation until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	step := time.Duration(float64(r.interval) * r.speed)
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.logger.Info("simulation running", "run_id", r.sim.RunID(), "interval", r.interval, "step", step)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("simulation stopped", "at", r.Now())
			return nil
		case <-t.C:
			r.Advance(step)
		}
	}
}

// Now returns the current simulated time.
func (r *Runner) Now() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Now()
}

// AddActor adds an actor. See Simulation.AddActor.
func (r *Runner) AddActor(t models.ActorType, roomID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.AddActor(t, roomID)
}

// RemoveActor removes an actor. See Simulation.RemoveActor.
func (r *Runner) RemoveActor(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.RemoveActor(id)
}

// RequestMove queues a move. See Simulation.RequestMove.
func (r *Runner) RequestMove(actorID, roomID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.RequestMove(actorID, roomID)
}

// WithdrawMove drops a queued move. See Simulation.WithdrawMove.
func (r *Runner) WithdrawMove(cmdID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.WithdrawMove(cmdID)
}

// SetMode switches the operating mode. See Simulation.SetMode.
func (r *Runner) SetMode(m models.Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.SetMode(m)
}

// Advance ticks the simulation by dt.
func (r *Runner) Advance(dt time.Duration) models.TickMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Advance(dt)
}

// AdvanceBy runs n ticks of length dt and returns the accumulated deltas.
func (r *Runner) AdvanceBy(n int, dt time.Duration) (models.Totals, error) {
	if n <= 0 {
		return models.Totals{}, fmt.Errorf("advance: steps must be positive, got %d", n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var t models.Totals
	for i := 0; i < n; i++ {
		t.Add(r.sim.Advance(dt))
	}
	return t, nil
}

// AutoStep forces the next auto-driver move. See Simulation.RunAutoStep.
func (r *Runner) AutoStep() (models.TickMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.RunAutoStep()
}

// Snapshot returns a deep copy of the simulation state.
func (r *Runner) Snapshot() models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Snapshot()
}

// Metrics returns the run totals.
func (r *Runner) Metrics() models.Totals {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Metrics()
}

// Movements returns the movement log.
func (r *Runner) Movements() []models.MovementRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Movements()
}

// Pending returns the queued commands.
func (r *Runner) Pending() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Pending()
}

// Predict returns the engine's current guess for an actor.
func (r *Runner) Predict(actorID string) (prediction.Prediction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Predict(actorID)
}

// Predictions returns engine statistics, recent predictions and learned edges.
func (r *Runner) Predictions() (prediction.Stats, []prediction.Prediction, []prediction.Edge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.sim.Engine()
	return e.Stats(), e.Recent(), e.Snapshot()
}
