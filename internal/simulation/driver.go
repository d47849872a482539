package simulation

import (
	"math/rand"
	"time"

	"github.com/ajitpratap0/wardsim/internal/models"
)

// DriverKind selects the auto-mode movement generator.
type DriverKind string

const (
	// DriverScript replays a fixed staff/doctor/patient sequence through the wards.
	DriverScript DriverKind = "script"
	// DriverPatrol walks every actor along its type's movement pattern with seeded dwell jitter.
	DriverPatrol DriverKind = "patrol"
)

// IsValid returns true if the driver kind is recognized.
func (k DriverKind) IsValid() bool {
	return k == DriverScript || k == DriverPatrol
}

// DriverOptions configures the auto driver.
type DriverOptions struct {
	Kind        DriverKind    `mapstructure:"kind"`
	Seed        int64         `mapstructure:"seed"`
	Dwell       time.Duration `mapstructure:"dwell"`
	Jitter      float64       `mapstructure:"jitter"`
	RestartWait time.Duration `mapstructure:"restart_wait"`
}

// DefaultDriverOptions returns the scripted driver with the reference timings.
func DefaultDriverOptions() DriverOptions {
	return DriverOptions{
		Kind:        DriverScript,
		Seed:        1,
		Dwell:       8 * time.Second,
		Jitter:      0.5,
		RestartWait: 5 * time.Second,
	}
}

// Intent is a move proposed by a driver.
type Intent struct {
	ActorID string
	RoomID  string
}

// Driver generates moves in auto mode. Advance is called once per tick; Step
// forces the next move immediately.
type Driver interface {
	Advance(dt time.Duration, actors []models.ActorView) []Intent
	Step(actors []models.ActorView) []Intent
	Reset()
}

// ScriptStep is one scripted move: the first actor of Type goes to a room of Target after Delay.
type ScriptStep struct {
	Type   models.ActorType
	Target models.RoomType
	Delay  time.Duration
}

// DefaultScript walks a care team through the emergency room, radiology, lab and ICU.
func DefaultScript() []ScriptStep {
	var steps []ScriptStep
	for _, target := range []models.RoomType{
		models.RoomEmergencyRoom, models.RoomRadiology, models.RoomLab, models.RoomICU,
	} {
		patientDelay := 5 * time.Second
		if target == models.RoomLab {
			patientDelay = 4 * time.Second
		}
		steps = append(steps,
			ScriptStep{Type: models.ActorStaff, Target: target, Delay: 2 * time.Second},
			ScriptStep{Type: models.ActorDoctor, Target: target, Delay: 3 * time.Second},
			ScriptStep{Type: models.ActorPatient, Target: target, Delay: patientDelay},
		)
	}
	return steps
}

// MovementPattern is the ward route each actor type follows under the patrol driver.
var MovementPattern = map[models.ActorType][]models.RoomType{
	models.ActorStaff:   {models.RoomLobby, models.RoomICU, models.RoomRadiology, models.RoomLab},
	models.ActorDoctor:  {models.RoomLobby, models.RoomICU, models.RoomRadiology, models.RoomLab},
	models.ActorPatient: {models.RoomLobby, models.RoomRadiology, models.RoomLab, models.RoomICU},
}

// roomLookup resolves a room type to the ID of the first room of that type.
type roomLookup func(models.RoomType) (string, bool)

func newDriver(opts DriverOptions, lookup roomLookup) Driver {
	if opts.Kind == DriverPatrol {
		return newPatrolDriver(opts, lookup)
	}
	return newScriptDriver(DefaultScript(), opts.RestartWait, lookup)
}

type scriptDriver struct {
	steps   []ScriptStep
	restart time.Duration
	lookup  roomLookup
	next    int
	waited  time.Duration
}

func newScriptDriver(steps []ScriptStep, restart time.Duration, lookup roomLookup) *scriptDriver {
	return &scriptDriver{steps: steps, restart: restart, lookup: lookup}
}

func (d *scriptDriver) Reset() {
	d.next, d.waited = 0, 0
}

func (d *scriptDriver) Advance(dt time.Duration, actors []models.ActorView) []Intent {
	if len(d.steps) == 0 {
		return nil
	}
	d.waited += dt
	var out []Intent
	for {
		wait := d.restart
		if d.next < len(d.steps) {
			wait = d.steps[d.next].Delay
		}
		if d.waited < wait {
			return out
		}
		d.waited -= wait
		out = append(out, d.fire(actors)...)
	}
}

func (d *scriptDriver) Step(actors []models.ActorView) []Intent {
	if len(d.steps) == 0 {
		return nil
	}
	d.waited = 0
	return d.fire(actors)
}

// fire emits the current step (or wraps around after the last) and advances.
func (d *scriptDriver) fire(actors []models.ActorView) []Intent {
	if d.next >= len(d.steps) {
		d.next = 0
		return nil
	}
	step := d.steps[d.next]
	d.next++
	roomID, ok := d.lookup(step.Target)
	if !ok {
		return nil
	}
	for _, a := range actors {
		if a.Type == step.Type {
			if a.Room == roomID {
				return nil
			}
			return []Intent{{ActorID: a.ID, RoomID: roomID}}
		}
	}
	return nil
}

type patrolDriver struct {
	opts   DriverOptions
	lookup roomLookup
	rng    *rand.Rand
	dwell  map[string]time.Duration
}

func newPatrolDriver(opts DriverOptions, lookup roomLookup) *patrolDriver {
	d := &patrolDriver{opts: opts, lookup: lookup}
	d.Reset()
	return d
}

func (d *patrolDriver) Reset() {
	d.rng = rand.New(rand.NewSource(d.opts.Seed)) //nolint:gosec // reproducible simulation, not crypto
	d.dwell = make(map[string]time.Duration)
}

func (d *patrolDriver) Advance(dt time.Duration, actors []models.ActorView) []Intent {
	var out []Intent
	for _, a := range actors {
		left, ok := d.dwell[a.ID]
		if !ok {
			left = d.nextDwell()
		}
		left -= dt
		if left > 0 {
			d.dwell[a.ID] = left
			continue
		}
		d.dwell[a.ID] = d.nextDwell()
		if in, ok := d.nextFor(a); ok {
			out = append(out, in)
		}
	}
	d.prune(actors)
	return out
}

// prune forgets the dwell timers of actors no longer in the simulation.
func (d *patrolDriver) prune(actors []models.ActorView) {
	if len(d.dwell) <= len(actors) {
		return
	}
	present := make(map[string]struct{}, len(actors))
	for _, a := range actors {
		present[a.ID] = struct{}{}
	}
	for id := range d.dwell {
		if _, ok := present[id]; !ok {
			delete(d.dwell, id)
		}
	}
}

func (d *patrolDriver) Step(actors []models.ActorView) []Intent {
	for _, a := range actors {
		if in, ok := d.nextFor(a); ok {
			d.dwell[a.ID] = d.nextDwell()
			return []Intent{in}
		}
	}
	return nil
}

// nextFor returns the room after the actor's current one on its pattern, or the
// pattern's second room when the actor is off-route.
func (d *patrolDriver) nextFor(a models.ActorView) (Intent, bool) {
	pattern := MovementPattern[a.Type]
	if len(pattern) < 2 {
		return Intent{}, false
	}
	nextType := pattern[1]
	for i, rt := range pattern {
		if id, ok := d.lookup(rt); ok && id == a.Room {
			nextType = pattern[(i+1)%len(pattern)]
			break
		}
	}
	roomID, ok := d.lookup(nextType)
	if !ok || roomID == a.Room {
		return Intent{}, false
	}
	return Intent{ActorID: a.ID, RoomID: roomID}, true
}

func (d *patrolDriver) nextDwell() time.Duration {
	base := float64(d.opts.Dwell)
	j := d.opts.Jitter * (2*d.rng.Float64() - 1)
	return time.Duration(base * (1 + j)).Round(time.Millisecond)
}
