// Package room coordinates a room's occupancy with the lifecycle of the
// equipment installed in it.
package room

import (
	"fmt"
	"sort"
	"time"

	"github.com/ajitpratap0/wardsim/internal/equipment"
	"github.com/ajitpratap0/wardsim/internal/models"
)

// Occupant is the view a room needs of an actor present in it.
type Occupant interface {
	ID() string
	Type() models.ActorType
	SetInExamination(bool)
}

// Emitter receives the room's activity events. The caller stamps sequence and time.
type Emitter func(models.Event)

// ActivationKind describes how a device was brought up for an arrival.
type ActivationKind string

const (
	ActivationCold      ActivationKind = "cold"
	ActivationWake      ActivationKind = "wake"
	ActivationPreloaded ActivationKind = "preloaded"
)

// Activation records the readiness effect of an arrival on one device.
type Activation struct {
	Equipment string         `json:"equipment"`
	Kind      ActivationKind `json:"kind"`
	Saved     time.Duration  `json:"saved"`
	Lost      time.Duration  `json:"lost"`
}

// Arrival summarizes the activations triggered by an occupant entering.
type Arrival struct {
	Activations  []Activation
	TimeSaved    time.Duration
	TimeLost     time.Duration
	ColdStarts   int
	Wakes        int
	PreloadsUsed int
}

// PreloadResult summarizes a pre-activation request.
type PreloadResult struct {
	Started int
	Woken   int
}

// TickResult aggregates what one tick did to the room and its equipment.
type TickResult struct {
	ConsumedWh         float64
	BaselineWh         float64
	WastedWh           float64
	PreloadsWasted     int
	Shutdowns          int
	ExaminationStarted bool
}

// Room owns a fixed equipment roster and the set of actors currently inside.
type Room struct {
	id        string
	rtype     models.RoomType
	pos       models.Position
	equipment []*equipment.Equipment
	occupants []Occupant
	idle      time.Duration
	quiet     time.Duration // since last occupancy or preload; drives device idle thresholds
	examining bool
	emit      Emitter
}

// New creates a room with the roster for its type, all devices OFF.
func New(id string, rt models.RoomType, pos models.Position, policy equipment.Policy, emit Emitter) *Room {
	if emit == nil {
		emit = func(models.Event) {}
	}
	pos.RoomID = id
	return &Room{
		id:        id,
		rtype:     rt,
		pos:       pos,
		equipment: equipment.Build(rt, policy),
		emit:      emit,
	}
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Type returns the room category.
func (r *Room) Type() models.RoomType { return r.rtype }

// Equipment returns the devices installed in the room. The slice must not be modified.
func (r *Room) Equipment() []*equipment.Equipment { return r.equipment }

// Idle returns how long the room has been empty.
func (r *Room) Idle() time.Duration { return r.idle }

// Examining reports whether an examination is in progress.
func (r *Room) Examining() bool { return r.examining }

// Empty reports whether nobody is in the room.
func (r *Room) Empty() bool { return len(r.occupants) == 0 }

// Contains reports whether the actor with the given ID is present.
func (r *Room) Contains(id string) bool {
	return r.indexOf(id) >= 0
}

// OccupantIDs returns the sorted IDs of everyone present.
func (r *Room) OccupantIDs() []string {
	ids := make([]string, 0, len(r.occupants))
	for _, o := range r.occupants {
		ids = append(ids, o.ID())
	}
	sort.Strings(ids)
	return ids
}

// AddActor inserts o at simulated time now. When o is the first occupant able
// to activate equipment, OFF devices cold start, sleeping devices wake and
// preloaded devices are settled against their preload time.
func (r *Room) AddActor(o Occupant, now time.Duration) (Arrival, error) {
	if r.Contains(o.ID()) {
		return Arrival{}, fmt.Errorf("add %s to %s: already present: %w", o.ID(), r.id, models.ErrInvalidTransition)
	}
	firstActivator := o.Type().Rule().Activates && !r.hasActivator()

	r.occupants = append(r.occupants, o)
	r.idle = 0
	r.quiet = 0
	r.emit(models.Event{Kind: models.EventRoomEntered, ActorID: o.ID(), RoomID: r.id})

	if !firstActivator {
		return Arrival{}, nil
	}
	return r.activate(now), nil
}

// RemoveActor takes the actor out of the room. The idle timer starts on the next
// tick once the room is empty.
func (r *Room) RemoveActor(id string) error {
	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("remove %s from %s: %w", id, r.id, models.ErrUnknownEntity)
	}
	o := r.occupants[i]
	r.occupants = append(r.occupants[:i], r.occupants[i+1:]...)
	if r.examining {
		o.SetInExamination(false)
	}
	r.emit(models.Event{Kind: models.EventRoomExited, ActorID: id, RoomID: r.id})
	return nil
}

// CanBeginExamination reports whether a doctor and a patient are present and
// every device is READY or IN_USE.
func (r *Room) CanBeginExamination() bool {
	if !models.RoomRules[r.rtype].Examinations {
		return false
	}
	if !r.has(models.ActorDoctor) || !r.has(models.ActorPatient) {
		return false
	}
	for _, eq := range r.equipment {
		if !eq.State().Active() {
			return false
		}
	}
	return true
}

// Preload pre-activates the room ahead of a predicted arrival. Occupied rooms
// are already driven by their occupants and are left alone. Idle keeps counting
// from the last occupancy, but the devices' sleep and shutdown thresholds restart
// at the preload.
func (r *Room) Preload(now time.Duration) PreloadResult {
	var res PreloadResult
	if !r.Empty() {
		return res
	}
	for _, eq := range r.equipment {
		switch eq.State() {
		case models.StateOff:
			r.transition(eq, func() error { return eq.Preload(now) })
			res.Started++
		case models.StateSleep:
			r.transition(eq, func() error { return eq.PreloadWake(now) })
			res.Woken++
		}
	}
	if res.Started+res.Woken > 0 {
		r.quiet = 0
		r.emit(models.Event{
			Kind:   models.EventPreloadStarted,
			RoomID: r.id,
			Detail: fmt.Sprintf("started=%d woken=%d", res.Started, res.Woken),
		})
	}
	return res
}

// Tick advances the room by dt: the idle timer, examination bookkeeping and
// every device.
func (r *Room) Tick(dt time.Duration) TickResult {
	var res TickResult
	if r.Empty() {
		r.idle += dt
		r.quiet += dt
	}

	if r.examining && !(r.has(models.ActorDoctor) && r.has(models.ActorPatient)) {
		r.endExamination()
	}

	for _, eq := range r.equipment {
		d := eq.Tick(dt, r.quiet)
		res.ConsumedWh += d.ConsumedWh
		res.BaselineWh += d.BaselineWh
		if d.Changed() {
			r.emitState(eq, d.From, d.To)
			if d.To == models.StateOff {
				res.Shutdowns++
			}
		}
		if d.Wasted {
			res.WastedWh += d.WastedWh
			res.PreloadsWasted++
			r.emit(models.Event{
				Kind:      models.EventPreloadWasted,
				RoomID:    r.id,
				Equipment: eq.Name(),
				Detail:    fmt.Sprintf("%.4f Wh", d.WastedWh),
			})
		}
		// A device that finished shutting down under an occupant restarts.
		if eq.State() == models.StateOff && r.hasActivator() {
			r.transition(eq, eq.PowerOn)
		}
	}

	if !r.examining && r.CanBeginExamination() {
		r.beginExamination()
		res.ExaminationStarted = true
	}
	return res
}

// View returns a read-only copy of the room.
func (r *Room) View() models.RoomView {
	v := models.RoomView{
		ID:        r.id,
		Type:      r.rtype,
		Label:     r.rtype.Label(),
		Position:  r.pos,
		Occupants: r.OccupantIDs(),
		Idle:      r.idle,
		Examining: r.examining,
		Equipment: make([]models.EquipmentView, 0, len(r.equipment)),
	}
	for _, eq := range r.equipment {
		pending, _ := eq.PreloadPending()
		v.Equipment = append(v.Equipment, models.EquipmentView{
			Name:       eq.Name(),
			Kind:       eq.Spec().Kind,
			State:      eq.State(),
			Elapsed:    eq.Elapsed(),
			Progress:   eq.Progress(),
			PowerW:     eq.PowerFraction() * eq.Spec().RatedPower,
			ConsumedWh: eq.ConsumedWh(),
			SavedWh:    eq.SavedWh(),
			Preloaded:  pending,
		})
	}
	return v
}

func (r *Room) activate(now time.Duration) Arrival {
	var a Arrival
	for _, eq := range r.equipment {
		act := Activation{Equipment: eq.Name()}
		if eq.State() == models.StateShuttingDown {
			// Restarted by Tick once OFF; the wait covers the rest of the
			// shutdown plus a full startup. A pending preload stays pending
			// and is reported as wasted when the device reaches OFF.
			act.Kind = ActivationCold
			act.Lost = eq.Spec().Startup + eq.Remaining()
			a.ColdStarts++
		} else if saved, lost, ok := eq.ConsumePreload(now); ok {
			if eq.State() == models.StateSleep {
				r.transition(eq, eq.Wake)
			}
			act.Kind, act.Saved, act.Lost = ActivationPreloaded, saved, lost
			a.PreloadsUsed++
		} else {
			switch eq.State() {
			case models.StateOff:
				r.transition(eq, eq.PowerOn)
				act.Kind, act.Lost = ActivationCold, eq.Spec().Startup
				a.ColdStarts++
			case models.StateSleep:
				r.transition(eq, eq.Wake)
				act.Kind = ActivationWake
				a.Wakes++
			default:
				continue
			}
		}
		a.TimeSaved += act.Saved
		a.TimeLost += act.Lost
		a.Activations = append(a.Activations, act)
	}
	return a
}

func (r *Room) beginExamination() {
	for _, eq := range r.equipment {
		if eq.State() == models.StateReady {
			r.transition(eq, eq.BeginUse)
		}
	}
	r.examining = true
	for _, o := range r.occupants {
		if t := o.Type(); t == models.ActorDoctor || t == models.ActorPatient {
			o.SetInExamination(true)
		}
	}
	r.emit(models.Event{Kind: models.EventExaminationStarted, RoomID: r.id})
}

func (r *Room) endExamination() {
	for _, eq := range r.equipment {
		if eq.State() == models.StateInUse {
			r.transition(eq, eq.EndUse)
		}
	}
	r.examining = false
	for _, o := range r.occupants {
		o.SetInExamination(false)
	}
	r.emit(models.Event{Kind: models.EventExaminationEnded, RoomID: r.id})
}

// transition applies op and emits a state change event if the state moved.
// op is only invoked from states it accepts, so its error is not expected.
func (r *Room) transition(eq *equipment.Equipment, op func() error) {
	from := eq.State()
	if err := op(); err != nil {
		return
	}
	if to := eq.State(); to != from {
		r.emitState(eq, from, to)
	}
}

func (r *Room) emitState(eq *equipment.Equipment, from, to models.EquipmentState) {
	r.emit(models.Event{
		Kind:      models.EventEquipmentStateChanged,
		RoomID:    r.id,
		Equipment: eq.Name(),
		From:      string(from),
		To:        string(to),
	})
}

func (r *Room) has(t models.ActorType) bool {
	for _, o := range r.occupants {
		if o.Type() == t {
			return true
		}
	}
	return false
}

func (r *Room) hasActivator() bool {
	for _, o := range r.occupants {
		if o.Type().Rule().Activates {
			return true
		}
	}
	return false
}

func (r *Room) indexOf(id string) int {
	for i, o := range r.occupants {
		if o.ID() == id {
			return i
		}
	}
	return -1
}
