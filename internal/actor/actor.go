// Package actor models a person moving between rooms and the movement history
// that trains the prediction engine.
package actor

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/room"
)

// DefaultHistorySize bounds the number of transitions kept per actor.
const DefaultHistorySize = 100

// Actor is one moving person. Its current room and that room's occupancy are
// always updated together.
type Actor struct {
	id         string
	atype      models.ActorType
	room       *room.Room
	previous   string
	history    []models.Transition
	historyCap int
	moves      int
	inExam     bool
}

// New creates an actor that is not yet in any room.
func New(id string, t models.ActorType, historyCap int) *Actor {
	if historyCap <= 0 {
		historyCap = DefaultHistorySize
	}
	return &Actor{
		id:         id,
		atype:      t,
		historyCap: historyCap,
	}
}

// ID returns the actor identifier.
func (a *Actor) ID() string { return a.id }

// Type returns the actor category.
func (a *Actor) Type() models.ActorType { return a.atype }

// SetInExamination flags participation in an examination. Called by the room.
func (a *Actor) SetInExamination(v bool) { a.inExam = v }

// InExamination reports whether the actor takes part in an active examination.
func (a *Actor) InExamination() bool { return a.inExam }

// Room returns the room the actor is in, or nil.
func (a *Actor) Room() *room.Room { return a.room }

// RoomID returns the current room ID, or "" when the actor is nowhere.
func (a *Actor) RoomID() string {
	if a.room == nil {
		return ""
	}
	return a.room.ID()
}

// PreviousRoomID returns the room the actor was in before the last move.
func (a *Actor) PreviousRoomID() string { return a.previous }

// Moves returns the number of completed transitions, including those evicted from history.
func (a *Actor) Moves() int { return a.moves }

// History returns a copy of the retained transitions, oldest first.
func (a *Actor) History() []models.Transition {
	out := make([]models.Transition, len(a.history))
	copy(out, a.history)
	return out
}

// Place puts the actor into its starting room. It records no transition.
func (a *Actor) Place(r *room.Room, now time.Duration) (room.Arrival, error) {
	if a.room != nil {
		return room.Arrival{}, fmt.Errorf("place %s: already in %s: %w", a.id, a.room.ID(), models.ErrInvalidTransition)
	}
	arrival, err := r.AddActor(a, now)
	if err != nil {
		return room.Arrival{}, fmt.Errorf("place %s: %w", a.id, err)
	}
	a.room = r
	return arrival, nil
}

// MoveTo moves the actor into r at simulated time now and returns the completed
// transition together with the arrival's effect on r's equipment.
func (a *Actor) MoveTo(r *room.Room, now time.Duration) (models.Transition, room.Arrival, error) {
	if r == nil {
		return models.Transition{}, room.Arrival{}, fmt.Errorf("move %s: %w", a.id, models.ErrUnknownEntity)
	}
	if a.room == r || r.Contains(a.id) {
		return models.Transition{}, room.Arrival{}, fmt.Errorf("move %s to %s: already there: %w", a.id, r.ID(), models.ErrInvalidTransition)
	}

	from := ""
	if a.room != nil {
		if err := a.room.RemoveActor(a.id); err != nil {
			return models.Transition{}, room.Arrival{}, fmt.Errorf("move %s: %w", a.id, err)
		}
		from = a.room.ID()
	}
	arrival, err := r.AddActor(a, now)
	if err != nil {
		// Unreachable after the Contains check above.
		return models.Transition{}, room.Arrival{}, fmt.Errorf("move %s: %w", a.id, err)
	}
	a.previous = from
	a.room = r

	t := models.Transition{At: now, ActorID: a.id, ActorType: a.atype, From: from, To: r.ID()}
	a.record(t)
	return t, arrival, nil
}

// Leave takes the actor out of its room, e.g. when it is removed from the simulation.
func (a *Actor) Leave() error {
	if a.room == nil {
		return nil
	}
	if err := a.room.RemoveActor(a.id); err != nil {
		return fmt.Errorf("leave %s: %w", a.id, err)
	}
	a.previous = a.room.ID()
	a.room = nil
	a.inExam = false
	return nil
}

// View returns a read-only copy of the actor.
func (a *Actor) View() models.ActorView {
	return models.ActorView{
		ID:            a.id,
		Type:          a.atype,
		Room:          a.RoomID(),
		PreviousRoom:  a.previous,
		InExamination: a.inExam,
		Moves:         a.moves,
	}
}

func (a *Actor) record(t models.Transition) {
	a.moves++
	a.history = append(a.history, t)
	if over := len(a.history) - a.historyCap; over > 0 {
		a.history = append(a.history[:0], a.history[over:]...)
	}
}
