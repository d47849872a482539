package models

import (
	"time"
)

// EventKind names an observable state change of the simulation.
type EventKind string

const (
	EventActorAdded            EventKind = "actor_added"
	EventActorRemoved          EventKind = "actor_removed"
	EventRoomEntered           EventKind = "room_entered"
	EventRoomExited            EventKind = "room_exited"
	EventMoveRejected          EventKind = "move_rejected"
	EventEquipmentStateChanged EventKind = "equipment_state_changed"
	EventExaminationStarted    EventKind = "examination_started"
	EventExaminationEnded      EventKind = "examination_ended"
	EventPredictionMade        EventKind = "prediction_made"
	EventPredictionHit         EventKind = "prediction_hit"
	EventPredictionMiss        EventKind = "prediction_miss"
	EventPreloadStarted        EventKind = "preload_started"
	EventPreloadWasted         EventKind = "preload_wasted"
)

// Event is one append-only activity record. At is simulated time since run start.
type Event struct {
	Seq        uint64        `json:"seq"`
	At         time.Duration `json:"at"`
	Kind       EventKind     `json:"kind"`
	ActorID    string        `json:"actor_id,omitempty"`
	RoomID     string        `json:"room_id,omitempty"`
	Equipment  string        `json:"equipment,omitempty"`
	From       string        `json:"from,omitempty"`
	To         string        `json:"to,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Detail     string        `json:"detail,omitempty"`
}

// Transition is one completed actor move. It is the unit of training data for
// the prediction engine.
type Transition struct {
	At        time.Duration `json:"at"`
	ActorID   string        `json:"actor_id"`
	ActorType ActorType     `json:"actor_type"`
	From      string        `json:"from"`
	To        string        `json:"to"`
}

// MovementRecord is a transition annotated with its readiness effect.
type MovementRecord struct {
	Transition
	TimeSaved time.Duration `json:"time_saved"`
	TimeLost  time.Duration `json:"time_lost"`
}

// NetEffect is the time saved minus the time lost waiting for equipment.
func (m MovementRecord) NetEffect() time.Duration {
	return m.TimeSaved - m.TimeLost
}

// TickMetrics holds the deltas produced by one tick.
type TickMetrics struct {
	At               time.Duration `json:"at"`
	Dt               time.Duration `json:"dt"`
	TimeSaved        time.Duration `json:"time_saved"`
	TimeLost         time.Duration `json:"time_lost"`
	EnergyConsumedWh float64       `json:"energy_consumed_wh"`
	EnergyBaselineWh float64       `json:"energy_baseline_wh"`
	EnergySavedWh    float64       `json:"energy_saved_wh"`
	EnergyWastedWh   float64       `json:"energy_wasted_wh"`
	Accuracy         float64       `json:"accuracy"`
}

// Totals accumulates TickMetrics and activity counters over a run.
type Totals struct {
	Elapsed          time.Duration `json:"elapsed"`
	TimeSaved        time.Duration `json:"time_saved"`
	TimeLost         time.Duration `json:"time_lost"`
	EnergyConsumedWh float64       `json:"energy_consumed_wh"`
	EnergyBaselineWh float64       `json:"energy_baseline_wh"`
	EnergySavedWh    float64       `json:"energy_saved_wh"`
	EnergyWastedWh   float64       `json:"energy_wasted_wh"`
	Moves            int           `json:"moves"`
	RejectedMoves    int           `json:"rejected_moves"`
	Examinations     int           `json:"examinations"`
	ColdStarts       int           `json:"cold_starts"`
	Wakes            int           `json:"wakes"`
	Preloads         int           `json:"preloads"`
	PreloadsUsed     int           `json:"preloads_used"`
	PreloadsWasted   int           `json:"preloads_wasted"`
	Shutdowns        int           `json:"shutdowns"`
	Accuracy         float64       `json:"accuracy"`
}

// Add folds a tick's deltas into the totals.
func (t *Totals) Add(m TickMetrics) {
	t.Elapsed += m.Dt
	t.TimeSaved += m.TimeSaved
	t.TimeLost += m.TimeLost
	t.EnergyConsumedWh += m.EnergyConsumedWh
	t.EnergyBaselineWh += m.EnergyBaselineWh
	t.EnergySavedWh += m.EnergySavedWh
	t.EnergyWastedWh += m.EnergyWastedWh
	t.Accuracy = m.Accuracy
}

// EventBatch is the set of events produced by one tick or one out-of-tick
// operation, tagged with the run and the mode that produced them.
type EventBatch struct {
	RunID  string  `json:"run_id"`
	Mode   Mode    `json:"mode"`
	Events []Event `json:"events"`
}
