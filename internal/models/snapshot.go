package models

import "time"

// EquipmentView is a read-only copy of one device's state.
type EquipmentView struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	State      EquipmentState `json:"state"`
	Elapsed    time.Duration  `json:"elapsed"`
	Progress   float64        `json:"progress"`
	PowerW     float64        `json:"power_w"`
	ConsumedWh float64        `json:"consumed_wh"`
	SavedWh    float64        `json:"saved_wh"`
	Preloaded  bool           `json:"preloaded"`
}

// RoomView is a read-only copy of one room's state.
type RoomView struct {
	ID        string          `json:"id"`
	Type      RoomType        `json:"type"`
	Label     string          `json:"label"`
	Position  Position        `json:"position"`
	Occupants []string        `json:"occupants"`
	Idle      time.Duration   `json:"idle"`
	Examining bool            `json:"examining"`
	Equipment []EquipmentView `json:"equipment"`
}

// ActorView is a read-only copy of one actor's state.
type ActorView struct {
	ID            string    `json:"id"`
	Type          ActorType `json:"type"`
	Room          string    `json:"room"`
	PreviousRoom  string    `json:"previous_room,omitempty"`
	InExamination bool      `json:"in_examination"`
	Moves         int       `json:"moves"`
	PredictedRoom string    `json:"predicted_room,omitempty"`
}

// Snapshot is a consistent copy of the whole simulation as of a tick boundary.
type Snapshot struct {
	RunID   string        `json:"run_id"`
	At      time.Duration `json:"at"`
	Mode    Mode          `json:"mode"`
	Rooms   []RoomView    `json:"rooms"`
	Actors  []ActorView   `json:"actors"`
	Totals  Totals        `json:"totals"`
	Pending int           `json:"pending_commands"`
}
