package models

import (
	"fmt"
)

// RoomType classifies a room and determines its equipment roster.
type RoomType string

const (
	RoomLobby         RoomType = "lobby"
	RoomICU           RoomType = "icu"
	RoomRadiology     RoomType = "radiology"
	RoomLab           RoomType = "lab"
	RoomPatientRoom   RoomType = "patient_room"
	RoomEmergencyRoom RoomType = "emergency_room"
)

// ValidRoomTypes is the set of all valid room types.
var ValidRoomTypes = []RoomType{
	RoomLobby,
	RoomICU,
	RoomRadiology,
	RoomLab,
	RoomPatientRoom,
	RoomEmergencyRoom,
}

// IsValid returns true if the room type is recognized.
func (rt RoomType) IsValid() bool {
	for _, v := range ValidRoomTypes {
		if rt == v {
			return true
		}
	}
	return false
}

// RoomRule holds the per-category behavior of a room type.
type RoomRule struct {
	Label        string
	Examinations bool
}

// RoomRules maps each room type to its behavior. Adding a room category is a
// change to this table and to the equipment roster catalog.
var RoomRules = map[RoomType]RoomRule{
	RoomLobby:         {Label: "Lobby", Examinations: false},
	RoomICU:           {Label: "ICU", Examinations: true},
	RoomRadiology:     {Label: "Radiology Room", Examinations: true},
	RoomLab:           {Label: "Lab", Examinations: true},
	RoomPatientRoom:   {Label: "Patient Room", Examinations: true},
	RoomEmergencyRoom: {Label: "Emergency Room", Examinations: true},
}

// Label returns the display name of the room type.
func (rt RoomType) Label() string {
	if r, ok := RoomRules[rt]; ok {
		return r.Label
	}
	return string(rt)
}

// ActorType classifies a moving person.
type ActorType string

const (
	ActorStaff   ActorType = "staff"
	ActorDoctor  ActorType = "doctor"
	ActorPatient ActorType = "patient"
)

// ValidActorTypes is the set of all valid actor types.
var ValidActorTypes = []ActorType{
	ActorStaff,
	ActorDoctor,
	ActorPatient,
}

// IsValid returns true if the actor type is recognized.
func (at ActorType) IsValid() bool {
	for _, v := range ValidActorTypes {
		if at == v {
			return true
		}
	}
	return false
}

// ActorRule holds the per-category behavior of an actor type.
type ActorRule struct {
	// Code prefixes actor IDs of this type (S000, D001, ...).
	Code string
	// Predictable actors feed the prediction engine and receive preloads.
	Predictable bool
	// Activates reports whether arrival of this type powers up room equipment.
	Activates bool
}

// ActorRules maps each actor type to its behavior.
var ActorRules = map[ActorType]ActorRule{
	ActorStaff:   {Code: "S", Predictable: true, Activates: true},
	ActorDoctor:  {Code: "D", Predictable: true, Activates: true},
	ActorPatient: {Code: "P", Predictable: false, Activates: true},
}

// Rule returns the behavior table entry for the actor type.
func (at ActorType) Rule() ActorRule {
	return ActorRules[at]
}

// ActorID formats the identifier of the n-th actor of the given type.
func ActorID(at ActorType, n int) string {
	return fmt.Sprintf("%s%03d", at.Rule().Code, n)
}

// Position is a display hint locating an actor or room. It carries no behavior.
type Position struct {
	RoomID string `json:"room_id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// EquipmentState is a step in the equipment power lifecycle.
type EquipmentState string

const (
	StateOff          EquipmentState = "OFF"
	StateStarting     EquipmentState = "STARTING"
	StateReady        EquipmentState = "READY"
	StateInUse        EquipmentState = "IN_USE"
	StateSleep        EquipmentState = "SLEEP"
	StateShuttingDown EquipmentState = "SHUTTING_DOWN"
)

// legalTransitions lists every permitted state change.
var legalTransitions = map[EquipmentState][]EquipmentState{
	StateOff:          {StateStarting},
	StateStarting:     {StateReady},
	StateReady:        {StateInUse, StateSleep},
	StateInUse:        {StateReady},
	StateSleep:        {StateReady, StateOff, StateShuttingDown},
	StateShuttingDown: {StateOff},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to EquipmentState) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active reports whether the equipment is powered and usable without startup.
func (s EquipmentState) Active() bool {
	return s == StateReady || s == StateInUse
}

// SimMode selects whether the prediction engine drives preloads.
type SimMode string

const (
	ModePredictive  SimMode = "predictive"
	ModeTraditional SimMode = "traditional"
)

// IsValid returns true if the simulation mode is recognized.
func (m SimMode) IsValid() bool {
	return m == ModePredictive || m == ModeTraditional
}

// DriveMode selects whether actors are moved by the auto driver or only by commands.
type DriveMode string

const (
	DriveAuto   DriveMode = "auto"
	DriveManual DriveMode = "manual"
)

// IsValid returns true if the drive mode is recognized.
func (d DriveMode) IsValid() bool {
	return d == DriveAuto || d == DriveManual
}

// Mode is the operating configuration of a simulation run.
type Mode struct {
	Sim   SimMode   `json:"sim"`
	Drive DriveMode `json:"drive"`
}

// Tags returns the short activity-log tags for the mode, e.g. "PRED", "AUTO".
func (m Mode) Tags() (string, string) {
	sim, drive := "PRED", "AUTO"
	if m.Sim == ModeTraditional {
		sim = "TRAD"
	}
	if m.Drive == DriveManual {
		drive = "MAN"
	}
	return sim, drive
}
