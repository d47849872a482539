package simulation

import (
	"fmt"

	"github.com/ajitpratap0/wardsim/internal/equipment"
	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/prediction"
)

const (
	// DefaultMovementLogSize bounds the per-run movement log used for reports.
	DefaultMovementLogSize = 1000
)

// RoomSpec places one room on the floor.
type RoomSpec struct {
	ID   string          `json:"id" mapstructure:"id"`
	Type models.RoomType `json:"type" mapstructure:"type"`
	X    int             `json:"x" mapstructure:"x"`
	Y    int             `json:"y" mapstructure:"y"`
}

// DefaultLayout returns the reference floor: one room of each type on a 3x2 grid.
func DefaultLayout() []RoomSpec {
	return []RoomSpec{
		{ID: "radiology", Type: models.RoomRadiology, X: 0, Y: 0},
		{ID: "icu", Type: models.RoomICU, X: 0, Y: 200},
		{ID: "lobby", Type: models.RoomLobby, X: 300, Y: 0},
		{ID: "lab", Type: models.RoomLab, X: 300, Y: 200},
		{ID: "patient_room", Type: models.RoomPatientRoom, X: 600, Y: 0},
		{ID: "emergency_room", Type: models.RoomEmergencyRoom, X: 600, Y: 200},
	}
}

// Options configures a Simulation.
type Options struct {
	Mode            models.Mode
	Layout          []RoomSpec
	Policy          equipment.Policy
	Prediction      prediction.Options
	HistorySize     int
	MovementLogSize int
	Driver          DriverOptions
	Listeners       []Listener
}

// DefaultOptions returns a predictive, auto-driven run on the default layout.
func DefaultOptions() Options {
	return Options{
		Mode:            models.Mode{Sim: models.ModePredictive, Drive: models.DriveAuto},
		Layout:          DefaultLayout(),
		Policy:          equipment.DefaultPolicy(),
		Prediction:      prediction.DefaultOptions(),
		MovementLogSize: DefaultMovementLogSize,
		Driver:          DefaultDriverOptions(),
	}
}

func validateLayout(layout []RoomSpec) error {
	if len(layout) == 0 {
		return fmt.Errorf("layout: no rooms")
	}
	seen := make(map[string]bool, len(layout))
	for _, rs := range layout {
		if rs.ID == "" {
			return fmt.Errorf("layout: room with empty id")
		}
		if seen[rs.ID] {
			return fmt.Errorf("layout: duplicate room id %q", rs.ID)
		}
		if !rs.Type.IsValid() {
			return fmt.Errorf("layout: room %q has invalid type %q", rs.ID, rs.Type)
		}
		seen[rs.ID] = true
	}
	return nil
}
