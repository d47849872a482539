package equipment

import (
	"time"

	"github.com/ajitpratap0/wardsim/internal/models"
)

// Spec describes a device model: its startup latency and rated power draw.
type Spec struct {
	Name       string        `json:"name"`
	Kind       string        `json:"kind"`
	Startup    time.Duration `json:"startup"`
	RatedPower float64       `json:"rated_power_w"`
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// rosters is the fixed equipment set each room type is built with.
var rosters = map[models.RoomType][]Spec{
	models.RoomICU: {
		{Name: "Ventilator", Kind: "ventilator", Startup: ms(4000), RatedPower: 800},
		{Name: "Heart Monitor", Kind: "heart_monitor", Startup: ms(3000), RatedPower: 200},
		{Name: "IV Pump", Kind: "iv_pump", Startup: ms(2500), RatedPower: 150},
		{Name: "Defibrillator", Kind: "defibrillator", Startup: ms(3500), RatedPower: 400},
	},
	models.RoomRadiology: {
		{Name: "X-Ray Machine", Kind: "xray", Startup: ms(5000), RatedPower: 1500},
		{Name: "CT Scanner", Kind: "ct_scanner", Startup: ms(8000), RatedPower: 3000},
		{Name: "MRI", Kind: "mri", Startup: ms(12000), RatedPower: 5000},
		{Name: "Ultrasound", Kind: "ultrasound", Startup: ms(3000), RatedPower: 300},
	},
	models.RoomLab: {
		{Name: "Blood Analyzer", Kind: "blood_analyzer", Startup: ms(4500), RatedPower: 1200},
		{Name: "Microscope", Kind: "microscope", Startup: ms(2000), RatedPower: 100},
		{Name: "Centrifuge", Kind: "centrifuge", Startup: ms(3000), RatedPower: 600},
		{Name: "PCR Machine", Kind: "pcr", Startup: ms(6000), RatedPower: 900},
	},
	models.RoomLobby:         nil,
	models.RoomPatientRoom:   nil,
	models.RoomEmergencyRoom: nil,
}

// Roster returns a copy of the device models installed in rooms of type rt.
func Roster(rt models.RoomType) []Spec {
	specs := rosters[rt]
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out
}

// Build creates fresh OFF devices for a room of type rt.
func Build(rt models.RoomType, policy Policy) []*Equipment {
	specs := rosters[rt]
	out := make([]*Equipment, 0, len(specs))
	for _, s := range specs {
		out = append(out, New(s, policy))
	}
	return out
}
