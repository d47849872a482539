package room_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/wardsim/internal/equipment"
	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/room"
)

type occupant struct {
	id     string
	t      models.ActorType
	inExam bool
}

func (o *occupant) ID() string              { return o.id }
func (o *occupant) Type() models.ActorType  { return o.t }
func (o *occupant) SetInExamination(v bool) { o.inExam = v }

func staff(id string) *occupant   { return &occupant{id: id, t: models.ActorStaff} }
func doctor(id string) *occupant  { return &occupant{id: id, t: models.ActorDoctor} }
func patient(id string) *occupant { return &occupant{id: id, t: models.ActorPatient} }

// newRoom returns a room of type rt that records every emitted event.
func newRoom(rt models.RoomType) (*room.Room, *[]models.Event) {
	var events []models.Event
	r := room.New(string(rt), rt, models.Position{X: 10, Y: 20}, equipment.DefaultPolicy(), func(e models.Event) {
		events = append(events, e)
	})
	return r, &events
}

func states(r *room.Room) []models.EquipmentState {
	var out []models.EquipmentState
	for _, eq := range r.Equipment() {
		out = append(out, eq.State())
	}
	return out
}

func allIn(r *room.Room, s models.EquipmentState) bool {
	for _, eq := range r.Equipment() {
		if eq.State() != s {
			return false
		}
	}
	return true
}

// tickUntil ticks r by one second until cond holds, failing after limit ticks.
func tickUntil(t *testing.T, r *room.Room, limit int, cond func() bool) int {
	t.Helper()
	for i := 1; i <= limit; i++ {
		r.Tick(time.Second)
		if cond() {
			return i
		}
	}
	t.Fatalf("condition not reached after %d ticks; states %v", limit, states(r))
	return 0
}

func countKind(events []models.Event, k models.EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func TestRoom_NewHasRosterAllOff(t *testing.T) {
	r, _ := newRoom(models.RoomICU)
	require.Len(t, r.Equipment(), 4)
	assert.True(t, allIn(r, models.StateOff))
	assert.True(t, r.Empty())

	v := r.View()
	assert.Equal(t, "ICU", v.Label)
	assert.Equal(t, "icu", v.Position.RoomID)
	assert.Equal(t, 10, v.Position.X)
	assert.Len(t, v.Equipment, 4)
	assert.Empty(t, v.Occupants)
}

func TestRoom_ColdActivationOnFirstArrival(t *testing.T) {
	r, events := newRoom(models.RoomICU)

	a, err := r.AddActor(staff("S000"), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, a.ColdStarts)
	// Ventilator 4s + Heart Monitor 3s + IV Pump 2.5s + Defibrillator 3.5s.
	assert.Equal(t, 13*time.Second, a.TimeLost)
	assert.Zero(t, a.TimeSaved)
	require.Len(t, a.Activations, 4)
	for _, act := range a.Activations {
		assert.Equal(t, room.ActivationCold, act.Kind)
	}
	assert.True(t, allIn(r, models.StateStarting))
	assert.Equal(t, 1, countKind(*events, models.EventRoomEntered))
	assert.Equal(t, 4, countKind(*events, models.EventEquipmentStateChanged))

	// Later arrivals find the room already powered.
	a, err = r.AddActor(doctor("D000"), time.Second)
	require.NoError(t, err)
	assert.Zero(t, a.ColdStarts)
	assert.Zero(t, a.TimeLost)
}

func TestRoom_AddActorTwiceRejected(t *testing.T) {
	r, _ := newRoom(models.RoomLab)
	_, err := r.AddActor(staff("S000"), 0)
	require.NoError(t, err)
	_, err = r.AddActor(staff("S000"), 0)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, []string{"S000"}, r.OccupantIDs())
}

func TestRoom_RemoveUnknownActor(t *testing.T) {
	r, _ := newRoom(models.RoomLab)
	assert.ErrorIs(t, r.RemoveActor("S404"), models.ErrUnknownEntity)
}

func TestRoom_StartupReachesReady(t *testing.T) {
	r, _ := newRoom(models.RoomICU)
	_, err := r.AddActor(staff("S000"), 0)
	require.NoError(t, err)

	n := tickUntil(t, r, 10, func() bool { return allIn(r, models.StateReady) })
	assert.Equal(t, 4, n, "the ventilator is the slowest device")
}

func TestRoom_IdleSleepAndShutdown(t *testing.T) {
	r, events := newRoom(models.RoomICU)
	s := staff("S000")
	_, err := r.AddActor(s, 0)
	require.NoError(t, err)
	tickUntil(t, r, 10, func() bool { return allIn(r, models.StateReady) })

	require.NoError(t, r.RemoveActor(s.ID()))
	sleepAt := tickUntil(t, r, 60, func() bool { return allIn(r, models.StateSleep) })
	assert.Equal(t, 10, sleepAt)
	assert.Equal(t, 10*time.Second, r.Idle())

	offAfter := tickUntil(t, r, 60, func() bool { return allIn(r, models.StateOff) })
	assert.Equal(t, 30, sleepAt+offAfter)
	assert.Equal(t, 1, countKind(*events, models.EventRoomExited))
}

func TestRoom_WakeOnArrival(t *testing.T) {
	r, _ := newRoom(models.RoomICU)
	s := staff("S000")
	_, err := r.AddActor(s, 0)
	require.NoError(t, err)
	tickUntil(t, r, 10, func() bool { return allIn(r, models.StateReady) })
	require.NoError(t, r.RemoveActor(s.ID()))
	tickUntil(t, r, 60, func() bool { return allIn(r, models.StateSleep) })

	a, err := r.AddActor(s, 20*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Wakes)
	assert.Zero(t, a.ColdStarts)
	assert.Zero(t, a.TimeLost)
	assert.Zero(t, a.TimeSaved)
	assert.True(t, allIn(r, models.StateReady))
	assert.Zero(t, r.Idle())
}

func TestRoom_OccupiedRoomNeverIdles(t *testing.T) {
	r, _ := newRoom(models.RoomLab)
	_, err := r.AddActor(staff("S000"), 0)
	require.NoError(t, err)
	for i := 0; i < 120; i++ {
		r.Tick(time.Second)
	}
	assert.Zero(t, r.Idle())
	assert.True(t, allIn(r, models.StateReady))
}

func TestRoom_ExaminationNeedsDoctorPatientAndReadyEquipment(t *testing.T) {
	r, events := newRoom(models.RoomRadiology)
	d, p := doctor("D000"), patient("P000")
	_, err := r.AddActor(d, 0)
	require.NoError(t, err)
	r.Tick(time.Second)
	assert.False(t, r.CanBeginExamination(), "no patient yet")

	_, err = r.AddActor(p, time.Second)
	require.NoError(t, err)
	assert.False(t, r.CanBeginExamination(), "equipment still starting")

	var started int
	for i := 0; i < 20 && !r.Examining(); i++ {
		if r.Tick(time.Second).ExaminationStarted {
			started++
		}
	}
	require.True(t, r.Examining())
	assert.Equal(t, 1, started)
	assert.True(t, allIn(r, models.StateInUse))
	assert.True(t, d.inExam)
	assert.True(t, p.inExam)
	assert.Equal(t, 1, countKind(*events, models.EventExaminationStarted))

	// The examination ends on the tick after the patient leaves.
	require.NoError(t, r.RemoveActor(p.ID()))
	assert.False(t, p.inExam)
	res := r.Tick(time.Second)
	assert.False(t, res.ExaminationStarted)
	assert.False(t, r.Examining())
	assert.False(t, d.inExam)
	assert.True(t, allIn(r, models.StateReady))
	assert.Equal(t, 1, countKind(*events, models.EventExaminationEnded))
}

func TestRoom_LobbyHasNoEquipmentOrExaminations(t *testing.T) {
	r, _ := newRoom(models.RoomLobby)
	assert.Empty(t, r.Equipment())

	a, err := r.AddActor(doctor("D000"), 0)
	require.NoError(t, err)
	assert.Empty(t, a.Activations)
	_, err = r.AddActor(patient("P000"), 0)
	require.NoError(t, err)

	res := r.Tick(time.Second)
	assert.False(t, res.ExaminationStarted)
	assert.False(t, r.CanBeginExamination())
	assert.Zero(t, res.ConsumedWh)
}

func TestRoom_PreloadColdStartsAndIsSettledOnArrival(t *testing.T) {
	r, events := newRoom(models.RoomICU)

	res := r.Preload(5 * time.Second)
	assert.Equal(t, 4, res.Started)
	assert.Zero(t, res.Woken)
	assert.True(t, allIn(r, models.StateStarting))
	assert.Equal(t, 1, countKind(*events, models.EventPreloadStarted))
	for _, ev := range r.View().Equipment {
		assert.True(t, ev.Preloaded)
	}

	r.Tick(time.Second)
	r.Tick(time.Second)

	a, err := r.AddActor(staff("S000"), 7*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4, a.PreloadsUsed)
	assert.Zero(t, a.ColdStarts)
	// Two seconds ahead on every device: 4 × 2s saved; 13s - 8s still lost.
	assert.Equal(t, 8*time.Second, a.TimeSaved)
	assert.Equal(t, 5*time.Second, a.TimeLost)
	for _, act := range a.Activations {
		assert.Equal(t, room.ActivationPreloaded, act.Kind)
	}
}

func TestRoom_PreloadWakesSleepingEquipment(t *testing.T) {
	r, _ := newRoom(models.RoomLab)
	s := staff("S000")
	_, err := r.AddActor(s, 0)
	require.NoError(t, err)
	tickUntil(t, r, 10, func() bool { return allIn(r, models.StateReady) })
	require.NoError(t, r.RemoveActor(s.ID()))
	tickUntil(t, r, 60, func() bool { return allIn(r, models.StateSleep) })
	idle := r.Idle()

	res := r.Preload(30 * time.Second)
	assert.Zero(t, res.Started)
	assert.Equal(t, 4, res.Woken)
	assert.True(t, allIn(r, models.StateReady))
	assert.Equal(t, idle, r.Idle(), "idle still counts from the last occupancy")
	for _, ev := range r.View().Equipment {
		assert.True(t, ev.Preloaded)
	}

	// Waking costs no startup time, so the preload settles at zero both ways.
	a, err := r.AddActor(s, 31*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4, a.PreloadsUsed)
	assert.Zero(t, a.Wakes)
	assert.Zero(t, a.TimeSaved)
	assert.Zero(t, a.TimeLost)
	for _, act := range a.Activations {
		assert.Equal(t, room.ActivationPreloaded, act.Kind)
	}
	for _, ev := range r.View().Equipment {
		assert.False(t, ev.Preloaded)
	}
}

func TestRoom_UnusedWakePreloadIsWasted(t *testing.T) {
	r, events := newRoom(models.RoomICU)
	s := staff("S000")
	_, err := r.AddActor(s, 0)
	require.NoError(t, err)
	tickUntil(t, r, 10, func() bool { return allIn(r, models.StateReady) })
	require.NoError(t, r.RemoveActor(s.ID()))
	tickUntil(t, r, 60, func() bool { return allIn(r, models.StateSleep) })
	require.Equal(t, 10*time.Second, r.Idle())

	res := r.Preload(20 * time.Second)
	require.Equal(t, 4, res.Woken)

	var wasted, ticks int
	var wastedWh float64
	for !allIn(r, models.StateOff) && ticks < 60 {
		tr := r.Tick(time.Second)
		wasted += tr.PreloadsWasted
		wastedWh += tr.WastedWh
		ticks++
	}
	// Device thresholds restart at the preload: READY for 10s, SLEEP until 30s.
	assert.Equal(t, 30, ticks)
	assert.Equal(t, 40*time.Second, r.Idle())
	assert.Equal(t, 4, wasted)
	assert.Positive(t, wastedWh)
	assert.Equal(t, 4, countKind(*events, models.EventPreloadWasted))
}

func TestRoom_ArrivalDuringShutdownOfPreloadIsCold(t *testing.T) {
	policy := equipment.DefaultPolicy()
	policy.ShutdownDuration = 5 * time.Second
	r := room.New("icu", models.RoomICU, models.Position{}, policy, nil)

	r.Preload(0)
	tickUntil(t, r, 60, func() bool { return allIn(r, models.StateShuttingDown) })
	r.Tick(time.Second)

	a, err := r.AddActor(staff("S000"), 32*time.Second)
	require.NoError(t, err)
	assert.Zero(t, a.PreloadsUsed)
	assert.Equal(t, 4, a.ColdStarts)
	assert.Zero(t, a.TimeSaved)
	// 13s of startups plus 4s of shutdown left on each of the four devices.
	assert.Equal(t, 29*time.Second, a.TimeLost)
	for _, act := range a.Activations {
		assert.Equal(t, room.ActivationCold, act.Kind)
	}

	// The preload still drew energy nobody used; the devices then restart.
	var wasted int
	for i := 0; i < 4; i++ {
		wasted += r.Tick(time.Second).PreloadsWasted
	}
	assert.Equal(t, 4, wasted)
	assert.True(t, allIn(r, models.StateStarting))
}

func TestRoom_PreloadSkipsOccupiedRoom(t *testing.T) {
	r, events := newRoom(models.RoomICU)
	_, err := r.AddActor(patient("P000"), 0)
	require.NoError(t, err)
	before := len(*events)

	res := r.Preload(time.Second)
	assert.Zero(t, res.Started)
	assert.Zero(t, res.Woken)
	assert.Len(t, *events, before)
}

func TestRoom_UnusedPreloadIsWasted(t *testing.T) {
	r, events := newRoom(models.RoomICU)
	r.Preload(0)

	var wasted int
	var wastedWh float64
	for i := 0; i < 40; i++ {
		res := r.Tick(time.Second)
		wasted += res.PreloadsWasted
		wastedWh += res.WastedWh
	}
	assert.Equal(t, 4, wasted)
	assert.Positive(t, wastedWh)
	assert.True(t, allIn(r, models.StateOff))
	assert.Equal(t, 4, countKind(*events, models.EventPreloadWasted))
}

func TestRoom_EnergyMatchesEquipment(t *testing.T) {
	r, _ := newRoom(models.RoomLab)
	_, err := r.AddActor(staff("S000"), 0)
	require.NoError(t, err)

	var consumed, baseline float64
	for i := 0; i < 15; i++ {
		res := r.Tick(time.Second)
		consumed += res.ConsumedWh
		baseline += res.BaselineWh
	}
	var eqConsumed, eqBaseline float64
	for _, eq := range r.Equipment() {
		eqConsumed += eq.ConsumedWh()
		eqBaseline += eq.BaselineWh()
	}
	assert.InDelta(t, eqConsumed, consumed, 1e-9)
	assert.InDelta(t, eqBaseline, baseline, 1e-9)
	// 4 devices totalling 2800 W for 15 s.
	assert.InDelta(t, 2800.0*15/3600, baseline, 1e-9)
	assert.Less(t, consumed, baseline)
}
