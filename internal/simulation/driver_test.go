package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/wardsim/internal/models"
)

func defaultLookup() roomLookup {
	layout := DefaultLayout()
	return func(rt models.RoomType) (string, bool) {
		for _, rs := range layout {
			if rs.Type == rt {
				return rs.ID, true
			}
		}
		return "", false
	}
}

func team(room string) []models.ActorView {
	return []models.ActorView{
		{ID: "S000", Type: models.ActorStaff, Room: room},
		{ID: "D000", Type: models.ActorDoctor, Room: room},
		{ID: "P000", Type: models.ActorPatient, Room: room},
	}
}

func TestDefaultScript(t *testing.T) {
	steps := DefaultScript()
	require.Len(t, steps, 12)
	assert.Equal(t, ScriptStep{Type: models.ActorStaff, Target: models.RoomEmergencyRoom, Delay: 2 * time.Second}, steps[0])
	assert.Equal(t, ScriptStep{Type: models.ActorPatient, Target: models.RoomLab, Delay: 4 * time.Second}, steps[8])
	assert.Equal(t, models.RoomICU, steps[11].Target)
}

func TestScriptDriver_FiresAfterDelay(t *testing.T) {
	d := newScriptDriver([]ScriptStep{
		{Type: models.ActorStaff, Target: models.RoomICU, Delay: 2 * time.Second},
		{Type: models.ActorDoctor, Target: models.RoomLab, Delay: time.Second},
	}, 3*time.Second, defaultLookup())

	actors := team("lobby")
	assert.Empty(t, d.Advance(time.Second, actors))
	assert.Equal(t, []Intent{{ActorID: "S000", RoomID: "icu"}}, d.Advance(time.Second, actors))
	assert.Equal(t, []Intent{{ActorID: "D000", RoomID: "lab"}}, d.Advance(time.Second, actors))

	// Restart wait, then the script wraps.
	assert.Empty(t, d.Advance(2*time.Second, actors))
	assert.Empty(t, d.Advance(time.Second, actors))
	assert.Equal(t, []Intent{{ActorID: "S000", RoomID: "icu"}}, d.Advance(2*time.Second, actors))
}

func TestScriptDriver_LargeStepFiresSeveral(t *testing.T) {
	d := newScriptDriver([]ScriptStep{
		{Type: models.ActorStaff, Target: models.RoomICU, Delay: time.Second},
		{Type: models.ActorDoctor, Target: models.RoomLab, Delay: time.Second},
	}, time.Minute, defaultLookup())

	got := d.Advance(5*time.Second, team("lobby"))
	assert.Equal(t, []Intent{{ActorID: "S000", RoomID: "icu"}, {ActorID: "D000", RoomID: "lab"}}, got)
}

func TestScriptDriver_SkipsActorAlreadyThere(t *testing.T) {
	d := newScriptDriver([]ScriptStep{
		{Type: models.ActorStaff, Target: models.RoomICU, Delay: time.Second},
	}, time.Minute, defaultLookup())
	assert.Empty(t, d.Advance(time.Second, team("icu")))
}

func TestScriptDriver_StepAndReset(t *testing.T) {
	d := newScriptDriver(DefaultScript(), 5*time.Second, defaultLookup())
	actors := team("lobby")

	assert.Equal(t, []Intent{{ActorID: "S000", RoomID: "emergency_room"}}, d.Step(actors))
	assert.Equal(t, []Intent{{ActorID: "D000", RoomID: "emergency_room"}}, d.Step(actors))

	d.Reset()
	assert.Equal(t, []Intent{{ActorID: "S000", RoomID: "emergency_room"}}, d.Step(actors))
}

func TestPatrolDriver_NextFor(t *testing.T) {
	d := newPatrolDriver(DefaultDriverOptions(), defaultLookup())
	tests := []struct {
		actor models.ActorView
		want  string
	}{
		{models.ActorView{ID: "S000", Type: models.ActorStaff, Room: "lobby"}, "icu"},
		{models.ActorView{ID: "S000", Type: models.ActorStaff, Room: "lab"}, "lobby"},
		{models.ActorView{ID: "P000", Type: models.ActorPatient, Room: "lobby"}, "radiology"},
		{models.ActorView{ID: "P000", Type: models.ActorPatient, Room: "icu"}, "lobby"},
		{models.ActorView{ID: "D000", Type: models.ActorDoctor, Room: "emergency_room"}, "icu"},
	}
	for _, tt := range tests {
		in, ok := d.nextFor(tt.actor)
		require.True(t, ok)
		assert.Equal(t, tt.want, in.RoomID, "%s from %s", tt.actor.ID, tt.actor.Room)
	}
}

func TestPatrolDriver_DwellWithinJitter(t *testing.T) {
	opts := DefaultDriverOptions()
	d := newPatrolDriver(opts, defaultLookup())
	lo := time.Duration(float64(opts.Dwell) * (1 - opts.Jitter))
	hi := time.Duration(float64(opts.Dwell) * (1 + opts.Jitter))
	for i := 0; i < 100; i++ {
		dw := d.nextDwell()
		assert.GreaterOrEqual(t, dw, lo)
		assert.LessOrEqual(t, dw, hi)
	}
}

func TestPatrolDriver_SeedIsReproducible(t *testing.T) {
	a := newPatrolDriver(DefaultDriverOptions(), defaultLookup())
	b := newPatrolDriver(DefaultDriverOptions(), defaultLookup())
	actors := team("lobby")
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Advance(time.Second, actors), b.Advance(time.Second, actors))
	}

	a.Reset()
	fresh := newPatrolDriver(DefaultDriverOptions(), defaultLookup())
	assert.Equal(t, fresh.Advance(10*time.Second, actors), a.Advance(10*time.Second, actors))
}

func TestPatrolDriver_ForgetsRemovedActors(t *testing.T) {
	d := newPatrolDriver(DefaultDriverOptions(), defaultLookup())
	actors := team("lobby")
	d.Advance(time.Second, actors)
	require.Len(t, d.dwell, 3)

	d.Advance(time.Second, actors[:1])
	assert.Len(t, d.dwell, 1)
	assert.Contains(t, d.dwell, "S000")

	d.Advance(time.Second, nil)
	assert.Empty(t, d.dwell)
}

func TestDriverKind_IsValid(t *testing.T) {
	assert.True(t, DriverScript.IsValid())
	assert.True(t, DriverPatrol.IsValid())
	assert.False(t, DriverKind("random").IsValid())
}
