package activity_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/wardsim/internal/activity"
	"github.com/ajitpratap0/wardsim/internal/models"
)

var predAuto = models.Mode{Sim: models.ModePredictive, Drive: models.DriveAuto}

func batch(mode models.Mode, events ...models.Event) models.EventBatch {
	return models.EventBatch{RunID: "run-1", Mode: mode, Events: events}
}

func TestClock(t *testing.T) {
	assert.Equal(t, "00:00:00", activity.Clock(0))
	assert.Equal(t, "00:01:05", activity.Clock(65*time.Second))
	assert.Equal(t, "02:00:03", activity.Clock(2*time.Hour+3500*time.Millisecond))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		e    models.Event
		want string
	}{
		{models.Event{Kind: models.EventActorAdded, ActorID: "S000", RoomID: "lobby", Detail: "staff"}, "Added staff S000 in lobby"},
		{models.Event{Kind: models.EventActorRemoved, ActorID: "S000"}, "Removed S000 from nowhere"},
		{models.Event{Kind: models.EventRoomEntered, ActorID: "S000", RoomID: "icu"}, "S000 entered icu"},
		{models.Event{Kind: models.EventRoomExited, ActorID: "S000", RoomID: "icu"}, "S000 left icu"},
		{models.Event{Kind: models.EventEquipmentStateChanged, RoomID: "icu", Equipment: "Ventilator", From: "OFF", To: "STARTING"}, "icu/Ventilator OFF -> STARTING"},
		{models.Event{Kind: models.EventPredictionMade, ActorID: "S000", From: "lobby", To: "icu", Confidence: 0.75}, "Predicted S000 lobby -> icu (75%)"},
		{models.Event{Kind: models.EventPredictionHit, ActorID: "S000", To: "icu"}, "Prediction hit: S000 reached icu"},
		{models.Event{Kind: models.EventPredictionMiss, ActorID: "S000", To: "lab"}, "Prediction miss: S000 went to lab"},
		{models.Event{Kind: models.EventExaminationStarted, RoomID: "lab"}, "Examination started in lab"},
		{models.Event{Kind: "custom"}, "custom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, activity.Describe(tt.e))
	}
}

func TestLog_FormatsEntries(t *testing.T) {
	l := activity.NewLog(10)
	l.OnEvents(batch(models.Mode{Sim: models.ModeTraditional, Drive: models.DriveManual},
		models.Event{Seq: 1, At: 61 * time.Second, Kind: models.EventRoomEntered, ActorID: "D000", RoomID: "lab"},
	))
	l.OnEvents(batch(predAuto,
		models.Event{Seq: 2, At: 62 * time.Second, Kind: models.EventRoomExited, ActorID: "D000", RoomID: "lab"},
	))

	entries := l.Recent(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "[00:01:01] [TRAD] [MAN] D000 entered lab", entries[0].String())
	assert.Equal(t, "[00:01:02] [PRED] [AUTO] D000 left lab", entries[1].String())
	assert.Equal(t, models.EventRoomExited, entries[1].Kind)
}

func TestLog_Bounded(t *testing.T) {
	l := activity.NewLog(3)
	for i := 1; i <= 5; i++ {
		l.OnEvents(batch(predAuto, models.Event{Seq: uint64(i), Kind: models.EventRoomEntered}))
	}
	assert.Equal(t, 3, l.Len())
	entries := l.Recent(0)
	assert.Equal(t, uint64(3), entries[0].Seq, "oldest entries are evicted first")

	last := l.Recent(2)
	require.Len(t, last, 2)
	assert.Equal(t, uint64(4), last[0].Seq)
	assert.Equal(t, uint64(5), last[1].Seq)
	assert.Len(t, l.Recent(100), 3)

	l.Clear()
	assert.Zero(t, l.Len())
}

func TestLog_DefaultSize(t *testing.T) {
	l := activity.NewLog(0)
	for i := 0; i < activity.DefaultLogSize+10; i++ {
		l.OnEvents(batch(predAuto, models.Event{Seq: uint64(i), Kind: models.EventRoomEntered}))
	}
	assert.Equal(t, activity.DefaultLogSize, l.Len())
}

func TestLog_Export(t *testing.T) {
	l := activity.NewLog(10)
	l.OnEvents(batch(predAuto,
		models.Event{Seq: 1, Kind: models.EventActorAdded, ActorID: "P000", RoomID: "lobby", Detail: "patient"},
		models.Event{Seq: 2, At: time.Second, Kind: models.EventRoomEntered, ActorID: "P000", RoomID: "icu"},
	))

	var buf bytes.Buffer
	require.NoError(t, l.Export(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"[00:00:00] [PRED] [AUTO] Added patient P000 in lobby",
		"[00:00:01] [PRED] [AUTO] P000 entered icu",
	}, lines)
}
