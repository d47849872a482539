package activity_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/wardsim/internal/activity"
	"github.com/ajitpratap0/wardsim/internal/models"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "wardsim.events.room_entered", activity.Subject("wardsim.events", models.EventRoomEntered))
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "wardsim/icu/preload_started",
		activity.Topic("wardsim", models.Event{Kind: models.EventPreloadStarted, RoomID: "icu"}))
	assert.Equal(t, "wardsim/prediction_hit",
		activity.Topic("wardsim", models.Event{Kind: models.EventPredictionHit}))
}

func TestKafkaMessages(t *testing.T) {
	recs := []activity.Record{
		{RunID: "run-1", Mode: predAuto, Event: models.Event{Seq: 7, At: 3 * time.Second, Kind: models.EventRoomEntered, ActorID: "S000", RoomID: "icu"}},
		{RunID: "run-1", Mode: predAuto, Event: models.Event{Seq: 8, Kind: models.EventExaminationStarted, RoomID: "icu"}},
	}
	msgs, err := activity.KafkaMessages(recs)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, []byte("run-1"), msgs[0].Key)
	require.Len(t, msgs[0].Headers, 1)
	assert.Equal(t, "kind", msgs[0].Headers[0].Key)
	assert.Equal(t, []byte("room_entered"), msgs[0].Headers[0].Value)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Value, &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, "room_entered", got["kind"])
	assert.Equal(t, "S000", got["actor_id"])
	assert.EqualValues(t, 7, got["seq"])
	mode, ok := got["mode"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "predictive", mode["sim"])
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := activity.NewSlogSink(logger)
	assert.Equal(t, "slog", s.Name())

	err := s.Write(context.Background(), []activity.Record{
		{RunID: "run-1", Event: models.Event{Seq: 1, Kind: models.EventRoomEntered, ActorID: "D000", RoomID: "lab"}},
		{RunID: "run-1", Event: models.Event{Seq: 2, Kind: models.EventEquipmentStateChanged, RoomID: "lab", Equipment: "Microscope", From: "OFF", To: "STARTING"}},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	out := buf.String()
	assert.Contains(t, out, "D000 entered lab")
	assert.Contains(t, out, "component=activity")
	assert.NotContains(t, out, "Microscope", "equipment changes log at debug")
}
