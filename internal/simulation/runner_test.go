package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/wardsim/internal/models"
)

func newTestRunner(t *testing.T, mode models.Mode) *Runner {
	t.Helper()
	s, _ := newTestSim(t, mode)
	return NewRunner(s, 10*time.Millisecond, 100, discardLogger())
}

func TestRunner_AdvanceBy(t *testing.T) {
	r := newTestRunner(t, traditionalManual)
	id, err := r.AddActor(models.ActorStaff, "lobby")
	require.NoError(t, err)
	_, err = r.RequestMove(id, "lab")
	require.NoError(t, err)
	require.Len(t, r.Pending(), 1)

	delta, err := r.AdvanceBy(3, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, delta.Elapsed)
	assert.Equal(t, 15500*time.Millisecond, delta.TimeLost)
	assert.Equal(t, 3*time.Second, r.Now())
	assert.Len(t, r.Movements(), 1)
	assert.Equal(t, 1, r.Metrics().Moves)

	_, err = r.AdvanceBy(0, time.Second)
	assert.Error(t, err)
}

func TestRunner_SetModeAndAutoStep(t *testing.T) {
	r := newTestRunner(t, predictiveManual)
	for _, at := range models.ValidActorTypes {
		_, err := r.AddActor(at, "lobby")
		require.NoError(t, err)
	}
	_, err := r.AutoStep()
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	require.NoError(t, r.SetMode(predictiveAuto))
	_, err = r.AutoStep()
	require.NoError(t, err)
	assert.Equal(t, "emergency_room", r.Snapshot().Actors[0].Room)
}

func TestRunner_PredictionsAndRemove(t *testing.T) {
	r := newTestRunner(t, predictiveManual)
	id, err := r.AddActor(models.ActorDoctor, "lobby")
	require.NoError(t, err)
	_, err = r.RequestMove(id, "icu")
	require.NoError(t, err)
	r.Advance(time.Second)

	stats, recent, edges := r.Predictions()
	assert.Equal(t, 1, stats.Observations)
	assert.Empty(t, recent)
	require.Len(t, edges, 1)
	assert.Equal(t, "type:doctor", edges[0].Key)

	_, ok, err := r.Predict(id)
	require.NoError(t, err)
	assert.False(t, ok, "nothing learned from the ICU yet")

	require.NoError(t, r.RemoveActor(id))
	_, _, err = r.Predict(id)
	assert.ErrorIs(t, err, models.ErrUnknownEntity)
}

func TestRunner_WithdrawMove(t *testing.T) {
	r := newTestRunner(t, predictiveManual)
	id, err := r.AddActor(models.ActorStaff, "lobby")
	require.NoError(t, err)
	cmd, err := r.RequestMove(id, "icu")
	require.NoError(t, err)
	require.NoError(t, r.WithdrawMove(cmd))
	assert.Empty(t, r.Pending())
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	r := newTestRunner(t, predictiveAuto)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.Now() > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	// Each interval advances interval × speed of simulated time.
	assert.Zero(t, r.Now()%time.Second)
}
