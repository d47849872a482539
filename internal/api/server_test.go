package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/wardsim/internal/activity"
	"github.com/ajitpratap0/wardsim/internal/api"
	"github.com/ajitpratap0/wardsim/internal/models"
	"github.com/ajitpratap0/wardsim/internal/prediction"
	"github.com/ajitpratap0/wardsim/internal/simulation"
)

// newTestServer creates a test HTTP server over a manual predictive simulation.
func newTestServer(t *testing.T, authToken string) (*httptest.Server, *simulation.Runner) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	log := activity.NewLog(100)

	opts := simulation.DefaultOptions()
	opts.Mode = models.Mode{Sim: models.ModePredictive, Drive: models.DriveManual}
	opts.Listeners = []simulation.Listener{log}
	sim, err := simulation.New(opts, logger)
	require.NoError(t, err)
	runner := simulation.NewRunner(sim, time.Second, 1, logger)

	srv := api.NewServer(runner, log, time.Second, logger, authToken)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, runner
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func doRequest(t *testing.T, method, url string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(context.Background(), method, url, body)
	} else {
		req, err = http.NewRequestWithContext(context.Background(), method, url, http.NoBody)
	}
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

type advanceResponse struct {
	Delta models.Totals `json:"delta"`
	Now   time.Duration `json:"now"`
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func addActor(t *testing.T, ts *httptest.Server, typ models.ActorType, room string) string {
	t.Helper()
	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/actors", jsonBody(t, map[string]any{"type": typ, "room": room}), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[map[string]string](t, resp)["id"]
}

func TestAPI_Healthz(t *testing.T) {
	ts, _ := newTestServer(t, "secret")

	resp := doRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestAPI_Auth(t *testing.T) {
	ts, _ := newTestServer(t, "secret")

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/snapshot", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/snapshot", nil, "wrong")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/snapshot", nil, "secret")
	snap := decode[models.Snapshot](t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, snap.Rooms, 6)
}

func TestAPI_AddActor(t *testing.T) {
	ts, runner := newTestServer(t, "")

	id := addActor(t, ts, models.ActorDoctor, "lobby")
	assert.Equal(t, "D000", id)
	require.Len(t, runner.Snapshot().Actors, 1)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"bad type", map[string]any{"type": "visitor", "room": "lobby"}, http.StatusBadRequest},
		{"missing room", map[string]any{"type": "staff"}, http.StatusBadRequest},
		{"unknown room", map[string]any{"type": "staff", "room": "roof"}, http.StatusNotFound},
		{"malformed", "not-an-object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, ts.URL+"/v1/actors", jsonBody(t, tt.body), "")
			body := decode[map[string]string](t, resp)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAPI_RemoveActor(t *testing.T) {
	ts, runner := newTestServer(t, "")
	id := addActor(t, ts, models.ActorPatient, "lobby")

	resp := doRequest(t, http.MethodDelete, ts.URL+"/v1/actors/"+id, nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, runner.Snapshot().Actors)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/v1/actors/"+id, nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_MoveAndAdvance(t *testing.T) {
	ts, runner := newTestServer(t, "")
	id := addActor(t, ts, models.ActorStaff, "lobby")

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/moves", jsonBody(t, map[string]string{"actor": id, "room": "lab"}), "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, decode[map[string]string](t, resp)["command_id"])
	assert.Equal(t, 1, runner.Snapshot().Pending)

	resp = doRequest(t, http.MethodPost, ts.URL+"/v1/advance", jsonBody(t, map[string]any{"steps": 3, "dt": "1s"}), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[advanceResponse](t, resp)
	assert.Equal(t, 3*time.Second, out.Now)
	assert.Positive(t, out.Delta.TimeLost, "the lab cold starts on arrival")
	assert.Equal(t, 3*time.Second, out.Delta.Elapsed)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/movements", nil, "")
	movements := decode[map[string][]models.MovementRecord](t, resp)["movements"]
	require.Len(t, movements, 1)
	assert.Equal(t, "lab", movements[0].To)

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/metrics", nil, "")
	assert.Equal(t, 1, decode[models.Totals](t, resp).Moves)
}

func TestAPI_MoveErrors(t *testing.T) {
	ts, _ := newTestServer(t, "")
	id := addActor(t, ts, models.ActorStaff, "lobby")

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"same room", map[string]string{"actor": id, "room": "lobby"}, http.StatusConflict},
		{"unknown actor", map[string]string{"actor": "X999", "room": "lab"}, http.StatusNotFound},
		{"unknown room", map[string]string{"actor": id, "room": "roof"}, http.StatusNotFound},
		{"missing actor", map[string]string{"room": "lab"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, ts.URL+"/v1/moves", jsonBody(t, tt.body), "")
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAPI_WithdrawMove(t *testing.T) {
	ts, runner := newTestServer(t, "")
	id := addActor(t, ts, models.ActorStaff, "lobby")
	cmd, err := runner.RequestMove(id, "icu")
	require.NoError(t, err)

	resp := doRequest(t, http.MethodDelete, ts.URL+"/v1/moves/"+cmd, nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, runner.Pending())

	resp = doRequest(t, http.MethodDelete, ts.URL+"/v1/moves/"+cmd, nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_AdvanceValidation(t *testing.T) {
	ts, runner := newTestServer(t, "")

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/advance", nil, "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, time.Second, runner.Now(), "empty body advances one default tick")

	for _, body := range []map[string]any{
		{"steps": -1},
		{"steps": 10001},
		{"dt": "soon"},
		{"dt": "-1s"},
	} {
		resp := doRequest(t, http.MethodPost, ts.URL+"/v1/advance", jsonBody(t, body), "")
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %v", body)
	}
}

func TestAPI_SetModeAndAutoStep(t *testing.T) {
	ts, runner := newTestServer(t, "")
	addActor(t, ts, models.ActorStaff, "lobby")

	resp := doRequest(t, http.MethodPost, ts.URL+"/v1/auto-step", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "auto-step needs auto drive")

	resp = doRequest(t, http.MethodPost, ts.URL+"/v1/mode", jsonBody(t, map[string]string{"sim": "traditional", "drive": "auto"}), "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.Mode{Sim: models.ModeTraditional, Drive: models.DriveAuto}, runner.Snapshot().Mode)

	resp = doRequest(t, http.MethodPost, ts.URL+"/v1/auto-step", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "emergency_room", runner.Snapshot().Actors[0].Room)

	resp = doRequest(t, http.MethodPost, ts.URL+"/v1/mode", jsonBody(t, map[string]string{"sim": "lucky", "drive": "auto"}), "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Events(t *testing.T) {
	ts, _ := newTestServer(t, "")
	addActor(t, ts, models.ActorStaff, "lobby")
	addActor(t, ts, models.ActorDoctor, "lobby")

	type events struct {
		Entries []activity.Entry `json:"entries"`
		Lines   []string         `json:"lines"`
	}
	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/events", nil, "")
	all := decode[events](t, resp)
	require.Len(t, all.Entries, 4, "each added actor enters its room")
	assert.Equal(t, "[00:00:00] [PRED] [MAN] S000 entered lobby", all.Lines[0])
	assert.Equal(t, "[00:00:00] [PRED] [MAN] Added staff S000 in lobby", all.Lines[1])

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/events?limit=1", nil, "")
	last := decode[events](t, resp)
	require.Len(t, last.Entries, 1)
	assert.Equal(t, models.EventActorAdded, last.Entries[0].Kind)
	assert.Contains(t, last.Lines[0], "D000")

	resp = doRequest(t, http.MethodGet, ts.URL+"/v1/events?limit=0", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Predictions(t *testing.T) {
	ts, runner := newTestServer(t, "")
	id := addActor(t, ts, models.ActorDoctor, "lobby")
	_, err := runner.RequestMove(id, "icu")
	require.NoError(t, err)
	runner.Advance(time.Second)

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/predictions", nil, "")
	var out struct {
		Stats prediction.Stats  `json:"stats"`
		Edges []prediction.Edge `json:"edges"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.Equal(t, 1, out.Stats.Observations)
	require.Len(t, out.Edges, 1)
	assert.Equal(t, "type:doctor", out.Edges[0].Key)
}
