package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jwebster45206/verse-engine/internal/events"
	"github.com/jwebster45206/verse-engine/pkg/narrative"
	"github.com/jwebster45206/verse-engine/pkg/plot"
	"github.com/jwebster45206/verse-engine/pkg/progression"
	"github.com/jwebster45206/verse-engine/pkg/storage"
	"github.com/jwebster45206/verse-engine/pkg/trigger"
	"github.com/jwebster45206/verse-engine/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	cfg := world.DefaultConfig()
	cfg.Seed = 7
	cfg.Sites = []world.Site{
		{
			ID:    "pavilion",
			Label: "Pavilion",
			Items: []*narrative.Item{
				{ID: "dawn", Title: "春晓", PrimaryText: "春眠不觉晓", DescriptionText: "孟浩然"},
			},
		},
		{
			ID:    "bridge",
			Label: "Bridge",
			Items: []*narrative.Item{{ID: "river", PrimaryText: "江"}},
		},
	}
	cfg.Farm = &world.Farm{
		Title:   "Fields",
		Plots:   []string{"north", "south"},
		Rewards: []progression.RewardSlot{{ID: "jar"}},
	}
	cfg.Actions = []trigger.ActionConfig{{ID: "feeder", Duration: 3 * time.Second}}

	w, err := world.New("garden", cfg, nil, nil, testLogger())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	return w
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name            string
		pingErr         error
		expectedStatus  int
		expectedHealth  string
		expectedStorage string
	}{
		{
			name:            "all healthy",
			expectedStatus:  http.StatusOK,
			expectedHealth:  "healthy",
			expectedStorage: "healthy",
		},
		{
			name:            "unhealthy storage",
			pingErr:         errors.New("connection failed"),
			expectedStatus:  http.StatusServiceUnavailable,
			expectedHealth:  "degraded",
			expectedStorage: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMockStorage()
			if tt.pingErr != nil {
				store.SetPingError(tt.pingErr)
			}
			handler := NewHealthHandler(store, newTestWorld(t), testLogger())

			rec := do(t, handler, http.MethodGet, "/health", "")
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			resp := decode[HealthResponse](t, rec)
			assert.Equal(t, tt.expectedHealth, resp.Status)
			assert.Equal(t, "verse-engine", resp.Service)
			assert.Equal(t, "garden", resp.WorldID)
			assert.Equal(t, tt.expectedStorage, resp.Components["storage"])
			assert.Equal(t, false, resp.Components["session_active"])
			assert.Equal(t, "leader", resp.Components["role"])
		})
	}
}

func TestSitesHandler(t *testing.T) {
	w := newTestWorld(t)
	h := NewSitesHandler(w, testLogger())

	rec := do(t, h, http.MethodGet, "/v1/sites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sites := decode[[]trigger.GateStatus](t, rec)
	require.Len(t, sites, 2)
	assert.Equal(t, "pavilion", sites[0].ID)
	assert.True(t, sites[0].Enabled)

	rec = do(t, h, http.MethodPost, "/v1/sites/pavilion/present", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, PresentResponse{SiteID: "pavilion", Started: true}, decode[PresentResponse](t, rec))

	// one session at a time
	rec = do(t, h, http.MethodPost, "/v1/sites/bridge/present", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[PresentResponse](t, rec).Started)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "unknown site", method: http.MethodPost, path: "/v1/sites/moon/present", status: http.StatusNotFound},
		{name: "wrong method", method: http.MethodDelete, path: "/v1/sites", status: http.StatusMethodNotAllowed},
		{name: "unknown route", method: http.MethodGet, path: "/v1/sites/a/b/c", status: http.StatusNotFound},
		{name: "missing enabled", method: http.MethodPut, path: "/v1/sites/bridge/enabled", body: `{}`, status: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPut, path: "/v1/sites/bridge/enabled", body: `{"open":true}`, status: http.StatusBadRequest},
		{name: "enable unknown", method: http.MethodPut, path: "/v1/sites/moon/enabled", body: `{"enabled":true}`, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec = do(t, h, http.MethodPut, "/v1/sites/bridge/enabled", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[trigger.GateStatus](t, rec)
	assert.Equal(t, "bridge", st.ID)
	assert.True(t, st.Held)
	assert.False(t, st.Enabled)
}

func TestSessionHandler(t *testing.T) {
	w := newTestWorld(t)
	h := NewSessionHandler(w, testLogger())

	rec := do(t, h, http.MethodGet, "/v1/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[SessionResponse](t, rec).Active)

	rec = do(t, h, http.MethodPost, "/v1/session/mode", `{"view":"description"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ModeResponse](t, rec).Switched, "no session to switch")

	started, err := w.RequestPresentation("pavilion")
	require.NoError(t, err)
	require.True(t, started)

	rec = do(t, h, http.MethodGet, "/v1/session", "")
	resp := decode[SessionResponse](t, rec)
	assert.True(t, resp.Active)
	assert.Equal(t, "dawn", resp.ItemID)
	assert.True(t, resp.HasDesc)

	rec = do(t, h, http.MethodPost, "/v1/session/mode", `{"view":"description"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	mode := decode[ModeResponse](t, rec)
	assert.True(t, mode.Switched)
	assert.Equal(t, "description", mode.View.String())

	rec = do(t, h, http.MethodPost, "/v1/session/mode", `{"view":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/v1/session", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPlotsHandler(t *testing.T) {
	w := newTestWorld(t)
	h := NewPlotsHandler(w, testLogger())

	rec := do(t, h, http.MethodGet, "/v1/plots", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]plot.State](t, rec), 2)

	rec = do(t, h, http.MethodPost, "/v1/plots/north/work", `{"tool":"rake"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[plot.State](t, rec).Stage)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "cooling down", path: "/v1/plots/north/work", body: `{"tool":"rake"}`, status: http.StatusTooManyRequests},
		{name: "wrong tool", path: "/v1/plots/north/work", body: `{"tool":"hoe"}`, status: http.StatusBadRequest},
		{name: "unknown plot", path: "/v1/plots/east/work", body: `{"tool":"rake"}`, status: http.StatusNotFound},
		{name: "malformed body", path: "/v1/plots/north/work", body: `{`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec = do(t, h, http.MethodPost, "/v1/plots/south/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[CompleteResponse](t, rec).Completed)

	rec = do(t, h, http.MethodPost, "/v1/plots/south/complete", "")
	assert.False(t, decode[CompleteResponse](t, rec).Completed)

	w.Advance(time.Second)
	rec = do(t, h, http.MethodPost, "/v1/plots/south/work", `{"tool":"rake"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestActionsHandler(t *testing.T) {
	w := newTestWorld(t)
	h := NewActionsHandler(w, testLogger())

	rec := do(t, h, http.MethodGet, "/v1/actions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	actions := decode[[]trigger.ActionStatus](t, rec)
	require.Len(t, actions, 1)
	assert.True(t, actions[0].Allowed)

	rec = do(t, h, http.MethodPost, "/v1/actions/feeder", "")
	assert.True(t, decode[ActionResponse](t, rec).Started)

	rec = do(t, h, http.MethodPost, "/v1/actions/feeder", "")
	assert.False(t, decode[ActionResponse](t, rec).Started, "already running")

	rec = do(t, h, http.MethodPost, "/v1/actions/sprinkler", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorldHandler(t *testing.T) {
	w := newTestWorld(t)
	h := NewWorldHandler(w, testLogger())

	rec := do(t, h, http.MethodGet, "/v1/environment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"season"`)

	require.True(t, w.NotifyPlotCompleted("north"))
	rec = do(t, h, http.MethodGet, "/v1/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decode[world.ProgressView](t, rec)
	assert.Equal(t, 1, progress.Completed)
	assert.Equal(t, 2, progress.Tracked)

	rec = do(t, h, http.MethodGet, "/v1/world", "")
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[WorldResponse](t, rec)
	assert.Equal(t, "garden", overview.ID)
	assert.False(t, overview.Session.Active)

	rec = do(t, h, http.MethodPost, "/v1/world", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEventsHandler_StreamsWorldEvents(t *testing.T) {
	bus := events.NewBus()
	server := httptest.NewServer(NewEventsHandler(bus, "garden", testLogger()))
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}

	name, data := readEvent()
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, "garden")

	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type:    events.EventTypeTitleChanged,
		WorldID: "garden",
		Data:    map[string]any{"title": "春晓"},
	}))
	name, data = readEvent()
	assert.Equal(t, string(events.EventTypeTitleChanged), name)
	assert.Contains(t, data, "春晓")
}

func TestTypeFilter(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		typ   events.EventType
		match bool
	}{
		{"empty matches all", "", events.EventTypeTextRendered, true},
		{"exact", "text.title_changed", events.EventTypeTitleChanged, true},
		{"group", "audio", events.EventTypeNarration, true},
		{"group does not match sibling text", "audio", events.EventTypeTextRendered, false},
		{"partial word is not a group", "aud", events.EventTypeNarration, false},
		{"list with spaces", "visual, audio", events.EventTypeRewardRevealed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, typeFilter(tt.raw)(tt.typ))
		})
	}
}

func TestEventsHandler_RejectsPost(t *testing.T) {
	h := NewEventsHandler(events.NewBus(), "garden", testLogger())
	rec := do(t, h, http.MethodPost, "/v1/events", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStreamHandler_CommandsAndEvents(t *testing.T) {
	w := newTestWorld(t)
	bus := events.NewBus()
	server := httptest.NewServer(RequestLogger(testLogger(), NewStreamHandler(w, bus, testLogger())))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/v1/stream", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	readResult := func() CommandResult {
		for {
			var msg StreamMessage
			require.NoError(t, conn.ReadJSON(&msg))
			if msg.Result != nil {
				return *msg.Result
			}
		}
	}

	require.NoError(t, conn.WriteJSON(Command{Type: "present", SiteID: "pavilion"}))
	res := readResult()
	assert.Equal(t, "present", res.Type)
	assert.True(t, res.OK)
	assert.True(t, w.QueryIsSessionActive())

	require.NoError(t, conn.WriteJSON(Command{Type: "work", PlotID: "north", Tool: "shovel"}))
	res = readResult()
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "wrong tool")

	require.NoError(t, conn.WriteJSON(Command{Type: "dance"}))
	assert.Equal(t, "unknown command", readResult().Error)

	require.Eventually(t, func() bool { return bus.Subscribers("garden") == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.EventTypeOneShot, WorldID: "garden"}))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.NotNil(t, msg.Event)
	assert.Equal(t, events.EventTypeOneShot, msg.Event.Type)
}

func TestStreamHandler_StandbyRejectsCommands(t *testing.T) {
	w := newTestWorld(t)
	w.Follow()
	server := httptest.NewServer(NewStreamHandler(w, events.NewBus(), testLogger()))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(Command{Type: "complete", PlotID: "north"}))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.NotNil(t, msg.Result)
	assert.False(t, msg.Result.OK)
	assert.Equal(t, "replica on standby", msg.Result.Error)
	assert.Zero(t, w.Progress().Completed)
}

func TestStreamHandler_ReadPumpStopsWithWriter(t *testing.T) {
	w := newTestWorld(t)
	h := NewStreamHandler(w, events.NewBus(), testLogger())
	readDone := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// the writer has already gone and nobody drains results
		writeDone := make(chan struct{})
		close(writeDone)
		h.readPump(conn, make(chan CommandResult), readDone, writeDone)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Command{Type: "present", SiteID: "pavilion"}))
	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("read pump blocked on an undelivered result")
	}
}

func TestRequireLeader(t *testing.T) {
	w := newTestWorld(t)
	h := RequireLeader(w, testLogger(), NewPlotsHandler(w, testLogger()))

	rec := do(t, h, http.MethodPost, "/v1/plots/north/work", `{"tool":"rake"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	w.Follow()
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "reads still served", method: http.MethodGet, path: "/v1/plots", status: http.StatusOK},
		{name: "work rejected", method: http.MethodPost, path: "/v1/plots/north/work", body: `{"tool":"rake"}`, status: http.StatusServiceUnavailable},
		{name: "complete rejected", method: http.MethodPost, path: "/v1/plots/south/complete", status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	rec = do(t, h, http.MethodPost, "/v1/plots/south/complete", "")
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "standby")
	assert.Zero(t, w.Progress().Completed)

	require.NoError(t, w.Lead(context.Background()))
	rec = do(t, h, http.MethodPost, "/v1/plots/south/complete", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	h := RequestLogger(testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))
}
