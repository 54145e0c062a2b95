package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/clustering"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/highlight"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/selection"
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/testutil"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

type recordingWS struct {
	mu       sync.Mutex
	conns    int
	messages map[string]int
}

func (r *recordingWS) RecordWSConnection(delta int) {
	r.mu.Lock()
	r.conns += delta
	r.mu.Unlock()
}

func (r *recordingWS) RecordWSMessage(typ string) {
	r.mu.Lock()
	if r.messages == nil {
		r.messages = make(map[string]int)
	}
	r.messages[typ]++
	r.mu.Unlock()
}

func (r *recordingWS) connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns
}

func (r *recordingWS) sent(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[typ]
}

type rawEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	At   time.Time       `json:"at"`
}

type mapState struct {
	clock  *testutil.FakeClock
	store  *fleet.Store
	camera *selection.ViewCamera
	sel    *selection.Coordinator
	hl     *highlight.Broadcaster
}

func newMapState() *mapState {
	clk := testutil.NewFakeClock(testutil.Epoch)
	store := testutil.Store(
		[]fleet.Tracker{testutil.Tracker("T1", 41.88, -87.63)},
		[]fleet.Facility{testutil.Facility("F1", 41.88, -87.63)},
		nil,
	)
	mapCfg := testutil.MapConfig()
	camera := selection.NewViewCamera(mapCfg, nil)
	return &mapState{
		clock:  clk,
		store:  store,
		camera: camera,
		sel:    selection.NewCoordinator(store, camera, mapCfg.FocusZoom, nil),
		hl:     highlight.NewBroadcaster(clk, mapCfg.HighlightTTL, nil),
	}
}

func (m *mapState) sources() Sources {
	return Sources{Store: m.store, Selection: m.sel, Highlight: m.hl, Camera: m.camera, Clock: m.clock}
}

func startHub(t *testing.T, h *Hub) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *gws.Conn {
	t.Helper()
	conn, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func next(t *testing.T, conn *gws.Conn) rawEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev rawEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_GreetsWithCurrentState(t *testing.T) {
	m := newMapState()
	_, err := m.sel.Select(context.Background(), common.KindTracker, "T1")
	require.NoError(t, err)

	h := NewHub(nil, WithClock(m.clock), WithGreeting(Greeting(m.sources())))
	conn := dial(t, startHub(t, h))

	ev := next(t, conn)
	assert.Equal(t, EventHello, ev.Type)
	assert.True(t, ev.At.Equal(testutil.Epoch))

	var hello Hello
	require.NoError(t, json.Unmarshal(ev.Data, &hello))
	assert.Equal(t, selection.TrackerSelected, hello.State)
	assert.Equal(t, "T1", hello.Selection.ID)
	assert.Nil(t, hello.Highlight)
	assert.Equal(t, m.camera.View(), hello.Camera)
	assert.Equal(t, m.store.Snapshot().Version(), hello.Fleet.Version)
	assert.Equal(t, 1, hello.Fleet.Stats.ActiveTrackers)
}

func TestHub_ForwardsMapChanges(t *testing.T) {
	m := newMapState()
	rec := &recordingWS{}
	h := NewHub(testutil.NewMockLogger(), WithClock(m.clock), WithRecorder(rec), WithGreeting(Greeting(m.sources())))
	unbind := BindAll(h, m.sources())
	defer unbind()

	conn := dial(t, startHub(t, h))
	require.Equal(t, EventHello, next(t, conn).Type)
	assert.Equal(t, 1, h.ClientCount())
	assert.Equal(t, 1, rec.connections())

	_, err := m.sel.Select(context.Background(), common.KindFacility, "F1")
	require.NoError(t, err)

	ev := next(t, conn)
	require.Equal(t, EventSelection, ev.Type)
	var change selection.Change
	require.NoError(t, json.Unmarshal(ev.Data, &change))
	assert.Equal(t, "F1", change.Current.ID)
	assert.True(t, change.Previous.IsNone())

	// Selecting centers the camera after publishing the change.
	ev = next(t, conn)
	require.Equal(t, EventCamera, ev.Type)
	var view selection.View
	require.NoError(t, json.Unmarshal(ev.Data, &view))
	assert.Equal(t, common.Coordinate{Lat: 41.88, Lng: -87.63}, view.Center)

	_, err = m.hl.Highlight(common.KindTracker, []string{"T1"})
	require.NoError(t, err)
	ev = next(t, conn)
	require.Equal(t, EventHighlight, ev.Type)
	var upd HighlightUpdate
	require.NoError(t, json.Unmarshal(ev.Data, &upd))
	require.NotNil(t, upd.State)
	assert.Equal(t, []string{"T1"}, upd.State.IDs)

	m.clock.Advance(testutil.MapConfig().HighlightTTL)
	ev = next(t, conn)
	require.Equal(t, EventHighlight, ev.Type)
	upd = HighlightUpdate{}
	require.NoError(t, json.Unmarshal(ev.Data, &upd))
	assert.Nil(t, upd.State)
	assert.True(t, upd.Expired)

	assert.Equal(t, 1, rec.sent(EventSelection))
	assert.Equal(t, 2, rec.sent(EventHighlight))
}

func TestFeedFleet(t *testing.T) {
	m := newMapState()
	h := NewHub(nil, WithClock(m.clock))
	conn := dial(t, startHub(t, h))
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	stop := FeedFleet(context.Background(), h, m.store, m.clock)
	defer stop()

	v := m.store.ReplaceAlerts(nil).Version()
	ev := next(t, conn)
	require.Equal(t, EventFleet, ev.Type)
	var upd FleetUpdate
	require.NoError(t, json.Unmarshal(ev.Data, &upd))
	assert.Equal(t, v, upd.Version)
}

func viewportMsg(zoom float64, kinds ...string) map[string]interface{} {
	return map[string]interface{}{
		"type": MessageViewport,
		"data": map[string]interface{}{
			"bounds": common.Bounds{South: 41, West: -89, North: 43, East: -86},
			"zoom":   zoom,
			"kinds":  kinds,
		},
	}
}

func TestHub_ViewportChangesCoalescedPerFrame(t *testing.T) {
	m := newMapState()
	engine := clustering.NewEngine(m.store, testutil.MapConfig(), nil)
	rec := &recordingWS{}
	h := NewHub(nil, WithClock(m.clock), WithRecorder(rec), WithViewports(engine, 16*time.Millisecond))
	conn := dial(t, startHub(t, h))
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	for _, z := range []float64{10, 11, 12} {
		require.NoError(t, conn.WriteJSON(viewportMsg(z, "trackers")))
	}
	// Rejected synchronously, so the three viewports above are already queued.
	require.NoError(t, conn.WriteJSON(viewportMsg(13, "drone")))
	ev := next(t, conn)
	require.Equal(t, EventError, ev.Type)
	var notice ErrorNotice
	require.NoError(t, json.Unmarshal(ev.Data, &notice))
	assert.Equal(t, "FLT_005", string(notice.Code))
	assert.Equal(t, uint64(0), engine.Recomputes())

	m.clock.Advance(16 * time.Millisecond)
	ev = next(t, conn)
	require.Equal(t, EventClusters, ev.Type)
	var upd ClusterUpdate
	require.NoError(t, json.Unmarshal(ev.Data, &upd))
	assert.Equal(t, 12.0, upd.Viewport.Zoom)
	require.Len(t, upd.Nodes, 1)
	nodes := upd.Nodes[common.KindTracker]
	require.Len(t, nodes, 1)
	assert.Equal(t, "T1", nodes[0].ID)
	assert.Equal(t, uint64(1), engine.Recomputes())
	assert.Equal(t, 1, rec.sent(EventClusters))

	m.clock.Advance(time.Second)
	assert.Equal(t, uint64(1), engine.Recomputes(), "no new viewport, no recompute")
}

func TestHub_ViewportRejectsBadBounds(t *testing.T) {
	m := newMapState()
	engine := clustering.NewEngine(m.store, testutil.MapConfig(), nil)
	h := NewHub(nil, WithClock(m.clock), WithViewports(engine, 16*time.Millisecond))
	conn := dial(t, startHub(t, h))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": MessageViewport,
		"data": map[string]interface{}{"bounds": common.Bounds{South: 43, North: 41}, "zoom": 5},
	}))
	ev := next(t, conn)
	require.Equal(t, EventError, ev.Type)
	var notice ErrorNotice
	require.NoError(t, json.Unmarshal(ev.Data, &notice))
	assert.Equal(t, "MAP_001", string(notice.Code))

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("{not json")))
	ev = next(t, conn)
	require.Equal(t, EventError, ev.Type)

	assert.Zero(t, m.clock.Pending())
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	rec := &recordingWS{}
	h := NewHub(nil, WithRecorder(rec))
	url := startHub(t, h)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	h.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, gws.IsCloseError(err, gws.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, h.ClientCount())
	assert.Equal(t, 0, rec.connections())

	// Publishing after close is a no-op.
	h.Publish(EventFleet, FleetUpdate{Version: 9})

	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	h := NewHub(nil, WithAllowedOrigins([]string{"https://map.traxx.example"}))
	url := startHub(t, h)

	_, resp, err := gws.DefaultDialer.Dial(url, http.Header{"Origin": {"https://elsewhere.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := gws.DefaultDialer.Dial(url, http.Header{"Origin": {"https://map.traxx.example"}})
	require.NoError(t, err)
	conn.Close()
}

//Personal.AI order the ending
