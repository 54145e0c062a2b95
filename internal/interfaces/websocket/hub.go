// Package websocket pushes map state changes to connected browsers: the
// selection, the highlight, the camera position and the fleet version.
// Clients may stream viewport changes back and receive cluster layouts.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	defaultSendBuffer    = 64
	defaultFrameInterval = 16 * time.Millisecond
	maxInboundMessage    = 4096
)

// Event types.
const (
	EventHello     = "hello"
	EventSelection = "selection"
	EventHighlight = "highlight"
	EventCamera    = "camera"
	EventFleet     = "fleet"
	EventClusters  = "clusters"
	EventError     = "error"
)

// Event is one pushed message.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	At   time.Time   `json:"at"`
}

// Recorder receives connection and message metrics.
type Recorder interface {
	RecordWSConnection(delta int)
	RecordWSMessage(msgType string)
}

// Option configures a Hub.
type Option func(*Hub)

// WithAllowedOrigins restricts the Origin header of upgrade requests.  An
// empty list or "*" accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) { h.origins = origins }
}

// WithRecorder attaches metrics.
func WithRecorder(r Recorder) Option {
	return func(h *Hub) { h.rec = r }
}

// WithClock replaces the wall clock used to stamp events.
func WithClock(c common.Clock) Option {
	return func(h *Hub) { h.clock = c }
}

// WithGreeting sets the events sent to each client right after it connects,
// ahead of any broadcast.
func WithGreeting(fn func() []Event) Option {
	return func(h *Hub) { h.greeting = fn }
}

// WithSendBuffer sets the per-client queue length.  A client whose queue is
// full is disconnected.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

type client struct {
	conn *gws.Conn
	send chan []byte
	once sync.Once

	// viewports is created on the first viewport message and only touched
	// by the read loop.
	viewports *viewportStream
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans events out to every connected client.  It implements
// http.Handler for the upgrade endpoint.
type Hub struct {
	upgrader   gws.Upgrader
	origins    []string
	rec        Recorder
	clock      common.Clock
	greeting   func() []Event
	sendBuffer int
	logger     logging.Logger

	clusters ClusterSource
	frame    atomic.Int64

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewHub creates a hub.
func NewHub(logger logging.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	h := &Hub{
		clock:      common.SystemClock(),
		sendBuffer: defaultSendBuffer,
		logger:     logger.Named("websocket"),
		clients:    make(map[*client]struct{}),
	}
	h.frame.Store(int64(defaultFrameInterval))
	for _, o := range opts {
		o(h)
	}
	h.upgrader = gws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	for _, o := range h.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and holds the connection until the peer
// goes away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Err(err), logging.String("remote", r.RemoteAddr))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.sendBuffer)}

	// Greeting goes first so a client never sees a broadcast before it.
	for _, ev := range h.greet() {
		if data, err := h.encode(ev); err == nil {
			c.send <- data
			h.record(ev.Type)
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.wg.Add(1)
	h.mu.Unlock()

	if h.rec != nil {
		h.rec.RecordWSConnection(1)
	}
	h.logger.Info("websocket client connected",
		logging.String("remote", r.RemoteAddr), logging.Int("clients", total))

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) greet() []Event {
	if h.greeting == nil {
		return nil
	}
	evs := h.greeting()
	if len(evs) > h.sendBuffer {
		evs = evs[:h.sendBuffer]
	}
	return evs
}

// readLoop dispatches inbound frames and keeps the read deadline alive.
func (h *Hub) readLoop(c *client) {
	defer func() {
		if c.viewports != nil {
			c.viewports.debouncer.Stop()
		}
		h.drop(c)
	}()
	c.conn.SetReadLimit(maxInboundMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if typ == gws.TextMessage {
			h.handleMessage(c, data)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(gws.CloseMessage,
					gws.FormatCloseMessage(gws.CloseGoingAway, "server closing"))
				return
			}
			if err := c.conn.WriteMessage(gws.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drop unregisters c.  It is safe to call more than once.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	c.close()
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if h.rec != nil {
		h.rec.RecordWSConnection(-1)
	}
	h.logger.Info("websocket client disconnected", logging.Int("clients", total))
	h.wg.Done()
}

func (h *Hub) encode(ev Event) ([]byte, error) {
	if ev.At.IsZero() {
		ev.At = h.clock.Now()
	}
	return json.Marshal(ev)
}

func (h *Hub) record(typ string) {
	if h.rec != nil {
		h.rec.RecordWSMessage(typ)
	}
}

// Broadcast queues ev for every client.  Clients that cannot keep up are
// disconnected rather than allowed to stall the others.
func (h *Hub) Broadcast(ev Event) {
	data, err := h.encode(ev)
	if err != nil {
		h.logger.Error("websocket event encode failed", logging.String("type", ev.Type), logging.Err(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.record(ev.Type)
	for _, c := range slow {
		h.logger.Warn("websocket client too slow; disconnecting")
		// Closing the socket unblocks readLoop, which drops the client.
		c.conn.Close()
	}
}

// Publish is Broadcast for a bare payload.
func (h *Hub) Publish(typ string, data interface{}) {
	h.Broadcast(Event{Type: typ, Data: data})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close sends a close frame to every client, waits for their connections to
// end and refuses new upgrades.  Send queues are closed only under the write
// lock.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		c.close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

//Personal.AI order the ending
