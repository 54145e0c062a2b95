package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/clustering"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// Inbound message types.
const (
	MessageViewport = "viewport"
)

// ClusterSource computes the layout of one kind for a viewport.
type ClusterSource interface {
	Clusters(kind common.EntityKind, vp clustering.Viewport) ([]clustering.Node, error)
}

// Message is one frame sent by a client.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ViewportRequest is the payload of a viewport message.  An empty Kinds list
// asks for every kind.
type ViewportRequest struct {
	clustering.Viewport
	Kinds []common.EntityKind `json:"kinds,omitempty"`
}

// ClusterUpdate answers a viewport message with the layout of each requested
// kind.
type ClusterUpdate struct {
	Viewport clustering.Viewport                     `json:"viewport"`
	Nodes    map[common.EntityKind][]clustering.Node `json:"nodes"`
}

// ErrorNotice reports a rejected client message.
type ErrorNotice struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// WithViewports lets clients stream viewport changes.  Each client's changes
// are coalesced to at most one layout per frame, pushed back as a clusters
// event.
func WithViewports(src ClusterSource, frame time.Duration) Option {
	return func(h *Hub) {
		h.clusters = src
		h.SetFrameInterval(frame)
	}
}

// SetFrameInterval changes the coalescing window for connections opened
// afterwards.  Non-positive values are ignored.
func (h *Hub) SetFrameInterval(frame time.Duration) {
	if frame > 0 {
		h.frame.Store(int64(frame))
	}
}

// FrameInterval is the coalescing window given to new connections.
func (h *Hub) FrameInterval() time.Duration { return time.Duration(h.frame.Load()) }

// viewportStream is the per-client debouncer and the kinds of its latest
// request.
type viewportStream struct {
	debouncer *clustering.ViewportDebouncer

	mu    sync.Mutex
	kinds []common.EntityKind
}

func (s *viewportStream) setKinds(k []common.EntityKind) {
	s.mu.Lock()
	s.kinds = k
	s.mu.Unlock()
}

func (s *viewportStream) currentKinds() []common.EntityKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kinds
}

// handleMessage dispatches one inbound frame.  Unknown types are ignored.
func (h *Hub) handleMessage(c *client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.notify(c, errors.ErrCodeBadRequest, "message is not valid JSON")
		return
	}
	switch msg.Type {
	case MessageViewport:
		h.handleViewport(c, msg.Data)
	default:
		h.logger.Debug("websocket message ignored", logging.String("type", msg.Type))
	}
}

func (h *Hub) handleViewport(c *client, data json.RawMessage) {
	if h.clusters == nil {
		return
	}
	var req ViewportRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.notify(c, errors.ErrCodeViewportInvalid, "viewport payload is malformed")
		return
	}
	kinds := common.Kinds
	if len(req.Kinds) > 0 {
		kinds = make([]common.EntityKind, 0, len(req.Kinds))
		for _, k := range req.Kinds {
			kind, err := common.ParseEntityKind(string(k))
			if err != nil {
				h.notify(c, errors.ErrCodeInvalidEntityKind, err.Error())
				return
			}
			kinds = append(kinds, kind)
		}
	}
	if err := req.Bounds.Validate(); err != nil {
		h.notify(c, errors.ErrCodeViewportInvalid, err.Error())
		return
	}

	if c.viewports == nil {
		s := &viewportStream{}
		s.debouncer = clustering.NewViewportDebouncer(h.clock, h.FrameInterval(), func(vp clustering.Viewport) {
			h.pushClusters(c, vp, s.currentKinds())
		})
		c.viewports = s
	}
	c.viewports.setKinds(kinds)
	c.viewports.debouncer.Submit(req.Viewport)
}

// pushClusters computes every requested kind for vp and queues the result
// for c alone.
func (h *Hub) pushClusters(c *client, vp clustering.Viewport, kinds []common.EntityKind) {
	upd := ClusterUpdate{Viewport: vp, Nodes: make(map[common.EntityKind][]clustering.Node, len(kinds))}
	for _, k := range kinds {
		nodes, err := h.clusters.Clusters(k, vp)
		if err != nil {
			h.notify(c, errors.GetCode(err), err.Error())
			return
		}
		upd.Nodes[k] = nodes
	}
	h.sendTo(c, Event{Type: EventClusters, Data: upd})
}

func (h *Hub) notify(c *client, code errors.ErrorCode, msg string) {
	h.sendTo(c, Event{Type: EventError, Data: ErrorNotice{Code: code, Message: msg}})
}

// sendTo queues ev for c only.  A client that has left is skipped; one whose
// queue is full is disconnected.
func (h *Hub) sendTo(c *client, ev Event) {
	data, err := h.encode(ev)
	if err != nil {
		h.logger.Error("websocket event encode failed", logging.String("type", ev.Type), logging.Err(err))
		return
	}
	h.mu.RLock()
	_, live := h.clients[c]
	sent, full := false, false
	if live && !h.closed {
		select {
		case c.send <- data:
			sent = true
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	switch {
	case sent:
		h.record(ev.Type)
	case full:
		h.logger.Warn("websocket client too slow; disconnecting")
		c.conn.Close()
	}
}

//Personal.AI order the ending
