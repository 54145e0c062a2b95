package websocket

import (
	"context"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/highlight"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/selection"
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// FleetUpdate is the payload of a fleet event.
type FleetUpdate struct {
	Version uint64      `json:"version"`
	Stats   fleet.Stats `json:"stats"`
}

// HighlightUpdate is the payload of a highlight event.  State is nil once
// the highlight is cleared or expires.
type HighlightUpdate struct {
	State   *highlight.State `json:"state"`
	Expired bool             `json:"expired,omitempty"`
}

// Hello is the payload of the greeting event.
type Hello struct {
	Selection selection.Selection `json:"selection"`
	State     selection.State     `json:"state"`
	Highlight *highlight.State    `json:"highlight"`
	Camera    selection.View      `json:"camera"`
	Fleet     FleetUpdate         `json:"fleet"`
}

// Sources is the live state a greeting describes.
type Sources struct {
	Store     *fleet.Store
	Selection *selection.Coordinator
	Highlight *highlight.Broadcaster
	Camera    *selection.ViewCamera
	Clock     common.Clock
}

// Greeting returns a WithGreeting source describing the current map state.
func Greeting(src Sources) func() []Event {
	clock := src.Clock
	if clock == nil {
		clock = common.SystemClock()
	}
	return func() []Event {
		snap := src.Store.Snapshot()
		hello := Hello{
			Fleet: FleetUpdate{Version: snap.Version(), Stats: snap.Stats(clock.Now())},
		}
		if src.Selection != nil {
			hello.Selection = src.Selection.Current()
			hello.State = hello.Selection.State()
		}
		if src.Highlight != nil {
			if st, ok := src.Highlight.Current(); ok {
				hello.Highlight = &st
			}
		}
		if src.Camera != nil {
			hello.Camera = src.Camera.View()
		}
		return []Event{{Type: EventHello, Data: hello}}
	}
}

// Bind forwards selection and highlight changes to h.  The returned func
// unsubscribes both.
func Bind(h *Hub, sel *selection.Coordinator, hl *highlight.Broadcaster) func() {
	var cancels []func()
	if sel != nil {
		cancels = append(cancels, sel.Subscribe(func(ch selection.Change) {
			h.Publish(EventSelection, ch)
		}))
	}
	if hl != nil {
		cancels = append(cancels, hl.Subscribe(func(ev highlight.Event) {
			upd := HighlightUpdate{Expired: ev.Expired}
			if !ev.Cleared {
				st := ev.State
				upd.State = &st
			}
			h.Publish(EventHighlight, upd)
		}))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// CameraListener is the onMove callback of a ViewCamera.
func CameraListener(h *Hub) func(selection.View) {
	return func(v selection.View) { h.Publish(EventCamera, v) }
}

// BindAll wires every source in src to h, camera included.
func BindAll(h *Hub, src Sources) func() {
	if src.Camera != nil {
		src.Camera.OnMove(CameraListener(h))
	}
	unbind := Bind(h, src.Selection, src.Highlight)
	return func() {
		unbind()
		if src.Camera != nil {
			src.Camera.OnMove(nil)
		}
	}
}

// FeedFleet pushes a fleet event for every store version until ctx ends or
// the returned stop func is called.  The subscription is live on return.
func FeedFleet(ctx context.Context, h *Hub, store *fleet.Store, clock common.Clock) (stop func()) {
	if clock == nil {
		clock = common.SystemClock()
	}
	versions, cancel := store.Subscribe(4)
	ctx, done := context.WithCancel(ctx)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-versions:
				if !ok {
					return
				}
				snap := store.Snapshot()
				h.Publish(EventFleet, FleetUpdate{Version: snap.Version(), Stats: snap.Stats(clock.Now())})
			}
		}
	}()
	return func() {
		done()
		<-finished
		cancel()
	}
}

//Personal.AI order the ending
