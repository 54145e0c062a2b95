// Package highlight broadcasts a transient, time-boxed emphasis over a set of
// entity ids.  Highlighting never changes the selection.
package highlight

import (
	"sort"
	"sync"
	"time"

	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// State is the active highlight.
type State struct {
	Kind      common.EntityKind `json:"kind"`
	IDs       []string          `json:"ids"`
	ExpiresAt time.Time         `json:"expires_at"`
	Seq       uint64            `json:"seq"`
}

// Contains reports whether (kind, id) is highlighted.
func (s State) Contains(kind common.EntityKind, id string) bool {
	if s.Kind != kind {
		return false
	}
	for _, v := range s.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// Event is delivered on set and on clear.  Cleared events carry the state
// that was removed.
type Event struct {
	State   State `json:"state"`
	Cleared bool  `json:"cleared"`
	Expired bool  `json:"expired"`
}

// Broadcaster owns the highlight state.  A new Highlight replaces the
// current one and restarts the timer; the timer clears unconditionally.
type Broadcaster struct {
	clock  common.Clock
	logger logging.Logger

	mu     sync.Mutex
	ttl    time.Duration
	cur    *State
	timer  common.Timer
	seq    uint64
	subs   map[int]func(Event)
	nextID int
}

// NewBroadcaster creates a broadcaster whose highlights last ttl.
func NewBroadcaster(clock common.Clock, ttl time.Duration, logger logging.Logger) *Broadcaster {
	if clock == nil {
		clock = common.SystemClock()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Broadcaster{
		clock:  clock,
		ttl:    ttl,
		logger: logger.Named("highlight"),
		subs:   make(map[int]func(Event)),
	}
}

// SetTTL changes the lifetime of subsequent highlights.
func (b *Broadcaster) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	b.mu.Lock()
	b.ttl = ttl
	b.mu.Unlock()
}

// Highlight emphasizes ids of kind.  Duplicate ids are dropped, order is
// kept.
func (b *Broadcaster) Highlight(kind common.EntityKind, ids []string) (State, error) {
	switch kind {
	case common.KindTracker, common.KindFacility, common.KindAlert:
	default:
		return State{}, errors.Newf(errors.ErrCodeInvalidEntityKind, "cannot highlight entity kind %q", kind)
	}
	uniq := dedupe(ids)
	if len(uniq) == 0 {
		return State{}, errors.New(errors.ErrCodeHighlightEmpty, "highlight needs at least one id")
	}

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.seq++
	seq := b.seq
	st := State{Kind: kind, IDs: uniq, ExpiresAt: b.clock.Now().Add(b.ttl), Seq: seq}
	b.cur = &st
	b.timer = b.clock.AfterFunc(b.ttl, func() { b.expire(seq) })
	b.mu.Unlock()

	b.logger.Debug("highlight set",
		logging.String("kind", string(kind)), logging.Int("ids", len(uniq)), logging.Uint64("seq", seq))
	b.publish(Event{State: st.clone()})
	return st.clone(), nil
}

// Current returns the active highlight, if any.
func (b *Broadcaster) Current() (State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return State{}, false
	}
	return b.cur.clone(), true
}

// IsHighlighted reports whether (kind, id) is currently emphasized.
func (b *Broadcaster) IsHighlighted(kind common.EntityKind, id string) bool {
	st, ok := b.Current()
	return ok && st.Contains(kind, id)
}

// Clear removes the highlight now.
func (b *Broadcaster) Clear() {
	b.mu.Lock()
	st := b.take()
	b.mu.Unlock()
	if st != nil {
		b.publish(Event{State: *st, Cleared: true})
	}
}

func (b *Broadcaster) expire(seq uint64) {
	b.mu.Lock()
	if b.cur == nil || b.cur.Seq != seq {
		b.mu.Unlock()
		return
	}
	st := b.take()
	b.mu.Unlock()

	b.logger.Debug("highlight expired", logging.Uint64("seq", seq))
	b.publish(Event{State: *st, Cleared: true, Expired: true})
}

// take must be called with mu held.
func (b *Broadcaster) take() *State {
	st := b.cur
	b.cur = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return st
}

// Subscribe registers fn for every event and returns a cancel func.
func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Broadcaster) publish(ev Event) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s State) clone() State {
	s.IDs = append([]string(nil), s.IDs...)
	return s
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

//Personal.AI order the ending
