package clustering

import (
	"sync"
	"time"

	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// ViewportDebouncer coalesces bursts of viewport changes.  The first Submit
// arms a timer for one frame interval; further submits within that frame only
// replace the pending viewport.  When the timer fires the latest viewport is
// handed to the callback, so a gesture triggers at most one recomputation per
// frame.
type ViewportDebouncer struct {
	clock    common.Clock
	interval time.Duration
	fn       func(Viewport)

	mu      sync.Mutex
	pending *Viewport
	timer   common.Timer
	stopped bool
}

// NewViewportDebouncer calls fn with the latest viewport once per interval.
func NewViewportDebouncer(clock common.Clock, interval time.Duration, fn func(Viewport)) *ViewportDebouncer {
	if clock == nil {
		clock = common.SystemClock()
	}
	return &ViewportDebouncer{clock: clock, interval: interval, fn: fn}
}

// Submit records vp as the latest viewport.
func (d *ViewportDebouncer) Submit(vp Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = &vp
	if d.timer == nil {
		d.timer = d.clock.AfterFunc(d.interval, d.flush)
	}
}

func (d *ViewportDebouncer) flush() {
	d.mu.Lock()
	vp := d.pending
	d.pending = nil
	d.timer = nil
	stopped := d.stopped
	d.mu.Unlock()

	if vp != nil && !stopped {
		d.fn(*vp)
	}
}

// Stop drops any pending viewport and rejects further submits.
func (d *ViewportDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

//Personal.AI order the ending
