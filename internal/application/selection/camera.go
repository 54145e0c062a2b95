package selection

import (
	"context"
	"math"
	"sync"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// Camera is the imperative map control surface.  The core depends only on
// these commands, not on a tiling vendor.
type Camera interface {
	SetView(ctx context.Context, center common.Coordinate, zoom float64) error
	ZoomIn(ctx context.Context) error
	ZoomOut(ctx context.Context) error
	ResetView(ctx context.Context) error
}

// View is the camera position.
type View struct {
	Center common.Coordinate `json:"center"`
	Zoom   float64           `json:"zoom"`
}

// ViewCamera is the server-side camera.  It tracks the view pushed to
// clients and reports every move to its listener.  While detached (no
// renderer connected) every command fails with MAP_002.
type ViewCamera struct {
	mu       sync.Mutex
	view     View
	home     View
	minZoom  float64
	maxZoom  float64
	attached bool
	onMove   func(View)
}

// NewViewCamera starts at the configured home view, attached.
func NewViewCamera(m config.MapConfig, onMove func(View)) *ViewCamera {
	home := View{Center: common.Coordinate{Lat: m.DefaultLat, Lng: m.DefaultLng}, Zoom: m.DefaultZoom}
	return &ViewCamera{
		view:     home,
		home:     home,
		minZoom:  m.MinZoom,
		maxZoom:  m.MaxZoom,
		attached: true,
		onMove:   onMove,
	}
}

// View returns the current position.
func (c *ViewCamera) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Attach and Detach track whether a renderer is present.
func (c *ViewCamera) Attach() { c.setAttached(true) }

// Detach makes every command fail until Attach.
func (c *ViewCamera) Detach() { c.setAttached(false) }

func (c *ViewCamera) setAttached(v bool) {
	c.mu.Lock()
	c.attached = v
	c.mu.Unlock()
}

// OnMove replaces the move listener.
func (c *ViewCamera) OnMove(fn func(View)) {
	c.mu.Lock()
	c.onMove = fn
	c.mu.Unlock()
}

// SetView moves to center at zoom, clamped to the zoom range.
func (c *ViewCamera) SetView(_ context.Context, center common.Coordinate, zoom float64) error {
	if !center.Valid() {
		return errors.Newf(errors.ErrCodeViewportInvalid, "invalid camera center %v", center)
	}
	return c.move(func(v View) View { return View{Center: center, Zoom: zoom} })
}

// ZoomIn moves one zoom level closer.
func (c *ViewCamera) ZoomIn(context.Context) error {
	return c.move(func(v View) View { v.Zoom = math.Floor(v.Zoom) + 1; return v })
}

// ZoomOut moves one zoom level away.
func (c *ViewCamera) ZoomOut(context.Context) error {
	return c.move(func(v View) View { v.Zoom = math.Ceil(v.Zoom) - 1; return v })
}

// ResetView returns to the home view.
func (c *ViewCamera) ResetView(context.Context) error {
	return c.move(func(View) View { return c.home })
}

func (c *ViewCamera) move(next func(View) View) error {
	c.mu.Lock()
	if !c.attached {
		c.mu.Unlock()
		return errors.New(errors.ErrCodeCameraUnavailable, "map renderer is not attached")
	}
	v := next(c.view)
	v.Zoom = math.Max(c.minZoom, math.Min(c.maxZoom, v.Zoom))
	c.view = v
	onMove := c.onMove
	c.mu.Unlock()

	if onMove != nil {
		onMove(v)
	}
	return nil
}

//Personal.AI order the ending
