// Package clustering groups map entities into clusters and singleton markers
// for a viewport.  Grouping is a pure function of entity positions, the
// viewport and the per-kind radius; render offsets are applied afterwards in
// Layout and never feed back into the grouping.
package clustering

import (
	"fmt"
	"math"
	"sort"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/marker"
	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Inputs
// ─────────────────────────────────────────────────────────────────────────────

// GeoPoint is one map entity reduced to what clustering needs.
type GeoPoint struct {
	ID       string            `json:"id"`
	Kind     common.EntityKind `json:"kind"`
	Status   string            `json:"status"`
	Location common.Coordinate `json:"location"`
}

// Viewport is the visible map area.
type Viewport struct {
	Bounds common.Bounds `json:"bounds"`
	Zoom   float64       `json:"zoom"`
}

// Validate checks the bounds and zoom.
func (v Viewport) Validate(minZoom, maxZoom float64) error {
	if err := v.Bounds.Validate(); err != nil {
		return err
	}
	if math.IsNaN(v.Zoom) || math.IsInf(v.Zoom, 0) || v.Zoom < minZoom || v.Zoom > maxZoom {
		return fmt.Errorf("zoom %v outside [%v, %v]", v.Zoom, minZoom, maxZoom)
	}
	return nil
}

// Params are the grouping tunables for one kind.
type Params struct {
	// RadiusPx is the screen distance within which points collapse.
	RadiusPx float64
	// DisableAtZoom turns grouping off at this zoom and above.  Zero keeps
	// grouping on at every zoom.
	DisableAtZoom float64
	TileSize      float64
}

// ─────────────────────────────────────────────────────────────────────────────
// Grouping
// ─────────────────────────────────────────────────────────────────────────────

// Group is a set of same-kind points that collapse together.
type Group struct {
	Kind     common.EntityKind
	Members  []GeoPoint
	Centroid common.Coordinate
	Pixel    Point
}

// Size is the member count.
func (g Group) Size() int { return len(g.Members) }

type projected struct {
	GeoPoint
	px Point
}

// Cluster groups the points inside the viewport.  Points of different kinds
// are never grouped together.  Within a kind the points are swept in (x, y,
// id) order; each unvisited point seeds a group that absorbs every unvisited
// point within RadiusPx of it.  Identical inputs give identical groups in
// identical order.
func Cluster(points []GeoPoint, vp Viewport, p Params) []Group {
	tile := p.TileSize
	if tile <= 0 {
		tile = config.DefaultTileSize
	}

	byKind := make(map[common.EntityKind][]projected)
	for _, pt := range points {
		if !pt.Location.Valid() || !vp.Bounds.Contains(pt.Location) {
			continue
		}
		byKind[pt.Kind] = append(byKind[pt.Kind], projected{GeoPoint: pt, px: Project(pt.Location, vp.Zoom, tile)})
	}

	kinds := make([]common.EntityKind, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	grouping := p.RadiusPx > 0 && (p.DisableAtZoom <= 0 || vp.Zoom < p.DisableAtZoom)

	var out []Group
	for _, k := range kinds {
		pts := byKind[k]
		sortProjected(pts)
		if !grouping {
			for _, pt := range pts {
				out = append(out, singleton(pt))
			}
			continue
		}
		out = append(out, sweep(pts, p.RadiusPx, vp.Zoom, tile)...)
	}
	return out
}

func sortProjected(pts []projected) {
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].px.X != pts[j].px.X {
			return pts[i].px.X < pts[j].px.X
		}
		if pts[i].px.Y != pts[j].px.Y {
			return pts[i].px.Y < pts[j].px.Y
		}
		return pts[i].ID < pts[j].ID
	})
}

// sweep expects pts sorted by x; the inner scan stops once the x gap alone
// exceeds the radius.
func sweep(pts []projected, radius, zoom, tile float64) []Group {
	var groups []Group
	visited := make([]bool, len(pts))
	r2 := radius * radius

	for i, seed := range pts {
		if visited[i] {
			continue
		}
		visited[i] = true
		members := []projected{seed}

		for j := i + 1; j < len(pts); j++ {
			other := pts[j]
			if other.px.X-seed.px.X > radius {
				break
			}
			if visited[j] {
				continue
			}
			dx := other.px.X - seed.px.X
			dy := other.px.Y - seed.px.Y
			if dx*dx+dy*dy <= r2 {
				visited[j] = true
				members = append(members, other)
			}
		}

		if len(members) == 1 {
			groups = append(groups, singleton(seed))
			continue
		}
		groups = append(groups, merge(members, zoom, tile))
	}
	return groups
}

func singleton(p projected) Group {
	return Group{
		Kind:     p.Kind,
		Members:  []GeoPoint{p.GeoPoint},
		Centroid: p.Location,
		Pixel:    p.px,
	}
}

// merge builds a group whose centroid is the mean member position.
func merge(members []projected, zoom, tile float64) Group {
	g := Group{Kind: members[0].Kind, Members: make([]GeoPoint, len(members))}
	var lat, lng float64
	for i, m := range members {
		g.Members[i] = m.GeoPoint
		lat += m.Location.Lat
		lng += m.Location.Lng
	}
	n := float64(len(members))
	g.Centroid = common.Coordinate{Lat: lat / n, Lng: lng / n}
	g.Pixel = Project(g.Centroid, zoom, tile)
	return g
}

// ─────────────────────────────────────────────────────────────────────────────
// Layout
// ─────────────────────────────────────────────────────────────────────────────

// Node is one drawable map item: a cluster badge or a single marker.
type Node struct {
	ID        string            `json:"id"`
	Kind      common.EntityKind `json:"kind"`
	Cluster   bool              `json:"cluster"`
	Count     int               `json:"count"`
	MemberIDs []string          `json:"member_ids,omitempty"`
	// Location is the true position (centroid for clusters).
	Location common.Coordinate `json:"location"`
	// Render is where the marker is drawn after offsets and fan-out.
	Render common.Coordinate `json:"render"`
	Pixel  Point             `json:"pixel"`
	Style  marker.Style      `json:"style"`
}

// ClusterID is the node id of a cluster seeded by seedID.
func ClusterID(kind common.EntityKind, seedID string) string {
	return fmt.Sprintf("cluster:%s:%s", kind, seedID)
}

// Layout turns groups into drawable nodes.
type Layout struct {
	Offsets  config.KindOffset
	SpreadPx float64
	TileSize float64
}

// LayoutFromConfig reads the render tunables from the map config.
func LayoutFromConfig(m config.MapConfig) Layout {
	return Layout{Offsets: m.RenderOffset, SpreadPx: m.SpreadPx, TileSize: m.TileSize}
}

func (l Layout) offset(kind common.EntityKind) config.PixelOffset {
	switch kind {
	case common.KindTracker:
		return l.Offsets.Tracker
	case common.KindFacility:
		return l.Offsets.Facility
	case common.KindAlert:
		return l.Offsets.Alert
	}
	return config.PixelOffset{}
}

// Place applies the per-kind offset to every node and fans out same-kind
// singletons that land on the same pixel, ordered by id around a circle of
// SpreadPx.
func (l Layout) Place(groups []Group, zoom float64) []Node {
	tile := l.TileSize
	if tile <= 0 {
		tile = config.DefaultTileSize
	}

	nodes := make([]Node, len(groups))
	type spot struct {
		kind common.EntityKind
		x, y int64
	}
	stacks := make(map[spot][]int)
	var spots []spot

	for i, g := range groups {
		n := Node{
			Kind:     g.Kind,
			Count:    g.Size(),
			Location: g.Centroid,
			Pixel:    g.Pixel,
		}
		if g.Size() > 1 {
			n.Cluster = true
			n.ID = ClusterID(g.Kind, g.Members[0].ID)
			n.MemberIDs = make([]string, len(g.Members))
			for j, m := range g.Members {
				n.MemberIDs[j] = m.ID
			}
			sort.Strings(n.MemberIDs)
			n.Style = marker.ClusterBadge(g.Kind)
		} else {
			// Only singleton markers carry the per-kind offset.
			m := g.Members[0]
			off := l.offset(g.Kind)
			n.Pixel = Point{X: g.Pixel.X + off.X, Y: g.Pixel.Y + off.Y}
			n.ID = m.ID
			n.Style = marker.ResolveStyle(m.Kind, m.Status)
			s := spot{kind: g.Kind, x: int64(math.Round(g.Pixel.X)), y: int64(math.Round(g.Pixel.Y))}
			if _, seen := stacks[s]; !seen {
				spots = append(spots, s)
			}
			stacks[s] = append(stacks[s], i)
		}
		nodes[i] = n
	}

	if l.SpreadPx > 0 {
		for _, s := range spots {
			idx := stacks[s]
			if len(idx) < 2 {
				continue
			}
			sort.Slice(idx, func(a, b int) bool { return nodes[idx[a]].ID < nodes[idx[b]].ID })
			step := 2 * math.Pi / float64(len(idx))
			for k, i := range idx {
				angle := float64(k) * step
				nodes[i].Pixel.X += l.SpreadPx * math.Cos(angle)
				nodes[i].Pixel.Y += l.SpreadPx * math.Sin(angle)
			}
		}
	}

	for i := range nodes {
		nodes[i].Render = Unproject(nodes[i].Pixel, zoom, tile)
	}
	return nodes
}

//Personal.AI order the ending
