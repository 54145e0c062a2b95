package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/clustering"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/detail"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/highlight"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/selection"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// ============================================================================
// Collaborators
// ============================================================================

// ClusterSource lays out one entity kind for a viewport.
type ClusterSource interface {
	Clusters(kind common.EntityKind, vp clustering.Viewport) ([]clustering.Node, error)
}

// SelectionControl owns the focused entity.
type SelectionControl interface {
	Current() selection.Selection
	Select(ctx context.Context, kind common.EntityKind, id string) (selection.Selection, error)
}

// DetailView renders the panel of the current selection.
type DetailView interface {
	Render() (*detail.Panel, bool)
	Expand(section detail.Section) detail.Section
	Collapse()
	Close()
}

// Highlighter owns the transient emphasis.
type Highlighter interface {
	Highlight(kind common.EntityKind, ids []string) (highlight.State, error)
	Current() (highlight.State, bool)
	Clear()
}

// CameraControl is the camera with its readable position.
type CameraControl interface {
	selection.Camera
	View() selection.View
}

// ============================================================================
// DTOs
// ============================================================================

// SelectionDTO is the wire form of the selection.
type SelectionDTO struct {
	Kind  common.EntityKind `json:"kind,omitempty"`
	ID    string            `json:"id,omitempty"`
	State selection.State   `json:"state"`
}

func selectionDTO(s selection.Selection) SelectionDTO {
	return SelectionDTO{Kind: s.Kind, ID: s.ID, State: s.State()}
}

// SelectRequest is the body of POST /selection.
type SelectRequest struct {
	Kind string `json:"kind" binding:"required"`
	ID   string `json:"id" binding:"required"`
}

// HighlightRequest is the body of POST /highlight.
type HighlightRequest struct {
	Kind string   `json:"kind" binding:"required"`
	IDs  []string `json:"ids"`
}

// ExpandRequest is the body of POST /selection/detail/expand.
type ExpandRequest struct {
	Section detail.Section `json:"section"`
}

// ============================================================================
// Handler
// ============================================================================

// MapHandler serves clustering, selection, highlight, and camera routes.
type MapHandler struct {
	clusters  ClusterSource
	selection SelectionControl
	detail    DetailView
	highlight Highlighter
	camera    CameraControl
}

// NewMapHandler creates a MapHandler.
func NewMapHandler(clusters ClusterSource, sel SelectionControl, dv DetailView, hl Highlighter, camera CameraControl) *MapHandler {
	return &MapHandler{clusters: clusters, selection: sel, detail: dv, highlight: hl, camera: camera}
}

// RegisterRoutes registers the map routes under rg.
func (h *MapHandler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/map/clusters", h.Clusters)

	rg.GET("/selection", h.GetSelection)
	rg.POST("/selection", h.Select)
	rg.DELETE("/selection", h.ClearSelection)
	rg.GET("/selection/detail", h.Detail)
	rg.POST("/selection/detail/expand", h.Expand)
	rg.POST("/selection/detail/collapse", h.Collapse)

	rg.GET("/highlight", h.GetHighlight)
	rg.POST("/highlight", h.Highlight)
	rg.DELETE("/highlight", h.ClearHighlight)

	rg.GET("/camera", h.GetCamera)
	rg.POST("/camera/:action", h.MoveCamera)
}

// Clusters handles GET /map/clusters?kind=&south=&west=&north=&east=&zoom=.
func (h *MapHandler) Clusters(c *gin.Context) {
	kind, err := parseKind(c.Query("kind"))
	if err != nil {
		respondError(c, err)
		return
	}
	var vp clustering.Viewport
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"south", &vp.Bounds.South},
		{"west", &vp.Bounds.West},
		{"north", &vp.Bounds.North},
		{"east", &vp.Bounds.East},
		{"zoom", &vp.Zoom},
	} {
		if *p.dst, err = queryFloat(c, p.name); err != nil {
			respondError(c, err)
			return
		}
	}

	nodes, err := h.clusters.Clusters(kind, vp)
	if err != nil {
		respondError(c, err)
		return
	}
	if nodes == nil {
		nodes = []clustering.Node{}
	}
	respond(c, http.StatusOK, nodes)
}

// GetSelection handles GET /selection.
func (h *MapHandler) GetSelection(c *gin.Context) {
	respond(c, http.StatusOK, selectionDTO(h.selection.Current()))
}

// Select handles POST /selection.  Selecting the active entity toggles it
// off; an unknown id yields the unselected state.
func (h *MapHandler) Select(c *gin.Context) {
	var req SelectRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		respondError(c, err)
		return
	}
	sel, err := h.selection.Select(c.Request.Context(), kind, req.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, selectionDTO(sel))
}

// ClearSelection handles DELETE /selection.
func (h *MapHandler) ClearSelection(c *gin.Context) {
	h.detail.Close()
	respond(c, http.StatusOK, selectionDTO(h.selection.Current()))
}

// Detail handles GET /selection/detail.  The data is null when nothing is
// selected.
func (h *MapHandler) Detail(c *gin.Context) {
	panel, _ := h.detail.Render()
	respond(c, http.StatusOK, panel)
}

// Expand handles POST /selection/detail/expand.
func (h *MapHandler) Expand(c *gin.Context) {
	var req ExpandRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	switch req.Section {
	case detail.SectionAlerts, detail.SectionTrackers:
	default:
		respondError(c, errors.Newf(errors.ErrCodeBadRequest, "unknown section %q", req.Section))
		return
	}
	h.detail.Expand(req.Section)
	panel, _ := h.detail.Render()
	respond(c, http.StatusOK, panel)
}

// Collapse handles POST /selection/detail/collapse.
func (h *MapHandler) Collapse(c *gin.Context) {
	h.detail.Collapse()
	panel, _ := h.detail.Render()
	respond(c, http.StatusOK, panel)
}

// GetHighlight handles GET /highlight.  The data is null when nothing is
// highlighted.
func (h *MapHandler) GetHighlight(c *gin.Context) {
	st, ok := h.highlight.Current()
	if !ok {
		respond[*highlight.State](c, http.StatusOK, nil)
		return
	}
	respond(c, http.StatusOK, &st)
}

// Highlight handles POST /highlight.
func (h *MapHandler) Highlight(c *gin.Context) {
	var req HighlightRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		respondError(c, err)
		return
	}
	st, err := h.highlight.Highlight(kind, req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, st)
}

// ClearHighlight handles DELETE /highlight.
func (h *MapHandler) ClearHighlight(c *gin.Context) {
	h.highlight.Clear()
	respond[*highlight.State](c, http.StatusOK, nil)
}

// GetCamera handles GET /camera.
func (h *MapHandler) GetCamera(c *gin.Context) {
	respond(c, http.StatusOK, h.camera.View())
}

// MoveCamera handles POST /camera/{zoom-in|zoom-out|reset}.
func (h *MapHandler) MoveCamera(c *gin.Context) {
	ctx := c.Request.Context()
	var err error
	switch action := c.Param("action"); action {
	case "zoom-in":
		err = h.camera.ZoomIn(ctx)
	case "zoom-out":
		err = h.camera.ZoomOut(ctx)
	case "reset":
		err = h.camera.ResetView(ctx)
	default:
		err = errors.Newf(errors.ErrCodeNotFound, "unknown camera action %q", action)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, h.camera.View())
}

//Personal.AI order the ending
