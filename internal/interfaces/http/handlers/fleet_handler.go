package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

const maxListLimit = 1000

// SnapshotSource yields the current fleet snapshot.
type SnapshotSource interface {
	Snapshot() *fleet.Snapshot
}

// AlertService changes the alert lifecycle.
type AlertService interface {
	AcknowledgeAlert(ctx context.Context, id string) (fleet.Alert, error)
	ResolveAlert(ctx context.Context, id string) (fleet.Alert, error)
}

// FleetHandler serves the entity collections and the realtime context
// endpoints (kits, alerts, stats) another instance can read.
type FleetHandler struct {
	store  SnapshotSource
	alerts AlertService
	clock  common.Clock
}

// NewFleetHandler creates a FleetHandler.  alerts may be nil, in which case
// the acknowledge and resolve routes are not registered.
func NewFleetHandler(store SnapshotSource, alerts AlertService, clock common.Clock) *FleetHandler {
	if clock == nil {
		clock = common.SystemClock()
	}
	return &FleetHandler{store: store, alerts: alerts, clock: clock}
}

// RegisterRoutes registers the fleet routes under rg.
func (h *FleetHandler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/trackers", h.ListTrackers)
	rg.GET("/trackers/:id", h.GetTracker)
	rg.GET("/kits", h.ListKits)
	rg.GET("/facilities", h.ListFacilities)
	rg.GET("/facilities/:id", h.GetFacility)
	rg.GET("/alerts", h.ListAlerts)
	rg.GET("/alerts/:id", h.GetAlert)
	rg.GET("/stats", h.Stats)
	if h.alerts != nil {
		rg.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
		rg.POST("/alerts/:id/resolve", h.ResolveAlert)
	}
}

// ListTrackers handles GET /trackers.
// Filters: phase, facility_id, include_retired (default false), limit.
func (h *FleetHandler) ListTrackers(c *gin.Context) {
	phase := fleet.Phase(c.Query("phase"))
	if phase != "" && !phase.Valid() {
		respondError(c, errors.Newf(errors.ErrCodeBadRequest, "unknown phase %q", phase))
		return
	}
	facilityID := c.Query("facility_id")
	includeRetired := queryBool(c, "include_retired", false)
	limit := queryInt(c, "limit", maxListLimit, maxListLimit)

	out := make([]fleet.Tracker, 0)
	for _, t := range h.store.Snapshot().Trackers() {
		if len(out) == limit {
			break
		}
		if t.Retired && !includeRetired {
			continue
		}
		if phase != "" && t.Phase != phase {
			continue
		}
		if facilityID != "" && t.FacilityID != facilityID {
			continue
		}
		out = append(out, t)
	}
	respond(c, http.StatusOK, out)
}

// ListKits handles GET /kits: every active tracker, unfiltered.
func (h *FleetHandler) ListKits(c *gin.Context) {
	out := make([]fleet.Tracker, 0)
	for _, t := range h.store.Snapshot().Trackers() {
		if !t.Retired {
			out = append(out, t)
		}
	}
	respond(c, http.StatusOK, out)
}

// GetTracker handles GET /trackers/:id.
func (h *FleetHandler) GetTracker(c *gin.Context) {
	t, ok := h.store.Snapshot().Tracker(c.Param("id"))
	if !ok {
		respondError(c, errors.Newf(errors.ErrCodeTrackerNotFound, "tracker %s not found", c.Param("id")))
		return
	}
	respond(c, http.StatusOK, t)
}

// FacilityView is a facility with its derived asset count.
type FacilityView struct {
	fleet.Facility
	AssetCount int `json:"asset_count"`
}

// ListFacilities handles GET /facilities.  Filter: region.
func (h *FleetHandler) ListFacilities(c *gin.Context) {
	snap := h.store.Snapshot()
	region := c.Query("region")
	out := make([]FacilityView, 0)
	for _, f := range snap.Facilities() {
		if region != "" && f.Region != region {
			continue
		}
		out = append(out, FacilityView{Facility: f, AssetCount: snap.AssetCount(f.ID)})
	}
	respond(c, http.StatusOK, out)
}

// GetFacility handles GET /facilities/:id.
func (h *FleetHandler) GetFacility(c *gin.Context) {
	snap := h.store.Snapshot()
	f, ok := snap.Facility(c.Param("id"))
	if !ok {
		respondError(c, errors.Newf(errors.ErrCodeFacilityNotFound, "facility %s not found", c.Param("id")))
		return
	}
	respond(c, http.StatusOK, FacilityView{Facility: f, AssetCount: snap.AssetCount(f.ID)})
}

// ListAlerts handles GET /alerts, newest first.
// Filters: status (open|all, default open), severity, tracker_id, limit.
func (h *FleetHandler) ListAlerts(c *gin.Context) {
	status := c.DefaultQuery("status", "open")
	if status != "open" && status != "all" {
		respondError(c, errors.Newf(errors.ErrCodeBadRequest, "status must be open or all, got %q", status))
		return
	}
	severity := fleet.Severity(c.Query("severity"))
	if severity != "" && severity.Rank() == 0 {
		respondError(c, errors.Newf(errors.ErrCodeBadRequest, "unknown severity %q", severity))
		return
	}
	trackerID := c.Query("tracker_id")
	limit := queryInt(c, "limit", maxListLimit, maxListLimit)

	all := h.store.Snapshot().Alerts()
	fleet.SortAlertsNewestFirst(all)

	out := make([]fleet.Alert, 0)
	for _, a := range all {
		if len(out) == limit {
			break
		}
		if status == "open" && !a.Open() {
			continue
		}
		if severity != "" && a.Severity != severity {
			continue
		}
		if trackerID != "" && a.TrackerID != trackerID {
			continue
		}
		out = append(out, a)
	}
	respond(c, http.StatusOK, out)
}

// GetAlert handles GET /alerts/:id.
func (h *FleetHandler) GetAlert(c *gin.Context) {
	a, ok := h.store.Snapshot().Alert(c.Param("id"))
	if !ok {
		respondError(c, errors.Newf(errors.ErrCodeAlertNotFound, "alert %s not found", c.Param("id")))
		return
	}
	respond(c, http.StatusOK, a)
}

// AcknowledgeAlert handles POST /alerts/:id/acknowledge.
func (h *FleetHandler) AcknowledgeAlert(c *gin.Context) {
	a, err := h.alerts.AcknowledgeAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, a)
}

// ResolveAlert handles POST /alerts/:id/resolve.
func (h *FleetHandler) ResolveAlert(c *gin.Context) {
	a, err := h.alerts.ResolveAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, a)
}

// Stats handles GET /stats.
func (h *FleetHandler) Stats(c *gin.Context) {
	respond(c, http.StatusOK, h.store.Snapshot().Stats(h.clock.Now()))
}

//Personal.AI order the ending
