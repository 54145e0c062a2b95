package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// AlertPublisher forwards newly raised alerts to downstream consumers.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, alerts []fleet.Alert) error
}

// Reconciler is told about every snapshot the service publishes.  The
// selection coordinator uses it to drop stale selections.
type Reconciler interface {
	Reconcile(snap *fleet.Snapshot)
}

// Recorder receives ingestion counters.
type Recorder interface {
	RecordIngested(source string, records int)
	RecordAlertsRaised(n int)
}

// LoadReport summarizes one full load.
type LoadReport struct {
	Trackers   int `json:"trackers"`
	Facilities int `json:"facilities"`
	Alerts     int `json:"alerts"`
	Derived    int `json:"derived"`
	Skipped    int `json:"skipped"`
}

// ScanReport summarizes one batch of scan events.
type ScanReport struct {
	Applied int           `json:"applied"`
	Unknown []string      `json:"unknown,omitempty"`
	Raised  []fleet.Alert `json:"raised,omitempty"`
	Version uint64        `json:"version"`
}

// ============================================================================
// Service
// ============================================================================

// Service applies records to the store.  Calls are serialized.
type Service struct {
	store       *fleet.Store
	clock       common.Clock
	logger      logging.Logger
	newID       func() string
	publisher   AlertPublisher
	reconcilers []Reconciler
	rec         Recorder

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for defaults and alert timestamps.
func WithClock(c common.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator replaces the uuid alert id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithPublisher forwards raised alerts.
func WithPublisher(p AlertPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithReconciler registers r for every published snapshot.
func WithReconciler(r Reconciler) Option {
	return func(s *Service) {
		if r != nil {
			s.reconcilers = append(s.reconcilers, r)
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.rec = r }
}

// NewService creates the ingestion boundary for store.
func NewService(store *fleet.Store, logger logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Service{
		store:  store,
		clock:  common.SystemClock(),
		logger: logger.Named("ingestion"),
		newID:  func() string { return "alt-" + uuid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ----------------------------------------------------------------------------
// Full load
// ----------------------------------------------------------------------------

// Load replaces all three collections with ds.  Records without an id and
// alerts on unknown trackers are skipped.  Trackers already past a threshold
// get an alert unless an open alert of the same type and severity exists.
func (s *Service) Load(ctx context.Context, source string, ds Dataset) (*fleet.Snapshot, LoadReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, LoadReport{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var rep LoadReport

	facilities := make([]fleet.Facility, 0, len(ds.Facilities))
	seenF := make(map[string]int)
	for _, r := range ds.Facilities {
		f := NormalizeFacility(r)
		if f.ID == "" {
			rep.Skipped++
			continue
		}
		if i, dup := seenF[f.ID]; dup {
			facilities[i] = f
			continue
		}
		seenF[f.ID] = len(facilities)
		facilities = append(facilities, f)
	}

	trackers := make([]fleet.Tracker, 0, len(ds.Trackers))
	byID := make(map[string]int)
	for _, r := range ds.Trackers {
		t := NormalizeTracker(r, now)
		if t.ID == "" {
			rep.Skipped++
			continue
		}
		if i, dup := byID[t.ID]; dup {
			trackers[i] = t
			continue
		}
		byID[t.ID] = len(trackers)
		trackers = append(trackers, t)
	}

	alerts := make([]fleet.Alert, 0, len(ds.Alerts))
	for _, r := range ds.Alerts {
		i, ok := byID[r.TrackerID]
		if !ok {
			rep.Skipped++
			s.logger.Warn("alert references unknown tracker; skipped",
				logging.String("alert_id", r.ID),
				logging.String("tracker_id", r.TrackerID),
				logging.String("code", string(errors.ErrCodeIngestUnknownTarget)))
			continue
		}
		a := NormalizeAlert(r, &trackers[i], now)
		if a.ID == "" {
			a.ID = s.newID()
		}
		alerts = append(alerts, a)
	}

	open := openIndex(alerts)
	for _, t := range trackers {
		var raised []fleet.Alert
		alerts, raised = s.derive(t, alerts, open, now)
		rep.Derived += len(raised)
	}

	snap := s.store.Replace(trackers, facilities, alerts)
	rep.Trackers, rep.Facilities, rep.Alerts = len(trackers), len(facilities), len(alerts)

	s.after(ctx, snap, source, len(ds.Trackers)+len(ds.Facilities)+len(ds.Alerts), nil)
	s.logger.Info("dataset loaded",
		logging.String("source", source),
		logging.Int("trackers", rep.Trackers),
		logging.Int("facilities", rep.Facilities),
		logging.Int("alerts", rep.Alerts),
		logging.Int("derived", rep.Derived),
		logging.Int("skipped", rep.Skipped),
		logging.Uint64("version", snap.Version()))
	return snap, rep, nil
}

// ----------------------------------------------------------------------------
// Scan events
// ----------------------------------------------------------------------------

// ApplyScans merges events into their trackers and raises alerts for new
// threshold crossings, including a crossing into a higher severity.  Events for unknown trackers are reported, not fatal.
// An empty batch is a no-op.
func (s *Service) ApplyScans(ctx context.Context, source string, events []ScanEvent) (ScanReport, error) {
	if err := ctx.Err(); err != nil {
		return ScanReport{}, err
	}
	var rep ScanReport
	if len(events) == 0 {
		rep.Version = s.store.Version()
		return rep, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	snap := s.store.Update(func(prev *fleet.Snapshot) ([]fleet.Tracker, []fleet.Facility, []fleet.Alert) {
		trackers := prev.Trackers()
		alerts := prev.Alerts()
		byID := make(map[string]int, len(trackers))
		for i, t := range trackers {
			byID[t.ID] = i
		}

		touched := make(map[string]bool)
		var order []string
		for _, ev := range events {
			i, ok := byID[ev.TrackerID]
			if !ok {
				rep.Unknown = append(rep.Unknown, ev.TrackerID)
				continue
			}
			trackers[i] = ev.Apply(trackers[i])
			rep.Applied++
			if !touched[ev.TrackerID] {
				touched[ev.TrackerID] = true
				order = append(order, ev.TrackerID)
			}
		}

		open := openIndex(alerts)
		for _, id := range order {
			var raised []fleet.Alert
			alerts, raised = s.derive(trackers[byID[id]], alerts, open, now)
			rep.Raised = append(rep.Raised, raised...)
		}
		return trackers, prev.Facilities(), alerts
	})
	rep.Version = snap.Version()

	for _, id := range rep.Unknown {
		s.logger.Warn("scan event for unknown tracker; skipped",
			logging.String("tracker_id", id),
			logging.String("code", string(errors.ErrCodeIngestUnknownTarget)))
	}
	s.after(ctx, snap, source, len(events), rep.Raised)
	s.logger.Debug("scan events applied",
		logging.String("source", source),
		logging.Int("applied", rep.Applied),
		logging.Int("unknown", len(rep.Unknown)),
		logging.Int("raised", len(rep.Raised)))
	return rep, nil
}

// ----------------------------------------------------------------------------
// Alert lifecycle
// ----------------------------------------------------------------------------

// AcknowledgeAlert marks an open alert acknowledged.  Acknowledging twice is
// a no-op; acknowledging a resolved alert fails.
func (s *Service) AcknowledgeAlert(ctx context.Context, id string) (fleet.Alert, error) {
	return s.mutateAlert(ctx, id, func(a *fleet.Alert, now time.Time) bool {
		if a.Acknowledged {
			return false
		}
		a.Acknowledged = true
		a.AcknowledgedAt = &now
		return true
	})
}

// ResolveAlert marks an alert resolved, acknowledging it if needed.
func (s *Service) ResolveAlert(ctx context.Context, id string) (fleet.Alert, error) {
	return s.mutateAlert(ctx, id, func(a *fleet.Alert, now time.Time) bool {
		if !a.Acknowledged {
			a.Acknowledged = true
			a.AcknowledgedAt = &now
		}
		a.Resolved = true
		a.ResolvedAt = &now
		return true
	})
}

func (s *Service) mutateAlert(ctx context.Context, id string, fn func(a *fleet.Alert, now time.Time) bool) (fleet.Alert, error) {
	if err := ctx.Err(); err != nil {
		return fleet.Alert{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.store.Snapshot()
	cur, ok := snap.Alert(id)
	if !ok {
		return fleet.Alert{}, errors.Newf(errors.ErrCodeAlertNotFound, "alert %q not found", id)
	}
	if cur.Resolved {
		return cur, errors.Newf(errors.ErrCodeAlertAlreadyClosed, "alert %q is already resolved", id)
	}

	now := s.clock.Now()
	if !fn(&cur, now) {
		return cur, nil
	}
	alerts := snap.Alerts()
	for i := range alerts {
		if alerts[i].ID == id {
			alerts[i] = cur
			break
		}
	}
	next := s.store.ReplaceAlerts(alerts)
	s.after(ctx, next, "alert-lifecycle", 1, nil)
	s.logger.Info("alert updated",
		logging.String("alert_id", id),
		logging.Bool("acknowledged", cur.Acknowledged),
		logging.Bool("resolved", cur.Resolved))
	return cur, nil
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

type openKey struct {
	tracker string
	typ     fleet.AlertType
}

// openIndex maps each open (tracker, type) pair to its alert's position.
func openIndex(alerts []fleet.Alert) map[openKey]int {
	idx := make(map[openKey]int, len(alerts))
	for i, a := range alerts {
		if a.Open() {
			idx[openKey{a.TrackerID, a.Type}] = i
		}
	}
	return idx
}

// derive raises one alert per breach of t not already covered by an open
// alert of the same type and at least the same severity.  A breach graded
// above its open alert resolves that alert and raises a new one.  Retired
// trackers raise nothing.  alerts and open are updated in place; the grown
// slice and the raised alerts are returned.
func (s *Service) derive(t fleet.Tracker, alerts []fleet.Alert, open map[openKey]int, now time.Time) ([]fleet.Alert, []fleet.Alert) {
	if t.Retired {
		return alerts, nil
	}
	var raised []fleet.Alert
	for _, b := range fleet.EvaluateThresholds(t, now) {
		k := openKey{t.ID, b.Type}
		if i, ok := open[k]; ok {
			prev := &alerts[i]
			if b.Severity.Rank() <= prev.Severity.Rank() {
				continue
			}
			supersede(prev, now)
			s.logger.Info("alert escalated",
				logging.String("alert_id", prev.ID),
				logging.String("tracker_id", t.ID),
				logging.String("from", string(prev.Severity)),
				logging.String("to", string(b.Severity)))
		}
		a := fleet.NewAlert(s.newID(), t, b, now)
		open[k] = len(alerts)
		alerts = append(alerts, a)
		raised = append(raised, a)
	}
	return alerts, raised
}

// supersede closes an alert replaced by a more severe one.
func supersede(a *fleet.Alert, now time.Time) {
	if !a.Acknowledged {
		a.Acknowledged = true
		a.AcknowledgedAt = &now
	}
	a.Resolved = true
	a.ResolvedAt = &now
}

// after runs the post-publish hooks.  Publisher failures are logged; the
// store already holds the alerts.
func (s *Service) after(ctx context.Context, snap *fleet.Snapshot, source string, records int, raised []fleet.Alert) {
	for _, r := range s.reconcilers {
		r.Reconcile(snap)
	}
	if s.rec != nil {
		s.rec.RecordIngested(source, records)
		if len(raised) > 0 {
			s.rec.RecordAlertsRaised(len(raised))
		}
	}
	if s.publisher != nil && len(raised) > 0 {
		if err := s.publisher.PublishAlerts(ctx, raised); err != nil {
			s.logger.Warn("publishing raised alerts failed",
				logging.Int("alerts", len(raised)),
				logging.Err(err))
		}
	}
}

//Personal.AI order the ending
