package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
)

// AppMetrics holds all fleet service metrics.  It satisfies the recorder
// interfaces of clustering, query and ingestion.
type AppMetrics struct {
	collector MetricsCollector

	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Live map push
	WSConnections  GaugeVec
	WSMessagesSent CounterVec

	// Clustering
	ClusterRecomputeTotal    CounterVec
	ClusterRecomputeDuration HistogramVec
	ClusterNodes             GaugeVec

	// Query
	QueriesTotal         CounterVec
	QueryDuration        HistogramVec
	QueryContextFailures CounterVec

	// Ingestion
	IngestedRecordsTotal CounterVec
	AlertsRaisedTotal    CounterVec

	// Fleet state
	FleetTrackers     GaugeVec
	FleetOpenAlerts   GaugeVec
	FleetStoreVersion GaugeVec

	// System Health
	ErrorsTotal CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultClusterDurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25}
	DefaultQueryDurationBuckets   = []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 20}
)

// NewAppMetrics registers all metrics against collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{collector: collector}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests")

	m.WSConnections = collector.RegisterGauge("ws_connections", "Open live map connections")
	m.WSMessagesSent = collector.RegisterCounter("ws_messages_sent_total", "Live map messages pushed", "type")

	m.ClusterRecomputeTotal = collector.RegisterCounter("cluster_recompute_total", "Cluster layouts computed", "kind")
	m.ClusterRecomputeDuration = collector.RegisterHistogram("cluster_recompute_duration_seconds", "Cluster layout computation time", DefaultClusterDurationBuckets, "kind")
	m.ClusterNodes = collector.RegisterGauge("cluster_nodes", "Nodes in the last computed layout", "kind")

	m.QueriesTotal = collector.RegisterCounter("queries_total", "Answered questions by path", "path")
	m.QueryDuration = collector.RegisterHistogram("query_duration_seconds", "Question answer time", DefaultQueryDurationBuckets, "path")
	m.QueryContextFailures = collector.RegisterCounter("query_context_failures_total", "Realtime context stages that failed", "stage")

	m.IngestedRecordsTotal = collector.RegisterCounter("ingested_records_total", "Records ingested by source", "source")
	m.AlertsRaisedTotal = collector.RegisterCounter("alerts_raised_total", "Alerts raised by threshold rules")

	m.FleetTrackers = collector.RegisterGauge("fleet_trackers", "Trackers by phase", "phase")
	m.FleetOpenAlerts = collector.RegisterGauge("fleet_open_alerts", "Open alerts by severity", "severity")
	m.FleetStoreVersion = collector.RegisterGauge("fleet_store_version", "Current store snapshot version")

	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// NewFromConfig builds a collector and registers the metrics, or returns
// nil when metrics are disabled.
func NewFromConfig(cfg config.MetricsConfig, logger logging.Logger) (*AppMetrics, MetricsCollector, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}
	collector, err := NewMetricsCollector(CollectorConfig{
		Namespace:            cfg.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return NewAppMetrics(collector), collector, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Recorders
// ─────────────────────────────────────────────────────────────────────────────

func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordActiveRequest(delta int) {
	g := m.HTTPActiveRequests.WithLabelValues()
	if delta > 0 {
		g.Inc()
	} else {
		g.Dec()
	}
}

func (m *AppMetrics) RecordClusterRecompute(kind string, d time.Duration, nodes int) {
	m.ClusterRecomputeTotal.WithLabelValues(kind).Inc()
	m.ClusterRecomputeDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.ClusterNodes.WithLabelValues(kind).Set(float64(nodes))
}

func (m *AppMetrics) RecordQuery(path string, d time.Duration) {
	m.QueriesTotal.WithLabelValues(path).Inc()
	m.QueryDuration.WithLabelValues(path).Observe(d.Seconds())
}

func (m *AppMetrics) RecordContextFailure(stage string) {
	m.QueryContextFailures.WithLabelValues(stage).Inc()
}

func (m *AppMetrics) RecordIngested(source string, records int) {
	m.IngestedRecordsTotal.WithLabelValues(source).Add(float64(records))
}

func (m *AppMetrics) RecordAlertsRaised(n int) {
	if n > 0 {
		m.AlertsRaisedTotal.WithLabelValues().Add(float64(n))
	}
}

func (m *AppMetrics) RecordWSConnection(delta int) {
	g := m.WSConnections.WithLabelValues()
	if delta > 0 {
		g.Inc()
	} else {
		g.Dec()
	}
}

func (m *AppMetrics) RecordWSMessage(msgType string) {
	m.WSMessagesSent.WithLabelValues(msgType).Inc()
}

func (m *AppMetrics) RecordError(component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

// ObserveSnapshot refreshes the fleet state gauges.
func (m *AppMetrics) ObserveSnapshot(snap *fleet.Snapshot, now time.Time) {
	stats := snap.Stats(now)
	for _, p := range fleet.Phases {
		m.FleetTrackers.WithLabelValues(string(p)).Set(float64(stats.ByPhase[p]))
	}
	for _, s := range []fleet.Severity{fleet.SeverityCritical, fleet.SeverityWarning, fleet.SeverityInfo} {
		m.FleetOpenAlerts.WithLabelValues(string(s)).Set(float64(stats.OpenBySeverity[s]))
	}
	m.FleetStoreVersion.WithLabelValues().Set(float64(stats.Version))
}

//Personal.AI order the ending
