// Package app assembles the fleet service from a Config: the live store and
// its feeds, the map and query layers, and the HTTP and websocket surfaces.
package app

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/clustering"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/detail"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/highlight"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/ingestion"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/query"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/selection"
	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/messaging/mqtt"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/realtime"
	httpserver "github.com/turtacn/TRAXX-Intelligence/internal/interfaces/http"
	"github.com/turtacn/TRAXX-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/TRAXX-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/TRAXX-Intelligence/internal/interfaces/websocket"
	"github.com/turtacn/TRAXX-Intelligence/pkg/client"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

var (
	errNotLoaded        = errors.New(errors.ErrCodeServiceUnavailable, "fleet not loaded")
	errMQTTDisconnected = errors.New(errors.ErrCodeServiceUnavailable, "mqtt broker disconnected")
)

// App is one assembled fleet service.
type App struct {
	cfg     *config.Config
	logger  logging.Logger
	clock   common.Clock
	version string
	source  ingestion.Source
	ln      net.Listener

	Store     *fleet.Store
	Ingestion *ingestion.Service
	Clusters  *clustering.Engine
	Camera    *selection.ViewCamera
	Selection *selection.Coordinator
	Detail    *detail.Renderer
	Highlight *highlight.Broadcaster
	Query     *query.Engine
	Hub       *websocket.Hub

	metrics   *prometheus.AppMetrics
	collector prometheus.MetricsCollector
	redis     *redis.Client
	producer  *kafka.Producer
	consumer  *kafka.Consumer
	topics    *kafka.TopicManager
	mqttConn  *mqtt.Client
	mqttSub   *mqtt.Subscriber
	limiter   *middleware.TokenBucketLimiter
	handler   http.Handler
	server    *httpserver.Server

	mu     sync.Mutex
	unbind []func()
	closed bool
}

// Option customizes New.
type Option func(*App)

// WithClock replaces the wall clock.
func WithClock(c common.Clock) Option {
	return func(a *App) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithVersion sets the version reported by the liveness probe.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithSource replaces the source picked from the ingestion config.
func WithSource(s ingestion.Source) Option {
	return func(a *App) { a.source = s }
}

// WithListener serves on ln instead of listening on the configured port.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.ln = ln }
}

// New builds every component named in cfg.  Nothing runs until Run.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	a := &App{
		cfg:     cfg,
		logger:  logger,
		clock:   common.SystemClock(),
		version: "dev",
		Store:   fleet.NewStore(),
	}
	for _, o := range opts {
		o(a)
	}

	steps := []func() error{
		a.initMetrics,
		a.initRedis,
		a.initMap,
		a.initQuery,
		a.initIngestion,
		a.initFeeds,
		a.initHTTP,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Assembly
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) initMetrics() error {
	m, collector, err := prometheus.NewFromConfig(a.cfg.Metrics, a.logger)
	if err != nil {
		return err
	}
	a.metrics, a.collector = m, collector
	return nil
}

func (a *App) initRedis() error {
	if !a.cfg.Redis.Enabled {
		return nil
	}
	c, err := redis.NewClient(a.cfg.Redis, a.logger)
	if err != nil {
		return err
	}
	a.redis = c
	return nil
}

// cache is shared by the conversation store and the realtime fetcher.
func (a *App) cache() redis.Cache {
	if a.redis != nil {
		return redis.NewRedisCache(a.redis, a.logger)
	}
	return redis.NewMemoryCache(a.clock)
}

func (a *App) initMap() error {
	m := a.cfg.Map
	var copts []clustering.EngineOption
	if a.metrics != nil {
		copts = append(copts, clustering.WithRecorder(a.metrics))
	}
	a.Clusters = clustering.NewEngine(a.Store, m, a.logger, copts...)
	a.Camera = selection.NewViewCamera(m, nil)
	a.Selection = selection.NewCoordinator(a.Store, a.Camera, m.FocusZoom, a.logger)
	a.Detail = detail.NewRenderer(a.Store, a.Selection, a.clock)
	a.Highlight = highlight.NewBroadcaster(a.clock, m.HighlightTTL, a.logger)

	hopts := []websocket.Option{
		websocket.WithClock(a.clock),
		websocket.WithAllowedOrigins(a.cfg.Server.AllowedOrigins),
		websocket.WithViewports(a.Clusters, m.FrameInterval),
	}
	if a.metrics != nil {
		hopts = append(hopts, websocket.WithRecorder(a.metrics))
	}
	src := websocket.Sources{
		Store:     a.Store,
		Selection: a.Selection,
		Highlight: a.Highlight,
		Camera:    a.Camera,
		Clock:     a.clock,
	}
	a.Hub = websocket.NewHub(a.logger, append(hopts, websocket.WithGreeting(websocket.Greeting(src)))...)
	a.unbind = append(a.unbind, websocket.BindAll(a.Hub, src))
	return nil
}

func (a *App) initQuery() error {
	q := a.cfg.Query
	cache := a.cache()
	qopts := []query.Option{query.WithClock(a.clock), query.WithCache(cache)}

	if q.BaseURL != "" {
		c, err := client.NewClient(q.BaseURL, q.APIKey,
			client.WithTimeout(q.Timeout),
			client.WithRetryMax(q.RetryMax),
			client.WithLogger(logging.NewPrintf(a.logger.Named("reasoning"))),
		)
		if err != nil {
			return err
		}
		qopts = append(qopts, query.WithReasoner(c.Reasoning()))
	}
	if q.ContextBaseURL != "" {
		f, err := realtime.NewFetcher(q, a.logger, realtime.WithCache(cache))
		if err != nil {
			return err
		}
		qopts = append(qopts, query.WithContextFetcher(f))
	}
	if a.metrics != nil {
		qopts = append(qopts, query.WithRecorder(a.metrics))
	}
	a.Query = query.NewEngine(a.Store, q, a.logger, qopts...)

	if q.RatePerSecond > 0 {
		a.limiter = middleware.NewTokenBucketLimiter(q.RatePerSecond, q.RateBurst, time.Minute)
	}
	return nil
}

func (a *App) initIngestion() error {
	if a.source == nil {
		s, err := ingestion.NewSource(a.cfg.Ingestion, a.clock)
		if err != nil {
			return err
		}
		a.source = s
	}

	if a.cfg.Kafka.Enabled {
		p, err := kafka.NewProducer(a.cfg.Kafka, a.logger)
		if err != nil {
			return err
		}
		a.producer = p
	}

	iopts := []ingestion.Option{
		ingestion.WithClock(a.clock),
		ingestion.WithReconciler(a.Selection),
	}
	if a.producer != nil {
		iopts = append(iopts, ingestion.WithPublisher(a.producer))
	}
	if a.metrics != nil {
		iopts = append(iopts, ingestion.WithRecorder(a.metrics))
	}
	a.Ingestion = ingestion.NewService(a.Store, a.logger, iopts...)
	return nil
}

func (a *App) initFeeds() error {
	if a.cfg.Kafka.Enabled {
		tm, err := kafka.NewTopicManager(a.cfg.Kafka, a.logger)
		if err != nil {
			a.logger.Warn("kafka topic manager unavailable", logging.Err(err))
		} else {
			a.topics = tm
		}
		c, err := kafka.NewConsumer(a.cfg.Kafka, a.logger, kafka.WithDeadLetter(a.producer))
		if err != nil {
			return err
		}
		c.Subscribe(a.cfg.Kafka.ScanTopic, kafka.ScanHandler(a.Ingestion, a.logger))
		a.consumer = c
	}

	if a.cfg.MQTT.Enabled {
		conn, err := mqtt.NewClient(a.cfg.MQTT, a.logger)
		if err != nil {
			return err
		}
		a.mqttConn = conn
		sub, err := mqtt.NewSubscriber(conn, a.Ingestion, a.cfg.MQTT, a.logger)
		if err != nil {
			return err
		}
		a.mqttSub = sub
	}
	return nil
}

func (a *App) initHTTP() error {
	rc := httpserver.RouterConfig{
		Mode:           a.cfg.Server.Mode,
		FleetHandler:   handlers.NewFleetHandler(a.Store, a.Ingestion, a.clock),
		MapHandler:     handlers.NewMapHandler(a.Clusters, a.Selection, a.Detail, a.Highlight, a.Camera),
		QueryHandler:   handlers.NewQueryHandler(a.Query, a.Query.Conversations()),
		HealthHandler:  handlers.NewHealthHandler(a.version, a.healthCheckers()...),
		WebSocket:      a.Hub,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		MaxBodySize:    a.cfg.Server.MaxBodySize,
		Logger:         a.logger,
	}
	if a.limiter != nil {
		rc.QueryLimiter = a.limiter
	}
	if a.metrics != nil {
		rc.HTTPRecorder = a.metrics
		rc.MetricsPath = a.cfg.Metrics.Path
		rc.MetricsHandler = a.collector.Handler()
	}
	a.handler = httpserver.NewRouter(rc)
	a.server = httpserver.NewServer(a.cfg.Server, a.handler, a.logger)
	return nil
}

func (a *App) healthCheckers() []handlers.HealthChecker {
	checks := []handlers.HealthChecker{
		handlers.CheckerFunc{ComponentName: "fleet_store", Fn: func(context.Context) error {
			if a.Store.Version() == 0 {
				return errNotLoaded
			}
			return nil
		}},
	}
	if a.redis != nil {
		checks = append(checks, handlers.CheckerFunc{ComponentName: "redis", Fn: a.redis.Ping})
	}
	if a.mqttConn != nil {
		checks = append(checks, handlers.CheckerFunc{ComponentName: "mqtt", Fn: func(context.Context) error {
			if !a.mqttConn.IsConnected() {
				return errMQTTDisconnected
			}
			return nil
		}})
	}
	return checks
}

// Handler is the complete route tree.
func (a *App) Handler() http.Handler { return a.handler }

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Run loads the initial dataset, starts the feeds, and serves until ctx is
// cancelled.  Shutdown drains HTTP first, then the websocket hub, then feeds.
func (a *App) Run(ctx context.Context) error {
	if err := a.load(ctx); err != nil {
		return err
	}

	stopFleet := websocket.FeedFleet(ctx, a.Hub, a.Store, a.clock)
	defer stopFleet()
	if a.metrics != nil {
		stopObserve := a.observeSnapshots(ctx)
		defer stopObserve()
	}

	if err := a.startFeeds(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if a.ln != nil {
			return a.server.Serve(a.ln)
		}
		return a.server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		err := a.server.Stop(sctx)
		a.Hub.Close()
		return err
	})
	err := g.Wait()
	a.Close()
	return err
}

func (a *App) load(ctx context.Context) error {
	ds, err := a.source.Dataset(ctx)
	if err != nil {
		return err
	}
	snap, report, err := a.Ingestion.Load(ctx, a.source.Name(), ds)
	if err != nil {
		return err
	}
	a.logger.Info("fleet loaded",
		logging.String("source", a.source.Name()),
		logging.Uint64("version", snap.Version()),
		logging.Int("trackers", report.Trackers),
		logging.Int("facilities", report.Facilities),
		logging.Int("alerts", report.Alerts),
	)
	if a.metrics != nil {
		a.metrics.ObserveSnapshot(snap, a.clock.Now())
	}
	return nil
}

func (a *App) startFeeds(ctx context.Context) error {
	if a.topics != nil {
		if err := a.topics.EnsureTopics(ctx, kafka.DefaultTopics(a.cfg.Kafka)); err != nil {
			a.logger.Warn("kafka topics not ensured", logging.Err(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return err
		}
	}
	if a.mqttSub != nil {
		if err := a.mqttSub.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) observeSnapshots(ctx context.Context) func() {
	versions, cancel := a.Store.Subscribe(4)
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
				a.metrics.ObserveSnapshot(a.Store.Snapshot(), a.clock.Now())
			}
		}
	}()
	return func() {
		done()
		<-finished
		cancel()
	}
}

// ApplyConfig takes the hot-reloadable subset of cfg: log level, map
// tunables and highlight TTL.  Everything else needs a restart.
func (a *App) ApplyConfig(cfg *config.Config) error {
	if err := a.Clusters.SetParams(cfg.Map); err != nil {
		return err
	}
	a.Highlight.SetTTL(cfg.Map.HighlightTTL)
	a.Hub.SetFrameInterval(cfg.Map.FrameInterval)
	logging.SetLevel(cfg.Log.Level)

	a.mu.Lock()
	a.cfg.Map = cfg.Map
	a.cfg.Log.Level = cfg.Log.Level
	a.mu.Unlock()

	a.logger.Info("config reloaded",
		logging.String("log_level", cfg.Log.Level),
		logging.Duration("highlight_ttl", cfg.Map.HighlightTTL))
	return nil
}

// Watch hot-reloads configPath into a.
func (a *App) Watch(configPath string) error {
	return config.Watch(configPath, func(cfg *config.Config) {
		if err := a.ApplyConfig(cfg); err != nil {
			a.logger.Warn("config reload rejected", logging.Err(err))
		}
	}, func(err error) {
		a.logger.Warn("config reload failed", logging.Err(err))
	})
}

// Close releases every client.  It is safe to call more than once.
func (a *App) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	unbind := a.unbind
	a.unbind = nil
	a.mu.Unlock()

	for _, u := range unbind {
		u()
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.Highlight != nil {
		a.Highlight.Clear()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.mqttSub != nil {
		a.mqttSub.Stop()
	}
	if a.mqttConn != nil {
		a.mqttConn.Disconnect()
	}
	if a.consumer != nil {
		a.closeQuietly("kafka consumer", a.consumer.Close)
	}
	if a.topics != nil {
		a.closeQuietly("kafka topics", a.topics.Close)
	}
	if a.producer != nil {
		a.closeQuietly("kafka producer", a.producer.Close)
	}
	if a.redis != nil {
		a.closeQuietly("redis", a.redis.Close)
	}
}

func (a *App) closeQuietly(name string, fn func() error) {
	if err := fn(); err != nil {
		a.logger.Warn("close failed", logging.String("component", name), logging.Err(err))
	}
}

// Serve builds an App from cfg and runs it until ctx ends.  It is the serve
// command of the CLI.
func Serve(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	a, err := New(cfg, logger)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

//Personal.AI order the ending
