package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/client"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// Answer paths reported to the Recorder.
const (
	PathRemote   = "remote"
	PathFallback = "fallback"
)

const recentAlertsInContext = 5

// ============================================================================
// Engine
// ============================================================================

// Engine runs the question pipeline.  Questions of one session are answered
// one at a time in submission order; different sessions run concurrently.
type Engine struct {
	store         *fleet.Store
	reasoner      Reasoner
	fetcher       ContextFetcher
	conversations *ConversationStore
	analyzer      *Analyzer
	clock         common.Clock
	logger        logging.Logger
	rec           Recorder

	timeout        time.Duration
	contextTimeout time.Duration
	maxRows        int

	mu       sync.Mutex
	sessions map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures an Engine.
type Option func(*Engine)

// WithReasoner enables the remote reasoning stage.
func WithReasoner(r Reasoner) Option {
	return func(e *Engine) { e.reasoner = r }
}

// WithContextFetcher enables the realtime context stage.
func WithContextFetcher(f ContextFetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithCache persists transcripts and remote conversation ids.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.conversations.cache = c }
}

// WithClock replaces the wall clock used for answer timestamps and the
// local analyzer.
func WithClock(c common.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.rec = r }
}

// NewEngine builds an engine over store.  Without WithReasoner every
// question is answered locally.
func NewEngine(store *fleet.Store, cfg config.QueryConfig, logger logging.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultQueryTimeout
	}
	if cfg.ContextTimeout <= 0 {
		cfg.ContextTimeout = config.DefaultQueryContextTimeout
	}
	e := &Engine{
		store:          store,
		conversations:  NewConversationStore(nil, cfg.MaxTurns, cfg.ConversationTTL),
		analyzer:       NewAnalyzer(cfg.MaxRows, cfg.MaxActionable),
		clock:          common.SystemClock(),
		logger:         logger.Named("query"),
		timeout:        cfg.Timeout,
		contextTimeout: cfg.ContextTimeout,
		maxRows:        cfg.MaxRows,
		sessions:       make(map[string]*sessionLock),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Conversations exposes the transcript store.
func (e *Engine) Conversations() *ConversationStore { return e.conversations }

func (e *Engine) lockSession(id string) func() {
	e.mu.Lock()
	l, ok := e.sessions[id]
	if !ok {
		l = &sessionLock{}
		e.sessions[id] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.sessions, id)
		}
		e.mu.Unlock()
	}
}

// ----------------------------------------------------------------------------
// Core Pipeline: Answer
// ----------------------------------------------------------------------------

// Answer replies to question within sessionID.  An empty session id makes
// the question stateless: no transcript and no remote conversation id.
// Remote failures never surface as errors; the only error is an empty
// question.
func (e *Engine) Answer(ctx context.Context, question, sessionID string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "question is required")
	}
	stateless := sessionID == ""
	if stateless {
		sessionID = "anon-" + uuid.New().String()
	}

	unlock := e.lockSession(sessionID)
	defer unlock()

	start := time.Now()
	log := e.logger.With(logging.String("session_id", sessionID))

	conv := &Conversation{SessionID: sessionID}
	if !stateless {
		var err error
		conv, err = e.conversations.Load(ctx, sessionID)
		if err != nil && !errors.IsNotFound(err) {
			log.Warn("conversation load failed; starting fresh", logging.Err(err))
		}
	}

	ans := &Answer{Question: question}

	// Stage 1: realtime context
	live, stages := e.fetchContext(ctx, log)
	ans.Stages = append(ans.Stages, stages...)
	ans.Context = live

	// Stage 2: remote reasoning
	text, stage, remoteID := e.reason(ctx, question, conv.RemoteID, log)
	ans.Stages = append(ans.Stages, stage)
	if remoteID != "" {
		conv.RemoteID = remoteID
	}

	snap := e.store.Snapshot()
	now := e.clock.Now()
	path := PathRemote

	// Stage 3: local fallback
	if !stage.OK {
		fbStart := time.Now()
		ans.Intent, text = e.analyzer.Answer(snap, question, now, live)
		ans.UsedFallback = true
		path = PathFallback
		ans.Stages = append(ans.Stages, StageResult{Stage: StageFallback, OK: true, Reason: ans.Intent, Duration: time.Since(fbStart)})
	}

	ans.Text = text
	ans.ActionableItems = e.analyzer.Actionable(snap, now, question, text)
	ans.ConversationID = conv.RemoteID
	ans.AnsweredAt = now

	if !stateless {
		turn := Turn{Question: question, Answer: text, Intent: ans.Intent, UsedFallback: ans.UsedFallback, AskedAt: now}
		if err := e.conversations.Append(ctx, conv, turn); err != nil {
			log.Warn("conversation save failed", logging.Err(err))
		}
	}

	elapsed := time.Since(start)
	if e.rec != nil {
		e.rec.RecordQuery(path, elapsed)
	}
	log.Info("question answered",
		logging.String("path", path),
		logging.String("intent", ans.Intent),
		logging.Int("actionable", len(ans.ActionableItems)),
		logging.Duration("elapsed", elapsed))
	return ans, nil
}

// fetchContext reads the three realtime endpoints in parallel.  Each failure
// is logged and leaves its part empty.
func (e *Engine) fetchContext(ctx context.Context, log logging.Logger) (*ContextSummary, []StageResult) {
	names := []string{StageContextKits, StageContextAlerts, StageContextStats}
	if e.fetcher == nil {
		out := make([]StageResult, len(names))
		for i, n := range names {
			out[i] = StageResult{Stage: n, Reason: "realtime context not configured"}
		}
		return nil, out
	}

	cctx, cancel := context.WithTimeout(ctx, e.contextTimeout)
	defer cancel()

	var (
		kits, alerts []map[string]interface{}
		stats        map[string]interface{}
		results      = make([]StageResult, len(names))
		g            errgroup.Group
	)
	run := func(i int, fetch func() error) {
		g.Go(func() error {
			begin := time.Now()
			err := fetch()
			results[i] = StageResult{Stage: names[i], OK: err == nil, Duration: time.Since(begin)}
			if err != nil {
				results[i].Reason = err.Error()
				results[i].Code = errors.ErrCodeQueryContextFailed
				log.Warn("realtime context fetch failed", logging.String("stage", names[i]), logging.Err(err))
				if e.rec != nil {
					e.rec.RecordContextFailure(names[i])
				}
			}
			return nil
		})
	}
	run(0, func() (err error) { kits, err = e.fetcher.FetchKits(cctx); return })
	run(1, func() (err error) { alerts, err = e.fetcher.FetchAlerts(cctx); return })
	run(2, func() (err error) { stats, err = e.fetcher.FetchStats(cctx); return })
	_ = g.Wait()

	if !results[0].OK && !results[1].OK && !results[2].OK {
		return nil, results
	}
	summary := &ContextSummary{Kits: len(kits), Alerts: len(alerts), Stats: stats}
	if len(alerts) > recentAlertsInContext {
		alerts = alerts[:recentAlertsInContext]
	}
	summary.RecentAlerts = alerts
	return summary, results
}

// reason asks the remote endpoint.  The stage is OK only when the reply had
// something to show.
func (e *Engine) reason(ctx context.Context, question, remoteID string, log logging.Logger) (string, StageResult, string) {
	stage := StageResult{Stage: StageReasoning}
	if e.reasoner == nil {
		stage.Reason = "remote reasoning not configured"
		return "", stage, ""
	}

	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	begin := time.Now()
	resp, err := e.reasoner.Query(rctx, &client.QueryRequest{Question: question, ConversationID: remoteID})
	stage.Duration = time.Since(begin)

	if err == nil {
		if text, ok := FormatRemote(resp, e.maxRows); ok {
			stage.OK = true
			return text, stage, resp.ConversationID
		}
		err = errors.New(errors.ErrCodeQueryRemoteNoSignal, "reasoning reply carried no answer")
	}
	if rctx.Err() == context.DeadlineExceeded && !errors.IsCode(err, errors.ErrCodeQueryTimeout) {
		err = errors.Wrap(err, errors.ErrCodeQueryTimeout, "reasoning request timed out")
	}

	stage.Code = errors.GetCode(err)
	if stage.Code == errors.CodeUnknown {
		stage.Code = errors.ErrCodeQueryRemoteFailed
	}
	stage.Reason = err.Error()
	log.Warn("remote reasoning failed; answering locally",
		logging.String("code", string(stage.Code)),
		logging.Err(err))

	var id string
	if resp != nil {
		id = resp.ConversationID
	}
	return "", stage, id
}

// ----------------------------------------------------------------------------
// Suggestions
// ----------------------------------------------------------------------------

// Suggest proposes up to n questions that have a non-trivial answer against
// the current snapshot, most urgent first.
func (e *Engine) Suggest(n int) []string {
	snap := e.store.Snapshot()
	st := snap.Stats(e.clock.Now())
	candidates := []struct {
		ok bool
		q  string
	}{
		{st.OpenBySeverity[fleet.SeverityCritical] > 0, "Show me critical alerts"},
		{st.CriticalBattery+st.LowBattery > 0, "What is the battery status of the fleet?"},
		{st.Overdue > 0, "Which kits are overdue for return?"},
		{st.ByPhase[fleet.PhaseInTransit] > 0, "Which kits are in transit?"},
		{st.PoorConnectivity > 0, "Which kits have poor connectivity?"},
		{st.ActiveTrackers > 0, "What is our utilization?"},
		{true, "Give me a fleet summary"},
	}
	var out []string
	for _, c := range candidates {
		if len(out) == n {
			break
		}
		if c.ok {
			out = append(out, c.q)
		}
	}
	return out
}

//Personal.AI order the ending
