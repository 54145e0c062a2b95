// Package query answers natural-language questions about the live fleet.  A
// question first gathers realtime context, then goes to the remote reasoning
// endpoint; any failure there falls back to a local keyword analyzer over the
// current snapshot.  Both paths attach the same actionable entity references.
package query

import (
	"context"
	"time"

	"github.com/turtacn/TRAXX-Intelligence/pkg/client"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// ============================================================================
// Results
// ============================================================================

// Stage names reported in Answer.Stages.
const (
	StageContextKits   = "context.kits"
	StageContextAlerts = "context.alerts"
	StageContextStats  = "context.stats"
	StageReasoning     = "reasoning"
	StageFallback      = "fallback"
)

// StageResult is the outcome of one pipeline stage.
type StageResult struct {
	Stage    string           `json:"stage"`
	OK       bool             `json:"ok"`
	Reason   string           `json:"reason,omitempty"`
	Code     errors.ErrorCode `json:"code,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// ActionableItem is an entity the answer points at.  Clients turn it into a
// select or highlight call.
type ActionableItem struct {
	Kind   common.EntityKind `json:"kind"`
	ID     string            `json:"id"`
	Label  string            `json:"label"`
	Intent string            `json:"intent,omitempty"`
}

// Answer is the reply to one question.
type Answer struct {
	Question        string           `json:"question"`
	Text            string           `json:"text"`
	Intent          string           `json:"intent,omitempty"`
	ActionableItems []ActionableItem `json:"actionable_items"`
	UsedFallback    bool             `json:"used_fallback"`
	ConversationID  string           `json:"conversation_id,omitempty"`
	Context         *ContextSummary  `json:"context,omitempty"`
	Stages          []StageResult    `json:"stages"`
	AnsweredAt      time.Time        `json:"answered_at"`
}

// Stage returns the named stage result, if the pipeline ran it.
func (a *Answer) Stage(name string) (StageResult, bool) {
	for _, s := range a.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// ContextSummary is the realtime context gathered before reasoning.
type ContextSummary struct {
	Kits         int                      `json:"kits"`
	Alerts       int                      `json:"alerts"`
	Stats        map[string]interface{}   `json:"stats,omitempty"`
	RecentAlerts []map[string]interface{} `json:"recent_alerts,omitempty"`
}

// ============================================================================
// Collaborators
// ============================================================================

// Reasoner is the remote reasoning endpoint.
type Reasoner interface {
	Query(ctx context.Context, req *client.QueryRequest) (*client.QueryResponse, error)
}

// ContextFetcher reads the realtime context endpoints.  Records are loose
// JSON objects; the engine only counts and forwards them.
type ContextFetcher interface {
	FetchKits(ctx context.Context) ([]map[string]interface{}, error)
	FetchAlerts(ctx context.Context) ([]map[string]interface{}, error)
	FetchStats(ctx context.Context) (map[string]interface{}, error)
}

// Cache persists conversation transcripts.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Recorder receives pipeline metrics.
type Recorder interface {
	RecordQuery(path string, d time.Duration)
	RecordContextFailure(stage string)
}

//Personal.AI order the ending
