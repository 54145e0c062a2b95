package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// FleetClient calls the TRAXX service API under /api/v1.
type FleetClient struct {
	client *Client
}

// envelope mirrors the service response wrapper.
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func unwrap[T any](env *envelope[T]) (T, error) {
	if !env.Success && env.Error != nil {
		var zero T
		return zero, &APIError{Code: env.Error.Code, Message: env.Error.Message, RequestID: env.RequestID}
	}
	return env.Data, nil
}

// AskRequest is the body of POST /api/v1/query.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// ActionableItem references one entity a reply points at.
type ActionableItem struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Label  string `json:"label"`
	Intent string `json:"intent,omitempty"`
}

// StageResult reports one stage of the query pipeline.
type StageResult struct {
	Stage    string        `json:"stage"`
	OK       bool          `json:"ok"`
	Reason   string        `json:"reason,omitempty"`
	Code     string        `json:"code,omitempty"`
	Duration time.Duration `json:"duration"`
}

// AskResponse is the service answer to a question.
type AskResponse struct {
	Question        string           `json:"question"`
	Text            string           `json:"text"`
	Intent          string           `json:"intent,omitempty"`
	ActionableItems []ActionableItem `json:"actionable_items"`
	UsedFallback    bool             `json:"used_fallback"`
	ConversationID  string           `json:"conversation_id,omitempty"`
	Stages          []StageResult    `json:"stages"`
}

// Ask sends a question to the service.
func (f *FleetClient) Ask(ctx context.Context, req *AskRequest) (*AskResponse, error) {
	if req == nil || req.Question == "" {
		return nil, fmt.Errorf("question is required")
	}
	var env envelope[*AskResponse]
	if err := f.client.post(ctx, "/api/v1/query", req, &env); err != nil {
		return nil, err
	}
	return unwrap(&env)
}

// ClustersRequest selects one layer of the map for a viewport.
type ClustersRequest struct {
	Kind  string
	South float64
	West  float64
	North float64
	East  float64
	Zoom  float64
}

// ClusterNode is one drawable map item.
type ClusterNode struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Cluster   bool     `json:"cluster"`
	Count     int      `json:"count"`
	MemberIDs []string `json:"member_ids,omitempty"`
	Location  LatLng   `json:"location"`
	Render    LatLng   `json:"render"`
}

// LatLng is a WGS84 position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Clusters fetches the cluster layout of one entity kind.
func (f *FleetClient) Clusters(ctx context.Context, req *ClustersRequest) ([]ClusterNode, error) {
	if req == nil {
		return nil, fmt.Errorf("clusters request is required")
	}
	q := url.Values{}
	q.Set("kind", req.Kind)
	q.Set("south", formatFloat(req.South))
	q.Set("west", formatFloat(req.West))
	q.Set("north", formatFloat(req.North))
	q.Set("east", formatFloat(req.East))
	q.Set("zoom", formatFloat(req.Zoom))

	var env envelope[[]ClusterNode]
	if err := f.client.get(ctx, "/api/v1/map/clusters?"+q.Encode(), &env); err != nil {
		return nil, err
	}
	return unwrap(&env)
}

// Stats fetches the fleet summary as a loose object.
func (f *FleetClient) Stats(ctx context.Context) (map[string]interface{}, error) {
	var env envelope[map[string]interface{}]
	if err := f.client.get(ctx, "/api/v1/stats", &env); err != nil {
		return nil, err
	}
	return unwrap(&env)
}

// Selection is the service selection state.
type Selection struct {
	Kind  string `json:"kind,omitempty"`
	ID    string `json:"id,omitempty"`
	State string `json:"state"`
}

// Select selects (or toggles off) one entity.
func (f *FleetClient) Select(ctx context.Context, kind, id string) (*Selection, error) {
	body := map[string]string{"kind": kind, "id": id}
	var env envelope[*Selection]
	if err := f.client.post(ctx, "/api/v1/selection", body, &env); err != nil {
		return nil, err
	}
	return unwrap(&env)
}

// ClearSelection closes the current selection.
func (f *FleetClient) ClearSelection(ctx context.Context) error {
	var env envelope[json.RawMessage]
	if err := f.client.delete(ctx, "/api/v1/selection", &env); err != nil {
		return err
	}
	_, err := unwrap(&env)
	return err
}

// Highlight emphasizes a set of entities for the configured TTL.
func (f *FleetClient) Highlight(ctx context.Context, kind string, ids []string) error {
	body := map[string]interface{}{"kind": kind, "ids": ids}
	var env envelope[json.RawMessage]
	if err := f.client.post(ctx, "/api/v1/highlight", body, &env); err != nil {
		return err
	}
	_, err := unwrap(&env)
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

//Personal.AI order the ending
