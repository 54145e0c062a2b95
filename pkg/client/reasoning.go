package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

// ReasoningClient calls the remote natural-language reasoning endpoint.
type ReasoningClient struct {
	client *Client
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversationId,omitempty"`
}

// QueryResponse is the tolerant reading of a /query reply.  Every field is
// optional on the wire.
type QueryResponse struct {
	ConversationID string                   `json:"conversation_id,omitempty"`
	Rows           []map[string]interface{} `json:"rows,omitempty"`
	Explanation    string                   `json:"explanation,omitempty"`
	// Answer is the first non-empty of answer, response and message.
	Answer string `json:"answer,omitempty"`
}

// HasSignal reports whether the reply carries anything worth showing.
func (r *QueryResponse) HasSignal() bool {
	return r != nil && (len(r.Rows) > 0 || r.Explanation != "" || r.Answer != "")
}

// Query posts a question.  Errors are classified with QRY_ codes: timeouts
// as ErrCodeQueryTimeout, undecodable bodies as ErrCodeQueryRemoteMalformed
// and everything else as ErrCodeQueryRemoteFailed.
func (r *ReasoningClient) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if req == nil || strings.TrimSpace(req.Question) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "question is required")
	}

	var raw interface{}
	if err := r.client.post(ctx, "/query", req, &raw); err != nil {
		return nil, classifyQueryError(ctx, err)
	}
	if raw == nil {
		return &QueryResponse{}, nil
	}
	body, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrCodeQueryRemoteMalformed, "reply is a %T, expected an object", raw)
	}
	return decodeQueryResponse(body), nil
}

func classifyQueryError(ctx context.Context, err error) error {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Wrap(err, errors.ErrCodeQueryTimeout, "reasoning request timed out")
	case errors.IsCode(err, errors.ErrCodeSerialization):
		return errors.Wrap(err, errors.ErrCodeQueryRemoteMalformed, "reasoning reply is not valid JSON")
	}
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return errors.Wrap(err, errors.ErrCodeQueryRemoteFailed, fmt.Sprintf("reasoning endpoint returned HTTP %d", apiErr.StatusCode))
	}
	return errors.Wrap(err, errors.ErrCodeQueryRemoteFailed, "reasoning request failed")
}

// decodeQueryResponse picks the known fields out of an arbitrary object.
// Fields of an unexpected type are ignored.
func decodeQueryResponse(body map[string]interface{}) *QueryResponse {
	out := &QueryResponse{
		ConversationID: firstString(body, "conversationId", "conversation_id"),
		Explanation:    firstString(body, "explanation"),
		Answer:         firstString(body, "answer", "response", "message"),
	}
	if exec, ok := body["execution"].(map[string]interface{}); ok {
		out.Rows = rows(exec["data"])
	}
	if len(out.Rows) == 0 {
		out.Rows = rows(body["results"])
	}
	return out
}

func firstString(body map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := body[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// rows accepts a list of objects; scalar entries become {"value": v}.
func rows(v interface{}) []map[string]interface{} {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		switch row := item.(type) {
		case map[string]interface{}:
			out = append(out, row)
		case nil:
		default:
			out = append(out, map[string]interface{}{"value": row})
		}
	}
	return out
}

//Personal.AI order the ending
