package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	traxxerrors "github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

func replyWith(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestReasoning_Query_RequestShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/query", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "where are my kits", body["question"])
		assert.Equal(t, "conv-1", body["conversationId"])
		w.Write([]byte(`{"answer": "in Denver"}`))
	})

	resp, err := c.Reasoning().Query(context.Background(), &QueryRequest{Question: "where are my kits", ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.Equal(t, "in Denver", resp.Answer)
	assert.True(t, resp.HasSignal())
}

func TestReasoning_Query_OmitsEmptyConversation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, present := body["conversationId"]
		assert.False(t, present)
		w.Write([]byte(`{}`))
	})
	resp, err := c.Reasoning().Query(context.Background(), &QueryRequest{Question: "q"})
	require.NoError(t, err)
	assert.False(t, resp.HasSignal())
}

func TestReasoning_Query_TolerantDecoding(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantConv string
		wantRows int
		wantExp  string
		wantAns  string
	}{
		{"camel conversation id", `{"conversationId": "c1", "answer": "a"}`, "c1", 0, "", "a"},
		{"snake conversation id", `{"conversation_id": "c2", "message": "m"}`, "c2", 0, "", "m"},
		{"execution data", `{"execution": {"data": [{"id": "t-1"}, {"id": "t-2"}]}, "explanation": "two kits"}`, "", 2, "two kits", ""},
		{"results fallback", `{"execution": {"data": []}, "results": [{"id": "t-1"}]}`, "", 1, "", ""},
		{"scalar rows wrapped", `{"results": [1, "two", null]}`, "", 2, "", ""},
		{"response field", `{"response": "r", "message": "m"}`, "", 0, "", "r"},
		{"answer wins over message", `{"answer": "a", "message": "m"}`, "", 0, "", "a"},
		{"blank answer skipped", `{"answer": "  ", "message": "m"}`, "", 0, "", "m"},
		{"wrong types ignored", `{"results": "nope", "execution": 3, "answer": 7, "explanation": "e"}`, "", 0, "e", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, replyWith(http.StatusOK, tt.body))
			resp, err := c.Reasoning().Query(context.Background(), &QueryRequest{Question: "q"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantConv, resp.ConversationID)
			assert.Len(t, resp.Rows, tt.wantRows)
			assert.Equal(t, tt.wantExp, resp.Explanation)
			assert.Equal(t, tt.wantAns, resp.Answer)
		})
	}
}

func TestReasoning_Query_ScalarRowValue(t *testing.T) {
	c := newTestClient(t, replyWith(http.StatusOK, `{"results": ["t-9"]}`))
	resp, err := c.Reasoning().Query(context.Background(), &QueryRequest{Question: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "t-9", resp.Rows[0]["value"])
}

func TestReasoning_Query_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    traxxerrors.ErrorCode
	}{
		{"malformed json", replyWith(http.StatusOK, `{"answer": `), traxxerrors.ErrCodeQueryRemoteMalformed},
		{"not an object", replyWith(http.StatusOK, `["a", "b"]`), traxxerrors.ErrCodeQueryRemoteMalformed},
		{"server error", replyWith(http.StatusInternalServerError, `{"message": "boom"}`), traxxerrors.ErrCodeQueryRemoteFailed},
		{"client error", replyWith(http.StatusBadRequest, `{"message": "bad"}`), traxxerrors.ErrCodeQueryRemoteFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, WithRetryMax(0))
			_, err := c.Reasoning().Query(context.Background(), &QueryRequest{Question: "q"})
			require.Error(t, err)
			assert.Equal(t, tt.code, traxxerrors.GetCode(err))
		})
	}
}

func TestReasoning_Query_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, WithRetryMax(0))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Reasoning().Query(ctx, &QueryRequest{Question: "q"})
	require.Error(t, err)
	assert.Equal(t, traxxerrors.ErrCodeQueryTimeout, traxxerrors.GetCode(err))
}

func TestReasoning_Query_EmptyQuestion(t *testing.T) {
	c, _ := NewClient("http://api.example.com", "")
	_, err := c.Reasoning().Query(context.Background(), &QueryRequest{Question: "   "})
	assert.True(t, traxxerrors.IsCode(err, traxxerrors.ErrCodeQueryEmpty))
	_, err = c.Reasoning().Query(context.Background(), nil)
	assert.True(t, traxxerrors.IsCode(err, traxxerrors.ErrCodeQueryEmpty))
}

//Personal.AI order the ending
