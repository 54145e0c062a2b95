package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/query"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

const maxSuggestions = 10

// QueryService answers questions about the live fleet.
type QueryService interface {
	Answer(ctx context.Context, question, sessionID string) (*query.Answer, error)
	Suggest(n int) []string
}

// TranscriptStore reads and forgets session transcripts.
type TranscriptStore interface {
	Load(ctx context.Context, sessionID string) (*query.Conversation, error)
	Reset(ctx context.Context, sessionID string) error
}

// AskRequest is the body of POST /query.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// QueryHandler serves the conversational query routes.
type QueryHandler struct {
	engine      QueryService
	transcripts TranscriptStore
}

// NewQueryHandler creates a QueryHandler.  transcripts may be nil, in which
// case the session routes are not registered.
func NewQueryHandler(engine QueryService, transcripts TranscriptStore) *QueryHandler {
	return &QueryHandler{engine: engine, transcripts: transcripts}
}

// RegisterRoutes registers the query routes under rg.  limit, when given,
// guards POST /query only.
func (h *QueryHandler) RegisterRoutes(rg gin.IRoutes, limit ...gin.HandlerFunc) {
	rg.POST("/query", append(limit, h.Ask)...)
	rg.GET("/query/suggestions", h.Suggestions)
	if h.transcripts != nil {
		rg.GET("/query/sessions/:id", h.Transcript)
		rg.DELETE("/query/sessions/:id", h.ResetSession)
	}
}

// Ask handles POST /query.  Remote failures are absorbed by the engine's
// fallback; only an empty question is rejected.
func (h *QueryHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	ans, err := h.engine.Answer(c.Request.Context(), req.Question, req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, ans)
}

// Suggestions handles GET /query/suggestions?n=.
func (h *QueryHandler) Suggestions(c *gin.Context) {
	out := h.engine.Suggest(queryInt(c, "n", 4, maxSuggestions))
	if out == nil {
		out = []string{}
	}
	respond(c, http.StatusOK, out)
}

// Transcript handles GET /query/sessions/:id.  An unknown session has an
// empty transcript.
func (h *QueryHandler) Transcript(c *gin.Context) {
	conv, err := h.transcripts.Load(c.Request.Context(), c.Param("id"))
	if err != nil && !errors.IsNotFound(err) {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, conv)
}

// ResetSession handles DELETE /query/sessions/:id.
func (h *QueryHandler) ResetSession(c *gin.Context) {
	if err := h.transcripts.Reset(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

//Personal.AI order the ending
