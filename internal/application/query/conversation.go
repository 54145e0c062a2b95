package query

import (
	"context"
	"time"
)

// Turn is one question and its answer.
type Turn struct {
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Intent       string    `json:"intent,omitempty"`
	UsedFallback bool      `json:"used_fallback"`
	AskedAt      time.Time `json:"asked_at"`
}

// Conversation is the transcript of one session.  RemoteID is the
// conversation id issued by the reasoning endpoint, empty while stateless.
type Conversation struct {
	SessionID string    `json:"session_id"`
	RemoteID  string    `json:"remote_id,omitempty"`
	Turns     []Turn    `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationStore keeps transcripts in the cache under "conv:<session>".
type ConversationStore struct {
	cache    Cache
	maxTurns int
	ttl      time.Duration
}

// NewConversationStore keeps the last maxTurns turns of each session for ttl.
func NewConversationStore(cache Cache, maxTurns int, ttl time.Duration) *ConversationStore {
	if maxTurns < 1 {
		maxTurns = 20
	}
	return &ConversationStore{cache: cache, maxTurns: maxTurns, ttl: ttl}
}

func conversationKey(sessionID string) string { return "conv:" + sessionID }

// Load returns the session transcript.  A miss yields an empty transcript;
// other cache errors are returned alongside it.
func (s *ConversationStore) Load(ctx context.Context, sessionID string) (*Conversation, error) {
	conv := &Conversation{SessionID: sessionID}
	if s.cache == nil {
		return conv, nil
	}
	var stored Conversation
	if err := s.cache.Get(ctx, conversationKey(sessionID), &stored); err != nil {
		return conv, err
	}
	stored.SessionID = sessionID
	return &stored, nil
}

// Append adds a turn, trims to maxTurns and saves.
func (s *ConversationStore) Append(ctx context.Context, conv *Conversation, turn Turn) error {
	conv.Turns = append(conv.Turns, turn)
	if over := len(conv.Turns) - s.maxTurns; over > 0 {
		conv.Turns = append([]Turn(nil), conv.Turns[over:]...)
	}
	conv.UpdatedAt = turn.AskedAt
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(ctx, conversationKey(conv.SessionID), conv, s.ttl)
}

// Reset forgets the session transcript and its remote conversation id.
func (s *ConversationStore) Reset(ctx context.Context, sessionID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, conversationKey(sessionID))
}

//Personal.AI order the ending
