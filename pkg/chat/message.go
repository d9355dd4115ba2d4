package chat

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/estatechat/chatsync/pkg/api"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// provisionalPrefix namespaces locally generated message identifiers. The
// server issues bare UUIDs, so a prefixed ID can never collide with one.
const provisionalPrefix = "local-"

// NewProvisionalID returns a fresh identifier for an optimistic message.
func NewProvisionalID() string {
	return provisionalPrefix + uuid.NewString()
}

// IsProvisionalID reports whether id was generated locally rather than by
// the server.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}

// Message is a single timeline entry. Confirmed messages come from the
// authoritative service; optimistic messages are synthesized locally while a
// send is in flight and are distinguishable by their provisional ID.
type Message struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Role       Role            `json:"role"`
	Content    string          `json:"content"`
	Language   string          `json:"language,omitempty"`
	Intent     string          `json:"intent,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Entities   json.RawMessage `json:"entities,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Optimistic reports whether the message is still awaiting server
// confirmation.
func (m *Message) Optimistic() bool {
	return IsProvisionalID(m.ID)
}

func newOptimisticMessage(sessionID, content, lang string, now time.Time) *Message {
	return &Message{
		ID:        NewProvisionalID(),
		SessionID: sessionID,
		Role:      RoleUser,
		Content:   content,
		Language:  lang,
		CreatedAt: now,
	}
}

func messageFromAPI(m api.Message) *Message {
	return &Message{
		ID:         m.ID,
		SessionID:  m.SessionID,
		Role:       Role(m.Role),
		Content:    m.Content,
		Language:   m.Language,
		Intent:     m.Intent,
		Confidence: m.Confidence,
		Entities:   m.Entities,
		CreatedAt:  m.CreatedAt,
	}
}

// replyFromSend turns the assistant part of a send response into a confirmed
// message, so the reply shows up without waiting for the next poll.
func replyFromSend(sessionID string, resp *api.SendMessageResponse, now time.Time) *Message {
	createdAt := now
	if resp.CreatedAt != nil {
		createdAt = *resp.CreatedAt
	}
	return &Message{
		ID:         resp.MessageID,
		SessionID:  sessionID,
		Role:       RoleAssistant,
		Content:    resp.Response,
		Language:   resp.Language,
		Intent:     resp.Intent,
		Confidence: resp.Confidence,
		Entities:   resp.Entities,
		CreatedAt:  createdAt,
	}
}
