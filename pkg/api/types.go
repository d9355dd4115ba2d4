// Package api implements the typed HTTP client for the estate-chat service:
// session lifecycle, message exchange, property briefs and glossary lookup.
// It is the single place that knows about routes, wire shapes and the
// transport error taxonomy; everything above it works with the structs
// defined here.
package api

import (
	"encoding/json"
	"time"
)

// SessionStatus is the server-side lifecycle state of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
	SessionAbandoned SessionStatus = "abandoned"
)

// Session is the authoritative session record. The identifier is opaque and
// immutable once assigned; only Status changes over the session's lifetime.
type Session struct {
	ID         string        `json:"session_id"`
	Status     SessionStatus `json:"status"`
	Language   string        `json:"language,omitempty"`
	TurnCount  int           `json:"turn_count,omitempty"`
	TokenCount int           `json:"token_count,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  *time.Time    `json:"updated_at,omitempty"`
	ExpiresAt  *time.Time    `json:"expires_at,omitempty"`
}

// Expired reports whether the session is no longer usable, either because
// the server marked it so or because its expiry timestamp has passed.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.Status == SessionExpired || s.Status == SessionAbandoned {
		return true
	}
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Message is a persisted conversation message as returned by the service.
type Message struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	Language   string          `json:"language,omitempty"`
	Intent     string          `json:"intent,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Entities   json.RawMessage `json:"entities,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MessagesPage is the full authoritative message list for a session.
type MessagesPage struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	Total     int       `json:"total"`
}

// SendMessageRequest is the body of POST /sessions/{id}/messages.
type SendMessageRequest struct {
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
}

// SendMessageResponse carries the assistant's reply to a durable send. The
// persisted user message is not echoed back; MessageID identifies the
// assistant reply so a later poll can be matched against it.
type SendMessageResponse struct {
	MessageID  string          `json:"message_id"`
	SessionID  string          `json:"session_id"`
	Response   string          `json:"response"`
	Intent     string          `json:"intent,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Entities   json.RawMessage `json:"entities,omitempty"`
	Language   string          `json:"language,omitempty"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
}

// PropertyType classifies what the user is trying to do with a property.
type PropertyType string

const (
	PropertyBuy  PropertyType = "buy"
	PropertyRent PropertyType = "rent"
	PropertySell PropertyType = "sell"
)

// BriefStatus is the lifecycle state of a property brief.
type BriefStatus string

const (
	BriefDraft      BriefStatus = "draft"
	BriefInProgress BriefStatus = "in_progress"
	BriefCompleted  BriefStatus = "completed"
	BriefSubmitted  BriefStatus = "submitted"
)

// Brief is the property brief accumulated over a conversation.
type Brief struct {
	ID                string         `json:"brief_id"`
	SessionID         string         `json:"session_id,omitempty"`
	PropertyType      PropertyType   `json:"property_type,omitempty"`
	Status            BriefStatus    `json:"status"`
	Location          string         `json:"location,omitempty"`
	BudgetMin         *int           `json:"budget_min,omitempty"`
	BudgetMax         *int           `json:"budget_max,omitempty"`
	Rooms             string         `json:"rooms,omitempty"`
	AreaMin           *float64       `json:"area_min,omitempty"`
	AreaMax           *float64       `json:"area_max,omitempty"`
	Data              map[string]any `json:"data,omitempty"`
	ExtractedEntities map[string]any `json:"extracted_entities,omitempty"`
	CompletenessScore float64        `json:"completeness_score,omitempty"`
	CreatedAt         *time.Time     `json:"created_at,omitempty"`
	UpdatedAt         *time.Time     `json:"updated_at,omitempty"`
	SubmittedAt       *time.Time     `json:"submitted_at,omitempty"`
}

// BriefUpdate is the PATCH body for a brief. Nil fields are left untouched.
type BriefUpdate struct {
	Status    *BriefStatus   `json:"status,omitempty"`
	Location  *string        `json:"location,omitempty"`
	BudgetMin *int           `json:"budget_min,omitempty"`
	BudgetMax *int           `json:"budget_max,omitempty"`
	Rooms     *string        `json:"rooms,omitempty"`
	AreaMin   *float64       `json:"area_min,omitempty"`
	AreaMax   *float64       `json:"area_max,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// GlossaryTerm is a dictionary entry for real-estate jargon.
type GlossaryTerm struct {
	ID          string   `json:"term_id"`
	Term        string   `json:"term"`
	Language    string   `json:"language,omitempty"`
	Translation string   `json:"translation"`
	Explanation string   `json:"explanation"`
	Category    string   `json:"category,omitempty"`
	Synonyms    []string `json:"synonyms,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	UsageCount  int      `json:"usage_count,omitempty"`
}

// GlossarySearchResult is the response of GET /glossary/search.
type GlossarySearchResult struct {
	Query    string         `json:"query"`
	Language string         `json:"language"`
	Results  []GlossaryTerm `json:"results"`
	Total    int            `json:"total"`
}
