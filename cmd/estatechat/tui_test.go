package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/estatechat/chatsync/pkg/api"
	"github.com/estatechat/chatsync/pkg/chat"
)

type stubService struct {
	session *api.Session
}

var _ chat.Service = (*stubService)(nil)

func (s *stubService) CreateSession(ctx context.Context, lang string) (*api.Session, error) {
	s.session = &api.Session{
		ID:        "session-1",
		Status:    api.SessionActive,
		Language:  lang,
		CreatedAt: time.Now(),
	}
	out := *s.session
	return &out, nil
}

func (s *stubService) GetSession(ctx context.Context, sessionID string) (*api.Session, error) {
	if s.session == nil || s.session.ID != sessionID {
		return nil, &api.Error{Status: 404, Code: api.CodeSessionNotFound, Message: "not found"}
	}
	out := *s.session
	return &out, nil
}

func (s *stubService) DeleteSession(ctx context.Context, sessionID string) error {
	s.session = nil
	return nil
}

func (s *stubService) SendMessage(ctx context.Context, sessionID, content, lang string) (*api.SendMessageResponse, error) {
	return &api.SendMessageResponse{
		MessageID: "reply-1",
		SessionID: sessionID,
		Response:  "How can I help?",
	}, nil
}

func (s *stubService) FetchMessages(ctx context.Context, sessionID string) (*api.MessagesPage, error) {
	return &api.MessagesPage{SessionID: sessionID}, nil
}

func TestRenderTimelineDropsSendingMarkerOnceCommitted(t *testing.T) {
	conv := chat.NewConversation(&stubService{}, chat.WithLanguage("en"))
	_, err := conv.EnsureSession(context.Background())
	require.NoError(t, err)

	m := newChatModel(context.Background(), conv, nil, make(chan chat.Event))

	res, err := conv.Send(context.Background(), "hello")
	require.NoError(t, err)

	// The provisional entry is still pending from the model's view.
	require.Contains(t, m.renderTimeline(), "(sending)")

	updated, _ := m.Update(sendDoneMsg{content: "hello", result: res})
	m = updated.(chatModel)

	require.NotContains(t, m.renderTimeline(), "(sending)")
	require.Contains(t, m.renderTimeline(), "hello")
	require.Contains(t, m.renderTimeline(), "How can I help?")
}

func TestRenderTimelineKeepsSendingMarkerWhileInFlight(t *testing.T) {
	conv := chat.NewConversation(&stubService{}, chat.WithLanguage("en"))
	_, err := conv.EnsureSession(context.Background())
	require.NoError(t, err)

	m := newChatModel(context.Background(), conv, nil, make(chan chat.Event))

	_, err = conv.Send(context.Background(), "hello")
	require.NoError(t, err)

	// No sendDoneMsg has arrived, so the entry still renders as pending.
	require.Contains(t, m.renderTimeline(), "(sending)")
}
