package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/estatechat/chatsync/pkg/api"
)

func newSendFixture(t *testing.T) (*fakeService, *Cache, *SessionManager, *SendCoordinator, string) {
	t.Helper()

	svc := newFakeService()
	cache := NewCache()
	sessions := NewSessionManager(svc, cache)
	session, err := sessions.EnsureSession(context.Background(), "en")
	require.NoError(t, err)

	return svc, cache, sessions, NewSendCoordinator(svc, cache, sessions), session.ID
}

func TestSendEmptyMessageNeverReachesNetwork(t *testing.T) {
	svc, cache, _, sender, sessionID := newSendFixture(t)

	for _, content := range []string{"", "   ", "\n\t "} {
		_, err := sender.Send(context.Background(), sessionID, content, "en")
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrInvalidInput))
	}

	require.Equal(t, 0, svc.sentCount())
	require.Empty(t, cache.View(sessionID))
}

func TestSendOverlongMessageRejected(t *testing.T) {
	svc, _, _, sender, sessionID := newSendFixture(t)

	_, err := sender.Send(context.Background(), sessionID, strings.Repeat("a", 1001), "en")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidInput))
	require.Equal(t, 0, svc.sentCount())
}

func TestSendWithoutActiveSessionFails(t *testing.T) {
	svc := newFakeService()
	cache := NewCache()
	sessions := NewSessionManager(svc, cache)
	sender := NewSendCoordinator(svc, cache, sessions)

	_, err := sender.Send(context.Background(), "session-1", "hello", "en")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidState))
	require.Equal(t, 0, svc.sentCount())
}

func TestSendToExpiredSessionFails(t *testing.T) {
	svc, _, sessions, sender, sessionID := newSendFixture(t)

	sessions.MarkExpired()

	_, err := sender.Send(context.Background(), sessionID, "hello", "en")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidState))
	require.Equal(t, 0, svc.sentCount())
}

func TestSendSuccessCommitsReply(t *testing.T) {
	_, cache, _, sender, sessionID := newSendFixture(t)

	res, err := sender.Send(context.Background(), sessionID, "hello", "en")
	require.NoError(t, err)
	require.True(t, IsProvisionalID(res.ProvisionalID))
	require.Equal(t, "reply-1", res.Reply.ID)
	require.Equal(t, "How can I help?", res.Reply.Content)
	require.Equal(t, "greeting", res.Reply.Intent)

	view := cache.View(sessionID)
	require.Len(t, view, 2)
	require.Equal(t, res.ProvisionalID, view[0].ID)
	require.Equal(t, "hello", view[0].Content)
	require.Equal(t, "reply-1", view[1].ID)
	require.Empty(t, cache.PendingSends(sessionID))
}

func TestSendNormalizesWhitespace(t *testing.T) {
	_, cache, _, sender, sessionID := newSendFixture(t)

	_, err := sender.Send(context.Background(), sessionID, "  hello   world \n", "en")
	require.NoError(t, err)

	view := cache.View(sessionID)
	require.Equal(t, "hello world", view[0].Content)
}

func TestSendDetectsLanguageWhenUnset(t *testing.T) {
	_, cache, _, sender, sessionID := newSendFixture(t)

	_, err := sender.Send(context.Background(), sessionID, "こんにちは", "")
	require.NoError(t, err)

	view := cache.View(sessionID)
	require.Equal(t, "ja", view[0].Language)
}

func TestSendFailureRollsBackAndPreservesContent(t *testing.T) {
	svc, cache, _, sender, sessionID := newSendFixture(t)
	svc.sendErr = &api.Error{Status: 500, Code: "INTERNAL_ERROR", Message: "boom"}

	_, err := sender.Send(context.Background(), sessionID, "  please retry me  ", "en")
	require.Error(t, err)

	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	require.Equal(t, "  please retry me  ", sendErr.Content)
	require.True(t, sendErr.Retryable())

	require.Empty(t, cache.View(sessionID))
	require.Empty(t, cache.PendingSends(sessionID))
}

func TestSendSessionGoneMarksExpired(t *testing.T) {
	svc, cache, sessions, sender, sessionID := newSendFixture(t)
	svc.sendErr = &api.Error{Status: 410, Code: api.CodeSessionExpired, Message: "gone"}

	_, err := sender.Send(context.Background(), sessionID, "hello", "en")
	require.Error(t, err)
	require.True(t, api.IsSessionGone(err))

	require.Equal(t, api.SessionExpired, sessions.Current().Status)
	require.Empty(t, cache.View(sessionID))
}
