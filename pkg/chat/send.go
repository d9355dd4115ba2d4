package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/estatechat/chatsync/pkg/api"
	"github.com/estatechat/chatsync/pkg/language"
)

// MessageService is the slice of the request client the send coordinator
// needs.
type MessageService interface {
	SendMessage(ctx context.Context, sessionID, content, lang string) (*api.SendMessageResponse, error)
}

// SendResult reports a settled successful send: the optimistic entry that
// represented it and the assistant's reply.
type SendResult struct {
	ProvisionalID string
	Reply         Message
}

// SendError is returned when a durable send fails after the optimistic
// apply. Content carries the user's typed text unmodified so the caller can
// offer a retry without losing it.
type SendError struct {
	Content string
	Err     error
}

func (e *SendError) Error() string {
	return e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Retryable reports whether resending the same content may succeed.
func (e *SendError) Retryable() bool {
	return api.IsRetryable(e.Err)
}

// SendCoordinator turns a user-submitted string into an optimistic cache
// mutation plus a durable send, and reconciles the outcome. It does not
// de-duplicate rapid repeated sends; preventing double submission is the
// caller's job.
type SendCoordinator struct {
	svc      MessageService
	cache    *Cache
	sessions *SessionManager
}

func NewSendCoordinator(svc MessageService, cache *Cache, sessions *SessionManager) *SendCoordinator {
	return &SendCoordinator{
		svc:      svc,
		cache:    cache,
		sessions: sessions,
	}
}

// Send validates content, applies it optimistically, performs the durable
// send and commits or rolls back. The optimistic apply is synchronous:
// a View between Send being called and it returning already shows the user
// message. Once the request is issued its outcome is always applied, even
// if ctx's caller has moved on.
func (s *SendCoordinator) Send(ctx context.Context, sessionID, content, lang string) (*SendResult, error) {
	trimmed := language.Normalize(content)
	if !language.IsValid(trimmed) {
		return nil, errors.Wrap(ErrInvalidInput, "message is empty or too long")
	}

	if current := s.sessions.Current(); current == nil || current.ID != sessionID {
		return nil, errors.Wrapf(ErrInvalidState, "session %s is not active", sessionID)
	} else if current.Expired(time.Now()) {
		return nil, errors.Wrapf(ErrInvalidState, "session %s is expired", sessionID)
	}

	if lang == "" {
		lang = language.Detect(trimmed)
	}

	provisionalID, err := s.cache.ApplyOptimistic(sessionID, trimmed, lang)
	if err != nil {
		return nil, err
	}

	resp, err := s.svc.SendMessage(ctx, sessionID, trimmed, lang)
	if err != nil {
		s.cache.RollbackOptimistic(sessionID, provisionalID)
		if api.IsSessionGone(err) {
			s.sessions.MarkExpired()
		}
		log.Warn().
			Str("session_id", sessionID).
			Str("provisional_id", provisionalID).
			Err(err).
			Msg("durable send failed, rolled back")
		return nil, &SendError{Content: content, Err: err}
	}

	if err := s.cache.CommitOptimistic(sessionID, provisionalID, resp); err != nil {
		// The timeline vanished between apply and commit (session ended
		// mid-flight). The send itself succeeded; report it as such.
		log.Debug().Str("session_id", sessionID).Err(err).Msg("commit after send found no timeline")
	}

	return &SendResult{
		ProvisionalID: provisionalID,
		Reply:         *replyFromSend(sessionID, resp, time.Now()),
	}, nil
}
