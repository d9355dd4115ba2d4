package chat

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/estatechat/chatsync/pkg/api"
)

// SessionService is the slice of the request client the session manager
// needs.
type SessionService interface {
	CreateSession(ctx context.Context, lang string) (*api.Session, error)
	GetSession(ctx context.Context, sessionID string) (*api.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// SessionManager owns the identity of the active session. EnsureSession
// issues at most one creation request regardless of how many callers race
// into it; a failed creation releases the guard so the next call can retry.
// It performs no retries itself; retry policy belongs to the caller.
type SessionManager struct {
	svc   SessionService
	cache *Cache

	group singleflight.Group

	mu      sync.Mutex
	current *api.Session
}

func NewSessionManager(svc SessionService, cache *Cache) *SessionManager {
	return &SessionManager{
		svc:   svc,
		cache: cache,
	}
}

// Current returns the active session, or nil when none exists.
func (m *SessionManager) Current() *api.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// EnsureSession returns the active session, creating one on first use.
// Concurrent callers during an in-flight creation all resolve to the same
// session without triggering a second request.
func (m *SessionManager) EnsureSession(ctx context.Context, lang string) (*api.Session, error) {
	if s := m.Current(); s != nil {
		return s, nil
	}

	v, err, _ := m.group.Do("create", func() (interface{}, error) {
		// A racing caller may have won before we got the slot.
		if s := m.Current(); s != nil {
			return s, nil
		}

		session, err := m.svc.CreateSession(ctx, lang)
		if err != nil {
			return nil, errors.Wrap(err, "ensure session")
		}

		m.mu.Lock()
		m.current = session
		m.mu.Unlock()

		m.cache.Track(session.ID)

		log.Info().
			Str("session_id", session.ID).
			Str("language", session.Language).
			Msg("session created")

		publishEvent(m.cache.publisher, Event{
			Type:      EventSessionCreated,
			SessionID: session.ID,
			Time:      m.cache.clock(),
		})

		return session, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*api.Session), nil
}

// Refresh re-fetches the authoritative session record, picking up status
// transitions and updated counters. A session-gone answer marks the local
// handle expired.
func (m *SessionManager) Refresh(ctx context.Context) (*api.Session, error) {
	current := m.Current()
	if current == nil {
		return nil, errors.Wrap(ErrInvalidState, "no active session")
	}

	session, err := m.svc.GetSession(ctx, current.ID)
	if err != nil {
		if api.IsSessionGone(err) {
			m.MarkExpired()
		}
		return nil, errors.Wrap(err, "refresh session")
	}

	m.mu.Lock()
	wasExpired := m.current != nil && m.current.Status == api.SessionExpired
	m.current = session
	m.mu.Unlock()

	if session.Status == api.SessionExpired && !wasExpired {
		log.Info().Str("session_id", session.ID).Msg("session expired server-side")
		publishEvent(m.cache.publisher, Event{
			Type:      EventSessionExpired,
			SessionID: session.ID,
			Time:      m.cache.clock(),
		})
	}

	s := *session
	return &s, nil
}

// MarkExpired records that the server no longer honors the session. The
// timeline is kept so the UI can still show the conversation.
func (m *SessionManager) MarkExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.Status == api.SessionExpired {
		return
	}
	m.current.Status = api.SessionExpired

	log.Info().Str("session_id", m.current.ID).Msg("session marked expired")

	publishEvent(m.cache.publisher, Event{
		Type:      EventSessionExpired,
		SessionID: m.current.ID,
		Time:      m.cache.clock(),
	})
}

// End deletes the session server-side and drops its local timeline. A
// session-gone answer from the server is treated as success. Local state
// is cleared only after the delete settles, so a failed End can be retried.
func (m *SessionManager) End(ctx context.Context) error {
	session := m.Current()
	if session == nil {
		return nil
	}

	err := m.svc.DeleteSession(ctx, session.ID)
	if err != nil && !api.IsSessionGone(err) {
		return errors.Wrap(err, "end session")
	}

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	m.cache.Drop(session.ID)

	publishEvent(m.cache.publisher, Event{
		Type:      EventSessionEnded,
		SessionID: session.ID,
		Time:      m.cache.clock(),
	})

	return nil
}
