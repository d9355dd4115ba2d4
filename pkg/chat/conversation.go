// Package chat implements the conversation synchronization engine: a local,
// optimistically updated view of an append-only conversation whose source of
// truth is the estate-chat service, reachable only through request/response
// calls and periodic polling.
//
// The engine is built from four parts. The Cache owns per-session timelines
// and the optimistic apply / commit / rollback / reconcile state machine.
// The SessionManager owns the identity of the active session and
// de-duplicates creation. The SendCoordinator couples an optimistic cache
// mutation with the durable send request. The Poller periodically re-fetches
// the authoritative list and feeds reconciliation. Conversation ties them
// together behind the surface the UI layer consumes.
package chat

import (
	"context"
	"time"

	"github.com/estatechat/chatsync/pkg/api"
)

// Service is the full request-client contract the engine consumes. It is
// satisfied by *api.Client and by in-memory fakes in tests.
type Service interface {
	SessionService
	MessageService
	FetchService
}

var _ Service = (*api.Client)(nil)

// Conversation is the engine facade exposed to the UI layer: an ordered
// read-only message snapshot, Send, EnsureSession, and polling control.
type Conversation struct {
	svc      Service
	cache    *Cache
	sessions *SessionManager
	sender   *SendCoordinator
	poller   *Poller

	language     string
	pollInterval time.Duration
	cacheOptions []CacheOption
}

type Option func(*Conversation)

// WithLanguage sets the language preference passed to session creation and
// used as the default for outgoing messages.
func WithLanguage(lang string) Option {
	return func(c *Conversation) {
		c.language = lang
	}
}

// WithPollInterval overrides the authoritative refresh interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Conversation) {
		c.pollInterval = d
	}
}

// WithEvents publishes timeline change events to the given router.
func WithEvents(router *EventRouter) Option {
	return func(c *Conversation) {
		c.cacheOptions = append(c.cacheOptions, WithPublisher(router.Publisher))
	}
}

// WithCacheOptions passes options through to the underlying cache.
func WithCacheOptions(options ...CacheOption) Option {
	return func(c *Conversation) {
		c.cacheOptions = append(c.cacheOptions, options...)
	}
}

// NewConversation builds the engine on top of a request client. Session and
// language state live here, scoped to the conversation view's lifetime, not
// in process-wide globals.
func NewConversation(svc Service, options ...Option) *Conversation {
	ret := &Conversation{
		svc:          svc,
		pollInterval: DefaultPollInterval,
	}

	for _, o := range options {
		o(ret)
	}

	ret.cache = NewCache(ret.cacheOptions...)
	ret.sessions = NewSessionManager(svc, ret.cache)
	ret.sender = NewSendCoordinator(svc, ret.cache, ret.sessions)
	ret.poller = NewPoller(svc, ret.cache, ret.sessions, ret.pollInterval)

	return ret
}

// EnsureSession returns the active session, creating one on first use.
func (c *Conversation) EnsureSession(ctx context.Context) (*api.Session, error) {
	return c.sessions.EnsureSession(ctx, c.language)
}

// Session returns the active session, or nil.
func (c *Conversation) Session() *api.Session {
	return c.sessions.Current()
}

// RefreshSession re-fetches the authoritative session record.
func (c *Conversation) RefreshSession(ctx context.Context) (*api.Session, error) {
	return c.sessions.Refresh(ctx)
}

// View returns an ordered snapshot of the active session's timeline.
func (c *Conversation) View() []Message {
	session := c.sessions.Current()
	if session == nil {
		return nil
	}
	return c.cache.View(session.ID)
}

// Send submits content to the active session. See SendCoordinator.Send.
func (c *Conversation) Send(ctx context.Context, content string) (*SendResult, error) {
	session := c.sessions.Current()
	if session == nil {
		return nil, ErrInvalidState
	}
	return c.sender.Send(ctx, session.ID, content, c.language)
}

// StartPolling begins periodic authoritative refresh for the active
// session. It is a no-op without an active session so no requests are
// wasted while none exists.
func (c *Conversation) StartPolling() {
	session := c.sessions.Current()
	if session == nil {
		return
	}
	c.poller.Start(session.ID)
}

// StopPolling cancels the poll timer. An in-flight fetch finishes and is
// discarded.
func (c *Conversation) StopPolling() {
	c.poller.Stop()
}

// Polling reports whether the poll timer is active.
func (c *Conversation) Polling() bool {
	return c.poller.Running()
}

// End stops polling, deletes the session remotely and drops the local
// timeline.
func (c *Conversation) End(ctx context.Context) error {
	c.poller.Stop()
	return c.sessions.End(ctx)
}
