package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/estatechat/chatsync/pkg/api"
)

const (
	// defaultMaxPendingAge bounds how long an optimistic message may wait
	// for its authoritative twin before reconciliation drops it as failed.
	defaultMaxPendingAge = 2 * time.Minute

	// defaultCommitGrace bounds how long a locally committed reply survives
	// an authoritative list that does not contain it yet. This covers the
	// race where a poll fetch started before the send was persisted.
	defaultCommitGrace = defaultMaxPendingAge
)

// PendingSend tracks one send-in-flight: the optimistic entry it produced
// and when it was applied. It is discarded when the send settles.
type PendingSend struct {
	ProvisionalID string
	Content       string
	Language      string
	AppliedAt     time.Time
}

// timeline is the per-session message store. messages holds confirmed and
// optimistic entries in application order; optimistic entries always sit
// after the confirmed ones.
type timeline struct {
	sessionID string
	messages  []*Message
	knownIDs  map[string]struct{}
	pending   map[string]*PendingSend
}

func newTimeline(sessionID string) *timeline {
	return &timeline{
		sessionID: sessionID,
		knownIDs:  map[string]struct{}{},
		pending:   map[string]*PendingSend{},
	}
}

// Cache owns the conversation timelines, one per session, and implements
// the optimistic-update and reconciliation engine. All mutations go through
// its methods; the internal mutex serializes application order.
type Cache struct {
	mu            sync.Mutex
	timelines     map[string]*timeline
	clock         func() time.Time
	maxPendingAge time.Duration
	commitGrace   time.Duration
	publisher     publisher
}

type CacheOption func(*Cache)

// WithClock replaces the time source, for tests.
func WithClock(clock func() time.Time) CacheOption {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithMaxPendingAge bounds how long unmatched optimistic messages survive
// reconciliation.
func WithMaxPendingAge(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.maxPendingAge = d
		c.commitGrace = d
	}
}

// WithPublisher wires timeline change events into a watermill publisher.
func WithPublisher(p publisher) CacheOption {
	return func(c *Cache) {
		c.publisher = p
	}
}

func NewCache(options ...CacheOption) *Cache {
	ret := &Cache{
		timelines:     map[string]*timeline{},
		clock:         time.Now,
		maxPendingAge: defaultMaxPendingAge,
		commitGrace:   defaultCommitGrace,
	}

	for _, o := range options {
		o(ret)
	}

	return ret
}

// Track creates an empty timeline for a freshly created session. It is a
// no-op if the session is already tracked.
func (c *Cache) Track(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.timelines[sessionID]; !ok {
		c.timelines[sessionID] = newTimeline(sessionID)
	}
}

// Drop forgets a session's timeline entirely.
func (c *Cache) Drop(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timelines, sessionID)
}

// Has reports whether a timeline exists for the session.
func (c *Cache) Has(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timelines[sessionID]
	return ok
}

// View returns an ordered snapshot of the session's timeline. The returned
// messages are copies; mutating them does not affect the cache. A nil slice
// means the session is not tracked.
func (c *Cache) View(sessionID string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	tl, ok := c.timelines[sessionID]
	if !ok {
		return nil
	}

	ret := make([]Message, 0, len(tl.messages))
	for _, m := range tl.messages {
		ret = append(ret, *m)
	}
	return ret
}

// PendingSends returns the sends still awaiting an outcome for the session.
func (c *Cache) PendingSends(sessionID string) []PendingSend {
	c.mu.Lock()
	defer c.mu.Unlock()

	tl, ok := c.timelines[sessionID]
	if !ok {
		return nil
	}

	ret := make([]PendingSend, 0, len(tl.pending))
	for _, p := range tl.pending {
		ret = append(ret, *p)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].AppliedAt.Before(ret[j].AppliedAt) })
	return ret
}

// ApplyOptimistic appends a locally synthesized user message to the
// timeline and returns its provisional identifier. Purely in-memory: it
// never blocks on I/O. Fails with ErrInvalidState when the session has no
// timeline yet.
func (c *Cache) ApplyOptimistic(sessionID, content, lang string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tl, ok := c.timelines[sessionID]
	if !ok {
		return "", errors.Wrapf(ErrInvalidState, "no timeline for session %s", sessionID)
	}

	now := c.clock()
	msg := newOptimisticMessage(sessionID, content, lang, now)
	tl.messages = append(tl.messages, msg)
	tl.pending[msg.ID] = &PendingSend{
		ProvisionalID: msg.ID,
		Content:       content,
		Language:      lang,
		AppliedAt:     now,
	}

	log.Debug().
		Str("session_id", sessionID).
		Str("provisional_id", msg.ID).
		Msg("optimistic message applied")

	publishEvent(c.publisher, Event{
		Type:      EventOptimisticApplied,
		SessionID: sessionID,
		MessageID: msg.ID,
		Time:      now,
	})

	return msg.ID, nil
}

// CommitOptimistic settles a successful durable send. The optimistic user
// message stays in place (the server does not echo it back); the assistant
// reply from the response is appended as a confirmed message immediately,
// deduplicated by server ID so a later poll cannot introduce it twice.
func (c *Cache) CommitOptimistic(sessionID, provisionalID string, resp *api.SendMessageResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tl, ok := c.timelines[sessionID]
	if !ok {
		return errors.Wrapf(ErrInvalidState, "no timeline for session %s", sessionID)
	}

	delete(tl.pending, provisionalID)

	now := c.clock()
	if _, seen := tl.knownIDs[resp.MessageID]; !seen {
		reply := replyFromSend(sessionID, resp, now)
		tl.messages = append(tl.messages, reply)
		tl.knownIDs[reply.ID] = struct{}{}
	}

	log.Debug().
		Str("session_id", sessionID).
		Str("provisional_id", provisionalID).
		Str("reply_id", resp.MessageID).
		Msg("send committed")

	publishEvent(c.publisher, Event{
		Type:      EventSendCommitted,
		SessionID: sessionID,
		MessageID: provisionalID,
		Time:      now,
	})

	return nil
}

// RollbackOptimistic removes the optimistic message after a failed send,
// restoring the pre-send timeline. Rolling back an identifier that is no
// longer present is a no-op, so it is safe to race with a reconciliation
// that already replaced the entry.
func (c *Cache) RollbackOptimistic(sessionID, provisionalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tl, ok := c.timelines[sessionID]
	if !ok {
		return
	}

	delete(tl.pending, provisionalID)

	removed := false
	for i, m := range tl.messages {
		if m.ID == provisionalID {
			tl.messages = append(tl.messages[:i], tl.messages[i+1:]...)
			removed = true
			break
		}
	}

	if !removed {
		return
	}

	log.Debug().
		Str("session_id", sessionID).
		Str("provisional_id", provisionalID).
		Msg("optimistic message rolled back")

	publishEvent(c.publisher, Event{
		Type:      EventSendRolledBack,
		SessionID: sessionID,
		MessageID: provisionalID,
		Time:      c.clock(),
	})
}

// Reconcile replaces the session's confirmed messages with the
// authoritative list and resolves optimistic entries against it:
//
//   - an optimistic message whose content matches a newly arrived
//     authoritative user message close to it in time is superseded by that
//     entry (oldest unmatched optimistic first, deterministically);
//   - an unmatched optimistic message younger than the max pending age is
//     retained after the confirmed messages;
//   - older ones are dropped and treated as failed sends.
//
// Confirmed messages the authoritative list does not carry yet (a reply
// committed after the fetch started) are retained within the commit grace
// window so a stale poll cannot erase them.
func (c *Cache) Reconcile(sessionID string, authoritative []api.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tl, ok := c.timelines[sessionID]
	if !ok {
		log.Debug().Str("session_id", sessionID).Msg("reconcile for untracked session ignored")
		return
	}

	now := c.clock()

	confirmed := make([]*Message, 0, len(authoritative))
	authIDs := make(map[string]struct{}, len(authoritative))
	claimed := make(map[int]bool)
	for _, m := range authoritative {
		confirmed = append(confirmed, messageFromAPI(m))
		authIDs[m.ID] = struct{}{}
	}

	var retainedOptimistic []*Message
	var recentCommits []*Message

	for _, m := range tl.messages {
		if !m.Optimistic() {
			if _, inAuth := authIDs[m.ID]; !inAuth && now.Sub(m.CreatedAt) <= c.commitGrace {
				recentCommits = append(recentCommits, m)
			}
			continue
		}

		if idx, found := matchOptimistic(m, authoritative, claimed, tl.knownIDs, c.maxPendingAge); found {
			claimed[idx] = true
			delete(tl.pending, m.ID)
			publishEvent(c.publisher, Event{
				Type:      EventSuperseded,
				SessionID: sessionID,
				MessageID: m.ID,
				Time:      now,
			})
			continue
		}

		if now.Sub(m.CreatedAt) > c.maxPendingAge {
			delete(tl.pending, m.ID)
			log.Warn().
				Str("session_id", sessionID).
				Str("provisional_id", m.ID).
				Msg("optimistic message exceeded pending age, dropping")
			publishEvent(c.publisher, Event{
				Type:      EventStaleDropped,
				SessionID: sessionID,
				MessageID: m.ID,
				Time:      now,
			})
			continue
		}

		retainedOptimistic = append(retainedOptimistic, m)
	}

	sort.SliceStable(recentCommits, func(i, j int) bool {
		return recentCommits[i].CreatedAt.Before(recentCommits[j].CreatedAt)
	})

	messages := confirmed
	messages = append(messages, recentCommits...)
	messages = append(messages, retainedOptimistic...)
	tl.messages = messages

	known := make(map[string]struct{}, len(authIDs)+len(recentCommits))
	for id := range authIDs {
		known[id] = struct{}{}
	}
	for _, m := range recentCommits {
		known[m.ID] = struct{}{}
	}
	tl.knownIDs = known

	publishEvent(c.publisher, Event{
		Type:      EventReconciled,
		SessionID: sessionID,
		Time:      now,
	})
}

// matchOptimistic finds the first unclaimed authoritative user message that
// is a plausible twin of the optimistic entry: same role and content, not
// previously observed, and created within the match window. Scanning the
// authoritative list in order makes the tie-break for identical contents
// deterministic.
func matchOptimistic(
	opt *Message,
	authoritative []api.Message,
	claimed map[int]bool,
	known map[string]struct{},
	window time.Duration,
) (int, bool) {
	for i, a := range authoritative {
		if claimed[i] {
			continue
		}
		if Role(a.Role) != RoleUser || a.Content != opt.Content {
			continue
		}
		if _, seen := known[a.ID]; seen {
			continue
		}
		if !a.CreatedAt.IsZero() && absDuration(a.CreatedAt.Sub(opt.CreatedAt)) > window {
			continue
		}
		return i, true
	}
	return 0, false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
