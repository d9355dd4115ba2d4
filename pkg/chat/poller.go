package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/estatechat/chatsync/pkg/api"
)

// DefaultPollInterval is how often the authoritative message list is
// re-fetched when the caller does not configure one.
const DefaultPollInterval = 5 * time.Second

// FetchService is the slice of the request client the poller needs.
type FetchService interface {
	FetchMessages(ctx context.Context, sessionID string) (*api.MessagesPage, error)
}

// Poller periodically re-fetches the authoritative message list and feeds
// it to the cache's reconciliation. Fetch failures are transient: they are
// logged and the next tick proceeds. At most one fetch is in flight; ticks
// that would overlap a running fetch are skipped, not queued.
type Poller struct {
	svc      FetchService
	cache    *Cache
	sessions *SessionManager
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool

	fetching     atomic.Bool
	skippedTicks atomic.Int64
}

func NewPoller(svc FetchService, cache *Cache, sessions *SessionManager, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		svc:      svc,
		cache:    cache,
		sessions: sessions,
		interval: interval,
	}
}

// Start begins polling for the session. Starting an already running poller
// is a no-op.
func (p *Poller) Start(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true

	log.Debug().
		Str("session_id", sessionID).
		Dur("interval", p.interval).
		Msg("polling started")

	go p.loop(ctx, sessionID)
}

// Stop cancels the timer. An in-flight fetch is allowed to finish; its
// result is discarded when it lands after the stop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	p.cancel = nil
	p.running = false

	log.Debug().Msg("polling stopped")
}

// Running reports whether the poll timer is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// SkippedTicks counts ticks dropped because the previous fetch had not
// completed. Mostly useful for tests and diagnostics.
func (p *Poller) SkippedTicks() int64 {
	return p.skippedTicks.Load()
}

func (p *Poller) loop(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if session := p.sessions.Current(); session == nil || session.ID != sessionID || session.Expired(time.Now()) {
				log.Debug().Str("session_id", sessionID).Msg("session no longer active, polling ends")
				p.Stop()
				return
			}

			if !p.fetching.CompareAndSwap(false, true) {
				p.skippedTicks.Add(1)
				log.Trace().Str("session_id", sessionID).Msg("previous fetch still in flight, tick skipped")
				continue
			}

			// Stop cancels only the timer; a fetch already issued runs to
			// completion and is discarded afterwards if no longer wanted.
			go p.fetch(context.WithoutCancel(ctx), sessionID)
		}
	}
}

func (p *Poller) fetch(ctx context.Context, sessionID string) {
	defer p.fetching.Store(false)

	page, err := p.svc.FetchMessages(ctx, sessionID)
	if err != nil {
		if api.IsSessionGone(err) {
			log.Info().Str("session_id", sessionID).Msg("session gone, stopping poller")
			p.sessions.MarkExpired()
			p.Stop()
			return
		}
		// Transient: the next tick retries.
		log.Warn().Str("session_id", sessionID).Err(err).Msg("poll fetch failed")
		return
	}

	if !p.Running() {
		log.Debug().Str("session_id", sessionID).Msg("fetch finished after stop, discarding")
		return
	}

	p.cache.Reconcile(sessionID, page.Messages)
}
