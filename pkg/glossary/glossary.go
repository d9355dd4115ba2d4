// Package glossary resolves real-estate jargon through the service's
// glossary endpoints, with a small client-side cache so repeated lookups
// during one conversation do not refetch.
package glossary

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/estatechat/chatsync/pkg/api"
)

// Service is the slice of the request client the searcher needs.
type Service interface {
	SearchGlossary(ctx context.Context, query, lang string) (*api.GlossarySearchResult, error)
	GetTerm(ctx context.Context, termID string) (*api.GlossaryTerm, error)
}

const defaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	result  *api.GlossarySearchResult
	savedAt time.Time
}

// Searcher wraps glossary search with per-query result caching. Entries
// expire after the TTL; the glossary changes rarely, so staleness within a
// conversation is acceptable.
type Searcher struct {
	svc   Service
	ttl   time.Duration
	clock func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type SearcherOption func(*Searcher)

// WithTTL overrides how long cached search results stay valid.
func WithTTL(d time.Duration) SearcherOption {
	return func(s *Searcher) {
		s.ttl = d
	}
}

// WithClock replaces the time source, for tests.
func WithClock(clock func() time.Time) SearcherOption {
	return func(s *Searcher) {
		s.clock = clock
	}
}

func NewSearcher(svc Service, options ...SearcherOption) *Searcher {
	ret := &Searcher{
		svc:   svc,
		ttl:   defaultCacheTTL,
		clock: time.Now,
		cache: map[string]cacheEntry{},
	}

	for _, o := range options {
		o(ret)
	}

	return ret
}

// Search looks a query up in the glossary, serving repeats from the cache.
// The query is case-folded and whitespace-trimmed before use so trivially
// different spellings share an entry.
func (s *Searcher) Search(ctx context.Context, query, lang string) (*api.GlossarySearchResult, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, errors.New("empty glossary query")
	}

	key := lang + "\x00" + query
	now := s.clock()

	s.mu.Lock()
	entry, ok := s.cache[key]
	s.mu.Unlock()
	if ok && now.Sub(entry.savedAt) < s.ttl {
		log.Trace().Str("query", query).Str("language", lang).Msg("glossary cache hit")
		return copyResult(entry.result), nil
	}

	result, err := s.svc.SearchGlossary(ctx, query, lang)
	if err != nil {
		return nil, errors.Wrap(err, "search glossary")
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{result: result, savedAt: now}
	s.mu.Unlock()

	return copyResult(result), nil
}

// copyResult shields the cached entry from callers that sort or truncate
// the returned Results for display.
func copyResult(r *api.GlossarySearchResult) *api.GlossarySearchResult {
	out := *r
	out.Results = append([]api.GlossaryTerm(nil), r.Results...)
	return &out
}

// Explain resolves a single term to its best glossary match, or nil when
// the glossary has nothing for it.
func (s *Searcher) Explain(ctx context.Context, term, lang string) (*api.GlossaryTerm, error) {
	result, err := s.Search(ctx, term, lang)
	if err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, nil
	}
	t := result.Results[0]
	return &t, nil
}

// Term fetches full details for a known term ID. Detail lookups bump the
// term's server-side usage count, so they are not cached.
func (s *Searcher) Term(ctx context.Context, termID string) (*api.GlossaryTerm, error) {
	term, err := s.svc.GetTerm(ctx, termID)
	if err != nil {
		return nil, errors.Wrap(err, "get glossary term")
	}
	return term, nil
}

// Flush drops all cached search results.
func (s *Searcher) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = map[string]cacheEntry{}
}
