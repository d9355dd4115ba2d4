package glossary

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/estatechat/chatsync/pkg/api"
)

type fakeGlossaryService struct {
	mu          sync.Mutex
	terms       []api.GlossaryTerm
	searchCalls int
	termCalls   int
}

func (f *fakeGlossaryService) SearchGlossary(ctx context.Context, query, lang string) (*api.GlossarySearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++

	var results []api.GlossaryTerm
	for _, t := range f.terms {
		if t.Term == query && (lang == "" || t.Language == lang) {
			results = append(results, t)
		}
	}
	return &api.GlossarySearchResult{
		Query:    query,
		Language: lang,
		Results:  results,
		Total:    len(results),
	}, nil
}

func (f *fakeGlossaryService) GetTerm(ctx context.Context, termID string) (*api.GlossaryTerm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.termCalls++

	for _, t := range f.terms {
		if t.ID == termID {
			t.UsageCount++
			return &t, nil
		}
	}
	return nil, &api.Error{Status: 404, Code: api.CodeValidation, Message: "term not found"}
}

func newGlossaryFixture() *fakeGlossaryService {
	return &fakeGlossaryService{
		terms: []api.GlossaryTerm{
			{
				ID:          "term-1",
				Term:        "礼金",
				Language:    "ja",
				Translation: "key money",
				Explanation: "A non-refundable payment to the landlord.",
				Category:    "rental",
			},
		},
	}
}

func TestSearchServesRepeatsFromCache(t *testing.T) {
	svc := newGlossaryFixture()
	searcher := NewSearcher(svc)

	first, err := searcher.Search(context.Background(), "礼金", "ja")
	require.NoError(t, err)
	require.Equal(t, 1, first.Total)

	second, err := searcher.Search(context.Background(), " 礼金 ", "ja")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, svc.searchCalls)
}

func TestSearchResultsAreCallerOwned(t *testing.T) {
	svc := newGlossaryFixture()
	searcher := NewSearcher(svc)

	first, err := searcher.Search(context.Background(), "礼金", "ja")
	require.NoError(t, err)
	first.Results[0].Term = "mutated"
	first.Results = first.Results[:0]

	second, err := searcher.Search(context.Background(), "礼金", "ja")
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	require.Equal(t, "礼金", second.Results[0].Term)
	require.Equal(t, 1, svc.searchCalls)
}

func TestSearchCacheIsPerLanguage(t *testing.T) {
	svc := newGlossaryFixture()
	searcher := NewSearcher(svc)

	_, err := searcher.Search(context.Background(), "礼金", "ja")
	require.NoError(t, err)
	_, err = searcher.Search(context.Background(), "礼金", "en")
	require.NoError(t, err)

	require.Equal(t, 2, svc.searchCalls)
}

func TestSearchCacheExpires(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := now
	svc := newGlossaryFixture()
	searcher := NewSearcher(svc,
		WithTTL(time.Minute),
		WithClock(func() time.Time { return current }),
	)

	_, err := searcher.Search(context.Background(), "礼金", "ja")
	require.NoError(t, err)

	current = now.Add(2 * time.Minute)
	_, err = searcher.Search(context.Background(), "礼金", "ja")
	require.NoError(t, err)

	require.Equal(t, 2, svc.searchCalls)
}

func TestSearchEmptyQueryFails(t *testing.T) {
	svc := newGlossaryFixture()
	searcher := NewSearcher(svc)

	_, err := searcher.Search(context.Background(), "   ", "ja")
	require.Error(t, err)
	require.Equal(t, 0, svc.searchCalls)
}

func TestExplain(t *testing.T) {
	searcher := NewSearcher(newGlossaryFixture())

	term, err := searcher.Explain(context.Background(), "礼金", "ja")
	require.NoError(t, err)
	require.NotNil(t, term)
	require.Equal(t, "key money", term.Translation)

	missing, err := searcher.Explain(context.Background(), "unknown", "ja")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestTermLookupIsNotCached(t *testing.T) {
	svc := newGlossaryFixture()
	searcher := NewSearcher(svc)

	for i := 0; i < 2; i++ {
		term, err := searcher.Term(context.Background(), "term-1")
		require.NoError(t, err)
		require.Equal(t, "礼金", term.Term)
	}
	require.Equal(t, 2, svc.termCalls)
}

func TestFlush(t *testing.T) {
	svc := newGlossaryFixture()
	searcher := NewSearcher(svc)

	_, err := searcher.Search(context.Background(), "礼金", "ja")
	require.NoError(t, err)
	searcher.Flush()
	_, err = searcher.Search(context.Background(), "礼金", "ja")
	require.NoError(t, err)

	require.Equal(t, 2, svc.searchCalls)
}
