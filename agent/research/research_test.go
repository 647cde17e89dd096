package research

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
)

// fakeFetcher records every URL it is asked to fetch and returns a fixed
// page so tests can assert on call count and concurrency without touching
// the network.
type fakeFetcher struct {
	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (model.PageContent, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxSeen.Load()
		if cur <= max || f.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	return model.PageContent{URL: url, Status: consts.PageStatusOK, Body: "body for " + url}, nil
}

func TestVisitedSet_ClaimIsOncePerURL(t *testing.T) {
	v := newVisitedSet(nil)
	require.True(t, v.claim("https://a.example"), "expected the first claim of a fresh URL to succeed")
	require.False(t, v.claim("https://a.example"), "expected a second claim of the same URL to fail (G2 dedup)")
	require.True(t, v.claim("https://b.example"), "expected a claim of a different URL to succeed")
}

func TestVisitedSet_SeededFromExistingReadContents(t *testing.T) {
	v := newVisitedSet([]model.PageContent{{URL: "https://seen.example"}})
	require.False(t, v.claim("https://seen.example"),
		"expected a URL already present in ReadContents to be treated as visited")
}

func TestReadURLs_SkipsAlreadyVisitedURLs(t *testing.T) {
	ff := &fakeFetcher{}
	r := &researchImpl[string, string]{fetcher: ff}
	visited := newVisitedSet(nil)
	visited.claim("https://dup.example")

	pages := r.readURLs(context.Background(), []string{"https://dup.example", "https://fresh.example"}, visited)
	require.Len(t, pages, 1, "expected only the unvisited URL to be fetched")
	require.Equal(t, []string{"https://fresh.example"}, ff.calls)
}

func TestReadURLs_RespectsFetchConcurrencyCap(t *testing.T) {
	ff := &fakeFetcher{}
	r := &researchImpl[string, string]{fetcher: ff}
	visited := newVisitedSet(nil)

	urls := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		urls = append(urls, "https://many.example/"+string(rune('a'+i)))
	}

	r.readURLs(context.Background(), urls, visited)
	require.LessOrEqual(t, int(ff.maxSeen.Load()), fetchConcurrency,
		"expected concurrent fetches capped at %d", fetchConcurrency)
	require.Len(t, ff.calls, 10, "expected all 10 distinct URLs to be fetched")
}

func TestEnrichFindings_BackfillsTitleAndSnippetBySourceURL(t *testing.T) {
	rec := model.SearchRecord{Results: []model.SearchResult{
		{URL: "https://a.example", Title: "A", Snippet: "about a"},
		{URL: "https://b.example", Title: "B", Snippet: "about b"},
	}}
	findings := []model.Finding{
		{Claim: "claim a", SourceURL: "https://a.example"},
		{Claim: "claim unseen", SourceURL: "https://unseen.example"},
	}

	enriched := enrichFindings(findings, rec)
	require.Equal(t, "A", enriched[0].Title)
	require.Equal(t, "about a", enriched[0].Snippet)
	require.Empty(t, enriched[1].Title, "expected no backfill for a URL absent from the search record")
}

func TestMaxResultsFor_ReturnsPositiveCapRegardlessOfDepth(t *testing.T) {
	for depth := 1; depth <= 3; depth++ {
		got := maxResultsFor(&model.Plan{Depth: depth})
		require.Greater(t, got, 0, "expected a positive max_results cap for depth %d", depth)
	}
}
