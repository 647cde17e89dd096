package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hildam/deer-flow-go/entity/model"
	"github.com/hildam/deer-flow-go/errs"
)

func TestExtractResults_FromJSONArray(t *testing.T) {
	raw := `[{"url":"https://a.example/1","title":"A","snippet":"about a"},{"url":"https://b.example/2","title":"B","description":"about b"}]`
	results := extractResults(raw)
	require.Equal(t, []model.SearchResult{
		{URL: "https://a.example/1", Title: "A", Snippet: "about a"},
		{URL: "https://b.example/2", Title: "B", Snippet: "about b"},
	}, results)
}

func TestExtractResults_FromPlainText(t *testing.T) {
	raw := "Top hits: (https://a.example/1) and <https://b.example/2>, also see \"https://c.example/3\"."
	results := extractResults(raw)
	require.Len(t, results, 3, "expected 3 urls extracted from plain text")
	for _, r := range results {
		require.Empty(t, r.Title)
		require.Empty(t, r.Snippet)
	}
}

func TestExtractResults_IgnoresNonURLTokens(t *testing.T) {
	raw := "no links here, just prose about search results"
	results := extractResults(raw)
	require.Empty(t, results)
}

func TestFindSearchTool_NoToolConfiguredReturnsPermanentError(t *testing.T) {
	_, err := findSearchTool(context.Background())
	require.Error(t, err, "expected an error when no MCP search tool is configured")
	require.True(t, errs.Is(err, errs.ErrPermanentProvider), "expected a permanent-provider error")
}
