package compress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hildam/deer-flow-go/entity/model"
)

func newCompressor() *compressImpl[string, string] {
	return &compressImpl[string, string]{jaccardThreshold: defaultJaccardThreshold, targetRatio: 0.5}
}

func TestCompress_DeduplicatesNearIdenticalClaims(t *testing.T) {
	c := newCompressor()
	findings := []model.Finding{
		{Claim: "The Eiffel Tower was completed in 1889", SourceURL: "https://a.example/1", Confidence: 0.6},
		{Claim: "The Eiffel Tower was completed in the year 1889", SourceURL: "https://b.example/2", Confidence: 0.9},
		{Claim: "Paris hosts the Louvre museum", SourceURL: "https://c.example/3", Confidence: 0.7},
	}

	compressed := c.compress(findings)

	require.Len(t, compressed.Citations, 3, "expected all three distinct source URLs to be cited")

	foundClusteredLine := false
	for _, line := range strings.Split(compressed.Text, "\n") {
		if strings.Contains(line, "1889") {
			foundClusteredLine = true
			require.True(t, strings.Contains(line, "[1]") && strings.Contains(line, "[2]"),
				"expected the merged 1889 claim to cite both sources, got line = %q", line)
		}
	}
	require.True(t, foundClusteredLine, "expected a merged line about 1889 in compressed text, got %q", compressed.Text)
}

// TestCompress_Deterministic asserts P4: identical findings in identical order
// always produce identical citation ids and compressed text.
func TestCompress_Deterministic(t *testing.T) {
	findings := []model.Finding{
		{Claim: "Water boils at 100C at sea level", SourceURL: "https://x.example/1", Confidence: 0.5},
		{Claim: "Water freezes at 0C at sea level", SourceURL: "https://y.example/2", Confidence: 0.8},
	}

	a := newCompressor().compress(append([]model.Finding{}, findings...))
	b := newCompressor().compress(append([]model.Finding{}, findings...))

	require.Equal(t, a.Text, b.Text, "expected deterministic output")
	require.Equal(t, a.Citations, b.Citations, "expected identical citations")
}

func TestClusterFindings_BelowThresholdStaysSeparate(t *testing.T) {
	findings := []model.Finding{
		{Claim: "The Amazon river is the largest by discharge volume", Confidence: 0.5},
		{Claim: "Mount Everest is the tallest mountain above sea level", Confidence: 0.5},
	}
	clusters := clusterFindings(findings, 0.75)
	require.Len(t, clusters, 2, "expected unrelated claims to stay in separate clusters")
}
