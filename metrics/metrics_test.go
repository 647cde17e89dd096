package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hildam/deer-flow-go/entity/model"
)

func TestFromState_ComputesCountsAndCitationDetection(t *testing.T) {
	started := time.Now().Add(-2 * time.Second)
	ended := time.Now()
	state := &model.State{
		Query:         "what is the capital of france",
		StartedAt:     started,
		EndedAt:       &ended,
		SearchHistory: []model.SearchRecord{{}, {}},
		ReadContents:  []model.PageContent{{}, {}, {}},
		Findings:      []model.Finding{{}},
		Report:        "Paris is the capital of France [1].",
		Warnings:      []string{"one warning"},
		Critique: &model.CritiqueScore{
			Completeness: 4, Accuracy: 5, Relevance: 4, Clarity: 3, Total: 16,
		},
	}

	s := FromState(state)
	require.Equal(t, 2, s.SearchCalls)
	require.Equal(t, 3, s.URLsRead)
	require.Equal(t, 1, s.FindingsCount)
	require.True(t, s.HasCitations)
	require.Equal(t, 1, s.Warnings)
	require.True(t, s.HasQualityScore)
	require.Equal(t, 16.0, s.Total)
	require.GreaterOrEqual(t, s.TotalTime, time.Second)
}

func TestFromState_NoCitationsWhenNoBracketMarkers(t *testing.T) {
	state := &model.State{Report: "This report has no markers at all."}
	s := FromState(state)
	require.False(t, s.HasCitations)
}

func TestFromState_NoQualityScoreWhenCritiqueIsNil(t *testing.T) {
	state := &model.State{}
	s := FromState(state)
	require.False(t, s.HasQualityScore)
}

func TestQualityGrade_Boundaries(t *testing.T) {
	require.Equal(t, "Excellent", qualityGrade(16))
	require.Equal(t, "Good", qualityGrade(12))
	require.Equal(t, "Needs work", qualityGrade(11.9))
}

func TestPrint_WritesQueryAndCounts(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, Summary{Query: "test query", SearchCalls: 2, URLsRead: 5})
	out := buf.String()
	require.Contains(t, out, "test query")
	require.Contains(t, out, "Search calls: 2")
	require.Contains(t, out, "URLs read: 5")
}
