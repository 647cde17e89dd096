package writer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hildam/deer-flow-go/entity/model"
)

func citedCompressed() *model.Compressed {
	return &model.Compressed{
		Citations: []model.Citation{
			{ID: 1, URL: "https://a.example"},
			{ID: 2, URL: "https://b.example"},
		},
	}
}

func TestValidateCitations_CleanReportPasses(t *testing.T) {
	report := "The project launched in 2021 [1]. It later expanded to new markets [2]."
	violations := validateCitations(report, citedCompressed())
	require.Empty(t, violations)
}

func TestValidateCitations_DanglingMarkerFlagged(t *testing.T) {
	report := "The project launched in 2021 [1]. A separate claim cites [9], which does not exist."
	violations := validateCitations(report, citedCompressed())
	require.NotEmpty(t, violations, "expected dangling marker [9] to be flagged")
}

func TestValidateCitations_UncitedFactualSentenceFlagged(t *testing.T) {
	report := "This is the best known example of the phenomenon."
	violations := validateCitations(report, citedCompressed())
	require.NotEmpty(t, violations, "expected uncited factual sentence with a superlative to be flagged")
}

func TestValidateCitations_NonFactualProseIsNotFlagged(t *testing.T) {
	report := "This section provides useful context for readers who want background."
	violations := validateCitations(report, citedCompressed())
	require.Empty(t, violations, "expected non-factual prose to pass without citations")
}

func TestLooksFactual_YearAndDigitsTriggerFlag(t *testing.T) {
	require.True(t, looksFactual("It happened in 1999."), "expected a year to be flagged as factual")
	require.True(t, looksFactual("There were 42 participants."), "expected a digit to be flagged as factual")
	require.False(t, looksFactual("This is a general statement without numbers."),
		"did not expect a number-free, superlative-free sentence to be flagged")
}
