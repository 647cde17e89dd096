package clarify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hildam/deer-flow-go/entity/consts"
)

func TestDecideClarifyOutcome_AnswerTriggersMergeAndAdvancesToPlanner(t *testing.T) {
	outcome := decideClarifyOutcome("what is the best database", "for a read-heavy analytics workload", "", false)
	require.Equal(t, "what is the best database for a read-heavy analytics workload", outcome.query)
	require.False(t, outcome.needsClarification, "expected needsClarification to be cleared after merging an answer")
	require.Equal(t, consts.Planner, outcome.goto_)
}

func TestDecideClarifyOutcome_UnparseableFirstAttemptRetriesOnce(t *testing.T) {
	outcome := decideClarifyOutcome("some query", "", "not json at all", false)
	require.True(t, outcome.retry, "expected a first parse failure to request a retry")
	require.Equal(t, consts.Clarify, outcome.goto_)
}

func TestDecideClarifyOutcome_UnparseableAfterRetryFallsThroughToPlanner(t *testing.T) {
	outcome := decideClarifyOutcome("some query", "", "still not json", true)
	require.False(t, outcome.retry, "expected no further retry once already retried")
	require.Equal(t, consts.Planner, outcome.goto_)
	require.Equal(t, "unparseable", outcome.queryAnalysis)
}

func TestDecideClarifyOutcome_NeedsClarificationInterruptsAndStaysOnClarify(t *testing.T) {
	content := `{"needs_clarification":true,"question":"Which region?","query_analysis":"ambiguous scope","detected_topics":["scope"]}`
	outcome := decideClarifyOutcome("deploy the service", "", content, false)
	require.True(t, outcome.needsClarification)
	require.True(t, outcome.interrupt, "expected an interrupt signal when clarification is needed")
	require.Equal(t, consts.Clarify, outcome.goto_)
	require.Equal(t, "Which region?", outcome.clarificationQuestion)
}

func TestDecideClarifyOutcome_NoClarificationNeededAdvancesToPlanner(t *testing.T) {
	content := `{"needs_clarification":false,"query_analysis":"clear scope","detected_topics":["databases"]}`
	outcome := decideClarifyOutcome("what is postgres", "", content, false)
	require.False(t, outcome.needsClarification)
	require.Equal(t, consts.Planner, outcome.goto_)
	require.False(t, outcome.interrupt, "did not expect an interrupt when clarification is not needed")
}
