package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hildam/deer-flow-go/entity/model"
)

func TestNormalizePlan_ClampsQueriesFocusAreasAndDepth(t *testing.T) {
	plan := &model.Plan{
		Queries:    []string{"a", "b", "c", "d", "e", "f"},
		FocusAreas: []string{"1", "2", "3", "4", "5", "6", "7"},
		Depth:      9,
	}
	normalizePlan(plan)
	require.Len(t, plan.Queries, 5)
	require.Len(t, plan.FocusAreas, 6)
	require.Equal(t, 2, plan.Depth, "expected out-of-range depth to fall back to 2")
}

func TestValidatePlan_TooFewQueriesIsViolation(t *testing.T) {
	plan := &model.Plan{Queries: []string{"golang generics"}, Depth: 2}
	violations := validatePlan(plan, "what are golang generics")
	require.NotEmpty(t, violations, "expected a violation for a single-query plan")
}

func TestValidatePlan_SharedFourGramPrefixIsViolation(t *testing.T) {
	plan := &model.Plan{
		Queries: []string{
			"golang generics type constraints explained",
			"golang generics type constraints examples",
		},
		Depth: 2,
	}
	violations := validatePlan(plan, "golang generics")
	require.Contains(t, violations, "two or more queries share a normalized token 4-gram prefix")
}

func TestValidatePlan_QueryNotMentioningOriginalEntityIsViolation(t *testing.T) {
	plan := &model.Plan{
		Queries: []string{"golang generics constraints", "completely unrelated topic here"},
		Depth:   2,
	}
	violations := validatePlan(plan, "golang generics")
	require.NotEmpty(t, violations, "expected a violation for a query that mentions no entity from the original question")
}

func TestValidatePlan_CleanPlanHasNoViolations(t *testing.T) {
	plan := &model.Plan{
		Queries: []string{
			"golang generics type constraints",
			"golang generics performance overhead benchmarks",
		},
		Depth: 2,
	}
	violations := validatePlan(plan, "golang generics")
	require.Empty(t, violations)
}

func TestSharesFourGramPrefix_ShortQueriesAreIgnored(t *testing.T) {
	require.False(t, sharesFourGramPrefix([]string{"a b c", "a b c"}),
		"queries shorter than 4 tokens should never trigger a shared-prefix violation")
}

func TestMentionsAnyToken_IgnoresShortTokens(t *testing.T) {
	require.False(t, mentionsAnyToken("to be or not", []string{"to", "be"}),
		"tokens shorter than 3 characters must not count as entity mentions")
}
