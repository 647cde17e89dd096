package supervisor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
)

func TestDecideStrategy_NilPlanFallsBackToSequentialSingleStep(t *testing.T) {
	strat := decideStrategy(nil, "", "")
	require.Equal(t, consts.StrategySequential, strat.Mode)
	require.Equal(t, 1, strat.MaxParallelism)
	require.Equal(t, 1, strat.MaxIterations)
}

func TestDecideStrategy_DepthOneIsAlwaysSequential(t *testing.T) {
	plan := &model.Plan{Queries: []string{"a", "b", "c"}, Depth: 1}
	strat := decideStrategy(plan, "", "")
	require.Equal(t, consts.StrategySequential, strat.Mode)
	require.Equal(t, 1, strat.MaxIterations)
}

func TestDecideStrategy_DepthTwoWithFewQueriesIsParallel(t *testing.T) {
	plan := &model.Plan{Queries: []string{"a", "b", "c"}, Depth: 2}
	strat := decideStrategy(plan, "", "")
	require.Equal(t, consts.StrategyParallel, strat.Mode)
	require.Equal(t, 3, strat.MaxParallelism)
}

func TestDecideStrategy_DepthThreeIsSequentialWithMultipleIterations(t *testing.T) {
	plan := &model.Plan{Queries: []string{"a", "b", "c", "d"}, Depth: 3}
	strat := decideStrategy(plan, "", "")
	require.Equal(t, consts.StrategySequential, strat.Mode)
	require.Equal(t, 3, strat.MaxIterations)
}

func TestDecideStrategy_ComparativeQueryForcesSequential(t *testing.T) {
	plan := &model.Plan{Queries: []string{"a", "b"}, Depth: 2}
	strat := decideStrategy(plan, "", "golang vs rust performance")
	require.Equal(t, consts.StrategySequential, strat.Mode)
}

func TestDecideStrategy_CapsAreEnforcedWithNoConfigLoaded(t *testing.T) {
	plan := &model.Plan{Queries: []string{"a", "b", "c", "d", "e"}, Depth: 2}
	strat := decideStrategy(plan, "", "")
	require.LessOrEqual(t, strat.MaxParallelism, defaultMaxParallelismCap)

	plan3 := &model.Plan{Queries: []string{"a", "b"}, Depth: 3}
	strat3 := decideStrategy(plan3, "", "")
	require.LessOrEqual(t, strat3.MaxIterations, defaultMaxIterationsCap)
}

func TestIsComparative_DetectsVersusAndCompareMarkers(t *testing.T) {
	require.True(t, isComparative("", "python vs go"))
	require.True(t, isComparative("", "compare react and vue"))
	require.False(t, isComparative("", "what is the capital of france"))
}
