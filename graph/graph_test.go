package graph

import (
	"testing"

	"github.com/cloudwego/eino/compose"
	"github.com/stretchr/testify/require"

	"github.com/hildam/deer-flow-go/entity/consts"
)

func TestGetAgentGraphMap_ContainsAllStagesAndEnd(t *testing.T) {
	m := getAgentGraphMap()

	for _, stage := range []string{
		consts.Clarify,
		consts.Planner,
		consts.Supervisor,
		consts.Research,
		consts.Compress,
		consts.Writer,
		consts.Critique,
	} {
		require.True(t, m[stage], "expected stage %q to be a routable node", stage)
	}
	require.True(t, m[compose.END], "expected the graph's end sentinel to be routable")
	require.Len(t, m, 8, "expected exactly 7 stages plus END")
}

func TestCheckPointStore_FallsBackToDefaultWhenNil(t *testing.T) {
	var opts *BuildOptions
	require.Equal(t, defaultCheckPointStore(), opts.checkPointStore(),
		"expected a nil *BuildOptions to fall back to the default checkpoint store")

	empty := &BuildOptions{}
	require.Equal(t, defaultCheckPointStore(), empty.checkPointStore(),
		"expected an empty BuildOptions to fall back to the default checkpoint store")
}
