// Package supervisor 实现 Supervisor 阶段：一个不调用模型的纯策略节点，
// 根据计划的深度和查询数量决定 Research 子图走顺序深挖还是并行广度模式。
//
// 单节点、不持有 llm 字段、只靠状态机字段做决策的结构，沿用
// agent/researcher/research_team.go 的 teamRouter 形状 —— 教师那里它是整个
// 多智能体系统的调度中心，这里收窄成一个策略函数。
package supervisor

import (
	"context"
	"strings"

	"github.com/HildaM/logs/slog"

	"github.com/cloudwego/eino/compose"
	"github.com/hildam/deer-flow-go/entity/conf"
	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
)

// defaultMaxParallelismCap/defaultMaxIterationsCap 是 conf.ResearchConfig 未
// 初始化（GetCfg 返回 nil，例如单测直接调用 decideStrategy）或未配置时的
// 兜底值，和 conf.applyDefaults 给这两个字段填的默认值保持一致
const (
	defaultMaxParallelismCap = 4
	defaultMaxIterationsCap  = 3
)

// supervisorImpl 调度者
type supervisorImpl[I, O any] struct{}

// NewSupervisor 创建实例
func NewSupervisor[I, O any](ctx context.Context) *supervisorImpl[I, O] {
	return &supervisorImpl[I, O]{}
}

// NewGraphNode 创建任务图。只有一个 router 节点，没有 load/agent，因为这个
// 阶段不需要调用任何模型
func (s *supervisorImpl[I, O]) NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt) {
	graph := compose.NewGraph[I, O]()

	graph.AddLambdaNode("router", compose.InvokableLambdaWithOption(router))

	graph.AddEdge(compose.START, "router")
	graph.AddEdge("router", compose.END)

	return consts.Supervisor, graph, compose.WithNodeName(consts.Supervisor)
}

// router 套用 §4.3 文档化的策略表，决定 Research 子图的执行模式
func router(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()

		state.Strategy = decideStrategy(state.Plan, state.QueryAnalysis, state.Query)
		slog.Debug("supervisor.router debug, plan = %+v, strategy = %+v", state.Plan, state.Strategy)

		state.Goto = consts.Research
		return nil
	})
	return output, err
}

// decideStrategy 实现策略表，并强制两条硬上限
func decideStrategy(plan *model.Plan, queryAnalysis, query string) *model.Strategy {
	if plan == nil {
		return &model.Strategy{Mode: consts.StrategySequential, MaxParallelism: 1, MaxIterations: 1}
	}

	numQueries := len(plan.Queries)

	var strat *model.Strategy
	switch {
	case plan.Depth == 1 || numQueries == 1:
		strat = &model.Strategy{Mode: consts.StrategySequential, MaxParallelism: 1, MaxIterations: 1}
	case plan.Depth == 3 || isComparative(queryAnalysis, query):
		strat = &model.Strategy{Mode: consts.StrategySequential, MaxParallelism: 1, MaxIterations: 3}
	case plan.Depth == 2 && numQueries <= 3:
		strat = &model.Strategy{Mode: consts.StrategyParallel, MaxParallelism: numQueries, MaxIterations: 1}
	default:
		strat = &model.Strategy{Mode: consts.StrategyParallel, MaxParallelism: numQueries, MaxIterations: 1}
	}

	parallelismCap, iterationsCap := defaultMaxParallelismCap, defaultMaxIterationsCap
	if cfg := conf.GetCfg(); cfg != nil {
		if cfg.Research.MaxParallelismCap > 0 {
			parallelismCap = cfg.Research.MaxParallelismCap
		}
		if cfg.Research.MaxIterationsCap > 0 {
			iterationsCap = cfg.Research.MaxIterationsCap
		}
	}

	if strat.MaxParallelism > parallelismCap {
		strat.MaxParallelism = parallelismCap
	}
	if strat.MaxParallelism < 1 {
		strat.MaxParallelism = 1
	}
	if strat.MaxIterations > iterationsCap {
		strat.MaxIterations = iterationsCap
	}
	if strat.MaxIterations < 1 {
		strat.MaxIterations = 1
	}
	return strat
}

// isComparative 粗略判断查询是否在比较两个及以上的主体：只做子串匹配，
// 标记词为 "vs", "versus", "compare"（含 "compared to"）, "comparison",
// "difference between"；不识别仅用 " and " 连接两个主体的写法
func isComparative(queryAnalysis, query string) bool {
	lower := strings.ToLower(queryAnalysis + " " + query)
	for _, marker := range []string{" vs ", " vs. ", " versus ", "compare", "comparison", "difference between"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
