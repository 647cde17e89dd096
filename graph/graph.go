// Package graph 把七个 stage 组装成一张可执行的图，并负责整条流水线共享的
// 截止时间与 checkpoint 存储点。
//
// 组装方式直接沿用教师的 agent.BuildAgentGraph：每个 stage 实现同一个
// Agent[I, O] 接口，图按 Goto 字段路由（routeToNextAgent/AddBranch），而不
// 是写死的边。七个 stage 替换了教师原来的八个（Coordinator/Planner/
// Reporter/Researcher/ResearchTeam/Coder/BackgroundInvestigator/Human）。
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/hildam/deer-flow-go/agent/clarify"
	"github.com/hildam/deer-flow-go/agent/compress"
	"github.com/hildam/deer-flow-go/agent/critique"
	"github.com/hildam/deer-flow-go/agent/planner"
	"github.com/hildam/deer-flow-go/agent/research"
	"github.com/hildam/deer-flow-go/agent/supervisor"
	"github.com/hildam/deer-flow-go/agent/writer"
	"github.com/hildam/deer-flow-go/entity/conf"
	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
	"github.com/hildam/deer-flow-go/repo/checkpoint"
)

var defaultStore = checkpoint.NewMemCheckPoint()

func defaultCheckPointStore() compose.CheckPointStore {
	return defaultStore
}

// Agent 是每个 stage 都要实现的接口：产出图节点的 key、节点本身与节点选项
type Agent[I, O any] interface {
	NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt)
}

// BuildOptions 是构图时的可选参数
type BuildOptions struct {
	// CheckPointStore 覆盖默认的进程内存储点，服务端模式下通常传入
	// checkpoint.NewFileCheckPoint 的结果以便跨进程恢复澄清中断
	CheckPointStore compose.CheckPointStore
}

// BuildAgentGraph 组装七个 stage 为一张可执行图。query 是原始用户问题；
// threadID 关联同一次运行的多次 Stream/Invoke 调用（例如澄清短路后的续跑）
func BuildAgentGraph[I, O any](ctx context.Context, query, threadID string, opts *BuildOptions) (compose.Runnable[I, O], error) {
	stateGenFunc := func(ctx context.Context) *model.State {
		return &model.State{
			Query:     query,
			ThreadID:  threadID,
			StartedAt: time.Now(),
			Goto:      consts.Clarify,
		}
	}

	g := compose.NewGraph[I, O](
		compose.WithGenLocalState(stateGenFunc),
	)

	agentInstances := map[string]Agent[I, O]{
		consts.Clarify:    clarify.NewClarify[I, O](ctx),
		consts.Planner:    planner.NewPlanner[I, O](ctx),
		consts.Supervisor: supervisor.NewSupervisor[I, O](ctx),
		consts.Research:   research.NewResearch[I, O](ctx),
		consts.Compress:   compress.NewCompress[I, O](ctx),
		consts.Writer:     writer.NewWriter[I, O](ctx),
		consts.Critique:   critique.NewCritique[I, O](ctx),
	}

	for agentName, instance := range agentInstances {
		key, node, nameOption := instance.NewGraphNode(ctx)
		if key != agentName {
			slog.Error("BuildAgentGraph failed, agent key mismatch, expected = %s, got = %s", agentName, key)
			return nil, fmt.Errorf("agent key mismatch: expected %s, got %s", agentName, key)
		}
		g.AddGraphNode(key, node, nameOption)
	}

	for agentName := range agentInstances {
		g.AddBranch(agentName, compose.NewGraphBranch(routeToNextAgent, getAgentGraphMap()))
	}

	g.AddEdge(compose.START, consts.Clarify)

	checkPointStore := opts.checkPointStore()

	runnable, err := g.Compile(ctx,
		compose.WithGraphName(consts.GraphName),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithCheckPointStore(checkPointStore),
	)
	if err != nil {
		slog.Error("BuildAgentGraph failed, compile err = %+v", err)
		return nil, err
	}
	return runnable, nil
}

func (o *BuildOptions) checkPointStore() compose.CheckPointStore {
	if o != nil && o.CheckPointStore != nil {
		return o.CheckPointStore
	}
	return defaultCheckPointStore()
}

// routeToNextAgent 读取 state.Goto 决定下一个节点，与教师的同名函数语义相同
func routeToNextAgent(ctx context.Context, input string) (next string, err error) {
	defer func() {
		slog.Info("route_to_next_agent info, input = %s, next = %s", input, next)
	}()
	_ = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		next = state.Goto
		return nil
	})
	return next, nil
}

// getAgentGraphMap 声明所有可路由的节点，包括结束节点
func getAgentGraphMap() map[string]bool {
	return map[string]bool{
		consts.Clarify:    true,
		consts.Planner:    true,
		consts.Supervisor: true,
		consts.Research:   true,
		consts.Compress:   true,
		consts.Writer:     true,
		consts.Critique:   true,
		compose.END:        true,
	}
}

// OverallDeadline 返回一个挂了整体截止时间的 context，§5 要求一旦超时整个
// 运行必须尽快停止而不是让某个 stage 无限期挂着
func OverallDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	ms := conf.GetCfg().Research.OverallDeadlineMS
	if ms <= 0 {
		ms = 180000
	}
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}

// userMessage 是控制台/服务端入口共用的起始消息构造，保留与教师一致的
// schema.UserMessage 形状，供需要往 eino 消息流里塞入口问题的调用方使用
func userMessage(query string) []*schema.Message {
	return []*schema.Message{schema.UserMessage(query)}
}
