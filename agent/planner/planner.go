// Package planner 实现 Planner 阶段：把已澄清的查询转成 2-5 条搜索查询、
// 2-6 个关注领域和一个深度等级，供 Supervisor 选择执行策略。
//
// load/agent/router 三节点结构与模板加载方式沿用 HildaM-deer-flow-go 的
// agent/planner 实现；json.Unmarshal 换成了 extract.JSON 的三级回退解析，
// 并补上了查询词法多样性与实体提及两条规则的一次性自我重试。
package planner

import (
	"context"
	"strings"
	"time"

	"github.com/HildaM/logs/slog"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
	"github.com/hildam/deer-flow-go/extract"
	"github.com/hildam/deer-flow-go/repo/llm"
	"github.com/hildam/deer-flow-go/repo/template"
)

const retryKey = consts.Planner

// plannerImpl 计划者
type plannerImpl[I, O any] struct {
	llm *openai.ChatModel
}

// NewPlanner 创建实例
func NewPlanner[I, O any](ctx context.Context) *plannerImpl[I, O] {
	return &plannerImpl[I, O]{
		llm: llm.NewPlannerModel(ctx),
	}
}

// NewGraphNode 创建任务图。router 在校验失败且尚未重试过时把 Goto 设回
// consts.Planner 本身，外层图的路由分支据此把执行重新带回这个节点的 load，
// 和 agent/human 用 Goto 把流程带回 Planner 重新规划是同一套机制
func (p *plannerImpl[I, O]) NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt) {
	graph := compose.NewGraph[I, O]()

	graph.AddLambdaNode("load", compose.InvokableLambdaWithOption(loadMsg))
	graph.AddChatModelNode("agent", p.llm)
	graph.AddLambdaNode("router", compose.InvokableLambdaWithOption(router))

	graph.AddEdge(compose.START, "load")
	graph.AddEdge("load", "agent")
	graph.AddEdge("agent", "router")
	graph.AddEdge("router", compose.END)

	return consts.Planner, graph, compose.WithNodeName(consts.Planner)
}

// loadMsg Planner 的 load 节点处理函数，负责加载计划生成的提示词模板
func loadMsg(ctx context.Context, name string, opts ...any) (output []*schema.Message, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		sysPrompt, err := template.GetPromptTemplate(ctx, name)
		if err != nil {
			slog.Error("loadMsg failed, GetPromptTemplate err = %+v", err)
			return err
		}

		promptTemp := prompt.FromMessages(schema.Jinja2,
			schema.SystemMessage(sysPrompt),
			schema.UserMessage(state.Query),
		)

		variables := map[string]any{
			"query":           state.Query,
			"query_analysis":  state.QueryAnalysis,
			"detected_topics": state.DetectedTopics,
			"CURRENT_TIME":    time.Now().Format("2006-01-02 15:04:05"),
		}
		output, err = promptTemp.Format(ctx, variables)
		return err
	})
	return output, err
}

// router 解析模型输出到 Plan，校验词法多样性与实体提及规则
func router(ctx context.Context, input *schema.Message, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		plan := &model.Plan{}
		if !extract.JSON(input.Content, plan) {
			slog.Error("planner.router failed, unable to parse plan from model output = %+v", input.Content)
			state.AddWarning("planner: unable to parse plan output, falling back to a single-query plan built from the original question")
			plan = &model.Plan{Queries: []string{state.Query}, FocusAreas: []string{state.Query}, Depth: 2}
		}

		normalizePlan(plan)

		violations := validatePlan(plan, state.Query)
		alreadyRetried := state.RetryFlags != nil && state.RetryFlags[retryKey]

		if len(violations) > 0 && !alreadyRetried {
			slog.Debug("planner.router debug, plan failed validation, retrying once, violations = %+v", violations)
			if state.RetryFlags == nil {
				state.RetryFlags = map[string]bool{}
			}
			state.RetryFlags[retryKey] = true
			state.Goto = consts.Planner
			output = compose.END
			return nil
		}

		if len(violations) > 0 {
			slog.Info("planner.router info, plan still violates rules after retry, keeping it anyway, violations = %+v", violations)
			for _, v := range violations {
				state.AddWarning("planner: " + v)
			}
		}

		state.Plan = plan
		state.Goto = consts.Supervisor
		output = compose.END
		return nil
	})
	return output, err
}

// normalizePlan 裁剪查询/关注领域数量到文档化的范围，并兜底 depth
func normalizePlan(plan *model.Plan) {
	if len(plan.Queries) > 5 {
		plan.Queries = plan.Queries[:5]
	}
	if len(plan.FocusAreas) > 6 {
		plan.FocusAreas = plan.FocusAreas[:6]
	}
	if plan.Depth < 1 || plan.Depth > 3 {
		plan.Depth = 2
	}
}

// validatePlan 校验 §4.2 的两条算法规则：查询词法多样性、实体提及
func validatePlan(plan *model.Plan, originalQuery string) []string {
	var violations []string

	if len(plan.Queries) < 2 || len(plan.Queries) > 5 {
		violations = append(violations, "plan must contain between 2 and 5 queries")
	}

	if sharesFourGramPrefix(plan.Queries) {
		violations = append(violations, "two or more queries share a normalized token 4-gram prefix")
	}

	queryTokens := tokenize(originalQuery)
	for _, q := range plan.Queries {
		if !mentionsAnyToken(q, queryTokens) {
			violations = append(violations, "query does not mention any entity or concept from the original question: "+q)
		}
	}

	return violations
}

// sharesFourGramPrefix 判断是否存在两条查询共享同一个规范化 4-gram 前缀
func sharesFourGramPrefix(queries []string) bool {
	seen := map[string]bool{}
	for _, q := range queries {
		tokens := tokenize(q)
		if len(tokens) < 4 {
			continue
		}
		prefix := strings.Join(tokens[:4], " ")
		if seen[prefix] {
			return true
		}
		seen[prefix] = true
	}
	return false
}

// mentionsAnyToken 判断 query 里是否出现 originalTokens 中的任意一个词
func mentionsAnyToken(query string, originalTokens []string) bool {
	queryTokens := tokenize(query)
	set := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		set[t] = true
	}
	for _, t := range originalTokens {
		if len(t) < 3 {
			continue
		}
		if set[t] {
			return true
		}
	}
	return len(originalTokens) == 0
}

// tokenize 做最基础的规范化分词：小写、按非字母数字切分
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}
