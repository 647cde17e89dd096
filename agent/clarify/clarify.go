// Package clarify 实现 Clarify 阶段：决定一个查询是否需要澄清，如果需要，
// 借助图的 checkpoint 机制短路当前运行并等待调用方提供澄清回答。
//
// load/agent/router 三节点结构沿用 agent/coordinator 的形状；短路等待人类
// 输入的机制沿用 agent/human 对 compose.InterruptAndRerun 的用法 —— 教师用
// 它等待计划审批，这里用它等待澄清回答。
package clarify

import (
	"context"
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

const retryKey = consts.Clarify

// clarifyResult 是模型结构化输出的载体，字段对应 §4.1 的输出 schema
type clarifyResult struct {
	NeedsClarification bool     `json:"needs_clarification"`
	Question           string   `json:"question"`
	QueryAnalysis      string   `json:"query_analysis"`
	DetectedTopics     []string `json:"detected_topics"`
}

// clarifyImpl 澄清者
type clarifyImpl[I, O any] struct {
	llm *openai.ChatModel
}

// NewClarify 创建实例
func NewClarify[I, O any](ctx context.Context) *clarifyImpl[I, O] {
	return &clarifyImpl[I, O]{
		llm: llm.NewClarifyModel(ctx),
	}
}

// NewGraphNode 创建任务图
func (c *clarifyImpl[I, O]) NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt) {
	graph := compose.NewGraph[I, O]()

	graph.AddLambdaNode("load", compose.InvokableLambdaWithOption(loadMsg))
	graph.AddChatModelNode("agent", c.llm)
	graph.AddLambdaNode("router", compose.InvokableLambdaWithOption(router))

	graph.AddEdge(compose.START, "load")
	graph.AddEdge("load", "agent")
	graph.AddEdge("agent", "router")
	graph.AddEdge("router", compose.END)

	return consts.Clarify, graph, compose.WithNodeName(consts.Clarify)
}

// loadMsg 加载澄清判定的提示词模板。由澄清回答触发的重跑也同样组装输入并
// 调用模型；router 在这种情况下直接走回答合并分支，不使用模型输出
func loadMsg(ctx context.Context, name string, opts ...any) (output []*schema.Message, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		sysPrompt, loadErr := template.GetPromptTemplate(ctx, name)
		if loadErr != nil {
			slog.Error("clarify.loadMsg failed, GetPromptTemplate err = %+v", loadErr)
			return loadErr
		}

		promptTemp := prompt.FromMessages(schema.Jinja2,
			schema.SystemMessage(sysPrompt),
			schema.UserMessage(state.Query),
		)

		variables := map[string]any{
			"query":        state.Query,
			"CURRENT_TIME": time.Now().Format("2006-01-02 15:04:05"),
		}
		output, err = promptTemp.Format(ctx, variables)
		return err
	})
	return output, err
}

// clarifyOutcome 是 router 在不接触图状态的情况下能决定的全部内容，拆出来
// 方便单测覆盖 §4.1 的解析失败重试与澄清短路两条规则
type clarifyOutcome struct {
	query                 string
	needsClarification    bool
	clarificationQuestion string
	queryAnalysis         string
	detectedTopics        []string
	retry                 bool
	goto_                 string
	interrupt             bool
}

// decideClarifyOutcome 套用 §4.1 的判定规则：先处理澄清回答触发的重跑，再
// 尝试解析模型输出，解析失败时最多重试一次，重试仍失败则按兜底策略放行
func decideClarifyOutcome(query, clarificationAnswer, modelContent string, alreadyRetried bool) clarifyOutcome {
	if clarificationAnswer != "" {
		return clarifyOutcome{
			query:              query + " " + clarificationAnswer,
			needsClarification: false,
			goto_:              consts.Planner,
		}
	}

	res := &clarifyResult{}
	if !extract.JSON(modelContent, res) {
		if !alreadyRetried {
			return clarifyOutcome{query: query, retry: true, goto_: consts.Clarify}
		}
		return clarifyOutcome{
			query:          query,
			queryAnalysis:  "unparseable",
			goto_:          consts.Planner,
		}
	}

	if res.NeedsClarification {
		return clarifyOutcome{
			query:                 query,
			needsClarification:    true,
			clarificationQuestion: res.Question,
			queryAnalysis:         res.QueryAnalysis,
			detectedTopics:        res.DetectedTopics,
			goto_:                 consts.Clarify,
			interrupt:             true,
		}
	}

	return clarifyOutcome{
		query:          query,
		queryAnalysis:  res.QueryAnalysis,
		detectedTopics: res.DetectedTopics,
		goto_:          consts.Planner,
	}
}

// router 解析模型输出并决定是否短路等待澄清
func router(ctx context.Context, input *schema.Message, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()

		alreadyRetried := state.RetryFlags != nil && state.RetryFlags[retryKey]
		outcome := decideClarifyOutcome(state.Query, state.ClarificationAnswer, input.Content, alreadyRetried)

		if outcome.retry {
			slog.Debug("clarify.router debug, failed to parse output, retrying once, content = %+v", input.Content)
			if state.RetryFlags == nil {
				state.RetryFlags = map[string]bool{}
			}
			state.RetryFlags[retryKey] = true
			state.Goto = outcome.goto_
			return nil
		}

		state.Query = outcome.query
		state.ClarificationAnswer = ""
		state.NeedsClarification = outcome.needsClarification
		state.QueryAnalysis = outcome.queryAnalysis
		state.DetectedTopics = outcome.detectedTopics
		state.Goto = outcome.goto_

		if outcome.needsClarification {
			state.ClarificationQuestion = outcome.clarificationQuestion
		}
		if outcome.queryAnalysis == "unparseable" {
			slog.Error("clarify.router failed, unable to parse clarify output after retry, content = %+v", input.Content)
		}

		if outcome.interrupt {
			return compose.InterruptAndRerun
		}
		return nil
	})
	return output, err
}
