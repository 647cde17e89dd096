// Package critique 实现 Critique 阶段：对最终报告打出四维评分，纯粹是咨询
// 性质，不会让运行失败或重新走一遍前面的阶段。
//
// load/agent/router 三节点结构沿用教师各 stage 的通用形状（见
// agent/repoter/repoter.go）；打分本身是一个轻量、不阻断主流程的节点，这点
// 呼应 Divas-Gupta30-mcp 的 CriticNode：那里是一个几行的启发式收尾节点，这
// 里换成一次固定温度 0.2 的结构化模型调用，但同样不影响最终产出是否可用。
package critique

import (
	"context"
	"fmt"
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

// critiqueImpl 评审者
type critiqueImpl[I, O any] struct {
	llm *openai.ChatModel
}

// NewCritique 创建实例
func NewCritique[I, O any](ctx context.Context) *critiqueImpl[I, O] {
	return &critiqueImpl[I, O]{
		llm: llm.NewCriticModel(ctx),
	}
}

// NewGraphNode 创建任务图
func (c *critiqueImpl[I, O]) NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt) {
	graph := compose.NewGraph[I, O]()

	graph.AddLambdaNode("load", compose.InvokableLambdaWithOption(loadMsg))
	graph.AddChatModelNode("agent", c.llm)
	graph.AddLambdaNode("router", compose.InvokableLambdaWithOption(router))

	graph.AddEdge(compose.START, "load")
	graph.AddEdge("load", "agent")
	graph.AddEdge("agent", "router")
	graph.AddEdge("router", compose.END)

	return consts.Critique, graph, compose.WithNodeName(consts.Critique)
}

func loadMsg(ctx context.Context, name string, opts ...any) (output []*schema.Message, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		sysPrompt, loadErr := template.GetPromptTemplate(ctx, name)
		if loadErr != nil {
			slog.Error("critique.loadMsg failed, GetPromptTemplate err = %+v", loadErr)
			return loadErr
		}

		promptTemp := prompt.FromMessages(schema.Jinja2,
			schema.SystemMessage(sysPrompt),
			schema.UserMessage(fmt.Sprintf("# Research question\n\n%s\n\n# Final report\n\n%s\n\n# Compressed notes used to write it\n\n%s", state.Query, state.Report, compressedText(state))),
		)

		variables := map[string]any{
			"CURRENT_TIME": time.Now().Format("2006-01-02 15:04:05"),
		}
		output, err = promptTemp.Format(ctx, variables)
		return err
	})
	return output, err
}

func compressedText(state *model.State) string {
	if state.Compressed == nil {
		return ""
	}
	return state.Compressed.Text
}

// router 解析评分输出，计算总分并结束整个运行
func router(ctx context.Context, input *schema.Message, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()

		score := &model.CritiqueScore{}
		if !extract.JSON(input.Content, score) {
			slog.Error("critique.router failed, unable to parse critique output, content = %+v", input.Content)
			state.AddWarning("critique: unable to parse critique output, report stands uncritiqued")
			score = &model.CritiqueScore{}
		}

		score.Completeness = clamp(score.Completeness)
		score.Accuracy = clamp(score.Accuracy)
		score.Relevance = clamp(score.Relevance)
		score.Clarity = clamp(score.Clarity)
		score.Total = score.Completeness + score.Accuracy + score.Relevance + score.Clarity

		state.Critique = score

		now := time.Now()
		state.EndedAt = &now
		state.Goto = compose.END
		return nil
	})
	return output, err
}

// clamp 把单项评分限制在 [0,5] 范围内，防止模型偶尔越界的评分破坏总分不变式
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}
