// Package writer 实现 Writer 阶段：把压缩后的研究笔记写成带 [n] 引用标记的
// 最终报告。
//
// load/agent/router 三节点结构与提示词装配方式沿用
// agent/repoter/repoter.go；教师的报告者要求引用全部放在末尾的 Key
// Citations 小节而不用行内标记，这里反过来强制行内 [n] 标记，因为引用校验
// （§4.6）要求每条 [n] 都能对上一个已存在的 Citation。
package writer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/HildaM/logs/slog"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
	"github.com/hildam/deer-flow-go/errs"
	"github.com/hildam/deer-flow-go/events"
	"github.com/hildam/deer-flow-go/repo/llm"
	"github.com/hildam/deer-flow-go/repo/template"
)

const retryKey = consts.Writer

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// flaggedClaimWords 供 looksFactual 粗略识别"看起来像事实性陈述"的句子：包含
// 数字、四位年份，或形如 "most"/"best"/"first" 的最高级词；句中任意位置出现
// [n] 的句子不计为漏引用
var flaggedClaimWords = []string{"most", "best", "first", "largest", "smallest", "highest", "lowest", "only"}

// writerImpl 报告撰写者
type writerImpl[I, O any] struct {
	llm *openai.ChatModel
}

// NewWriter 创建实例
func NewWriter[I, O any](ctx context.Context) *writerImpl[I, O] {
	return &writerImpl[I, O]{
		llm: llm.NewWriterModel(ctx),
	}
}

// NewGraphNode 创建任务图
func (w *writerImpl[I, O]) NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt) {
	graph := compose.NewGraph[I, O]()

	graph.AddLambdaNode("load", compose.InvokableLambdaWithOption(loadMsg))
	graph.AddChatModelNode("agent", w.llm)
	graph.AddLambdaNode("router", compose.InvokableLambdaWithOption(router))

	graph.AddEdge(compose.START, "load")
	graph.AddEdge("load", "agent")
	graph.AddEdge("agent", "router")
	graph.AddEdge("router", compose.END)

	return consts.Writer, graph, compose.WithNodeName(consts.Writer)
}

// loadMsg 加载报告生成的提示词模板，重试时附带一条纠正指令
func loadMsg(ctx context.Context, name string, opts ...any) (output []*schema.Message, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		sysPrompt, loadErr := template.GetPromptTemplate(ctx, name)
		if loadErr != nil {
			slog.Error("writer.loadMsg failed, GetPromptTemplate err = %+v", loadErr)
			return loadErr
		}

		promptTemp := prompt.FromMessages(schema.Jinja2,
			schema.SystemMessage(sysPrompt),
			schema.MessagesPlaceholder("user_input", true),
		)

		citationsJSON := renderCitationList(state.Compressed)
		msgs := []*schema.Message{
			schema.UserMessage(fmt.Sprintf("# Research question\n\n%s\n\n# Compressed notes\n\n%s\n\n# Available citations\n\n%s", state.Query, compressedText(state.Compressed), citationsJSON)),
		}
		if state.RetryFlags != nil && state.RetryFlags[retryKey] {
			msgs = append(msgs, schema.SystemMessage("CORRECTION: your previous draft had a dangling [n] marker or an uncited factual sentence. Re-write the report, citing every factual claim with an existing [n] marker and ensuring no marker references a citation id that doesn't exist."))
		}

		variables := map[string]any{
			"CURRENT_TIME": time.Now().Format("2006-01-02 15:04:05"),
			"user_input":   msgs,
		}
		output, err = promptTemp.Format(ctx, variables)
		return err
	})
	return output, err
}

func compressedText(c *model.Compressed) string {
	if c == nil {
		return ""
	}
	return c.Text
}

func renderCitationList(c *model.Compressed) string {
	if c == nil {
		return ""
	}
	var lines []string
	for _, cit := range c.Citations {
		line := fmt.Sprintf("[%d] %s", cit.ID, cit.URL)
		if cit.Title != "" {
			line += " " + cit.Title
		}
		if cit.Snippet != "" {
			line += "\n    " + cit.Snippet
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// router 对模型产出的报告做引用校验：悬空标记、疑似漏引用的事实性句子
func router(ctx context.Context, input *schema.Message, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()

		report := input.Content
		violations := validateCitations(report, state.Compressed)
		alreadyRetried := state.RetryFlags != nil && state.RetryFlags[retryKey]

		if len(violations) > 0 && !alreadyRetried {
			slog.Debug("writer.router debug, citation validation failed, retrying once, violations = %+v", violations)
			if state.RetryFlags == nil {
				state.RetryFlags = map[string]bool{}
			}
			state.RetryFlags[retryKey] = true
			state.Goto = consts.Writer
			return nil
		}

		if len(violations) > 0 {
			citeErr := errs.Citation(strings.Join(violations, "; "))
			slog.Error("writer.router failed, citation validation still failing after retry, err = %+v", citeErr)
			state.AddWarning("writer: " + citeErr.Error())
			state.PendingErrorKind = events.ErrorKindCitation
			state.PendingErrorDetail = citeErr.Error()
		}

		state.Report = report
		state.Goto = consts.Critique
		return nil
	})
	return output, err
}

// validateCitations 检查悬空引用标记和疑似漏引用的事实性句子
func validateCitations(report string, compressed *model.Compressed) []string {
	var violations []string

	validIDs := map[string]bool{}
	if compressed != nil {
		for _, c := range compressed.Citations {
			validIDs[strconv.Itoa(c.ID)] = true
		}
	}

	for _, m := range citationMarker.FindAllStringSubmatch(report, -1) {
		if !validIDs[m[1]] {
			violations = append(violations, fmt.Sprintf("dangling citation marker [%s]", m[1]))
		}
	}

	for _, sentence := range splitSentences(report) {
		if citationMarker.MatchString(sentence) {
			continue
		}
		if looksFactual(sentence) {
			violations = append(violations, "uncited factual sentence: "+strings.TrimSpace(sentence))
		}
	}

	return violations
}

var sentenceSplit = regexp.MustCompile(`(?m)[.!?]\s+`)

func splitSentences(text string) []string {
	return sentenceSplit.Split(text, -1)
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
var digitPattern = regexp.MustCompile(`\d`)

func looksFactual(sentence string) bool {
	lower := strings.ToLower(sentence)
	if yearPattern.MatchString(sentence) || digitPattern.MatchString(sentence) {
		return true
	}
	for _, w := range flaggedClaimWords {
		if strings.Contains(lower, " "+w+" ") {
			return true
		}
	}
	return false
}
