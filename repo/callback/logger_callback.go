// Package callback 把 eino 图执行过程中的回调转换成 events.Event，经 SSE
// 或一个普通 channel 推给调用方。结构沿用教师的 LoggerCallback：同样嵌入
// callbacks.HandlerBuilder，同样用 hertz 的 sse.Writer 做传输，只是把自由
// 形态的 ChatResp 换成了 §4.8 文档化的 events.Event。
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/callbacks"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/protocol/sse"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
	"github.com/hildam/deer-flow-go/events"
)

// tracer 给每个 stage 打一个 span，span 名就是 stage 名，附带 thread_id
// 方便跨日志关联，镜像 §9.8 要求的"跑在协调层、按 stage 分段"
// 的追踪粒度
var tracer = otel.Tracer("github.com/hildam/deer-flow-go/graph")

// LoggerCallback 把图执行事件转发到 SSE 连接和/或一个 events.Event channel
type LoggerCallback struct {
	callbacks.HandlerBuilder

	ThreadID string            // 线程ID，用于标识当前对话会话
	SSE      *sse.Writer       // SSE写入器，用于向客户端推送实时流式数据
	Out      chan events.Event // 输出通道，用于异步传递事件

	// Final 在 Critique 节点结束时被写入一份状态快照的指针，供调用方在
	// Stream/Invoke 返回后读取，折算成 metrics.Summary
	Final *model.State
}

// push 把一个事件序列化后通过 SSE 和输出通道双路推送
func (cb *LoggerCallback) push(ev events.Event) {
	if cb.SSE != nil {
		dataByte, err := json.Marshal(ev)
		if err != nil {
			slog.Error("callback.push failed, marshal event err = %+v, event = %+v", err, ev)
		} else if err := cb.SSE.WriteEvent("", string(ev.Type), dataByte); err != nil {
			slog.Error("callback.push failed, write sse err = %+v", err)
		}
	}
	if cb.Out != nil {
		cb.Out <- ev
	}
}

// stageStartKey 是挂在 ctx 上的 stage 起始时间，供 OnEnd 折算 duration_ms
type stageStartKey struct{}

// currentStage 从图的共享状态读取正在执行的 stage 名
func currentStage(ctx context.Context) string {
	stage := ""
	_ = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		stage = state.Goto
		return nil
	})
	return stage
}

// OnStart 节点开始执行时推送一条 stage_start 事件，并开启一个以 stage 命名
// 的 span，挂在 ctx 上供 OnEnd/OnError 取用
func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	stage := currentStage(ctx)
	if info != nil && info.Name != "" {
		stage = info.Name
	}
	cb.push(events.StageStartEvent(cb.ThreadID, stage))

	ctx, _ = tracer.Start(ctx, stage, trace.WithAttributes(
		attribute.String("thread_id", cb.ThreadID),
	))
	ctx = context.WithValue(ctx, stageStartKey{}, time.Now())
	return ctx
}

// OnEnd 节点执行结束时结束该 stage 的 span、推送一条 stage_end 事件，drain
// 该节点在本次执行中积累的 finding_added/error 待推送事件，并在 Critique
// 收尾时拍一份状态快照供调用方折算运行摘要
func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	stage := currentStage(ctx)
	if info != nil && info.Name != "" {
		stage = info.Name
	}
	trace.SpanFromContext(ctx).End()
	var duration time.Duration
	if start, ok := ctx.Value(stageStartKey{}).(time.Time); ok {
		duration = time.Since(start)
	}
	cb.push(events.StageEndEvent(cb.ThreadID, stage, duration))

	_ = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
		urls := state.TakePendingFindingURLs()
		total := len(state.Findings) - len(urls)
		for _, u := range urls {
			total++
			cb.push(events.FindingAddedEvent(cb.ThreadID, stage, u, total))
		}
		if kind, detail, ok := state.TakePendingError(); ok {
			cb.push(events.ErrorEvent(cb.ThreadID, kind, detail))
		}
		return nil
	})

	if info != nil && info.Name == consts.Critique {
		_ = compose.ProcessState[*model.State](ctx, func(_ context.Context, state *model.State) error {
			snapshot := *state
			cb.Final = &snapshot
			return nil
		})
	}
	return ctx
}

// OnError 节点执行出错时结束该 stage 的 span（标记为错误）并推送一条 error
// 事件
func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	slog.Error("callback.OnError failed, err = %+v", err)
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.End()
	cb.push(events.ErrorEvent(cb.ThreadID, events.ErrorKindModel, err.Error()))
	return ctx
}

// pushMsg 把模型产出的单条消息转换成 thought 或 partial_report_token 事件，
// 取决于当前所在的 stage：Research 阶段的内容是分析轨迹，Writer 阶段的内容
// 是报告正文片段
func (cb *LoggerCallback) pushMsg(ctx context.Context, stage string, msg *schema.Message) {
	if msg == nil || msg.Content == "" {
		return
	}
	if stage == "writer" {
		cb.push(events.PartialReportTokenEvent(cb.ThreadID, msg.Content))
		return
	}
	cb.push(events.ThoughtEvent(cb.ThreadID, stage, msg.Content))
}

// OnEndWithStreamOutput 消费流式输出，把每一帧转成事件后推送，镜像教师
// LoggerCallback 的异步消费结构：独立 goroutine、defer Close、panic 恢复
func (cb *LoggerCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	stage := currentStage(ctx)
	if info != nil && info.Name != "" {
		stage = info.Name
	}
	go func() {
		defer output.Close()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("callback.OnEndWithStreamOutput panic_recover, stage = %s, err = %v", stage, r)
			}
		}()
		for {
			frame, err := output.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				slog.Error("callback.OnEndWithStreamOutput recv_error, stage = %s, err = %v", stage, err)
				return
			}
			switch v := frame.(type) {
			case *schema.Message:
				cb.pushMsg(ctx, stage, v)
			case *ecmodel.CallbackOutput:
				cb.pushMsg(ctx, stage, v.Message)
			case []*schema.Message:
				for _, m := range v {
					cb.pushMsg(ctx, stage, m)
				}
			default:
				slog.Debug("callback.OnEndWithStreamOutput debug, unknown frame type = %T", v)
			}
		}
	}()
	return ctx
}

// OnStartWithStreamInput 资源清理，和教师实现完全一致
func (cb *LoggerCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	defer input.Close()
	return ctx
}
