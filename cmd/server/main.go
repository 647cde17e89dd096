// Package main 是服务端入口：一个 hertz HTTP 服务，`POST /research` 接受一个
// 问题并以 SSE 流式返回 §4.8 文档化的事件序列，`POST /research/:thread_id/answer`
// 递交澄清回答恢复一次被中断的运行。传输选型沿用教师 repo/callback 已经
// 依赖的 cloudwego/hertz。
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/protocol/sse"
	"github.com/google/uuid"

	"github.com/hildam/deer-flow-go/entity/conf"
	rconsts "github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
	"github.com/hildam/deer-flow-go/events"
	"github.com/hildam/deer-flow-go/graph"
	"github.com/hildam/deer-flow-go/metrics"
	"github.com/hildam/deer-flow-go/repo/callback"
	"github.com/hildam/deer-flow-go/repo/checkpoint"
	"github.com/hildam/deer-flow-go/repo/mcp"
	"github.com/hildam/deer-flow-go/repo/tracing"
)

// researchRequest 是 POST /research 的请求体
type researchRequest struct {
	Query string `json:"query"`
}

// answerRequest 是 POST /research/:thread_id/answer 的请求体
type answerRequest struct {
	Answer string `json:"answer"`
}

var checkpointDir = "./.checkpoints"

func main() {
	funcs := []func() error{conf.Init, mcp.InitMcpServer}
	for _, f := range funcs {
		if err := f(); err != nil {
			log.Fatal(err)
		}
	}

	shutdownTracing, err := tracing.Init(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	defer shutdownTracing(context.Background())

	h := server.Default(server.WithHostPorts(":8080"))
	h.POST("/research", handleResearch)
	h.POST("/research/:thread_id/answer", handleAnswer)
	h.Spin()
}

func checkPointStore() compose.CheckPointStore {
	store, err := checkpoint.NewFileCheckPoint(checkpointDir)
	if err != nil {
		slog.Error("checkPointStore failed, NewFileCheckPoint err = %+v", err)
		return checkpoint.NewMemCheckPoint()
	}
	return store
}

// handleResearch 启动一次新的研究运行，以 SSE 把事件流式返回
func handleResearch(ctx context.Context, c *app.RequestContext) {
	var req researchRequest
	if err := c.BindJSON(&req); err != nil || req.Query == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	threadID := uuid.New().String()
	runnable, err := graph.BuildAgentGraph[string, string](ctx, req.Query, threadID, &graph.BuildOptions{
		CheckPointStore: checkPointStore(),
	})
	if err != nil {
		slog.Error("handleResearch failed, BuildAgentGraph err = %+v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	streamEvents(ctx, c, threadID, func(ctx context.Context, w *sse.Writer) (*model.State, error) {
		cb := &callback.LoggerCallback{ThreadID: threadID, SSE: w}
		_, runErr := runnable.Stream(ctx, rconsts.Clarify, compose.WithCallbacks(cb))
		logRunMetrics(threadID, cb)
		return cb.Final, runErr
	})
}

// handleAnswer 在一次澄清中断之后，携带用户的回答续跑同一个 thread_id
func handleAnswer(ctx context.Context, c *app.RequestContext) {
	threadID := c.Param("thread_id")
	var req answerRequest
	if err := c.BindJSON(&req); err != nil || req.Answer == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "answer is required"})
		return
	}

	runnable, err := graph.BuildAgentGraph[string, string](ctx, "", threadID, &graph.BuildOptions{
		CheckPointStore: checkPointStore(),
	})
	if err != nil {
		slog.Error("handleAnswer failed, BuildAgentGraph err = %+v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	streamEvents(ctx, c, threadID, func(ctx context.Context, w *sse.Writer) (*model.State, error) {
		cb := &callback.LoggerCallback{ThreadID: threadID, SSE: w}
		_, runErr := runnable.Stream(ctx, rconsts.Clarify,
			compose.WithCallbacks(cb),
			compose.WithCheckPointID(threadID),
			compose.WithStateModifier(func(_ context.Context, _ compose.NodePath, stateAny any) error {
				if state, ok := stateAny.(*model.State); ok {
					state.ClarificationAnswer = req.Answer
				}
				return nil
			}),
		)
		logRunMetrics(threadID, cb)
		return cb.Final, runErr
	})
}

// logRunMetrics 在运行跑到 Critique 收尾后打印一份性能/质量摘要。不是每次
// 续跑都会跑到 Critique（例如再次被澄清打断），Final 为 nil 时静默跳过
func logRunMetrics(threadID string, cb *callback.LoggerCallback) {
	if cb.Final == nil {
		return
	}
	slog.Info("logRunMetrics info, thread_id = %s", threadID)
	var buf bytes.Buffer
	metrics.Print(&buf, metrics.FromState(cb.Final))
	slog.Info(buf.String())
}

// streamEvents 建立一个 SSE 连接，运行 run，并总是在返回前推送一条 done 事件
// （成功或失败都推送，失败时还先推送一条带分类的 error 事件），保证客户端
// 总能拿到一个确定的 partial_state 终态帧，对应 §5 "error(cancelled,...)
// followed by done(partial_state)" 的收尾约定
func streamEvents(ctx context.Context, c *app.RequestContext, threadID string, run func(context.Context, *sse.Writer) (*model.State, error)) {
	c.SetStatusCode(consts.StatusOK)
	w := sse.NewWriter(c)

	deadlineCtx, cancel := graph.OverallDeadline(ctx)
	defer cancel()

	final, runErr := run(deadlineCtx, w)

	report, findingsCount := "", 0
	if final != nil {
		report, findingsCount = final.Report, len(final.Findings)
	}

	if runErr != nil {
		slog.Error("streamEvents failed, run err = %+v", runErr)
		dataByte, _ := json.Marshal(events.ErrorEvent(threadID, errorKindFor(deadlineCtx, runErr), runErr.Error()))
		_ = w.WriteEvent("", string(events.Error), dataByte)
	}

	dataByte, _ := json.Marshal(events.DoneEvent(threadID, report, findingsCount))
	_ = w.WriteEvent("", string(events.Done), dataByte)

	_ = w.WriteEvent("", "end", []byte(`{"type":"end"}`))
}

// errorKindFor 把一次运行失败归类到 §7 的 cancelled/deadline/model 三种事件流
// 可见错误之一：ctx 到期优先于 ctx 被取消，剩下的归为笼统的 model 错误
func errorKindFor(ctx context.Context, err error) events.ErrorKind {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return events.ErrorKindDeadline
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return events.ErrorKindCancelled
	default:
		return events.ErrorKindModel
	}
}
