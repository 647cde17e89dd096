// Package main 是控制台入口：单进程读取一行用户问题，跑完整条研究流水线，
// 把每个 stage 的事件打印到标准输出。结构沿用教师根目录 main.go 的
// runConsule：读初始化 → 读终端输入 → 建图 → Stream。
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/HildaM/logs/slog"
	"github.com/google/uuid"

	"github.com/hildam/deer-flow-go/entity/conf"
	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/events"
	"github.com/hildam/deer-flow-go/graph"
	"github.com/hildam/deer-flow-go/metrics"
	"github.com/hildam/deer-flow-go/repo/callback"
	"github.com/hildam/deer-flow-go/repo/mcp"
	"github.com/hildam/deer-flow-go/repo/tracing"

	"github.com/cloudwego/eino/compose"
)

func main() {
	ctx := context.Background()

	funcs := []func() error{conf.Init, mcp.InitMcpServer}
	for _, f := range funcs {
		if err := f(); err != nil {
			log.Fatal(err)
		}
	}

	shutdownTracing, err := tracing.Init(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer shutdownTracing(ctx)

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("请输入你的研究问题： ")
	query, _ := reader.ReadString('\n')
	query = strings.TrimSpace(query)

	threadID := uuid.New().String()
	runnable, err := graph.BuildAgentGraph[string, string](ctx, query, threadID, nil)
	if err != nil {
		slog.Fatal("BuildAgentGraph failed, err: %v", err)
	}

	outChan := make(chan events.Event)
	go func() {
		for ev := range outChan {
			switch ev.Type {
			case events.StageStart:
				fmt.Printf("\n=== %s 开始 ===\n", ev.Stage)
			case events.StageEnd:
				fmt.Printf("=== %s 结束 (%dms) ===\n", ev.Stage, ev.DurationMS)
			case events.PartialReportToken:
				fmt.Print(ev.Content)
			case events.Thought, events.FindingAdded:
				fmt.Printf("[%s] %s\n", ev.Stage, ev.Content)
			case events.Error:
				fmt.Printf("[error:%s] %s\n", ev.Kind, ev.Content)
			case events.Done:
				fmt.Printf("\n=== 完成，findings=%d ===\n", ev.Findings)
			}
		}
	}()

	deadlineCtx, cancel := graph.OverallDeadline(ctx)
	defer cancel()

	cb := &callback.LoggerCallback{ThreadID: threadID, Out: outChan}
	_, err = runnable.Stream(deadlineCtx, consts.Clarify, compose.WithCallbacks(cb))
	close(outChan)
	if err != nil {
		slog.Error("Stream failed, err: %v", err)
	}

	if cb.Final != nil {
		metrics.Print(os.Stdout, metrics.FromState(cb.Final))
	}
}
