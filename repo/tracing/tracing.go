// Package tracing 初始化全局的 OpenTelemetry TracerProvider，供
// repo/callback 和 agent/research 打的那些 span 有地方落地。沿用
// ai-allin 的 telemetry 包那套结构：没有配置导出端点时退化为 stdout
// exporter，这里干脆只保留 stdout 这一条路径——本项目目前没有其它组件
// 需要 OTLP/gRPC，额外引入那条依赖链没有落地的地方。
package tracing

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/HildaM/logs/slog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Init 配置一个进程级的 TracerProvider 并注册为全局。导出目标由
// DEER_FLOW_TRACE_FILE 环境变量控制：未设置时所有 span 写往 stderr，
// 设置时写往该文件路径，方便跑一次研究任务后离线查看 span 树。返回的
// shutdown 函数在进程退出前调用一次，确保缓冲的 span 被落盘
func Init(ctx context.Context) (func(context.Context) error, error) {
	out, err := traceWriter()
	if err != nil {
		return nil, fmt.Errorf("tracing.Init failed, open trace writer err: %w", err)
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("tracing.Init failed, new stdouttrace exporter err: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("deer-flow-go"),
			attribute.String("component", "agent-graph"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing.Init failed, new resource err: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Error("tracing.Init shutdown failed, err = %+v", err)
			return err
		}
		return nil
	}, nil
}

// traceWriter 打开 span 导出的目标文件；未配置时使用 stderr，避免和
// 控制台输出的研究事件交错在一起
func traceWriter() (*os.File, error) {
	path := os.Getenv("DEER_FLOW_TRACE_FILE")
	if path == "" {
		return os.Stderr, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
