// Package search 定义 Research 子图 Search 步骤依赖的外部检索面，以及一个
// 基于 MCP 工具的默认实现。
//
// 选择搜索工具的方式沿用 agent/investigator/investigator.go 的做法：按工具
// 名称后缀 "search" 匹配第一个符合的 MCP 工具，而不是要求调用方显式配置
// 工具 ID，这样换一个搜索类 MCP 服务端不需要改代码。
package search

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/components/tool"
	"github.com/hildam/deer-flow-go/entity/conf"
	"github.com/hildam/deer-flow-go/entity/model"
	"github.com/hildam/deer-flow-go/errs"
	"github.com/hildam/deer-flow-go/repo/mcp"
)

// DefaultMaxResults 是未传入有效上限时的兜底每查询结果数
const DefaultMaxResults = 5

// Provider 是 Research 子图 Search 步骤依赖的检索接口，输入一个查询串和
// 每查询结果数上限，返回若干条 {url, title, snippet} 结果（不抓取正文，
// 正文由 fetch.Fetcher 负责）
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) (model.SearchRecord, error)
}

// mcpProvider 是基于 repo/mcp 暴露的工具列表实现的默认 Provider
type mcpProvider struct{}

// NewMCPProvider 创建一个基于 MCP 工具的默认 Provider
func NewMCPProvider() Provider {
	return &mcpProvider{}
}

// searchRetryBackoff 是单次重试前的固定等待时长，对应 §7 "TransientProviderError
// ... Retried at most once per call" 的退避策略
const searchRetryBackoff = 200 * time.Millisecond

func (p *mcpProvider) Search(ctx context.Context, query string, maxResults int) (model.SearchRecord, error) {
	ms := conf.GetCfg().Research.SearchTimeoutMS
	if ms <= 0 {
		ms = 15_000
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
	defer cancel()

	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	rec := model.SearchRecord{Query: query, Timestamp: time.Now()}

	searchTool, err := findSearchTool(ctx)
	if err != nil {
		return rec, errs.Permanent("search.findSearchTool", err)
	}

	argsJSON, err := json.Marshal(map[string]any{"query": query, "max_results": maxResults})
	if err != nil {
		return rec, errs.Permanent("search.marshalArgs", err)
	}

	result, err := searchTool.InvokableRun(ctx, string(argsJSON))
	if err != nil {
		slog.Debug("search.Search debug, first attempt failed, retrying once, query = %+v, err = %+v", query, err)
		select {
		case <-ctx.Done():
			return rec, errs.Transient("search.invoke", err)
		case <-time.After(searchRetryBackoff):
		}
		result, err = searchTool.InvokableRun(ctx, string(argsJSON))
		if err != nil {
			return rec, errs.Transient("search.invoke", err)
		}
	}

	results := extractResults(result)
	// 部分 MCP 搜索工具不保证尊重 max_results 入参，这里兜底截断一次，
	// 确保 §4.2 "每次查询最多 N 条结果" 的上限在调用方侧也成立
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	rec.Results = results
	slog.Debug("search.Search debug, query = %+v, results = %+v", query, rec.Results)
	return rec, nil
}

// findSearchTool 在所有已加载的 MCP 工具中查找名称以 "search" 结尾的第一个
// 可调用工具
func findSearchTool(ctx context.Context) (tool.InvokableTool, error) {
	toolList, err := mcp.GetMCPTools(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range toolList {
		info, err := t.Info(ctx)
		if err != nil {
			continue
		}
		if strings.HasSuffix(info.Name, "search") {
			if invokable, ok := t.(tool.InvokableTool); ok {
				return invokable, nil
			}
		}
	}
	return nil, errs.Permanent("search.findSearchTool", errNoSearchTool)
}

var errNoSearchTool = &noSearchToolError{}

type noSearchToolError struct{}

func (*noSearchToolError) Error() string { return "no MCP tool with a \"search\" suffix is configured" }

// extractResults 从搜索工具的原始文本结果里提取 {url, title, snippet} 三元组。
// 多数 MCP 搜索工具返回 JSON 数组，字段命名不完全统一，所以 title/snippet
// 各尝试几个常见的候选键名；如果解析不出 JSON，退化成纯 URL 子串扫描，此时
// title/snippet 留空
func extractResults(raw string) []model.SearchResult {
	var parsed []map[string]any
	if json.Unmarshal([]byte(raw), &parsed) == nil {
		results := make([]model.SearchResult, 0, len(parsed))
		for _, item := range parsed {
			u, ok := item["url"].(string)
			if !ok || u == "" {
				continue
			}
			results = append(results, model.SearchResult{
				URL:     u,
				Title:   firstString(item, "title", "name"),
				Snippet: firstString(item, "snippet", "description", "content", "summary"),
			})
		}
		if len(results) > 0 {
			return results
		}
	}

	var results []model.SearchResult
	for _, tok := range strings.Fields(raw) {
		tok = strings.Trim(tok, "()[]<>,\"'")
		if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
			results = append(results, model.SearchResult{URL: tok})
		}
	}
	return results
}

// firstString 返回 m 中第一个存在且非空的候选键对应的字符串值
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
