// Package research 实现 Research 子图：Search → Read → Analyze，支持
// 顺序深挖和并行广度两种模式。它是整条流水线里占比最大的一段，合并了教师
// 三个模块各自负责的一部分：agent/investigator 的 MCP 搜索工具选择方式
// （现收敛进 search 包）、agent/researcher 的 load/agent/router 三节点形状
// 与单步执行单元概念、agent/researcher/research_team.go 的纯策略路由节点
// 结构（供 Supervisor 沿用）。这里把三者整合成一个自驱动循环节点，因为这个
// 阶段的控制流（有界自循环、并行 fan-out、URL 去重）比线性三段式更复杂，
// 放进一个 lambda 节点内用普通 Go 控制流表达比拆成多个图节点更直接。
package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HildaM/logs/slog"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hildam/deer-flow-go/entity/conf"
	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
	"github.com/hildam/deer-flow-go/extract"
	"github.com/hildam/deer-flow-go/fetch"
	"github.com/hildam/deer-flow-go/repo/llm"
	"github.com/hildam/deer-flow-go/search"
)

// fetchConcurrency 文档化的读取并行上限：最多 3 个并发抓取
const fetchConcurrency = 3

// tracer 给 Research 子图内部的每次 Search/Read/Analyze 挂一个子 span，
// 挂在 LoggerCallback 为 "research" stage 开的那个 span 之下
var tracer = otel.Tracer("github.com/hildam/deer-flow-go/agent/research")

// researchImpl 研究子图
type researchImpl[I, O any] struct {
	analyzer     *openai.ChatModel // 结构化输出，约束为 model.AnalyzerOutput，不开插件工具时使用
	toolAnalyzer *openai.ChatModel // 自由文本/工具调用模型，驱动 enable_plugin_tools 的 ReAct agent
	searcher     search.Provider
	fetcher      fetch.Fetcher
}

// NewResearch 创建实例
func NewResearch[I, O any](ctx context.Context) *researchImpl[I, O] {
	cfg := conf.GetCfg().Research
	return &researchImpl[I, O]{
		analyzer:     llm.NewAnalyzerModel(ctx),
		toolAnalyzer: llm.NewSearcherAnalyzerModel(ctx),
		searcher:     search.NewMCPProvider(),
		fetcher:      fetch.NewHTTPFetcher(time.Duration(cfg.FetchTimeoutMS)*time.Millisecond, cfg.BodyTruncateBytes),
	}
}

// NewGraphNode 创建任务图。单个 run 节点承担搜索/阅读/分析三步的全部编排
func (r *researchImpl[I, O]) NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt) {
	graph := compose.NewGraph[I, O]()

	graph.AddLambdaNode("run", compose.InvokableLambdaWithOption(r.run))

	graph.AddEdge(compose.START, "run")
	graph.AddEdge("run", compose.END)

	return consts.Research, graph, compose.WithNodeName(consts.Research)
}

// run 是整个子图唯一的节点处理函数
func (r *researchImpl[I, O]) run(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()

		strategy := state.Strategy
		if strategy == nil {
			strategy = &model.Strategy{Mode: consts.StrategySequential, MaxParallelism: 1, MaxIterations: 1}
		}

		visited := newVisitedSet(state.ReadContents)

		var runErr error
		if strategy.Mode == consts.StrategyParallel {
			runErr = r.runParallel(ctx, state, strategy, visited)
		} else {
			runErr = r.runSequential(ctx, state, strategy, visited)
		}
		if runErr != nil {
			state.AddWarning("research: " + runErr.Error())
		}

		state.Goto = consts.Compress
		return nil
	})
	return output, err
}

// visitedSet 是一个并发安全的 URL 去重集合，保证 G2：同一次运行内任何 URL
// 不会被抓取两次。多个并行任务共享同一个实例
type visitedSet struct {
	mu   sync.Mutex
	urls map[string]bool
}

func newVisitedSet(existing []model.PageContent) *visitedSet {
	urls := make(map[string]bool, len(existing))
	for _, pc := range existing {
		urls[pc.URL] = true
	}
	return &visitedSet{urls: urls}
}

// claim 原子地检查并标记一个 URL 为已访问，返回 true 表示这是第一次访问
func (v *visitedSet) claim(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.urls[url] {
		return false
	}
	v.urls[url] = true
	return true
}

// runSequential 实现 §4.4 的顺序深挖模式：重复 搜索→阅读→分析，直到分析器
// 认为信息已充分或到达迭代上限
func (r *researchImpl[I, O]) runSequential(ctx context.Context, state *model.State, strategy *model.Strategy, visited *visitedSet) error {
	queryIdx := 0
	var nextQuery string

	for state.IterationCount < strategy.MaxIterations {
		query := nextQuery
		if query == "" {
			if state.Plan == nil || queryIdx >= len(state.Plan.Queries) {
				break
			}
			query = state.Plan.Queries[queryIdx]
			queryIdx++
		}

		rec, err := r.tracedSearch(ctx, query, maxResultsFor(state.Plan))
		if err != nil {
			slog.Error("research.runSequential failed, search err = %+v, query = %+v", err, query)
			state.AddWarning(fmt.Sprintf("research: search failed for %q: %v", query, err))
			state.IterationCount++
			continue
		}
		state.AppendSearchRecord(rec)

		pages := r.readURLs(ctx, rec.URLs(), visited)
		for _, pc := range pages {
			state.AppendReadContent(pc)
		}

		analyzed, err := r.tracedAnalyze(ctx, state.Query, query, pages)
		if err != nil {
			slog.Error("research.runSequential failed, analyze err = %+v", err)
			state.AddWarning(fmt.Sprintf("research: analyze failed for %q: %v", query, err))
			state.IterationCount++
			continue
		}

		before := len(state.Findings)
		state.AppendFindings(enrichFindings(analyzed.Findings, rec)...)
		added := len(state.Findings) - before

		if analyzed.Thought != "" {
			state.AppendThought(analyzed.Thought)
		}

		state.IterationCount++

		if analyzed.Action != consts.AnalyzeActionContinue || added == 0 {
			break
		}
		nextQuery = analyzed.NextQuery
		if nextQuery == "" && queryIdx >= len(state.Plan.Queries) {
			break
		}
	}
	return nil
}

// runParallel 实现 §4.4 的并行广度模式：plan 中前 max_parallelism 条查询各
// 自独立做一轮 搜索→阅读→分析，结果按计划顺序（而不是完成顺序）合并
func (r *researchImpl[I, O]) runParallel(ctx context.Context, state *model.State, strategy *model.Strategy, visited *visitedSet) error {
	if state.Plan == nil || len(state.Plan.Queries) == 0 {
		return nil
	}

	n := strategy.MaxParallelism
	if n > len(state.Plan.Queries) {
		n = len(state.Plan.Queries)
	}
	queries := state.Plan.Queries[:n]

	type taskResult struct {
		rec      model.SearchRecord
		pages    []model.PageContent
		analyzed model.AnalyzerOutput
		err      error
	}
	results := make([]taskResult, n)

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			rec, err := r.tracedSearch(gctx, q, maxResultsFor(state.Plan))
			if err != nil {
				results[i] = taskResult{err: err}
				return nil // 单个任务失败不终止其它任务
			}
			pages := r.readURLs(gctx, rec.URLs(), visited)
			analyzed, aerr := r.tracedAnalyze(gctx, state.Query, q, pages)
			analyzed.Findings = enrichFindings(analyzed.Findings, rec)
			results[i] = taskResult{rec: rec, pages: pages, analyzed: analyzed, err: aerr}
			return nil
		})
	}
	_ = g.Wait() // 每个任务内部已经吞掉了自己的错误，这里无需再收集

	state.IterationCount++
	for i, res := range results {
		if res.err != nil {
			state.AddWarning(fmt.Sprintf("research: parallel task for %q failed: %v", queries[i], res.err))
			continue
		}
		state.AppendSearchRecord(res.rec)
		for _, pc := range res.pages {
			state.AppendReadContent(pc)
		}
		state.AppendFindings(res.analyzed.Findings...)
		if res.analyzed.Thought != "" {
			state.AppendThought(res.analyzed.Thought)
		}
	}
	return nil
}

// tracedSearch 给一次搜索调用包一个子 span，携带查询文本
func (r *researchImpl[I, O]) tracedSearch(ctx context.Context, query string, maxResults int) (model.SearchRecord, error) {
	ctx, span := tracer.Start(ctx, "research.search", trace.WithAttributes(
		attribute.String("query", query),
		attribute.Int("max_results", maxResults),
	))
	defer span.End()
	rec, err := r.searcher.Search(ctx, query, maxResults)
	if err != nil {
		span.RecordError(err)
	}
	return rec, err
}

// maxResultsFor 把计划深度折算成每查询结果数上限。§4.2 只明确文档化了
// depth=1（单一方面深挖）的 "≤5 条/查询" 策略；其它深度没有单独给出数字，
// 这里统一套用同一个上限，避免更宽的深度在没有文档依据的情况下抓取更多结果
func maxResultsFor(plan *model.Plan) int {
	return search.DefaultMaxResults
}

// enrichFindings 把分析器产出的 Finding 按 SourceURL 对齐到本轮搜索结果，
// 回填 Title/Snippet，供 Compress 阶段构造完整的 Citation
func enrichFindings(findings []model.Finding, rec model.SearchRecord) []model.Finding {
	for i, f := range findings {
		if res, ok := rec.Lookup(f.SourceURL); ok {
			findings[i].Title = res.Title
			findings[i].Snippet = res.Snippet
		}
	}
	return findings
}

// tracedAnalyze 给一次分析调用包一个子 span，携带本轮读到的页面数
func (r *researchImpl[I, O]) tracedAnalyze(ctx context.Context, originalQuery, currentQuery string, pages []model.PageContent) (model.AnalyzerOutput, error) {
	ctx, span := tracer.Start(ctx, "research.analyze", trace.WithAttributes(attribute.Int("pages", len(pages))))
	defer span.End()
	out, err := r.analyze(ctx, originalQuery, currentQuery, pages)
	if err != nil {
		span.RecordError(err)
	}
	return out, err
}

// readURLs 在不超过 fetchConcurrency 的并行度下抓取 urls 中尚未被访问过的
// 页面。已经被本次运行内任何任务访问过的 URL 会被跳过（G2）。返回的切片
// 按 urls 的提交顺序排列，不是抓取完成顺序（O1：Analyze 看到的页面顺序要
// 和提交顺序一致，下游的引用编号才稳定）
func (r *researchImpl[I, O]) readURLs(ctx context.Context, urls []string, visited *visitedSet) []model.PageContent {
	sem := semaphore.NewWeighted(fetchConcurrency)
	pages := make([]model.PageContent, len(urls))
	claimed := make([]bool, len(urls))
	var wg sync.WaitGroup

	for i, u := range urls {
		if !visited.claim(u) {
			continue
		}
		i, u := i, u
		claimed[i] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			fetchCtx, span := tracer.Start(ctx, "research.read", trace.WithAttributes(attribute.String("url", u)))
			pc, err := r.fetcher.Fetch(fetchCtx, u)
			if err != nil {
				// fetch.Fetcher 在正常失败路径下把状态写进 PageContent 本身，
				// 这里记录的是真正意外的错误（G3：单个页面失败不能让整次运行失败）
				slog.Error("research.readURLs failed, fetch err = %+v, url = %+v", err, u)
				span.RecordError(err)
			}
			span.End()
			pages[i] = pc
		}()
	}
	wg.Wait()

	out := make([]model.PageContent, 0, len(urls))
	for i, ok := range claimed {
		if ok {
			out = append(out, pages[i])
		}
	}
	return out
}

// analyze 调用分析模型，从页面正文中提炼 Finding，并产出 think-tool 轨迹与
// 继续/结束的决定。模型输出解析失败时返回一个 finish 决定，绝不阻塞子图
func (r *researchImpl[I, O]) analyze(ctx context.Context, originalQuery, currentQuery string, pages []model.PageContent) (model.AnalyzerOutput, error) {
	var bodies string
	for _, pc := range pages {
		bodies += fmt.Sprintf("\n\n### %s (status=%s)\n%s", pc.URL, pc.Status, pc.Body)
	}

	messages := []*schema.Message{
		schema.SystemMessage("You extract grounded findings from web page content for a research assistant. Respond only with the requested JSON schema."),
		schema.UserMessage(fmt.Sprintf("Original question: %s\nCurrent query: %s\nPage contents:%s", originalQuery, currentQuery, bodies)),
	}

	var resp *schema.Message
	var err error
	if conf.GetCfg().Research.EnablePluginTools {
		// ReAct agent 需要能自由产出工具调用的模型，不能是被 JSON Schema
		// 约束死的 r.analyzer，否则模型既要守 schema 又要发 tool_call 会冲突
		agent, agentErr := newPluginToolAnalyzer(ctx, r.toolAnalyzer)
		if agentErr != nil {
			slog.Error("research.analyze failed, newPluginToolAnalyzer err = %+v", agentErr)
			return model.AnalyzerOutput{Action: consts.AnalyzeActionFinish}, agentErr
		}
		resp, err = runPluginAnalysis(ctx, agent, messages)
	} else {
		resp, err = r.analyzer.Generate(ctx, messages)
	}
	if err != nil {
		return model.AnalyzerOutput{Action: consts.AnalyzeActionFinish}, err
	}

	out := model.AnalyzerOutput{}
	if !extract.JSON(resp.Content, &out) {
		slog.Error("research.analyze failed, unable to parse analyzer output, content = %+v", resp.Content)
		return model.AnalyzerOutput{Action: consts.AnalyzeActionFinish}, nil
	}
	if out.Action == "" {
		out.Action = consts.AnalyzeActionFinish
	}
	return out, nil
}
