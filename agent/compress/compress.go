// Package compress 实现 Compress 阶段：把 Research 子图产出的 findings 去重
// 压缩成一段带编号引用的研究笔记。
//
// 单节点、不调用模型、只靠状态机字段做决策的结构，沿用
// agent/supervisor（本身沿用 agent/researcher/research_team.go 的
// teamRouter 形状）。引用编号与来源记录的字段形状参考了
// petar-djukic-research-engine 的 Citation/KnowledgeItem 类型 —— 那里引用
// 用 BibIndex 指向参考文献列表，这里的 Citation.ID 同样是指向"参考文献列表"
// （去重后的 URL 集合）的稠密编号。
package compress

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/HildaM/logs/slog"

	"github.com/cloudwego/eino/compose"
	"golang.org/x/text/unicode/norm"

	"github.com/hildam/deer-flow-go/entity/conf"
	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
)

// defaultJaccardThreshold 是 §4.5 文档化的聚类阈值：token-Jaccard ≥ 0.75
// 的两条 finding 被视为同一簇
const defaultJaccardThreshold = 0.75

// compressImpl 压缩者
type compressImpl[I, O any] struct {
	jaccardThreshold float64
	targetRatio      float64
}

// NewCompress 创建实例
func NewCompress[I, O any](ctx context.Context) *compressImpl[I, O] {
	cfg := conf.GetCfg().Research
	threshold := cfg.JaccardDedupThreshold
	if threshold <= 0 {
		threshold = defaultJaccardThreshold
	}
	ratio := cfg.CompressionTargetRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	return &compressImpl[I, O]{jaccardThreshold: threshold, targetRatio: ratio}
}

// NewGraphNode 创建任务图
func (c *compressImpl[I, O]) NewGraphNode(ctx context.Context) (key string, node compose.AnyGraph, nameOption compose.GraphAddNodeOpt) {
	graph := compose.NewGraph[I, O]()

	graph.AddLambdaNode("router", compose.InvokableLambdaWithOption(c.router))

	graph.AddEdge(compose.START, "router")
	graph.AddEdge("router", compose.END)

	return consts.Compress, graph, compose.WithNodeName(consts.Compress)
}

func (c *compressImpl[I, O]) router(ctx context.Context, input string, opts ...any) (output string, err error) {
	err = compose.ProcessState[*model.State](ctx, func(ctx context.Context, state *model.State) error {
		defer func() {
			output = state.Goto
		}()

		state.Compressed = c.compress(state.Findings)
		slog.Debug("compress.router debug, findings = %d, compressed citations = %d", len(state.Findings), len(state.Compressed.Citations))

		state.Goto = consts.Writer
		return nil
	})
	return output, err
}

// compress 按 §4.5 的算法对 findings 聚类去重，生成压缩文本和稠密编号引用
func (c *compressImpl[I, O]) compress(findings []model.Finding) *model.Compressed {
	clusters := clusterFindings(findings, c.jaccardThreshold)

	citationIDs := map[string]int{} // url -> dense id，按首次出现顺序分配
	var citations []model.Citation
	var lines []string

	for _, cluster := range clusters {
		best := cluster[0]
		for _, f := range cluster[1:] {
			if f.Confidence > best.Confidence {
				best = f
			}
		}

		sources := distinctSources(cluster)
		var ids []string
		for _, src := range sources {
			id, ok := citationIDs[src.SourceURL]
			if !ok {
				id = len(citations) + 1
				citationIDs[src.SourceURL] = id
				citations = append(citations, model.Citation{
					ID:      id,
					URL:     src.SourceURL,
					Title:   src.Title,
					Snippet: src.Snippet,
				})
			}
			ids = append(ids, fmt.Sprintf("[%d]", id))
		}

		lines = append(lines, fmt.Sprintf("%s %s", best.Claim, strings.Join(ids, "")))
	}

	return &model.Compressed{
		Text:      strings.Join(lines, "\n"),
		Citations: citations,
	}
}

// distinctSources 收集一个簇里所有 finding 的来源，按首次出现顺序去重，
// 保留第一次出现时的 Title/Snippet 供 Citation 构造使用
func distinctSources(cluster []model.Finding) []model.Finding {
	seen := map[string]bool{}
	var sources []model.Finding
	for _, f := range cluster {
		if f.SourceURL == "" || seen[f.SourceURL] {
			continue
		}
		seen[f.SourceURL] = true
		sources = append(sources, f)
	}
	return sources
}

// clusterFindings 用贪心单遍聚类把 claim 近似重复的 finding 分到同一簇：
// 一条 finding 并入第一个与它 token-Jaccard 相似度达到阈值的已有簇，否则
// 另起一簇。保持首次出现顺序，使引用编号分配是确定性的（可复现）。
func clusterFindings(findings []model.Finding, threshold float64) [][]model.Finding {
	var clusters [][]model.Finding
	var clusterTokens []map[string]bool

	for _, f := range findings {
		tokens := tokenSet(f.Claim)

		placed := false
		for i, existing := range clusterTokens {
			if jaccard(tokens, existing) >= threshold {
				clusters[i] = append(clusters[i], f)
				clusterTokens[i] = union(existing, tokens)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []model.Finding{f})
			clusterTokens = append(clusterTokens, tokens)
		}
	}

	// 簇内按 confidence 降序排列，方便 best 选择和测试断言的稳定顺序
	for _, cluster := range clusters {
		sort.SliceStable(cluster, func(i, j int) bool {
			return cluster[i].Confidence > cluster[j].Confidence
		})
	}
	return clusters
}

// tokenSet 对 claim 做 Unicode 规范化后按字母数字边界分词，返回去重的 token 集合
func tokenSet(s string) map[string]bool {
	normalized := norm.NFC.String(strings.ToLower(s))
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			set[f] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for t := range a {
		out[t] = true
	}
	for t := range b {
		out[t] = true
	}
	return out
}
