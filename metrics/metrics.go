// Package metrics 在一次运行结束后，把运行的 model.State 折算成一份可打印
// 的性能/质量摘要——时间、检索调用次数、CARC 评分——供 CLI/服务端前端在
// done 之后打印，而不是作为流水线本身的一个评分不变式。
//
// 折算逻辑与摘要的框线排版沿用 original_source 里的 metrics.py
// （ResearchMetrics / ResearchBenchmark._print_metrics）：那里用 Python 的
// f-string 拼出框线，这里用 fmt.Fprintf 以 ASCII 的 "="、"-"、"|" 画出同样的版式。
package metrics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hildam/deer-flow-go/entity/model"
)

// Summary 是从一次运行的最终状态里提炼出的只读快照
type Summary struct {
	Query            string
	TotalTime        time.Duration
	SearchCalls      int
	URLsRead         int
	Iterations       int
	FindingsCount    int
	ResponseLength   int
	HasCitations     bool
	Completeness     float64
	Accuracy         float64
	Relevance        float64
	Clarity          float64
	Total            float64
	HasQualityScore  bool
	Warnings         int
}

// FromState 把一次运行的最终 model.State 折算为 Summary。EndedAt 为 nil 时
// （运行尚未结束，或被整体截止时间打断）按调用时刻计算耗时
func FromState(state *model.State) Summary {
	end := time.Now()
	if state.EndedAt != nil {
		end = *state.EndedAt
	}

	s := Summary{
		Query:          state.Query,
		TotalTime:      end.Sub(state.StartedAt),
		SearchCalls:    len(state.SearchHistory),
		URLsRead:       len(state.ReadContents),
		Iterations:     state.IterationCount,
		FindingsCount:  len(state.Findings),
		ResponseLength: len(state.Report),
		HasCitations:   hasCitations(state.Report),
		Warnings:       len(state.Warnings),
	}

	if state.Critique != nil {
		s.HasQualityScore = true
		s.Completeness = state.Critique.Completeness
		s.Accuracy = state.Critique.Accuracy
		s.Relevance = state.Critique.Relevance
		s.Clarity = state.Critique.Clarity
		s.Total = state.Critique.Total
	}

	return s
}

// hasCitations 判断报告正文里是否出现过至少一个 [n] 引用标记
func hasCitations(report string) bool {
	for i := 0; i < len(report); i++ {
		if report[i] != '[' {
			continue
		}
		j := i + 1
		for j < len(report) && report[j] >= '0' && report[j] <= '9' {
			j++
		}
		if j > i+1 && j < len(report) && report[j] == ']' {
			return true
		}
	}
	return false
}

// qualityGrade 套用 metrics.py 里的三档评级边界：16 分以上优秀，12 分以上
// 良好，否则有待改进（总分区间 0-20）
func qualityGrade(total float64) string {
	switch {
	case total >= 16:
		return "Excellent"
	case total >= 12:
		return "Good"
	default:
		return "Needs work"
	}
}

// Print 按 metrics.py 的框线排版把 Summary 写到 w
func Print(w io.Writer, s Summary) {
	citations := "no"
	if s.HasCitations {
		citations = "yes"
	}

	quality := "N/A"
	if s.HasQualityScore {
		quality = fmt.Sprintf("C=%.1f A=%.1f R=%.1f C=%.1f -> %.1f/20 (%s)",
			s.Completeness, s.Accuracy, s.Relevance, s.Clarity, s.Total, qualityGrade(s.Total))
	}

	query := s.Query
	if len(query) > 60 {
		query = query[:60] + "..."
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 68))
	fmt.Fprintf(w, "| Research run summary\n")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 68))
	fmt.Fprintf(w, "| Query: %s\n", query)
	fmt.Fprintf(w, "| Time: %s\n", s.TotalTime.Round(time.Millisecond))
	fmt.Fprintf(w, "| Search calls: %d\n", s.SearchCalls)
	fmt.Fprintf(w, "| URLs read: %d\n", s.URLsRead)
	fmt.Fprintf(w, "| Iterations: %d\n", s.Iterations)
	fmt.Fprintf(w, "| Findings: %d\n", s.FindingsCount)
	fmt.Fprintf(w, "| Response length: %d chars\n", s.ResponseLength)
	fmt.Fprintf(w, "| Has citations: %s\n", citations)
	fmt.Fprintf(w, "| Warnings: %d\n", s.Warnings)
	fmt.Fprintf(w, "| CARC quality: %s\n", quality)
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", 68))
}
