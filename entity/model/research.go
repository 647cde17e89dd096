package model

import "time"

// Finding 是从某一页面正文中提取出的一条带来源的论断。Title/Snippet 在
// Research 子图里从该来源对应的搜索结果回填，供 Compress 阶段构造
// Citation 时使用（Finding 本身只负责携带，不负责产生）
type Finding struct {
	Claim             string  `json:"claim"`
	SourceURL         string  `json:"source_url"`
	Confidence        float64 `json:"confidence"` // 0..1
	SupportingSnippet string  `json:"supporting_snippet"`
	Title             string  `json:"title,omitempty"`
	Snippet           string  `json:"snippet,omitempty"`
}

// PageContent 是一次页面抓取的结果。Body 可能为空（抓取失败或被拦截时）
type PageContent struct {
	URL            string    `json:"url"`
	FetchedAt      time.Time `json:"fetched_at"`
	Status         string    `json:"status"` // ok | blocked | empty | error
	Body           string    `json:"body,omitempty"`
	ContentLength  int       `json:"content_length"`
	BytesTruncated bool      `json:"bytes_truncated"`
}

// SearchResult 是搜索接口返回的一条结果：{url, title, snippet}，对应 §6
// 文档化的 search(query, max_results) -> [{url, title, snippet}]
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet"`
}

// SearchRecord 记录一次搜索调用
type SearchRecord struct {
	Query     string         `json:"query"`
	Timestamp time.Time      `json:"timestamp"`
	Results   []SearchResult `json:"results"`
}

// URLs 返回本次搜索结果的 URL 列表，顺序与 Results 一致
func (r SearchRecord) URLs() []string {
	urls := make([]string, len(r.Results))
	for i, res := range r.Results {
		urls[i] = res.URL
	}
	return urls
}

// Lookup 按 URL 查找对应的搜索结果，供回填 Finding.Title/Snippet 使用
func (r SearchRecord) Lookup(url string) (SearchResult, bool) {
	for _, res := range r.Results {
		if res.URL == url {
			return res, true
		}
	}
	return SearchResult{}, false
}

// Citation 是报告中引用标记 [n] 指向的编号引用，id 在一次运行内按首次出现
// 顺序稠密分配
type Citation struct {
	ID      int    `json:"id"` // >= 1
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// AnalyzerOutput 是 Research 子图 Analyze 步骤模型调用的结构化输出契约：
// 一批 Finding、一条 think-tool 轨迹，以及是否继续搜索的决定
type AnalyzerOutput struct {
	Findings  []Finding `json:"findings"`
	Thought   string    `json:"thought"`
	Action    string    `json:"action"` // continue | finish
	NextQuery string    `json:"next_query,omitempty"`
}

// Compressed 是 Compress 阶段的产出：压缩后的研究笔记及其引用列表
type Compressed struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// CritiqueScore 是 Critique 阶段打出的四维评分与总分，总分落在 [0, 20]
type CritiqueScore struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Relevance    float64 `json:"relevance"`
	Clarity      float64 `json:"clarity"`
	Total        float64 `json:"total"`
}
