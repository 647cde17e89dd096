package model

import (
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/deer-flow-go/events"
)

// State 是贯穿整个研究工作流的共享状态，所有 stage 都通过 compose.ProcessState
// 读取并原地修改它。列表字段遵循“只追加”的合并规则，标量字段遵循“最后写入者
// 生效”的合并规则。
type State struct {
	// 原始用户问题与会话标识
	Query    string `json:"query,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`

	// 用于日志关联与 OTel 追踪的标识
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`

	// Clarify 阶段产出
	NeedsClarification    bool     `json:"needs_clarification"`
	ClarificationQuestion string   `json:"clarification_question,omitempty"`
	QueryAnalysis         string   `json:"query_analysis,omitempty"`
	DetectedTopics        []string `json:"detected_topics,omitempty"`

	// Planner / Supervisor 阶段产出
	Plan     *Plan     `json:"plan,omitempty"`
	Strategy *Strategy `json:"strategy,omitempty"`

	// Research 子图产出，只追加
	Findings      []Finding      `json:"findings,omitempty"`
	ReadContents  []PageContent  `json:"read_contents,omitempty"`
	SearchHistory []SearchRecord `json:"search_history,omitempty"`
	Thoughts      []string       `json:"thoughts,omitempty"`

	// Compress / Writer / Critique 阶段产出
	Compressed *Compressed    `json:"compressed,omitempty"`
	Report     string         `json:"report,omitempty"`
	Critique   *CritiqueScore `json:"critique,omitempty"`

	// 运行统计
	IterationCount int        `json:"iteration_count"`
	TokensIn       int        `json:"tokens_in"`
	TokensOut      int        `json:"tokens_out"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`

	// 子图共享的路由变量，与教师代码库中的 Goto 字段语义相同：每个 stage 的
	// router 函数写入它，外层图读取它决定下一个要执行的节点
	Goto string `json:"goto,omitempty"`

	// 非致命问题的软告警。stage 在无法满足理想路径但又不应该中断整个运行时
	// 追加到这里，而不是把错误向上抛出图外
	Warnings []string `json:"warnings,omitempty"`

	// 提示词构造用到的消息序列，纯粹是 eino 模型调用需要的载体
	Messages []*schema.Message `json:"messages,omitempty"`

	// 澄清被短路后，等待用户给出的新问题（由外部系统通过 checkpoint 恢复写入）
	ClarificationAnswer string `json:"clarification_answer,omitempty"`

	// 各 stage 内部自校验重试的一次性标记，key 为 stage 名。例如 Planner
	// 和 Clarify 在结构校验失败时各允许一次自我重试，这里记录是否已经用过
	RetryFlags map[string]bool `json:"-"`

	// 待推送的分类错误事件：stage 遇到不足以中断整个运行、但客户端需要看到
	// 一条独立 error(kind, detail) 帧的问题时（例如 Writer 重试后引用仍然
	// 校验失败）设置这两个字段，由 LoggerCallback 在该节点结束时读取并清空
	PendingErrorKind   events.ErrorKind `json:"-"`
	PendingErrorDetail string           `json:"-"`

	// 按顺序暂存本轮新增 finding 的来源 URL，驱动 finding_added(url) 事件；
	// LoggerCallback 在节点结束时读取并清空
	PendingFindingURLs []string `json:"-"`
}

// TakePendingError 读取并清空待推送的分类错误事件，ok 为 false 表示没有待
// 推送的事件
func (s *State) TakePendingError() (kind events.ErrorKind, detail string, ok bool) {
	if s.PendingErrorKind == "" {
		return "", "", false
	}
	kind, detail = s.PendingErrorKind, s.PendingErrorDetail
	s.PendingErrorKind, s.PendingErrorDetail = "", ""
	return kind, detail, true
}

// TakePendingFindingURLs 读取并清空按顺序暂存的 finding 来源 URL 队列
func (s *State) TakePendingFindingURLs() []string {
	urls := s.PendingFindingURLs
	s.PendingFindingURLs = nil
	return urls
}

// IsEnded 判断状态是否已经结束。不变式 I5：EndedAt 一旦设置，不允许再修改状态
func (s *State) IsEnded() bool {
	return s.EndedAt != nil
}

// AddWarning 追加一条非致命警告
func (s *State) AddWarning(w string) {
	s.Warnings = append(s.Warnings, w)
}
