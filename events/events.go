// Package events 定义外部可见的 SSE 事件契约，取代教师 repo/callback 里的
// 自由形态 ChatResp。这里的事件类型直接对应 §4.8/§6 文档化的事件名：
// stage_start、stage_end、thought、finding_added、partial_report_token、
// done、error。
package events

import "time"

// Type 是事件类型常量
type Type string

const (
	StageStart         Type = "stage_start"
	StageEnd           Type = "stage_end"
	Thought            Type = "thought"
	FindingAdded       Type = "finding_added"
	PartialReportToken Type = "partial_report_token"
	Done               Type = "done"
	Error              Type = "error"
)

// ErrorKind 枚举 §7 错误分类里能在事件流里露出的那几种：cancelled、
// deadline、citation、model。其余分类（InputError 等）在运行开始前就失败，
// 不会产生事件流
type ErrorKind string

const (
	ErrorKindCancelled ErrorKind = "cancelled"
	ErrorKindDeadline  ErrorKind = "deadline"
	ErrorKindCitation  ErrorKind = "citation"
	ErrorKindModel     ErrorKind = "model"
)

// Event 是推送给客户端的单条 SSE 帧的载体
type Event struct {
	Type       Type      `json:"type"`
	ThreadID   string    `json:"thread_id,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Content    string    `json:"content,omitempty"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Findings   int       `json:"findings_count,omitempty"`
	Report     string    `json:"report,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// StageStartEvent 构造一个 stage 开始事件
func StageStartEvent(threadID, stage string) Event {
	return Event{Type: StageStart, ThreadID: threadID, Stage: stage, Timestamp: time.Now()}
}

// StageEndEvent 构造一个 stage 结束事件，duration 是该 stage 从 stage_start
// 到现在经过的时长，对应 §4.8 文档化的 stage_end(name, duration_ms)
func StageEndEvent(threadID, stage string, duration time.Duration) Event {
	return Event{Type: StageEnd, ThreadID: threadID, Stage: stage, DurationMS: duration.Milliseconds(), Timestamp: time.Now()}
}

// ThoughtEvent 构造一条 think-tool 轨迹事件
func ThoughtEvent(threadID, stage, thought string) Event {
	return Event{Type: Thought, ThreadID: threadID, Stage: stage, Content: thought, Timestamp: time.Now()}
}

// FindingAddedEvent 构造一条 finding 新增事件，content 携带该 finding 的来源 URL
func FindingAddedEvent(threadID, stage, sourceURL string, total int) Event {
	return Event{Type: FindingAdded, ThreadID: threadID, Stage: stage, Content: sourceURL, Findings: total, Timestamp: time.Now()}
}

// PartialReportTokenEvent 构造一个报告流式片段事件
func PartialReportTokenEvent(threadID, token string) Event {
	return Event{Type: PartialReportToken, ThreadID: threadID, Stage: "writer", Content: token, Timestamp: time.Now()}
}

// DoneEvent 构造一个运行结束事件，携带 §5 要求的 partial_state 载荷：
// 已产出的报告正文（失败/截止时可能为空串）和已确认的 finding 计数
func DoneEvent(threadID, report string, findingsCount int) Event {
	return Event{Type: Done, ThreadID: threadID, Report: report, Findings: findingsCount, Timestamp: time.Now()}
}

// ErrorEvent 构造一个带分类的错误事件，kind 取 ErrorKind 枚举之一
func ErrorEvent(threadID string, kind ErrorKind, content string) Event {
	return Event{Type: Error, ThreadID: threadID, Kind: kind, Content: content, Timestamp: time.Now()}
}
