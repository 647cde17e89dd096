// Package errs 定义运行期可能出现的错误分类。教师代码库在各处直接用
// fmt.Errorf 包装并 slog.Fatal 退出，这里把同样的包装风格收敛成一组哨兵
// 错误，配合 github.com/pkg/errors 保留调用栈，供图节点按错误类别决定
// 继续、重试还是终止整次运行。
package errs

import (
	"github.com/pkg/errors"
)

// 顶层错误分类，图协调器据此决定是否可以安全重试或必须终止运行
var (
	// ErrInput 标记用户输入本身不合法（空查询等），不可重试
	ErrInput = errors.New("input error")

	// ErrClarificationRequested 不是失败，是 Clarify 阶段请求人类补充信息的
	// 短路信号，图协调器据此走 interrupt-and-rerun 路径
	ErrClarificationRequested = errors.New("clarification requested")

	// ErrTransientProvider 标记外部依赖（搜索、抓取、模型）的暂时性错误，
	// 调用方可按退避策略重试
	ErrTransientProvider = errors.New("transient provider error")

	// ErrPermanentProvider 标记外部依赖的不可重试错误（鉴权失败、配额用尽）
	ErrPermanentProvider = errors.New("permanent provider error")

	// ErrModel 标记模型调用本身失败或返回内容无法被任何回退策略解析
	ErrModel = errors.New("model error")

	// ErrCitation 标记 Writer 产出的报告引用校验在重试后仍未通过
	ErrCitation = errors.New("citation validation error")

	// ErrCancelled 标记运行被调用方显式取消（ctx.Cancel）
	ErrCancelled = errors.New("run cancelled")

	// ErrDeadlineExceeded 标记运行触达 overall_deadline_ms 整体截止时间
	ErrDeadlineExceeded = errors.New("overall deadline exceeded")
)

// Input 包装一个输入校验错误
func Input(msg string) error {
	return errors.Wrap(ErrInput, msg)
}

// Transient 包装一个暂时性 provider 错误，保留原始 cause
func Transient(op string, cause error) error {
	return errors.Wrapf(ErrTransientProvider, "%s: %v", op, cause)
}

// Permanent 包装一个不可重试 provider 错误
func Permanent(op string, cause error) error {
	return errors.Wrapf(ErrPermanentProvider, "%s: %v", op, cause)
}

// Model 包装一个模型调用/解析错误
func Model(op string, cause error) error {
	return errors.Wrapf(ErrModel, "%s: %v", op, cause)
}

// Citation 包装一个引用校验错误
func Citation(msg string) error {
	return errors.Wrap(ErrCitation, msg)
}

// Is 是 errors.Is 的直接转发，方便调用方无需额外 import 两个 errors 包
func Is(err, target error) bool {
	return errors.Is(err, target)
}
