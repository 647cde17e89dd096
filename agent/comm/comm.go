package comm

import (
	"context"
	"io"
	"sync"

	"github.com/HildaM/logs/slog"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/deer-flow-go/entity/conf"
	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// tokenCount 用 tiktoken-go 的 cl100k_base 编码估算 token 数；编码表加载失败
// 时（例如离线环境拉不到 BPE 词表）退化为字节长度除以 4 的粗略估计，不阻塞调用方
func tokenCount(s string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Error("comm.tokenCount failed, load tiktoken encoding err = %+v, falling back to byte heuristic", err)
			return
		}
		enc = e
	})
	if enc == nil {
		return len(s) / 4
	}
	return len(enc.Encode(s, nil, nil))
}

// ModifyInputFunc 输入消息修改函数。按 token 数而不是字节数裁剪，保留最新的
// 后半段内容，超出 max_limit_token 时从头部截断
func ModifyInputFunc(ctx context.Context, inputList []*schema.Message) []*schema.Message {
	sum := 0
	maxLimit := conf.GetCfg().Setting.MaxLimitToken
	for _, input := range inputList {
		if input == nil {
			slog.Debug("ModifyInputFunc debug, input is nil")
			continue
		}

		tokens := tokenCount(input.Content)
		if tokens >= maxLimit && maxLimit > 0 {
			slog.Debug("ModifyInputFunc debug, input token count is %d, max limit token is %d", tokens, maxLimit)
			// 按字符比例近似裁掉超出部分，保留最新的后半段信息
			keepRatio := float64(maxLimit) / float64(tokens)
			keepChars := int(float64(len(input.Content)) * keepRatio)
			if keepChars < len(input.Content) && keepChars > 0 {
				input.Content = input.Content[len(input.Content)-keepChars:]
			}
		}

		sum += tokenCount(input.Content)
	}

	slog.Debug("ModifyInputFunc debug, input content token sum is %d", sum)
	return inputList
}

// ToolCallChecker 工具调用检查函数
func ToolCallChecker(ctx context.Context, sr *schema.StreamReader[*schema.Message]) (bool, error) {
	defer sr.Close()

	for {
		msg, err := sr.Recv()
		if err == io.EOF {
			slog.Debug("toolCallChecker debug, stream message eof")
			return false, nil
		}
		if err != nil {
			slog.Error("toolCallChecker failed, recv stream message failed", "err", err)
			return false, err
		}

		if len(msg.ToolCalls) > 0 {
			return true, nil
		}
	}
}
