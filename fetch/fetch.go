// Package fetch 定义 Research 子图 Read 步骤依赖的页面抓取面，以及一个基于
// net/http 的默认实现。
//
// 抓取逻辑、User-Agent 选择与正文截断策略均沿用原始 Python 实现中的
// read_url_tool（original_source/langgraph_web_ui/.../tools.py）：先用一个
// 类浏览器 User-Agent 发起请求，剥掉 script/style 标签与全部 HTML 标签，压
// 缩连续空白，再截断到配置的字节上限。
package fetch

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
	"github.com/hildam/deer-flow-go/errs"
)

// Fetcher 是 Research 子图 Read 步骤依赖的页面抓取接口
type Fetcher interface {
	Fetch(ctx context.Context, url string) (model.PageContent, error)
}

// httpFetcher 是基于 net/http 的默认实现
type httpFetcher struct {
	client        *http.Client
	truncateBytes int
}

// fetchRetryBackoff 是单次重试前的固定等待时长，对应 §7 "TransientProviderError
// ... Retried at most once per call" 的退避策略
const fetchRetryBackoff = 200 * time.Millisecond

// NewHTTPFetcher 创建一个默认抓取器，truncateBytes<=0 时使用 §6 文档化的
// 50KiB 默认截断长度
func NewHTTPFetcher(timeout time.Duration, truncateBytes int) Fetcher {
	if truncateBytes <= 0 {
		truncateBytes = 50 * 1024
	}
	return &httpFetcher{
		client:        &http.Client{Timeout: timeout},
		truncateBytes: truncateBytes,
	}
}

var (
	scriptTag = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	anyTag    = regexp.MustCompile(`(?s)<[^>]+>`)
	wsRun     = regexp.MustCompile(`\s+`)
)

// Fetch 抓取一次，遇到超时/连接错误或 5xx 这类暂时性失败时按 §7 的策略重试
// 一次；返回最后一次尝试的 PageContent（失败时带失败状态）及其错误，
// 网络层错误仍作为 error 返回给调用方
func (f *httpFetcher) Fetch(ctx context.Context, url string) (model.PageContent, error) {
	pc, statusCode, err := f.attempt(ctx, url)
	if !isTransientFetch(statusCode, err) {
		return pc, err
	}

	select {
	case <-ctx.Done():
		return pc, err
	case <-time.After(fetchRetryBackoff):
	}
	pc, _, err = f.attempt(ctx, url)
	return pc, err
}

// isTransientFetch 判断一次尝试的结果是否值得重试：网络层错误（连接失败、
// 超时）或服务端 5xx。403/429 归类为 Blocked，4xx 归类为 Error，两者都不重试
func isTransientFetch(statusCode int, err error) bool {
	if err != nil {
		return errs.Is(err, errs.ErrTransientProvider)
	}
	return statusCode >= 500
}

// attempt 执行一次实际的 HTTP 抓取尝试，statusCode 在请求未能发出时为 0
func (f *httpFetcher) attempt(ctx context.Context, url string) (model.PageContent, int, error) {
	pc := model.PageContent{URL: url, FetchedAt: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		pc.Status = consts.PageStatusError
		return pc, 0, errs.Permanent("fetch.newRequest", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; DeepResearchAgent/1.0)")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		pc.Status = consts.PageStatusError
		return pc, 0, errs.Transient("fetch.do", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		pc.Status = consts.PageStatusBlocked
		return pc, resp.StatusCode, nil
	}
	if resp.StatusCode >= 400 {
		pc.Status = consts.PageStatusError
		return pc, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		pc.Status = consts.PageStatusError
		return pc, resp.StatusCode, errs.Transient("fetch.readBody", err)
	}

	text := cleanHTML(string(body))
	if text == "" {
		pc.Status = consts.PageStatusEmpty
		return pc, resp.StatusCode, nil
	}

	pc.ContentLength = len(text)
	if len(text) > f.truncateBytes {
		text = text[:f.truncateBytes]
		pc.BytesTruncated = true
	}
	pc.Body = text
	pc.Status = consts.PageStatusOK
	return pc, resp.StatusCode, nil
}

// cleanHTML 剥掉 script/style 块和全部标签，压缩连续空白
func cleanHTML(raw string) string {
	raw = scriptTag.ReplaceAllString(raw, "")
	raw = styleTag.ReplaceAllString(raw, "")
	raw = anyTag.ReplaceAllString(raw, " ")
	raw = wsRun.ReplaceAllString(raw, " ")
	return strings.TrimSpace(raw)
}
