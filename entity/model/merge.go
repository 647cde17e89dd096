package model

// 本文件实现 ResearchState 文档化的合并规则：列表字段只追加，标量字段最后
// 写入者生效。教师代码库里的每个 stage 都是在 compose.ProcessState 的闭包里
// 直接修改 *State，这里延续同样的风格，只是把重复出现的追加/去重逻辑收敛成
// 方法，避免每个 stage 各写一遍。

// AppendFindings 按顺序追加 findings（O1：保持传入顺序，不做任何重排），同时把
// 每条 finding 的来源 URL 记入待推送队列，供 finding_added(url) 事件消费
func (s *State) AppendFindings(findings ...Finding) {
	for _, f := range findings {
		s.PendingFindingURLs = append(s.PendingFindingURLs, f.SourceURL)
	}
	s.Findings = append(s.Findings, findings...)
}

// HasReadURL 判断某个 URL 是否已经被抓取过（不变式 I4：read_contents 不允许
// 出现重复 URL）
func (s *State) HasReadURL(url string) bool {
	for _, pc := range s.ReadContents {
		if pc.URL == url {
			return true
		}
	}
	return false
}

// AppendReadContent 追加一条页面内容，若 URL 已存在则丢弃，保持不变式 I4
func (s *State) AppendReadContent(pc PageContent) bool {
	if s.HasReadURL(pc.URL) {
		return false
	}
	s.ReadContents = append(s.ReadContents, pc)
	return true
}

// AppendSearchRecord 追加一条搜索历史记录
func (s *State) AppendSearchRecord(rec SearchRecord) {
	s.SearchHistory = append(s.SearchHistory, rec)
}

// AppendThought 追加一条分析器观察轨迹。按照 think-tool 契约，分析器每轮迭代
// 只应产出一条
func (s *State) AppendThought(thought string) {
	s.Thoughts = append(s.Thoughts, thought)
}
